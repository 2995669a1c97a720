// Package analysis computes heuristic signals from session telemetry and
// code, with no dependency on any rendering surface.
package analysis

import (
	"math"
	"regexp"
	"time"

	"github.com/bc-dunia/codecoach/internal/telemetry"
)

// DerivedMetrics are bounded percentages recomputed on demand from a
// telemetry snapshot; they carry no identity of their own.
type DerivedMetrics struct {
	SyntaxErrorRate    int `json:"syntax_error_rate"`
	CodingSpeedDensity int `json:"coding_speed_density"`
	NamingIssueDensity int `json:"naming_issue_density"`
}

var (
	identPattern    = regexp.MustCompile(`[A-Za-z_][A-Za-z0-9_]*`)
	allCapsRun      = regexp.MustCompile(`^[A-Z]{2,}$`)
	letterDigitsRun = regexp.MustCompile(`^[A-Za-z][0-9]{2,}$`)
)

// ComputeWeaknesses derives the three weakness scores from a snapshot and the
// current code. Pure given (snap, code, now); every result is in [0, 100].
func ComputeWeaknesses(snap telemetry.Snapshot, code string, now time.Time) DerivedMetrics {
	errRate := 100 * float64(snap.ErrorCount) / math.Max(1, float64(snap.RunCount))

	elapsedMin := math.Max(1, float64(now.Sub(snap.SessionStart).Milliseconds())/60000)
	speed := 10 * float64(snap.Modifications) / elapsedMin

	naming := 10 * float64(countPoorlyNamedTokens(code))

	return DerivedMetrics{
		SyntaxErrorRate:    clampPct(math.Round(errRate)),
		CodingSpeedDensity: clampPct(math.Round(speed)),
		NamingIssueDensity: clampPct(math.Round(naming)),
	}
}

// countPoorlyNamedTokens counts identifiers that are either an all-uppercase
// run of two or more letters, or a letter followed by two or more digits.
func countPoorlyNamedTokens(code string) int {
	count := 0
	for _, ident := range identPattern.FindAllString(code, -1) {
		if allCapsRun.MatchString(ident) || letterDigitsRun.MatchString(ident) {
			count++
		}
	}
	return count
}

func clampPct(v float64) int {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return int(v)
}
