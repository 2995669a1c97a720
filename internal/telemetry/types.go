// Package telemetry tracks per-session user activity for the coaching client.
package telemetry

import "time"

// ActivityWindow is how recent the last input must be for a tick to count
// toward coding time.
const ActivityWindow = 5 * time.Second

// ScoreResult is one AI evaluation: an overall score (0-100) plus four
// sub-scores (0-10 each). Immutable once received.
type ScoreResult struct {
	Overall         int `json:"overall_score"`
	TimeComplexity  int `json:"time_complexity_score"`
	SpaceComplexity int `json:"space_complexity_score"`
	Readability     int `json:"readability_score"`
	Stability       int `json:"stability_score"`
}

// Snapshot is an immutable copy of the store taken at request-build time.
// In-flight requests read the snapshot, never the live store.
type Snapshot struct {
	RunCount       int `json:"run_count"`
	ErrorCount     int `json:"error_count"`
	SuccessfulRuns int `json:"successful_runs"`
	SuccessRate    int `json:"success_rate"`
	Modifications  int `json:"modifications"`

	KeyPresses int `json:"key_presses"`
	Clicks     int `json:"clicks"`
	MouseMoves int `json:"mouse_moves"`

	CompletedQuestions int `json:"completed_questions"`

	SessionStart time.Time `json:"session_start"`
	LastActivity time.Time `json:"last_activity"`
	FocusStart   time.Time `json:"focus_start"`

	CodingTimeMs      int64 `json:"coding_time_ms"`
	FocusTimeMs       int64 `json:"focus_time_ms"`
	FocusStreakSec    int   `json:"focus_streak_sec"`
	MaxFocusStreakSec int   `json:"max_focus_streak_sec"`

	ScoreHistory []int        `json:"score_history,omitempty"`
	LastScore    *ScoreResult `json:"last_score,omitempty"`

	LastScoreCode   string `json:"last_score_code,omitempty"`
	LastScoreOutput string `json:"last_score_output,omitempty"`
}

// Health is a point-in-time resource snapshot of the client process.
type Health struct {
	Timestamp     time.Time `json:"timestamp"`
	CPUPercent    float64   `json:"cpu_percent"`
	RSSBytes      uint64    `json:"rss_bytes"`
	SystemMemUsed float64   `json:"system_mem_used_percent"`
}
