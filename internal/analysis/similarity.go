package analysis

import "strings"

// SimilarityScore grades actual output against expected output on a 0-100
// scale using a sequence-matcher ratio (2*matches/total over the line LCS,
// with a character-level pass for partially matching lines). It is the local
// fallback used when the remote scorer is unreachable.
func SimilarityScore(actual, expected string) int {
	actual = strings.TrimSpace(actual)
	expected = strings.TrimSpace(expected)

	if expected == "" {
		if actual == "" {
			return 100
		}
		return 0
	}
	if actual == expected {
		return 100
	}

	a := strings.Split(actual, "\n")
	b := strings.Split(expected, "\n")
	matched := 2 * lcsLen(a, b)
	total := len(a) + len(b)

	ratio := float64(matched) / float64(total)
	if matched == 0 {
		// No whole line matches; fall back to character ratio so nearly
		// correct single-line answers still earn partial credit.
		ratio = charRatio(actual, expected)
	}

	score := int(ratio*100 + 0.5)
	if score > 99 {
		score = 99 // only an exact match earns 100
	}
	return score
}

func lcsLen(a, b []string) int {
	prev := make([]int, len(b)+1)
	cur := make([]int, len(b)+1)
	for i := 1; i <= len(a); i++ {
		for j := 1; j <= len(b); j++ {
			if a[i-1] == b[j-1] {
				cur[j] = prev[j-1] + 1
			} else if prev[j] >= cur[j-1] {
				cur[j] = prev[j]
			} else {
				cur[j] = cur[j-1]
			}
		}
		prev, cur = cur, prev
	}
	return prev[len(b)]
}

func charRatio(a, b string) float64 {
	ra := []rune(a)
	rb := []rune(b)
	if len(ra)+len(rb) == 0 {
		return 1
	}
	prev := make([]int, len(rb)+1)
	cur := make([]int, len(rb)+1)
	for i := 1; i <= len(ra); i++ {
		for j := 1; j <= len(rb); j++ {
			if ra[i-1] == rb[j-1] {
				cur[j] = prev[j-1] + 1
			} else if prev[j] >= cur[j-1] {
				cur[j] = prev[j]
			} else {
				cur[j] = cur[j-1]
			}
		}
		prev, cur = cur, prev
	}
	return 2 * float64(prev[len(rb)]) / float64(len(ra)+len(rb))
}
