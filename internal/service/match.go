package service

import (
	"strings"

	"github.com/agnivade/levenshtein"
)

// matchThreshold is the minimum similarity for a fuzzy free-text match.
const matchThreshold = 0.8

// answerMatches reports whether the user's free-text answer is acceptable:
// exact after normalization, or at least 80% similar to any accepted
// variant (tolerates minor typos).
func answerMatches(given string, accepted []string) bool {
	given = normalizeAnswer(given)
	if given == "" {
		return false
	}
	for _, ans := range accepted {
		ans = normalizeAnswer(ans)
		if ans == "" {
			continue
		}
		if given == ans {
			return true
		}
		if similarity(given, ans) >= matchThreshold {
			return true
		}
	}
	return false
}

func normalizeAnswer(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// similarity converts edit distance to a 0..1 ratio over the longer string.
func similarity(a, b string) float64 {
	la := len([]rune(a))
	lb := len([]rune(b))
	longest := la
	if lb > longest {
		longest = lb
	}
	if longest == 0 {
		return 1
	}
	dist := levenshtein.ComputeDistance(a, b)
	return 1 - float64(dist)/float64(longest)
}
