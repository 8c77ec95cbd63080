package config

import "strings"

// ValidationError aggregates all problems found in a configuration
// document so the user sees every mistake at once.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	if len(e.Problems) == 1 {
		return "invalid configuration: " + e.Problems[0]
	}
	return "invalid configuration:\n  - " + strings.Join(e.Problems, "\n  - ")
}

// levenshtein returns the edit distance between a and b.
func levenshtein(a, b string) int {
	if a == b {
		return 0
	}
	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(a); i++ {
		curr[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			curr[j] = min(prev[j]+1, min(curr[j-1]+1, prev[j-1]+cost))
		}
		prev, curr = curr, prev
	}
	return prev[len(b)]
}

// nearestKey returns the closest known key to key, or "" if nothing is
// close enough to be a plausible typo.
func nearestKey(key string, known []string) string {
	best := ""
	bestDist := 3 // anything further is not a typo
	for _, k := range known {
		if d := levenshtein(key, k); d < bestDist {
			best = k
			bestDist = d
		}
	}
	return best
}
