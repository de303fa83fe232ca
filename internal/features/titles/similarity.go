package titles

import (
	"regexp"
	"strings"
)

// MatchThreshold is the minimum score to accept a search result.
const MatchThreshold = 0.85

// partialPenalty is subtracted when only the head or tail of a result matches.
const partialPenalty = 0.01

var (
	nonAlphanumeric = regexp.MustCompile(`[^\p{L}\p{N} ]+`)
	spaces          = regexp.MustCompile(`\s+`)
)

// Simplify lower-cases, drops everything but letters, digits and spaces
// and condenses spaces.
func Simplify(s string) string {
	s = strings.ToLower(s)
	s = nonAlphanumeric.ReplaceAllString(s, "")
	s = spaces.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// MatchScore rates how well result matches the searched title, 0..1.
// When the whole-string ratio is below the threshold, the first and last k
// words of the result (k = words in the search) are tried too, with a small penalty.
func MatchScore(search, result string) float64 {
	a := Simplify(search)
	b := Simplify(result)

	score := lcsRatio(a, b)
	if score >= MatchThreshold {
		return score
	}

	searchWords := strings.Fields(a)
	resultWords := strings.Fields(b)
	k := len(searchWords)
	if k == 0 || k > len(resultWords) {
		return score
	}

	head := lcsRatio(a, strings.Join(resultWords[:k], " ")) - partialPenalty
	tail := lcsRatio(a, strings.Join(resultWords[len(resultWords)-k:], " ")) - partialPenalty
	return max(score, head, tail)
}

// lcsRatio is 2*LCS/(len(a)+len(b)) over runes; two empty strings match fully.
func lcsRatio(a, b string) float64 {
	ra, rb := []rune(a), []rune(b)
	total := len(ra) + len(rb)
	if total == 0 {
		return 1
	}
	return 2 * float64(lcsLength(ra, rb)) / float64(total)
}

func lcsLength(a, b []rune) int {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	prev := make([]int, len(b)+1)
	cur := make([]int, len(b)+1)
	for i := 1; i <= len(a); i++ {
		for j := 1; j <= len(b); j++ {
			if a[i-1] == b[j-1] {
				cur[j] = prev[j-1] + 1
			} else {
				cur[j] = max(prev[j], cur[j-1])
			}
		}
		prev, cur = cur, prev
	}
	return prev[len(b)]
}
