package dedup

import (
	"strings"

	"github.com/texttheater/golang-levenshtein/levenshtein"
)

// every edit costs 1
var editOptions = levenshtein.Options{
	InsCost: 1,
	DelCost: 1,
	SubCost: 1,
	Matches: levenshtein.IdenticalRunes,
}

// NameSimilarity scores two counterparty names from 0 to 1. A case-insensitive
// exact match is 1.0 and containment is 0.8. Anything else is one minus the
// edit distance over the longer length.
func NameSimilarity(a, b string) float64 {
	a = strings.ToLower(strings.TrimSpace(a))
	b = strings.ToLower(strings.TrimSpace(b))

	if a == b {
		return 1.0
	}
	if a == "" || b == "" {
		return 0.0
	}
	if strings.Contains(a, b) || strings.Contains(b, a) {
		return 0.8
	}

	ra, rb := []rune(a), []rune(b)
	maxLen := len(ra)
	if len(rb) > maxLen {
		maxLen = len(rb)
	}
	distance := levenshtein.DistanceForStrings(ra, rb, editOptions)
	return 1.0 - float64(distance)/float64(maxLen)
}
