package utils

import (
	"strings"
	"unicode"
)

// Token estimates are heuristic. Prompts here are mostly markdown tables of
// amounts and Vietnamese labels, both of which split into more tokens than
// plain English, so costs are counted in quarter tokens per rune.

func runeCost(r rune) int {
	if r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsSpace(r)) {
		return 1
	}
	// digits, punctuation, table pipes and accented letters
	return 2
}

// CountTokens estimates the number of tokens in the given text. Plain English
// comes out near 4 characters per token.
func CountTokens(text string) int {
	if len(text) == 0 {
		return 0
	}
	q := 0
	for _, r := range text {
		q += runeCost(r)
	}
	return (q + 3) / 4
}

// TruncateToTokenLimit cuts text so that CountTokens stays within limit,
// preferring to end on a line break.
func TruncateToTokenLimit(text string, limit int) string {
	if limit <= 0 {
		return ""
	}
	budget := limit * 4
	q := 0
	for i, r := range text {
		q += runeCost(r)
		if q > budget {
			cut := text[:i]
			if nl := strings.LastIndexByte(cut, '\n'); nl > len(cut)/2 {
				cut = cut[:nl+1]
			}
			return cut
		}
	}
	return text
}
