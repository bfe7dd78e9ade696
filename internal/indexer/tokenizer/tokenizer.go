// Package tokenizer splits text into index terms. A term is a maximal run
// of ASCII letters and digits, lower-cased; every other character,
// including all non-ASCII letters, separates terms. There is no stemming
// and no stop-word removal, so the n-th term is at position n.
package tokenizer

import "strings"

// Tokenize returns the terms of text in order of appearance. Empty input
// yields an empty, non-nil slice.
func Tokenize(text string) []string {
	words := strings.FieldsFunc(text, func(r rune) bool {
		return !isASCIIAlnum(r)
	})
	terms := make([]string, 0, len(words))
	for _, word := range words {
		terms = append(terms, strings.ToLower(word))
	}
	return terms
}

func isASCIIAlnum(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')
}
