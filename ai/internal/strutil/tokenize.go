package strutil

import (
	"strings"
	"unicode"
)

// Tokenize lowercases s and splits it on every rune that is not a letter or
// digit.
func Tokenize(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// Normalize returns the tokens of s joined by single spaces.
func Normalize(s string) string {
	return strings.Join(Tokenize(s), " ")
}
