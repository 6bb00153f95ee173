// Package strutil provides string helpers shared by the ai packages.
package strutil

import "strings"

// Truncate cuts s to at most maxLen runes, appending "..." when it cuts.
// Returns empty string if maxLen <= 0.
func Truncate(s string, maxLen int) string {
	if s == "" || maxLen <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	return string(runes[:maxLen]) + "..."
}

// Excerpt collapses whitespace in s and truncates the result to maxLen runes,
// backing off to the last word boundary when one exists in the second half.
func Excerpt(s string, maxLen int) string {
	s = strings.Join(strings.Fields(s), " ")
	if maxLen <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	cut := runes[:maxLen]
	if i := strings.LastIndexByte(string(cut), ' '); i > 0 && len([]rune(string(cut)[:i])) > maxLen/2 {
		return string(cut)[:i] + "..."
	}
	return string(cut) + "..."
}
