package util

import "strings"

// SanitizeForLog strips control characters and newlines from user-supplied
// content before it is written to the logs.
func SanitizeForLog(s string) string {
	if s == "" {
		return s
	}
	return strings.Map(func(r rune) rune {
		if r < 0x20 || r == 0x7F {
			return ' '
		}
		return r
	}, s)
}

// Truncate caps a string at n bytes for log output.
func Truncate(s string, n int) string {
	if len(s) > n {
		return s[:n]
	}
	return s
}
