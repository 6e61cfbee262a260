package openai

import (
	"strings"
	"unicode"
)

// scrubString removes control characters (other than newlines and tabs) and trims whitespace.
func scrubString(s string) string {
	s = strings.Map(func(r rune) rune {
		if r == '\n' || r == '\t' {
			return r
		}
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, s)
	return strings.TrimSpace(s)
}
