package textutil

import (
	"strings"
	"unicode"
)

// Clean removes null bytes and non-printable characters from text.
// Newlines, carriage returns, and tabs are preserved; everything else
// must be printable. The result may be empty.
func Clean(text string) string {
	if text == "" {
		return ""
	}

	var b strings.Builder
	b.Grow(len(text))

	for _, r := range text {
		if r == 0 {
			continue
		}
		if r == '\n' || r == '\r' || r == '\t' {
			b.WriteRune(r)
			continue
		}
		if unicode.IsPrint(r) {
			b.WriteRune(r)
		}
	}

	return b.String()
}

// CountTokens returns the whitespace-delimited token count of text.
func CountTokens(text string) int {
	return len(strings.Fields(text))
}
