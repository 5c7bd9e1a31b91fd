package utils

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// FoldAccents strips combining marks, so "Opinión" becomes "Opinion" and
// "porã" becomes "pora".
func FoldAccents(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}

// NormalizeText lowercases, folds accents, drops punctuation and collapses
// whitespace. Apostrophes inside words are removed as well. Emoji and other
// pictographic symbols are kept since they often carry the sentiment.
func NormalizeText(s string) string {
	s = strings.ToLower(FoldAccents(s))
	var b strings.Builder
	b.Grow(len(s))
	space := false
	for _, r := range s {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.Is(unicode.So, r):
			b.WriteRune(r)
			space = false
		case unicode.IsSpace(r) || unicode.IsPunct(r) && r != '\'' && r != '’':
			if !space && b.Len() > 0 {
				b.WriteByte(' ')
				space = true
			}
		}
	}
	return strings.TrimSpace(b.String())
}

// Symbols returns the emoji and other pictographic symbols of s in order.
func Symbols(s string) string {
	var b strings.Builder
	for _, r := range s {
		if unicode.Is(unicode.So, r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}
