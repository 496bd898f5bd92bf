package domain

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// NormalizeLabel collapses runs of whitespace (including non-breaking spaces)
// and trims the result. Case and punctuation are preserved for display.
func NormalizeLabel(raw string) string {
	return strings.Join(strings.Fields(raw), " ")
}

// NormalizeName produces the comparison key for a forest or area label:
// diacritics folded, lower-cased, apostrophes dropped, other punctuation
// replaced by a space, whitespace collapsed.
func NormalizeName(raw string) string {
	s := foldDiacritics(NormalizeLabel(raw))
	if s == "" {
		return ""
	}

	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case r == '\'' || r == '’' || r == '`':
			// "St Mary's" and "St Marys" share a key.
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(unicode.ToLower(r))
		default:
			b.WriteRune(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

func foldDiacritics(s string) string {
	t := transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}
