package textutil

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var nonASCII = runes.Predicate(func(r rune) bool { return r > unicode.MaxASCII })

// Normalize folds s to trimmed lowercase ASCII. Characters with a compatibility
// decomposition keep their base letter; anything else outside ASCII is
// dropped. Normalize is idempotent.
func Normalize(s string) string {
	if s == "" {
		return ""
	}
	t := transform.Chain(norm.NFKD, runes.Remove(nonASCII))
	folded, _, err := transform.String(t, s)
	if err != nil {
		folded = stripNonASCII(norm.NFKD.String(s))
	}
	return strings.TrimSpace(strings.ToLower(folded))
}

func stripNonASCII(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r <= unicode.MaxASCII {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// CollapseSpace replaces every run of whitespace with a single space and trims
// the result.
func CollapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
