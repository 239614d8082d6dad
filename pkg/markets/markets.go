// Package markets maps human market names onto the canonical tag form used
// on the relay. Bonds and circuits are tagged with the normalized form only;
// the raw name never appears in a filter or an event tag.
package markets

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Prefix marks every normalized market tag.
const Prefix = "market_"

var stripMarks = transform.Chain(
	norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC,
)

// Tag converts a market name to its canonical tag: NFKD decomposition with
// combining marks removed, lowercased, runs of non-alphanumerics replaced by
// a single underscore, trimmed, and prefixed with "market_". Already
// normalized input passes through unchanged.
func Tag(name string) string {
	s := strings.TrimSpace(name)
	s = strings.TrimPrefix(s, Prefix)
	if out, _, err := transform.String(stripMarks, s); err == nil {
		s = out
	}
	s = strings.ToLower(s)
	b := make([]byte, 0, len(s))
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z' || r >= '0' && r <= '9':
			b = append(b, byte(r))
		case len(b) > 0 && b[len(b)-1] != '_':
			b = append(b, '_')
		}
	}
	return Prefix + strings.TrimRight(string(b), "_")
}

// Name strips the tag prefix for display.
func Name(tag string) string { return strings.TrimPrefix(tag, Prefix) }

// IsTag reports whether s is already in canonical tag form.
func IsTag(s string) bool { return strings.HasPrefix(s, Prefix) && Tag(s) == s }
