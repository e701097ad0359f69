// Package slug turns titles and file names into URL-safe identifiers
// for graph nodes.
package slug

import (
	"path"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// deaccent decomposes characters and drops the combining marks, so
// "é" becomes "e" before the ASCII filter runs.
var deaccent = transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// Make lowercases s, strips diacritics and replaces every run of
// remaining non-alphanumeric characters with a single hyphen. The
// result carries no leading or trailing hyphen and may be empty when
// nothing survives the filter.
func Make(s string) string {
	if folded, _, err := transform.String(deaccent, s); err == nil {
		s = folded
	}

	var b strings.Builder
	b.Grow(len(s))
	pending := false
	for _, r := range strings.ToLower(s) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			if pending && b.Len() > 0 {
				b.WriteByte('-')
			}
			b.WriteRune(r)
			pending = false
		default:
			pending = true
		}
	}
	return b.String()
}

// ForFile returns the slug of a file path's base name with the
// extension removed.
func ForFile(p string) string {
	base := path.Base(p)
	if ext := path.Ext(base); ext != "" && ext != base {
		base = base[:len(base)-len(ext)]
	}
	return Make(base)
}
