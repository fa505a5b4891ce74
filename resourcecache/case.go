package resourcecache

import (
	"strings"
	"unicode"
)

// toSnake converts a Go type name to snake_case for use as a key namespace.
// Acronym runs stay together ("HTTPServer" becomes "http_server") and digits
// get their own segment. Generic and unnamed types arrive with brackets,
// dots, and package qualifiers ("Page[main.User]"); every non-alphanumeric
// rune acts as a separator so the result is a clean single key segment.
func toSnake(s string) string {
	if s == "" {
		return ""
	}

	runes := []rune(s)
	var b strings.Builder
	b.Grow(len(runes) + len(runes)/2)

	// A separator is only materialized when another rune follows it, which
	// drops leading and trailing separators and collapses runs to one.
	pending := false
	sep := func() {
		if b.Len() > 0 {
			pending = true
		}
	}
	write := func(r rune) {
		if pending {
			b.WriteByte('_')
			pending = false
		}
		b.WriteRune(r)
	}

	for i, r := range runes {
		switch {
		case unicode.IsUpper(r):
			if i > 0 {
				prev := runes[i-1]
				nextIsLower := i+1 < len(runes) && unicode.IsLower(runes[i+1])
				if unicode.IsLower(prev) || unicode.IsDigit(prev) || nextIsLower {
					sep()
				}
			}
			write(unicode.ToLower(r))
		case unicode.IsLower(r):
			write(r)
		case unicode.IsDigit(r):
			if i > 0 && !unicode.IsDigit(runes[i-1]) {
				sep()
			}
			write(r)
		default:
			sep()
		}
	}

	return b.String()
}
