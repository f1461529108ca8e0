package views

import (
	"strings"
	"unicode"

	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// normalize removes accents and lowercases text for fuzzy matching.
func normalize(s string) string {
	t := transform.Chain(norm.NFD, transform.RemoveFunc(func(r rune) bool {
		return unicode.Is(unicode.Mn, r)
	}), norm.NFC)
	result, _, _ := transform.String(t, strings.ToLower(s))
	return result
}

// matchAll reports whether every word of query occurs in haystack, both
// compared after normalize.
func matchAll(query string, haystack ...string) bool {
	words := strings.Fields(normalize(query))
	if len(words) == 0 {
		return true
	}
	h := normalize(strings.Join(haystack, " "))
	for _, w := range words {
		if !strings.Contains(h, w) {
			return false
		}
	}
	return true
}

func truncate(s string, max int) string {
	if max <= 0 {
		return ""
	}
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max-1]) + "…"
}
