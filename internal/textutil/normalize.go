package textutil

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// searchTermTransformer strips punctuation and symbol runes after NFC
// normalization, so "Mission: Impossible – Fallout" and
// "Mission Impossible Fallout" produce the same lookup term.
var searchTermTransformer = transform.Chain(
	norm.NFC,
	runes.Remove(runes.In(unicode.Punct)),
	runes.Remove(runes.In(unicode.Symbol)),
)

// NormalizeSearchTerm converts an inferred title into the form sent to the
// catalog lookup endpoint: NFC-normalized, punctuation stripped, whitespace
// collapsed to single spaces.
func NormalizeSearchTerm(title string) string {
	normalized, _, err := transform.String(searchTermTransformer, title)
	if err != nil {
		normalized = title
	}
	return strings.Join(strings.Fields(normalized), " ")
}

// TitleFromFilename derives a human-readable title from a media filename by
// trimming the extension and converting separator runes to spaces.
func TitleFromFilename(name string) string {
	if idx := strings.LastIndex(name, "."); idx > 0 {
		name = name[:idx]
	}
	var b strings.Builder
	prevSpace := false
	for _, r := range name {
		switch {
		case unicode.IsLetter(r) || unicode.IsNumber(r):
			b.WriteRune(r)
			prevSpace = false
		case unicode.IsSpace(r) || r == '-' || r == '_' || r == '.':
			if !prevSpace {
				b.WriteRune(' ')
				prevSpace = true
			}
		}
	}
	return strings.TrimSpace(b.String())
}
