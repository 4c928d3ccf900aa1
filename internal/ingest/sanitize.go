package ingest

import (
	"strings"
	"unicode"
)

// zero-width runes that survive unicode.IsControl.
var invisible = map[rune]bool{
	'\u200B': true, // zero width space
	'\u200C': true, // zero width non-joiner
	'\u200D': true, // zero width joiner
	'\u2060': true, // word joiner
	'\uFEFF': true, // BOM
}

// Sanitize strips control and zero-width characters, collapses whitespace
// runs to a single space and trims the ends. Newlines become spaces so
// fragments stay single-line.
func Sanitize(text string) string {
	var b strings.Builder
	b.Grow(len(text))
	space := false
	for _, r := range text {
		switch {
		case unicode.IsSpace(r):
			space = true
		case unicode.IsControl(r) || invisible[r]:
			// dropped
		default:
			if space && b.Len() > 0 {
				b.WriteByte(' ')
			}
			space = false
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Segment splits sanitized text into sentence fragments on ".", "!" and
// "?", keeping the terminator with its sentence. Text without a
// terminator is a single fragment.
func Segment(text string) []string {
	var out []string
	start := 0
	for i, r := range text {
		if r == '.' || r == '!' || r == '?' {
			frag := strings.TrimSpace(text[start : i+1])
			if frag != "" && frag != "." && frag != "!" && frag != "?" {
				out = append(out, frag)
			}
			start = i + 1
		}
	}
	if tail := strings.TrimSpace(text[start:]); tail != "" {
		out = append(out, tail)
	}
	return out
}
