// Package normalize canonicalizes untrusted text before pattern matching.
// Attackers routinely vary case, stretch whitespace, switch to full-width
// code points or insert zero-width runes to slip past literal matchers;
// every matcher in the pipeline sees the folded form produced here instead.
package normalize

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
	"golang.org/x/text/width"
)

var caseFolder = cases.Fold()

// zeroWidth runes carry no visible content and exist in inputs almost
// exclusively to break up token sequences.
var zeroWidth = map[rune]bool{
	'\u200b': true, // zero width space
	'\u200c': true, // zero width non-joiner
	'\u200d': true, // zero width joiner
	'\u2060': true, // word joiner
	'\ufeff': true, // BOM / zero width no-break space
}

// Fold returns the canonical matching form of text: NFKC-normalized,
// width-folded, case-folded, zero-width runes removed, and every
// whitespace run collapsed to a single space. Leading and trailing
// whitespace is trimmed. Pure function.
func Fold(text string) string {
	folded := caseFolder.String(width.Fold.String(norm.NFKC.String(text)))

	var b strings.Builder
	b.Grow(len(folded))
	inSpace := false
	for _, r := range folded {
		if zeroWidth[r] {
			continue
		}
		if unicode.IsSpace(r) {
			inSpace = true
			continue
		}
		if inSpace && b.Len() > 0 {
			b.WriteByte(' ')
		}
		inSpace = false
		b.WriteRune(r)
	}
	return b.String()
}

// HasControlBytes reports whether text contains control characters other
// than ordinary whitespace. Inputs with NUL or other control bytes are
// structurally malformed for a transcript pipeline.
func HasControlBytes(text string) bool {
	for _, r := range text {
		if unicode.IsControl(r) && !unicode.IsSpace(r) {
			return true
		}
	}
	return false
}

// HasReplacementRune reports whether text contains U+FFFD, the usual
// residue of a mangled or forced encoding.
func HasReplacementRune(text string) bool {
	return strings.ContainsRune(text, '\ufffd')
}
