package form

import (
	"strings"
	"unicode"
	"unicode/utf16"
)

// isTrimSpace reports whether r is stripped from the ends of a value before
// a rule reads it: Unicode white space and line terminators, plus the byte
// order mark. U+0085 is not treated as space.
func isTrimSpace(r rune) bool {
	if r == '\uFEFF' {
		return true
	}
	return r != '\u0085' && unicode.IsSpace(r)
}

// trim removes leading and trailing space as defined by isTrimSpace.
func trim(s string) string {
	return strings.TrimFunc(s, isTrimSpace)
}

// length counts UTF-16 code units, so a character outside the Basic
// Multilingual Plane counts as two.
func length(s string) int {
	n := 0
	for _, r := range s {
		n += utf16.RuneLen(r)
	}
	return n
}
