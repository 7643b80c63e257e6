// internal/app/system/normalize/normalize.go
// Package normalize canonicalizes identifiers before they reach the stores so
// lookups and unique indexes agree on a single spelling.
package normalize

import (
	"strings"
	"unicode"
)

// Email lowercases and trims an email address.
func Email(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// Name trims surrounding whitespace and preserves case.
func Name(s string) string {
	return strings.TrimSpace(s)
}

// CourseCode uppercases a course code and drops all whitespace,
// so "cs 101" and "CS101" name the same course.
func CourseCode(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return unicode.ToUpper(r)
	}, s)
}

// MatricNo uppercases and trims a matriculation number. Inner characters
// such as '/' are kept; many schools use "2019/1234" style numbers.
func MatricNo(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}
