// Package htmlsanitize strips markup from user-supplied text before it is
// stored. Student, course and lecturer names are plain text; anything that
// looks like HTML is removed rather than escaped so the stored value stays
// readable on the device display.
package htmlsanitize

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

var strict = bluemonday.StrictPolicy()

// Text removes all tags and returns plain text. Entities are decoded and
// any leftover angle brackets are dropped.
func Text(s string) string {
	if s == "" {
		return ""
	}
	out := html.UnescapeString(strict.Sanitize(s))
	out = strings.Map(func(r rune) rune {
		if r == '<' || r == '>' {
			return -1
		}
		return r
	}, out)
	return strings.TrimSpace(out)
}

// Changed reports whether Text would alter s.
func Changed(s string) bool {
	return Text(s) != strings.TrimSpace(s)
}
