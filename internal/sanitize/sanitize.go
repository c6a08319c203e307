// ABOUTME: Free-text sanitization for visitor input: strip markup, then truncate
// ABOUTME: Uses a strict bluemonday policy so no raw tags survive into storage

// Package sanitize neutralizes HTML in visitor-supplied text and enforces
// per-field length limits.
package sanitize

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/microcosm-cc/bluemonday"
)

// policy strips every element and attribute and HTML-escapes the text.
// Policies are safe for concurrent use.
var policy = bluemonday.StrictPolicy()

// rawTextTag matches script and style tags. The policy drops the content of
// those elements, so their tags are escaped first and the content survives
// as visible text.
var rawTextTag = regexp.MustCompile(`(?i)<(/?)(script|style)\b`)

// maxEntityLen bounds how far back Truncate looks for a cut entity such as "&#39;".
const maxEntityLen = 10

// Text sanitizes input and truncates it to at most max runes. The result is
// empty when nothing visible remains.
func Text(input string, max int) string {
	s := strings.TrimSpace(input)
	if s == "" {
		return ""
	}
	s = rawTextTag.ReplaceAllString(s, "&lt;$1$2")
	s = strings.TrimSpace(policy.Sanitize(s))
	return Truncate(s, max)
}

// Truncate shortens s to at most max runes. If the cut lands inside an HTML
// entity the partial entity is removed as well.
func Truncate(s string, max int) string {
	if max <= 0 {
		return ""
	}
	if utf8.RuneCountInString(s) <= max {
		return s
	}

	cut := 0
	for i := range s {
		if max == 0 {
			cut = i
			break
		}
		max--
	}
	out := s[:cut]

	// A '&' with no ';' after it near the end is an entity we split.
	if amp := strings.LastIndexByte(out, '&'); amp >= 0 && len(out)-amp <= maxEntityLen {
		if !strings.Contains(out[amp:], ";") {
			out = out[:amp]
		}
	}
	return out
}
