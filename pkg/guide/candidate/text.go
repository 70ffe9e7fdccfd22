package candidate

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// Ellipsis marks text cut at a rune boundary.
const Ellipsis = "…"

var (
	emailPattern = regexp.MustCompile(`[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}`)
	phonePattern = regexp.MustCompile(`\+?\d[\d\s\-().]{7,}\d`)
	spacePattern = regexp.MustCompile(`\s+`)
)

// Truncate cuts s to at most max runes including the ellipsis marker.
func Truncate(s string, max int) string {
	if max <= 0 {
		return ""
	}
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	if max == 1 {
		return Ellipsis
	}
	runes := []rune(s)
	return strings.TrimRightFunc(string(runes[:max-1]), isSpace) + Ellipsis
}

// Redact masks contact details and collapses whitespace before text leaves
// the service in a prompt.
func Redact(s string) string {
	s = emailPattern.ReplaceAllString(s, "[email]")
	s = phonePattern.ReplaceAllString(s, "[phone]")
	return strings.TrimSpace(spacePattern.ReplaceAllString(s, " "))
}

// Preview redacts and truncates free text for a candidate preview.
func Preview(s string, max int) string {
	return Truncate(Redact(s), max)
}

func isSpace(r rune) bool {
	return r == ' ' || r == '\t' || r == '\n'
}
