// Package validate holds the validation rules for user-supplied strings
// reaching the MapNest API. Values are trimmed, length-checked by rune
// count, and HTML-escaped before they reach storage or the renderer.
package validate

import (
	"errors"
	"fmt"
	"html"
	"regexp"
	"strings"
	"unicode/utf8"
)

var (
	ErrEmpty             = errors.New("value is empty")
	ErrTooLong           = errors.New("value is too long")
	ErrInvalidCharacters = errors.New("value contains invalid characters")
)

// nameChars covers the characters allowed in map area names. Apostrophe
// and period admit names like "O'Halloran Hill" and "St. Peters".
var nameChars = regexp.MustCompile(`^[A-Za-z0-9 _\-\.']+$`)

const (
	maxNameLength    = 100
	maxContentLength = 1000
)

// clean trims, bounds, and HTML-escapes a value. maxLen is counted in
// runes, not bytes, so multibyte labels are not cut short.
func clean(s string, maxLen int, required bool) (string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		if required {
			return "", ErrEmpty
		}
		return "", nil
	}
	if n := utf8.RuneCountInString(s); n > maxLen {
		return "", fmt.Errorf("%w: got %d chars, maximum is %d", ErrTooLong, n, maxLen)
	}
	return html.EscapeString(s), nil
}

// MapAreaName validates a region or suburb name: required, at most 100
// characters, restricted to letters, digits, spaces, and -_.' so names
// render safely in exported labels.
func MapAreaName(name string) (string, error) {
	trimmed := strings.TrimSpace(name)
	if trimmed != "" && !nameChars.MatchString(trimmed) {
		return "", ErrInvalidCharacters
	}
	return clean(trimmed, maxNameLength, true)
}

// LayerName validates an annotation layer name: required, at most 100
// characters, any printable text.
func LayerName(name string) (string, error) {
	return clean(name, maxNameLength, true)
}

// AnnotationContent validates marker labels and text annotation content.
// Content is optional and capped at 1000 characters.
func AnnotationContent(content string) (string, error) {
	return clean(content, maxContentLength, false)
}
