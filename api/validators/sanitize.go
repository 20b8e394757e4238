package validators

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// SanitizeString trims whitespace, drops control characters and invalid UTF-8,
// and caps the result at maxBytes without splitting a rune. maxBytes <= 0
// disables the cap.
func SanitizeString(input string, maxBytes int) string {
	cleaned := strings.Map(func(r rune) rune {
		if r == utf8.RuneError || unicode.IsControl(r) {
			return -1
		}
		return r
	}, strings.TrimSpace(input))

	if maxBytes <= 0 || len(cleaned) <= maxBytes {
		return cleaned
	}
	cut := maxBytes
	for cut > 0 && !utf8.RuneStart(cleaned[cut]) {
		cut--
	}
	return strings.TrimSpace(cleaned[:cut])
}
