package types

import (
	"regexp"
	"strings"
)

// Compiled once at package initialization.
var (
	urlRegex   = regexp.MustCompile(`(?i)https?://[^\s]+`)
	imageRegex = regexp.MustCompile(`(?i)\.(png|jpe?g|gif|webp|bmp|svg)(\?.*)?$`)
)

// SafeText trims surrounding whitespace and caps the text at
// MaxMessageLength runes. Applied before any rule check.
func SafeText(s string) string {
	text := strings.TrimSpace(s)
	if text == "" {
		return ""
	}
	runes := []rune(text)
	if len(runes) > MaxMessageLength {
		return string(runes[:MaxMessageLength])
	}
	return text
}

// ExtractURLs returns every URL-like substring of the text.
func ExtractURLs(s string) []string {
	return urlRegex.FindAllString(s, -1)
}

// IsImageURL reports whether a URL path ends in a known image extension,
// ignoring any query string.
func IsImageURL(u string) bool {
	return imageRegex.MatchString(u)
}
