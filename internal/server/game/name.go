package game

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

const (
	MaxNameLength = 30

	DefaultPlayer1Name = "Player 1"
	DefaultPlayer2Name = "Player 2"
)

var (
	namePattern = regexp.MustCompile(`^[\p{L}\p{N}\s_-]+$`)
	whitespace  = regexp.MustCompile(`\s+`)
	folder      = cases.Fold()
)

// SanitizeName collapses whitespace runs, trims, and truncates to MaxNameLength runes
func SanitizeName(raw string) string {
	s := strings.TrimSpace(whitespace.ReplaceAllString(raw, " "))
	if utf8.RuneCountInString(s) > MaxNameLength {
		s = strings.TrimSpace(string([]rune(s)[:MaxNameLength]))
	}
	return s
}

// IsValidName reports whether an already sanitized name is acceptable
func IsValidName(name string) bool {
	n := utf8.RuneCountInString(name)
	if n < 1 || n > MaxNameLength {
		return false
	}
	return namePattern.MatchString(name)
}

// NameOrDefault sanitizes raw and falls back to def when the result is not valid
func NameOrDefault(raw, def string) string {
	if name := SanitizeName(raw); IsValidName(name) {
		return name
	}
	return def
}

// FoldName produces the comparison key for a display name: whitespace
// normalized, diacritics stripped, case folded.
func FoldName(name string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	stripped, _, err := transform.String(t, SanitizeName(name))
	if err != nil {
		stripped = SanitizeName(name)
	}
	return folder.String(stripped)
}

// NamesMatch compares two display names ignoring case, accents and spacing
func NamesMatch(a, b string) bool {
	if a == "" || b == "" {
		return false
	}
	return FoldName(a) == FoldName(b)
}
