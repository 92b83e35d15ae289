// Package slug normalizes and validates public list URL segments.
package slug

import (
	"errors"
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var (
	ErrInvalid  = errors.New("invalid slug")
	ErrReserved = errors.New("reserved slug")
)

const (
	MinLen = 3
	MaxLen = 32
)

var (
	disallowed = regexp.MustCompile(`[^a-z0-9-]+`)
	hyphens    = regexp.MustCompile(`-+`)
	valid      = regexp.MustCompile(`^[a-z0-9]+(-[a-z0-9]+)*$`)
)

// reserved collide with top-level application routes.
var reserved = map[string]bool{
	"en": true, "et": true, "ru": true,
	"admin": true, "api": true, "login": true, "logout": true,
	"signup": true, "register": true, "pricing": true, "dashboard": true,
	"account": true, "billing": true, "checkout": true, "settings": true,
	"list": true, "lists": true, "g": true, "static": true, "assets": true,
	"webhooks": true, "health": true, "metrics": true, "ws": true,
	"about": true, "terms": true, "privacy": true, "help": true,
	"support": true, "new": true, "create": true, "christmas": true,
}

// Sanitize folds compatibility forms such as ligatures and full-width
// digits, strips diacritics, lowercases, and turns every run of characters
// outside [a-z0-9-] into a single hyphen.
func Sanitize(raw string) string {
	t := transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	s, _, err := transform.String(t, raw)
	if err != nil {
		s = raw
	}
	s = strings.ToLower(s)
	s = disallowed.ReplaceAllString(s, "-")
	s = hyphens.ReplaceAllString(s, "-")
	return strings.Trim(s, "-")
}

func IsValid(s string) bool {
	if len(s) < MinLen || len(s) > MaxLen {
		return false
	}
	return valid.MatchString(s)
}

func IsReserved(s string) bool {
	return reserved[s]
}

// Normalize sanitizes raw and checks the result is claimable in principle.
// Whether it is actually free is decided by the slug claim.
func Normalize(raw string) (string, error) {
	s := Sanitize(raw)
	if !IsValid(s) {
		return s, ErrInvalid
	}
	if IsReserved(s) {
		return s, ErrReserved
	}
	return s, nil
}
