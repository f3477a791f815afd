package services

import (
	"errors"
	"regexp"
	"strings"
)

// ErrInvalidSlug is returned when no usable slug can be derived.
var ErrInvalidSlug = errors.New("invalid slug")

var (
	nonSlugChars     = regexp.MustCompile(`[^a-z0-9]+`)
	nonFilenameChars = regexp.MustCompile(`[^A-Za-z0-9\-_.]`)
	repeatedUnders   = regexp.MustCompile(`_{2,}`)
)

// GenerateSlug lowercases title and replaces every run of characters outside
// [a-z0-9] with a single hyphen, trimming hyphens at both ends.
func GenerateSlug(title string) string {
	slug := nonSlugChars.ReplaceAllString(strings.ToLower(title), "-")
	return strings.Trim(slug, "-")
}

// SanitizeFilename replaces characters outside [A-Za-z0-9._-] with "_" and
// collapses repeated underscores.
func SanitizeFilename(name string) string {
	name = nonFilenameChars.ReplaceAllString(name, "_")
	return repeatedUnders.ReplaceAllString(name, "_")
}

// ValidSlug reports whether slug is already in canonical form.
func ValidSlug(slug string) bool {
	return slug != "" && GenerateSlug(slug) == slug
}

func resolveSlug(candidates ...string) (string, error) {
	for _, c := range candidates {
		if slug := GenerateSlug(c); slug != "" {
			return slug, nil
		}
	}
	return "", ErrInvalidSlug
}
