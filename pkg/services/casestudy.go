package services

import (
	"crypto/subtle"
	"slices"
)

// CaseStudyGate decides which case studies need a password and whether a
// given password opens one.
type CaseStudyGate struct {
	global    string
	protected []string
	passwords map[string]string
}

// NewCaseStudyGate builds a gate. A slug with its own password is protected
// even if it is missing from protected.
func NewCaseStudyGate(global string, protected []string, passwords map[string]string) *CaseStudyGate {
	g := &CaseStudyGate{global: global, passwords: map[string]string{}}
	for _, slug := range protected {
		if !slices.Contains(g.protected, slug) {
			g.protected = append(g.protected, slug)
		}
	}
	for slug, pw := range passwords {
		g.passwords[slug] = pw
		if !slices.Contains(g.protected, slug) {
			g.protected = append(g.protected, slug)
		}
	}
	return g
}

func (g *CaseStudyGate) IsProtected(slug string) bool {
	return slices.Contains(g.protected, slug)
}

// VerifyPassword reports whether password unlocks slug. Unprotected slugs
// are always open; the global password opens every slug.
func (g *CaseStudyGate) VerifyPassword(slug, password string) bool {
	if !g.IsProtected(slug) {
		return true
	}
	if password == "" {
		return false
	}
	if g.global != "" && equal(password, g.global) {
		return true
	}
	if own, ok := g.passwords[slug]; ok && own != "" && equal(password, own) {
		return true
	}
	return false
}

func equal(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
