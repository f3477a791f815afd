package services

import (
	"github.com/pmezard/go-difflib/difflib"
)

// Diff returns a unified diff from before to after, or "" when they match.
func Diff(before, after, fromName, toName string) (string, error) {
	if before == after {
		return "", nil
	}
	return difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        difflib.SplitLines(normalizeLineEndings(before)),
		B:        difflib.SplitLines(normalizeLineEndings(after)),
		FromFile: fromName,
		ToFile:   toName,
		Context:  3,
	})
}
