package rewrite

import (
	"fmt"

	difflib "github.com/pmezard/go-difflib/difflib"
)

// Diff returns a unified diff between text and its rewrite, or "" when the
// rewrite changes nothing.
func (r *Rewriter) Diff(p, text string) (string, error) {
	out := r.Rewrite(p, text)
	if out == text {
		return "", nil
	}
	patch, err := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        difflib.SplitLines(text),
		B:        difflib.SplitLines(out),
		FromFile: "a/" + p,
		ToFile:   "b/" + p,
		Context:  3,
	})
	if err != nil {
		return "", fmt.Errorf("rewrite: diff %s: %w", p, err)
	}
	return patch, nil
}
