// Package sanitize implements the file-naming rules of spec.md §6: turning
// a git branch name into a directory-safe slug, with collision numbering.
package sanitize

import (
	"fmt"
	"os"
	"path/filepath"
)

// maxCollisionAttempts bounds the "-2", "-3", ... suffix search.
const maxCollisionAttempts = 1000

// BranchName maps any branch name to [A-Za-z0-9._-]; every other
// character becomes '-'. Leading/trailing '-' are trimmed so the result
// never starts or ends with one (spec.md §8). An empty result becomes
// "worktree".
func BranchName(branch string) string {
	out := make([]byte, 0, len(branch))
	for i := 0; i < len(branch); i++ {
		c := branch[i]
		if isSafe(c) {
			out = append(out, c)
		} else {
			out = append(out, '-')
		}
	}

	start, end := 0, len(out)
	for start < end && out[start] == '-' {
		start++
	}
	for end > start && out[end-1] == '-' {
		end--
	}
	out = out[start:end]

	if len(out) == 0 {
		return "worktree"
	}
	return string(out)
}

func isSafe(c byte) bool {
	switch {
	case c >= 'A' && c <= 'Z', c >= 'a' && c <= 'z', c >= '0' && c <= '9':
		return true
	case c == '.' || c == '_' || c == '-':
		return true
	}
	return false
}

// UniqueWorktreeDir returns a directory name for a worktree under parentDir,
// derived from branch, with "-2", "-3", ... appended on collision. It does
// not create the directory.
func UniqueWorktreeDir(parentDir, branch string) (string, error) {
	base := BranchName(branch)
	candidate := base
	for i := 1; i <= maxCollisionAttempts; i++ {
		if i > 1 {
			candidate = fmt.Sprintf("%s-%d", base, i)
		}
		path := filepath.Join(parentDir, candidate)
		if _, err := os.Stat(path); os.IsNotExist(err) {
			return candidate, nil
		} else if err != nil {
			return "", err
		}
	}
	return "", fmt.Errorf("sanitize: exhausted %d collision attempts for branch %q", maxCollisionAttempts, branch)
}
