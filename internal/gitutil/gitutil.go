// Package gitutil shells out to the git binary for the workspace-lifecycle
// operations named in spec.md §4.I: cloning a main workspace, adding and
// removing worktrees, renaming a worktree and its upstream branch, and
// checking a worktree for uncommitted changes before a destructive op.
// Grounded in the teacher's internal/git package, whose Git/GitError API
// survives in this tree only as a test suite (internal/git/git_test.go,
// interface_test.go) — the wrapper shape below reconstructs that API.
package gitutil

import (
	"bytes"
	"fmt"
	"os/exec"
	"strings"
)

// GitError wraps a failed git invocation with its raw stderr, so callers
// (the RPC layer) can forward the message to an agent or human without
// Go code guessing at what "not a git repository" or "already exists"
// means. ZFC: let the caller interpret stderr, don't classify it here.
type GitError struct {
	Args   []string
	Stderr string
	Err    error
}

func (e *GitError) Error() string {
	if e.Stderr != "" {
		return fmt.Sprintf("git %s: %s", strings.Join(e.Args, " "), e.Stderr)
	}
	return fmt.Sprintf("git %s: %v", strings.Join(e.Args, " "), e.Err)
}

func (e *GitError) Unwrap() error { return e.Err }

// Git runs git commands against a working directory, optionally against an
// explicit --git-dir (used for bare repositories).
type Git struct {
	dir    string
	gitDir string
}

// NewGit returns a Git rooted at dir (dir is passed as the command's
// working directory).
func NewGit(dir string) *Git {
	return &Git{dir: dir}
}

// NewGitWithDir returns a Git that always passes --git-dir=gitDir, for
// operating on a bare repository from outside its worktree.
func NewGitWithDir(dir, gitDir string) *Git {
	return &Git{dir: dir, gitDir: gitDir}
}

func (g *Git) run(args ...string) (string, error) {
	full := args
	if g.gitDir != "" {
		full = append([]string{"--git-dir", g.gitDir}, args...)
	}
	cmd := exec.Command("git", full...)
	cmd.Dir = g.dir
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return "", &GitError{Args: full, Stderr: strings.TrimSpace(stderr.String()), Err: err}
	}
	return stdout.String(), nil
}

// IsRepo reports whether dir is inside a git working tree.
func (g *Git) IsRepo() bool {
	_, err := g.run("rev-parse", "--git-dir")
	return err == nil
}

// CloneWithReference clones src into dst using --reference to share object
// storage (and --dissociate-free alternates are NOT used: the alternates
// file is kept deliberately, per the teacher's TestCloneWithReferenceCreatesAlternates).
func (g *Git) CloneWithReference(src, dst, reference string) error {
	_, err := g.run("clone", "--reference", reference, src, dst)
	return err
}

// CloneBare clones src into dst as a bare repository, adds an origin/*
// fetch refspec and fetches so that origin/* refs exist immediately (a
// bare clone alone configures no remote-tracking refspec).
func (g *Git) CloneBare(src, dst string) error {
	if _, err := g.run("clone", "--bare", src, dst); err != nil {
		return err
	}
	bare := NewGitWithDir(g.dir, dst)
	if _, err := bare.run("config", "remote.origin.fetch", "+refs/heads/*:refs/remotes/origin/*"); err != nil {
		return err
	}
	_, err := bare.run("fetch", "origin")
	return err
}

// WorktreeAddFromRef adds a new worktree at path on a new branch created
// from startPoint (typically an origin/<branch> ref).
func (g *Git) WorktreeAddFromRef(path, branch, startPoint string) error {
	_, err := g.run("worktree", "add", "-b", branch, path, startPoint)
	return err
}

// WorktreeRemove removes the worktree at path. force removes it even with
// uncommitted changes present.
func (g *Git) WorktreeRemove(path string, force bool) error {
	args := []string{"worktree", "remove"}
	if force {
		args = append(args, "--force")
	}
	args = append(args, path)
	_, err := g.run(args...)
	return err
}

// WorktreeMove relocates a worktree's checkout directory without touching
// its branch, used by rename_worktree.
func (g *Git) WorktreeMove(oldPath, newPath string) error {
	_, err := g.run("worktree", "move", oldPath, newPath)
	return err
}

// RenameBranch renames branch oldName to newName, used by rename_worktree_upstream
// before a subsequent push -u re-establishes the upstream under the new name.
func (g *Git) RenameBranch(oldName, newName string) error {
	_, err := g.run("branch", "-m", oldName, newName)
	return err
}

// CurrentBranch returns the checked-out branch name.
func (g *Git) CurrentBranch() (string, error) {
	out, err := g.run("branch", "--show-current")
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}

// CreateBranch creates a new branch at HEAD without checking it out.
func (g *Git) CreateBranch(name string) error {
	_, err := g.run("branch", name)
	return err
}

// Checkout switches the working tree to ref.
func (g *Git) Checkout(ref string) error {
	_, err := g.run("checkout", ref)
	return err
}

// Rev resolves ref to a full commit hash.
func (g *Git) Rev(ref string) (string, error) {
	out, err := g.run("rev-parse", ref)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}

// Merge merges branch into the current branch.
func (g *Git) Merge(branch string) error {
	_, err := g.run("merge", "--no-edit", branch)
	return err
}

// Add stages paths (relative to dir).
func (g *Git) Add(paths ...string) error {
	args := append([]string{"add"}, paths...)
	_, err := g.run(args...)
	return err
}

// Commit creates a commit with message.
func (g *Git) Commit(message string) error {
	_, err := g.run("commit", "-m", message)
	return err
}

// Status reports whether the working tree is clean and lists untracked
// files, used by apply_worktree_changes to decide whether there is
// anything to apply and by the git-status reporting (the git_status RPC
// and the auto-memory snapshot).
type Status struct {
	Clean     bool
	Untracked []string
}

func (g *Git) Status() (Status, error) {
	out, err := g.run("status", "--porcelain")
	if err != nil {
		return Status{}, err
	}
	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	var untracked []string
	for _, line := range lines {
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "?? ") {
			untracked = append(untracked, strings.TrimPrefix(line, "?? "))
		}
	}
	return Status{Clean: strings.TrimSpace(out) == "", Untracked: untracked}, nil
}

// HasUncommittedChanges is a convenience wrapper over Status for the
// apply_worktree_changes precondition.
func (g *Git) HasUncommittedChanges() (bool, error) {
	st, err := g.Status()
	if err != nil {
		return false, err
	}
	return !st.Clean, nil
}

// FetchBranch fetches a single branch from remote.
func (g *Git) FetchBranch(remote, branch string) error {
	_, err := g.run("fetch", remote, branch)
	return err
}

// FetchPrune fetches from remote and removes stale remote-tracking refs.
func (g *Git) FetchPrune(remote string) error {
	_, err := g.run("fetch", "--prune", remote)
	return err
}

// RemoteTrackingBranchExists reports whether remote/branch exists locally.
func (g *Git) RemoteTrackingBranchExists(remote, branch string) (bool, error) {
	_, err := g.run("rev-parse", "--verify", "refs/remotes/"+remote+"/"+branch)
	if err != nil {
		var gitErr *GitError
		if asGitError(err, &gitErr) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func asGitError(err error, target **GitError) bool {
	ge, ok := err.(*GitError)
	if ok {
		*target = ge
	}
	return ok
}

// ListBranches lists local branches matching a glob pattern (e.g. "polecat/*").
func (g *Git) ListBranches(pattern string) ([]string, error) {
	out, err := g.run("for-each-ref", "--format=%(refname:short)", "refs/heads/"+pattern)
	if err != nil {
		return nil, err
	}
	out = strings.TrimSpace(out)
	if out == "" {
		return nil, nil
	}
	return strings.Split(out, "\n"), nil
}

// PrunedBranch records why PruneStaleBranches removed (or would remove) a
// branch.
type PrunedBranch struct {
	Name   string
	Reason string
}

// PruneStaleBranches deletes local branches matching pattern that are
// merged into the current branch and have no remaining remote-tracking ref,
// skipping the currently checked-out branch. dryRun reports what would be
// pruned without deleting anything.
func (g *Git) PruneStaleBranches(pattern string, dryRun bool) ([]PrunedBranch, error) {
	current, err := g.CurrentBranch()
	if err != nil {
		return nil, err
	}
	branches, err := g.ListBranches(pattern)
	if err != nil {
		return nil, err
	}

	var pruned []PrunedBranch
	for _, b := range branches {
		if b == current {
			continue
		}
		if _, err := g.run("merge-base", "--is-ancestor", b, current); err != nil {
			continue // unmerged: skip
		}
		hasRemote, err := g.RemoteTrackingBranchExists("origin", b)
		if err != nil {
			return nil, err
		}
		if hasRemote {
			continue // remote still has it: skip
		}
		pruned = append(pruned, PrunedBranch{Name: b, Reason: "no-remote-merged"})
		if !dryRun {
			if _, err := g.run("branch", "-D", b); err != nil {
				return nil, err
			}
		}
	}
	return pruned, nil
}

// CheckConflicts merges branch into base in a disposable way to discover
// which files would conflict, then restores base's committed state: checks
// out base, attempts a merge of branch with --no-commit --no-ff, collects
// conflicted paths from git status, then aborts the merge (or resets to
// HEAD if no merge was recorded). base is left checked out; a branch that
// was checked out before the call is not restored, and the reset discards
// uncommitted changes present before the call.
func (g *Git) CheckConflicts(branch, base string) ([]string, error) {
	if err := g.Checkout(base); err != nil {
		return nil, err
	}
	_, mergeErr := g.run("merge", "--no-commit", "--no-ff", branch)

	out, statusErr := g.run("status", "--porcelain")
	if statusErr != nil {
		_, _ = g.run("merge", "--abort")
		return nil, statusErr
	}

	var conflicts []string
	for _, line := range strings.Split(strings.TrimRight(out, "\n"), "\n") {
		if len(line) < 3 {
			continue
		}
		if strings.HasPrefix(line, "UU ") || strings.HasPrefix(line, "AA ") ||
			strings.HasPrefix(line, "DD ") || strings.HasPrefix(line, "UA ") ||
			strings.HasPrefix(line, "AU ") {
			conflicts = append(conflicts, strings.TrimSpace(line[3:]))
		}
	}

	if mergeErr != nil {
		_, _ = g.run("merge", "--abort")
	} else {
		_, _ = g.run("reset", "--hard", "HEAD")
	}
	return conflicts, nil
}
