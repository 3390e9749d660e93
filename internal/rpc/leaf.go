package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/xcawolfe-amzn/agentd/internal/gitutil"
	"github.com/xcawolfe-amzn/agentd/internal/model"
	"github.com/xcawolfe-amzn/agentd/internal/util"
)

func nowDate() string {
	return time.Now().Format("2006-01-02")
}

// registerLeafHandlers wires spec.md §4.I's "Git/GitHub/Life/Local-usage/
// Prompts/Skills" category: small, mostly read-only helpers that return
// plain JSON rather than round-tripping through the agent child.
func registerLeafHandlers(t map[string]handlerFunc) {
	t["git_status"] = handleGitStatus
	t["git_list_branches"] = handleGitListBranches
	t["git_prune_branches"] = handleGitPruneBranches

	t["github_pr_status"] = handleGitHubPRStatus
	t["github_repo_view"] = handleGitHubRepoView

	t["life_daily_note"] = handleLifeDailyNote

	t["local_usage"] = handleLocalUsage

	t["prompts_list"] = handlePromptsList
	t["prompts_read"] = handlePromptsRead

	t["skills_local_list"] = handleSkillsLocalList
	t["skills_local_read"] = handleSkillsLocalRead

	t["remember_approval_rule"] = handleRememberApprovalRule
}

func (d *Dispatcher) workspaceByID(id string) (model.WorkspaceEntry, error) {
	entries, err := d.Store.LoadWorkspaces()
	if err != nil {
		return model.WorkspaceEntry{}, err
	}
	e, _, err := d.findWorkspace(entries, id)
	return e, err
}

// codexHomeFor resolves the workspace's CODEX_HOME exactly as
// workspaceEnv does, so leaf helpers that read agent-managed files (rule
// files, prompts) agree with the spawned session's own view of it.
func (d *Dispatcher) codexHomeFor(id string) (string, error) {
	entries, err := d.Store.LoadWorkspaces()
	if err != nil {
		return "", err
	}
	entry, _, err := d.findWorkspace(entries, id)
	if err != nil {
		return "", err
	}
	if home := util.ExpandHome(entry.Settings.CodexHome); home != "" {
		return home, nil
	}
	return filepath.Join(d.DataDir, "codex-home", entry.ID), nil
}

func handleGitStatus(ctx context.Context, d *Dispatcher, params json.RawMessage) (any, error) {
	var p workspaceIDParams
	if err := parseParams(params, &p); err != nil {
		return nil, err
	}
	entry, err := d.workspaceByID(p.WorkspaceID)
	if err != nil {
		return nil, err
	}
	g := gitutil.NewGit(entry.Path)
	status, err := g.Status()
	if err != nil {
		return nil, err
	}
	branch, err := g.CurrentBranch()
	if err != nil {
		return nil, err
	}
	return map[string]any{"branch": branch, "clean": status.Clean, "untracked": status.Untracked}, nil
}

type gitListBranchesParams struct {
	WorkspaceID string `json:"workspace_id"`
	Pattern     string `json:"pattern,omitempty"`
}

func handleGitListBranches(ctx context.Context, d *Dispatcher, params json.RawMessage) (any, error) {
	var p gitListBranchesParams
	if err := parseParams(params, &p); err != nil {
		return nil, err
	}
	entry, err := d.workspaceByID(p.WorkspaceID)
	if err != nil {
		return nil, err
	}
	pattern := p.Pattern
	if pattern == "" {
		pattern = "*"
	}
	branches, err := gitutil.NewGit(entry.Path).ListBranches(pattern)
	if err != nil {
		return nil, err
	}
	return map[string]any{"branches": branches}, nil
}

type gitPruneBranchesParams struct {
	WorkspaceID string `json:"workspace_id"`
	Pattern     string `json:"pattern,omitempty"`
	DryRun      bool   `json:"dry_run"`
}

func handleGitPruneBranches(ctx context.Context, d *Dispatcher, params json.RawMessage) (any, error) {
	var p gitPruneBranchesParams
	if err := parseParams(params, &p); err != nil {
		return nil, err
	}
	entry, err := d.workspaceByID(p.WorkspaceID)
	if err != nil {
		return nil, err
	}
	pattern := p.Pattern
	if pattern == "" {
		pattern = "*"
	}
	pruned, err := gitutil.NewGit(entry.Path).PruneStaleBranches(pattern, p.DryRun)
	if err != nil {
		return nil, err
	}
	return map[string]any{"pruned": pruned}, nil
}

// runGH shells out to the gh CLI the same way internal/gitutil shells out
// to git: no GitHub SDK is vendored anywhere in this module's ancestry, so
// PR/repo state is read from the already-authenticated gh binary a
// developer's shell has configured.
func runGH(ctx context.Context, dir string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, "gh", args...)
	cmd.Dir = dir
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("gh %s: %s", strings.Join(args, " "), strings.TrimSpace(stderr.String()))
	}
	return stdout.Bytes(), nil
}

func handleGitHubPRStatus(ctx context.Context, d *Dispatcher, params json.RawMessage) (any, error) {
	var p workspaceIDParams
	if err := parseParams(params, &p); err != nil {
		return nil, err
	}
	entry, err := d.workspaceByID(p.WorkspaceID)
	if err != nil {
		return nil, err
	}
	out, err := runGH(ctx, entry.Path, "pr", "status", "--json", "number,title,state,url")
	if err != nil {
		return nil, err
	}
	var result any
	if err := json.Unmarshal(out, &result); err != nil {
		return string(out), nil
	}
	return result, nil
}

func handleGitHubRepoView(ctx context.Context, d *Dispatcher, params json.RawMessage) (any, error) {
	var p workspaceIDParams
	if err := parseParams(params, &p); err != nil {
		return nil, err
	}
	entry, err := d.workspaceByID(p.WorkspaceID)
	if err != nil {
		return nil, err
	}
	out, err := runGH(ctx, entry.Path, "repo", "view", "--json", "name,owner,url,defaultBranchRef")
	if err != nil {
		return nil, err
	}
	var result any
	if err := json.Unmarshal(out, &result); err != nil {
		return string(out), nil
	}
	return result, nil
}

// handleLifeDailyNote returns the path and contents of today's daily note
// under a "life" workspace's obsidian_root, creating an empty file on
// first access so the client always has something to open.
func handleLifeDailyNote(ctx context.Context, d *Dispatcher, params json.RawMessage) (any, error) {
	var p workspaceIDParams
	if err := parseParams(params, &p); err != nil {
		return nil, err
	}
	entry, err := d.workspaceByID(p.WorkspaceID)
	if err != nil {
		return nil, err
	}
	root := util.ExpandHome(entry.Settings.ObsidianRoot)
	if root == "" {
		root = entry.Path
	}
	name := nowDate() + ".md"
	path := filepath.Join(root, name)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		if err := os.MkdirAll(root, 0o755); err != nil {
			return nil, err
		}
		if err := os.WriteFile(path, []byte("# "+nowDate()+"\n"), 0o644); err != nil {
			return nil, err
		}
	}
	content, truncated, err := util.BoundedRead(path)
	if err != nil {
		return nil, err
	}
	return map[string]any{"path": path, "content": content, "truncated": truncated}, nil
}

func handleLocalUsage(ctx context.Context, d *Dispatcher, params json.RawMessage) (any, error) {
	return map[string]any{
		"connected_sessions": d.Sessions.Len(),
	}, nil
}

type workspacePathParams struct {
	WorkspaceID string `json:"workspace_id"`
	Path        string `json:"path,omitempty"`
}

func handlePromptsList(ctx context.Context, d *Dispatcher, params json.RawMessage) (any, error) {
	var p workspaceIDParams
	if err := parseParams(params, &p); err != nil {
		return nil, err
	}
	codexHome, err := d.codexHomeFor(p.WorkspaceID)
	if err != nil {
		return nil, err
	}
	return listMarkdownFiles(filepath.Join(codexHome, "prompts"))
}

func handlePromptsRead(ctx context.Context, d *Dispatcher, params json.RawMessage) (any, error) {
	var p workspacePathParams
	if err := parseParams(params, &p); err != nil {
		return nil, err
	}
	if _, err := requireString(p.Path, "path"); err != nil {
		return nil, err
	}
	codexHome, err := d.codexHomeFor(p.WorkspaceID)
	if err != nil {
		return nil, err
	}
	return readContainedFile(filepath.Join(codexHome, "prompts"), p.Path)
}

func handleSkillsLocalList(ctx context.Context, d *Dispatcher, params json.RawMessage) (any, error) {
	var p workspaceIDParams
	if err := parseParams(params, &p); err != nil {
		return nil, err
	}
	entry, err := d.workspaceByID(p.WorkspaceID)
	if err != nil {
		return nil, err
	}
	return listMarkdownFiles(filepath.Join(entry.Path, ".agentd", "skills"))
}

func handleSkillsLocalRead(ctx context.Context, d *Dispatcher, params json.RawMessage) (any, error) {
	var p workspacePathParams
	if err := parseParams(params, &p); err != nil {
		return nil, err
	}
	if _, err := requireString(p.Path, "path"); err != nil {
		return nil, err
	}
	entry, err := d.workspaceByID(p.WorkspaceID)
	if err != nil {
		return nil, err
	}
	return readContainedFile(filepath.Join(entry.Path, ".agentd", "skills"), p.Path)
}

// listMarkdownFiles lists the .md files directly under root, returning an
// empty list (not an error) when root doesn't exist yet.
func listMarkdownFiles(root string) (any, error) {
	entries, err := os.ReadDir(root)
	if os.IsNotExist(err) {
		return map[string]any{"files": []string{}}, nil
	}
	if err != nil {
		return nil, err
	}
	var files []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".md") {
			files = append(files, e.Name())
		}
	}
	sort.Strings(files)
	return map[string]any{"files": files}, nil
}

// readContainedFile implements spec.md §4.J's bounded, root-contained
// file read, used by every leaf helper that serves a file's contents.
func readContainedFile(root, requestedPath string) (any, error) {
	full, err := util.ContainPath(root, requestedPath)
	if err != nil {
		return nil, err
	}
	content, truncated, err := util.BoundedRead(full)
	if err != nil {
		return nil, err
	}
	return map[string]any{"path": requestedPath, "content": content, "truncated": truncated}, nil
}

type rememberApprovalRuleParams struct {
	WorkspaceID string `json:"workspace_id"`
	Rule        string `json:"rule"`
}

// handleRememberApprovalRule appends rule, one per line, to a per-workspace
// rules file resolved through CODEX_HOME (spec.md §4.I's approval rule
// memory category).
func handleRememberApprovalRule(ctx context.Context, d *Dispatcher, params json.RawMessage) (any, error) {
	var p rememberApprovalRuleParams
	if err := parseParams(params, &p); err != nil {
		return nil, err
	}
	if _, err := requireString(p.WorkspaceID, "workspace_id"); err != nil {
		return nil, err
	}
	if _, err := requireString(p.Rule, "rule"); err != nil {
		return nil, err
	}
	codexHome, err := d.codexHomeFor(p.WorkspaceID)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(codexHome, 0o755); err != nil {
		return nil, err
	}
	rulesPath := filepath.Join(codexHome, "approval_rules.txt")
	f, err := os.OpenFile(rulesPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	if _, err := f.WriteString(p.Rule + "\n"); err != nil {
		return nil, err
	}
	return map[string]bool{"ok": true}, nil
}
