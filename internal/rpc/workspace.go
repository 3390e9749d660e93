package rpc

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/xcawolfe-amzn/agentd/internal/gitutil"
	"github.com/xcawolfe-amzn/agentd/internal/idutil"
	"github.com/xcawolfe-amzn/agentd/internal/model"
	"github.com/xcawolfe-amzn/agentd/internal/sanitize"
	"github.com/xcawolfe-amzn/agentd/internal/transport"
	"github.com/xcawolfe-amzn/agentd/internal/util"
)

func registerWorkspaceHandlers(t map[string]handlerFunc) {
	t["list_workspaces"] = handleListWorkspaces
	t["is_workspace_path_dir"] = handleIsWorkspacePathDir
	t["add_workspace"] = handleAddWorkspace
	t["add_clone"] = handleAddClone
	t["add_worktree"] = handleAddWorktree
	t["remove_workspace"] = handleRemoveWorkspace
	t["remove_worktree"] = handleRemoveWorktree
	t["rename_worktree"] = handleRenameWorktree
	t["rename_worktree_upstream"] = handleRenameWorktreeUpstream
	t["apply_worktree_changes"] = handleApplyWorktreeChanges
	t["connect_workspace"] = handleConnectWorkspace
	t["update_workspace_settings"] = handleUpdateWorkspaceSettings
	t["update_workspace_codex_bin"] = handleUpdateWorkspaceCodexBin
}

func handleListWorkspaces(ctx context.Context, d *Dispatcher, params json.RawMessage) (any, error) {
	return d.Store.LoadWorkspaces()
}

type pathParams struct {
	Path string `json:"path"`
}

func handleIsWorkspacePathDir(ctx context.Context, d *Dispatcher, params json.RawMessage) (any, error) {
	var p pathParams
	if err := parseParams(params, &p); err != nil {
		return nil, err
	}
	if _, err := requireString(p.Path, "path"); err != nil {
		return nil, err
	}
	info, err := os.Stat(p.Path)
	return err == nil && info.IsDir(), nil
}

// workspaceEnv resolves the binary and environment for spawning entry's
// agent child, per spec.md §4.C's resolution order.
func (d *Dispatcher) workspaceEnv(entry model.WorkspaceEntry) (bin string, env []string, err error) {
	bin, err = transport.ResolveBinary(entry.CodexBin, d.Config.Agent.DefaultBin, d.Config.Agent.ExtraPathDirs)
	if err != nil {
		return "", nil, err
	}
	codexHome := util.ExpandHome(entry.Settings.CodexHome)
	if codexHome == "" {
		codexHome = filepath.Join(d.DataDir, "codex-home", entry.ID)
	}
	env = transport.ChildEnviron(codexHome, d.Config.Agent.ExtraPathDirs)
	return bin, env, nil
}

// spawnSession starts entry's agent child and registers it, publishing its
// notifications onto the event bus (spec.md §4.C/§4.F wiring).
func (d *Dispatcher) spawnSession(entry model.WorkspaceEntry) error {
	bin, env, err := d.workspaceEnv(entry)
	if err != nil {
		return err
	}
	sess, err := transport.Spawn(transport.SpawnOptions{
		WorkspaceID: entry.ID,
		Bin:         bin,
		Dir:         entry.Path,
		Env:         env,
		Sink: func(n transport.Notification) {
			if d.Bus != nil {
				d.Bus.Publish(model.Event{
					Kind:        model.EventAppServer,
					WorkspaceID: n.WorkspaceID,
					Message:     n,
				})
			}
		},
	})
	if err != nil {
		return err
	}
	d.Sessions.Insert(entry.ID, sess, entry.ParentID)
	return nil
}

func handleConnectWorkspace(ctx context.Context, d *Dispatcher, params json.RawMessage) (any, error) {
	var p struct {
		WorkspaceID string `json:"workspace_id"`
	}
	if err := parseParams(params, &p); err != nil {
		return nil, err
	}
	if _, err := requireString(p.WorkspaceID, "workspace_id"); err != nil {
		return nil, err
	}

	d.workspacesMu.Lock()
	defer d.workspacesMu.Unlock()

	entries, err := d.Store.LoadWorkspaces()
	if err != nil {
		return nil, err
	}
	entry, _, err := d.findWorkspace(entries, p.WorkspaceID)
	if err != nil {
		return nil, err
	}
	if _, ok := d.Sessions.Get(entry.ID); ok {
		return map[string]bool{"connected": true}, nil
	}
	if err := d.spawnSession(entry); err != nil {
		return nil, err
	}
	return map[string]bool{"connected": true}, nil
}

type addWorkspaceParams struct {
	Name     string                   `json:"name"`
	Path     string                   `json:"path"`
	CodexBin string                   `json:"codex_bin,omitempty"`
	Settings model.WorkspaceSettings  `json:"settings,omitempty"`
}

func handleAddWorkspace(ctx context.Context, d *Dispatcher, params json.RawMessage) (any, error) {
	var p addWorkspaceParams
	if err := parseParams(params, &p); err != nil {
		return nil, err
	}
	if _, err := requireString(p.Path, "path"); err != nil {
		return nil, err
	}

	d.workspacesMu.Lock()
	defer d.workspacesMu.Unlock()

	entries, err := d.Store.LoadWorkspaces()
	if err != nil {
		return nil, err
	}

	entry := model.WorkspaceEntry{
		ID:       idutil.NewWorkspaceID(),
		Name:     nameOrBase(p.Name, p.Path),
		Path:     p.Path,
		CodexBin: p.CodexBin,
		Kind:     model.KindMain,
		Settings: p.Settings,
	}
	entries = append(entries, entry)
	if err := d.Store.SaveWorkspaces(entries); err != nil {
		return nil, err
	}
	return entry, nil
}

func nameOrBase(name, path string) string {
	if name != "" {
		return name
	}
	return filepath.Base(path)
}

type addCloneParams struct {
	Name      string `json:"name"`
	SourceURL string `json:"source_url"`
	DestPath  string `json:"dest_path"`
	Reference string `json:"reference,omitempty"`
}

func handleAddClone(ctx context.Context, d *Dispatcher, params json.RawMessage) (any, error) {
	var p addCloneParams
	if err := parseParams(params, &p); err != nil {
		return nil, err
	}
	if _, err := requireString(p.SourceURL, "source_url"); err != nil {
		return nil, err
	}
	if _, err := requireString(p.DestPath, "dest_path"); err != nil {
		return nil, err
	}

	d.workspacesMu.Lock()
	defer d.workspacesMu.Unlock()

	g := gitutil.NewGit(filepath.Dir(p.DestPath))
	reference := p.Reference
	if reference == "" {
		reference = p.SourceURL
	}
	if err := g.CloneWithReference(p.SourceURL, p.DestPath, reference); err != nil {
		return nil, fmt.Errorf("add_clone: %w", err)
	}

	entries, err := d.Store.LoadWorkspaces()
	if err != nil {
		_ = os.RemoveAll(p.DestPath)
		return nil, err
	}
	entry := model.WorkspaceEntry{
		ID:   idutil.NewWorkspaceID(),
		Name: nameOrBase(p.Name, p.DestPath),
		Path: p.DestPath,
		Kind: model.KindMain,
	}
	entries = append(entries, entry)
	if err := d.Store.SaveWorkspaces(entries); err != nil {
		_ = os.RemoveAll(p.DestPath)
		return nil, err
	}
	return entry, nil
}

type addWorktreeParams struct {
	ParentID   string `json:"parent_workspace_id"`
	Branch     string `json:"branch"`
	StartPoint string `json:"start_point,omitempty"`
}

func handleAddWorktree(ctx context.Context, d *Dispatcher, params json.RawMessage) (any, error) {
	var p addWorktreeParams
	if err := parseParams(params, &p); err != nil {
		return nil, err
	}
	if _, err := requireString(p.ParentID, "parent_workspace_id"); err != nil {
		return nil, err
	}
	if _, err := requireString(p.Branch, "branch"); err != nil {
		return nil, err
	}

	d.workspacesMu.Lock()
	defer d.workspacesMu.Unlock()

	entries, err := d.Store.LoadWorkspaces()
	if err != nil {
		return nil, err
	}
	parent, _, err := d.findWorkspace(entries, p.ParentID)
	if err != nil {
		return nil, err
	}

	worktreesRoot := filepath.Join(d.DataDir, "worktrees", parent.ID)
	if err := os.MkdirAll(worktreesRoot, 0o755); err != nil {
		return nil, err
	}
	dirName, err := sanitize.UniqueWorktreeDir(worktreesRoot, p.Branch)
	if err != nil {
		return nil, err
	}
	worktreePath := filepath.Join(worktreesRoot, dirName)

	startPoint := p.StartPoint
	if startPoint == "" {
		startPoint = "HEAD"
	}
	g := gitutil.NewGit(parent.Path)
	if err := g.WorktreeAddFromRef(worktreePath, p.Branch, startPoint); err != nil {
		return nil, fmt.Errorf("add_worktree: %w", err)
	}

	entry := model.WorkspaceEntry{
		ID:       idutil.NewWorkspaceID(),
		Name:     p.Branch,
		Path:     worktreePath,
		Kind:     model.KindWorktree,
		ParentID: parent.ID,
		Worktree: &model.WorktreeInfo{Branch: p.Branch},
	}
	entries = append(entries, entry)
	if err := d.Store.SaveWorkspaces(entries); err != nil {
		_ = g.WorktreeRemove(worktreePath, true)
		return nil, err
	}
	return entry, nil
}

type workspaceIDParams struct {
	WorkspaceID string `json:"workspace_id"`
}

func handleRemoveWorkspace(ctx context.Context, d *Dispatcher, params json.RawMessage) (any, error) {
	var p workspaceIDParams
	if err := parseParams(params, &p); err != nil {
		return nil, err
	}
	if _, err := requireString(p.WorkspaceID, "workspace_id"); err != nil {
		return nil, err
	}

	d.workspacesMu.Lock()
	defer d.workspacesMu.Unlock()

	entries, err := d.Store.LoadWorkspaces()
	if err != nil {
		return nil, err
	}
	main, mainIdx, err := d.findWorkspace(entries, p.WorkspaceID)
	if err != nil {
		return nil, err
	}

	var removedPaths []string
	preKill := func(worktreeID string) error {
		wt, _, err := d.findWorkspace(entries, worktreeID)
		if err != nil {
			return nil // already gone from the persisted list; nothing to remove at the git layer
		}
		g := gitutil.NewGit(main.Path)
		if err := g.WorktreeRemove(wt.Path, true); err != nil {
			return fmt.Errorf("remove worktree %s: %w", wt.Path, err)
		}
		removedPaths = append(removedPaths, wt.Path)
		return nil
	}

	if err := d.Sessions.KillCascade(main.ID, preKill); err != nil {
		// Best-effort rollback: nothing was removed from the git layer that
		// preKill didn't already successfully remove, and the main entry
		// stays in the persisted list per spec.md §4.D's cascade contract.
		return nil, err
	}

	remaining := entries[:0:0]
	for _, e := range entries {
		if e.ID == main.ID || e.ParentID == main.ID {
			continue
		}
		remaining = append(remaining, e)
	}
	_ = mainIdx
	if err := d.Store.SaveWorkspaces(remaining); err != nil {
		return nil, err
	}
	return map[string]bool{"removed": true}, nil
}

func handleRemoveWorktree(ctx context.Context, d *Dispatcher, params json.RawMessage) (any, error) {
	var p workspaceIDParams
	if err := parseParams(params, &p); err != nil {
		return nil, err
	}
	if _, err := requireString(p.WorkspaceID, "workspace_id"); err != nil {
		return nil, err
	}

	d.workspacesMu.Lock()
	defer d.workspacesMu.Unlock()

	entries, err := d.Store.LoadWorkspaces()
	if err != nil {
		return nil, err
	}
	wt, _, err := d.findWorkspace(entries, p.WorkspaceID)
	if err != nil {
		return nil, err
	}
	parent, _, err := d.findWorkspace(entries, wt.ParentID)
	if err != nil {
		return nil, err
	}

	g := gitutil.NewGit(parent.Path)
	if err := g.WorktreeRemove(wt.Path, true); err != nil {
		return nil, fmt.Errorf("remove_worktree: %w", err)
	}
	if err := d.Sessions.Kill(wt.ID); err != nil {
		return nil, err
	}

	var remaining []model.WorkspaceEntry
	for _, e := range entries {
		if e.ID != wt.ID {
			remaining = append(remaining, e)
		}
	}
	if err := d.Store.SaveWorkspaces(remaining); err != nil {
		return nil, err
	}
	return map[string]bool{"removed": true}, nil
}

type renameWorktreeParams struct {
	WorkspaceID string `json:"workspace_id"`
	NewName     string `json:"new_name"`
}

func handleRenameWorktree(ctx context.Context, d *Dispatcher, params json.RawMessage) (any, error) {
	var p renameWorktreeParams
	if err := parseParams(params, &p); err != nil {
		return nil, err
	}
	if _, err := requireString(p.WorkspaceID, "workspace_id"); err != nil {
		return nil, err
	}
	if _, err := requireString(p.NewName, "new_name"); err != nil {
		return nil, err
	}

	d.workspacesMu.Lock()
	defer d.workspacesMu.Unlock()

	entries, err := d.Store.LoadWorkspaces()
	if err != nil {
		return nil, err
	}
	wt, idx, err := d.findWorkspace(entries, p.WorkspaceID)
	if err != nil {
		return nil, err
	}
	if !wt.IsWorktree() {
		return nil, fmt.Errorf("Not a worktree workspace.")
	}

	worktreesRoot := filepath.Dir(wt.Path)
	newDirName, err := sanitize.UniqueWorktreeDir(worktreesRoot, p.NewName)
	if err != nil {
		return nil, err
	}
	newPath := filepath.Join(worktreesRoot, newDirName)

	parent, _, err := d.findWorkspace(entries, wt.ParentID)
	if err != nil {
		return nil, err
	}
	g := gitutil.NewGit(parent.Path)
	if err := g.WorktreeMove(wt.Path, newPath); err != nil {
		return nil, fmt.Errorf("rename_worktree: %w", err)
	}

	entries[idx].Path = newPath
	entries[idx].Name = p.NewName
	if err := d.Store.SaveWorkspaces(entries); err != nil {
		_ = g.WorktreeMove(newPath, wt.Path) // best-effort revert
		return nil, err
	}
	return entries[idx], nil
}

type renameWorktreeUpstreamParams struct {
	WorkspaceID string `json:"workspace_id"`
	NewBranch   string `json:"new_branch"`
}

func handleRenameWorktreeUpstream(ctx context.Context, d *Dispatcher, params json.RawMessage) (any, error) {
	var p renameWorktreeUpstreamParams
	if err := parseParams(params, &p); err != nil {
		return nil, err
	}
	if _, err := requireString(p.WorkspaceID, "workspace_id"); err != nil {
		return nil, err
	}
	if _, err := requireString(p.NewBranch, "new_branch"); err != nil {
		return nil, err
	}

	d.workspacesMu.Lock()
	defer d.workspacesMu.Unlock()

	entries, err := d.Store.LoadWorkspaces()
	if err != nil {
		return nil, err
	}
	wt, idx, err := d.findWorkspace(entries, p.WorkspaceID)
	if err != nil {
		return nil, err
	}
	if !wt.IsWorktree() || wt.Worktree == nil {
		return nil, fmt.Errorf("Not a worktree workspace.")
	}

	oldBranch := wt.Worktree.Branch
	g := gitutil.NewGit(wt.Path)
	if err := g.RenameBranch(oldBranch, p.NewBranch); err != nil {
		return nil, fmt.Errorf("rename_worktree_upstream: %w", err)
	}

	entries[idx].Worktree.Branch = p.NewBranch
	if err := d.Store.SaveWorkspaces(entries); err != nil {
		_ = g.RenameBranch(p.NewBranch, oldBranch) // best-effort revert
		return nil, err
	}
	return entries[idx], nil
}

type applyWorktreeChangesParams struct {
	WorkspaceID string `json:"workspace_id"`
	CommitMessage string `json:"commit_message,omitempty"`
}

// handleApplyWorktreeChanges commits any uncommitted changes in the
// worktree (if a commit_message is given) and merges its branch into the
// parent workspace's current branch, reporting conflicting files without
// leaving a half-merged tree: a conflict aborts the merge so the parent's
// working tree is exactly as it was found.
func handleApplyWorktreeChanges(ctx context.Context, d *Dispatcher, params json.RawMessage) (any, error) {
	var p applyWorktreeChangesParams
	if err := parseParams(params, &p); err != nil {
		return nil, err
	}
	if _, err := requireString(p.WorkspaceID, "workspace_id"); err != nil {
		return nil, err
	}

	d.workspacesMu.Lock()
	defer d.workspacesMu.Unlock()

	entries, err := d.Store.LoadWorkspaces()
	if err != nil {
		return nil, err
	}
	wt, _, err := d.findWorkspace(entries, p.WorkspaceID)
	if err != nil {
		return nil, err
	}
	if !wt.IsWorktree() || wt.Worktree == nil {
		return nil, fmt.Errorf("Not a worktree workspace.")
	}
	parent, _, err := d.findWorkspace(entries, wt.ParentID)
	if err != nil {
		return nil, err
	}

	wtGit := gitutil.NewGit(wt.Path)
	if p.CommitMessage != "" {
		if has, err := wtGit.HasUncommittedChanges(); err == nil && has {
			if err := wtGit.Add("."); err != nil {
				return nil, fmt.Errorf("apply_worktree_changes: %w", err)
			}
			if err := wtGit.Commit(p.CommitMessage); err != nil {
				return nil, fmt.Errorf("apply_worktree_changes: %w", err)
			}
		}
	}

	parentGit := gitutil.NewGit(parent.Path)
	parentBranch, err := parentGit.CurrentBranch()
	if err != nil {
		return nil, err
	}
	conflicts, err := parentGit.CheckConflicts(wt.Worktree.Branch, parentBranch)
	if err != nil {
		return nil, err
	}
	if len(conflicts) > 0 {
		return map[string]any{"applied": false, "conflicts": conflicts}, nil
	}
	if err := parentGit.Merge(wt.Worktree.Branch); err != nil {
		return nil, fmt.Errorf("apply_worktree_changes: %w", err)
	}
	return map[string]any{"applied": true, "conflicts": []string{}}, nil
}

type updateWorkspaceSettingsParams struct {
	WorkspaceID string                  `json:"workspace_id"`
	Settings    model.WorkspaceSettings `json:"settings"`
}

func handleUpdateWorkspaceSettings(ctx context.Context, d *Dispatcher, params json.RawMessage) (any, error) {
	var p updateWorkspaceSettingsParams
	if err := parseParams(params, &p); err != nil {
		return nil, err
	}
	if _, err := requireString(p.WorkspaceID, "workspace_id"); err != nil {
		return nil, err
	}

	d.workspacesMu.Lock()
	defer d.workspacesMu.Unlock()

	entries, err := d.Store.LoadWorkspaces()
	if err != nil {
		return nil, err
	}
	_, idx, err := d.findWorkspace(entries, p.WorkspaceID)
	if err != nil {
		return nil, err
	}
	entries[idx].Settings = p.Settings
	if err := d.Store.SaveWorkspaces(entries); err != nil {
		return nil, err
	}
	return entries[idx], nil
}

type updateWorkspaceCodexBinParams struct {
	WorkspaceID string `json:"workspace_id"`
	CodexBin    string `json:"codex_bin"`
}

func handleUpdateWorkspaceCodexBin(ctx context.Context, d *Dispatcher, params json.RawMessage) (any, error) {
	var p updateWorkspaceCodexBinParams
	if err := parseParams(params, &p); err != nil {
		return nil, err
	}
	if _, err := requireString(p.WorkspaceID, "workspace_id"); err != nil {
		return nil, err
	}

	d.workspacesMu.Lock()
	defer d.workspacesMu.Unlock()

	entries, err := d.Store.LoadWorkspaces()
	if err != nil {
		return nil, err
	}
	_, idx, err := d.findWorkspace(entries, p.WorkspaceID)
	if err != nil {
		return nil, err
	}
	entries[idx].CodexBin = p.CodexBin
	if err := d.Store.SaveWorkspaces(entries); err != nil {
		return nil, err
	}
	return entries[idx], nil
}
