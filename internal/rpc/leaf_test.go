package rpc

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/xcawolfe-amzn/agentd/internal/model"
)

func seedWorkspace(t *testing.T, d *Dispatcher, path string) string {
	t.Helper()
	entry := model.WorkspaceEntry{ID: "w1", Name: "demo", Path: path, Kind: model.KindMain}
	if err := d.Store.SaveWorkspaces([]model.WorkspaceEntry{entry}); err != nil {
		t.Fatalf("SaveWorkspaces: %v", err)
	}
	return entry.ID
}

func TestListMarkdownFilesMissingDirIsEmpty(t *testing.T) {
	got, err := listMarkdownFiles(filepath.Join(t.TempDir(), "nope"))
	if err != nil {
		t.Fatalf("listMarkdownFiles: %v", err)
	}
	m := got.(map[string]any)
	files := m["files"].([]string)
	if len(files) != 0 {
		t.Fatalf("got %v, want empty", files)
	}
}

func TestListMarkdownFilesFiltersAndSorts(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"b.md", "a.md", "notes.txt"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644); err != nil {
			t.Fatalf("WriteFile: %v", err)
		}
	}
	got, err := listMarkdownFiles(dir)
	if err != nil {
		t.Fatalf("listMarkdownFiles: %v", err)
	}
	files := got.(map[string]any)["files"].([]string)
	if len(files) != 2 || files[0] != "a.md" || files[1] != "b.md" {
		t.Fatalf("got %v, want [a.md b.md]", files)
	}
}

func TestReadContainedFileRejectsEscape(t *testing.T) {
	root := t.TempDir()
	if _, err := readContainedFile(root, "../outside.md"); err == nil {
		t.Fatal("expected an error for a path escaping root")
	}
}

func TestReadContainedFileReadsWithinRoot(t *testing.T) {
	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, "note.md"), []byte("hello"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	got, err := readContainedFile(root, "note.md")
	if err != nil {
		t.Fatalf("readContainedFile: %v", err)
	}
	m := got.(map[string]any)
	if m["content"] != "hello" {
		t.Fatalf("got content %v, want hello", m["content"])
	}
}

func TestHandleLocalUsageReportsConnectedCount(t *testing.T) {
	d := newTestDispatcher(t)
	got, err := handleLocalUsage(context.Background(), d, nil)
	if err != nil {
		t.Fatalf("handleLocalUsage: %v", err)
	}
	m := got.(map[string]any)
	if m["connected_sessions"] != 0 {
		t.Fatalf("got %v, want 0 with no sessions registered", m["connected_sessions"])
	}
}

func TestHandleLifeDailyNoteCreatesFileOnFirstAccess(t *testing.T) {
	d := newTestDispatcher(t)
	wsPath := t.TempDir()
	id := seedWorkspace(t, d, wsPath)

	params, _ := json.Marshal(workspaceIDParams{WorkspaceID: id})
	got, err := handleLifeDailyNote(context.Background(), d, params)
	if err != nil {
		t.Fatalf("handleLifeDailyNote: %v", err)
	}
	m := got.(map[string]any)
	if m["truncated"] != false {
		t.Fatalf("got truncated=%v, want false", m["truncated"])
	}
	if _, err := os.Stat(m["path"].(string)); err != nil {
		t.Fatalf("expected the daily note file to exist: %v", err)
	}
}

func TestHandleRememberApprovalRuleAppendsLine(t *testing.T) {
	d := newTestDispatcher(t)
	id := seedWorkspace(t, d, t.TempDir())

	params, _ := json.Marshal(rememberApprovalRuleParams{WorkspaceID: id, Rule: "allow npm test"})
	if _, err := handleRememberApprovalRule(context.Background(), d, params); err != nil {
		t.Fatalf("handleRememberApprovalRule: %v", err)
	}

	codexHome, err := d.codexHomeFor(id)
	if err != nil {
		t.Fatalf("codexHomeFor: %v", err)
	}
	data, err := os.ReadFile(filepath.Join(codexHome, "approval_rules.txt"))
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if string(data) != "allow npm test\n" {
		t.Fatalf("got %q, want %q", data, "allow npm test\n")
	}
}

func TestHandleRememberApprovalRuleRequiresRule(t *testing.T) {
	d := newTestDispatcher(t)
	id := seedWorkspace(t, d, t.TempDir())
	params, _ := json.Marshal(rememberApprovalRuleParams{WorkspaceID: id, Rule: ""})
	if _, err := handleRememberApprovalRule(context.Background(), d, params); err == nil {
		t.Fatal("expected an error for a missing rule")
	}
}
