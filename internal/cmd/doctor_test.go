package cmd

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/xcawolfe-amzn/agentd/internal/config"
)

func TestCheckDataDirExistsMissing(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "missing")
	ok, _ := checkDataDirExists(dir, config.Defaults())
	if ok {
		t.Fatal("expected false for a directory that does not exist")
	}
}

func TestCheckDataDirExistsPresent(t *testing.T) {
	dir := t.TempDir()
	ok, _ := checkDataDirExists(dir, config.Defaults())
	if !ok {
		t.Fatal("expected true for an existing directory")
	}
}

func TestCheckLockHeldFailsWithNoDaemonRunning(t *testing.T) {
	dir := t.TempDir()
	ok, detail := checkLockHeld(dir, config.Defaults())
	if ok {
		t.Fatalf("expected false when no daemon holds the lock, detail=%q", detail)
	}
}

func TestCheckWorkspacesReadableMissingFileOK(t *testing.T) {
	dir := t.TempDir()
	ok, _ := checkWorkspacesReadable(dir, config.Defaults())
	if !ok {
		t.Fatal("expected true when workspaces.json doesn't exist yet")
	}
}

func TestCheckWorkspacesReadableInvalidJSON(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "workspaces.json"), []byte("not json"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	ok, _ := checkWorkspacesReadable(dir, config.Defaults())
	if ok {
		t.Fatal("expected false for invalid JSON")
	}
}

func TestCheckWorkspacesReadableValidJSON(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "workspaces.json"), []byte("[]"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	ok, _ := checkWorkspacesReadable(dir, config.Defaults())
	if !ok {
		t.Fatal("expected true for valid JSON")
	}
}

func TestCheckListenerReachableRefused(t *testing.T) {
	cfg := config.Defaults()
	cfg.Network.Listen = "127.0.0.1:1" // reserved, nothing should be listening
	ok, _ := checkListenerReachable(t.TempDir(), cfg)
	if ok {
		t.Fatal("expected false when nothing is listening")
	}
}
