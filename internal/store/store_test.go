package store

import (
	"testing"

	"github.com/xcawolfe-amzn/agentd/internal/model"
)

func TestLoadWorkspacesEmptyOnFreshDir(t *testing.T) {
	s := New(t.TempDir())
	entries, err := s.LoadWorkspaces()
	if err != nil {
		t.Fatalf("LoadWorkspaces: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("got %d entries, want 0", len(entries))
	}
}

func TestWorkspacesRoundTrip(t *testing.T) {
	s := New(t.TempDir())
	want := []model.WorkspaceEntry{
		{ID: "w1", Name: "demo", Path: "/tmp/demo", Kind: model.KindMain},
	}
	if err := s.SaveWorkspaces(want); err != nil {
		t.Fatalf("SaveWorkspaces: %v", err)
	}

	// Fresh Store instance to prove the round trip goes through disk.
	got, err := New(s.dir).LoadWorkspaces()
	if err != nil {
		t.Fatalf("LoadWorkspaces: %v", err)
	}
	if len(got) != 1 || got[0].ID != "w1" || got[0].Path != "/tmp/demo" {
		t.Fatalf("got %+v", got)
	}
}

func TestSettingsRoundTrip(t *testing.T) {
	dir := t.TempDir()
	s := New(dir)
	settings, err := s.LoadSettings()
	if err != nil {
		t.Fatalf("LoadSettings: %v", err)
	}
	settings.Theme = "dark"
	if err := s.SaveSettings(settings); err != nil {
		t.Fatalf("SaveSettings: %v", err)
	}

	got, err := New(dir).LoadSettings()
	if err != nil {
		t.Fatalf("LoadSettings: %v", err)
	}
	if got.Theme != "dark" {
		t.Fatalf("got theme %q, want dark", got.Theme)
	}
}

func TestDomainsSeededOnFirstLoad(t *testing.T) {
	s := New(t.TempDir())
	domains, err := s.LoadDomains()
	if err != nil {
		t.Fatalf("LoadDomains: %v", err)
	}
	if len(domains) == 0 {
		t.Fatal("expected seed domains, got none")
	}

	// Second load must read back exactly what was persisted, not reseed.
	again, err := New(s.dir).LoadDomains()
	if err != nil {
		t.Fatalf("LoadDomains (2nd): %v", err)
	}
	if len(again) != len(domains) {
		t.Fatalf("got %d domains on reload, want %d", len(again), len(domains))
	}
}
