package config

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(t.TempDir())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	want := Defaults()
	if !reflect.DeepEqual(cfg, want) {
		t.Fatalf("got %+v, want %+v", cfg, want)
	}
}

func TestLoadOverlaysFileOverDefaults(t *testing.T) {
	dir := t.TempDir()
	contents := `
[agent]
default_bin = "/opt/codex/bin/codex"
extra_path_dirs = ["/opt/homebrew/bin"]

[network]
listen = "0.0.0.0:5000"
`
	if err := os.WriteFile(filepath.Join(dir, "agentd.toml"), []byte(contents), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Agent.DefaultBin != "/opt/codex/bin/codex" {
		t.Fatalf("got default bin %q", cfg.Agent.DefaultBin)
	}
	if len(cfg.Agent.ExtraPathDirs) != 1 || cfg.Agent.ExtraPathDirs[0] != "/opt/homebrew/bin" {
		t.Fatalf("got extra path dirs %v", cfg.Agent.ExtraPathDirs)
	}
	if cfg.Network.Listen != "0.0.0.0:5000" {
		t.Fatalf("got listen %q", cfg.Network.Listen)
	}
	// Sandbox section was omitted from the file; default must survive.
	if cfg.Sandbox.DefaultMode != "workspace-write" {
		t.Fatalf("got sandbox mode %q", cfg.Sandbox.DefaultMode)
	}
}
