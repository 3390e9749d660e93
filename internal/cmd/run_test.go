package cmd

import (
	"os"
	"path/filepath"
	"testing"
)

func TestResolveDataDirPrefersFlag(t *testing.T) {
	old := flagDataDir
	defer func() { flagDataDir = old }()

	flagDataDir = "/tmp/explicit-dir"
	got, err := resolveDataDir()
	if err != nil {
		t.Fatalf("resolveDataDir: %v", err)
	}
	if got != "/tmp/explicit-dir" {
		t.Fatalf("got %q, want /tmp/explicit-dir", got)
	}
}

func TestResolveDataDirFallsBackToXDG(t *testing.T) {
	old := flagDataDir
	defer func() { flagDataDir = old }()
	flagDataDir = ""

	oldXDG, hadXDG := os.LookupEnv("XDG_DATA_HOME")
	defer func() {
		if hadXDG {
			os.Setenv("XDG_DATA_HOME", oldXDG)
		} else {
			os.Unsetenv("XDG_DATA_HOME")
		}
	}()
	os.Setenv("XDG_DATA_HOME", "/tmp/xdg")

	got, err := resolveDataDir()
	if err != nil {
		t.Fatalf("resolveDataDir: %v", err)
	}
	if want := filepath.Join("/tmp/xdg", "agentd"); got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestResolveTokenPrefersFlag(t *testing.T) {
	oldFlag := flagToken
	defer func() { flagToken = oldFlag }()
	flagToken = "flag-token"

	if got := resolveToken(); got != "flag-token" {
		t.Fatalf("got %q, want flag-token", got)
	}
}

func TestResolveTokenFallsBackToEnv(t *testing.T) {
	oldFlag := flagToken
	defer func() { flagToken = oldFlag }()
	flagToken = ""

	oldEnv, had := os.LookupEnv("AGENTD_DAEMON_TOKEN")
	defer func() {
		if had {
			os.Setenv("AGENTD_DAEMON_TOKEN", oldEnv)
		} else {
			os.Unsetenv("AGENTD_DAEMON_TOKEN")
		}
	}()
	os.Setenv("AGENTD_DAEMON_TOKEN", "env-token")

	if got := resolveToken(); got != "env-token" {
		t.Fatalf("got %q, want env-token", got)
	}
}
