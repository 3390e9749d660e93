package registry

import (
	"errors"
	"testing"

	"github.com/xcawolfe-amzn/agentd/internal/transport"
)

// spawnDummy starts a harmless long-lived child ("cat") so Registry.Kill
// has a real session to close without needing the agent wire protocol.
func spawnDummy(t *testing.T, id string) *transport.Session {
	t.Helper()
	s, err := transport.Spawn(transport.SpawnOptions{
		WorkspaceID: id,
		Bin:         "cat",
		Sink:        func(transport.Notification) {},
	})
	if err != nil {
		t.Fatalf("Spawn: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestGetMissingReturnsFalse(t *testing.T) {
	r := New()
	if _, ok := r.Get("missing"); ok {
		t.Fatal("expected ok=false for an unregistered workspace")
	}
}

func TestKillMissingIsNoop(t *testing.T) {
	r := New()
	if err := r.Kill("missing"); err != nil {
		t.Fatalf("Kill on missing id: %v", err)
	}
}

func TestKillCascadeStopsOnPreKillError(t *testing.T) {
	r := New()
	r.Insert("main", spawnDummy(t, "main"), "")
	r.Insert("wt-1", spawnDummy(t, "wt-1"), "main")

	wantErr := errors.New("git worktree remove failed")
	err := r.KillCascade("main", func(worktreeID string) error {
		return wantErr
	})
	if err == nil {
		t.Fatal("expected an error")
	}
	if _, ok := r.Get("main"); !ok {
		t.Fatal("main session must survive a failed worktree removal")
	}
}

func TestKillCascadeRemovesMainAndWorktrees(t *testing.T) {
	r := New()
	r.Insert("main", spawnDummy(t, "main"), "")
	r.Insert("wt-1", spawnDummy(t, "wt-1"), "main")
	r.Insert("wt-2", spawnDummy(t, "wt-2"), "main")
	r.Insert("other", spawnDummy(t, "other"), "")

	if err := r.KillCascade("main", func(string) error { return nil }); err != nil {
		t.Fatalf("KillCascade: %v", err)
	}
	for _, id := range []string{"main", "wt-1", "wt-2"} {
		if _, ok := r.Get(id); ok {
			t.Fatalf("%s should have been removed", id)
		}
	}
	if _, ok := r.Get("other"); !ok {
		t.Fatal("unrelated workspace should not be touched")
	}
}
