package rpc

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/xcawolfe-amzn/agentd/internal/automemory"
	"github.com/xcawolfe-amzn/agentd/internal/config"
	"github.com/xcawolfe-amzn/agentd/internal/eventbus"
	"github.com/xcawolfe-amzn/agentd/internal/memory"
	"github.com/xcawolfe-amzn/agentd/internal/model"
	"github.com/xcawolfe-amzn/agentd/internal/ptyreg"
	"github.com/xcawolfe-amzn/agentd/internal/registry"
	"github.com/xcawolfe-amzn/agentd/internal/store"
)

func newTestDispatcher(t *testing.T) *Dispatcher {
	t.Helper()
	dataDir := t.TempDir()
	st := store.New(dataDir)
	bus := eventbus.New(eventbus.DefaultCapacity)
	mem := memory.New(dataDir + "/memory")
	autoMem := automemory.New()
	flusher := &automemory.Flusher{
		Snapshot: func(ctx context.Context, workspaceID, threadID string, settings model.AutoMemorySettings) (string, error) {
			return "", nil
		},
		Memory: mem,
	}
	return New(st, config.Defaults(), registry.New(), ptyreg.New(), bus, mem, autoMem, flusher, dataDir)
}

func TestDispatchUnknownMethod(t *testing.T) {
	d := newTestDispatcher(t)
	_, err := d.Dispatch(context.Background(), "no_such_method", nil)
	if err == nil {
		t.Fatal("expected an error for an unknown method")
	}
}

func TestDispatchPing(t *testing.T) {
	d := newTestDispatcher(t)
	got, err := d.Dispatch(context.Background(), "ping", nil)
	if err != nil {
		t.Fatalf("ping: %v", err)
	}
	if m, ok := got.(map[string]bool); !ok || !m["ok"] {
		t.Fatalf("got %#v, want {ok: true}", got)
	}
}

func TestSessionForMissingWorkspace(t *testing.T) {
	d := newTestDispatcher(t)
	if _, err := d.sessionFor("missing"); err != errWorkspaceNotConnected {
		t.Fatalf("got %v, want errWorkspaceNotConnected", err)
	}
}

func TestFindWorkspaceMissing(t *testing.T) {
	d := newTestDispatcher(t)
	if _, _, err := d.findWorkspace(nil, "missing"); err != errWorkspaceNotFound {
		t.Fatalf("got %v, want errWorkspaceNotFound", err)
	}
}

func TestParseParamsMissing(t *testing.T) {
	var dst struct{ X string }
	if err := parseParams(nil, &dst); err == nil {
		t.Fatal("expected an error for empty params")
	}
	if err := parseParams(json.RawMessage(`not json`), &dst); err == nil {
		t.Fatal("expected an error for malformed params")
	}
}

func TestRequireString(t *testing.T) {
	if _, err := requireString("", "workspace_id"); err == nil {
		t.Fatal("expected an error for an empty required field")
	}
	v, err := requireString("w1", "workspace_id")
	if err != nil || v != "w1" {
		t.Fatalf("got (%q, %v), want (w1, nil)", v, err)
	}
}
