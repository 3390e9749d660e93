package rpc

import (
	"context"
	"encoding/json"
)

func registerMemoryHandlers(t map[string]handlerFunc) {
	t["memory_status"] = handleMemoryStatus
	t["memory_search"] = handleMemorySearch
	t["memory_append"] = handleMemoryAppend
	t["memory_bootstrap"] = handleMemoryBootstrap
	t["flush_now"] = handleFlushNow
}

func handleMemoryStatus(ctx context.Context, d *Dispatcher, params json.RawMessage) (any, error) {
	var p workspaceIDParams
	if err := parseParams(params, &p); err != nil {
		return nil, err
	}
	if _, err := requireString(p.WorkspaceID, "workspace_id"); err != nil {
		return nil, err
	}
	return d.Memory.Status(p.WorkspaceID)
}

type memorySearchParams struct {
	WorkspaceID string `json:"workspace_id"`
	Query       string `json:"query"`
}

func handleMemorySearch(ctx context.Context, d *Dispatcher, params json.RawMessage) (any, error) {
	var p memorySearchParams
	if err := parseParams(params, &p); err != nil {
		return nil, err
	}
	if _, err := requireString(p.WorkspaceID, "workspace_id"); err != nil {
		return nil, err
	}
	return d.Memory.Search(p.WorkspaceID, p.Query)
}

type memoryAppendParams struct {
	WorkspaceID string   `json:"workspace_id"`
	Kind        string   `json:"kind"` // "daily" or "curated"
	Markdown    string   `json:"markdown"`
	Tags        []string `json:"tags,omitempty"`
}

func handleMemoryAppend(ctx context.Context, d *Dispatcher, params json.RawMessage) (any, error) {
	var p memoryAppendParams
	if err := parseParams(params, &p); err != nil {
		return nil, err
	}
	if _, err := requireString(p.WorkspaceID, "workspace_id"); err != nil {
		return nil, err
	}
	if _, err := requireString(p.Markdown, "markdown"); err != nil {
		return nil, err
	}
	var err error
	if p.Kind == "curated" {
		err = d.Memory.AppendCurated(ctx, p.WorkspaceID, p.Markdown, p.Tags)
	} else {
		err = d.Memory.AppendDaily(ctx, p.WorkspaceID, p.Markdown, p.Tags)
	}
	if err != nil {
		return nil, err
	}
	return map[string]bool{"ok": true}, nil
}

func handleMemoryBootstrap(ctx context.Context, d *Dispatcher, params json.RawMessage) (any, error) {
	var p workspaceIDParams
	if err := parseParams(params, &p); err != nil {
		return nil, err
	}
	if _, err := requireString(p.WorkspaceID, "workspace_id"); err != nil {
		return nil, err
	}
	if err := d.Memory.Bootstrap(p.WorkspaceID); err != nil {
		return nil, err
	}
	return map[string]bool{"ok": true}, nil
}

type flushNowParams struct {
	WorkspaceID string `json:"workspace_id"`
	ThreadID    string `json:"thread_id"`
}

// handleFlushNow runs spec.md §4.G's flush procedure on demand: with
// context_tokens=0/window=0 there is no token-pressure gate to pass, so
// this calls the Flusher directly rather than going through
// Controller.Observe, running only the summarizer-turn and memory-write
// phases.
func handleFlushNow(ctx context.Context, d *Dispatcher, params json.RawMessage) (any, error) {
	var p flushNowParams
	if err := parseParams(params, &p); err != nil {
		return nil, err
	}
	if _, err := requireString(p.WorkspaceID, "workspace_id"); err != nil {
		return nil, err
	}
	if _, err := requireString(p.ThreadID, "thread_id"); err != nil {
		return nil, err
	}

	sess, err := d.sessionFor(p.WorkspaceID)
	if err != nil {
		return nil, err
	}

	entries, err := d.Store.LoadWorkspaces()
	if err != nil {
		return nil, err
	}
	entry, _, err := d.findWorkspace(entries, p.WorkspaceID)
	if err != nil {
		return nil, err
	}

	settings, err := d.Store.LoadSettings()
	if err != nil {
		return nil, err
	}
	amSettings := settings.AutoMemory
	_ = entry

	if err := d.Flusher.Flush(ctx, sess, p.WorkspaceID, p.ThreadID, amSettings); err != nil {
		return nil, err
	}
	return map[string]bool{"flushed": true}, nil
}
