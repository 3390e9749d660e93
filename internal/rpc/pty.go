package rpc

import (
	"context"
	"encoding/json"
	"os"

	"github.com/xcawolfe-amzn/agentd/internal/model"
)

func registerPTYHandlers(t map[string]handlerFunc) {
	t["terminal_open"] = handleTerminalOpen
	t["terminal_write"] = handleTerminalWrite
	t["terminal_resize"] = handleTerminalResize
	t["terminal_close"] = handleTerminalClose
}

type terminalOpenParams struct {
	WorkspaceID string `json:"workspace_id"`
	TerminalID  string `json:"terminal_id"`
	Shell       string `json:"shell,omitempty"`
	Cols        uint16 `json:"cols,omitempty"`
	Rows        uint16 `json:"rows,omitempty"`
}

func handleTerminalOpen(ctx context.Context, d *Dispatcher, params json.RawMessage) (any, error) {
	var p terminalOpenParams
	if err := parseParams(params, &p); err != nil {
		return nil, err
	}
	if _, err := requireString(p.WorkspaceID, "workspace_id"); err != nil {
		return nil, err
	}
	if _, err := requireString(p.TerminalID, "terminal_id"); err != nil {
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

	shell := p.Shell
	if shell == "" {
		shell = defaultShell()
	}

	_, err = d.Terminals.Open(entry.ID, p.TerminalID, shell, entry.Path, p.Cols, p.Rows, func(data string) {
		if d.Bus != nil {
			d.Bus.Publish(model.Event{
				Kind:        model.EventTerminalOutput,
				WorkspaceID: entry.ID,
				TerminalID:  p.TerminalID,
				Data:        data,
			})
		}
	})
	if err != nil {
		return nil, err
	}
	return map[string]bool{"opened": true}, nil
}

func defaultShell() string {
	if sh := os.Getenv("SHELL"); sh != "" {
		return sh
	}
	return "/bin/sh"
}

type terminalWriteParams struct {
	WorkspaceID string `json:"workspace_id"`
	TerminalID  string `json:"terminal_id"`
	Data        string `json:"data"`
}

func handleTerminalWrite(ctx context.Context, d *Dispatcher, params json.RawMessage) (any, error) {
	var p terminalWriteParams
	if err := parseParams(params, &p); err != nil {
		return nil, err
	}
	if _, err := requireString(p.WorkspaceID, "workspace_id"); err != nil {
		return nil, err
	}
	if _, err := requireString(p.TerminalID, "terminal_id"); err != nil {
		return nil, err
	}
	if err := d.Terminals.Write(p.WorkspaceID, p.TerminalID, []byte(p.Data)); err != nil {
		return nil, err
	}
	return map[string]bool{"ok": true}, nil
}

type terminalResizeParams struct {
	WorkspaceID string `json:"workspace_id"`
	TerminalID  string `json:"terminal_id"`
	Cols        uint16 `json:"cols"`
	Rows        uint16 `json:"rows"`
}

func handleTerminalResize(ctx context.Context, d *Dispatcher, params json.RawMessage) (any, error) {
	var p terminalResizeParams
	if err := parseParams(params, &p); err != nil {
		return nil, err
	}
	if _, err := requireString(p.WorkspaceID, "workspace_id"); err != nil {
		return nil, err
	}
	if _, err := requireString(p.TerminalID, "terminal_id"); err != nil {
		return nil, err
	}
	if err := d.Terminals.Resize(p.WorkspaceID, p.TerminalID, p.Cols, p.Rows); err != nil {
		return nil, err
	}
	return map[string]bool{"ok": true}, nil
}

type terminalCloseParams struct {
	WorkspaceID string `json:"workspace_id"`
	TerminalID  string `json:"terminal_id"`
}

func handleTerminalClose(ctx context.Context, d *Dispatcher, params json.RawMessage) (any, error) {
	var p terminalCloseParams
	if err := parseParams(params, &p); err != nil {
		return nil, err
	}
	if _, err := requireString(p.WorkspaceID, "workspace_id"); err != nil {
		return nil, err
	}
	if _, err := requireString(p.TerminalID, "terminal_id"); err != nil {
		return nil, err
	}
	if err := d.Terminals.Close(p.WorkspaceID, p.TerminalID); err != nil {
		return nil, err
	}
	return map[string]bool{"closed": true}, nil
}
