package rpc

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/xcawolfe-amzn/agentd/internal/model"
)

func registerAgentHandlers(t map[string]handlerFunc) {
	t["start_thread"] = forward("start_thread")
	t["resume_thread"] = forward("resume_thread")
	t["list_threads"] = forward("list_threads")
	t["archive_thread"] = forward("archive_thread")
	t["send_user_message"] = handleSendUserMessage
	t["turn_interrupt"] = forward("turn_interrupt")
	t["start_review"] = forward("start_review")
	t["model_list"] = forward("model_list")
	t["collaboration_mode_list"] = forward("collaboration_mode_list")
	t["account_rate_limits"] = forward("account_rate_limits")
	t["skills_list"] = forward("skills_list")
	t["respond_to_server_request"] = handleRespondToServerRequest
}

// withWorkspaceID is embedded by every agent-passthrough params shape to
// extract the routing key; stripWorkspaceID removes it before the
// remainder is forwarded to the agent child as-is.
type withWorkspaceID struct {
	WorkspaceID string `json:"workspace_id"`
}

// stripWorkspaceID decodes raw as a JSON object, deletes workspace_id, and
// re-encodes the rest for forwarding to the agent child.
func stripWorkspaceID(raw json.RawMessage) (json.RawMessage, error) {
	var m map[string]json.RawMessage
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("missing `params`")
	}
	delete(m, "workspace_id")
	out, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return out, nil
}

// forward builds a handler that extracts workspace_id, looks up the live
// session, and forwards the remaining params verbatim to the agent child
// under agentMethod, returning its raw result unchanged.
func forward(agentMethod string) handlerFunc {
	return func(ctx context.Context, d *Dispatcher, params json.RawMessage) (any, error) {
		var w withWorkspaceID
		if err := parseParams(params, &w); err != nil {
			return nil, err
		}
		if _, err := requireString(w.WorkspaceID, "workspace_id"); err != nil {
			return nil, err
		}
		sess, err := d.sessionFor(w.WorkspaceID)
		if err != nil {
			return nil, err
		}
		rest, err := stripWorkspaceID(params)
		if err != nil {
			return nil, err
		}
		result, err := sess.SendRequest(ctx, agentMethod, json.RawMessage(rest))
		if err != nil {
			return nil, err
		}
		var out any
		if len(result) > 0 {
			if err := json.Unmarshal(result, &out); err != nil {
				return nil, err
			}
		}
		return out, nil
	}
}

type sendUserMessageParams struct {
	WorkspaceID string `json:"workspace_id"`
	ThreadID    string `json:"thread_id,omitempty"`
	Message     string `json:"message"`
	AccessMode  string `json:"access_mode,omitempty"`
}

// handleSendUserMessage forwards a user turn to the agent child, first
// deriving a sandbox policy from the requested access mode and, for
// "life" workspaces or domain-tagged workspaces with instructions enabled,
// prepending the workspace's composite system prompt to the message.
//
// What counts as a "life" workspace and exactly how domain instructions
// compose with the user's own message is underspecified upstream; this
// daemon treats WorkspaceSettings.Purpose == "life" as the life case and
// DomainID+ApplyDomainInstructions as the domain case (see DESIGN.md).
func handleSendUserMessage(ctx context.Context, d *Dispatcher, params json.RawMessage) (any, error) {
	var p sendUserMessageParams
	if err := parseParams(params, &p); err != nil {
		return nil, err
	}
	if _, err := requireString(p.WorkspaceID, "workspace_id"); err != nil {
		return nil, err
	}
	if _, err := requireString(p.Message, "message"); err != nil {
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

	message := p.Message
	if prompt := d.systemPromptFor(entry); prompt != "" {
		message = prompt + "\n\n" + message
	}

	agentParams := map[string]any{
		"threadId":   p.ThreadID,
		"message":    message,
		"sandbox":    sandboxPolicyFor(p.AccessMode),
	}
	result, err := sess.SendRequest(ctx, "send_user_message", agentParams)
	if err != nil {
		return nil, err
	}
	var out any
	if len(result) > 0 {
		if err := json.Unmarshal(result, &out); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// sandboxPolicyFor maps the RPC caller's requested access mode to the
// sandbox policy name the agent child's wire protocol expects.
func sandboxPolicyFor(accessMode string) string {
	switch accessMode {
	case "read-only":
		return "read-only"
	case "full-access":
		return "danger-full-access"
	case "workspace-write", "":
		return "workspace-write"
	default:
		return "workspace-write"
	}
}

// systemPromptFor builds the composite instructions prepended to a user
// message for "life" and domain-tagged workspaces.
func (d *Dispatcher) systemPromptFor(entry model.WorkspaceEntry) string {
	if entry.Settings.Purpose == "life" {
		return "You are operating in a personal life-management workspace. Treat notes and tasks here as the user's own, not a software project."
	}
	if entry.Settings.DomainID == "" {
		return ""
	}
	if entry.Settings.ApplyDomainInstructions != nil && !*entry.Settings.ApplyDomainInstructions {
		return ""
	}
	domains, err := d.Store.LoadDomains()
	if err != nil {
		return ""
	}
	for _, dom := range domains {
		if dom.ID == entry.Settings.DomainID {
			return dom.SystemPrompt
		}
	}
	return ""
}

type respondToServerRequestParams struct {
	WorkspaceID string          `json:"workspace_id"`
	ID          uint64          `json:"id"`
	Result      json.RawMessage `json:"result"`
}

func handleRespondToServerRequest(ctx context.Context, d *Dispatcher, params json.RawMessage) (any, error) {
	var p respondToServerRequestParams
	if err := parseParams(params, &p); err != nil {
		return nil, err
	}
	if _, err := requireString(p.WorkspaceID, "workspace_id"); err != nil {
		return nil, err
	}
	sess, err := d.sessionFor(p.WorkspaceID)
	if err != nil {
		return nil, err
	}
	var result any
	if len(p.Result) > 0 {
		if err := json.Unmarshal(p.Result, &result); err != nil {
			return nil, err
		}
	}
	if err := sess.SendResponse(p.ID, result); err != nil {
		return nil, err
	}
	return map[string]bool{"ok": true}, nil
}
