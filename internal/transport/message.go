package transport

import "encoding/json"

// envelope is the generic shape of any line on an agent's stdio, matching
// spec.md §6's "Agent transport wire format": requests carry id+method,
// responses carry id+(result|error), notifications carry method with no id.
type envelope struct {
	ID     *uint64         `json:"id,omitempty"`
	Method string          `json:"method,omitempty"`
	Params json.RawMessage `json:"params,omitempty"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  *wireError      `json:"error,omitempty"`
}

type wireError struct {
	Message string `json:"message"`
}

// outboundRequest is what the daemon writes to the child's stdin for a
// daemon-initiated call.
type outboundRequest struct {
	ID     uint64 `json:"id"`
	Method string `json:"method"`
	Params any    `json:"params,omitempty"`
}

// outboundResponse is what the daemon writes back to an agent-initiated,
// server-originated request (spec.md §4.C's send_response).
type outboundResponse struct {
	ID     uint64 `json:"id"`
	Result any    `json:"result,omitempty"`
}

// Reply is the resolved outcome of a SendRequest call.
type Reply struct {
	Result json.RawMessage
	Err    error
}

// Notification is an out-of-band message the child emitted. RequestID is
// non-nil when the child's message carried an id of its own: a
// server-originated request awaiting a reply via Session.SendResponse,
// rather than a fire-and-forget notification (spec.md §4.C's
// respond_to_server_request).
type Notification struct {
	WorkspaceID string
	ThreadID    string
	Method      string
	Params      json.RawMessage
	RequestID   *uint64
}

// threadIDParams captures the two spellings the spec allows for the
// thread identifier carried on a notification's params.
type threadIDParams struct {
	ThreadID  string `json:"threadId"`
	ThreadID2 string `json:"thread_id"`
}

func extractThreadID(params json.RawMessage) string {
	if len(params) == 0 {
		return ""
	}
	var t threadIDParams
	if err := json.Unmarshal(params, &t); err != nil {
		return ""
	}
	if t.ThreadID != "" {
		return t.ThreadID
	}
	return t.ThreadID2
}
