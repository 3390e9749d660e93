//go:build ignore

// Command mockchild simulates an agentd-compatible agent binary for
// internal/transport's integration tests. It speaks the same
// newline-JSON dialect as a real agent: every {id,method,params} request
// is echoed back as {id,result:params}, except "crash" (exit immediately,
// simulating an unexpected child death) and "notify" (reply, then also
// emit an out-of-band notification carrying params.threadId).
package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
)

type request struct {
	ID     *uint64         `json:"id,omitempty"`
	Method string          `json:"method,omitempty"`
	Params json.RawMessage `json:"params,omitempty"`
}

func main() {
	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 0, 4096), 1<<20)
	enc := json.NewEncoder(os.Stdout)

	for scanner.Scan() {
		var req request
		if err := json.Unmarshal(scanner.Bytes(), &req); err != nil {
			continue
		}
		if req.ID == nil {
			continue
		}
		switch req.Method {
		case "crash":
			os.Exit(1)
		case "notify":
			_ = enc.Encode(map[string]any{"id": *req.ID, "result": req.Params})
			var p map[string]any
			_ = json.Unmarshal(req.Params, &p)
			_ = enc.Encode(map[string]any{
				"method": "item/agentMessage/delta",
				"params": map[string]any{"threadId": p["threadId"], "text": "hi"},
			})
		default:
			_ = enc.Encode(map[string]any{"id": *req.ID, "result": req.Params})
		}
	}
	fmt.Fprintln(os.Stderr, "mockchild exiting")
}
