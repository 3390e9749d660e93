package rpc

import "errors"

// Sentinel errors matching spec.md §4.I/§7's fixed error strings exactly,
// so the RPC wire surface never drifts from the spec's text.
var (
	errWorkspaceNotConnected = errors.New("workspace not connected")
	errWorkspaceNotFound     = errors.New("workspace not found")
)
