package transport

import "errors"

// Sentinel errors for agent-transport operations, grounded in
// dmora-agentrun's errors.go sentinel style.
var (
	// ErrDisconnected is returned to callers of SendRequest once the
	// child has exited or a stdio read/write has failed.
	ErrDisconnected = errors.New("daemon disconnected")

	// ErrBinaryNotFound indicates no usable agent binary could be located.
	ErrBinaryNotFound = errors.New("transport: agent binary not found")

	// ErrAlreadyClosed is returned by operations on a session that was
	// already shut down.
	ErrAlreadyClosed = errors.New("transport: session already closed")
)
