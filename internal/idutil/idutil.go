// Package idutil centralizes id generation so every subsystem that needs
// a fresh workspace id or request id agrees on the shape.
package idutil

import "github.com/google/uuid"

// NewWorkspaceID returns a uuid-v4-shaped opaque identifier, per the
// "id: opaque string (uuid-v4 shape)" invariant in spec.md §3.
func NewWorkspaceID() string {
	return uuid.NewString()
}
