// Package registry implements spec.md §4.D: the workspace_id → Session
// map. Grounded in dmora-agentrun's engine.go Start/Stop bookkeeping
// style, adapted to a single shared map rather than per-call session
// construction, plus the spec's explicit non-deadlock requirement that
// the map lock is released before awaiting a child kill.
package registry

import (
	"fmt"
	"sync"

	"github.com/xcawolfe-amzn/agentd/internal/transport"
)

// Registry is a concurrency-safe workspace_id → *transport.Session map.
type Registry struct {
	mu       sync.Mutex
	sessions map[string]*transport.Session
	// parents maps a worktree workspace id to its main workspace id, so
	// Kill can cascade a main removal to its worktree sessions.
	parents map[string]string
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{
		sessions: make(map[string]*transport.Session),
		parents:  make(map[string]string),
	}
}

// Get returns the live session for id, or (nil, false) if the workspace
// isn't connected.
func (r *Registry) Get(id string) (*transport.Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	return s, ok
}

// Insert registers a freshly spawned session. Its only caller is the
// spawn path used by connect_workspace;
// inserting over an existing id replaces it without killing the old
// session — callers are expected to have already removed it.
func (r *Registry) Insert(id string, s *transport.Session, parentID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[id] = s
	if parentID != "" {
		r.parents[id] = parentID
	}
}

// Kill removes id from the map and kills its child. The map lock is
// released before the blocking Close() call so a concurrent reader task
// delivering a reply for this same session cannot deadlock against it.
func (r *Registry) Kill(id string) error {
	r.mu.Lock()
	s, ok := r.sessions[id]
	if ok {
		delete(r.sessions, id)
		delete(r.parents, id)
	}
	r.mu.Unlock()

	if !ok {
		return nil
	}
	return s.Close()
}

// KillCascade removes mainID and every worktree session whose parent is
// mainID. If any worktree's pre-kill hook returns an error, mainID's
// session is left in place and the first error is returned, matching
// spec.md §4.D's "partial error is reported, main is not removed" rule.
//
// preKill is invoked once per worktree id before its session is killed
// (e.g. to perform the git worktree removal); it is the caller's hook for
// the git-layer side effect that can fail independently of the process
// kill itself.
func (r *Registry) KillCascade(mainID string, preKill func(worktreeID string) error) error {
	r.mu.Lock()
	var worktrees []string
	for id, parent := range r.parents {
		if parent == mainID {
			worktrees = append(worktrees, id)
		}
	}
	r.mu.Unlock()

	for _, id := range worktrees {
		if preKill != nil {
			if err := preKill(id); err != nil {
				return fmt.Errorf("registry: cascade kill %s: %w", id, err)
			}
		}
		if err := r.Kill(id); err != nil {
			return fmt.Errorf("registry: cascade kill %s: %w", id, err)
		}
	}
	return r.Kill(mainID)
}

// Len reports the number of live sessions, reported as
// connected_sessions by the local_usage RPC.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}
