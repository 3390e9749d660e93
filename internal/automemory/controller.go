// Package automemory implements spec.md §4.G: a per-(workspace, thread)
// state machine that watches context-window pressure and claims exactly
// one background summarization flush per compaction epoch.
package automemory

import (
	"sync"
	"time"

	"github.com/xcawolfe-amzn/agentd/internal/model"
)

type key struct {
	workspaceID string
	threadID    string
}

// Controller tracks compaction state per (workspace, thread) and decides
// when a flush may be claimed. It holds no knowledge of how a flush is
// actually carried out — see Flusher for that.
type Controller struct {
	mu     sync.Mutex
	states map[key]model.AutoMemoryThreadState
}

// New creates an empty controller.
func New() *Controller {
	return &Controller{states: make(map[key]model.AutoMemoryThreadState)}
}

// freshState is the zero state for a key never observed before.
// LastFlushEpoch starts at -1 so the very first qualifying observation
// (epoch 0) is never mistaken for "already flushed this epoch".
func freshState() model.AutoMemoryThreadState {
	return model.AutoMemoryThreadState{LastFlushEpoch: -1}
}

// Observe implements the detection rule of spec.md §4.G against a
// thread/tokenUsage/updated notification. It returns claimed=true at most
// once per compaction epoch, and only when the caller should start a
// background flush for (workspaceID, threadID).
func (c *Controller) Observe(workspaceID, threadID string, totalTokens, modelContextWindow int, settings model.AutoMemorySettings, now time.Time) (claimed bool) {
	if totalTokens == 0 || modelContextWindow == 0 {
		return false
	}

	k := key{workspaceID, threadID}

	c.mu.Lock()
	defer c.mu.Unlock()

	st, ok := c.states[k]
	if !ok {
		st = freshState()
	}

	usable := modelContextWindow - settings.ReserveTokensFloor
	triggered := totalTokens >= usable-settings.SoftThresholdTokens

	if st.LastSeenTokens != 0 && totalTokens+totalTokens/2 < st.LastSeenTokens {
		st.LastCompactionEpoch++
	}
	st.LastSeenTokens = totalTokens

	if triggered &&
		now.Sub(st.LastFlushAt) >= time.Duration(settings.MinIntervalSeconds)*time.Second &&
		st.LastFlushEpoch != st.LastCompactionEpoch {
		st.LastFlushAt = now
		st.LastFlushEpoch = st.LastCompactionEpoch
		claimed = true
	}

	c.states[k] = st
	return claimed
}

// State returns a copy of the current state for (workspaceID, threadID),
// primarily for diagnostics and tests.
func (c *Controller) State(workspaceID, threadID string) (model.AutoMemoryThreadState, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	st, ok := c.states[key{workspaceID, threadID}]
	return st, ok
}
