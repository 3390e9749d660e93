// Package model defines the persisted and transient data types shared
// across the daemon: workspace entries, app settings, domains, and the
// wire-level event union.
package model

import "time"

// WorkspaceKind distinguishes a main checkout from a worktree.
type WorkspaceKind string

const (
	KindMain     WorkspaceKind = "main"
	KindWorktree WorkspaceKind = "worktree"
)

// WorktreeInfo holds worktree-only metadata.
type WorktreeInfo struct {
	Branch string `json:"branch"`
}

// WorkspaceSettings carries the optional per-workspace preferences.
type WorkspaceSettings struct {
	SortOrder               *int    `json:"sort_order,omitempty"`
	GroupID                 string  `json:"group_id,omitempty"`
	SidebarCollapsed        bool    `json:"sidebar_collapsed"`
	GitRoot                 string  `json:"git_root,omitempty"`
	CodexHome               string  `json:"codex_home,omitempty"`
	CodexArgs               string  `json:"codex_args,omitempty"`
	DomainID                string  `json:"domain_id,omitempty"`
	ApplyDomainInstructions *bool   `json:"apply_domain_instructions,omitempty"`
	Purpose                 string  `json:"purpose,omitempty"`
	ObsidianRoot            string  `json:"obsidian_root,omitempty"`
}

// WorkspaceEntry is the persisted description of a tracked workspace.
type WorkspaceEntry struct {
	ID       string            `json:"id"`
	Name     string            `json:"name"`
	Path     string            `json:"path"`
	CodexBin string            `json:"codex_bin,omitempty"`
	Kind     WorkspaceKind     `json:"kind"`
	ParentID string            `json:"parent_id,omitempty"`
	Worktree *WorktreeInfo     `json:"worktree,omitempty"`
	Settings WorkspaceSettings `json:"settings"`
}

// IsWorktree reports whether the entry is a worktree child.
func (e WorkspaceEntry) IsWorktree() bool {
	return e.Kind == KindWorktree
}

// AutoMemorySettings configures the auto-memory controller (spec.md §3,§4.G).
type AutoMemorySettings struct {
	Enabled            bool `json:"enabled"`
	ReserveTokensFloor int  `json:"reserve_tokens_floor"`
	SoftThresholdTokens int `json:"soft_threshold_tokens"`
	MinIntervalSeconds int  `json:"min_interval_seconds"`
	MaxTurns           int  `json:"max_turns"`
	MaxSnapshotChars   int  `json:"max_snapshot_chars"`
	IncludeToolOutput  bool `json:"include_tool_output"`
	IncludeGitStatus   bool `json:"include_git_status"`
	WriteDaily         bool `json:"write_daily"`
	WriteCurated       bool `json:"write_curated"`
}

// DefaultAutoMemorySettings matches the thresholds used in spec.md §8's
// worked example (window=32000, reserve=10000, soft=2000).
func DefaultAutoMemorySettings() AutoMemorySettings {
	return AutoMemorySettings{
		Enabled:             true,
		ReserveTokensFloor:  10000,
		SoftThresholdTokens: 2000,
		MinIntervalSeconds:  600,
		MaxTurns:            20,
		MaxSnapshotChars:    20000,
		IncludeToolOutput:   true,
		IncludeGitStatus:    true,
		WriteDaily:          true,
		WriteCurated:        true,
	}
}

// AppSettings is the plain record of user preferences.
type AppSettings struct {
	Theme       string             `json:"theme,omitempty"`
	APIKeys     map[string]string  `json:"api_keys,omitempty"`
	AutoMemory  AutoMemorySettings `json:"auto_memory"`
}

// Domain is a named prompt preset.
type Domain struct {
	ID              string `json:"id"`
	Name            string `json:"name"`
	Description     string `json:"description,omitempty"`
	SystemPrompt    string `json:"system_prompt,omitempty"`
	ViewType        string `json:"view_type,omitempty"`
	Theme           string `json:"theme,omitempty"`
	DefaultModel    string `json:"default_model,omitempty"`
	DefaultEffort   string `json:"default_effort,omitempty"`
	DefaultAccess   string `json:"default_access_mode,omitempty"`
}

// EventKind discriminates the Event union.
type EventKind string

const (
	EventAppServer     EventKind = "app-server-event"
	EventTerminalOutput EventKind = "terminal-output"
)

// Event is the tagged union broadcast by the event bus (spec.md §3).
type Event struct {
	Kind        EventKind `json:"-"`
	WorkspaceID string    `json:"workspace_id"`
	TerminalID  string    `json:"terminal_id,omitempty"`
	Message     any       `json:"message,omitempty"`
	Data        string    `json:"data,omitempty"`
}

// Method returns the client-facing notification method name for this event.
func (e Event) Method() string {
	return string(e.Kind)
}

// AutoMemoryThreadState is the per-(workspace,thread) state machine record
// described in spec.md §3/§4.G.
type AutoMemoryThreadState struct {
	LastFlushAt        time.Time
	LastSeenTokens      int
	LastCompactionEpoch int
	LastFlushEpoch      int
}
