package store

import "github.com/xcawolfe-amzn/agentd/internal/model"

// SeedDomains returns the built-in domain presets materialized on first
// run (spec.md §4.B).
func SeedDomains() []model.Domain {
	return []model.Domain{
		{
			ID:          "general",
			Name:        "General",
			Description: "Unscoped coding assistant with no extra system prompt.",
			ViewType:    "chat",
		},
		{
			ID:            "code-review",
			Name:          "Code Review",
			Description:   "Focused on reviewing diffs for correctness and style.",
			SystemPrompt:  "You are reviewing a code change. Prioritize correctness, then simplicity.",
			ViewType:      "chat",
			DefaultEffort: "medium",
		},
		{
			ID:            "life",
			Name:          "Life",
			Description:   "Personal knowledge-base and journaling workspace.",
			SystemPrompt:  "You help maintain a personal knowledge base stored as markdown notes.",
			ViewType:      "notes",
			DefaultAccess: "workspace-write",
		},
	}
}
