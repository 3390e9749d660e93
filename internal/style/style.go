package style

import "github.com/charmbracelet/lipgloss"

// Base styles used throughout the doctor and watch CLI output, in the
// AdaptiveColor convention the teacher uses for its diff styles
// (internal/cmd/hooks_diff.go's diffAdd/diffRemove).
var (
	Bold    = lipgloss.NewStyle().Bold(true)
	Dim     = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#888888", Dark: "#6c6c6c"})
	Success = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#86b300", Dark: "#c2d94c"})
	Warning = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#d4a72c", Dark: "#e5c07b"})
	Error   = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#f07171", Dark: "#f07178"})
	Info    = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#399ee6", Dark: "#5ccfe6"})
)
