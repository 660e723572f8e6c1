// Package ui renders the analyzer's terminal interaction: the component
// picker and the suggestion or error line.
package ui

import "github.com/charmbracelet/lipgloss"

// Color palette
var (
	ColorPrimary = lipgloss.AdaptiveColor{Light: "#5A67D8", Dark: "#7C3AED"}
	ColorSuccess = lipgloss.AdaptiveColor{Light: "#38A169", Dark: "#48BB78"}
	ColorWarning = lipgloss.AdaptiveColor{Light: "#D69E2E", Dark: "#F6E05E"}
	ColorError   = lipgloss.AdaptiveColor{Light: "#E53E3E", Dark: "#FC8181"}
	ColorMuted   = lipgloss.AdaptiveColor{Light: "#718096", Dark: "#A0AEC0"}
)

// styles are bound to one renderer so colour detection follows the output writer
type styles struct {
	title   lipgloss.Style
	success lipgloss.Style
	warning lipgloss.Style
	err     lipgloss.Style
	muted   lipgloss.Style
}

func newStyles(r *lipgloss.Renderer) styles {
	return styles{
		title:   r.NewStyle().Bold(true).Foreground(ColorPrimary),
		success: r.NewStyle().Bold(true).Foreground(ColorSuccess),
		warning: r.NewStyle().Foreground(ColorWarning),
		err:     r.NewStyle().Foreground(ColorError),
		muted:   r.NewStyle().Foreground(ColorMuted),
	}
}
