// Package ui renders run progress, plans, reports and the catalog for the
// terminal.
package ui

import (
	"github.com/charmbracelet/lipgloss"
)

// Theme colors (Catppuccin Mocha inspired).
var (
	ColorPrimary   = lipgloss.AdaptiveColor{Light: "#1e66f5", Dark: "#89b4fa"} // Blue
	ColorSecondary = lipgloss.AdaptiveColor{Light: "#7c3aed", Dark: "#cba6f7"} // Mauve
	ColorSuccess   = lipgloss.AdaptiveColor{Light: "#40a02b", Dark: "#a6e3a1"} // Green
	ColorWarning   = lipgloss.AdaptiveColor{Light: "#df8e1d", Dark: "#f9e2af"} // Yellow
	ColorError     = lipgloss.AdaptiveColor{Light: "#d20f39", Dark: "#f38ba8"} // Red
	ColorMuted     = lipgloss.AdaptiveColor{Light: "#6c6f85", Dark: "#6c7086"} // Overlay0
	ColorText      = lipgloss.AdaptiveColor{Light: "#4c4f69", Dark: "#cdd6f4"} // Text
)

// Styles contains the lipgloss styles used by the printer.
type Styles struct {
	Title   lipgloss.Style
	Heading lipgloss.Style
	Text    lipgloss.Style

	Success lipgloss.Style
	Warning lipgloss.Style
	Error   lipgloss.Style
	Info    lipgloss.Style
	Muted   lipgloss.Style

	// StepID highlights identifiers in listings.
	StepID lipgloss.Style
}

// DefaultStyles returns the default styles bound to r. Rendering through a
// renderer created for the output writer drops colors when the writer is
// not a terminal.
func DefaultStyles(r *lipgloss.Renderer) Styles {
	return Styles{
		Title: r.NewStyle().
			Bold(true).
			Foreground(ColorPrimary),

		Heading: r.NewStyle().
			Bold(true).
			Foreground(ColorSecondary),

		Text: r.NewStyle().
			Foreground(ColorText),

		Success: r.NewStyle().
			Foreground(ColorSuccess),

		Warning: r.NewStyle().
			Foreground(ColorWarning),

		Error: r.NewStyle().
			Foreground(ColorError).
			Bold(true),

		Info: r.NewStyle().
			Foreground(ColorPrimary),

		Muted: r.NewStyle().
			Foreground(ColorMuted),

		StepID: r.NewStyle().
			Foreground(ColorText).
			Bold(true),
	}
}
