// Package theme defines the colour scheme and styling for the console
// surface of the fabric.
package theme

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
)

// Theme groups the styles used by the styled logger and the version banner.
type Theme struct {
	// Log level styling
	Debug lipgloss.Style
	Info  lipgloss.Style
	Warn  lipgloss.Style
	Error lipgloss.Style

	// Component styling
	Success   lipgloss.Style
	Highlight lipgloss.Style
	Muted     lipgloss.Style
	Accent    lipgloss.Style

	// Domain styling
	Endpoint lipgloss.Style
	Lambda   lipgloss.Style
	Counts   lipgloss.Style
}

// Default returns the default application theme.
func Default() *Theme {
	return &Theme{
		Debug: lipgloss.NewStyle().Foreground(lipgloss.Color("12")),
		Info:  lipgloss.NewStyle().Foreground(lipgloss.Color("10")),
		Warn:  lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Bold(true),
		Error: lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true),

		Success:   lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Bold(true),
		Highlight: lipgloss.NewStyle().Foreground(lipgloss.Color("14")).Bold(true),
		Muted:     lipgloss.NewStyle().Foreground(lipgloss.Color("8")),
		Accent:    lipgloss.NewStyle().Foreground(lipgloss.Color("13")),

		Endpoint: lipgloss.NewStyle().Foreground(lipgloss.Color("14")),
		Lambda:   lipgloss.NewStyle().Foreground(lipgloss.Color("13")),
		Counts:   lipgloss.NewStyle().Foreground(lipgloss.Color("11")),
	}
}

// Plain returns a theme with no styling, for non-TTY output.
func Plain() *Theme {
	plain := lipgloss.NewStyle()
	return &Theme{
		Debug: plain, Info: plain, Warn: plain, Error: plain,
		Success: plain, Highlight: plain, Muted: plain, Accent: plain,
		Endpoint: plain, Lambda: plain, Counts: plain,
	}
}

// GetTheme resolves a theme by name, falling back to the default.
func GetTheme(name string) *Theme {
	switch name {
	case "plain", "none":
		return Plain()
	default:
		return Default()
	}
}

// Hyperlink emits an OSC 8 terminal hyperlink.
func Hyperlink(uri, text string) string {
	return fmt.Sprintf("\x1b]8;;%s\x1b\\%s\x1b]8;;\x1b\\", uri, text)
}
