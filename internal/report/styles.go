package report

import (
	"github.com/charmbracelet/lipgloss"
)

// Styles defines the visual theme for text output.
// Lipgloss degrades to no color when output is not a TTY.
type Styles struct {
	// Header styles the report title line.
	Header lipgloss.Style

	// SubHeader styles section titles.
	SubHeader lipgloss.Style

	// Disabled styles force-disabled class names.
	Disabled lipgloss.Style

	// Error styles scan failures.
	Error lipgloss.Style

	// Base styles ranked base-class paths.
	Base lipgloss.Style

	// Muted is used for de-emphasized text.
	Muted lipgloss.Style
}

// DefaultStyles returns the default color scheme.
func DefaultStyles() Styles {
	return Styles{
		Header:    lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("63")),
		SubHeader: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("241")),
		Disabled:  lipgloss.NewStyle().Foreground(lipgloss.Color("208")),
		Error:     lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true),
		Base:      lipgloss.NewStyle().Foreground(lipgloss.Color("75")),
		Muted:     lipgloss.NewStyle().Foreground(lipgloss.Color("241")),
	}
}
