package ui

import "github.com/charmbracelet/lipgloss"

// Theme styles each kind of line. Colors adapt to light and dark terminals.
type Theme struct {
	Header       lipgloss.Style
	SectionTitle lipgloss.Style
	Success      lipgloss.Style
	Warn         lipgloss.Style
	Error        lipgloss.Style
	Muted        lipgloss.Style
	Accent       lipgloss.Style
}

var (
	colorSuccess = lipgloss.AdaptiveColor{Light: "28", Dark: "2"}
	colorWarn    = lipgloss.AdaptiveColor{Light: "130", Dark: "3"}
	colorError   = lipgloss.AdaptiveColor{Light: "124", Dark: "1"}
	colorMuted   = lipgloss.AdaptiveColor{Light: "245", Dark: "8"}
	colorAccent  = lipgloss.AdaptiveColor{Light: "31", Dark: "6"}
)

func DefaultTheme() Theme {
	bold := lipgloss.NewStyle().Bold(true)
	return Theme{
		Header:       bold,
		SectionTitle: bold.Underline(true),
		Success:      lipgloss.NewStyle().Foreground(colorSuccess),
		Warn:         lipgloss.NewStyle().Foreground(colorWarn),
		Error:        lipgloss.NewStyle().Foreground(colorError).Bold(true),
		Muted:        lipgloss.NewStyle().Foreground(colorMuted),
		Accent:       lipgloss.NewStyle().Foreground(colorAccent),
	}
}
