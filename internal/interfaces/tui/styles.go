package tui

import "github.com/charmbracelet/lipgloss"

// Styles groups the terminal styles used by prompts and toasts.
type Styles struct {
	Info     lipgloss.Style
	Error    lipgloss.Style
	Question lipgloss.Style
	Hint     lipgloss.Style
	Route    lipgloss.Style
}

// DefaultStyles returns the standard palette.
func DefaultStyles() Styles {
	return Styles{
		Info:     lipgloss.NewStyle().Foreground(lipgloss.Color("42")),
		Error:    lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true),
		Question: lipgloss.NewStyle().Foreground(lipgloss.Color("205")).Bold(true),
		Hint:     lipgloss.NewStyle().Foreground(lipgloss.Color("240")),
		Route:    lipgloss.NewStyle().Foreground(lipgloss.Color("39")).Underline(true),
	}
}
