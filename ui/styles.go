package ui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// ANSI 16-color palette so the chat inherits the user's terminal theme.
// None of the styles set a background; the terminal's own shows through.
var (
	dimColor     = lipgloss.Color("7")
	accentColor  = lipgloss.Color("12")
	successColor = lipgloss.Color("10")
	dangerColor  = lipgloss.Color("9")
)

var (
	UserStyle      = lipgloss.NewStyle().Foreground(successColor).Bold(true)
	AssistantStyle = lipgloss.NewStyle().Foreground(accentColor)

	// Timestamps, system notes, the status bar, and key hints all share
	// the dim treatment.
	DimStyle    = lipgloss.NewStyle().Foreground(dimColor)
	StatusStyle = lipgloss.NewStyle().Foreground(dimColor)
	HelpStyle   = lipgloss.NewStyle().Foreground(dimColor)

	TitleStyle = lipgloss.NewStyle().Bold(true)
	ErrorStyle = lipgloss.NewStyle().Foreground(dangerColor).Bold(true)
)

// FormatFooter renders alternating key/description pairs as a footer line,
// e.g. FormatFooter("enter", "Send", "esc", "Cancel") → "enter Send  esc Cancel".
// Keys stay in the default color; descriptions get the accent color.
func FormatFooter(parts ...string) string {
	desc := lipgloss.NewStyle().Foreground(accentColor).Bold(true)
	var out []string
	for i := 0; i+1 < len(parts); i += 2 {
		out = append(out, parts[i]+" "+desc.Render(parts[i+1]))
	}
	return strings.Join(out, "  ")
}
