// Package cliui provides coordctl's terminal styling, grounded on
// BeadsLog's internal/ui color/style constants (lipgloss.NewStyle() per
// semantic role rather than ad-hoc ANSI codes scattered through command
// files).
package cliui

import "github.com/charmbracelet/lipgloss"

var (
	ColorAccent = lipgloss.Color("12")
	ColorPass   = lipgloss.Color("10")
	ColorWarn   = lipgloss.Color("11")
	ColorFail   = lipgloss.Color("9")
	ColorMuted  = lipgloss.Color("8")
)

var (
	SuccessStyle = lipgloss.NewStyle().Foreground(ColorPass).Bold(true)
	FailStyle    = lipgloss.NewStyle().Foreground(ColorFail).Bold(true)
	WarnStyle    = lipgloss.NewStyle().Foreground(ColorWarn)
	HintStyle    = lipgloss.NewStyle().Foreground(ColorMuted)
	FieldStyle   = lipgloss.NewStyle().Foreground(ColorAccent).Bold(true)
)

// Field renders a "label: value" line with the label styled.
func Field(label, value string) string {
	return FieldStyle.Render(label+":") + " " + value
}
