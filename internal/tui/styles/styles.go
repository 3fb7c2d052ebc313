// Package styles provides shared lipgloss styles for terminal output.
package styles

import "github.com/charmbracelet/lipgloss"

// Color palette using ANSI colors for broad terminal compatibility.
var (
	Primary   = lipgloss.Color("4")   // Blue
	Secondary = lipgloss.Color("245") // Light gray (visible on dark backgrounds)
	Success   = lipgloss.Color("2")   // Green
	Warning   = lipgloss.Color("3")   // Yellow
	Error     = lipgloss.Color("1")   // Red
	Muted     = lipgloss.Color("245") // Light gray (visible on dark backgrounds)
)

// Text styles.
var (
	Title = lipgloss.NewStyle().
		Bold(true).
		Foreground(Primary).
		MarginBottom(1)

	Header = lipgloss.NewStyle().
		Bold(true).
		Underline(true)

	Label = lipgloss.NewStyle().
		Foreground(lipgloss.Color("7"))

	ErrorText = lipgloss.NewStyle().
			Foreground(Error).
			Bold(true)

	WarningText = lipgloss.NewStyle().
			Foreground(Warning)

	SuccessText = lipgloss.NewStyle().
			Foreground(Success)

	MutedText = lipgloss.NewStyle().
			Foreground(Muted)
)

// Column returns a left-aligned cell style padded out to width.
func Column(width int) lipgloss.Style {
	return lipgloss.NewStyle().Width(width)
}

// Row joins rendered cells horizontally.
func Row(cells ...string) string {
	return lipgloss.JoinHorizontal(lipgloss.Top, cells...)
}

// Indicators.
const (
	FrameOK      = "●"
	FrameUnknown = "○"
)
