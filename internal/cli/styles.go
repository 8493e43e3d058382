// Package cli renders runs for the terminal and talks to the operator.
package cli

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/D0rk4ce/mealie-kitchen-ops/internal/model"
)

// Kitchen palette.
const (
	Basil    = lipgloss.Color("#6BCB77")
	Tomato   = lipgloss.Color("#E4572E")
	Saffron  = lipgloss.Color("#F3A712")
	Sage     = lipgloss.Color("#A8C5A0")
	Pepper   = lipgloss.Color("#6C6C6C")
	CastIron = lipgloss.Color("#3A3A3A")
)

const (
	SuccessIcon = "✓"
	ErrorIcon   = "✗"
	WarningIcon = "⚠️"
	InfoIcon    = "ℹ️"
	SkipIcon    = "-"
	KitchenIcon = "🍳"
	RobotIcon   = "🤖"
	ChartIcon   = "📊"
)

var (
	// TitleStyle heads a report or a box.
	TitleStyle = lipgloss.NewStyle().Bold(true).Foreground(Basil).MarginBottom(1)
	// HeadingStyle heads a section inside a report.
	HeadingStyle = lipgloss.NewStyle().Bold(true)
	// LabelStyle is the left column of a two-column table.
	LabelStyle  = lipgloss.NewStyle().Bold(true).PaddingRight(2)
	CellStyle   = lipgloss.NewStyle().PaddingRight(2)
	MutedStyle  = lipgloss.NewStyle().Foreground(Pepper)
	BoxStyle    = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(CastIron).Padding(1, 2)
	PromptStyle = lipgloss.NewStyle().Bold(true).Foreground(Saffron)

	okStyle   = lipgloss.NewStyle().Foreground(Basil)
	warnStyle = lipgloss.NewStyle().Foreground(Saffron)
	failStyle = lipgloss.NewStyle().Foreground(Tomato)
	noteStyle = lipgloss.NewStyle().Foreground(Sage)
)

// StateStyle colors text by the outcome of a recipe.
func StateStyle(state model.ItemState) lipgloss.Style {
	switch state {
	case model.StateSucceeded:
		return okStyle
	case model.StateSkipped:
		return warnStyle
	case model.StateFailed:
		return failStyle
	default:
		return CellStyle
	}
}

// StateIcon marks a recipe outcome in lists.
func StateIcon(state model.ItemState) string {
	switch state {
	case model.StateSucceeded:
		return okStyle.Render(SuccessIcon)
	case model.StateSkipped:
		return warnStyle.Render(SkipIcon)
	case model.StateFailed:
		return failStyle.Render(ErrorIcon)
	default:
		return " "
	}
}

func badge(style lipgloss.Style, icon, message string) string {
	return style.Render(icon + " " + message)
}

func FormatSuccess(message string) string { return badge(okStyle, SuccessIcon, message) }
func FormatError(message string) string   { return badge(failStyle, ErrorIcon, message) }
func FormatWarning(message string) string { return badge(warnStyle, WarningIcon, message) }
func FormatInfo(message string) string    { return badge(noteStyle, InfoIcon, message) }
func FormatPrompt(prompt string) string   { return PromptStyle.Render(prompt) }

// RenderBox frames content under a title.
func RenderBox(title, content string) string {
	return BoxStyle.Render(lipgloss.JoinVertical(lipgloss.Left,
		TitleStyle.UnsetMargins().Render(title),
		content,
	))
}
