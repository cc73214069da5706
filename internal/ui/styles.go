// Package ui renders terminal output for the CLI: grade cards, metric tables
// and the interactive sample form.
package ui

import (
	"image/color"

	"charm.land/lipgloss/v2"
	"github.com/charmbracelet/fang"

	"github.com/YuminosukeSato/winequality/inference"
)

// Color palette
var (
	ColorPrimary   = lipgloss.Color("#8B5CF6") // Violet
	ColorSecondary = lipgloss.Color("#38BDF8") // Sky
	ColorSuccess   = lipgloss.Color("#10B981") // Green
	ColorWarning   = lipgloss.Color("#F59E0B") // Amber
	ColorError     = lipgloss.Color("#EF4444") // Red
	ColorMuted     = lipgloss.Color("#6B7280") // Gray

	ColorText    = lipgloss.Color("#F9FAFB")
	ColorTextDim = lipgloss.Color("#94A3B8")
)

// Text styles
var (
	Bold      = lipgloss.NewStyle().Bold(true)
	Dim       = lipgloss.NewStyle().Foreground(ColorTextDim)
	Muted     = lipgloss.NewStyle().Foreground(ColorMuted)
	Success   = lipgloss.NewStyle().Foreground(ColorSuccess)
	Warning   = lipgloss.NewStyle().Foreground(ColorWarning)
	Error     = lipgloss.NewStyle().Foreground(ColorError)
	Primary   = lipgloss.NewStyle().Foreground(ColorPrimary)
	Secondary = lipgloss.NewStyle().Foreground(ColorSecondary)

	Title = lipgloss.NewStyle().Foreground(ColorSecondary).Bold(true)

	Box = lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(ColorMuted).
		Padding(0, 1)
)

// CheckMark returns a styled check mark.
func CheckMark() string { return Success.Render("✓") }

// CrossMark returns a styled cross mark.
func CrossMark() string { return Error.Render("✗") }

// WarnMark returns a styled warning mark.
func WarnMark() string { return Warning.Render("⚠") }

// SeverityColor maps a grade severity to the palette.
func SeverityColor(s inference.Severity) color.Color {
	switch s {
	case inference.SeveritySuccess:
		return ColorSuccess
	case inference.SeverityWarning:
		return ColorWarning
	default:
		return ColorError
	}
}

// GradeCard returns the bordered box style for a grade.
func GradeCard(s inference.Severity) lipgloss.Style {
	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(SeverityColor(s)).
		Padding(0, 2)
}

// FangColorScheme returns the fang help colors.
func FangColorScheme(c lipgloss.LightDarkFunc) fang.ColorScheme {
	return fang.ColorScheme{
		Base:           ColorText,
		Title:          ColorSecondary,
		Description:    ColorTextDim,
		Codeblock:      c(lipgloss.Color("#1F2937"), lipgloss.Color("#2F2E36")),
		Program:        ColorPrimary,
		DimmedArgument: ColorMuted,
		Comment:        ColorMuted,
		Flag:           ColorSuccess,
		FlagDefault:    ColorTextDim,
		Command:        ColorPrimary,
		QuotedString:   ColorSecondary,
		Argument:       ColorText,
		Help:           ColorTextDim,
		Dash:           ColorMuted,
		ErrorHeader:    [2]color.Color{ColorText, ColorError},
		ErrorDetails:   ColorError,
	}
}
