package ui

import (
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"
)

// Palette. Each color has a light and a dark terminal variant.
var (
	PrimaryColor = lipgloss.AdaptiveColor{Light: "#1F5FA8", Dark: "#4FA3E0"} // Lightwave blue
	SuccessColor = lipgloss.AdaptiveColor{Light: "#1E8A3E", Dark: "#43BF6D"}
	ErrorColor   = lipgloss.AdaptiveColor{Light: "#C62828", Dark: "#FF5555"}
	WarningColor = lipgloss.AdaptiveColor{Light: "#B26A00", Dark: "#FFA500"}
	MutedColor   = lipgloss.AdaptiveColor{Light: "#6B6B6B", Dark: "#8A8A8A"}
	TextColor    = lipgloss.AdaptiveColor{Light: "#1A1A1A", Dark: "#F2F2F2"}
)

// Layout limits
const (
	MinTerminalWidth = 60
	MaxContentWidth  = 120

	defaultTerminalHeight = 24
)

func fg(c lipgloss.TerminalColor) lipgloss.Style { return lipgloss.NewStyle().Foreground(c) }

var (
	HeaderTitleStyle      = fg(TextColor).Bold(true).PaddingLeft(2)
	HeaderCommandStyle    = fg(MutedColor).PaddingLeft(2)
	HeaderParamKeyStyle   = fg(MutedColor).PaddingLeft(2)
	HeaderParamValueStyle = fg(TextColor)

	SuccessTitleStyle = fg(SuccessColor).Bold(true)
	ErrorTitleStyle   = fg(ErrorColor).Bold(true)
	ErrorMessageStyle = fg(ErrorColor)

	// ResultKeyStyle aligns the keys of a result box in one column
	ResultKeyStyle   = fg(MutedColor).Width(15)
	ResultValueStyle = fg(TextColor)

	TroubleshootingTitleStyle = fg(MutedColor).Bold(true)
	TroubleshootingItemStyle  = fg(MutedColor)

	TableHeaderStyle = fg(PrimaryColor).Bold(true).Padding(0, 1)
	TableCellStyle   = fg(TextColor).Padding(0, 1)

	// Monitor rows
	SelectedRowStyle = fg(TextColor).Background(PrimaryColor)
	StaleStyle       = fg(WarningColor)
	StatusOnStyle    = fg(SuccessColor).Bold(true)
	StatusOffStyle   = fg(MutedColor)
	HelpStyle        = fg(MutedColor).PaddingLeft(2)
)

const (
	SuccessMarker = "✓"
	FailureMarker = "✗"
	LiveMarker    = "●"
)

// GetTerminalWidth returns the usable width of stdout.
func GetTerminalWidth() int {
	width, _ := GetTerminalSize()
	return width
}

// GetTerminalSize returns the usable width and the height of stdout. When
// stdout is not a terminal the minimum width is assumed.
func GetTerminalSize() (int, int) {
	width, height, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil {
		return MinTerminalWidth, defaultTerminalHeight
	}
	return clampWidth(width), height
}

func clampWidth(width int) int {
	return min(max(width, MinTerminalWidth), MaxContentWidth)
}

// box is a bordered block whose outer width is width.
func box(border lipgloss.Border, color lipgloss.TerminalColor, width int) lipgloss.Style {
	return lipgloss.NewStyle().
		Border(border).
		BorderForeground(color).
		Width(width - 2)
}

// HeaderBorderStyle frames command headers.
func HeaderBorderStyle(width int) lipgloss.Style {
	return box(lipgloss.RoundedBorder(), PrimaryColor, width)
}

// SuccessBoxStyle frames a successful result.
func SuccessBoxStyle(width int) lipgloss.Style {
	return box(lipgloss.DoubleBorder(), SuccessColor, width).Padding(1, 2)
}

// ErrorBoxStyle frames a failure.
func ErrorBoxStyle(width int) lipgloss.Style {
	return box(lipgloss.DoubleBorder(), ErrorColor, width).Padding(1, 2)
}

// TroubleshootingBoxStyle frames the hints nested inside an error box.
func TroubleshootingBoxStyle(width int) lipgloss.Style {
	return box(lipgloss.RoundedBorder(), MutedColor, width-6).Padding(0, 1)
}

// RenderHorizontalDivider draws a rule of char, width cells long.
func RenderHorizontalDivider(width int, char string) string {
	return fg(PrimaryColor).Render(strings.Repeat(char, width))
}
