package display

import (
	"os"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"
)

// Color palette for the console display panel
var (
	PrimaryColor = lipgloss.Color("#7D56F4") // Purple - borders, headers
	SuccessColor = lipgloss.Color("#43BF6D") // Green - healthy status
	ErrorColor   = lipgloss.Color("#FF5555") // Red - error status
	WarningColor = lipgloss.Color("#FFA500") // Orange - warnings, low battery
	MutedColor   = lipgloss.Color("#626262") // Gray - secondary info
	TextColor    = lipgloss.Color("#FFFFFF") // White - main content
)

// Layout constants
const (
	MinPanelWidth = 44 // Minimum panel width, matches a 2.9" landscape aspect
	MaxPanelWidth = 72 // Maximum panel width before capping
)

var (
	// TitleStyle is for the content title line
	TitleStyle = lipgloss.NewStyle().
			Foreground(TextColor).
			Bold(true)

	// SubtitleStyle is for the content subtitle line
	SubtitleStyle = lipgloss.NewStyle().
			Foreground(MutedColor)

	// LineStyle is for the four content body lines
	LineStyle = lipgloss.NewStyle().
			Foreground(TextColor)

	// LabelStyle is for field labels on info screens
	LabelStyle = lipgloss.NewStyle().
			Foreground(MutedColor).
			Width(12)

	// FooterStyle is for the battery and version footer
	FooterStyle = lipgloss.NewStyle().
			Foreground(MutedColor)

	// LogoStyle is for the product name shown when show_logo is set
	LogoStyle = lipgloss.NewStyle().
			Foreground(PrimaryColor).
			Bold(true)
)

// StatusStyle picks a color for the status badge.
func StatusStyle(status string) lipgloss.Style {
	style := lipgloss.NewStyle().Bold(true)
	switch status {
	case "ERROR", "OFFLINE", "FAILED":
		return style.Foreground(ErrorColor)
	case "UNKNOWN", "WAITING", "PAUSED":
		return style.Foreground(WarningColor)
	default:
		return style.Foreground(SuccessColor)
	}
}

// PanelStyle returns the bordered panel that frames every screen.
func PanelStyle(width int) lipgloss.Style {
	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(PrimaryColor).
		Width(width - 2).
		Padding(0, 2)
}

// PanelWidth returns the render width, clamped to the panel limits. It
// follows the terminal when stdout is one, and falls back to the
// minimum otherwise.
func PanelWidth() int {
	width, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil || width < MinPanelWidth {
		return MinPanelWidth
	}
	if width > MaxPanelWidth {
		return MaxPanelWidth
	}
	return width
}
