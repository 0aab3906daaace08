package tui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/keepwatching/logtail/internal/logstream"
	"github.com/keepwatching/logtail/internal/model"
)

// Palette, 256-colour codes.
const (
	ColorBlue   = lipgloss.Color("39")
	ColorGray   = lipgloss.Color("244")
	ColorNavy   = lipgloss.Color("17")
	ColorWhite  = lipgloss.Color("255")
	ColorRed    = lipgloss.Color("196")
	ColorOrange = lipgloss.Color("208")
	ColorYellow = lipgloss.Color("220")
	ColorGreen  = lipgloss.Color("42")
)

var (
	titleStyle = lipgloss.NewStyle().Foreground(ColorBlue).Bold(true)

	sectionStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(ColorGray)

	chartTitleStyle = lipgloss.NewStyle().Foreground(ColorBlue).Bold(true)

	helpStyle = lipgloss.NewStyle().Foreground(ColorGray)

	statusBarStyle = lipgloss.NewStyle().
			Foreground(ColorWhite).
			Background(ColorNavy)

	pausedBadgeStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("0")).
				Background(ColorYellow).
				Bold(true).
				Padding(0, 1)

	selectedStyle = lipgloss.NewStyle().Reverse(true)

	errorTextStyle = lipgloss.NewStyle().Foreground(ColorRed)

	serviceStyle = lipgloss.NewStyle().Foreground(ColorGray)
)

func levelColor(l model.Level) lipgloss.Color {
	switch l {
	case model.LevelError:
		return ColorRed
	case model.LevelWarn:
		return ColorOrange
	default:
		return ColorBlue
	}
}

func stateColor(s logstream.State) lipgloss.Color {
	switch s {
	case logstream.StateOpen:
		return ColorGreen
	case logstream.StateConnecting:
		return ColorYellow
	case logstream.StateClosedWithError:
		return ColorRed
	default:
		return ColorGray
	}
}
