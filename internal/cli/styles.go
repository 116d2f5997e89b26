package cli

import "github.com/charmbracelet/lipgloss"

// Color palette
const (
	colorPrimary = "#A5C9CA"
	colorSuccess = "#04B575"
	colorWarning = "#FFD369"
	colorError   = "#FF5F5F"
	colorInfo    = "#626262"
	colorBorder  = "#395B64"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color(colorPrimary)).
			MarginBottom(1)

	successStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color(colorSuccess))

	warningStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color(colorWarning))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color(colorError))

	infoStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color(colorInfo))

	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color(colorBorder)).
			Padding(0, 1)

	barFilledStyle = lipgloss.NewStyle().Foreground(lipgloss.Color(colorPrimary))
	barEmptyStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color(colorInfo))
)
