package tui

import "github.com/charmbracelet/lipgloss"

var (
	// titleStyle is the style for the header line
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("170")).
			MarginLeft(2)

	// statusStyle is the style for the footer status segment
	statusStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241")).
			MarginLeft(2)

	// errorStyle is the style for transient error lines
	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")).
			MarginLeft(2)

	// userLabelStyle is the style for the "You" message header
	userLabelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("39")).
			Bold(true)

	// assistantLabelStyle is the style for the "Agent" message header
	assistantLabelStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("170")).
				Bold(true)

	// toolStyle is the style for tool call and tool result lines
	toolStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("243")).
			Bold(true)

	// connectedStyle marks the gateway as reachable in the footer
	connectedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("42"))

	// disconnectedStyle marks the gateway as unreachable in the footer
	disconnectedStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("196"))
)
