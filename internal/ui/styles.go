package ui

import "github.com/charmbracelet/lipgloss"

var (
	titleStyle = lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("213")).
		MarginBottom(1)

	normalStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("255"))

	helpStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("243")).
		Italic(true)

	errorStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("196")).
		Bold(true)

	statusStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("117"))

	connectedStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("42"))

	disconnectedStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("196"))

	userMessageStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("111"))

	botMessageStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("120"))

	relayedMessageStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("78"))

	systemMessageStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("221"))

	messageHeaderStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("243")).
		Italic(true)

	documentStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("252")).
		PaddingLeft(2)

	documentBoxStyle = lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("239")).
		Padding(0, 1)

	inputStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("117")).
		Bold(true)
)
