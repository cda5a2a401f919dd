package main

import (
	"github.com/charmbracelet/lipgloss"
)

var (
	// Title style for command headers
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FFFFFF")).
			Background(lipgloss.Color("#4F4FB7")).
			Padding(0, 1)

	// Header cells of tables
	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#81A1C1")).
			Padding(0, 1)

	// Regular table cells
	cellStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#D8DEE9")).
			Padding(0, 1)

	// Dimmed text for secondary information
	mutedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#888888"))

	// Success style for confirmations
	successStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#73F59F"))

	// Table border color
	borderColor = lipgloss.Color("#626262")
)
