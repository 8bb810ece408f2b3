package tui

import "github.com/charmbracelet/lipgloss"

var footerStyle = lipgloss.NewStyle().
	Foreground(lipgloss.Color("241")).
	PaddingTop(1)
