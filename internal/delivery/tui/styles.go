package tui

import "github.com/charmbracelet/lipgloss"

var (
	headerStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205")).Padding(0, 1)
	authorStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39"))
	metaStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	pendingStyle  = lipgloss.NewStyle().Italic(true).Foreground(lipgloss.Color("241"))
	selectedStyle = lipgloss.NewStyle().Background(lipgloss.Color("236"))
	likedStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))
	errorStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	statusStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("220"))
	helpStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("241")).Padding(0, 1)
	replyIndent   = "    "
)
