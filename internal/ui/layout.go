package ui

import "github.com/charmbracelet/lipgloss"

// ComposeLayout stacks the menu bar, the calibration panel and the status bar.
func ComposeLayout(menuBar, panel, statusBar string) string {
	return lipgloss.JoinVertical(lipgloss.Left, menuBar, panel, statusBar)
}
