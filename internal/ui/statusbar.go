package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// RenderStatusBar renders the bottom status bar.
func RenderStatusBar(width int, state string, batches, readings int, region string) string {
	status := StyleStatusActive.Render("[" + strings.ToUpper(state) + "]")

	info := fmt.Sprintf(" Batches: %d  Readings: %d  Region: %s", batches, readings, region)

	content := status + StyleStatusBar.Foreground(ColorGreen).Render(info)

	gap := width - lipgloss.Width(content)
	if gap < 0 {
		gap = 0
	}

	return StyleStatusBar.Width(width).Render(content + strings.Repeat(" ", gap))
}
