package ui

import (
	"fmt"
	"math"
	"strings"
	"time"

	"beacon-calibrator.klederson.com/internal/beacon"
	"github.com/charmbracelet/lipgloss"
)

// CalibrationView is everything the calibration panel shows.
type CalibrationView struct {
	Region      string
	Active      bool
	Progress    float64
	Remaining   time.Duration
	History     []int // Recent single-beacon RSSI values, oldest first
	Outcome     *Outcome
	Notice      string
	PathLossExp float64
}

// Outcome is the finished run as shown to the user.
type Outcome struct {
	MeasuredPower int
	Err           error
}

// RenderCalibrationPanel renders the progress, live RSSI and outcome of a run.
func RenderCalibrationPanel(v CalibrationView, width, height int) string {
	innerW := width - 4
	if innerW < 20 {
		innerW = 20
	}

	title := StylePanelTitle.Render("CALIBRATION")
	sep := StyleSeparator.Render(strings.Repeat("-", innerW))
	lines := []string{title, sep, ""}

	remaining := "-"
	if v.Active {
		remaining = fmt.Sprintf("%ds", int(math.Ceil(v.Remaining.Seconds())))
	}
	fields := []struct{ label, value string }{
		{"Region", v.Region},
		{"Remaining", remaining},
	}
	if n := len(v.History); n > 0 {
		fields = append(fields, struct{ label, value string }{"RSSI", fmt.Sprintf("%d dBm", v.History[n-1])})
	}
	for _, f := range fields {
		lines = append(lines, StyleLabel.Render(fmt.Sprintf("  %-10s", f.label))+StyleValue.Render(f.value))
	}
	lines = append(lines, "")

	barWidth := innerW - 20
	if barWidth < 10 {
		barWidth = 10
	}
	lines = append(lines, StyleLabel.Render("  Progress ")+renderProgressBar(v.Progress, barWidth)+
		StyleValue.Render(fmt.Sprintf(" %3.0f%%", v.Progress*100)))
	lines = append(lines, "")

	if len(v.History) > 0 {
		sparkW := innerW - 4
		if sparkW < 10 {
			sparkW = 10
		}
		lines = append(lines, StyleLabel.Render("  RSSI History:"))
		lines = append(lines, "  "+StyleSparkline.Render(renderSparkline(v.History, sparkW)))
		lines = append(lines, "")
	}

	if v.Outcome != nil {
		lines = append(lines, renderOutcome(*v.Outcome, v.History, v.PathLossExp)...)
	}
	if v.Notice != "" {
		lines = append(lines, "", "  "+StyleNotice.Render(v.Notice))
	}

	for len(lines) < height-2 {
		lines = append(lines, "")
	}

	style := StylePanelBorder
	if v.Active {
		style = StylePanelActive
	}
	return style.Width(width - 2).Height(height - 2).Render(strings.Join(lines, "\n"))
}

func renderOutcome(o Outcome, history []int, pathLossExp float64) []string {
	if o.Err != nil {
		return []string{
			StyleFailure.Render("  Unable to calibrate beacon"),
			"  " + StyleNotice.Render(o.Err.Error()),
			"",
			StyleHelp.Render("  Press [R] to try again"),
		}
	}

	lines := []string{
		StyleSuccess.Render(fmt.Sprintf("  Measured power: %d dBm", o.MeasuredPower)),
	}
	if n := len(history); n > 0 {
		d := beacon.RSSIToDistance(float64(history[n-1]), float64(o.MeasuredPower), pathLossExp)
		lines = append(lines, StyleLabel.Render(fmt.Sprintf("  Latest reading %d dBm is ~%.1fm away at this power", history[n-1], d)))
	}
	return lines
}

// renderProgressBar fills up to width. Progress beyond 1 keeps the bar full;
// the percentage label next to it carries the real value.
func renderProgressBar(progress float64, width int) string {
	ratio := progress
	if ratio < 0 {
		ratio = 0
	}
	if ratio > 1 {
		ratio = 1
	}
	filled := int(math.Round(ratio * float64(width)))

	filledPart := lipgloss.NewStyle().Foreground(ColorMatrixGreen).Render(strings.Repeat("|", filled))
	emptyPart := lipgloss.NewStyle().Foreground(ColorDimGreen).Render(strings.Repeat("-", width-filled))
	return StyleHelp.Render("[") + filledPart + emptyPart + StyleHelp.Render("]")
}

func renderSparkline(values []int, width int) string {
	if len(values) == 0 {
		return ""
	}

	chars := []byte{'_', '.', '-', '~', '^'}

	// Take last `width` values
	if len(values) > width {
		values = values[len(values)-width:]
	}

	// Find min/max for scaling
	minV, maxV := values[0], values[0]
	for _, v := range values {
		minV = min(minV, v)
		maxV = max(maxV, v)
	}

	rng := float64(maxV - minV)
	if rng < 1 {
		rng = 1
	}

	var sb strings.Builder
	for _, v := range values {
		idx := int(float64(v-minV) / rng * float64(len(chars)-1))
		idx = max(0, min(idx, len(chars)-1))
		sb.WriteByte(chars[idx])
	}

	return sb.String()
}
