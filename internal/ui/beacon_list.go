package ui

import (
	"fmt"
	"strings"
	"time"

	"beacon-calibrator.klederson.com/internal/beacon"
	"beacon-calibrator.klederson.com/internal/bluetooth"
)

// proximityOrder is the section order of the beacon list, nearest first.
var proximityOrder = []beacon.Proximity{
	beacon.ProximityImmediate,
	beacon.ProximityNear,
	beacon.ProximityFar,
	beacon.ProximityUnknown,
}

// RenderBeaconList renders ranged beacons grouped by proximity, the way a
// user picks a calibration target.
func RenderBeaconList(groups map[beacon.Proximity][]bluetooth.Sighting, width int) string {
	innerW := width - 4
	if innerW < 20 {
		innerW = 20
	}

	total := 0
	for _, g := range groups {
		total += len(g)
	}

	lines := []string{
		StylePanelTitle.Render(fmt.Sprintf("BEACONS [%d]", total)),
		StyleSeparator.Render(strings.Repeat("-", innerW)),
	}

	if total == 0 {
		lines = append(lines, StyleHelp.Render(" No beacons in range"))
	}

	for _, p := range proximityOrder {
		sightings := groups[p]
		if len(sightings) == 0 {
			continue
		}
		lines = append(lines, "", StyleValue.Render(" "+p.String()))
		for _, sg := range sightings {
			lines = append(lines, renderSighting(sg)...)
		}
	}

	return StylePanelBorder.Width(width - 2).Render(strings.Join(lines, "\n"))
}

func renderSighting(sg bluetooth.Sighting) []string {
	return []string{
		"  " + StyleValue.Render(strings.ToUpper(sg.UUID.String())),
		"  " + StyleLabel.Render(fmt.Sprintf("Major: %d, Minor: %d, RSSI: %.0f dBm, Acc: ~%.1fm, Seen: %dx %s",
			sg.Major, sg.Minor, sg.SmoothedRSSI, sg.Distance, sg.Count, formatLastSeen(sg.LastSeen))),
	}
}

func formatLastSeen(t time.Time) string {
	d := time.Since(t)
	if d < time.Second {
		return "now"
	}
	if d < time.Minute {
		return fmt.Sprintf("%ds ago", int(d.Seconds()))
	}
	return fmt.Sprintf("%dm ago", int(d.Minutes()))
}
