package config

import "time"

const (
	// Calibration
	DwellSeconds         = 20                         // Length of one calibration run
	Dwell                = DwellSeconds * time.Second // Same, as a duration
	TrimFraction         = 0.1                        // Share of samples dropped from each end before averaging
	DefaultMeasuredPower = -59                        // RSSI at 1 meter (dBm) before calibration

	// RSSI to distance estimation
	PathLossExp = 2.5 // Path loss exponent (N)

	// Proximity class boundaries in meters
	ImmediateRange = 0.5
	NearRange      = 3.0

	// Scanner
	ScanInterval    = time.Second      // One batch per ranging tick
	SightingTimeout = 10 * time.Second // Drop beacons from the scan listing after this long unseen

	// Demo mode
	DemoBaseRSSI  = -62 // Mock beacon RSSI around which readings drift
	DemoCrowdRate = 0.1 // Chance per tick that a second beacon shows up

	// App
	AppName    = "BEACON-CAL"
	AppVersion = "1.0"
	TargetFPS  = 10
	HistoryLen = 32 // RSSI values kept for the live sparkline
)

// SupportedProximityUUIDs are the regions ranged by default.
var SupportedProximityUUIDs = []string{
	"B9407F30-F5F8-466E-AFF9-25556B57FE6D",
	"5A4BCFCE-174E-4BAC-A814-092E77F6B7E5",
	"74278BDA-B644-4520-8F0C-720EAF059935",
}
