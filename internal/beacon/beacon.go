package beacon

import (
	"fmt"
	"math"
	"strings"
	"time"

	"beacon-calibrator.klederson.com/internal/config"
	"tinygo.org/x/bluetooth"
)

// Reading is one observation of an iBeacon advertisement.
type Reading struct {
	Address string
	UUID    bluetooth.UUID
	Major   uint16
	Minor   uint16
	TxPower int8 // Measured power the beacon advertises for itself
	RSSI    int
}

// Batch is the set of readings delivered by one ranging tick. The slice is
// copied in and out so a Batch can be shared between goroutines.
type Batch struct {
	At       time.Time
	readings []Reading
}

// NewBatch creates a batch stamped with the current time.
func NewBatch(readings ...Reading) Batch {
	cp := make([]Reading, len(readings))
	copy(cp, readings)
	return Batch{At: time.Now(), readings: cp}
}

// Len returns the number of readings in the batch.
func (b Batch) Len() int {
	return len(b.readings)
}

// Readings returns a copy of the batch contents.
func (b Batch) Readings() []Reading {
	cp := make([]Reading, len(b.readings))
	copy(cp, b.readings)
	return cp
}

// Reading returns the i-th reading.
func (b Batch) Reading(i int) Reading {
	return b.readings[i]
}

// Region selects which beacons a scanner reports. Major and Minor are
// optional; nil matches any value.
type Region struct {
	UUID  bluetooth.UUID
	Major *uint16
	Minor *uint16
}

// NewRegion parses a proximity UUID such as "B9407F30-F5F8-466E-AFF9-25556B57FE6D".
func NewRegion(uuid string) (Region, error) {
	u, err := bluetooth.ParseUUID(strings.ToLower(uuid))
	if err != nil {
		return Region{}, fmt.Errorf("invalid proximity uuid %q: %w", uuid, err)
	}
	return Region{UUID: u}, nil
}

// WithMajor returns a copy of the region restricted to major.
func (r Region) WithMajor(major uint16) Region {
	r.Major = &major
	return r
}

// WithMinor returns a copy of the region restricted to minor.
func (r Region) WithMinor(minor uint16) Region {
	r.Minor = &minor
	return r
}

// Matches reports whether the reading belongs to the region.
func (r Region) Matches(rd Reading) bool {
	if rd.UUID != r.UUID {
		return false
	}
	if r.Major != nil && *r.Major != rd.Major {
		return false
	}
	if r.Minor != nil && *r.Minor != rd.Minor {
		return false
	}
	return true
}

func (r Region) String() string {
	s := strings.ToUpper(r.UUID.String())
	if r.Major != nil {
		s += fmt.Sprintf(" major=%d", *r.Major)
	}
	if r.Minor != nil {
		s += fmt.Sprintf(" minor=%d", *r.Minor)
	}
	return s
}

// Proximity is the coarse distance class shown when picking a beacon.
type Proximity int

const (
	ProximityUnknown Proximity = iota
	ProximityImmediate
	ProximityNear
	ProximityFar
)

func (p Proximity) String() string {
	switch p {
	case ProximityImmediate:
		return "Immediate"
	case ProximityNear:
		return "Near"
	case ProximityFar:
		return "Far"
	default:
		return "Unknown"
	}
}

// ClassifyDistance maps an estimated distance in meters to a proximity class.
// Non-positive distances mean the estimate is unavailable.
func ClassifyDistance(d float64) Proximity {
	switch {
	case d <= 0:
		return ProximityUnknown
	case d < config.ImmediateRange:
		return ProximityImmediate
	case d < config.NearRange:
		return ProximityNear
	default:
		return ProximityFar
	}
}

// RSSIToDistance estimates distance from RSSI using the log-distance path loss model.
// Formula: d = 10^((measuredPower - rssi) / (10 * n))
// Returns 0 when rssi carries no signal (zero or positive).
func RSSIToDistance(rssi, measuredPower, pathLossExp float64) float64 {
	if rssi >= 0 {
		return 0
	}
	d := math.Pow(10, (measuredPower-rssi)/(10*pathLossExp))
	if d < 0.1 {
		return 0.1
	}
	return d
}
