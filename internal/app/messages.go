package app

import (
	"time"

	"beacon-calibrator.klederson.com/internal/beacon"
	"beacon-calibrator.klederson.com/internal/calibration"
)

// StartedMsg reports that scanning for an accepted run is up. It reaches
// the program before any batch or progress of that run.
type StartedMsg struct {
	Deadline time.Time
}

// TickMsg triggers a frame update for the countdown.
type TickMsg time.Time

// ProgressMsg carries a calibration progress update.
type ProgressMsg struct {
	Percent float64
}

// OutcomeMsg carries the outcome of a run, or a rejected start.
type OutcomeMsg struct {
	Result calibration.Result
}

// BatchMsg mirrors a batch delivered to the calibrator, for the live view.
type BatchMsg struct {
	Batch beacon.Batch
}
