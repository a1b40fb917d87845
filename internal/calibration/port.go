package calibration

import "beacon-calibrator.klederson.com/internal/beacon"

// ScanningPort delivers ranging batches for a region.
//
// Begin starts delivery and returns the stream batches arrive on, in order.
// End stops delivery for the region and must close the stream returned by
// the matching Begin. The calibrator calls End exactly once per successful
// Begin.
type ScanningPort interface {
	Begin(region beacon.Region) (<-chan beacon.Batch, error)
	End(region beacon.Region)
}

// Result is the terminal outcome of a run. Err is nil on success.
type Result struct {
	MeasuredPower int
	Err           error
}

// ResultSink receives progress and the outcome of a run. Calls are made on
// the calibrator's result executor, never while the calibrator is locked.
type ResultSink interface {
	// OnProgress reports batches received over the dwell length in seconds.
	// Values are non-decreasing and may exceed 1 when the scanner delivers
	// faster than once per second.
	OnProgress(percent float64)
	// OnOutcome is called exactly once per run.
	OnOutcome(Result)
}

// Executor runs functions on some execution context.
type Executor interface {
	Submit(fn func())
}

// ExecutorFunc adapts a function to Executor.
type ExecutorFunc func(fn func())

func (f ExecutorFunc) Submit(fn func()) { f(fn) }

// Background runs every function on its own goroutine.
var Background = ExecutorFunc(func(fn func()) { go fn() })
