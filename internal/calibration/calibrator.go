package calibration

import (
	"errors"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"beacon-calibrator.klederson.com/internal/beacon"
	"beacon-calibrator.klederson.com/internal/config"
	"beacon-calibrator.klederson.com/internal/dispatch"
)

// State is the phase of the current run.
type State string

const (
	StateIdle       State = "Idle"
	StateCollecting State = "Collecting"
	StateFinishing  State = "Finishing"
	StateCompleted  State = "Completed"
	StateFailed     State = "Failed"
	StateCancelled  State = "Cancelled"
)

// Active reports whether a run is in flight.
func (s State) Active() bool {
	return s == StateCollecting || s == StateFinishing
}

// Options tunes a Calibrator. Zero values fall back to the config defaults.
type Options struct {
	Dwell         time.Duration
	TrimFraction  float64
	FailFast      bool // Finish as soon as a batch holds more than one beacon
	ClampProgress bool // Cap progress at 1

	// Results runs ResultSink callbacks. It must preserve submission order.
	// Defaults to a dispatch.Queue owned by the calibrator.
	Results Executor
	// Aggregation runs the reduction off the delivery path. Defaults to
	// Background.
	Aggregation Executor
}

type stopper interface {
	Stop() bool
}

// Calibrator collects readings for one region over a dwell window and
// reduces them to a measured power value. One run is active at a time;
// after an outcome a new run may be started.
type Calibrator struct {
	port          ScanningPort
	dwell         time.Duration
	trimFraction  float64
	failFast      bool
	clampProgress bool
	results       Executor
	aggregation   Executor
	ownedQueue    *dispatch.Queue

	// Test seam for the dwell timer.
	afterFunc func(d time.Duration, f func()) stopper

	mu            sync.Mutex
	gen           uint64 // Incremented per run; stale timer fires and deliveries carry an old value
	state         State
	region        beacon.Region
	sink          ResultSink
	batches       []beacon.Batch
	progressCount int
	cancelled     bool
	starting      bool // Begin is in flight; the lock is not held across it
	closed        bool
	timer         stopper
	done          chan struct{} // Closed when the run's outcome is queued
}

// New creates an idle calibrator that scans through port.
func New(port ScanningPort, opts Options) *Calibrator {
	c := &Calibrator{
		port:          port,
		dwell:         opts.Dwell,
		trimFraction:  opts.TrimFraction,
		failFast:      opts.FailFast,
		clampProgress: opts.ClampProgress,
		results:       opts.Results,
		aggregation:   opts.Aggregation,
		state:         StateIdle,
		afterFunc: func(d time.Duration, f func()) stopper {
			return time.AfterFunc(d, f)
		},
	}
	if c.dwell <= 0 {
		c.dwell = config.Dwell
	}
	if c.trimFraction <= 0 {
		c.trimFraction = config.TrimFraction
	}
	if c.results == nil {
		c.ownedQueue = dispatch.NewQueue()
		c.results = c.ownedQueue
	}
	if c.aggregation == nil {
		c.aggregation = Background
	}
	return c
}

// Start begins a run for region. If a run is already in flight, sink
// receives ErrAlreadyInProgress before Start returns false and the running
// calibration is left alone. After Close, sink receives ErrClosed the same
// way.
func (c *Calibrator) Start(region beacon.Region, sink ResultSink) bool {
	c.mu.Lock()

	log := logrus.WithFields(logrus.Fields{
		"operation": "calibration",
		"region":    region.String(),
	})

	if c.closed {
		c.mu.Unlock()
		log.Warn("calibrator is closed")
		sink.OnOutcome(Result{Err: ErrClosed})
		return false
	}
	if c.state.Active() {
		state := c.state
		c.mu.Unlock()
		log.WithField("state", state).Warn("calibration already in progress")
		sink.OnOutcome(Result{Err: ErrAlreadyInProgress})
		return false
	}

	c.gen++
	gen := c.gen
	c.state = StateCollecting
	c.starting = true
	c.region = region
	c.sink = sink
	c.batches = nil
	c.progressCount = 0
	c.cancelled = false
	c.done = make(chan struct{})
	c.mu.Unlock()

	// Begin may block on the adapter; Cancel and State stay available.
	stream, err := c.port.Begin(region)

	c.mu.Lock()
	c.starting = false

	if err != nil {
		c.state = StateFailed
		c.sink = nil
		res := Result{Err: &scanError{cause: err}}
		c.results.Submit(func() { sink.OnOutcome(res) })
		close(c.done)
		c.mu.Unlock()
		log.WithError(err).Error("failed to begin scanning")
		return false
	}

	if c.cancelled {
		c.mu.Unlock()
		log.Info("calibration cancelled while scanning was starting")
		c.finish(gen, true)
		go c.pump(gen, stream)
		return true
	}

	c.timer = c.afterFunc(c.dwell, func() { c.finish(gen, false) })
	c.mu.Unlock()

	log.WithField("dwell", c.dwell).Info("calibration started")

	go c.pump(gen, stream)
	return true
}

// Cancel ends the current run early with ErrCancelled. It does nothing when
// no run is collecting.
func (c *Calibrator) Cancel() {
	c.mu.Lock()
	gen := c.gen
	c.mu.Unlock()

	c.finish(gen, true)
}

// State returns the phase of the current or last run.
func (c *Calibrator) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Close cancels any running calibration and stops the result queue if the
// calibrator created it. Outcomes already queued are still delivered. Later
// calls to Start are rejected with ErrClosed.
func (c *Calibrator) Close() {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()

	c.Cancel()
	if c.ownedQueue == nil {
		return
	}

	c.mu.Lock()
	done := c.done
	c.mu.Unlock()
	if done != nil {
		<-done
	}
	c.ownedQueue.Close()
}

func (c *Calibrator) pump(gen uint64, stream <-chan beacon.Batch) {
	for b := range stream {
		c.deliver(gen, b)
	}
}

func (c *Calibrator) deliver(gen uint64, b beacon.Batch) {
	c.mu.Lock()
	if gen != c.gen || c.state != StateCollecting {
		state := c.state
		c.mu.Unlock()
		logrus.WithFields(logrus.Fields{
			"operation": "calibration",
			"state":     state,
			"readings":  b.Len(),
		}).Debug("dropping batch outside collection")
		return
	}

	c.batches = append(c.batches, b)
	c.progressCount++
	progress := float64(c.progressCount) / c.dwell.Seconds()
	if c.clampProgress && progress > 1 {
		progress = 1
	}
	sink := c.sink
	c.results.Submit(func() { sink.OnProgress(progress) })
	ambiguous := c.failFast && b.Len() > 1
	c.mu.Unlock()

	if ambiguous {
		logrus.WithField("readings", b.Len()).Warn("multiple beacons in one batch, finishing early")
		c.finish(gen, false)
	}
}

// finish is the single gate out of Collecting. Whichever of the timer, Cancel
// or a fail-fast delivery takes the lock first wins; the rest return here.
func (c *Calibrator) finish(gen uint64, cancel bool) {
	c.mu.Lock()
	if gen != c.gen || c.state != StateCollecting {
		c.mu.Unlock()
		return
	}
	if cancel {
		c.cancelled = true
	}
	if c.starting {
		// Start sees the flag once Begin returns.
		c.mu.Unlock()
		return
	}
	c.state = StateFinishing
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	batches := c.batches
	c.batches = nil
	cancelled := c.cancelled
	region := c.region
	c.mu.Unlock()

	logrus.WithFields(logrus.Fields{
		"operation": "calibration",
		"region":    region.String(),
		"batches":   len(batches),
		"cancelled": cancelled,
	}).Info("calibration finishing")

	c.port.End(region)

	c.aggregation.Submit(func() {
		power, err := Reduce(batches, cancelled, c.trimFraction)
		c.complete(gen, power, err)
	})
}

func (c *Calibrator) complete(gen uint64, power int, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.gen || c.state != StateFinishing {
		return
	}

	switch {
	case err == nil:
		c.state = StateCompleted
	case errors.Is(err, ErrCancelled):
		c.state = StateCancelled
	default:
		c.state = StateFailed
	}

	log := logrus.WithFields(logrus.Fields{
		"operation": "calibration",
		"region":    c.region.String(),
		"state":     c.state,
	})
	if err != nil {
		log.WithError(err).Info("calibration failed")
	} else {
		log.WithField("measuredPower", power).Info("calibration completed")
	}

	sink := c.sink
	c.sink = nil
	res := Result{MeasuredPower: power, Err: err}
	c.results.Submit(func() { sink.OnOutcome(res) })
	close(c.done)
}
