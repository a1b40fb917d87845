package app

import (
	"time"

	"beacon-calibrator.klederson.com/internal/beacon"
	"beacon-calibrator.klederson.com/internal/calibration"
	tea "github.com/charmbracelet/bubbletea"
)

// sender is the part of tea.Program the sink and tap use.
type sender interface {
	Send(msg tea.Msg)
}

// programSink forwards calibrator callbacks to the Bubble Tea program, which
// hands them to Update on the UI goroutine.
type programSink struct {
	program sender
}

func (s programSink) OnProgress(percent float64) {
	s.program.Send(ProgressMsg{Percent: percent})
}

func (s programSink) OnOutcome(res calibration.Result) {
	s.program.Send(OutcomeMsg{Result: res})
}

// tapPort wraps a scanning port. It announces each run with StartedMsg once
// scanning is up and mirrors every batch to the program before the
// calibrator sees it, so the program always sees StartedMsg first.
type tapPort struct {
	calibration.ScanningPort
	program sender
	dwell   time.Duration
}

func (t *tapPort) Begin(region beacon.Region) (<-chan beacon.Batch, error) {
	in, err := t.ScanningPort.Begin(region)
	if err != nil {
		return nil, err
	}
	t.program.Send(StartedMsg{Deadline: time.Now().Add(t.dwell)})

	out := make(chan beacon.Batch)
	go func() {
		defer close(out)
		for b := range in {
			t.program.Send(BatchMsg{Batch: b})
			out <- b
		}
	}()
	return out, nil
}
