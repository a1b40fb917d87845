package app

import (
	"errors"
	"time"

	"beacon-calibrator.klederson.com/internal/beacon"
	"beacon-calibrator.klederson.com/internal/calibration"
	"beacon-calibrator.klederson.com/internal/config"
	"beacon-calibrator.klederson.com/internal/ui"
	tea "github.com/charmbracelet/bubbletea"
)

// shared holds state shared between the Bubble Tea model copies and main.go.
// Because Bubble Tea uses value receivers, pointer fields ensure all copies
// see the same underlying data.
type shared struct {
	port       calibration.ScanningPort
	opts       calibration.Options
	calibrator *calibration.Calibrator
	sink       calibration.ResultSink
	history    *RSSIRing
}

// AppModel is the root Bubble Tea model for the calibrator.
type AppModel struct {
	width  int
	height int

	region      beacon.Region
	source      string
	pathLossExp float64

	active   bool
	state    calibration.State
	progress float64
	deadline time.Time
	batches  int
	readings int
	outcome  *ui.Outcome
	notice   string

	shared *shared
}

// New creates an AppModel that calibrates region through port.
func New(port calibration.ScanningPort, region beacon.Region, source string, cfg *config.File) AppModel {
	return AppModel{
		region:      region,
		source:      source,
		pathLossExp: cfg.PathLossExponent,
		state:       calibration.StateIdle,
		shared: &shared{
			port: port,
			opts: calibration.Options{
				Dwell:         cfg.Dwell,
				TrimFraction:  cfg.TrimFraction,
				FailFast:      cfg.FailFast,
				ClampProgress: cfg.ClampProgress,
			},
			history: NewRSSIRing(config.HistoryLen),
		},
	}
}

// Attach wires the calibrator to the program. Must be called before p.Run().
func (m *AppModel) Attach(p *tea.Program) {
	m.shared.sink = programSink{program: p}
	m.shared.calibrator = calibration.New(&tapPort{
		ScanningPort: m.shared.port,
		program:      p,
		dwell:        m.shared.opts.Dwell,
	}, m.shared.opts)
}

// Close cancels a running calibration and waits for its outcome.
func (m *AppModel) Close() {
	if m.shared.calibrator != nil {
		m.shared.calibrator.Close()
	}
}

func (m AppModel) Init() tea.Cmd {
	return tea.Batch(
		tickCmd(),
		m.startCmd(),
	)
}

func (m AppModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case TickMsg:
		return m, tickCmd()

	case StartedMsg:
		m.active = true
		m.state = calibration.StateCollecting
		m.deadline = msg.Deadline
		m.progress = 0
		m.batches = 0
		m.readings = 0
		m.outcome = nil
		m.notice = ""
		m.shared.history.Reset()
		return m, nil

	case BatchMsg:
		if !m.active {
			return m, nil
		}
		m.batches++
		m.readings += msg.Batch.Len()
		if msg.Batch.Len() == 1 {
			m.shared.history.Push(msg.Batch.Reading(0).RSSI)
		}
		return m, nil

	case ProgressMsg:
		m.progress = msg.Percent
		return m, nil

	case OutcomeMsg:
		if errors.Is(msg.Result.Err, calibration.ErrAlreadyInProgress) {
			m.notice = msg.Result.Err.Error()
			return m, nil
		}
		m.active = false
		m.state = m.shared.calibrator.State()
		m.outcome = &ui.Outcome{MeasuredPower: msg.Result.MeasuredPower, Err: msg.Result.Err}
		return m, nil
	}

	return m, nil
}

func (m AppModel) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "Q", "ctrl+c":
		return m, tea.Sequence(m.cancelCmd(), tea.Quit)

	case "c", "C", "esc":
		return m, m.cancelCmd()

	case "r", "R", "enter":
		// While a run is active this is rejected and shows up as a notice.
		return m, m.startCmd()
	}

	return m, nil
}

func (m AppModel) View() string {
	if m.width == 0 || m.height == 0 {
		return "Initializing calibrator..."
	}

	menuH := 1
	statusH := 1
	bodyH := m.height - menuH - statusH
	if bodyH < 10 {
		bodyH = 10
	}

	menuBar := ui.RenderMenuBar(m.width, m.source, m.active)

	panel := ui.RenderCalibrationPanel(ui.CalibrationView{
		Region:      m.region.String(),
		Active:      m.active,
		Progress:    m.progress,
		Remaining:   time.Until(m.deadline),
		History:     m.shared.history.Values(),
		Outcome:     m.outcome,
		Notice:      m.notice,
		PathLossExp: m.pathLossExp,
	}, m.width, bodyH)

	statusBar := ui.RenderStatusBar(m.width, string(m.state), m.batches, m.readings, m.region.String())

	return ui.ComposeLayout(menuBar, panel, statusBar)
}

// startCmd runs Start off the UI goroutine: a rejected start reports
// through the sink synchronously, which would block inside Update. An
// accepted run announces itself through tapPort.
func (m AppModel) startCmd() tea.Cmd {
	cal := m.shared.calibrator
	sink := m.shared.sink
	region := m.region
	return func() tea.Msg {
		cal.Start(region, sink)
		return nil
	}
}

func (m AppModel) cancelCmd() tea.Cmd {
	cal := m.shared.calibrator
	return func() tea.Msg {
		cal.Cancel()
		return nil
	}
}

func tickCmd() tea.Cmd {
	return tea.Tick(time.Second/time.Duration(config.TargetFPS), func(t time.Time) tea.Msg {
		return TickMsg(t)
	})
}
