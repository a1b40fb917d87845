package bluetooth

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"time"

	"beacon-calibrator.klederson.com/internal/beacon"
	"beacon-calibrator.klederson.com/internal/config"
)

var mockBeaconTemplates = []struct {
	uuidIdx  int
	major    uint16
	minor    uint16
	baseRSSI float64
	crowd    bool // Shares the calibration target's UUID and major, shows up intermittently
}{
	{0, 1, 1, config.DemoBaseRSSI, false},
	{0, 1, 2, config.DemoBaseRSSI - 12, true},
	{1, 7, 3, -74, false},
	{2, 100, 42, -85, false},
}

type mockBeacon struct {
	mac       string
	payload   []byte
	baseRSSI  float64
	phase     float64
	amplitude float64
	active    bool
	crowd     bool
}

// mockSource generates fake iBeacon advertisements for demo mode.
type mockSource struct {
	beacons []mockBeacon
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewMockScanner creates a scanner fed by fake beacons. The first beacon
// advertises the first supported UUID with major 1, minor 1. With crowded
// set, a second beacon in the same region appears from time to time.
func NewMockScanner(interval time.Duration, crowded bool) *Scanner {
	var beacons []mockBeacon
	for _, tmpl := range mockBeaconTemplates {
		if tmpl.crowd && !crowded {
			continue
		}
		region, err := beacon.NewRegion(config.SupportedProximityUUIDs[tmpl.uuidIdx])
		if err != nil {
			panic(err)
		}
		beacons = append(beacons, mockBeacon{
			mac: randomMAC(),
			payload: beacon.EncodeIBeacon(beacon.Reading{
				UUID:    region.UUID,
				Major:   tmpl.major,
				Minor:   tmpl.minor,
				TxPower: config.DefaultMeasuredPower,
			}),
			baseRSSI:  tmpl.baseRSSI,
			phase:     rand.Float64() * 2 * math.Pi,
			amplitude: 1 + rand.Float64()*3, // 1-4 dBm fluctuation
			active:    !tmpl.crowd,
			crowd:     tmpl.crowd,
		})
	}
	return newScanner(&mockSource{beacons: beacons}, interval)
}

func (s *mockSource) start(observe observeFunc) error {
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.done = make(chan struct{})

	go s.loop(ctx, observe)
	return nil
}

func (s *mockSource) loop(ctx context.Context, observe observeFunc) {
	defer close(s.done)

	ticker := time.NewTicker(200 * time.Millisecond)
	defer ticker.Stop()

	t := 0.0
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			t += 0.2
			s.emit(t, observe)
		}
	}
}

func (s *mockSource) emit(t float64, observe observeFunc) {
	for i := range s.beacons {
		b := &s.beacons[i]

		// Crowding beacons come and go
		if b.crowd && rand.Float64() < config.DemoCrowdRate {
			b.active = !b.active
		}
		if !b.active {
			continue
		}

		// Sinusoidal RSSI fluctuation + noise, plus the odd reflection spike
		rssi := b.baseRSSI + b.amplitude*math.Sin(t*0.5+b.phase) + (rand.Float64()-0.5)*4
		if rand.Float64() < 0.03 {
			rssi -= 25
		}

		observe(b.mac, int16(rssi), beacon.CompanyApple, b.payload)
	}
}

func (s *mockSource) stop() {
	if s.cancel != nil {
		s.cancel()
		<-s.done
	}
}

func randomMAC() string {
	b := make([]byte, 6)
	for i := range b {
		b[i] = byte(rand.Intn(256))
	}
	return fmt.Sprintf("%02X:%02X:%02X:%02X:%02X:%02X", b[0], b[1], b[2], b[3], b[4], b[5])
}
