package bluetooth

import (
	"errors"
	"sync"
	"time"

	pkgerrors "github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"tinygo.org/x/bluetooth"

	"beacon-calibrator.klederson.com/internal/beacon"
)

// ErrScanActive is returned when ranging is requested while a previous
// request has not been stopped.
var ErrScanActive = errors.New("beacon ranging already active")

// observeFunc receives one advertisement's manufacturer data element.
type observeFunc func(address string, rssi int16, companyID uint16, data []byte)

// source produces raw advertisements.
type source interface {
	start(observe observeFunc) error
	stop()
}

// Scanner ranges iBeacon regions and delivers one batch per interval. The
// underlying radio is a singleton, so only one ranging request is active at
// a time.
type Scanner struct {
	src      source
	interval time.Duration

	mu      sync.Mutex
	current *ranger
	key     string
}

func newScanner(src source, interval time.Duration) *Scanner {
	return &Scanner{src: src, interval: interval}
}

// Range starts delivering batches of readings that match any of regions.
func (s *Scanner) Range(regions ...beacon.Region) (<-chan beacon.Batch, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current != nil {
		return nil, ErrScanActive
	}

	r := newRanger(s.interval, regions)
	if err := s.src.start(func(address string, rssi int16, companyID uint16, data []byte) {
		r.observe(address, rssi, companyID, data)
	}); err != nil {
		return nil, err
	}

	s.current = r
	s.key = regionsKey(regions)
	go r.run()

	logrus.WithFields(logrus.Fields{
		"regions":  s.key,
		"interval": s.interval,
	}).Debug("ranging started")
	return r.out, nil
}

// Stop ends the active ranging request and closes its stream.
func (s *Scanner) Stop() {
	s.mu.Lock()
	r := s.current
	s.current = nil
	s.key = ""
	s.mu.Unlock()

	if r == nil {
		return
	}
	s.src.stop()
	r.close()
	logrus.Debug("ranging stopped")
}

// Begin implements calibration.ScanningPort.
func (s *Scanner) Begin(region beacon.Region) (<-chan beacon.Batch, error) {
	return s.Range(region)
}

// End implements calibration.ScanningPort.
func (s *Scanner) End(region beacon.Region) {
	s.mu.Lock()
	key := s.key
	s.mu.Unlock()

	if key != regionsKey([]beacon.Region{region}) {
		logrus.WithFields(logrus.Fields{
			"region": region.String(),
			"active": key,
		}).Warn("end requested for a region that is not being ranged")
		return
	}
	s.Stop()
}

func regionsKey(regions []beacon.Region) string {
	key := ""
	for i, r := range regions {
		if i > 0 {
			key += ","
		}
		key += r.String()
	}
	return key
}

// bleSource scans with the system Bluetooth adapter.
type bleSource struct {
	adapter *bluetooth.Adapter
	enabled bool
}

// NewBLEScanner creates a scanner backed by the default Bluetooth adapter.
func NewBLEScanner(interval time.Duration) *Scanner {
	return newScanner(&bleSource{adapter: bluetooth.DefaultAdapter}, interval)
}

func (b *bleSource) start(observe observeFunc) error {
	if !b.enabled {
		if err := b.adapter.Enable(); err != nil {
			return pkgerrors.Wrap(err, "failed to enable BLE adapter (try running with sudo or setcap cap_net_admin+ep)")
		}
		b.enabled = true
	}

	go func() {
		err := b.adapter.Scan(func(adapter *bluetooth.Adapter, result bluetooth.ScanResult) {
			addr := result.Address.String()
			for _, m := range result.ManufacturerData() {
				observe(addr, result.RSSI, m.CompanyID, m.Data)
			}
		})
		if err != nil {
			logrus.WithError(err).Error("BLE scan ended with error")
		}
	}()
	return nil
}

func (b *bleSource) stop() {
	if err := b.adapter.StopScan(); err != nil {
		logrus.WithError(err).Warn("failed to stop BLE scan")
	}
}
