package bluetooth

import (
	"sync"
	"time"

	"beacon-calibrator.klederson.com/internal/beacon"
)

// ranger turns iBeacon advertisements into one batch per tick, keeping the
// latest reading of each advertiser seen during the tick.
type ranger struct {
	interval time.Duration
	regions  []beacon.Region

	mu    sync.Mutex
	seen  map[string]beacon.Reading
	order []string // Advertiser addresses in first-seen order

	out  chan beacon.Batch
	stop chan struct{}
	done chan struct{}
}

func newRanger(interval time.Duration, regions []beacon.Region) *ranger {
	return &ranger{
		interval: interval,
		regions:  regions,
		seen:     make(map[string]beacon.Reading),
		out:      make(chan beacon.Batch, 8),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// observe records one advertisement. Safe to call from any goroutine.
func (r *ranger) observe(address string, rssi int16, companyID uint16, data []byte) bool {
	rd, ok := beacon.ParseIBeacon(companyID, data)
	if !ok {
		return false
	}
	rd.Address = address
	rd.RSSI = int(rssi)
	if !r.matches(rd) {
		return false
	}

	r.mu.Lock()
	if _, ok := r.seen[address]; !ok {
		r.order = append(r.order, address)
	}
	r.seen[address] = rd
	r.mu.Unlock()
	return true
}

func (r *ranger) matches(rd beacon.Reading) bool {
	for _, region := range r.regions {
		if region.Matches(rd) {
			return true
		}
	}
	return false
}

// flush empties the current tick into a batch.
func (r *ranger) flush() beacon.Batch {
	r.mu.Lock()
	defer r.mu.Unlock()

	readings := make([]beacon.Reading, 0, len(r.order))
	for _, addr := range r.order {
		readings = append(readings, r.seen[addr])
	}
	r.seen = make(map[string]beacon.Reading)
	r.order = r.order[:0]
	return beacon.NewBatch(readings...)
}

// run delivers a batch every interval until close is called, then closes out.
func (r *ranger) run() {
	defer close(r.done)
	defer close(r.out)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-r.stop:
			return
		case <-ticker.C:
			b := r.flush()
			select {
			case r.out <- b:
			case <-r.stop:
				return
			}
		}
	}
}

func (r *ranger) close() {
	close(r.stop)
	<-r.done
}
