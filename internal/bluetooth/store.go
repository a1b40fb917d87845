package bluetooth

import (
	"sort"
	"sync"
	"time"

	"beacon-calibrator.klederson.com/internal/beacon"
	"beacon-calibrator.klederson.com/internal/config"
)

// SmoothingAlpha is the EMA factor applied to repeated sightings
// (30% new, 70% old).
const SmoothingAlpha = 0.3

// Sighting is a beacon seen while ranging, with a smoothed RSSI.
type Sighting struct {
	beacon.Reading
	SmoothedRSSI float64
	Distance     float64 // Estimated distance in meters
	Proximity    beacon.Proximity
	LastSeen     time.Time
	Count        int
}

// BeaconStore is a thread-safe store of ranged beacons keyed by advertiser
// address.
type BeaconStore struct {
	mu          sync.RWMutex
	sightings   map[string]*Sighting
	pathLossExp float64
}

// NewBeaconStore creates an empty store.
func NewBeaconStore(pathLossExp float64) *BeaconStore {
	if pathLossExp <= 0 {
		pathLossExp = config.PathLossExp
	}
	return &BeaconStore{
		sightings:   make(map[string]*Sighting),
		pathLossExp: pathLossExp,
	}
}

// AddBatch upserts every reading of a ranging batch.
func (s *BeaconStore) AddBatch(b beacon.Batch) {
	for _, rd := range b.Readings() {
		s.Upsert(rd)
	}
}

// Upsert adds or updates a beacon. Repeated sightings smooth the RSSI with
// an EMA before the distance is re-estimated.
func (s *BeaconStore) Upsert(rd beacon.Reading) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()

	power := float64(rd.TxPower)
	if power == 0 {
		power = config.DefaultMeasuredPower
	}

	if existing, ok := s.sightings[rd.Address]; ok {
		existing.Reading = rd
		existing.SmoothedRSSI = existing.SmoothedRSSI*(1-SmoothingAlpha) + float64(rd.RSSI)*SmoothingAlpha
		existing.Distance = beacon.RSSIToDistance(existing.SmoothedRSSI, power, s.pathLossExp)
		existing.Proximity = beacon.ClassifyDistance(existing.Distance)
		existing.LastSeen = now
		existing.Count++
		return
	}

	dist := beacon.RSSIToDistance(float64(rd.RSSI), power, s.pathLossExp)
	s.sightings[rd.Address] = &Sighting{
		Reading:      rd,
		SmoothedRSSI: float64(rd.RSSI),
		Distance:     dist,
		Proximity:    beacon.ClassifyDistance(dist),
		LastSeen:     now,
		Count:        1,
	}
}

// Evict removes beacons not seen within the timeout duration.
// Returns the number of evicted beacons.
func (s *BeaconStore) Evict(timeout time.Duration) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := time.Now().Add(-timeout)
	count := 0
	for addr, sg := range s.sightings {
		if sg.LastSeen.Before(cutoff) {
			delete(s.sightings, addr)
			count++
		}
	}
	return count
}

// Snapshot returns a sorted copy of all beacons (strongest RSSI first).
func (s *BeaconStore) Snapshot() []Sighting {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]Sighting, 0, len(s.sightings))
	for _, sg := range s.sightings {
		result = append(result, *sg)
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].SmoothedRSSI == result[j].SmoothedRSSI {
			return result[i].Address < result[j].Address
		}
		return result[i].SmoothedRSSI > result[j].SmoothedRSSI // Strongest first (less negative)
	})
	return result
}

// ByProximity groups a snapshot by proximity class, keeping snapshot order
// inside each group.
func (s *BeaconStore) ByProximity() map[beacon.Proximity][]Sighting {
	groups := make(map[beacon.Proximity][]Sighting)
	for _, sg := range s.Snapshot() {
		groups[sg.Proximity] = append(groups[sg.Proximity], sg)
	}
	return groups
}

// Collect adds batches to the store until the stream closes or duration
// elapses, evicting beacons unseen for longer than timeout after each batch.
// It returns the number of beacons left in the store.
func (s *BeaconStore) Collect(batches <-chan beacon.Batch, duration, timeout time.Duration) int {
	deadline := time.After(duration)
	for {
		select {
		case b, ok := <-batches:
			if !ok {
				return s.Count()
			}
			s.AddBatch(b)
			s.Evict(timeout)
		case <-deadline:
			return s.Count()
		}
	}
}

// Count returns the total number of tracked beacons.
func (s *BeaconStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sightings)
}
