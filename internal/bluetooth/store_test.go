package bluetooth

import (
	"math"
	"testing"
	"time"

	"beacon-calibrator.klederson.com/internal/beacon"
)

func TestBeaconStoreSmoothsRSSI(t *testing.T) {
	s := NewBeaconStore(2.5)

	s.Upsert(beacon.Reading{Address: "AA", RSSI: -60, TxPower: -60})
	s.Upsert(beacon.Reading{Address: "AA", RSSI: -70, TxPower: -60})

	snap := s.Snapshot()
	if len(snap) != 1 {
		t.Fatalf("snapshot has %d entries, want 1", len(snap))
	}
	sg := snap[0]
	if want := -63.0; math.Abs(sg.SmoothedRSSI-want) > 1e-9 {
		t.Fatalf("smoothed rssi = %v, want %v", sg.SmoothedRSSI, want)
	}
	if sg.Count != 2 || sg.RSSI != -70 {
		t.Fatalf("sighting = %+v", sg)
	}
	if sg.Proximity != beacon.ProximityNear {
		t.Fatalf("proximity = %v, want Near", sg.Proximity)
	}
}

func TestBeaconStoreDefaultsMeasuredPower(t *testing.T) {
	s := NewBeaconStore(0)
	s.Upsert(beacon.Reading{Address: "AA", RSSI: -59})

	if d := s.Snapshot()[0].Distance; math.Abs(d-1) > 1e-9 {
		t.Fatalf("distance = %v, want 1 at default measured power", d)
	}
}

func TestBeaconStoreSnapshotOrder(t *testing.T) {
	s := NewBeaconStore(2.5)
	s.AddBatch(beacon.NewBatch(
		beacon.Reading{Address: "CC", RSSI: -80},
		beacon.Reading{Address: "BB", RSSI: -50},
		beacon.Reading{Address: "AA", RSSI: -80},
	))

	snap := s.Snapshot()
	got := []string{snap[0].Address, snap[1].Address, snap[2].Address}
	want := []string{"BB", "AA", "CC"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("order = %v, want %v", got, want)
		}
	}
}

func TestBeaconStoreByProximity(t *testing.T) {
	s := NewBeaconStore(2.5)
	s.AddBatch(beacon.NewBatch(
		beacon.Reading{Address: "near", RSSI: -60, TxPower: -59},
		beacon.Reading{Address: "far", RSSI: -90, TxPower: -59},
		beacon.Reading{Address: "close", RSSI: -40, TxPower: -59},
	))

	groups := s.ByProximity()
	for addr, want := range map[string]beacon.Proximity{
		"close": beacon.ProximityImmediate,
		"near":  beacon.ProximityNear,
		"far":   beacon.ProximityFar,
	} {
		g := groups[want]
		if len(g) != 1 || g[0].Address != addr {
			t.Fatalf("group %v = %+v, want %s", want, g, addr)
		}
	}
}

func TestBeaconStoreEvict(t *testing.T) {
	s := NewBeaconStore(2.5)
	s.Upsert(beacon.Reading{Address: "old", RSSI: -60})
	s.mu.Lock()
	s.sightings["old"].LastSeen = time.Now().Add(-time.Minute)
	s.mu.Unlock()
	s.Upsert(beacon.Reading{Address: "new", RSSI: -60})

	if n := s.Evict(30 * time.Second); n != 1 {
		t.Fatalf("evicted %d, want 1", n)
	}
	if s.Count() != 1 || s.Snapshot()[0].Address != "new" {
		t.Fatalf("wrong beacon evicted")
	}
}

func TestBeaconStoreCollect(t *testing.T) {
	s := NewBeaconStore(2.5)
	s.Upsert(beacon.Reading{Address: "stale", RSSI: -70})
	s.mu.Lock()
	s.sightings["stale"].LastSeen = time.Now().Add(-time.Minute)
	s.mu.Unlock()

	batches := make(chan beacon.Batch, 2)
	batches <- beacon.NewBatch(beacon.Reading{Address: "AA", RSSI: -60})
	batches <- beacon.NewBatch(beacon.Reading{Address: "AA", RSSI: -62}, beacon.Reading{Address: "BB", RSSI: -80})
	close(batches)

	if n := s.Collect(batches, time.Minute, 30*time.Second); n != 2 {
		t.Fatalf("Collect kept %d beacons, want 2", n)
	}
	snap := s.Snapshot()
	if snap[0].Address != "AA" || snap[0].Count != 2 || snap[1].Address != "BB" {
		t.Fatalf("snapshot = %+v", snap)
	}
}

func TestBeaconStoreCollectStopsAfterDuration(t *testing.T) {
	s := NewBeaconStore(2.5)
	batches := make(chan beacon.Batch)

	done := make(chan int)
	go func() { done <- s.Collect(batches, 20*time.Millisecond, time.Minute) }()

	select {
	case n := <-done:
		if n != 0 {
			t.Fatalf("Collect returned %d beacons from an idle stream", n)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("Collect did not stop after its duration")
	}
}
