package ui

import (
	"errors"
	"strings"
	"testing"
	"time"

	"beacon-calibrator.klederson.com/internal/beacon"
	"beacon-calibrator.klederson.com/internal/bluetooth"
)

func TestRenderProgressBarCapsFill(t *testing.T) {
	half := renderProgressBar(0.5, 10)
	if got := strings.Count(half, "|"); got != 5 {
		t.Fatalf("half bar has %d filled cells, want 5", got)
	}
	over := renderProgressBar(1.5, 10)
	if got := strings.Count(over, "|"); got != 10 {
		t.Fatalf("overfull bar has %d filled cells, want 10", got)
	}
}

func TestRenderSparkline(t *testing.T) {
	if got := renderSparkline([]int{-80, -70, -60}, 10); got != "_-^" {
		t.Fatalf("sparkline = %q", got)
	}
	if got := renderSparkline([]int{-60, -60, -60, -60}, 2); len(got) != 2 {
		t.Fatalf("sparkline not cut to width: %q", got)
	}
}

func TestRenderCalibrationPanel(t *testing.T) {
	ok := RenderCalibrationPanel(CalibrationView{
		Region:      "B9407F30-F5F8-466E-AFF9-25556B57FE6D",
		Progress:    1.2,
		History:     []int{-61, -59},
		Outcome:     &Outcome{MeasuredPower: -60},
		PathLossExp: 2.5,
	}, 100, 30)
	for _, want := range []string{"Measured power: -60 dBm", "120%", "-59 dBm"} {
		if !strings.Contains(ok, want) {
			t.Fatalf("panel missing %q:\n%s", want, ok)
		}
	}

	failed := RenderCalibrationPanel(CalibrationView{
		Outcome: &Outcome{Err: errors.New("no beacon of the specified type was found")},
		Notice:  "calibration is already in progress",
	}, 100, 30)
	for _, want := range []string{"Unable to calibrate beacon", "no beacon of the specified type", "already in progress"} {
		if !strings.Contains(failed, want) {
			t.Fatalf("panel missing %q:\n%s", want, failed)
		}
	}
}

func TestRenderBeaconList(t *testing.T) {
	region, err := beacon.NewRegion("B9407F30-F5F8-466E-AFF9-25556B57FE6D")
	if err != nil {
		t.Fatal(err)
	}
	groups := map[beacon.Proximity][]bluetooth.Sighting{
		beacon.ProximityFar: {{
			Reading:      beacon.Reading{UUID: region.UUID, Major: 7, Minor: 3},
			SmoothedRSSI: -80,
			Distance:     9.1,
			Count:        4,
			LastSeen:     time.Now(),
		}},
	}

	out := RenderBeaconList(groups, 100)
	for _, want := range []string{"BEACONS [1]", "Far", "B9407F30-F5F8-466E-AFF9-25556B57FE6D", "Major: 7, Minor: 3"} {
		if !strings.Contains(out, want) {
			t.Fatalf("list missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "Near") {
		t.Fatalf("empty group rendered:\n%s", out)
	}

	if empty := RenderBeaconList(nil, 80); !strings.Contains(empty, "No beacons in range") {
		t.Fatalf("empty list:\n%s", empty)
	}
}
