package calibration

import (
	"slices"

	"beacon-calibrator.klederson.com/internal/beacon"
)

// TrimmedAverage sorts values, drops floor(len*fraction) elements from each
// end and returns the mean of the rest, truncated toward zero.
// values must not be empty and fraction must be in [0, 0.5).
func TrimmedAverage(values []int, fraction float64) int {
	sorted := slices.Clone(values)
	slices.Sort(sorted)

	pad := int(float64(len(sorted)) * fraction)
	middle := sorted[pad : len(sorted)-pad]

	var sum int64
	for _, v := range middle {
		sum += int64(v)
	}
	return int(sum / int64(len(middle)))
}

// Reduce turns the batches of one run into a measured power value.
//
// A batch with more than one reading dooms the run, but later single-reading
// batches are still collected; the failure is reported once every batch has
// been looked at.
func Reduce(batches []beacon.Batch, cancelled bool, fraction float64) (int, error) {
	if cancelled {
		return 0, ErrCancelled
	}

	var (
		failure error
		values  []int
	)
	for _, b := range batches {
		switch {
		case b.Len() > 1:
			if failure == nil {
				failure = ErrMultipleBeacons
			}
		case b.Len() == 1:
			values = append(values, b.Reading(0).RSSI)
		}
	}

	if failure != nil {
		return 0, failure
	}
	if len(values) == 0 {
		return 0, ErrNoBeacon
	}
	return TrimmedAverage(values, fraction), nil
}
