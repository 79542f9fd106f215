package risk

import (
	"math"
	"sort"
)

// Mean returns the arithmetic mean of values, or 0 for an empty slice.
func Mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// Percentile returns the p-th percentile of values using linear
// interpolation between closest ranks. Returns 0 for an empty slice. The
// input is not modified.
func Percentile(values []float64, p int) float64 {
	if len(values) == 0 {
		return 0
	}

	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	k := float64(len(sorted)-1) * (float64(p) / 100.0)
	f := math.Floor(k)
	c := math.Ceil(k)

	if f == c {
		return sorted[int(k)]
	}

	d0 := sorted[int(f)] * (c - k)
	d1 := sorted[int(c)] * (k - f)
	return d0 + d1
}

// NormalizeValue linearly scales a raw value into [0,1] against the given
// range, clamping out-of-range inputs. With invert set, higher raw values
// produce lower scores (e.g. tree canopy). A degenerate range yields the
// midpoint 0.5.
func NormalizeValue(raw, minValue, maxValue float64, invert bool) float64 {
	if maxValue == minValue {
		return 0.5
	}

	normalized := (raw - minValue) / (maxValue - minValue)
	normalized = math.Max(0.0, math.Min(1.0, normalized))

	if invert {
		normalized = 1.0 - normalized
	}
	return round3(normalized)
}
