// Package percentile provides continuous (interpolated) percentiles over
// static slices and an incremental sliding-window variant for trailing
// open-interest thresholds.
package percentile

import "math"

// Continuous returns the p-quantile of sorted values using linear
// interpolation between closest ranks, matching SQL PERCENTILE_CONT.
// values must be sorted ASC and non-empty; p must be in [0, 1].
func Continuous(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 1 {
		return sorted[0]
	}

	rank := p * float64(n-1)
	lo := int(math.Floor(rank))
	hi := int(math.Ceil(rank))
	if lo == hi {
		return sorted[lo]
	}
	frac := rank - float64(lo)
	return sorted[lo] + frac*(sorted[hi]-sorted[lo])
}
