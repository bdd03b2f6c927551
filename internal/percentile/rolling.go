package percentile

import (
	"funding-market-lab/internal/domain"
)

// P90 is the quantile used for trailing open-interest thresholds.
const P90 = 0.90

// RollingP90 annotates each open-interest snapshot with the 90th percentile
// of open interest over the trailing windowDays window, inclusive of the
// current snapshot. points must be for a single symbol, sorted by timestamp
// ASC. The window always contains the current value, so the percentile is
// defined for every output point.
func RollingP90(points []*domain.OpenInterestPoint, windowDays int) []*domain.OIPercentilePoint {
	if len(points) == 0 {
		return nil
	}

	windowMs := int64(windowDays) * domain.MillisPerDay
	w := NewWindow()
	out := make([]*domain.OIPercentilePoint, 0, len(points))
	head := 0

	for _, p := range points {
		w.Insert(p.OpenInterest)

		cutoff := p.TimestampMs - windowMs
		for points[head].TimestampMs < cutoff {
			w.Remove(points[head].OpenInterest)
			head++
		}

		out = append(out, &domain.OIPercentilePoint{
			Symbol:       p.Symbol,
			TimestampMs:  p.TimestampMs,
			OpenInterest: p.OpenInterest,
			P90:          w.Quantile(P90),
		})
	}

	return out
}
