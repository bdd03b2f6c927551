// Package eventwindow aggregates return series over windows anchored at
// funding events: fixed-horizon markouts and cumulative-return trajectories.
package eventwindow

import (
	"sort"

	"funding-market-lab/internal/domain"
)

// Default CAR window around an event.
const (
	DefaultPreMinutes  = 60
	DefaultPostMinutes = 180
)

// DefaultHorizonMinutes is the standard markout horizon.
const DefaultHorizonMinutes = 60

// searchTs returns the index of the first return with TimestampMs >= ts.
func searchTs(rets []*domain.ReturnPoint, ts int64) int {
	return sort.Search(len(rets), func(i int) bool {
		return rets[i].TimestampMs >= ts
	})
}

// Markout sums log returns over (eventMs, eventMs + horizon]. The event's
// own timestamp is excluded, the horizon end is included. When no return
// falls inside the window MarkoutSum is nil and SampleCount is 0, so
// downstream averaging can drop the event instead of treating a data gap
// as a zero move.
//
// rets must be a single symbol's returns sorted by timestamp ASC.
func Markout(symbol string, rets []*domain.ReturnPoint, eventMs int64, horizonMin int) *domain.MarkoutRecord {
	endMs := eventMs + int64(horizonMin)*domain.MillisPerMinute

	rec := &domain.MarkoutRecord{
		Symbol:           symbol,
		EventTimestampMs: eventMs,
		HorizonMinutes:   horizonMin,
	}

	var sum float64
	for i := searchTs(rets, eventMs+1); i < len(rets) && rets[i].TimestampMs <= endMs; i++ {
		sum += rets[i].LogReturn
		rec.SampleCount++
	}
	if rec.SampleCount > 0 {
		rec.MarkoutSum = &sum
	}
	return rec
}

// CarTrajectory computes the cumulative-return path over
// [eventMs - pre, eventMs + post], both ends inclusive. Returns strictly
// before the event contribute zero, so the path is flat at 0 until the
// event and a running sum of post-event returns afterwards.
//
// rets must be a single symbol's returns sorted by timestamp ASC.
func CarTrajectory(symbol string, rets []*domain.ReturnPoint, eventMs int64, preMin, postMin int) []*domain.CarPoint {
	startMs := eventMs - int64(preMin)*domain.MillisPerMinute
	endMs := eventMs + int64(postMin)*domain.MillisPerMinute

	var points []*domain.CarPoint
	var cum float64
	for i := searchTs(rets, startMs); i < len(rets) && rets[i].TimestampMs <= endMs; i++ {
		r := rets[i]
		if r.TimestampMs >= eventMs {
			cum += r.LogReturn
		}
		points = append(points, &domain.CarPoint{
			Symbol:           symbol,
			EventTimestampMs: eventMs,
			TimestampMs:      r.TimestampMs,
			CumulativeReturn: cum,
		})
	}
	return points
}

// SummarizeCar reduces a CAR window to its extremes. The running sum is
// anchored at 0 at the event, so 0 participates in both extremes and
// MinCar can never be positive. An empty window yields nil extremes and
// SampleCount 0.
func SummarizeCar(symbol string, rets []*domain.ReturnPoint, eventMs int64, preMin, postMin int) *domain.CarSummary {
	points := CarTrajectory(symbol, rets, eventMs, preMin, postMin)

	summary := &domain.CarSummary{
		Symbol:           symbol,
		EventTimestampMs: eventMs,
		SampleCount:      len(points),
	}
	if len(points) == 0 {
		return summary
	}

	minCar, maxCar := 0.0, 0.0
	for _, p := range points {
		if p.CumulativeReturn < minCar {
			minCar = p.CumulativeReturn
		}
		if p.CumulativeReturn > maxCar {
			maxCar = p.CumulativeReturn
		}
	}
	summary.MinCar = &minCar
	summary.MaxCar = &maxCar
	return summary
}
