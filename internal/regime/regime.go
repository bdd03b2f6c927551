// Package regime classifies funding events: daily rate deciles, composite
// extreme-regime detection from funding-rate and open-interest percentiles,
// volatility terciles and the low-volatility safe-symbol filter.
package regime

import (
	"math"
	"sort"

	"funding-market-lab/internal/domain"
	"funding-market-lab/internal/percentile"
)

// Defaults for extreme-regime reporting.
const (
	DefaultMinEvents = 5
	DefaultTopK      = 10
)

// EventKey identifies one funding event.
type EventKey struct {
	Symbol      string
	TimestampMs int64
}

// KeyOf returns the key of a funding event.
func KeyOf(e *domain.FundingEvent) EventKey {
	return EventKey{Symbol: e.Symbol, TimestampMs: e.TimestampMs}
}

// definedMarkout returns the markout sum for an event, or false when the
// event has no markout or its window had no samples. Zero-sample events are
// excluded from every average and ranking, never counted as 0.
func definedMarkout(markouts map[EventKey]*domain.MarkoutRecord, k EventKey) (float64, bool) {
	rec, ok := markouts[k]
	if !ok || rec.SampleCount == 0 || rec.MarkoutSum == nil {
		return 0, false
	}
	return *rec.MarkoutSum, true
}

// DailyRateP90 computes, per (symbol, UTC day), the continuous 90th
// percentile of |rate| across that day's events.
func DailyRateP90(events []*domain.FundingEvent) map[string]map[string]float64 {
	grouped := make(map[string]map[string][]float64)
	for _, e := range events {
		day := domain.UTCDay(e.TimestampMs)
		if grouped[e.Symbol] == nil {
			grouped[e.Symbol] = make(map[string][]float64)
		}
		grouped[e.Symbol][day] = append(grouped[e.Symbol][day], math.Abs(e.Rate))
	}

	out := make(map[string]map[string]float64, len(grouped))
	for sym, days := range grouped {
		out[sym] = make(map[string]float64, len(days))
		for day, rates := range days {
			sort.Float64s(rates)
			out[sym][day] = percentile.Continuous(rates, 0.90)
		}
	}
	return out
}

// ExtremeRegimes flags events whose |rate| exceeds the symbol's daily 90th
// percentile of |rate| while the time-aligned open interest exceeds its
// trailing 14-day 90th percentile, then summarizes flagged events per
// symbol. Symbols with fewer than minEvents flagged events are dropped;
// the rest are ranked by average 60-minute markout descending (symbol ASC
// on ties) and truncated to topK.
//
// oiByEvent maps an event to the open-interest snapshot at exactly the
// event's timestamp; events without an aligned snapshot are never flagged.
// Flagged events without a defined markout do not count toward the gate.
func ExtremeRegimes(
	events []*domain.FundingEvent,
	oiByEvent map[EventKey]*domain.OIPercentilePoint,
	markouts map[EventKey]*domain.MarkoutRecord,
	minEvents, topK int,
) []*domain.RegimeStat {
	dailyP90 := DailyRateP90(events)

	sums := make(map[string]float64)
	counts := make(map[string]int)

	for _, e := range events {
		k := KeyOf(e)
		oi, ok := oiByEvent[k]
		if !ok {
			continue
		}
		threshold := dailyP90[e.Symbol][domain.UTCDay(e.TimestampMs)]
		if math.Abs(e.Rate) <= threshold || oi.OpenInterest <= oi.P90 {
			continue
		}
		m, ok := definedMarkout(markouts, k)
		if !ok {
			continue
		}
		sums[e.Symbol] += m
		counts[e.Symbol]++
	}

	var stats []*domain.RegimeStat
	for sym, n := range counts {
		if n < minEvents {
			continue
		}
		stats = append(stats, &domain.RegimeStat{
			Symbol:     sym,
			AvgMarkout: sums[sym] / float64(n),
			EventCount: n,
		})
	}

	sort.Slice(stats, func(i, j int) bool {
		if stats[i].AvgMarkout != stats[j].AvgMarkout {
			return stats[i].AvgMarkout > stats[j].AvgMarkout
		}
		return stats[i].Symbol < stats[j].Symbol
	})
	if topK > 0 && len(stats) > topK {
		stats = stats[:topK]
	}
	return stats
}

// SafeSymbols reports the symbols with no event combining below-median
// trailing 1-day volatility with a negative 30-minute markout. The median
// is taken globally over all events with a defined rv1d. Implemented as a
// single pass collecting violating symbols, then the sorted complement.
//
// The universe is every symbol with at least one defined-rv event; events
// with undefined rv cannot violate.
func SafeSymbols(
	events []*domain.FundingEvent,
	rv1d map[EventKey]*float64,
	markouts30 map[EventKey]*domain.MarkoutRecord,
) []string {
	var vols []float64
	universe := make(map[string]struct{})
	for _, e := range events {
		rv := rv1d[KeyOf(e)]
		if rv == nil {
			continue
		}
		vols = append(vols, *rv)
		universe[e.Symbol] = struct{}{}
	}
	if len(vols) == 0 {
		return nil
	}
	sort.Float64s(vols)
	median := percentile.Continuous(vols, 0.5)

	violating := make(map[string]struct{})
	for _, e := range events {
		k := KeyOf(e)
		rv := rv1d[k]
		if rv == nil || *rv >= median {
			continue
		}
		m, ok := definedMarkout(markouts30, k)
		if ok && m < 0 {
			violating[e.Symbol] = struct{}{}
		}
	}

	var safe []string
	for sym := range universe {
		if _, bad := violating[sym]; !bad {
			safe = append(safe, sym)
		}
	}
	sort.Strings(safe)
	return safe
}
