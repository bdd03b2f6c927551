package regime

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"

	"funding-market-lab/internal/domain"
)

// HourlyMarkouts averages markouts by UTC hour of the event timestamp,
// pooled across symbols. Hours without a contributing event are omitted;
// output is ordered by hour ASC.
func HourlyMarkouts(events []*domain.FundingEvent, markouts map[EventKey]*domain.MarkoutRecord) []*domain.HourlyStat {
	byHour := make(map[int][]float64)
	for _, e := range events {
		m, ok := definedMarkout(markouts, KeyOf(e))
		if !ok {
			continue
		}
		hour := domain.UTCHour(e.TimestampMs)
		byHour[hour] = append(byHour[hour], m)
	}

	var stats []*domain.HourlyStat
	for hour := 0; hour < 24; hour++ {
		values := byHour[hour]
		if len(values) == 0 {
			continue
		}
		stats = append(stats, &domain.HourlyStat{
			Hour:       hour,
			AvgMarkout: stat.Mean(values, nil),
			EventCount: len(values),
		})
	}
	return stats
}

// AssignVolTerciles ranks all events with a defined pre-event volatility
// globally (not per day) into three equal-frequency buckets. Events with
// undefined volatility are excluded. Ties are broken by input order.
func AssignVolTerciles(events []*domain.FundingEvent, rv1h map[EventKey]*float64) []*domain.RegimeAssignment {
	var ranked []*domain.RegimeAssignment
	for _, e := range events {
		rv := rv1h[KeyOf(e)]
		if rv == nil {
			continue
		}
		ranked = append(ranked, &domain.RegimeAssignment{
			Symbol:             e.Symbol,
			EventTimestampMs:   e.TimestampMs,
			RealizedVolatility: *rv,
		})
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].RealizedVolatility < ranked[j].RealizedVolatility
	})

	n := len(ranked)
	base := n / 3
	extra := n % 3

	idx := 0
	for tercile := 1; tercile <= 3; tercile++ {
		size := base
		if tercile <= extra {
			size++
		}
		for i := 0; i < size; i++ {
			ranked[idx].VolatilityTercile = tercile
			idx++
		}
	}
	return ranked
}

// TercileStats averages markouts per volatility tercile.
func TercileStats(assignments []*domain.RegimeAssignment, markouts map[EventKey]*domain.MarkoutRecord) []*domain.TercileStat {
	byTercile := make(map[int][]float64)
	for _, a := range assignments {
		k := EventKey{Symbol: a.Symbol, TimestampMs: a.EventTimestampMs}
		m, ok := definedMarkout(markouts, k)
		if !ok {
			continue
		}
		byTercile[a.VolatilityTercile] = append(byTercile[a.VolatilityTercile], m)
	}

	var stats []*domain.TercileStat
	for tercile := 1; tercile <= 3; tercile++ {
		values := byTercile[tercile]
		if len(values) == 0 {
			continue
		}
		stats = append(stats, &domain.TercileStat{
			Tercile:    tercile,
			AvgMarkout: stat.Mean(values, nil),
			EventCount: len(values),
		})
	}
	return stats
}

// TopFundingPressure ranks symbols by average absolute funding rate,
// descending. Symbols with fewer than minEvents events are dropped and the
// result is truncated to topK.
func TopFundingPressure(events []*domain.FundingEvent, minEvents, topK int) []*domain.FundingPressure {
	bySymbol := make(map[string][]float64)
	for _, e := range events {
		bySymbol[e.Symbol] = append(bySymbol[e.Symbol], math.Abs(e.Rate))
	}

	var out []*domain.FundingPressure
	for sym, rates := range bySymbol {
		if len(rates) < minEvents {
			continue
		}
		out = append(out, &domain.FundingPressure{
			Symbol:     sym,
			AvgAbsRate: stat.Mean(rates, nil),
			EventCount: len(rates),
		})
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].AvgAbsRate != out[j].AvgAbsRate {
			return out[i].AvgAbsRate > out[j].AvgAbsRate
		}
		return out[i].Symbol < out[j].Symbol
	})
	if topK > 0 && len(out) > topK {
		out = out[:topK]
	}
	return out
}

// PostEventVolatility averages the realized volatility over the 30 minutes
// after each event, per symbol, descending. Events with undefined
// volatility are excluded.
func PostEventVolatility(events []*domain.FundingEvent, postVol map[EventKey]*float64) []*domain.PostEventVol {
	bySymbol := make(map[string][]float64)
	for _, e := range events {
		rv := postVol[KeyOf(e)]
		if rv == nil {
			continue
		}
		bySymbol[e.Symbol] = append(bySymbol[e.Symbol], *rv)
	}

	var out []*domain.PostEventVol
	for sym, vols := range bySymbol {
		out = append(out, &domain.PostEventVol{
			Symbol:     sym,
			AvgVol:     stat.Mean(vols, nil),
			EventCount: len(vols),
		})
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].AvgVol != out[j].AvgVol {
			return out[i].AvgVol > out[j].AvgVol
		}
		return out[i].Symbol < out[j].Symbol
	})
	return out
}

// CountPositiveMoves counts, per symbol, the events whose 30-minute markout
// exceeds threshold. Symbols with zero qualifying events are omitted;
// output is ordered by count descending, symbol ASC on ties.
func CountPositiveMoves(events []*domain.FundingEvent, markouts30 map[EventKey]*domain.MarkoutRecord, threshold float64) []*domain.PositiveMoveCount {
	counts := make(map[string]int)
	for _, e := range events {
		m, ok := definedMarkout(markouts30, KeyOf(e))
		if ok && m > threshold {
			counts[e.Symbol]++
		}
	}

	var out []*domain.PositiveMoveCount
	for sym, n := range counts {
		out = append(out, &domain.PositiveMoveCount{Symbol: sym, Count: n})
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Symbol < out[j].Symbol
	})
	return out
}
