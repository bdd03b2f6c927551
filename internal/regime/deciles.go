package regime

import (
	"sort"

	"funding-market-lab/internal/domain"
)

// AssignDeciles ranks funding events by rate within each UTC calendar day,
// pooled across all symbols, and assigns equal-frequency buckets 1..10.
// When the day's event count is not a multiple of 10 the first
// count mod 10 buckets receive one extra event. Ties are broken by input
// order, so assignment is stable across runs.
func AssignDeciles(events []*domain.FundingEvent) []*domain.DecileAssignment {
	byDay := make(map[string][]*domain.FundingEvent)
	var days []string
	for _, e := range events {
		day := domain.UTCDay(e.TimestampMs)
		if _, seen := byDay[day]; !seen {
			days = append(days, day)
		}
		byDay[day] = append(byDay[day], e)
	}
	sort.Strings(days)

	var out []*domain.DecileAssignment
	for _, day := range days {
		dayEvents := append([]*domain.FundingEvent(nil), byDay[day]...)
		sort.SliceStable(dayEvents, func(i, j int) bool {
			return dayEvents[i].Rate < dayEvents[j].Rate
		})

		n := len(dayEvents)
		base := n / 10
		extra := n % 10

		idx := 0
		for decile := 1; decile <= 10; decile++ {
			size := base
			if decile <= extra {
				size++
			}
			for i := 0; i < size; i++ {
				e := dayEvents[idx]
				idx++
				out = append(out, &domain.DecileAssignment{
					Symbol:      e.Symbol,
					TimestampMs: e.TimestampMs,
					Rate:        e.Rate,
					Decile:      decile,
				})
			}
		}
	}
	return out
}

// DecileStats averages markouts per decile, pooled across symbols and days.
// Events without a defined markout are excluded. Only deciles with at least
// one contributing event appear, ordered by decile ASC.
func DecileStats(assignments []*domain.DecileAssignment, markouts map[EventKey]*domain.MarkoutRecord) []*domain.DecileStat {
	sums := make(map[int]float64)
	counts := make(map[int]int)

	for _, a := range assignments {
		k := EventKey{Symbol: a.Symbol, TimestampMs: a.TimestampMs}
		m, ok := definedMarkout(markouts, k)
		if !ok {
			continue
		}
		sums[a.Decile] += m
		counts[a.Decile]++
	}

	var stats []*domain.DecileStat
	for decile := 1; decile <= 10; decile++ {
		n := counts[decile]
		if n == 0 {
			continue
		}
		stats = append(stats, &domain.DecileStat{
			Decile:     decile,
			AvgMarkout: sums[decile] / float64(n),
			EventCount: n,
		})
	}
	return stats
}
