package regime

import (
	"math"
	"testing"

	"funding-market-lab/internal/domain"
)

func fptr(v float64) *float64 { return &v }

func markoutRec(sym string, ts int64, sum float64, samples int) *domain.MarkoutRecord {
	rec := &domain.MarkoutRecord{Symbol: sym, EventTimestampMs: ts, SampleCount: samples}
	if samples > 0 {
		rec.MarkoutSum = &sum
	}
	return rec
}

func TestAssignDeciles_HundredEvents(t *testing.T) {
	// 100 events on one day: exactly 10 deciles of 10, avg rate non-decreasing.
	var events []*domain.FundingEvent
	for i := 0; i < 100; i++ {
		events = append(events, &domain.FundingEvent{
			Symbol:      "BTCUSDT",
			TimestampMs: int64(i) * domain.MillisPerMinute,
			Rate:        float64(99-i) * 0.0001, // descending input order
		})
	}

	assignments := AssignDeciles(events)

	if len(assignments) != 100 {
		t.Fatalf("expected 100 assignments, got %d", len(assignments))
	}

	counts := make(map[int]int)
	sums := make(map[int]float64)
	for _, a := range assignments {
		if a.Decile < 1 || a.Decile > 10 {
			t.Fatalf("decile out of range: %d", a.Decile)
		}
		counts[a.Decile]++
		sums[a.Decile] += a.Rate
	}

	prev := math.Inf(-1)
	for d := 1; d <= 10; d++ {
		if counts[d] != 10 {
			t.Errorf("decile %d: expected 10 events, got %d", d, counts[d])
		}
		avg := sums[d] / float64(counts[d])
		if avg < prev {
			t.Errorf("decile %d: avg rate %f decreased below %f", d, avg, prev)
		}
		prev = avg
	}
}

func TestAssignDeciles_UnevenDay(t *testing.T) {
	// 13 events: first 3 deciles get 2 events, the rest get 1.
	var events []*domain.FundingEvent
	for i := 0; i < 13; i++ {
		events = append(events, &domain.FundingEvent{
			Symbol:      "ETHUSDT",
			TimestampMs: int64(i) * domain.MillisPerHour,
			Rate:        float64(i),
		})
	}

	assignments := AssignDeciles(events)

	counts := make(map[int]int)
	for _, a := range assignments {
		counts[a.Decile]++
	}
	for d := 1; d <= 10; d++ {
		want := 1
		if d <= 3 {
			want = 2
		}
		if counts[d] != want {
			t.Errorf("decile %d: expected %d events, got %d", d, want, counts[d])
		}
	}
}

func TestAssignDeciles_PartitionsByDay(t *testing.T) {
	day := domain.MillisPerDay
	events := []*domain.FundingEvent{
		{Symbol: "BTCUSDT", TimestampMs: 0, Rate: 0.01},
		{Symbol: "BTCUSDT", TimestampMs: day, Rate: -0.01},
	}

	assignments := AssignDeciles(events)

	// Each day has a single event, which lands in decile 1 of its own day.
	for _, a := range assignments {
		if a.Decile != 1 {
			t.Errorf("expected decile 1 for singleton day, got %d", a.Decile)
		}
	}
}

func TestDecileStats_ExcludesZeroSampleEvents(t *testing.T) {
	events := []*domain.FundingEvent{
		{Symbol: "BTCUSDT", TimestampMs: 0, Rate: 0.01},
		{Symbol: "BTCUSDT", TimestampMs: domain.MillisPerHour, Rate: 0.02},
	}
	assignments := AssignDeciles(events)

	markouts := map[EventKey]*domain.MarkoutRecord{
		{Symbol: "BTCUSDT", TimestampMs: 0}:                     markoutRec("BTCUSDT", 0, 0.05, 60),
		{Symbol: "BTCUSDT", TimestampMs: domain.MillisPerHour}: markoutRec("BTCUSDT", domain.MillisPerHour, 0, 0),
	}

	stats := DecileStats(assignments, markouts)

	total := 0
	for _, s := range stats {
		total += s.EventCount
	}
	if total != 1 {
		t.Errorf("expected 1 contributing event, got %d", total)
	}
}

func TestExtremeRegimes_FlagsAndGates(t *testing.T) {
	// 10 events on one day for BTCUSDT, rates 0.001..0.010. Daily |rate| p90
	// interpolates to 0.0091, so only the 0.010 event can be flagged.
	var events []*domain.FundingEvent
	for i := 1; i <= 10; i++ {
		events = append(events, &domain.FundingEvent{
			Symbol:      "BTCUSDT",
			TimestampMs: int64(i) * domain.MillisPerHour,
			Rate:        float64(i) * 0.001,
		})
	}
	topKey := EventKey{Symbol: "BTCUSDT", TimestampMs: 10 * domain.MillisPerHour}

	oi := map[EventKey]*domain.OIPercentilePoint{
		topKey: {Symbol: "BTCUSDT", TimestampMs: topKey.TimestampMs, OpenInterest: 2000, P90: 1500},
	}
	markouts := map[EventKey]*domain.MarkoutRecord{
		topKey: markoutRec("BTCUSDT", topKey.TimestampMs, 0.04, 60),
	}

	stats := ExtremeRegimes(events, oi, markouts, 1, 10)

	if len(stats) != 1 {
		t.Fatalf("expected 1 symbol, got %d", len(stats))
	}
	if stats[0].Symbol != "BTCUSDT" || stats[0].EventCount != 1 {
		t.Errorf("unexpected stat: %+v", stats[0])
	}
	if math.Abs(stats[0].AvgMarkout-0.04) > 1e-12 {
		t.Errorf("expected avg markout 0.04, got %f", stats[0].AvgMarkout)
	}

	// Raising the gate above the flagged count drops the symbol.
	if got := ExtremeRegimes(events, oi, markouts, 2, 10); len(got) != 0 {
		t.Errorf("expected min-events gate to drop symbol, got %d results", len(got))
	}
}

func TestExtremeRegimes_RequiresAlignedOpenInterest(t *testing.T) {
	events := []*domain.FundingEvent{
		{Symbol: "BTCUSDT", TimestampMs: 0, Rate: 0.01},
	}
	markouts := map[EventKey]*domain.MarkoutRecord{
		{Symbol: "BTCUSDT", TimestampMs: 0}: markoutRec("BTCUSDT", 0, 0.02, 60),
	}

	// No aligned OI snapshot: never flagged.
	if got := ExtremeRegimes(events, nil, markouts, 1, 10); len(got) != 0 {
		t.Errorf("expected no results without aligned OI, got %d", len(got))
	}

	// OI below its trailing p90: not flagged either.
	oi := map[EventKey]*domain.OIPercentilePoint{
		{Symbol: "BTCUSDT", TimestampMs: 0}: {OpenInterest: 1000, P90: 1500},
	}
	if got := ExtremeRegimes(events, oi, markouts, 1, 10); len(got) != 0 {
		t.Errorf("expected no results with OI below p90, got %d", len(got))
	}
}

func TestSafeSymbols_CounterexampleRoundTrip(t *testing.T) {
	hour := domain.MillisPerHour
	events := []*domain.FundingEvent{
		{Symbol: "SAFE", TimestampMs: 0, Rate: 0.001},
		{Symbol: "SAFE", TimestampMs: 1 * hour, Rate: 0.001},
		{Symbol: "RISKY", TimestampMs: 2 * hour, Rate: 0.002},
	}
	rv1d := map[EventKey]*float64{
		{Symbol: "SAFE", TimestampMs: 0}:         fptr(0.05),
		{Symbol: "SAFE", TimestampMs: 1 * hour}:  fptr(0.06),
		{Symbol: "RISKY", TimestampMs: 2 * hour}: fptr(0.01), // below median
	}
	markouts := map[EventKey]*domain.MarkoutRecord{
		{Symbol: "SAFE", TimestampMs: 0}:         markoutRec("SAFE", 0, 0.01, 30),
		{Symbol: "SAFE", TimestampMs: 1 * hour}:  markoutRec("SAFE", hour, -0.01, 30), // negative but rv above median
		{Symbol: "RISKY", TimestampMs: 2 * hour}: markoutRec("RISKY", 2*hour, -0.01, 30),
	}

	got := SafeSymbols(events, rv1d, markouts)

	if len(got) != 1 || got[0] != "SAFE" {
		t.Fatalf("expected [SAFE], got %v", got)
	}

	// Flip the violating markout positive: RISKY becomes safe again.
	markouts[EventKey{Symbol: "RISKY", TimestampMs: 2 * hour}] = markoutRec("RISKY", 2*hour, 0.01, 30)
	got = SafeSymbols(events, rv1d, markouts)

	if len(got) != 2 || got[0] != "RISKY" || got[1] != "SAFE" {
		t.Fatalf("expected [RISKY SAFE], got %v", got)
	}
}

func TestSafeSymbols_UndefinedVolCannotViolate(t *testing.T) {
	events := []*domain.FundingEvent{
		{Symbol: "A", TimestampMs: 0, Rate: 0.001},
		{Symbol: "B", TimestampMs: 1, Rate: 0.001},
	}
	rv1d := map[EventKey]*float64{
		{Symbol: "A", TimestampMs: 0}: fptr(0.05),
		// B has no defined rv at all.
	}
	markouts := map[EventKey]*domain.MarkoutRecord{
		{Symbol: "B", TimestampMs: 1}: markoutRec("B", 1, -0.5, 30),
	}

	got := SafeSymbols(events, rv1d, markouts)

	// B is outside the universe; A has no violation.
	if len(got) != 1 || got[0] != "A" {
		t.Fatalf("expected [A], got %v", got)
	}
}

func TestHourlyMarkouts(t *testing.T) {
	events := []*domain.FundingEvent{
		{Symbol: "BTCUSDT", TimestampMs: 8 * domain.MillisPerHour, Rate: 0.001},
		{Symbol: "ETHUSDT", TimestampMs: 8 * domain.MillisPerHour, Rate: 0.002},
		{Symbol: "BTCUSDT", TimestampMs: 16 * domain.MillisPerHour, Rate: 0.001},
	}
	markouts := map[EventKey]*domain.MarkoutRecord{
		KeyOf(events[0]): markoutRec("BTCUSDT", events[0].TimestampMs, 0.02, 60),
		KeyOf(events[1]): markoutRec("ETHUSDT", events[1].TimestampMs, 0.04, 60),
		KeyOf(events[2]): markoutRec("BTCUSDT", events[2].TimestampMs, 0, 0), // gap
	}

	stats := HourlyMarkouts(events, markouts)

	if len(stats) != 1 {
		t.Fatalf("expected stats for 1 hour, got %d", len(stats))
	}
	if stats[0].Hour != 8 || stats[0].EventCount != 2 {
		t.Errorf("unexpected stat: %+v", stats[0])
	}
	if math.Abs(stats[0].AvgMarkout-0.03) > 1e-12 {
		t.Errorf("expected avg 0.03, got %f", stats[0].AvgMarkout)
	}
}

func TestAssignVolTerciles_SizesAndOrdering(t *testing.T) {
	var events []*domain.FundingEvent
	rv := make(map[EventKey]*float64)
	for i := 0; i < 7; i++ {
		e := &domain.FundingEvent{Symbol: "BTCUSDT", TimestampMs: int64(i), Rate: 0.001}
		events = append(events, e)
		rv[KeyOf(e)] = fptr(float64(7 - i)) // descending vol
	}

	assignments := AssignVolTerciles(events, rv)

	if len(assignments) != 7 {
		t.Fatalf("expected 7 assignments, got %d", len(assignments))
	}
	// 7 = 3+2+2: tercile 1 gets the extra.
	counts := make(map[int]int)
	for _, a := range assignments {
		counts[a.VolatilityTercile]++
	}
	if counts[1] != 3 || counts[2] != 2 || counts[3] != 2 {
		t.Errorf("unexpected tercile sizes: %v", counts)
	}
	// Low-vol tercile must hold the smallest volatilities.
	for _, a := range assignments {
		if a.VolatilityTercile == 1 && a.RealizedVolatility > 3 {
			t.Errorf("high vol %f landed in tercile 1", a.RealizedVolatility)
		}
	}
}

func TestTopFundingPressure(t *testing.T) {
	events := []*domain.FundingEvent{
		{Symbol: "A", TimestampMs: 0, Rate: 0.01},
		{Symbol: "A", TimestampMs: 1, Rate: -0.03},
		{Symbol: "B", TimestampMs: 2, Rate: 0.05},
		{Symbol: "B", TimestampMs: 3, Rate: -0.05},
		{Symbol: "C", TimestampMs: 4, Rate: 0.99}, // only one event
	}

	out := TopFundingPressure(events, 2, 10)

	if len(out) != 2 {
		t.Fatalf("expected 2 symbols, got %d", len(out))
	}
	if out[0].Symbol != "B" || out[1].Symbol != "A" {
		t.Errorf("unexpected order: %s, %s", out[0].Symbol, out[1].Symbol)
	}
	if math.Abs(out[0].AvgAbsRate-0.05) > 1e-12 {
		t.Errorf("expected avg |rate| 0.05, got %f", out[0].AvgAbsRate)
	}
}

func TestCountPositiveMoves(t *testing.T) {
	events := []*domain.FundingEvent{
		{Symbol: "A", TimestampMs: 0, Rate: 0.001},
		{Symbol: "A", TimestampMs: 1, Rate: 0.001},
		{Symbol: "B", TimestampMs: 2, Rate: 0.001},
	}
	markouts := map[EventKey]*domain.MarkoutRecord{
		KeyOf(events[0]): markoutRec("A", 0, 0.02, 30),
		KeyOf(events[1]): markoutRec("A", 1, 0.001, 30), // below threshold
		KeyOf(events[2]): markoutRec("B", 2, 0.03, 30),
	}

	out := CountPositiveMoves(events, markouts, 0.01)

	if len(out) != 2 {
		t.Fatalf("expected 2 symbols, got %d", len(out))
	}
	for _, c := range out {
		if c.Count != 1 {
			t.Errorf("symbol %s: expected count 1, got %d", c.Symbol, c.Count)
		}
	}
}
