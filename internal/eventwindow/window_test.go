package eventwindow

import (
	"math"
	"testing"

	"funding-market-lab/internal/domain"
)

// minuteReturns builds a return series with one point per minute starting at
// startMs, taking values from rets in order.
func minuteReturns(sym string, startMs int64, rets []float64) []*domain.ReturnPoint {
	points := make([]*domain.ReturnPoint, len(rets))
	for i, r := range rets {
		points[i] = &domain.ReturnPoint{
			Symbol:      sym,
			TimestampMs: startMs + int64(i)*domain.MillisPerMinute,
			LogReturn:   r,
		}
	}
	return points
}

func TestMarkout_SixtyMinuteScenario(t *testing.T) {
	// Flat for 60 minutes before the event, +0.001 per minute for 60 minutes
	// after. markout(60) must equal 0.06 exactly (in float terms).
	const t0 = int64(1_000_000 * domain.MillisPerMinute)
	var rets []float64
	for i := 0; i < 60; i++ {
		rets = append(rets, 0)
	}
	rets = append(rets, 0) // return at the event timestamp itself, excluded
	for i := 0; i < 60; i++ {
		rets = append(rets, 0.001)
	}
	series := minuteReturns("BTCUSDT", t0-60*domain.MillisPerMinute, rets)

	rec := Markout("BTCUSDT", series, t0, 60)

	if rec.SampleCount != 60 {
		t.Fatalf("expected 60 samples, got %d", rec.SampleCount)
	}
	if rec.MarkoutSum == nil {
		t.Fatal("expected defined markout")
	}
	if math.Abs(*rec.MarkoutSum-0.06) > 1e-12 {
		t.Errorf("expected markout 0.06, got %f", *rec.MarkoutSum)
	}
}

func TestMarkout_ExcludesEventTimestamp(t *testing.T) {
	const t0 = int64(0)
	series := []*domain.ReturnPoint{
		{Symbol: "BTCUSDT", TimestampMs: t0, LogReturn: 100}, // must not count
		{Symbol: "BTCUSDT", TimestampMs: t0 + domain.MillisPerMinute, LogReturn: 0.5},
	}

	rec := Markout("BTCUSDT", series, t0, 60)

	if rec.SampleCount != 1 {
		t.Fatalf("expected 1 sample, got %d", rec.SampleCount)
	}
	if *rec.MarkoutSum != 0.5 {
		t.Errorf("expected 0.5, got %f", *rec.MarkoutSum)
	}
}

func TestMarkout_IncludesHorizonEnd(t *testing.T) {
	const t0 = int64(0)
	series := []*domain.ReturnPoint{
		{Symbol: "BTCUSDT", TimestampMs: t0 + 60*domain.MillisPerMinute, LogReturn: 0.25},
		{Symbol: "BTCUSDT", TimestampMs: t0 + 60*domain.MillisPerMinute + 1, LogReturn: 100},
	}

	rec := Markout("BTCUSDT", series, t0, 60)

	if rec.SampleCount != 1 {
		t.Fatalf("expected 1 sample, got %d", rec.SampleCount)
	}
	if *rec.MarkoutSum != 0.25 {
		t.Errorf("expected 0.25, got %f", *rec.MarkoutSum)
	}
}

func TestMarkout_DataGap(t *testing.T) {
	series := minuteReturns("BTCUSDT", 0, []float64{0.1, 0.2})

	rec := Markout("BTCUSDT", series, 10*domain.MillisPerHour, 60)

	if rec.SampleCount != 0 {
		t.Errorf("expected 0 samples, got %d", rec.SampleCount)
	}
	if rec.MarkoutSum != nil {
		t.Errorf("expected nil markout on data gap, got %f", *rec.MarkoutSum)
	}
}

func TestCarTrajectory_FlatPrefixAndRunningSum(t *testing.T) {
	const t0 = int64(1_000_000 * domain.MillisPerMinute)
	var rets []float64
	for i := 0; i < 60; i++ {
		rets = append(rets, 0.5) // pre-event noise, must contribute 0
	}
	for i := 0; i < 61; i++ {
		rets = append(rets, 0.001) // event bar onwards
	}
	series := minuteReturns("BTCUSDT", t0-60*domain.MillisPerMinute, rets)

	points := CarTrajectory("BTCUSDT", series, t0, DefaultPreMinutes, DefaultPostMinutes)

	if len(points) != 121 {
		t.Fatalf("expected 121 points, got %d", len(points))
	}
	for _, p := range points[:60] {
		if p.CumulativeReturn != 0 {
			t.Fatalf("expected flat zero prefix, got %f at %d", p.CumulativeReturn, p.TimestampMs)
		}
	}
	// At T0+60m the sum covers the event bar plus 60 following bars.
	last := points[120]
	if last.TimestampMs != t0+60*domain.MillisPerMinute {
		t.Fatalf("unexpected last timestamp %d", last.TimestampMs)
	}
	if math.Abs(last.CumulativeReturn-0.061) > 1e-12 {
		t.Errorf("expected CAR 0.061 at T0+60m, got %f", last.CumulativeReturn)
	}
}

func TestSummarizeCar_MinNeverPositive(t *testing.T) {
	const t0 = int64(1_000_000 * domain.MillisPerMinute)
	var rets []float64
	for i := 0; i < 241; i++ {
		rets = append(rets, 0.001) // strictly positive path after the event
	}
	series := minuteReturns("BTCUSDT", t0-60*domain.MillisPerMinute, rets)

	s := SummarizeCar("BTCUSDT", series, t0, DefaultPreMinutes, DefaultPostMinutes)

	if s.MinCar == nil || s.MaxCar == nil {
		t.Fatal("expected defined extremes")
	}
	if *s.MinCar != 0 {
		t.Errorf("expected min CAR 0, got %f", *s.MinCar)
	}
	if *s.MaxCar <= 0 {
		t.Errorf("expected positive max CAR, got %f", *s.MaxCar)
	}
}

func TestSummarizeCar_EmptyWindow(t *testing.T) {
	series := minuteReturns("BTCUSDT", 0, []float64{0.1})

	s := SummarizeCar("BTCUSDT", series, 100*domain.MillisPerDay, 60, 180)

	if s.SampleCount != 0 {
		t.Errorf("expected 0 samples, got %d", s.SampleCount)
	}
	if s.MinCar != nil || s.MaxCar != nil {
		t.Error("expected nil extremes for empty window")
	}
}

func TestSummarizeCar_ScenarioMinZero(t *testing.T) {
	// Zero returns before T0, +0.001 for 60 bars after, zero afterwards:
	// min over [T0-60, T0+180] must be exactly 0.
	const t0 = int64(1_000_000 * domain.MillisPerMinute)
	var rets []float64
	for i := 0; i < 61; i++ {
		rets = append(rets, 0)
	}
	for i := 0; i < 60; i++ {
		rets = append(rets, 0.001)
	}
	for i := 0; i < 120; i++ {
		rets = append(rets, 0)
	}
	series := minuteReturns("BTCUSDT", t0-60*domain.MillisPerMinute, rets)

	s := SummarizeCar("BTCUSDT", series, t0, 60, 180)

	if s.MinCar == nil {
		t.Fatal("expected defined min")
	}
	if *s.MinCar != 0 {
		t.Errorf("expected min CAR 0, got %f", *s.MinCar)
	}
	if math.Abs(*s.MaxCar-0.06) > 1e-12 {
		t.Errorf("expected max CAR 0.06, got %f", *s.MaxCar)
	}
}
