package reporting

import (
	"context"
	"math"
	"strings"
	"testing"
	"time"

	"funding-market-lab/internal/domain"
	"funding-market-lab/internal/engine"
	"funding-market-lab/internal/storage/memory"
)

func newTestEngine(t *testing.T) *engine.Engine {
	t.Helper()
	ctx := context.Background()

	prices := memory.NewPriceStore()
	funding := memory.NewFundingEventStore()
	oi := memory.NewOpenInterestStore()

	base := int64(30_000_000) * domain.MillisPerMinute
	var bars []*domain.PricePoint
	for m := int64(0); m < 24*60; m++ {
		bars = append(bars, &domain.PricePoint{
			Symbol:      "BTCUSDT",
			TimestampMs: base + m*domain.MillisPerMinute,
			Close:       100 * math.Exp(0.0001*float64(m%7)),
			Volume:      5,
		})
	}
	if err := prices.InsertBulk(ctx, bars); err != nil {
		t.Fatalf("seed prices: %v", err)
	}

	var events []*domain.FundingEvent
	for h := int64(1); h <= 16; h += 8 {
		events = append(events, &domain.FundingEvent{
			Symbol:      "BTCUSDT",
			TimestampMs: base + h*domain.MillisPerHour,
			Rate:        0.0001 * float64(h),
		})
	}
	if err := funding.InsertBulk(ctx, events); err != nil {
		t.Fatalf("seed funding: %v", err)
	}

	return engine.New(prices, funding, oi, nil)
}

func TestGenerate_DeterministicClock(t *testing.T) {
	gen := NewGenerator(newTestEngine(t)).WithClock(func() time.Time {
		return time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	})

	base := int64(30_000_000) * domain.MillisPerMinute
	report, err := gen.Generate(context.Background(), base, base+domain.MillisPerDay)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	if report.GeneratedAt != time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC) {
		t.Errorf("unexpected GeneratedAt: %v", report.GeneratedAt)
	}
	if len(report.Overview) != 1 || report.Overview[0].Symbol != "BTCUSDT" {
		t.Fatalf("unexpected overview: %+v", report.Overview)
	}
	if report.Overview[0].FundingEventCount != 2 {
		t.Errorf("expected 2 funding events, got %d", report.Overview[0].FundingEventCount)
	}
}

func TestRenderMarkdown_Sections(t *testing.T) {
	gen := NewGenerator(newTestEngine(t)).WithClock(func() time.Time {
		return time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	})

	base := int64(30_000_000) * domain.MillisPerMinute
	report, err := gen.Generate(context.Background(), base, base+domain.MillisPerDay)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	md := RenderMarkdown(report)
	for _, section := range []string{
		"# Funding Market Report",
		"## Symbol Overview",
		"## Rate Deciles",
		"## Extreme Regimes",
		"## Markout by UTC Hour",
		"## Markout by Volatility Tercile",
		"## Top Funding Pressure",
		"## Low-Volatility Safe Symbols",
	} {
		if !strings.Contains(md, section) {
			t.Errorf("markdown missing section %q", section)
		}
	}
	if !strings.Contains(md, "BTCUSDT") {
		t.Error("markdown missing symbol row")
	}
}

func TestRenderMarkoutsCSV_NilSum(t *testing.T) {
	records := []*domain.MarkoutRecord{
		{Symbol: "BTCUSDT", EventTimestampMs: 1000, HorizonMinutes: 60, SampleCount: 0},
	}

	csv := RenderMarkoutsCSV(records)

	if !strings.Contains(csv, "BTCUSDT,1000,60,,0\n") {
		t.Errorf("expected empty markout field for zero-sample event, got:\n%s", csv)
	}
}

func TestRenderDecilesCSV(t *testing.T) {
	csv := RenderDecilesCSV([]*domain.DecileStat{
		{Decile: 1, AvgMarkout: 0.001, EventCount: 4},
	})

	if !strings.HasPrefix(csv, "decile,avg_markout,event_count\n") {
		t.Errorf("missing header:\n%s", csv)
	}
	if !strings.Contains(csv, "1,0.00100000,4\n") {
		t.Errorf("missing row:\n%s", csv)
	}
}
