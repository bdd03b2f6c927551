package reporting

import (
	"context"
	"time"

	"funding-market-lab/internal/engine"
	"funding-market-lab/internal/regime"
)

// Generator produces reports by querying the analytics engine.
type Generator struct {
	engine *engine.Engine
	now    func() time.Time // Injectable clock for deterministic output
}

// NewGenerator creates a new report generator.
func NewGenerator(eng *engine.Engine) *Generator {
	return &Generator{
		engine: eng,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// WithClock sets a custom clock function for deterministic output.
func (g *Generator) WithClock(now func() time.Time) *Generator {
	g.now = now
	return g
}

// Generate runs every summary operation over [startMs, endMs].
func (g *Generator) Generate(ctx context.Context, startMs, endMs int64) (*Report, error) {
	overview, err := g.engine.SymbolOverview(ctx, startMs, endMs)
	if err != nil {
		return nil, err
	}

	deciles, err := g.engine.ComputeRateDeciles(ctx, startMs, endMs, 0)
	if err != nil {
		return nil, err
	}

	regimes, err := g.engine.DetectExtremeRegimes(ctx, startMs, endMs, regime.DefaultMinEvents, regime.DefaultTopK)
	if err != nil {
		return nil, err
	}

	hourly, err := g.engine.HourlyMarkouts(ctx, startMs, endMs)
	if err != nil {
		return nil, err
	}

	terciles, err := g.engine.VolTercileMarkouts(ctx, startMs, endMs)
	if err != nil {
		return nil, err
	}

	pressure, err := g.engine.TopFundingPressure(ctx, startMs, endMs, regime.DefaultMinEvents, regime.DefaultTopK)
	if err != nil {
		return nil, err
	}

	safe, err := g.engine.FindLowVolSafeSymbols(ctx, startMs, endMs)
	if err != nil {
		return nil, err
	}

	return &Report{
		GeneratedAt:     g.now(),
		StartMs:         startMs,
		EndMs:           endMs,
		Overview:        overview,
		Deciles:         deciles,
		ExtremeRegimes:  regimes,
		Hourly:          hourly,
		Terciles:        terciles,
		FundingPressure: pressure,
		SafeSymbols:     safe,
	}, nil
}
