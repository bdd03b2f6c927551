// Package engine is the query façade over the analytics core. It reads
// source series through the narrow storage interfaces, derives returns,
// markouts, CAR windows and regime classifications, and serves them from
// materialized generations when available.
package engine

import (
	"context"
	"log"
	"math"
	"os"
	"sort"

	"funding-market-lab/internal/domain"
	"funding-market-lab/internal/eventwindow"
	"funding-market-lab/internal/materialize"
	"funding-market-lab/internal/percentile"
	"funding-market-lab/internal/regime"
	"funding-market-lab/internal/returns"
	"funding-market-lab/internal/storage"
)

// OIWindowDays is the trailing open-interest percentile window.
const OIWindowDays = 14

// Engine wires the stores, the compute packages and the materialization
// registry. All public operations are safe for concurrent use.
type Engine struct {
	prices   storage.PriceStore
	funding  storage.FundingEventStore
	oi       storage.OpenInterestStore
	registry *materialize.Registry
	logger   *log.Logger
}

// New creates an engine and registers the materialized-table builders.
func New(prices storage.PriceStore, funding storage.FundingEventStore, oi storage.OpenInterestStore, logger *log.Logger) *Engine {
	if logger == nil {
		logger = log.New(os.Stdout, "[engine] ", log.LstdFlags)
	}

	e := &Engine{
		prices:   prices,
		funding:  funding,
		oi:       oi,
		registry: materialize.NewRegistry(),
		logger:   logger,
	}
	e.registerBuilders()
	return e
}

func (e *Engine) validateRange(startMs, endMs int64) error {
	if startMs > endMs {
		return &InvalidRangeError{StartMs: startMs, EndMs: endMs}
	}
	return nil
}

// returnsForSymbol yields the full return series of a symbol, preferring
// the published minute_returns generation and falling back to direct
// computation when no generation exists. ok is false when the symbol has
// no price history at all.
func (e *Engine) returnsForSymbol(ctx context.Context, symbol string) (rets []*domain.ReturnPoint, ok bool, err error) {
	if gen, genErr := e.registry.Snapshot(materialize.TableMinuteReturns); genErr == nil {
		bySymbol, cast := gen.Rows.(map[string][]*domain.ReturnPoint)
		if cast {
			rets, ok = bySymbol[symbol]
			return rets, ok, nil
		}
	}

	bars, err := e.prices.GetBySymbol(ctx, symbol)
	if err != nil {
		return nil, false, err
	}
	if len(bars) == 0 {
		return nil, false, nil
	}
	return returns.Compute(bars), true, nil
}

// sliceRange returns the sub-slice of rets with fromMs <= ts <= toMs.
func sliceRange(rets []*domain.ReturnPoint, fromMs, toMs int64) []*domain.ReturnPoint {
	lo := sort.Search(len(rets), func(i int) bool { return rets[i].TimestampMs >= fromMs })
	hi := sort.Search(len(rets), func(i int) bool { return rets[i].TimestampMs > toMs })
	return rets[lo:hi]
}

// rvOver computes the realized volatility over [fromMs, toMs], nil when
// fewer than two returns fall inside.
func rvOver(rets []*domain.ReturnPoint, fromMs, toMs int64) *float64 {
	window := sliceRange(rets, fromMs, toMs)
	values := make([]float64, len(window))
	for i, r := range window {
		values[i] = r.LogReturn
	}
	return returns.SampleStdDev(values)
}

// eventsBySymbol groups events preserving per-symbol order.
func eventsBySymbol(events []*domain.FundingEvent) map[string][]*domain.FundingEvent {
	grouped := make(map[string][]*domain.FundingEvent)
	for _, ev := range events {
		grouped[ev.Symbol] = append(grouped[ev.Symbol], ev)
	}
	return grouped
}

// markoutsFor computes one markout per event at the given horizon, loading
// each symbol's return series once.
func (e *Engine) markoutsFor(ctx context.Context, events []*domain.FundingEvent, horizonMin int) (map[regime.EventKey]*domain.MarkoutRecord, error) {
	out := make(map[regime.EventKey]*domain.MarkoutRecord, len(events))
	for sym, symEvents := range eventsBySymbol(events) {
		rets, _, err := e.returnsForSymbol(ctx, sym)
		if err != nil {
			return nil, err
		}
		for _, ev := range symEvents {
			out[regime.KeyOf(ev)] = eventwindow.Markout(sym, rets, ev.TimestampMs, horizonMin)
		}
	}
	return out, nil
}

// rvByEvent computes a per-event realized volatility over a window relative
// to the event timestamp, [eventMs+fromOffsetMs, eventMs+toOffsetMs].
func (e *Engine) rvByEvent(ctx context.Context, events []*domain.FundingEvent, fromOffsetMs, toOffsetMs int64) (map[regime.EventKey]*float64, error) {
	out := make(map[regime.EventKey]*float64, len(events))
	for sym, symEvents := range eventsBySymbol(events) {
		rets, _, err := e.returnsForSymbol(ctx, sym)
		if err != nil {
			return nil, err
		}
		for _, ev := range symEvents {
			out[regime.KeyOf(ev)] = rvOver(rets, ev.TimestampMs+fromOffsetMs, ev.TimestampMs+toOffsetMs)
		}
	}
	return out, nil
}

// oiPercentilesForSymbol yields rolling p90-annotated open-interest points
// covering [startMs, endMs], reading enough pre-range history to fill the
// trailing window. Prefers the published oi_percentiles generation.
func (e *Engine) oiPercentilesForSymbol(ctx context.Context, symbol string, startMs, endMs int64) ([]*domain.OIPercentilePoint, error) {
	if gen, genErr := e.registry.Snapshot(materialize.TableOIPercentiles); genErr == nil {
		if bySymbol, cast := gen.Rows.(map[string][]*domain.OIPercentilePoint); cast {
			return bySymbol[symbol], nil
		}
	}

	warmupStart := startMs - OIWindowDays*domain.MillisPerDay
	if warmupStart < 0 {
		warmupStart = 0
	}
	points, err := e.oi.GetByTimeRange(ctx, symbol, warmupStart, endMs)
	if err != nil {
		return nil, err
	}
	return percentile.RollingP90(points, OIWindowDays), nil
}

// allEvents reads every funding event in range across all symbols.
func (e *Engine) allEvents(ctx context.Context, startMs, endMs int64) ([]*domain.FundingEvent, error) {
	return e.funding.GetByTimeRange(ctx, "", startMs, endMs)
}

const allEndMs = math.MaxInt64
