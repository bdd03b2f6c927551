package engine

import (
	"context"
	"sort"
	"time"

	"funding-market-lab/internal/domain"
	"funding-market-lab/internal/eventwindow"
	"funding-market-lab/internal/materialize"
	"funding-market-lab/internal/observability"
	"funding-market-lab/internal/regime"
)

// PostEventVolMinutes is the horizon of the post-event volatility window.
const PostEventVolMinutes = 30

// ComputeMarkouts computes one markout per funding event in range, at the
// given horizon, for the requested symbols. An empty symbol list means all
// symbols with price history. Results are ordered symbol ASC, event ASC.
func (e *Engine) ComputeMarkouts(ctx context.Context, symbols []string, startMs, endMs int64, horizonMin int) (records []*domain.MarkoutRecord, err error) {
	defer e.observe("compute_markouts", time.Now(), &err)

	if err = e.validateRange(startMs, endMs); err != nil {
		return nil, err
	}
	if horizonMin <= 0 {
		horizonMin = eventwindow.DefaultHorizonMinutes
	}
	if len(symbols) == 0 {
		if symbols, err = e.prices.Symbols(ctx); err != nil {
			return nil, err
		}
	} else {
		symbols = append([]string(nil), symbols...)
		sort.Strings(symbols)
	}

	for _, sym := range symbols {
		rets, ok, retErr := e.returnsForSymbol(ctx, sym)
		if retErr != nil {
			return nil, retErr
		}
		if !ok {
			return nil, &InvalidRangeError{Symbol: sym}
		}

		events, evErr := e.funding.GetByTimeRange(ctx, sym, startMs, endMs)
		if evErr != nil {
			return nil, evErr
		}
		for _, ev := range events {
			records = append(records, eventwindow.Markout(sym, rets, ev.TimestampMs, horizonMin))
		}
	}
	return records, nil
}

// ComputeCAR summarizes the cumulative-return window of every funding event
// in range for one symbol. Zero or negative pre/post fall back to the
// 60/180 minute defaults.
func (e *Engine) ComputeCAR(ctx context.Context, symbol string, startMs, endMs int64, preMin, postMin int) (summaries []*domain.CarSummary, err error) {
	defer e.observe("compute_car", time.Now(), &err)

	if err = e.validateRange(startMs, endMs); err != nil {
		return nil, err
	}
	if preMin <= 0 {
		preMin = eventwindow.DefaultPreMinutes
	}
	if postMin <= 0 {
		postMin = eventwindow.DefaultPostMinutes
	}

	rets, ok, err := e.returnsForSymbol(ctx, symbol)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, &InvalidRangeError{Symbol: symbol}
	}

	events, err := e.funding.GetByTimeRange(ctx, symbol, startMs, endMs)
	if err != nil {
		return nil, err
	}
	for _, ev := range events {
		summaries = append(summaries, eventwindow.SummarizeCar(symbol, rets, ev.TimestampMs, preMin, postMin))
	}
	return summaries, nil
}

// CarTrajectory returns the full cumulative-return path around one event.
func (e *Engine) CarTrajectory(ctx context.Context, symbol string, eventMs int64, preMin, postMin int) (points []*domain.CarPoint, err error) {
	defer e.observe("car_trajectory", time.Now(), &err)

	if preMin <= 0 {
		preMin = eventwindow.DefaultPreMinutes
	}
	if postMin <= 0 {
		postMin = eventwindow.DefaultPostMinutes
	}

	rets, ok, err := e.returnsForSymbol(ctx, symbol)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, &InvalidRangeError{Symbol: symbol}
	}
	return eventwindow.CarTrajectory(symbol, rets, eventMs, preMin, postMin), nil
}

// ComputeRateDeciles buckets all events in range into daily rate deciles
// and averages the markout at the given horizon per decile.
func (e *Engine) ComputeRateDeciles(ctx context.Context, startMs, endMs int64, horizonMin int) (stats []*domain.DecileStat, err error) {
	defer e.observe("compute_rate_deciles", time.Now(), &err)

	if err = e.validateRange(startMs, endMs); err != nil {
		return nil, err
	}
	if horizonMin <= 0 {
		horizonMin = eventwindow.DefaultHorizonMinutes
	}

	events, err := e.allEvents(ctx, startMs, endMs)
	if err != nil {
		return nil, err
	}
	markouts, err := e.markoutsFor(ctx, events, horizonMin)
	if err != nil {
		return nil, err
	}
	return regime.DecileStats(regime.AssignDeciles(events), markouts), nil
}

// DetectExtremeRegimes reports the symbols with the best average
// 60-minute markout across events where both the funding rate and the
// open interest print in their upper percentile tails.
func (e *Engine) DetectExtremeRegimes(ctx context.Context, startMs, endMs int64, minEvents, topK int) (stats []*domain.RegimeStat, err error) {
	defer e.observe("detect_extreme_regimes", time.Now(), &err)

	if err = e.validateRange(startMs, endMs); err != nil {
		return nil, err
	}
	if minEvents <= 0 {
		minEvents = regime.DefaultMinEvents
	}
	if topK <= 0 {
		topK = regime.DefaultTopK
	}

	events, err := e.allEvents(ctx, startMs, endMs)
	if err != nil {
		return nil, err
	}
	markouts, err := e.markoutsFor(ctx, events, eventwindow.DefaultHorizonMinutes)
	if err != nil {
		return nil, err
	}

	oiByEvent := make(map[regime.EventKey]*domain.OIPercentilePoint)
	for sym, symEvents := range eventsBySymbol(events) {
		points, oiErr := e.oiPercentilesForSymbol(ctx, sym, startMs, endMs)
		if oiErr != nil {
			return nil, oiErr
		}
		byTs := make(map[int64]*domain.OIPercentilePoint, len(points))
		for _, p := range points {
			byTs[p.TimestampMs] = p
		}
		for _, ev := range symEvents {
			if p, ok := byTs[ev.TimestampMs]; ok {
				oiByEvent[regime.KeyOf(ev)] = p
			}
		}
	}

	return regime.ExtremeRegimes(events, oiByEvent, markouts, minEvents, topK), nil
}

// FindLowVolSafeSymbols reports the symbols with no event combining
// below-median trailing 1-day volatility and a negative 30-minute markout.
func (e *Engine) FindLowVolSafeSymbols(ctx context.Context, startMs, endMs int64) (symbols []string, err error) {
	defer e.observe("find_low_vol_safe_symbols", time.Now(), &err)

	if err = e.validateRange(startMs, endMs); err != nil {
		return nil, err
	}

	events, err := e.allEvents(ctx, startMs, endMs)
	if err != nil {
		return nil, err
	}
	rv1d, err := e.rvByEvent(ctx, events, -domain.MillisPerDay, 0)
	if err != nil {
		return nil, err
	}
	markouts30, err := e.markoutsFor(ctx, events, 30)
	if err != nil {
		return nil, err
	}
	return regime.SafeSymbols(events, rv1d, markouts30), nil
}

// HourlyMarkouts averages the 60-minute markout by UTC hour of day.
func (e *Engine) HourlyMarkouts(ctx context.Context, startMs, endMs int64) (stats []*domain.HourlyStat, err error) {
	defer e.observe("hourly_markouts", time.Now(), &err)

	if err = e.validateRange(startMs, endMs); err != nil {
		return nil, err
	}

	events, err := e.allEvents(ctx, startMs, endMs)
	if err != nil {
		return nil, err
	}
	markouts, err := e.markoutsFor(ctx, events, eventwindow.DefaultHorizonMinutes)
	if err != nil {
		return nil, err
	}
	return regime.HourlyMarkouts(events, markouts), nil
}

// VolTercileMarkouts buckets events into global pre-event volatility
// terciles and averages the 60-minute markout per tercile.
func (e *Engine) VolTercileMarkouts(ctx context.Context, startMs, endMs int64) (stats []*domain.TercileStat, err error) {
	defer e.observe("vol_tercile_markouts", time.Now(), &err)

	if err = e.validateRange(startMs, endMs); err != nil {
		return nil, err
	}

	events, err := e.allEvents(ctx, startMs, endMs)
	if err != nil {
		return nil, err
	}
	rv1h, err := e.rvByEvent(ctx, events, -domain.MillisPerHour, 0)
	if err != nil {
		return nil, err
	}
	markouts, err := e.markoutsFor(ctx, events, eventwindow.DefaultHorizonMinutes)
	if err != nil {
		return nil, err
	}
	return regime.TercileStats(regime.AssignVolTerciles(events, rv1h), markouts), nil
}

// SymbolOverview inventories per-symbol kline and funding coverage.
func (e *Engine) SymbolOverview(ctx context.Context, startMs, endMs int64) (overviews []*domain.SymbolOverview, err error) {
	defer e.observe("symbol_overview", time.Now(), &err)

	if err = e.validateRange(startMs, endMs); err != nil {
		return nil, err
	}

	symbols, err := e.prices.Symbols(ctx)
	if err != nil {
		return nil, err
	}
	for _, sym := range symbols {
		bars, barErr := e.prices.GetByTimeRange(ctx, sym, startMs, endMs)
		if barErr != nil {
			return nil, barErr
		}
		events, evErr := e.funding.GetByTimeRange(ctx, sym, startMs, endMs)
		if evErr != nil {
			return nil, evErr
		}

		o := &domain.SymbolOverview{
			Symbol:            sym,
			KlineCount:        len(bars),
			FundingEventCount: len(events),
		}
		if len(bars) > 0 {
			var sum float64
			for _, b := range bars {
				sum += b.Volume
			}
			avg := sum / float64(len(bars))
			o.AvgKlineVolume = &avg
		}
		overviews = append(overviews, o)
	}
	return overviews, nil
}

// TopFundingPressure ranks symbols by average absolute funding rate.
func (e *Engine) TopFundingPressure(ctx context.Context, startMs, endMs int64, minEvents, topK int) (out []*domain.FundingPressure, err error) {
	defer e.observe("top_funding_pressure", time.Now(), &err)

	if err = e.validateRange(startMs, endMs); err != nil {
		return nil, err
	}
	if minEvents <= 0 {
		minEvents = regime.DefaultMinEvents
	}
	if topK <= 0 {
		topK = regime.DefaultTopK
	}

	events, err := e.allEvents(ctx, startMs, endMs)
	if err != nil {
		return nil, err
	}
	return regime.TopFundingPressure(events, minEvents, topK), nil
}

// PostEventVolatility averages the realized volatility over the 30 minutes
// after each event, per symbol.
func (e *Engine) PostEventVolatility(ctx context.Context, startMs, endMs int64) (out []*domain.PostEventVol, err error) {
	defer e.observe("post_event_volatility", time.Now(), &err)

	if err = e.validateRange(startMs, endMs); err != nil {
		return nil, err
	}

	events, err := e.allEvents(ctx, startMs, endMs)
	if err != nil {
		return nil, err
	}
	postVol, err := e.rvByEvent(ctx, events, 0, PostEventVolMinutes*domain.MillisPerMinute)
	if err != nil {
		return nil, err
	}
	return regime.PostEventVolatility(events, postVol), nil
}

// CountPositiveMoves counts, per symbol, the events whose 30-minute markout
// exceeds threshold.
func (e *Engine) CountPositiveMoves(ctx context.Context, startMs, endMs int64, threshold float64) (out []*domain.PositiveMoveCount, err error) {
	defer e.observe("count_positive_moves", time.Now(), &err)

	if err = e.validateRange(startMs, endMs); err != nil {
		return nil, err
	}

	events, err := e.allEvents(ctx, startMs, endMs)
	if err != nil {
		return nil, err
	}
	markouts30, err := e.markoutsFor(ctx, events, 30)
	if err != nil {
		return nil, err
	}
	return regime.CountPositiveMoves(events, markouts30, threshold), nil
}

// Rebuild recomputes and publishes one materialized table.
func (e *Engine) Rebuild(ctx context.Context, table string) (uint64, error) {
	start := time.Now()
	id, err := e.registry.Rebuild(ctx, table)
	observability.RecordRebuild(table, time.Since(start), err)
	if err != nil {
		e.logger.Printf("rebuild %s failed: %v", table, err)
		return 0, err
	}

	if gen, snapErr := e.registry.Snapshot(table); snapErr == nil {
		observability.RecordGeneration(table, gen.ID, rowCount(gen.Rows))
	}
	e.logger.Printf("rebuilt %s generation %d in %s", table, id, time.Since(start))
	return id, nil
}

// Snapshot exposes the published generation of a table, for persistence
// and reporting.
func (e *Engine) Snapshot(table string) (*materialize.Generation, error) {
	return e.registry.Snapshot(table)
}

// Tables lists the registered materialized tables.
func (e *Engine) Tables() []string {
	return e.registry.Tables()
}

func (e *Engine) observe(operation string, start time.Time, err *error) {
	observability.RecordQuery(operation, time.Since(start), *err)
}
