package engine

import (
	"context"
	"reflect"

	"funding-market-lab/internal/domain"
	"funding-market-lab/internal/eventwindow"
	"funding-market-lab/internal/materialize"
	"funding-market-lab/internal/percentile"
	"funding-market-lab/internal/regime"
	"funding-market-lab/internal/returns"
)

// registerBuilders wires one builder per materialized table. Builders scan
// the full source history so a published generation can answer any query
// range.
func (e *Engine) registerBuilders() {
	e.registry.Register(materialize.TableMinuteReturns, e.buildMinuteReturns)
	e.registry.Register(materialize.TableEventMarkouts, e.buildEventMarkouts)
	e.registry.Register(materialize.TableCarSeries, e.buildCarSeries)
	e.registry.Register(materialize.TableRateDeciles, e.buildRateDeciles)
	e.registry.Register(materialize.TableOIPercentiles, e.buildOIPercentiles)
	e.registry.Register(materialize.TableVolRegimes, e.buildVolRegimes)
}

func (e *Engine) buildMinuteReturns(ctx context.Context) (any, error) {
	symbols, err := e.prices.Symbols(ctx)
	if err != nil {
		return nil, err
	}

	bySymbol := make(map[string][]*domain.ReturnPoint, len(symbols))
	for _, sym := range symbols {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		bars, err := e.prices.GetBySymbol(ctx, sym)
		if err != nil {
			return nil, err
		}
		bySymbol[sym] = returns.Compute(bars)
	}
	return bySymbol, nil
}

func (e *Engine) buildEventMarkouts(ctx context.Context) (any, error) {
	events, err := e.allEvents(ctx, 0, allEndMs)
	if err != nil {
		return nil, err
	}

	var records []*domain.MarkoutRecord
	for sym, symEvents := range eventsBySymbol(events) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		rets, _, err := e.returnsForSymbol(ctx, sym)
		if err != nil {
			return nil, err
		}
		for _, ev := range symEvents {
			records = append(records, eventwindow.Markout(sym, rets, ev.TimestampMs, eventwindow.DefaultHorizonMinutes))
		}
	}
	return records, nil
}

func (e *Engine) buildCarSeries(ctx context.Context) (any, error) {
	events, err := e.allEvents(ctx, 0, allEndMs)
	if err != nil {
		return nil, err
	}

	var points []*domain.CarPoint
	for sym, symEvents := range eventsBySymbol(events) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		rets, _, err := e.returnsForSymbol(ctx, sym)
		if err != nil {
			return nil, err
		}
		for _, ev := range symEvents {
			points = append(points, eventwindow.CarTrajectory(
				sym, rets, ev.TimestampMs,
				eventwindow.DefaultPreMinutes, eventwindow.DefaultPostMinutes,
			)...)
		}
	}
	return points, nil
}

func (e *Engine) buildRateDeciles(ctx context.Context) (any, error) {
	events, err := e.allEvents(ctx, 0, allEndMs)
	if err != nil {
		return nil, err
	}
	return regime.AssignDeciles(events), nil
}

func (e *Engine) buildOIPercentiles(ctx context.Context) (any, error) {
	symbols, err := e.prices.Symbols(ctx)
	if err != nil {
		return nil, err
	}

	bySymbol := make(map[string][]*domain.OIPercentilePoint, len(symbols))
	for _, sym := range symbols {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		points, err := e.oi.GetByTimeRange(ctx, sym, 0, allEndMs)
		if err != nil {
			return nil, err
		}
		if computed := percentile.RollingP90(points, OIWindowDays); computed != nil {
			bySymbol[sym] = computed
		}
	}
	return bySymbol, nil
}

func (e *Engine) buildVolRegimes(ctx context.Context) (any, error) {
	events, err := e.allEvents(ctx, 0, allEndMs)
	if err != nil {
		return nil, err
	}
	rv1h, err := e.rvByEvent(ctx, events, -domain.MillisPerHour, 0)
	if err != nil {
		return nil, err
	}
	return regime.AssignVolTerciles(events, rv1h), nil
}

// rowCount reports the size of a generation's row set for metrics.
func rowCount(rows any) int {
	v := reflect.ValueOf(rows)
	switch v.Kind() {
	case reflect.Slice:
		return v.Len()
	case reflect.Map:
		total := 0
		for _, key := range v.MapKeys() {
			elem := v.MapIndex(key)
			if elem.Kind() == reflect.Slice {
				total += elem.Len()
			} else {
				total++
			}
		}
		return total
	default:
		return 0
	}
}
