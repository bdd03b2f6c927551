package returns

import (
	"math"

	"gonum.org/v1/gonum/stat"

	"funding-market-lab/internal/domain"
)

// VolatilityWindow is the number of trailing returns (current included) the
// rolling realized volatility is computed over. With 1-minute bars this
// covers roughly half an hour of history.
const VolatilityWindow = 31

// Iterator lazily converts price bars into log-return points. Input bars
// must be for a single symbol, sorted by timestamp ASC. Bars with a
// non-positive close are skipped and reset the volatility window, since a
// log return across them is undefined.
type Iterator struct {
	prices []*domain.PricePoint
	pos    int
	window []float64
}

// NewIterator creates an iterator over sorted price bars.
func NewIterator(prices []*domain.PricePoint) *Iterator {
	return &Iterator{
		prices: prices,
		window: make([]float64, 0, VolatilityWindow),
	}
}

// Reset rewinds the iterator onto a new bar slice.
func (it *Iterator) Reset(prices []*domain.PricePoint) {
	it.prices = prices
	it.pos = 0
	it.window = it.window[:0]
}

// Next yields the return between the next pair of consecutive bars.
// The returned point carries the timestamp of the later bar. RollingVolatility
// is nil until the window holds at least two returns.
func (it *Iterator) Next() (*domain.ReturnPoint, bool) {
	for it.pos < len(it.prices)-1 {
		prev := it.prices[it.pos]
		cur := it.prices[it.pos+1]
		it.pos++

		if prev.Close <= 0 || cur.Close <= 0 {
			it.window = it.window[:0]
			continue
		}

		r := math.Log(cur.Close / prev.Close)
		if len(it.window) == VolatilityWindow {
			copy(it.window, it.window[1:])
			it.window = it.window[:VolatilityWindow-1]
		}
		it.window = append(it.window, r)

		return &domain.ReturnPoint{
			Symbol:            cur.Symbol,
			TimestampMs:       cur.TimestampMs,
			LogReturn:         r,
			RollingVolatility: SampleStdDev(it.window),
		}, true
	}
	return nil, false
}

// Compute drains an iterator over the given bars into a slice.
func Compute(prices []*domain.PricePoint) []*domain.ReturnPoint {
	it := NewIterator(prices)

	var points []*domain.ReturnPoint
	for {
		p, ok := it.Next()
		if !ok {
			return points
		}
		points = append(points, p)
	}
}

// SampleStdDev returns the sample (N-1) standard deviation of values, or nil
// when fewer than two values are present and the statistic is undefined.
func SampleStdDev(values []float64) *float64 {
	if len(values) < 2 {
		return nil
	}
	sd := stat.StdDev(values, nil)
	return &sd
}
