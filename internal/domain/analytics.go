package domain

// MarkoutRecord is the summed return over a fixed horizon after an event.
// MarkoutSum is nil when no ReturnPoint falls inside (event_ts, event_ts+H];
// SampleCount tracks how many returns contributed so downstream averaging
// can exclude data gaps instead of biasing toward zero.
type MarkoutRecord struct {
	Symbol           string
	EventTimestampMs int64
	HorizonMinutes   int
	MarkoutSum       *float64
	SampleCount      int
}

// CarPoint is one step of a cumulative-return trajectory around an event.
// Pre-event points always carry CumulativeReturn 0.
type CarPoint struct {
	Symbol           string
	EventTimestampMs int64
	TimestampMs      int64
	CumulativeReturn float64
}

// CarSummary is the min/max of a CAR trajectory over its full window.
// MinCar and MaxCar are nil when the window contains no ReturnPoints.
type CarSummary struct {
	Symbol           string
	EventTimestampMs int64
	MinCar           *float64
	MaxCar           *float64
	SampleCount      int
}

// DecileAssignment places a funding event into an equal-frequency rate
// bucket, computed independently per UTC calendar day across all symbols.
type DecileAssignment struct {
	Symbol      string
	TimestampMs int64
	Rate        float64
	Decile      int // 1..10
}

// DecileStat is the per-decile markout summary.
type DecileStat struct {
	Decile     int
	AvgMarkout float64
	EventCount int // events with at least one contributing return
}

// OIPercentilePoint carries the trailing-window open-interest percentile
// as of one snapshot. The window always contains at least the current
// point, so P90 is always defined.
type OIPercentilePoint struct {
	Symbol       string
	TimestampMs  int64
	OpenInterest float64
	P90          float64 // 90th percentile over the trailing 14-day window
}

// RegimeAssignment is a global volatility tercile for one event.
type RegimeAssignment struct {
	Symbol             string
	EventTimestampMs   int64
	VolatilityTercile  int     // 1=low, 2=mid, 3=high
	RealizedVolatility float64 // pre-event 1h realized volatility used for ranking
}

// RegimeStat summarizes extreme-regime events for one symbol.
type RegimeStat struct {
	Symbol     string
	AvgMarkout float64
	EventCount int
}

// HourlyStat is the average markout conditioned on UTC hour of day.
type HourlyStat struct {
	Hour       int // 0..23
	AvgMarkout float64
	EventCount int
}

// TercileStat is the average markout conditioned on volatility tercile.
type TercileStat struct {
	Tercile    int // 1..3
	AvgMarkout float64
	EventCount int
}

// SymbolOverview is a per-symbol data inventory over a query range.
// AvgKlineVolume is nil when the symbol has no bars in the range.
type SymbolOverview struct {
	Symbol            string
	KlineCount        int
	FundingEventCount int
	AvgKlineVolume    *float64
}

// FundingPressure ranks a symbol by average absolute funding rate.
type FundingPressure struct {
	Symbol     string
	AvgAbsRate float64
	EventCount int
}

// PostEventVol is the average post-event realized volatility for a symbol.
type PostEventVol struct {
	Symbol     string
	AvgVol     float64
	EventCount int
}

// PositiveMoveCount counts events whose markout exceeded a threshold.
type PositiveMoveCount struct {
	Symbol string
	Count  int
}
