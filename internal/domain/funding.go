package domain

// FundingEvent is one periodic funding-rate print.
// Corresponds to the funding table in Postgres; one event per (symbol, ts).
type FundingEvent struct {
	Symbol      string
	TimestampMs int64   // event timestamp, Unix milliseconds UTC
	Rate        float64 // funding rate, e.g. 0.0001 = 1 bps
}

// OpenInterestPoint is one open-interest snapshot.
// Corresponds to the open_interest table in Postgres.
type OpenInterestPoint struct {
	Symbol       string
	TimestampMs  int64
	OpenInterest float64 // total outstanding notional
}

// PremiumIndexPoint is one premium-index OHLC bar.
// Corresponds to the premium_index table in Postgres.
type PremiumIndexPoint struct {
	Symbol      string
	TimestampMs int64
	Open        float64
	High        float64
	Low         float64
	Close       float64
}
