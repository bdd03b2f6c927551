package domain

// PricePoint is one minute-resolution OHLCV bar for a perpetual symbol.
// Corresponds to the klines table in Postgres.
type PricePoint struct {
	Symbol      string  // trading pair, e.g. BTCUSDT
	TimestampMs int64   // bar open time, Unix milliseconds UTC
	Open        float64 // open price
	High        float64 // high price
	Low         float64 // low price
	Close       float64 // close price
	Volume      float64 // base asset volume
	TradeCount  int     // number of trades in the bar
}

// ReturnPoint is a derived one-step log return with its rolling volatility.
// A ReturnPoint exists only where a return is defined, i.e. the bar has an
// immediately preceding stored bar for the same symbol. Derived rows are
// caches, never sources of truth.
type ReturnPoint struct {
	Symbol            string
	TimestampMs       int64    // timestamp of the bar the return ends at
	LogReturn         float64  // ln(close[t]) - ln(close[t-1])
	RollingVolatility *float64 // sample stddev over trailing window; nil if fewer than 2 returns
}

// SymbolInfo describes one tradable symbol.
// Corresponds to the symbols table in Postgres.
type SymbolInfo struct {
	Symbol     string
	BaseAsset  string
	QuoteAsset string
}
