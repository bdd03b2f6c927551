package reporting

import (
	"time"

	"funding-market-lab/internal/domain"
)

// Report is a one-shot analytics summary over a query range.
type Report struct {
	// Metadata
	GeneratedAt time.Time
	StartMs     int64
	EndMs       int64

	// Per-symbol data inventory
	Overview []*domain.SymbolOverview

	// Rate decile table (avg 60m markout per decile)
	Deciles []*domain.DecileStat

	// Extreme regime ranking
	ExtremeRegimes []*domain.RegimeStat

	// Conditioning tables
	Hourly   []*domain.HourlyStat
	Terciles []*domain.TercileStat

	// Symbol rankings
	FundingPressure []*domain.FundingPressure
	SafeSymbols     []string
}
