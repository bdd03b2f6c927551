package storage

import (
	"context"

	"funding-market-lab/internal/domain"
)

// Source tables (symbols, klines, funding, open_interest, premium_index)
// are append-only: InsertBulk ignores rows whose key already exists, so
// re-running a loader is idempotent. Derived tables (minute returns, event
// markouts) are generation-versioned and rebuilt wholesale.

// SymbolStore provides access to the symbols table.
type SymbolStore interface {
	// Insert adds a symbol, ignoring it if already present.
	Insert(ctx context.Context, s *domain.SymbolInfo) error

	// GetAll retrieves all symbols ordered by symbol ASC.
	GetAll(ctx context.Context) ([]*domain.SymbolInfo, error)
}

// PriceStore provides access to the klines table.
type PriceStore interface {
	// InsertBulk adds bars, ignoring duplicates on (symbol, timestamp_ms).
	InsertBulk(ctx context.Context, points []*domain.PricePoint) error

	// GetBySymbol retrieves all bars for a symbol, ordered by timestamp ASC.
	GetBySymbol(ctx context.Context, symbol string) ([]*domain.PricePoint, error)

	// GetByTimeRange retrieves bars for a symbol within [start, end] (inclusive).
	GetByTimeRange(ctx context.Context, symbol string, start, end int64) ([]*domain.PricePoint, error)

	// Symbols returns the distinct symbols with at least one bar, sorted ASC.
	Symbols(ctx context.Context) ([]string, error)
}

// FundingEventStore provides access to the funding table.
type FundingEventStore interface {
	// InsertBulk adds events, ignoring duplicates on (symbol, timestamp_ms).
	InsertBulk(ctx context.Context, events []*domain.FundingEvent) error

	// GetByTimeRange retrieves events within [start, end] (inclusive),
	// ordered by symbol ASC, timestamp ASC. An empty symbol matches all.
	GetByTimeRange(ctx context.Context, symbol string, start, end int64) ([]*domain.FundingEvent, error)
}

// OpenInterestStore provides access to the open_interest table.
type OpenInterestStore interface {
	// InsertBulk adds snapshots, ignoring duplicates on (symbol, timestamp_ms).
	InsertBulk(ctx context.Context, points []*domain.OpenInterestPoint) error

	// GetByTimeRange retrieves snapshots for a symbol within [start, end]
	// (inclusive), ordered by timestamp ASC.
	GetByTimeRange(ctx context.Context, symbol string, start, end int64) ([]*domain.OpenInterestPoint, error)
}

// PremiumIndexStore provides access to the premium_index table.
type PremiumIndexStore interface {
	// InsertBulk adds bars, ignoring duplicates on (symbol, timestamp_ms).
	InsertBulk(ctx context.Context, points []*domain.PremiumIndexPoint) error

	// GetByTimeRange retrieves bars for a symbol within [start, end]
	// (inclusive), ordered by timestamp ASC.
	GetByTimeRange(ctx context.Context, symbol string, start, end int64) ([]*domain.PremiumIndexPoint, error)
}

// ReturnStore persists materialized minute-return generations.
type ReturnStore interface {
	// InsertGeneration writes one complete generation of return points.
	InsertGeneration(ctx context.Context, generation uint64, points []*domain.ReturnPoint) error

	// GetByTimeRange retrieves returns for a symbol within [start, end]
	// (inclusive) from the newest stored generation, ordered by timestamp ASC.
	GetByTimeRange(ctx context.Context, symbol string, start, end int64) ([]*domain.ReturnPoint, error)

	// LatestGeneration returns the newest stored generation id.
	// Returns ErrNotFound when no generation has been written.
	LatestGeneration(ctx context.Context) (uint64, error)
}

// MarkoutStore persists materialized event-markout generations.
type MarkoutStore interface {
	// InsertGeneration writes one complete generation of markout records.
	InsertGeneration(ctx context.Context, generation uint64, records []*domain.MarkoutRecord) error

	// GetByTimeRange retrieves markouts whose event timestamp falls within
	// [start, end] (inclusive) from the newest stored generation, ordered by
	// symbol ASC, event timestamp ASC.
	GetByTimeRange(ctx context.Context, start, end int64) ([]*domain.MarkoutRecord, error)

	// LatestGeneration returns the newest stored generation id.
	// Returns ErrNotFound when no generation has been written.
	LatestGeneration(ctx context.Context) (uint64, error)
}
