package postgres

import (
	"context"
	"fmt"

	"funding-market-lab/internal/domain"
	"funding-market-lab/internal/storage"
)

// FundingEventStore implements storage.FundingEventStore using PostgreSQL.
type FundingEventStore struct {
	pool *Pool
}

// NewFundingEventStore creates a new FundingEventStore.
func NewFundingEventStore(pool *Pool) *FundingEventStore {
	return &FundingEventStore{pool: pool}
}

// Compile-time interface check.
var _ storage.FundingEventStore = (*FundingEventStore)(nil)

// InsertBulk adds events, ignoring duplicates on (symbol, timestamp_ms).
func (s *FundingEventStore) InsertBulk(ctx context.Context, events []*domain.FundingEvent) error {
	if len(events) == 0 {
		return nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `
		INSERT INTO funding (symbol, timestamp_ms, rate)
		VALUES ($1, $2, $3)
		ON CONFLICT (symbol, timestamp_ms) DO NOTHING
	`

	for _, e := range events {
		if e == nil || e.Symbol == "" {
			return storage.ErrInvalidInput
		}
		if _, err := tx.Exec(ctx, query, e.Symbol, e.TimestampMs, e.Rate); err != nil {
			return fmt.Errorf("insert funding event: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}

	return nil
}

// GetByTimeRange retrieves events within [start, end] (inclusive), ordered by
// symbol ASC, timestamp ASC. An empty symbol matches all.
func (s *FundingEventStore) GetByTimeRange(ctx context.Context, symbol string, start, end int64) ([]*domain.FundingEvent, error) {
	query := `
		SELECT symbol, timestamp_ms, rate
		FROM funding
		WHERE ($1 = '' OR symbol = $1) AND timestamp_ms >= $2 AND timestamp_ms <= $3
		ORDER BY symbol ASC, timestamp_ms ASC
	`

	rows, err := s.pool.Query(ctx, query, symbol, start, end)
	if err != nil {
		return nil, fmt.Errorf("get funding events: %w", err)
	}
	defer rows.Close()

	var events []*domain.FundingEvent
	for rows.Next() {
		var e domain.FundingEvent
		if err := rows.Scan(&e.Symbol, &e.TimestampMs, &e.Rate); err != nil {
			return nil, fmt.Errorf("scan funding row: %w", err)
		}
		events = append(events, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate funding rows: %w", err)
	}

	return events, nil
}
