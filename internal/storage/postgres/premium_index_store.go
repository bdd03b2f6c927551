package postgres

import (
	"context"
	"fmt"

	"funding-market-lab/internal/domain"
	"funding-market-lab/internal/storage"
)

// PremiumIndexStore implements storage.PremiumIndexStore using PostgreSQL.
type PremiumIndexStore struct {
	pool *Pool
}

// NewPremiumIndexStore creates a new PremiumIndexStore.
func NewPremiumIndexStore(pool *Pool) *PremiumIndexStore {
	return &PremiumIndexStore{pool: pool}
}

// Compile-time interface check.
var _ storage.PremiumIndexStore = (*PremiumIndexStore)(nil)

// InsertBulk adds bars, ignoring duplicates on (symbol, timestamp_ms).
func (s *PremiumIndexStore) InsertBulk(ctx context.Context, points []*domain.PremiumIndexPoint) error {
	if len(points) == 0 {
		return nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `
		INSERT INTO premium_index (symbol, timestamp_ms, open_val, high_val, low_val, close_val)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (symbol, timestamp_ms) DO NOTHING
	`

	for _, p := range points {
		if p == nil || p.Symbol == "" {
			return storage.ErrInvalidInput
		}
		_, err := tx.Exec(ctx, query, p.Symbol, p.TimestampMs, p.Open, p.High, p.Low, p.Close)
		if err != nil {
			return fmt.Errorf("insert premium index: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}

	return nil
}

// GetByTimeRange retrieves bars for a symbol within [start, end] (inclusive),
// ordered by timestamp ASC.
func (s *PremiumIndexStore) GetByTimeRange(ctx context.Context, symbol string, start, end int64) ([]*domain.PremiumIndexPoint, error) {
	query := `
		SELECT symbol, timestamp_ms, open_val, high_val, low_val, close_val
		FROM premium_index
		WHERE symbol = $1 AND timestamp_ms >= $2 AND timestamp_ms <= $3
		ORDER BY timestamp_ms ASC
	`

	rows, err := s.pool.Query(ctx, query, symbol, start, end)
	if err != nil {
		return nil, fmt.Errorf("get premium index: %w", err)
	}
	defer rows.Close()

	var points []*domain.PremiumIndexPoint
	for rows.Next() {
		var p domain.PremiumIndexPoint
		if err := rows.Scan(&p.Symbol, &p.TimestampMs, &p.Open, &p.High, &p.Low, &p.Close); err != nil {
			return nil, fmt.Errorf("scan premium index row: %w", err)
		}
		points = append(points, &p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate premium index rows: %w", err)
	}

	return points, nil
}
