package postgres

import (
	"context"
	"fmt"

	"funding-market-lab/internal/domain"
	"funding-market-lab/internal/storage"
)

// OpenInterestStore implements storage.OpenInterestStore using PostgreSQL.
type OpenInterestStore struct {
	pool *Pool
}

// NewOpenInterestStore creates a new OpenInterestStore.
func NewOpenInterestStore(pool *Pool) *OpenInterestStore {
	return &OpenInterestStore{pool: pool}
}

// Compile-time interface check.
var _ storage.OpenInterestStore = (*OpenInterestStore)(nil)

// InsertBulk adds snapshots, ignoring duplicates on (symbol, timestamp_ms).
func (s *OpenInterestStore) InsertBulk(ctx context.Context, points []*domain.OpenInterestPoint) error {
	if len(points) == 0 {
		return nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `
		INSERT INTO open_interest (symbol, timestamp_ms, oi)
		VALUES ($1, $2, $3)
		ON CONFLICT (symbol, timestamp_ms) DO NOTHING
	`

	for _, p := range points {
		if p == nil || p.Symbol == "" {
			return storage.ErrInvalidInput
		}
		if _, err := tx.Exec(ctx, query, p.Symbol, p.TimestampMs, p.OpenInterest); err != nil {
			return fmt.Errorf("insert open interest: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}

	return nil
}

// GetByTimeRange retrieves snapshots for a symbol within [start, end]
// (inclusive), ordered by timestamp ASC.
func (s *OpenInterestStore) GetByTimeRange(ctx context.Context, symbol string, start, end int64) ([]*domain.OpenInterestPoint, error) {
	query := `
		SELECT symbol, timestamp_ms, oi
		FROM open_interest
		WHERE symbol = $1 AND timestamp_ms >= $2 AND timestamp_ms <= $3
		ORDER BY timestamp_ms ASC
	`

	rows, err := s.pool.Query(ctx, query, symbol, start, end)
	if err != nil {
		return nil, fmt.Errorf("get open interest: %w", err)
	}
	defer rows.Close()

	var points []*domain.OpenInterestPoint
	for rows.Next() {
		var p domain.OpenInterestPoint
		if err := rows.Scan(&p.Symbol, &p.TimestampMs, &p.OpenInterest); err != nil {
			return nil, fmt.Errorf("scan open interest row: %w", err)
		}
		points = append(points, &p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate open interest rows: %w", err)
	}

	return points, nil
}
