package clickhouse

import (
	"context"
	"fmt"

	"funding-market-lab/internal/domain"
	"funding-market-lab/internal/storage"
)

// ReturnStore implements storage.ReturnStore using ClickHouse.
//
// Rows are never updated in place. Each rebuild writes a complete new
// generation and readers always select from the newest one, so a rebuild
// that dies halfway leaves the previous generation untouched.
type ReturnStore struct {
	conn *Conn
}

// NewReturnStore creates a new ReturnStore.
func NewReturnStore(conn *Conn) *ReturnStore {
	return &ReturnStore{conn: conn}
}

// Compile-time interface check.
var _ storage.ReturnStore = (*ReturnStore)(nil)

// InsertGeneration writes one complete generation of return points.
func (s *ReturnStore) InsertGeneration(ctx context.Context, generation uint64, points []*domain.ReturnPoint) error {
	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO minute_returns (
			generation, symbol, timestamp_ms, log_return, rolling_vol
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, p := range points {
		if p == nil || p.Symbol == "" {
			return storage.ErrInvalidInput
		}
		err = batch.Append(
			generation, p.Symbol, p.TimestampMs, p.LogReturn, p.RollingVolatility,
		)
		if err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}

	return nil
}

// GetByTimeRange retrieves returns for a symbol within [start, end]
// (inclusive) from the newest stored generation, ordered by timestamp ASC.
func (s *ReturnStore) GetByTimeRange(ctx context.Context, symbol string, start, end int64) ([]*domain.ReturnPoint, error) {
	query := `
		SELECT symbol, timestamp_ms, log_return, rolling_vol
		FROM minute_returns
		WHERE generation = (SELECT max(generation) FROM minute_returns)
			AND symbol = ? AND timestamp_ms >= ? AND timestamp_ms <= ?
		ORDER BY timestamp_ms ASC
	`

	rows, err := s.conn.Query(ctx, query, symbol, start, end)
	if err != nil {
		return nil, fmt.Errorf("query returns by time range: %w", err)
	}
	defer rows.Close()

	return scanReturnPoints(rows)
}

// LatestGeneration returns the newest stored generation id.
func (s *ReturnStore) LatestGeneration(ctx context.Context) (uint64, error) {
	return latestGeneration(ctx, s.conn, "minute_returns")
}

// latestGeneration reads the max generation of a derived table, shared by
// all generation-versioned stores.
func latestGeneration(ctx context.Context, conn *Conn, table string) (uint64, error) {
	query := fmt.Sprintf(`SELECT count(), max(generation) FROM %s`, table)

	var count, generation uint64
	if err := conn.QueryRow(ctx, query).Scan(&count, &generation); err != nil {
		return 0, fmt.Errorf("query latest generation: %w", err)
	}
	if count == 0 {
		return 0, storage.ErrNotFound
	}
	return generation, nil
}

// scanReturnPoints scans multiple rows.
func scanReturnPoints(rows chRows) ([]*domain.ReturnPoint, error) {
	var points []*domain.ReturnPoint

	for rows.Next() {
		var p domain.ReturnPoint
		err := rows.Scan(
			&p.Symbol, &p.TimestampMs, &p.LogReturn, &p.RollingVolatility,
		)
		if err != nil {
			return nil, fmt.Errorf("scan return row: %w", err)
		}
		points = append(points, &p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate return rows: %w", err)
	}

	return points, nil
}
