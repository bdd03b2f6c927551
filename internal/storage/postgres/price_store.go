package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"funding-market-lab/internal/domain"
	"funding-market-lab/internal/storage"
)

// PriceStore implements storage.PriceStore using PostgreSQL.
type PriceStore struct {
	pool *Pool
}

// NewPriceStore creates a new PriceStore.
func NewPriceStore(pool *Pool) *PriceStore {
	return &PriceStore{pool: pool}
}

// Compile-time interface check.
var _ storage.PriceStore = (*PriceStore)(nil)

// InsertBulk adds bars, ignoring duplicates on (symbol, timestamp_ms).
func (s *PriceStore) InsertBulk(ctx context.Context, points []*domain.PricePoint) error {
	if len(points) == 0 {
		return nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `
		INSERT INTO klines (
			symbol, timestamp_ms, open_price, high_price, low_price, close_price, volume, trade_count
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (symbol, timestamp_ms) DO NOTHING
	`

	for _, p := range points {
		if p == nil || p.Symbol == "" {
			return storage.ErrInvalidInput
		}
		_, err := tx.Exec(ctx, query,
			p.Symbol, p.TimestampMs,
			p.Open, p.High, p.Low, p.Close,
			p.Volume, p.TradeCount,
		)
		if err != nil {
			return fmt.Errorf("insert kline: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}

	return nil
}

// GetBySymbol retrieves all bars for a symbol, ordered by timestamp ASC.
func (s *PriceStore) GetBySymbol(ctx context.Context, symbol string) ([]*domain.PricePoint, error) {
	query := `
		SELECT symbol, timestamp_ms, open_price, high_price, low_price, close_price, volume, trade_count
		FROM klines
		WHERE symbol = $1
		ORDER BY timestamp_ms ASC
	`

	rows, err := s.pool.Query(ctx, query, symbol)
	if err != nil {
		return nil, fmt.Errorf("get klines by symbol: %w", err)
	}
	defer rows.Close()

	return scanPricePoints(rows)
}

// GetByTimeRange retrieves bars for a symbol within [start, end] (inclusive).
func (s *PriceStore) GetByTimeRange(ctx context.Context, symbol string, start, end int64) ([]*domain.PricePoint, error) {
	query := `
		SELECT symbol, timestamp_ms, open_price, high_price, low_price, close_price, volume, trade_count
		FROM klines
		WHERE symbol = $1 AND timestamp_ms >= $2 AND timestamp_ms <= $3
		ORDER BY timestamp_ms ASC
	`

	rows, err := s.pool.Query(ctx, query, symbol, start, end)
	if err != nil {
		return nil, fmt.Errorf("get klines by time range: %w", err)
	}
	defer rows.Close()

	return scanPricePoints(rows)
}

// Symbols returns the distinct symbols with at least one bar, sorted ASC.
func (s *PriceStore) Symbols(ctx context.Context) ([]string, error) {
	query := `
		SELECT DISTINCT symbol FROM klines ORDER BY symbol ASC
	`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("get kline symbols: %w", err)
	}
	defer rows.Close()

	var symbols []string
	for rows.Next() {
		var sym string
		if err := rows.Scan(&sym); err != nil {
			return nil, fmt.Errorf("scan kline symbol: %w", err)
		}
		symbols = append(symbols, sym)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate kline symbols: %w", err)
	}

	return symbols, nil
}

// scanPricePoints scans multiple kline rows.
func scanPricePoints(rows pgx.Rows) ([]*domain.PricePoint, error) {
	var points []*domain.PricePoint

	for rows.Next() {
		var p domain.PricePoint
		err := rows.Scan(
			&p.Symbol, &p.TimestampMs,
			&p.Open, &p.High, &p.Low, &p.Close,
			&p.Volume, &p.TradeCount,
		)
		if err != nil {
			return nil, fmt.Errorf("scan kline row: %w", err)
		}
		points = append(points, &p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate kline rows: %w", err)
	}

	return points, nil
}
