package clickhouse

import (
	"context"
	"fmt"

	"funding-market-lab/internal/domain"
	"funding-market-lab/internal/storage"
)

// MarkoutStore implements storage.MarkoutStore using ClickHouse.
type MarkoutStore struct {
	conn *Conn
}

// NewMarkoutStore creates a new MarkoutStore.
func NewMarkoutStore(conn *Conn) *MarkoutStore {
	return &MarkoutStore{conn: conn}
}

// Compile-time interface check.
var _ storage.MarkoutStore = (*MarkoutStore)(nil)

// InsertGeneration writes one complete generation of markout records.
func (s *MarkoutStore) InsertGeneration(ctx context.Context, generation uint64, records []*domain.MarkoutRecord) error {
	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO event_markouts (
			generation, symbol, event_timestamp_ms, horizon_minutes, markout_sum, sample_count
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, r := range records {
		if r == nil || r.Symbol == "" {
			return storage.ErrInvalidInput
		}
		err = batch.Append(
			generation, r.Symbol, r.EventTimestampMs,
			int32(r.HorizonMinutes), r.MarkoutSum, uint32(r.SampleCount),
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

// GetByTimeRange retrieves markouts whose event timestamp falls within
// [start, end] (inclusive) from the newest stored generation, ordered by
// symbol ASC, event timestamp ASC, horizon ASC.
func (s *MarkoutStore) GetByTimeRange(ctx context.Context, start, end int64) ([]*domain.MarkoutRecord, error) {
	query := `
		SELECT symbol, event_timestamp_ms, horizon_minutes, markout_sum, sample_count
		FROM event_markouts
		WHERE generation = (SELECT max(generation) FROM event_markouts)
			AND event_timestamp_ms >= ? AND event_timestamp_ms <= ?
		ORDER BY symbol ASC, event_timestamp_ms ASC, horizon_minutes ASC
	`

	rows, err := s.conn.Query(ctx, query, start, end)
	if err != nil {
		return nil, fmt.Errorf("query markouts by time range: %w", err)
	}
	defer rows.Close()

	return scanMarkoutRecords(rows)
}

// LatestGeneration returns the newest stored generation id.
func (s *MarkoutStore) LatestGeneration(ctx context.Context) (uint64, error) {
	return latestGeneration(ctx, s.conn, "event_markouts")
}

// scanMarkoutRecords scans multiple rows.
func scanMarkoutRecords(rows chRows) ([]*domain.MarkoutRecord, error) {
	var records []*domain.MarkoutRecord

	for rows.Next() {
		var r domain.MarkoutRecord
		var horizon int32
		var sampleCount uint32

		err := rows.Scan(
			&r.Symbol, &r.EventTimestampMs, &horizon, &r.MarkoutSum, &sampleCount,
		)
		if err != nil {
			return nil, fmt.Errorf("scan markout row: %w", err)
		}

		r.HorizonMinutes = int(horizon)
		r.SampleCount = int(sampleCount)
		records = append(records, &r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate markout rows: %w", err)
	}

	return records, nil
}
