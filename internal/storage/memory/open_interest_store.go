package memory

import (
	"context"
	"sort"
	"sync"

	"funding-market-lab/internal/domain"
	"funding-market-lab/internal/storage"
)

// OpenInterestStore is an in-memory implementation of storage.OpenInterestStore.
type OpenInterestStore struct {
	mu   sync.RWMutex
	data map[string]*domain.OpenInterestPoint // keyed by (symbol, timestamp_ms)
}

// NewOpenInterestStore creates a new in-memory open interest store.
func NewOpenInterestStore() *OpenInterestStore {
	return &OpenInterestStore{
		data: make(map[string]*domain.OpenInterestPoint),
	}
}

var _ storage.OpenInterestStore = (*OpenInterestStore)(nil)

// InsertBulk adds snapshots, ignoring duplicates on (symbol, timestamp_ms).
func (s *OpenInterestStore) InsertBulk(_ context.Context, points []*domain.OpenInterestPoint) error {
	if len(points) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, p := range points {
		if p == nil || p.Symbol == "" {
			return storage.ErrInvalidInput
		}
		key := seriesKey(p.Symbol, p.TimestampMs)
		if _, exists := s.data[key]; exists {
			continue
		}
		pointCopy := *p
		s.data[key] = &pointCopy
	}

	return nil
}

// GetByTimeRange retrieves snapshots for a symbol within [start, end]
// (inclusive), ordered by timestamp ASC.
func (s *OpenInterestStore) GetByTimeRange(_ context.Context, symbol string, start, end int64) ([]*domain.OpenInterestPoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.OpenInterestPoint
	for _, p := range s.data {
		if p.Symbol == symbol && p.TimestampMs >= start && p.TimestampMs <= end {
			pointCopy := *p
			result = append(result, &pointCopy)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].TimestampMs < result[j].TimestampMs
	})

	return result, nil
}
