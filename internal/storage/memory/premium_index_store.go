package memory

import (
	"context"
	"sort"
	"sync"

	"funding-market-lab/internal/domain"
	"funding-market-lab/internal/storage"
)

// PremiumIndexStore is an in-memory implementation of storage.PremiumIndexStore.
type PremiumIndexStore struct {
	mu   sync.RWMutex
	data map[string]*domain.PremiumIndexPoint // keyed by (symbol, timestamp_ms)
}

// NewPremiumIndexStore creates a new in-memory premium index store.
func NewPremiumIndexStore() *PremiumIndexStore {
	return &PremiumIndexStore{
		data: make(map[string]*domain.PremiumIndexPoint),
	}
}

var _ storage.PremiumIndexStore = (*PremiumIndexStore)(nil)

// InsertBulk adds bars, ignoring duplicates on (symbol, timestamp_ms).
func (s *PremiumIndexStore) InsertBulk(_ context.Context, points []*domain.PremiumIndexPoint) error {
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

// GetByTimeRange retrieves bars for a symbol within [start, end] (inclusive),
// ordered by timestamp ASC.
func (s *PremiumIndexStore) GetByTimeRange(_ context.Context, symbol string, start, end int64) ([]*domain.PremiumIndexPoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.PremiumIndexPoint
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
