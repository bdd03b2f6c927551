package memory

import (
	"context"
	"sort"
	"sync"

	"funding-market-lab/internal/domain"
	"funding-market-lab/internal/storage"
)

// FundingEventStore is an in-memory implementation of storage.FundingEventStore.
type FundingEventStore struct {
	mu   sync.RWMutex
	data map[string]*domain.FundingEvent // keyed by (symbol, timestamp_ms)
}

// NewFundingEventStore creates a new in-memory funding event store.
func NewFundingEventStore() *FundingEventStore {
	return &FundingEventStore{
		data: make(map[string]*domain.FundingEvent),
	}
}

var _ storage.FundingEventStore = (*FundingEventStore)(nil)

// InsertBulk adds events, ignoring duplicates on (symbol, timestamp_ms).
func (s *FundingEventStore) InsertBulk(_ context.Context, events []*domain.FundingEvent) error {
	if len(events) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, e := range events {
		if e == nil || e.Symbol == "" {
			return storage.ErrInvalidInput
		}
		key := seriesKey(e.Symbol, e.TimestampMs)
		if _, exists := s.data[key]; exists {
			continue
		}
		eventCopy := *e
		s.data[key] = &eventCopy
	}

	return nil
}

// GetByTimeRange retrieves events within [start, end] (inclusive), ordered by
// symbol ASC, timestamp ASC. An empty symbol matches all.
func (s *FundingEventStore) GetByTimeRange(_ context.Context, symbol string, start, end int64) ([]*domain.FundingEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.FundingEvent
	for _, e := range s.data {
		if symbol != "" && e.Symbol != symbol {
			continue
		}
		if e.TimestampMs >= start && e.TimestampMs <= end {
			eventCopy := *e
			result = append(result, &eventCopy)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].Symbol != result[j].Symbol {
			return result[i].Symbol < result[j].Symbol
		}
		return result[i].TimestampMs < result[j].TimestampMs
	})

	return result, nil
}
