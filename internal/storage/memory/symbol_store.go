package memory

import (
	"context"
	"sort"
	"sync"

	"funding-market-lab/internal/domain"
	"funding-market-lab/internal/storage"
)

// SymbolStore is an in-memory implementation of storage.SymbolStore.
type SymbolStore struct {
	mu   sync.RWMutex
	data map[string]*domain.SymbolInfo
}

// NewSymbolStore creates a new in-memory symbol store.
func NewSymbolStore() *SymbolStore {
	return &SymbolStore{
		data: make(map[string]*domain.SymbolInfo),
	}
}

var _ storage.SymbolStore = (*SymbolStore)(nil)

// Insert adds a symbol, ignoring it if already present.
func (s *SymbolStore) Insert(_ context.Context, sym *domain.SymbolInfo) error {
	if sym == nil || sym.Symbol == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[sym.Symbol]; exists {
		return nil
	}
	symCopy := *sym
	s.data[sym.Symbol] = &symCopy
	return nil
}

// GetAll retrieves all symbols ordered by symbol ASC.
func (s *SymbolStore) GetAll(_ context.Context) ([]*domain.SymbolInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*domain.SymbolInfo, 0, len(s.data))
	for _, sym := range s.data {
		symCopy := *sym
		result = append(result, &symCopy)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Symbol < result[j].Symbol
	})

	return result, nil
}
