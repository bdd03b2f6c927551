package postgres

import (
	"context"
	"fmt"

	"funding-market-lab/internal/domain"
	"funding-market-lab/internal/storage"
)

// SymbolStore implements storage.SymbolStore using PostgreSQL.
type SymbolStore struct {
	pool *Pool
}

// NewSymbolStore creates a new SymbolStore.
func NewSymbolStore(pool *Pool) *SymbolStore {
	return &SymbolStore{pool: pool}
}

// Compile-time interface check.
var _ storage.SymbolStore = (*SymbolStore)(nil)

// Insert adds a symbol, ignoring it if already present.
func (s *SymbolStore) Insert(ctx context.Context, sym *domain.SymbolInfo) error {
	if sym == nil || sym.Symbol == "" {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO symbols (symbol, base_asset, quote_asset)
		VALUES ($1, $2, $3)
		ON CONFLICT (symbol) DO NOTHING
	`

	if _, err := s.pool.Exec(ctx, query, sym.Symbol, sym.BaseAsset, sym.QuoteAsset); err != nil {
		return fmt.Errorf("insert symbol: %w", err)
	}
	return nil
}

// GetAll retrieves all symbols ordered by symbol ASC.
func (s *SymbolStore) GetAll(ctx context.Context) ([]*domain.SymbolInfo, error) {
	query := `
		SELECT symbol, base_asset, quote_asset FROM symbols ORDER BY symbol ASC
	`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("get symbols: %w", err)
	}
	defer rows.Close()

	var symbols []*domain.SymbolInfo
	for rows.Next() {
		var sym domain.SymbolInfo
		if err := rows.Scan(&sym.Symbol, &sym.BaseAsset, &sym.QuoteAsset); err != nil {
			return nil, fmt.Errorf("scan symbol row: %w", err)
		}
		symbols = append(symbols, &sym)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate symbol rows: %w", err)
	}

	return symbols, nil
}
