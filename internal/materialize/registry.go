// Package materialize maintains named, versioned snapshots of derived
// analytics tables. Each rebuild computes a complete new generation and
// publishes it with an atomic pointer swap, so readers always observe one
// complete generation and a failed rebuild leaves the prior one untouched.
package materialize

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// Materialized table names.
const (
	TableMinuteReturns = "minute_returns"
	TableEventMarkouts = "event_markouts"
	TableCarSeries     = "car_series"
	TableRateDeciles   = "rate_deciles"
	TableOIPercentiles = "oi_percentiles"
	TableVolRegimes    = "vol_regimes"
)

var (
	// ErrUnknownTable is returned for a table name never registered.
	ErrUnknownTable = errors.New("unknown materialized table")

	// ErrRebuildInProgress is returned when a rebuild for the same table is
	// already running. Rebuilds are serialized per table.
	ErrRebuildInProgress = errors.New("rebuild already in progress")

	// ErrNoGeneration is returned when a table has never been built.
	ErrNoGeneration = errors.New("no generation published")
)

// RebuildError wraps a failed materialization pass for one table.
type RebuildError struct {
	Table string
	Err   error
}

func (e *RebuildError) Error() string {
	return fmt.Sprintf("rebuild %s: %v", e.Table, e.Err)
}

func (e *RebuildError) Unwrap() error {
	return e.Err
}

// Generation is one immutable published build of a table. Rows holds the
// table-specific slice type; readers type-assert it back.
type Generation struct {
	ID      uint64
	BuiltAt time.Time
	Rows    any
}

// Builder computes one complete set of rows for a table from current
// source data.
type Builder func(ctx context.Context) (any, error)

type table struct {
	builder Builder

	// mu serializes rebuilds of this table. Readers never take it; they go
	// through the atomic pointer.
	mu      sync.Mutex
	current atomic.Pointer[Generation]
}

// Registry owns the materialized tables. Generation ids are monotonic
// across all tables.
type Registry struct {
	mu     sync.RWMutex
	tables map[string]*table
	nextID atomic.Uint64
	now    func() time.Time
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		tables: make(map[string]*table),
		now:    time.Now,
	}
}

// Register adds a table with its builder. Registering an existing name
// replaces the builder and drops any published generation.
func (r *Registry) Register(name string, b Builder) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tables[name] = &table{builder: b}
}

func (r *Registry) lookup(name string) (*table, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tables[name]
	return t, ok
}

// Rebuild computes and publishes a new generation for the named table.
// At most one rebuild per table runs at a time; a concurrent attempt fails
// immediately with ErrRebuildInProgress instead of queueing. Any failure,
// including context cancellation, leaves the previously published
// generation authoritative.
func (r *Registry) Rebuild(ctx context.Context, name string) (uint64, error) {
	t, ok := r.lookup(name)
	if !ok {
		return 0, &RebuildError{Table: name, Err: ErrUnknownTable}
	}

	if !t.mu.TryLock() {
		return 0, &RebuildError{Table: name, Err: ErrRebuildInProgress}
	}
	defer t.mu.Unlock()

	rows, err := t.builder(ctx)
	if err != nil {
		return 0, &RebuildError{Table: name, Err: err}
	}
	if err := ctx.Err(); err != nil {
		return 0, &RebuildError{Table: name, Err: err}
	}

	gen := &Generation{
		ID:      r.nextID.Add(1),
		BuiltAt: r.now(),
		Rows:    rows,
	}
	t.current.Store(gen)
	return gen.ID, nil
}

// Snapshot returns the currently published generation of a table.
// Returns ErrUnknownTable for unregistered names and ErrNoGeneration when
// the table has never been built.
func (r *Registry) Snapshot(name string) (*Generation, error) {
	t, ok := r.lookup(name)
	if !ok {
		return nil, ErrUnknownTable
	}
	gen := t.current.Load()
	if gen == nil {
		return nil, ErrNoGeneration
	}
	return gen, nil
}

// Tables returns the registered table names, sorted.
func (r *Registry) Tables() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.tables))
	for name := range r.tables {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
