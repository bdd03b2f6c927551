// Package main provides the analytics daemon: it serves Prometheus metrics
// and periodically rebuilds the materialized analytics tables, persisting
// the minute-return and event-markout generations to ClickHouse.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"funding-market-lab/internal/domain"
	"funding-market-lab/internal/engine"
	"funding-market-lab/internal/materialize"
	"funding-market-lab/internal/observability"
	"funding-market-lab/internal/storage"
	chstore "funding-market-lab/internal/storage/clickhouse"
	"funding-market-lab/internal/storage/memory"
	"funding-market-lab/internal/storage/migrations"
	pgstore "funding-market-lab/internal/storage/postgres"
)

// Server holds the daemon's components.
type Server struct {
	engine          *engine.Engine
	returnStore     storage.ReturnStore
	markoutStore    storage.MarkoutStore
	tables          []string
	rebuildInterval time.Duration
	logger          *log.Logger

	mu          sync.Mutex
	lastRebuild time.Time
	rebuildRuns int
	lastGenByID map[string]uint64
}

func main() {
	// Load .env file if exists
	loadEnvFile()

	// Parse flags (env vars as defaults)
	postgresDSN := flag.String("postgres-dsn", os.Getenv("POSTGRES_DSN"), "PostgreSQL connection string")
	clickhouseDSN := flag.String("clickhouse-dsn", os.Getenv("CLICKHOUSE_DSN"), "ClickHouse connection string")
	useMemory := flag.Bool("use-memory", false, "Use in-memory storage instead of PostgreSQL")
	rebuildInterval := flag.Duration("rebuild-interval", 1*time.Hour, "Materialized table rebuild interval")
	tables := flag.String("tables", "", "Comma-separated materialized tables to rebuild (default all)")
	metricsAddr := flag.String("metrics-addr", ":9090", "Prometheus metrics HTTP address")

	flag.Parse()

	logger := log.New(os.Stdout, "[server] ", log.LstdFlags|log.Lshortfile)

	if !*useMemory && *postgresDSN == "" {
		logger.Fatal("--postgres-dsn is required (use --use-memory for in-memory storage)")
	}

	ctx, cancel := context.WithCancel(context.Background())

	stores, cleanup, err := createStores(ctx, *postgresDSN, *clickhouseDSN, *useMemory)
	if err != nil {
		logger.Fatalf("Failed to create stores: %v", err)
	}
	defer cleanup()

	eng := engine.New(stores.prices, stores.funding, stores.oi, logger)

	server := &Server{
		engine:          eng,
		returnStore:     stores.returns,
		markoutStore:    stores.markouts,
		tables:          resolveTables(*tables, eng),
		rebuildInterval: *rebuildInterval,
		logger:          logger,
		lastGenByID:     make(map[string]uint64),
	}

	done := make(chan error, 1)

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		logger.Printf("Received signal %v, initiating graceful shutdown...", sig)
		cancel()

		select {
		case sig := <-sigCh:
			logger.Printf("Received second signal %v, forcing immediate shutdown", sig)
			os.Exit(1)
		case <-time.After(30 * time.Second):
			logger.Println("Graceful shutdown timed out after 30s, forcing exit")
			os.Exit(1)
		case <-done:
			// Normal shutdown completed
		}
	}()

	go server.startHTTPServer(*metricsAddr)

	err = server.Run(ctx)
	done <- err
	cancel()

	if err != nil && err != context.Canceled {
		logger.Fatalf("Server error: %v", err)
	}

	logger.Println("Shutdown complete")
}

// resolveTables parses the --tables flag against the registered tables.
func resolveTables(flagValue string, eng *engine.Engine) []string {
	if flagValue == "" {
		return eng.Tables()
	}

	registered := make(map[string]bool)
	for _, name := range eng.Tables() {
		registered[name] = true
	}

	var list []string
	for _, name := range strings.Split(flagValue, ",") {
		name = strings.TrimSpace(name)
		if name != "" && registered[name] {
			list = append(list, name)
		}
	}
	return list
}

// serverStores holds the storage implementations the daemon needs.
type serverStores struct {
	prices   storage.PriceStore
	funding  storage.FundingEventStore
	oi       storage.OpenInterestStore
	returns  storage.ReturnStore
	markouts storage.MarkoutStore
}

// createStores creates all required stores. The ClickHouse-backed derived
// stores are optional: without a ClickHouse DSN generations stay in memory
// only.
func createStores(ctx context.Context, postgresDSN, clickhouseDSN string, useMemory bool) (*serverStores, func(), error) {
	if useMemory {
		stores := &serverStores{
			prices:  memory.NewPriceStore(),
			funding: memory.NewFundingEventStore(),
			oi:      memory.NewOpenInterestStore(),
		}
		return stores, func() {}, nil
	}

	pool, err := pgstore.NewPool(ctx, postgresDSN)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to postgres: %w", err)
	}
	if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("migrate postgres: %w", err)
	}

	stores := &serverStores{
		prices:  pgstore.NewPriceStore(pool),
		funding: pgstore.NewFundingEventStore(pool),
		oi:      pgstore.NewOpenInterestStore(pool),
	}
	cleanup := func() { pool.Close() }

	if clickhouseDSN != "" {
		chConn, err := migrations.RunClickhouseMigrations(ctx, clickhouseDSN)
		if err != nil {
			pool.Close()
			return nil, nil, fmt.Errorf("migrate clickhouse: %w", err)
		}
		stores.returns = chstore.NewReturnStore(chConn)
		stores.markouts = chstore.NewMarkoutStore(chConn)
		cleanup = func() {
			chConn.Close()
			pool.Close()
		}
	}

	return stores, cleanup, nil
}

// Run rebuilds all configured tables immediately and then on every tick.
func (s *Server) Run(ctx context.Context) error {
	s.logger.Printf("Starting rebuild loop for tables %v every %s", s.tables, s.rebuildInterval)

	if err := s.rebuildAll(ctx); err != nil {
		return err
	}

	ticker := time.NewTicker(s.rebuildInterval)
	defer ticker.Stop()

	uptime := time.NewTicker(time.Minute)
	defer uptime.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-uptime.C:
			observability.DefaultMetrics.UptimeSeconds.Add(60)
		case <-ticker.C:
			if err := s.rebuildAll(ctx); err != nil {
				return err
			}
		}
	}
}

// rebuildAll rebuilds each configured table once and persists the
// ClickHouse-backed generations. Per-table failures are logged and do not
// stop the loop; the prior generation stays authoritative.
func (s *Server) rebuildAll(ctx context.Context) error {
	for _, table := range s.tables {
		if err := ctx.Err(); err != nil {
			return err
		}

		id, err := s.engine.Rebuild(ctx, table)
		if err != nil {
			continue // already logged and counted by the engine
		}

		s.mu.Lock()
		s.lastGenByID[table] = id
		s.lastRebuild = time.Now()
		s.rebuildRuns++
		s.mu.Unlock()

		if err := s.persist(ctx, table, id); err != nil {
			s.logger.Printf("persist %s generation %d: %v", table, id, err)
		}
	}
	return nil
}

// persist writes the freshly built generation to its ClickHouse table.
func (s *Server) persist(ctx context.Context, table string, generation uint64) error {
	gen, err := s.engine.Snapshot(table)
	if err != nil {
		return err
	}

	switch table {
	case materialize.TableMinuteReturns:
		if s.returnStore == nil {
			return nil
		}
		bySymbol, ok := gen.Rows.(map[string][]*domain.ReturnPoint)
		if !ok {
			return fmt.Errorf("unexpected row type %T", gen.Rows)
		}
		var points []*domain.ReturnPoint
		for _, symPoints := range bySymbol {
			points = append(points, symPoints...)
		}
		return s.returnStore.InsertGeneration(ctx, generation, points)

	case materialize.TableEventMarkouts:
		if s.markoutStore == nil {
			return nil
		}
		records, ok := gen.Rows.([]*domain.MarkoutRecord)
		if !ok {
			return fmt.Errorf("unexpected row type %T", gen.Rows)
		}
		return s.markoutStore.InsertGeneration(ctx, generation, records)
	}

	return nil
}

// startHTTPServer starts the HTTP server for health/metrics/status.
func (s *Server) startHTTPServer(addr string) {
	mux := http.NewServeMux()

	// Health check
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	// Prometheus metrics
	mux.Handle("/metrics", observability.Handler())

	// Status endpoint
	mux.HandleFunc("/status", s.handleStatus)

	s.logger.Printf("Starting HTTP server on %s", addr)
	if err := http.ListenAndServe(addr, mux); err != nil && err != http.ErrServerClosed {
		s.logger.Printf("HTTP server error: %v", err)
	}
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	status := struct {
		Tables      []string          `json:"tables"`
		Generations map[string]uint64 `json:"generations"`
		LastRebuild time.Time         `json:"last_rebuild"`
		RebuildRuns int               `json:"rebuild_runs"`
	}{
		Tables:      s.tables,
		Generations: make(map[string]uint64, len(s.lastGenByID)),
		LastRebuild: s.lastRebuild,
		RebuildRuns: s.rebuildRuns,
	}
	for table, id := range s.lastGenByID {
		status.Generations[table] = id
	}
	s.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(status)
}

// loadEnvFile loads .env from the working directory without overriding
// existing environment variables.
func loadEnvFile() {
	data, err := os.ReadFile(".env")
	if err != nil {
		return // File doesn't exist, use system env vars
	}

	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			continue
		}

		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])

		if os.Getenv(key) == "" {
			os.Setenv(key, value)
		}
	}
}
