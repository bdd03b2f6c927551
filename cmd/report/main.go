// Package main generates a one-shot analytics report: Markdown summary
// plus decile and markout CSVs for a time range.
package main

import (
	"context"
	"flag"
	"fmt"
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"time"

	"funding-market-lab/internal/domain"
	"funding-market-lab/internal/engine"
	"funding-market-lab/internal/eventwindow"
	"funding-market-lab/internal/reporting"
	"funding-market-lab/internal/storage"
	"funding-market-lab/internal/storage/memory"
	"funding-market-lab/internal/storage/migrations"
	pgstore "funding-market-lab/internal/storage/postgres"
)

func main() {
	// Parse flags
	outputDir := flag.String("output-dir", "docs", "Output directory for generated files")
	postgresDSN := flag.String("postgres-dsn", os.Getenv("POSTGRES_DSN"), "PostgreSQL connection string")
	useFixtures := flag.Bool("use-fixtures", false, "Use in-memory fixture data instead of a database")
	startMs := flag.Int64("start-ms", 0, "Range start (epoch ms)")
	endMs := flag.Int64("end-ms", 0, "Range end (epoch ms)")
	flag.Parse()

	ctx := context.Background()

	if !*useFixtures && *postgresDSN == "" {
		fmt.Fprintln(os.Stderr, "Error: --postgres-dsn is required when not using fixtures")
		fmt.Fprintln(os.Stderr, "Use --use-fixtures to run with demo data instead")
		os.Exit(1)
	}

	var (
		prices  storage.PriceStore
		funding storage.FundingEventStore
		oi      storage.OpenInterestStore
	)

	if *useFixtures {
		prices, funding, oi = createFixtureStores(ctx)
		if *startMs == 0 && *endMs == 0 {
			*startMs = fixtureStartMs
			*endMs = fixtureStartMs + fixtureDays*domain.MillisPerDay
		}
	} else {
		pool, err := pgstore.NewPool(ctx, *postgresDSN)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error connecting to postgres: %v\n", err)
			os.Exit(1)
		}
		defer pool.Close()

		if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
			fmt.Fprintf(os.Stderr, "Error migrating postgres: %v\n", err)
			os.Exit(1)
		}

		prices = pgstore.NewPriceStore(pool)
		funding = pgstore.NewFundingEventStore(pool)
		oi = pgstore.NewOpenInterestStore(pool)
	}

	if *endMs <= *startMs {
		fmt.Fprintln(os.Stderr, "Error: --end-ms must be greater than --start-ms")
		os.Exit(1)
	}

	eng := engine.New(prices, funding, oi, nil)

	generator := reporting.NewGenerator(eng)
	if *useFixtures {
		// Fixed clock for reproducible fixture output
		fixedTime := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
		generator = generator.WithClock(func() time.Time { return fixedTime })
	}

	report, err := generator.Generate(ctx, *startMs, *endMs)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error generating report: %v\n", err)
		os.Exit(1)
	}

	markouts, err := eng.ComputeMarkouts(ctx, nil, *startMs, *endMs, eventwindow.DefaultHorizonMinutes)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error computing markouts: %v\n", err)
		os.Exit(1)
	}

	if err := os.MkdirAll(*outputDir, 0o755); err != nil {
		fmt.Fprintf(os.Stderr, "Error creating output dir: %v\n", err)
		os.Exit(1)
	}

	outputs := map[string]string{
		"REPORT.md":          reporting.RenderMarkdown(report),
		"RATE_DECILES.csv":   reporting.RenderDecilesCSV(report.Deciles),
		"EVENT_MARKOUTS.csv": reporting.RenderMarkoutsCSV(markouts),
	}
	for name, content := range outputs {
		path := filepath.Join(*outputDir, name)
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			fmt.Fprintf(os.Stderr, "Error writing %s: %v\n", path, err)
			os.Exit(1)
		}
	}

	fmt.Println("Report generated successfully:")
	fmt.Printf("  - %s/REPORT.md\n", *outputDir)
	fmt.Printf("  - %s/RATE_DECILES.csv\n", *outputDir)
	fmt.Printf("  - %s/EVENT_MARKOUTS.csv\n", *outputDir)
}

const (
	fixtureStartMs = int64(1_704_067_200_000) // 2024-01-01T00:00:00Z
	fixtureDays    = 30
)

// createFixtureStores seeds in-memory stores with a deterministic month of
// demo data: minute bars, 8-hourly funding and 5-minute OI snapshots for
// two symbols.
func createFixtureStores(ctx context.Context) (storage.PriceStore, storage.FundingEventStore, storage.OpenInterestStore) {
	prices := memory.NewPriceStore()
	funding := memory.NewFundingEventStore()
	oi := memory.NewOpenInterestStore()

	rng := rand.New(rand.NewSource(7))
	endMs := fixtureStartMs + fixtureDays*domain.MillisPerDay

	for i, sym := range []string{"BTCUSDT", "ETHUSDT"} {
		price := 100.0 * float64(i+1)
		var bars []*domain.PricePoint
		for ts := fixtureStartMs; ts < endMs; ts += domain.MillisPerMinute {
			price *= math.Exp(rng.NormFloat64() * 0.0004)
			bars = append(bars, &domain.PricePoint{
				Symbol:      sym,
				TimestampMs: ts,
				Open:        price,
				High:        price,
				Low:         price,
				Close:       price,
				Volume:      10 + rng.Float64()*5,
				TradeCount:  100,
			})
		}
		if err := prices.InsertBulk(ctx, bars); err != nil {
			fmt.Fprintf(os.Stderr, "Error seeding fixture prices: %v\n", err)
			os.Exit(1)
		}

		var events []*domain.FundingEvent
		var oiPoints []*domain.OpenInterestPoint
		level := 50_000.0 * float64(i+1)
		for ts := fixtureStartMs; ts < endMs; ts += 5 * domain.MillisPerMinute {
			level += rng.NormFloat64() * level * 0.0005
			oiPoint := &domain.OpenInterestPoint{Symbol: sym, TimestampMs: ts, OpenInterest: level}
			if (ts-fixtureStartMs)%(8*domain.MillisPerHour) == 0 {
				oiPoint.OpenInterest *= 1.1
				events = append(events, &domain.FundingEvent{
					Symbol:      sym,
					TimestampMs: ts,
					Rate:        rng.NormFloat64() * 0.00015,
				})
			}
			oiPoints = append(oiPoints, oiPoint)
		}
		if err := funding.InsertBulk(ctx, events); err != nil {
			fmt.Fprintf(os.Stderr, "Error seeding fixture funding: %v\n", err)
			os.Exit(1)
		}
		if err := oi.InsertBulk(ctx, oiPoints); err != nil {
			fmt.Fprintf(os.Stderr, "Error seeding fixture open interest: %v\n", err)
			os.Exit(1)
		}
	}

	return prices, funding, oi
}
