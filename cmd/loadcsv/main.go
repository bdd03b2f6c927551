// Package main loads source CSV files into PostgreSQL: Binance-format
// kline dumps plus funding, open-interest and premium-index series.
// Loading is idempotent; rows whose key already exists are ignored.
package main

import (
	"archive/zip"
	"context"
	"encoding/csv"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"funding-market-lab/internal/domain"
	"funding-market-lab/internal/observability"
	"funding-market-lab/internal/storage"
	"funding-market-lab/internal/storage/migrations"
	pgstore "funding-market-lab/internal/storage/postgres"
)

const batchSize = 2000

func main() {
	postgresDSN := flag.String("postgres-dsn", os.Getenv("POSTGRES_DSN"), "PostgreSQL connection string")
	symbols := flag.String("symbols", "BTCUSDT,ETHUSDT", "Comma-separated symbols to load")
	klinesDir := flag.String("klines-dir", "", "Directory of SYMBOL-*.csv or SYMBOL-*.zip kline files (Binance column layout)")
	fundingCSV := flag.String("funding-csv", "", "Funding CSV (headers: symbol,ts,rate)")
	oiCSV := flag.String("oi-csv", "", "Open interest CSV (headers: symbol,ts,oi)")
	premiumCSV := flag.String("premium-csv", "", "Premium index CSV (headers: symbol,ts,open_val,high_val,low_val,close_val)")

	flag.Parse()

	logger := log.New(os.Stdout, "[loadcsv] ", log.LstdFlags)

	if *postgresDSN == "" {
		logger.Fatal("--postgres-dsn is required")
	}

	ctx := context.Background()

	pool, err := pgstore.NewPool(ctx, *postgresDSN)
	if err != nil {
		logger.Fatalf("Connect to postgres: %v", err)
	}
	defer pool.Close()

	if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
		logger.Fatalf("Migrate postgres: %v", err)
	}

	symbolList := splitSymbols(*symbols)
	if err := loadSymbols(ctx, pgstore.NewSymbolStore(pool), symbolList, logger); err != nil {
		logger.Fatalf("Load symbols: %v", err)
	}

	if *klinesDir != "" {
		if err := loadKlines(ctx, pgstore.NewPriceStore(pool), *klinesDir, symbolList, logger); err != nil {
			logger.Fatalf("Load klines: %v", err)
		}
	}
	if *fundingCSV != "" {
		if err := loadFunding(ctx, pgstore.NewFundingEventStore(pool), *fundingCSV, logger); err != nil {
			logger.Fatalf("Load funding: %v", err)
		}
	}
	if *oiCSV != "" {
		if err := loadOpenInterest(ctx, pgstore.NewOpenInterestStore(pool), *oiCSV, logger); err != nil {
			logger.Fatalf("Load open interest: %v", err)
		}
	}
	if *premiumCSV != "" {
		if err := loadPremiumIndex(ctx, pgstore.NewPremiumIndexStore(pool), *premiumCSV, logger); err != nil {
			logger.Fatalf("Load premium index: %v", err)
		}
	}

	logger.Println("Done")
}

func splitSymbols(value string) []string {
	var list []string
	for _, s := range strings.Split(value, ",") {
		s = strings.ToUpper(strings.TrimSpace(s))
		if s != "" {
			list = append(list, s)
		}
	}
	return list
}

func loadSymbols(ctx context.Context, store storage.SymbolStore, symbols []string, logger *log.Logger) error {
	for _, sym := range symbols {
		info := &domain.SymbolInfo{Symbol: sym}
		if strings.HasSuffix(sym, "USDT") {
			info.BaseAsset = strings.TrimSuffix(sym, "USDT")
			info.QuoteAsset = "USDT"
		}
		if err := store.Insert(ctx, info); err != nil {
			return err
		}
	}
	logger.Printf("Inserted/kept %d symbols: %v", len(symbols), symbols)
	return nil
}

// loadKlines reads every SYMBOL-*.csv or SYMBOL-*.zip in dir whose symbol
// prefix is in the requested list. Binance layout: open time (ms), open,
// high, low, close, volume at index 5 and trade count at index 8. Malformed
// rows and rows with negative volume or trade count are skipped, not fatal.
func loadKlines(ctx context.Context, store storage.PriceStore, dir string, symbols []string, logger *log.Logger) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("read klines dir: %w", err)
	}

	wanted := make(map[string]bool, len(symbols))
	for _, s := range symbols {
		wanted[s] = true
	}

	totalGood, totalBad := 0, 0
	for _, entry := range entries {
		name := entry.Name()
		isZip := strings.HasSuffix(name, ".zip")
		if entry.IsDir() || (!isZip && !strings.HasSuffix(name, ".csv")) {
			continue
		}
		symbol := strings.ToUpper(strings.SplitN(name, "-", 2)[0])
		if !wanted[symbol] {
			logger.Printf("Skipping %s (symbol %s not in our list)", name, symbol)
			continue
		}

		var good, bad int
		if isZip {
			good, bad, err = loadKlineZip(ctx, store, filepath.Join(dir, name), symbol)
		} else {
			good, bad, err = loadKlineFile(ctx, store, filepath.Join(dir, name), symbol)
		}
		if err != nil {
			return fmt.Errorf("load %s: %w", name, err)
		}
		logger.Printf("Finished %s (good rows: %d, skipped rows: %d)", name, good, bad)
		totalGood += good
		totalBad += bad
	}

	observability.RecordRowsLoaded("klines", totalGood)
	observability.RecordRowsSkipped("klines", totalBad)
	logger.Printf("Klines completed. Total good rows: %d, total skipped rows: %d", totalGood, totalBad)
	return nil
}

func loadKlineFile(ctx context.Context, store storage.PriceStore, path, symbol string) (good, bad int, err error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, 0, err
	}
	defer f.Close()

	return loadKlineRows(ctx, store, f, symbol)
}

// loadKlineZip reads the CSV entries inside a Binance kline archive.
func loadKlineZip(ctx context.Context, store storage.PriceStore, path, symbol string) (good, bad int, err error) {
	archive, err := zip.OpenReader(path)
	if err != nil {
		return 0, 0, err
	}
	defer archive.Close()

	for _, entry := range archive.File {
		if !strings.HasSuffix(entry.Name, ".csv") {
			continue
		}
		rc, openErr := entry.Open()
		if openErr != nil {
			return good, bad, fmt.Errorf("open %s in archive: %w", entry.Name, openErr)
		}
		g, b, loadErr := loadKlineRows(ctx, store, rc, symbol)
		rc.Close()
		good += g
		bad += b
		if loadErr != nil {
			return good, bad, loadErr
		}
	}
	return good, bad, nil
}

func loadKlineRows(ctx context.Context, store storage.PriceStore, f io.Reader, symbol string) (good, bad int, err error) {
	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1

	var batch []*domain.PricePoint
	first := true
	for {
		row, readErr := reader.Read()
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			bad++
			continue
		}
		if first {
			first = false
			if len(row) > 0 && strings.Contains(strings.ToLower(row[0]), "open") {
				continue // header
			}
		}
		if len(row) < 9 {
			bad++
			continue
		}

		ts, tsErr := strconv.ParseInt(strings.TrimSpace(row[0]), 10, 64)
		open, e1 := strconv.ParseFloat(row[1], 64)
		high, e2 := strconv.ParseFloat(row[2], 64)
		low, e3 := strconv.ParseFloat(row[3], 64)
		closeP, e4 := strconv.ParseFloat(row[4], 64)
		volume, e5 := strconv.ParseFloat(row[5], 64)
		trades, e6 := strconv.Atoi(strings.TrimSpace(row[8]))

		if tsErr != nil || e1 != nil || e2 != nil || e3 != nil || e4 != nil || e5 != nil || e6 != nil {
			bad++
			continue
		}
		if volume < 0 || trades < 0 {
			bad++
			continue
		}

		batch = append(batch, &domain.PricePoint{
			Symbol:      symbol,
			TimestampMs: ts,
			Open:        open,
			High:        high,
			Low:         low,
			Close:       closeP,
			Volume:      volume,
			TradeCount:  trades,
		})
		good++

		if len(batch) >= batchSize {
			if err := store.InsertBulk(ctx, batch); err != nil {
				return good, bad, err
			}
			batch = batch[:0]
		}
	}
	if len(batch) > 0 {
		if err := store.InsertBulk(ctx, batch); err != nil {
			return good, bad, err
		}
	}
	return good, bad, nil
}

// readHeaderedCSV parses a CSV with a header row and calls parse for each
// record keyed by column name. parse returns false to skip a malformed row.
func readHeaderedCSV(path string, parse func(row map[string]string) bool) (good, bad int, err error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, 0, err
	}
	defer f.Close()

	reader := csv.NewReader(f)
	header, err := reader.Read()
	if err != nil {
		return 0, 0, fmt.Errorf("read header: %w", err)
	}
	for i := range header {
		header[i] = strings.TrimSpace(header[i])
	}

	for {
		record, readErr := reader.Read()
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			bad++
			continue
		}

		row := make(map[string]string, len(header))
		for i, col := range header {
			if i < len(record) {
				row[col] = strings.TrimSpace(record[i])
			}
		}
		if parse(row) {
			good++
		} else {
			bad++
		}
	}
	return good, bad, nil
}

func loadFunding(ctx context.Context, store storage.FundingEventStore, path string, logger *log.Logger) error {
	logger.Printf("Loading funding from: %s", path)

	var batch []*domain.FundingEvent
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		err := store.InsertBulk(ctx, batch)
		batch = batch[:0]
		return err
	}

	var flushErr error
	good, bad, err := readHeaderedCSV(path, func(row map[string]string) bool {
		sym := strings.ToUpper(row["symbol"])
		ts, tsErr := strconv.ParseInt(row["ts"], 10, 64)
		rate, rateErr := strconv.ParseFloat(row["rate"], 64)
		if sym == "" || tsErr != nil || rateErr != nil {
			return false
		}
		batch = append(batch, &domain.FundingEvent{Symbol: sym, TimestampMs: ts, Rate: rate})
		if len(batch) >= batchSize {
			if err := flush(); err != nil && flushErr == nil {
				flushErr = err
			}
		}
		return true
	})
	if err != nil {
		return err
	}
	if flushErr != nil {
		return flushErr
	}
	if err := flush(); err != nil {
		return err
	}

	observability.RecordRowsLoaded("funding", good)
	observability.RecordRowsSkipped("funding", bad)
	logger.Printf("Funding finished. Good rows: %d, skipped rows: %d", good, bad)
	return nil
}

func loadOpenInterest(ctx context.Context, store storage.OpenInterestStore, path string, logger *log.Logger) error {
	logger.Printf("Loading open interest from: %s", path)

	var batch []*domain.OpenInterestPoint
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		err := store.InsertBulk(ctx, batch)
		batch = batch[:0]
		return err
	}

	var flushErr error
	good, bad, err := readHeaderedCSV(path, func(row map[string]string) bool {
		sym := strings.ToUpper(row["symbol"])
		ts, tsErr := strconv.ParseInt(row["ts"], 10, 64)
		oi, oiErr := strconv.ParseFloat(row["oi"], 64)
		if sym == "" || tsErr != nil || oiErr != nil {
			return false
		}
		batch = append(batch, &domain.OpenInterestPoint{Symbol: sym, TimestampMs: ts, OpenInterest: oi})
		if len(batch) >= batchSize {
			if err := flush(); err != nil && flushErr == nil {
				flushErr = err
			}
		}
		return true
	})
	if err != nil {
		return err
	}
	if flushErr != nil {
		return flushErr
	}
	if err := flush(); err != nil {
		return err
	}

	observability.RecordRowsLoaded("open_interest", good)
	observability.RecordRowsSkipped("open_interest", bad)
	logger.Printf("Open interest finished. Good rows: %d, skipped rows: %d", good, bad)
	return nil
}

func loadPremiumIndex(ctx context.Context, store storage.PremiumIndexStore, path string, logger *log.Logger) error {
	logger.Printf("Loading premium index from: %s", path)

	var batch []*domain.PremiumIndexPoint
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		err := store.InsertBulk(ctx, batch)
		batch = batch[:0]
		return err
	}

	var flushErr error
	good, bad, err := readHeaderedCSV(path, func(row map[string]string) bool {
		sym := strings.ToUpper(row["symbol"])
		ts, tsErr := strconv.ParseInt(row["ts"], 10, 64)
		open, e1 := strconv.ParseFloat(row["open_val"], 64)
		high, e2 := strconv.ParseFloat(row["high_val"], 64)
		low, e3 := strconv.ParseFloat(row["low_val"], 64)
		closeV, e4 := strconv.ParseFloat(row["close_val"], 64)
		if sym == "" || tsErr != nil || e1 != nil || e2 != nil || e3 != nil || e4 != nil {
			return false
		}
		batch = append(batch, &domain.PremiumIndexPoint{
			Symbol: sym, TimestampMs: ts,
			Open: open, High: high, Low: low, Close: closeV,
		})
		if len(batch) >= batchSize {
			if err := flush(); err != nil && flushErr == nil {
				flushErr = err
			}
		}
		return true
	})
	if err != nil {
		return err
	}
	if flushErr != nil {
		return flushErr
	}
	if err := flush(); err != nil {
		return err
	}

	observability.RecordRowsLoaded("premium_index", good)
	observability.RecordRowsSkipped("premium_index", bad)
	logger.Printf("Premium index finished. Good rows: %d, skipped rows: %d", good, bad)
	return nil
}
