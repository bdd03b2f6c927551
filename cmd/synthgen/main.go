// Package main generates synthetic funding, open-interest and
// premium-index CSV files in the layout the loadcsv binary consumes.
// Funding fires every 8 hours; OI and premium snapshots every 5 minutes.
// An OI snapshot always lands exactly on each funding timestamp and gets
// boosted there so extreme-regime detection has data to work with.
package main

import (
	"encoding/csv"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"funding-market-lab/internal/domain"
)

const (
	fundingIntervalHours = 8
	snapshotIntervalMins = 5
	oiFloor              = 1_000.0
	oiCeiling            = 2_000_000.0
	premiumClamp         = 0.05
	defaultDurationDays  = 90
)

var baseOILevels = map[string]float64{
	"BTCUSDT": 100_000.0,
	"ETHUSDT": 60_000.0,
}

func main() {
	outputDir := flag.String("output-dir", "synthetic", "Directory for generated CSV files")
	symbols := flag.String("symbols", "BTCUSDT,ETHUSDT", "Comma-separated symbols")
	startMs := flag.Int64("start-ms", time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC).UnixMilli(), "Range start (epoch ms)")
	days := flag.Int64("days", defaultDurationDays, "Range length in days")
	seed := flag.Int64("seed", 42, "Random seed")

	flag.Parse()

	logger := log.New(os.Stdout, "[synthgen] ", log.LstdFlags)

	var symbolList []string
	for _, s := range strings.Split(*symbols, ",") {
		s = strings.ToUpper(strings.TrimSpace(s))
		if s != "" {
			symbolList = append(symbolList, s)
		}
	}
	if len(symbolList) == 0 {
		logger.Fatal("--symbols must name at least one symbol")
	}

	if err := os.MkdirAll(*outputDir, 0o755); err != nil {
		logger.Fatalf("Create output dir: %v", err)
	}

	endMs := *startMs + *days*domain.MillisPerDay
	rng := rand.New(rand.NewSource(*seed))

	logger.Printf("Generating synthetic data for %v over %d days into %s", symbolList, *days, *outputDir)

	funding := generateFunding(rng, symbolList, *startMs, endMs)
	if err := writeCSV(filepath.Join(*outputDir, "funding_synth.csv"),
		[]string{"symbol", "ts", "rate"}, funding); err != nil {
		logger.Fatalf("Write funding CSV: %v", err)
	}
	logger.Printf("Wrote funding_synth.csv (rows: %d)", len(funding))

	oi := generateOpenInterest(rng, symbolList, *startMs, endMs, funding)
	if err := writeCSV(filepath.Join(*outputDir, "open_interest_synth.csv"),
		[]string{"symbol", "ts", "oi"}, oi); err != nil {
		logger.Fatalf("Write open interest CSV: %v", err)
	}
	logger.Printf("Wrote open_interest_synth.csv (rows: %d)", len(oi))

	premium := generatePremiumIndex(rng, symbolList, *startMs, endMs)
	if err := writeCSV(filepath.Join(*outputDir, "premium_index_synth.csv"),
		[]string{"symbol", "ts", "open_val", "high_val", "low_val", "close_val"}, premium); err != nil {
		logger.Fatalf("Write premium index CSV: %v", err)
	}
	logger.Printf("Wrote premium_index_synth.csv (rows: %d)", len(premium))
}

// generateFunding emits one rate per symbol every 8 hours. Each symbol
// carries a fixed bias of up to 2 bps plus N(0, 1.5 bps) noise.
func generateFunding(rng *rand.Rand, symbols []string, startMs, endMs int64) [][]string {
	var rows [][]string
	for _, sym := range symbols {
		bias := uniform(rng, -0.00002, 0.00002)
		for ts := startMs; ts <= endMs; ts += fundingIntervalHours * domain.MillisPerHour {
			rate := bias + rng.NormFloat64()*0.00015
			rows = append(rows, []string{sym, formatTs(ts), formatFloat(rate)})
		}
	}
	return rows
}

// generateOpenInterest walks an OI level every 5 minutes and boosts the
// snapshots that coincide with funding timestamps by 5-20%.
func generateOpenInterest(rng *rand.Rand, symbols []string, startMs, endMs int64, funding [][]string) [][]string {
	fundingTs := make(map[string]map[string]bool)
	for _, row := range funding {
		sym, ts := row[0], row[1]
		if fundingTs[sym] == nil {
			fundingTs[sym] = make(map[string]bool)
		}
		fundingTs[sym][ts] = true
	}

	var rows [][]string
	for _, sym := range symbols {
		level, ok := baseOILevels[sym]
		if !ok {
			level = 50_000.0
		}
		for ts := startMs; ts <= endMs; ts += snapshotIntervalMins * domain.MillisPerMinute {
			level += rng.NormFloat64() * level * 0.0005
			if level < oiFloor {
				level = oiFloor
			}
			if level > oiCeiling {
				level = oiCeiling
			}

			oi := level
			tsField := formatTs(ts)
			if fundingTs[sym][tsField] {
				oi *= uniform(rng, 1.05, 1.20)
			}
			rows = append(rows, []string{sym, tsField, formatFloat(oi)})
		}
	}
	return rows
}

// generatePremiumIndex builds 5-minute OHLC bars around a slowly drifting
// level near zero, clamped to +/-5%.
func generatePremiumIndex(rng *rand.Rand, symbols []string, startMs, endMs int64) [][]string {
	var rows [][]string
	for _, sym := range symbols {
		level := uniform(rng, -0.005, 0.005)
		for ts := startMs; ts <= endMs; ts += snapshotIntervalMins * domain.MillisPerMinute {
			closeVal := level + rng.NormFloat64()*0.0005
			highVal := closeVal + abs(rng.NormFloat64()*0.0003)
			lowVal := closeVal - abs(rng.NormFloat64()*0.0003)
			openVal := (highVal + lowVal) / 2.0

			openVal = clamp(openVal)
			highVal = clamp(highVal)
			lowVal = clamp(lowVal)
			closeVal = clamp(closeVal)

			rows = append(rows, []string{
				sym, formatTs(ts),
				formatFloat(openVal), formatFloat(highVal),
				formatFloat(lowVal), formatFloat(closeVal),
			})

			level = closeVal
		}
	}
	return rows
}

func uniform(rng *rand.Rand, lo, hi float64) float64 {
	return lo + rng.Float64()*(hi-lo)
}

func abs(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}

func clamp(x float64) float64 {
	if x < -premiumClamp {
		return -premiumClamp
	}
	if x > premiumClamp {
		return premiumClamp
	}
	return x
}

func formatTs(ts int64) string {
	return strconv.FormatInt(ts, 10)
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

func writeCSV(path string, header []string, rows [][]string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	writer := csv.NewWriter(f)
	if err := writer.Write(header); err != nil {
		return err
	}
	for _, row := range rows {
		if err := writer.Write(row); err != nil {
			return err
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return fmt.Errorf("flush %s: %w", path, err)
	}
	return nil
}
