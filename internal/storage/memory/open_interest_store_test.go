package memory

import (
	"context"
	"testing"

	"funding-market-lab/internal/domain"
)

func TestOpenInterestStore_GetByTimeRange(t *testing.T) {
	store := NewOpenInterestStore()
	ctx := context.Background()

	points := []*domain.OpenInterestPoint{
		{Symbol: "BTCUSDT", TimestampMs: 1000, OpenInterest: 100_000},
		{Symbol: "BTCUSDT", TimestampMs: 2000, OpenInterest: 101_000},
		{Symbol: "BTCUSDT", TimestampMs: 3000, OpenInterest: 99_000},
		{Symbol: "ETHUSDT", TimestampMs: 2000, OpenInterest: 60_000},
	}

	if err := store.InsertBulk(ctx, points); err != nil {
		t.Fatalf("InsertBulk failed: %v", err)
	}

	result, err := store.GetByTimeRange(ctx, "BTCUSDT", 1000, 2000)
	if err != nil {
		t.Fatalf("GetByTimeRange failed: %v", err)
	}

	if len(result) != 2 {
		t.Fatalf("Expected 2 snapshots, got %d", len(result))
	}
	if result[0].TimestampMs != 1000 || result[1].TimestampMs != 2000 {
		t.Errorf("Results not ordered by timestamp: %d, %d",
			result[0].TimestampMs, result[1].TimestampMs)
	}
	if result[1].OpenInterest != 101_000 {
		t.Errorf("Expected OI 101000, got %f", result[1].OpenInterest)
	}
}

func TestOpenInterestStore_DuplicatesIgnored(t *testing.T) {
	store := NewOpenInterestStore()
	ctx := context.Background()

	first := []*domain.OpenInterestPoint{{Symbol: "BTCUSDT", TimestampMs: 1000, OpenInterest: 100_000}}
	if err := store.InsertBulk(ctx, first); err != nil {
		t.Fatalf("First insert failed: %v", err)
	}

	dup := []*domain.OpenInterestPoint{{Symbol: "BTCUSDT", TimestampMs: 1000, OpenInterest: 1}}
	if err := store.InsertBulk(ctx, dup); err != nil {
		t.Fatalf("Duplicate insert should succeed, got %v", err)
	}

	result, _ := store.GetByTimeRange(ctx, "BTCUSDT", 0, 5000)
	if len(result) != 1 || result[0].OpenInterest != 100_000 {
		t.Errorf("Expected single original snapshot, got %+v", result)
	}
}
