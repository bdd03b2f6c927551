package percentile

import (
	"math"
	"math/rand/v2"
	"sort"
	"testing"

	"funding-market-lab/internal/domain"
)

func TestContinuous_Interpolation(t *testing.T) {
	sorted := []float64{10, 20, 30, 40}

	// rank = 0.5 * 3 = 1.5 → halfway between 20 and 30
	if got := Continuous(sorted, 0.5); got != 25 {
		t.Errorf("expected median 25, got %f", got)
	}
	// rank = 0.9 * 3 = 2.7 → 30 + 0.7*10
	if got := Continuous(sorted, 0.9); math.Abs(got-37) > 1e-12 {
		t.Errorf("expected p90 37, got %f", got)
	}
	if got := Continuous(sorted, 0); got != 10 {
		t.Errorf("expected min at p=0, got %f", got)
	}
	if got := Continuous(sorted, 1); got != 40 {
		t.Errorf("expected max at p=1, got %f", got)
	}
	if got := Continuous([]float64{7}, 0.9); got != 7 {
		t.Errorf("expected single value, got %f", got)
	}
}

func TestWindow_OrderStatistics(t *testing.T) {
	w := NewWindow()
	for _, v := range []float64{5, 1, 3, 3, 2} {
		w.Insert(v)
	}

	if w.Len() != 5 {
		t.Fatalf("expected len 5, got %d", w.Len())
	}

	want := []float64{1, 2, 3, 3, 5}
	for k, v := range want {
		if got := w.Kth(k); got != v {
			t.Errorf("Kth(%d): expected %f, got %f", k, v, got)
		}
	}

	if !w.Remove(3) {
		t.Fatal("expected to remove one occurrence of 3")
	}
	if w.Len() != 4 {
		t.Fatalf("expected len 4 after remove, got %d", w.Len())
	}
	if got := w.Kth(2); got != 3 {
		t.Errorf("expected remaining duplicate 3 at rank 2, got %f", got)
	}
	if w.Remove(99) {
		t.Error("expected Remove of absent value to report false")
	}
}

func TestWindow_QuantileMatchesContinuous(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 2))
	w := NewWindow()
	var values []float64

	for i := 0; i < 500; i++ {
		v := rng.Float64() * 1000
		w.Insert(v)
		values = append(values, v)

		// Evict from the front half of the history now and then.
		if i%7 == 0 && len(values) > 10 {
			victim := values[0]
			values = values[1:]
			if !w.Remove(victim) {
				t.Fatalf("step %d: failed to remove %f", i, victim)
			}
		}

		sorted := append([]float64(nil), values...)
		sort.Float64s(sorted)
		for _, p := range []float64{0, 0.25, 0.5, 0.9, 1} {
			want := Continuous(sorted, p)
			got := w.Quantile(p)
			if math.Abs(got-want) > 1e-9 {
				t.Fatalf("step %d p=%v: expected %f, got %f", i, p, want, got)
			}
		}
	}
}

func TestRollingP90_TrailingWindowEviction(t *testing.T) {
	day := domain.MillisPerDay
	points := []*domain.OpenInterestPoint{
		{Symbol: "BTCUSDT", TimestampMs: 0 * day, OpenInterest: 100},
		{Symbol: "BTCUSDT", TimestampMs: 1 * day, OpenInterest: 200},
		{Symbol: "BTCUSDT", TimestampMs: 2 * day, OpenInterest: 300},
		// 17 days later: everything before 3*day falls out of a 14-day window.
		{Symbol: "BTCUSDT", TimestampMs: 17 * day, OpenInterest: 50},
	}

	out := RollingP90(points, 14)

	if len(out) != 4 {
		t.Fatalf("expected 4 points, got %d", len(out))
	}

	// First point: window is just itself.
	if out[0].P90 != 100 {
		t.Errorf("expected p90 100 for first point, got %f", out[0].P90)
	}
	// Third point: window {100,200,300}, rank 0.9*2=1.8 → 280.
	if math.Abs(out[2].P90-280) > 1e-9 {
		t.Errorf("expected p90 280, got %f", out[2].P90)
	}
	// Last point: prior snapshots evicted, window is {50}.
	if out[3].P90 != 50 {
		t.Errorf("expected p90 50 after eviction, got %f", out[3].P90)
	}
}

func TestRollingP90_InclusiveWindowBound(t *testing.T) {
	day := domain.MillisPerDay
	points := []*domain.OpenInterestPoint{
		{Symbol: "ETHUSDT", TimestampMs: 0, OpenInterest: 100},
		// Exactly 14 days later: the first snapshot is still inside the window.
		{Symbol: "ETHUSDT", TimestampMs: 14 * day, OpenInterest: 200},
	}

	out := RollingP90(points, 14)

	// Window {100,200}, rank 0.9 → 190.
	if math.Abs(out[1].P90-190) > 1e-9 {
		t.Errorf("expected p90 190 with inclusive bound, got %f", out[1].P90)
	}
}
