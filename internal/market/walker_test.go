package market

import (
	"context"
	"math/rand"
	"testing"
	"time"
)

func TestRandomDeltaBounds(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	for i := 0; i < 10_000; i++ {
		d := randomDelta(rng, 30_000)
		if d < -30_000 || d > 30_000 {
			t.Fatalf("delta %d out of range", d)
		}
	}
	if d := randomDelta(rng, 0); d != 0 {
		t.Fatalf("zero max change must yield zero delta, got %d", d)
	}
}

func TestRandomDeltaCoversBothSigns(t *testing.T) {
	rng := rand.New(rand.NewSource(2))
	var sawNeg, sawPos bool
	for i := 0; i < 10_000 && !(sawNeg && sawPos); i++ {
		d := randomDelta(rng, 100)
		sawNeg = sawNeg || d < 0
		sawPos = sawPos || d > 0
	}
	if !sawNeg || !sawPos {
		t.Fatalf("walk must move both directions (neg=%v pos=%v)", sawNeg, sawPos)
	}
}

func TestRandomIntervalBounds(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	min, max := 120*time.Second, 300*time.Second
	for i := 0; i < 1000; i++ {
		d := randomInterval(rng, min, max)
		if d < min || d > max {
			t.Fatalf("interval %v out of [%v, %v]", d, min, max)
		}
	}
	if d := randomInterval(rng, max, min); d != max {
		t.Fatalf("degenerate range must collapse to min, got %v", d)
	}
}

type recordingStepper struct {
	deltas  []int64
	initial int64
	next    int64
	wiped   bool
	err     error
}

func (r *recordingStepper) StepStockPrice(_ context.Context, delta, initialPrice int64) (int64, bool, error) {
	r.deltas = append(r.deltas, delta)
	r.initial = initialPrice
	return r.next, r.wiped, r.err
}

func TestStepOncePassesConfiguredReset(t *testing.T) {
	store := &recordingStepper{next: 100_000, wiped: true}
	w := NewWalker(store, Config{MaxChange: 30_000, InitialPrice: 100_000}, nil)
	if err := w.StepOnce(context.Background()); err != nil {
		t.Fatalf("step: %v", err)
	}
	if len(store.deltas) != 1 {
		t.Fatalf("expected one step, got %d", len(store.deltas))
	}
	if store.initial != 100_000 {
		t.Fatalf("reset price = %d, want 100000", store.initial)
	}
	if d := store.deltas[0]; d < -30_000 || d > 30_000 {
		t.Fatalf("delta %d out of configured range", d)
	}
}
