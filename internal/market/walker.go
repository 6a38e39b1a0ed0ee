// Package market runs the price walk for the dynamic instrument. One
// walker process owns all market-state writes; everything else only reads
// the price.
package market

import (
	"context"
	"log/slog"
	"math/rand"
	"time"
)

// Stepper is the ledger surface the walker drives.
type Stepper interface {
	StepStockPrice(ctx context.Context, delta, initialPrice int64) (next int64, wiped bool, err error)
}

type Config struct {
	// MinInterval and MaxInterval bound the random pause between steps.
	MinInterval time.Duration
	MaxInterval time.Duration
	// MaxChange bounds the per-step delta, drawn uniformly from
	// [-MaxChange, +MaxChange].
	MaxChange int64
	// InitialPrice is what the price resets to after a wipe event.
	InitialPrice int64
}

type Walker struct {
	store Stepper
	cfg   Config
	rng   *rand.Rand
	log   *slog.Logger
}

func NewWalker(store Stepper, cfg Config, logger *slog.Logger) *Walker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Walker{
		store: store,
		cfg:   cfg,
		rng:   rand.New(rand.NewSource(time.Now().UnixNano())),
		log:   logger,
	}
}

// Run steps the price until ctx is cancelled. The pause before each step
// is drawn fresh, so ticks are irregular on purpose.
func (w *Walker) Run(ctx context.Context) error {
	w.log.Info("price walker started",
		"min_interval", w.cfg.MinInterval.String(),
		"max_interval", w.cfg.MaxInterval.String(),
		"max_change", w.cfg.MaxChange)
	for {
		pause := randomInterval(w.rng, w.cfg.MinInterval, w.cfg.MaxInterval)
		t := time.NewTimer(pause)
		select {
		case <-ctx.Done():
			t.Stop()
			w.log.Info("price walker shutdown")
			return ctx.Err()
		case <-t.C:
		}
		if err := w.StepOnce(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			w.log.Error("price step failed", "err", err)
		}
	}
}

// StepOnce applies a single price step, used by the loop and by the
// worker's run-once mode.
func (w *Walker) StepOnce(ctx context.Context) error {
	delta := randomDelta(w.rng, w.cfg.MaxChange)
	next, wiped, err := w.store.StepStockPrice(ctx, delta, w.cfg.InitialPrice)
	if err != nil {
		return err
	}
	if wiped {
		w.log.Warn("price hit zero, holdings wiped", "reset_price", next)
	} else {
		w.log.Info("price step", "delta", delta, "price", next)
	}
	return nil
}

// randomInterval draws uniformly from [min, max]. A degenerate range
// collapses to min.
func randomInterval(rng *rand.Rand, min, max time.Duration) time.Duration {
	if max <= min {
		return min
	}
	return min + time.Duration(rng.Int63n(int64(max-min)+1))
}

// randomDelta draws uniformly from [-maxChange, +maxChange].
func randomDelta(rng *rand.Rand, maxChange int64) int64 {
	if maxChange <= 0 {
		return 0
	}
	return rng.Int63n(2*maxChange+1) - maxChange
}
