// Package schedule repeats a tick on a randomized interval.
package schedule

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"os"
	"time"
)

// Delay draws a duration uniformly from [lo, hi). When hi <= lo it returns lo.
func Delay(rng *rand.Rand, lo, hi time.Duration) time.Duration {
	if hi <= lo {
		return lo
	}
	return lo + time.Duration(rng.Int64N(int64(hi-lo)))
}

// Loop runs Tick once, or forever with a fresh random pause between ticks.
// A tick starts only after the previous one returned, so ticks never overlap.
// The first tick runs immediately; the pause only separates ticks.
type Loop struct {
	Tick    func(ctx context.Context) error
	Min     time.Duration
	Max     time.Duration
	RunOnce bool
	Logger  *slog.Logger
	Rand    *rand.Rand
	// Sleep waits for d or until ctx is done. Tests replace it.
	Sleep func(ctx context.Context, d time.Duration) error
}

// Run executes the loop. In run-once mode the tick error is returned. In
// interval mode tick errors are logged and Run only returns once ctx is done.
func (l *Loop) Run(ctx context.Context) error {
	if l.Tick == nil {
		return errors.New("schedule: nil tick")
	}
	logger := l.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(os.Stderr, nil))
	}
	if l.RunOnce {
		return l.Tick(ctx)
	}

	rng := l.Rand
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	sleep := l.Sleep
	if sleep == nil {
		sleep = sleepContext
	}

	for n := 1; ; n++ {
		if err := l.Tick(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			logger.ErrorContext(ctx, "tick failed", slog.Int("tick", n), slog.Any("error", err))
		}
		d := Delay(rng, l.Min, l.Max)
		logger.InfoContext(ctx, "next tick scheduled", slog.Int("tick", n+1), slog.Duration("in", d))
		if err := sleep(ctx, d); err != nil {
			return err
		}
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return fmt.Errorf("schedule stopped: %w", ctx.Err())
	case <-t.C:
		return nil
	}
}
