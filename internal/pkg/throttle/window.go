// Package throttle limits how many events a bulk operation may emit within a
// rolling time window. Time is read through Clock so callers and tests can
// substitute a simulated clock for real sleeps.
package throttle

import (
	"context"
	"sync"
	"time"

	"routeopt/internal/pkg/errs"
)

type Clock interface {
	Now() time.Time
	Sleep(ctx context.Context, d time.Duration) error
}

type systemClock struct{}

// SystemClock returns a Clock backed by time.Now and a context-aware timer.
func SystemClock() Clock {
	return systemClock{}
}

func (systemClock) Now() time.Time {
	return time.Now()
}

func (systemClock) Sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

type stamp struct {
	at    time.Time
	count int
}

// Window admits at most limit events per period.
type Window struct {
	mu     sync.Mutex
	limit  int
	period time.Duration
	clock  Clock
	stamps []stamp
}

func NewWindow(limit int, period time.Duration, clock Clock) (*Window, error) {
	if limit <= 0 {
		return nil, errs.NewValueIsOutOfRangeError("limit", limit, 1, "unbounded")
	}
	if period <= 0 {
		return nil, errs.NewValueIsInvalidError("period")
	}
	if clock == nil {
		clock = SystemClock()
	}
	return &Window{
		limit:  limit,
		period: period,
		clock:  clock,
	}, nil
}

func (w *Window) Limit() int {
	return w.limit
}

// Acquire blocks until n more events fit into the window and records them.
// A batch larger than the limit can never fit and is rejected.
func (w *Window) Acquire(ctx context.Context, n int) error {
	if n <= 0 {
		return nil
	}
	if n > w.limit {
		return errs.NewValueIsOutOfRangeError("events", n, 1, w.limit)
	}

	for {
		wait := w.tryReserve(n)
		if wait == 0 {
			return nil
		}
		if err := w.clock.Sleep(ctx, wait); err != nil {
			return err
		}
	}
}

func (w *Window) tryReserve(n int) time.Duration {
	w.mu.Lock()
	defer w.mu.Unlock()

	now := w.clock.Now()
	cutoff := now.Add(-w.period)
	kept := w.stamps[:0]
	used := 0
	for _, s := range w.stamps {
		if s.at.After(cutoff) {
			kept = append(kept, s)
			used += s.count
		}
	}
	w.stamps = kept

	if used+n <= w.limit {
		w.stamps = append(w.stamps, stamp{at: now, count: n})
		return 0
	}

	// wait until enough old stamps leave the window
	freed := 0
	for _, s := range w.stamps {
		freed += s.count
		if used-freed+n <= w.limit {
			return s.at.Add(w.period).Sub(now)
		}
	}
	return w.period
}
