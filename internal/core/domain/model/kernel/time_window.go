package kernel

import (
	"fmt"
	"time"

	"routeopt/internal/pkg/errs"
	"routeopt/internal/pkg/guard"
)

var ErrTimeWindowIsNotConstructed = errs.NewValueIsRequiredError(
	"time window must be created via NewTimeWindow")

// TimeWindow is a closed interval [Start, End].
type TimeWindow struct {
	start time.Time
	end   time.Time
	guard guard.ConstructorGuard
}

func NewTimeWindow(start, end time.Time) (TimeWindow, error) {
	if start.IsZero() {
		return TimeWindow{}, errs.NewValueIsRequiredError("start")
	}
	if end.IsZero() {
		return TimeWindow{}, errs.NewValueIsRequiredError("end")
	}
	if end.Before(start) {
		return TimeWindow{}, errs.NewValueIsInvalidErrorWithCause(
			"time window",
			fmt.Errorf("end %s is before start %s", end.Format(time.RFC3339), start.Format(time.RFC3339)),
		)
	}
	return TimeWindow{start: start, end: end, guard: guard.NewConstructorGuard()}, nil
}

func (w TimeWindow) Validate() error {
	return w.guard.Validate(ErrTimeWindowIsNotConstructed)
}

func (w TimeWindow) Start() time.Time {
	return w.start
}

func (w TimeWindow) End() time.Time {
	return w.end
}

func (w TimeWindow) Duration() time.Duration {
	return w.end.Sub(w.start)
}

func (w TimeWindow) Contains(t time.Time) bool {
	return !t.Before(w.start) && !t.After(w.end)
}

// Covers reports whether other lies completely inside w.
func (w TimeWindow) Covers(other TimeWindow) bool {
	return !other.start.Before(w.start) && !other.end.After(w.end)
}

// Intersect returns the overlap of two windows. ok is false when they do not
// share a positive-length interval.
func (w TimeWindow) Intersect(other TimeWindow) (TimeWindow, bool) {
	start := w.start
	if other.start.After(start) {
		start = other.start
	}
	end := w.end
	if other.end.Before(end) {
		end = other.end
	}
	if !end.After(start) {
		return TimeWindow{}, false
	}
	return TimeWindow{start: start, end: end, guard: guard.NewConstructorGuard()}, true
}

func (w TimeWindow) In(loc *time.Location) TimeWindow {
	return TimeWindow{start: w.start.In(loc), end: w.end.In(loc), guard: w.guard}
}

func (w TimeWindow) String() string {
	return fmt.Sprintf("%s-%s", w.start.Format("15:04"), w.end.Format("15:04"))
}
