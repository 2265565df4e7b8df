package services

import (
	"slices"
	"time"

	"routeopt/internal/core/domain/model/fleet"
	"routeopt/internal/core/domain/model/kernel"
	"routeopt/internal/core/domain/model/optimisation"
)

// MinStartLead is how far from now a route for today may start.
const MinStartLead = 10 * time.Minute

// DriverTimeMessage records one narrowing of a driver window by a break.
type DriverTimeMessage struct {
	Change string
	Time   time.Time
	Break  kernel.TimeWindow
}

// DriverWindow is the usable part of a driver's day.
type DriverWindow struct {
	Driver   fleet.Driver
	Window   kernel.TimeWindow
	Breaks   []fleet.Break
	Messages []DriverTimeMessage
}

// DriverExclusion explains why a driver can not take part in an optimisation.
type DriverExclusion struct {
	Driver fleet.Driver
	Reason string
	Break  *kernel.TimeWindow
}

// DriverWindowResolver narrows a driver schedule to the window the solver may use.
//
// Rules, applied in order:
//   - a day off excludes the driver
//   - for today the window starts no earlier than now plus MinStartLead
//   - the window is clipped to the optimisation working hours
//   - breaks are applied chronologically: a break covering the whole window
//     excludes the driver, one covering the start moves the start to its end,
//     one covering the end moves the end to its start, one strictly inside
//     stays a break the route must schedule
//   - breaks are re-checked against the narrowed window until no bound moves,
//     so the result is the tightest window consistent with every break
type DriverWindowResolver struct{}

func NewDriverWindowResolver() DriverWindowResolver {
	return DriverWindowResolver{}
}

func (DriverWindowResolver) Resolve(
	d fleet.Driver,
	day, now time.Time,
	working kernel.TimeWindow,
) (DriverWindow, *DriverExclusion) {
	exclude := func(reason string, br *kernel.TimeWindow) (DriverWindow, *DriverExclusion) {
		return DriverWindow{}, &DriverExclusion{Driver: d, Reason: reason, Break: br}
	}
	if d.Schedule.DayOff {
		return exclude(optimisation.ExcludeDayOff, nil)
	}

	w := d.Schedule.Window
	if isSameDay(day, now) {
		lead := now.Add(MinStartLead)
		if !lead.Before(w.End()) {
			return exclude(optimisation.ExcludeOutOfHours, nil)
		}
		if w.Start().Before(lead) {
			w, _ = kernel.NewTimeWindow(lead, w.End())
		}
	}
	w, ok := w.Intersect(working)
	if !ok {
		return exclude(optimisation.ExcludeOutOfHours, nil)
	}

	breaks := slices.Clone(d.Schedule.Breaks)
	slices.SortFunc(breaks, func(a, b fleet.Break) int { return a.Window.Start().Compare(b.Window.Start()) })

	res := DriverWindow{Driver: d}
	start, end := w.Start(), w.End()
	// Cutting one bound can make an earlier inner break cover the new bound,
	// so passes repeat until no break moves a bound.
	for changed := true; changed; {
		changed = false
		inner := breaks[:0]
		for _, br := range breaks {
			bs, be := br.Window.Start(), br.Window.End()
			switch {
			case !be.After(start) || !bs.Before(end):
				// outside the window
			case !bs.After(start) && !be.Before(end):
				bw := br.Window
				return exclude(optimisation.ExcludeBreak, &bw)
			case !bs.After(start):
				start = be
				changed = true
				res.Messages = append(res.Messages, DriverTimeMessage{Change: optimisation.ChangeMinTime, Time: be, Break: br.Window})
			case !be.Before(end):
				end = bs
				changed = true
				res.Messages = append(res.Messages, DriverTimeMessage{Change: optimisation.ChangeMaxTime, Time: bs, Break: br.Window})
			default:
				inner = append(inner, br)
			}
		}
		breaks = inner
	}
	res.Breaks = breaks
	res.Window, _ = kernel.NewTimeWindow(start, end)
	return res, nil
}

func isSameDay(day, now time.Time) bool {
	y1, m1, d1 := day.Date()
	y2, m2, d2 := now.In(day.Location()).Date()
	return y1 == y2 && m1 == m2 && d1 == d2
}
