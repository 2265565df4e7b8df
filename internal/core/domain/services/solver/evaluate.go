package solver

const capacityEpsilon = 1e-9

type ViolationKind string

const (
	ViolationWindow      ViolationKind = "window"
	ViolationSchedule    ViolationKind = "schedule"
	ViolationCapacity    ViolationKind = "capacity"
	ViolationBreak       ViolationKind = "break"
	ViolationPrecedence  ViolationKind = "precedence"
	ViolationUnreachable ViolationKind = "unreachable"
)

// Violation points at the offending stop index, or -1 for the route as a whole.
type Violation struct {
	Kind ViolationKind
	Stop int
}

// Visit is a scheduled stop. Times are solver seconds.
type Visit struct {
	Stop    Stop
	Arrival int
	Start   int
	End     int
	// Load is the vehicle load after the stop.
	Load    float64
	Meters  float64
	Seconds int
}

// Timeline is the schedule of one vehicle over a stop sequence.
type Timeline struct {
	Departure     int
	StartLoad     float64
	Visits        []Visit
	Return        int
	ReturnMeters  float64
	ReturnSeconds int
	Distance      float64
	TravelSeconds int
	Violations    []Violation
}

func (t Timeline) Feasible() bool {
	return len(t.Violations) == 0
}

// Has reports whether any violation of kind is present.
func (t Timeline) Has(kind ViolationKind) bool {
	for _, v := range t.Violations {
		if v.Kind == kind {
			return true
		}
	}
	return false
}

// Cost is the objective the solver minimises.
func (t Timeline) Cost() float64 {
	return float64(t.TravelSeconds) + t.Distance*1e-6
}

// Evaluate schedules stops on vehicle v and reports every violated constraint.
// The vehicle leaves its start as late as possible without waiting at the
// first stop.
func (p *Problem) Evaluate(v int, stops []Stop) Timeline {
	return p.evaluate(v, stops, false, true)
}

func (p *Problem) evaluate(v int, stops []Stop, failFast, withCapacity bool) Timeline {
	veh := p.Vehicles[v]
	tl := Timeline{
		Departure: veh.Window.Start,
		Visits:    make([]Visit, 0, len(stops)),
	}
	violate := func(kind ViolationKind, stop int) bool {
		tl.Violations = append(tl.Violations, Violation{Kind: kind, Stop: stop})
		return failFast
	}

	load := veh.StartLoad
	for _, s := range stops {
		switch s.Kind {
		case StopDelivery:
			load += p.Requests[s.Request].Delivery.Demand
		case StopPickup:
			load -= p.Requests[s.Request].Pickups[s.Index].Demand
		case StopBreak:
		}
	}
	load = max(load, veh.StartLoad, 0)
	tl.StartLoad = load
	checkCapacity := withCapacity && veh.Capacity != nil
	if checkCapacity && load > *veh.Capacity+capacityEpsilon {
		if violate(ViolationCapacity, -1) {
			return tl
		}
	}

	delivered := make(map[int]bool)
	loc := veh.Start
	t := veh.Window.Start
	for i, s := range stops {
		if s.Kind == StopBreak {
			b := veh.Breaks[s.Index]
			start := max(t, b.Window.Start)
			if start > b.Window.End && violate(ViolationBreak, i) {
				return tl
			}
			end := start + b.Duration
			tl.Visits = append(tl.Visits, Visit{Stop: s, Arrival: t, Start: start, End: end, Load: load})
			t = end
			continue
		}

		n, _ := p.node(s)
		meters, seconds, ok := p.Matrix.Travel(loc, n.Location)
		if !ok {
			if violate(ViolationUnreachable, i) {
				return tl
			}
			meters, seconds = 0, 0
		}
		arrival := t + seconds
		start := arrival
		if n.Window != nil {
			start = max(start, n.Window.Start)
			if start > n.Window.End && violate(ViolationWindow, i) {
				return tl
			}
		}
		end := start + n.Service

		switch s.Kind {
		case StopPickup:
			if delivered[s.Request] && violate(ViolationPrecedence, i) {
				return tl
			}
			load += n.Demand
		case StopDelivery:
			delivered[s.Request] = true
			load -= n.Demand
		case StopBreak:
		}
		if checkCapacity && load > *veh.Capacity+capacityEpsilon && violate(ViolationCapacity, i) {
			return tl
		}

		tl.Visits = append(tl.Visits, Visit{
			Stop: s, Arrival: arrival, Start: start, End: end, Load: load,
			Meters: meters, Seconds: seconds,
		})
		tl.Distance += meters
		tl.TravelSeconds += seconds
		loc = n.Location
		t = end
	}

	tl.Return = t
	if !veh.IsOpenEnd() {
		meters, seconds, ok := p.Matrix.Travel(loc, veh.End)
		if !ok {
			if violate(ViolationUnreachable, len(stops)) {
				return tl
			}
			meters, seconds = 0, 0
		}
		tl.Return = t + seconds
		tl.ReturnMeters = meters
		tl.ReturnSeconds = seconds
		tl.Distance += meters
		tl.TravelSeconds += seconds
	}
	if tl.Return > veh.Window.End && violate(ViolationSchedule, -1) {
		return tl
	}

	if len(tl.Visits) > 0 {
		first := &tl.Visits[0]
		if wait := first.Start - first.Arrival; wait > 0 {
			tl.Departure += wait
			first.Arrival += wait
		}
	}
	return tl
}
