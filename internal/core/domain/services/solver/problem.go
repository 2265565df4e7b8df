package solver

import (
	"fmt"
	"slices"
	"time"

	"routeopt/internal/core/domain/model/kernel"
	"routeopt/internal/pkg/errs"
)

// Matrix returns travel between two location indexes. ok is false when the
// destination can not be reached from the origin.
type Matrix interface {
	Travel(from, to int) (meters float64, seconds int, ok bool)
}

// Window is an inclusive interval in seconds after the day start.
type Window struct {
	Start int
	End   int
}

func (w Window) Contains(t int) bool {
	return t >= w.Start && t <= w.End
}

// Node is one place a request needs to be served at.
type Node struct {
	Location int
	Window   *Window
	Service  int
	Demand   float64
}

// Request is a job: one delivery and the pickups that must precede it.
type Request struct {
	Key      string
	Delivery Node
	Pickups  []Node
	Skills   []string
	// Vehicle pins the request to one vehicle. -1 means any.
	Vehicle int
}

// Break is a driver pause. Start may shift within Window.
type Break struct {
	Window   Window
	Duration int
}

// Vehicle is one driver with the window narrowed for the day.
type Vehicle struct {
	Key   string
	Start int
	// End is -1 when the route closes at its last stop.
	End    int
	Window Window
	// Capacity is nil when load is not limited.
	Capacity  *float64
	Skills    []string
	Breaks    []Break
	StartLoad float64
}

func (v Vehicle) HasSkills(required []string) bool {
	for _, s := range required {
		if !slices.Contains(v.Skills, s) {
			return false
		}
	}
	return true
}

func (v Vehicle) IsOpenEnd() bool {
	return v.End < 0
}

// Problem is a full vehicle routing instance.
type Problem struct {
	Locations []kernel.GeoPoint
	Matrix    Matrix
	Vehicles  []Vehicle
	Requests  []Request
}

func (p *Problem) HasPickups() bool {
	for _, r := range p.Requests {
		if len(r.Pickups) > 0 {
			return true
		}
	}
	return false
}

// AllowsVehicle reports whether request r may be served by vehicle v.
func (p *Problem) AllowsVehicle(r, v int) bool {
	req := p.Requests[r]
	if req.Vehicle >= 0 && req.Vehicle != v {
		return false
	}
	return p.Vehicles[v].HasSkills(req.Skills)
}

func (p *Problem) Validate() error {
	if p.Matrix == nil {
		return errs.NewValueIsRequiredError("matrix")
	}
	if len(p.Vehicles) == 0 {
		return errs.NewValueIsRequiredError("vehicles")
	}
	n := len(p.Locations)
	inRange := func(i int) bool { return i >= 0 && i < n }
	for i, v := range p.Vehicles {
		if !inRange(v.Start) || (v.End >= 0 && !inRange(v.End)) {
			return errs.NewValueIsOutOfRangeError(fmt.Sprintf("vehicle %d location", i), v.Start, 0, n-1)
		}
		if v.Window.End < v.Window.Start {
			return errs.NewValueIsInvalidError(fmt.Sprintf("vehicle %d window", i))
		}
	}
	for i, r := range p.Requests {
		if !inRange(r.Delivery.Location) {
			return errs.NewValueIsOutOfRangeError(fmt.Sprintf("request %d location", i), r.Delivery.Location, 0, n-1)
		}
		for _, pk := range r.Pickups {
			if !inRange(pk.Location) {
				return errs.NewValueIsOutOfRangeError(fmt.Sprintf("request %d pickup location", i), pk.Location, 0, n-1)
			}
		}
		if r.Vehicle >= len(p.Vehicles) {
			return errs.NewValueIsOutOfRangeError(fmt.Sprintf("request %d vehicle", i), r.Vehicle, -1, len(p.Vehicles)-1)
		}
	}
	return nil
}

// StopKind tells what a stop in a vehicle sequence is.
type StopKind int

const (
	StopDelivery StopKind = iota + 1
	StopPickup
	StopBreak
)

// Stop references a request node or a vehicle break. Start and end of the
// route are implied by the vehicle.
type Stop struct {
	Kind    StopKind
	Request int
	// Index is the pickup index for StopPickup and the break index for StopBreak.
	Index int
}

func DeliveryStop(r int) Stop {
	return Stop{Kind: StopDelivery, Request: r}
}

func PickupStop(r, i int) Stop {
	return Stop{Kind: StopPickup, Request: r, Index: i}
}

func BreakStop(i int) Stop {
	return Stop{Kind: StopBreak, Request: -1, Index: i}
}

func (p *Problem) node(s Stop) (Node, bool) {
	switch s.Kind {
	case StopDelivery:
		return p.Requests[s.Request].Delivery, true
	case StopPickup:
		return p.Requests[s.Request].Pickups[s.Index], true
	default:
		return Node{}, false
	}
}

// InitialStops returns the breaks of a vehicle ordered by their window.
func (p *Problem) InitialStops(v int) []Stop {
	breaks := p.Vehicles[v].Breaks
	idx := make([]int, len(breaks))
	for i := range idx {
		idx[i] = i
	}
	slices.SortFunc(idx, func(a, b int) int { return breaks[a].Window.Start - breaks[b].Window.Start })
	stops := make([]Stop, 0, len(idx))
	for _, i := range idx {
		stops = append(stops, BreakStop(i))
	}
	return stops
}

// Seconds converts a time on day to solver time.
func Seconds(day, t time.Time) int {
	return int(t.Sub(day) / time.Second)
}

// At converts solver time back to a time on day.
func At(day time.Time, s int) time.Time {
	return day.Add(time.Duration(s) * time.Second)
}
