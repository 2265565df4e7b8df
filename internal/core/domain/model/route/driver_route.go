package route

import (
	"errors"
	"fmt"
	"slices"
	"time"

	"routeopt/internal/core/domain/model/kernel"
	"routeopt/internal/pkg/errs"
)

var (
	ErrDriverRouteIsNotConstructed = errors.New("DriverRoute must be created via NewDriverRoute constructor")
	ErrPointNotFound               = errors.New("Point is not found in this route")
)

type State string

const (
	Created  State = "created"
	Running  State = "running"
	Finished State = "finished"
)

func (s State) Validate() error {
	switch s {
	case Created, Running, Finished:
		return nil
	default:
		return errs.NewValueIsInvalidErrorWithCause("route state", fmt.Errorf("%q is not a valid route state", string(s)))
	}
}

// DriverRoute is the route of one driver within one optimisation.
type DriverRoute struct {
	id              kernel.UUID
	optimisationID  kernel.UUID
	driverID        kernel.UUID
	driverName      string
	state           State
	drivingDistance float64
	drivingTime     time.Duration
	startTime       time.Time
	endTime         time.Time
	points          []*RoutePoint

	isConstructed bool
}

func NewDriverRoute(id, optimisationID, driverID kernel.UUID, driverName string) (*DriverRoute, error) {
	r := &DriverRoute{
		driverName:    driverName,
		state:         Created,
		isConstructed: true,
	}
	if err := errors.Join(
		id.Validate(),
		optimisationID.Validate(),
		driverID.Validate(),
	); err != nil {
		return nil, err
	}
	r.id, r.optimisationID, r.driverID = id, optimisationID, driverID
	return r, nil
}

func RestoreDriverRoute(
	id, optimisationID, driverID kernel.UUID,
	driverName string,
	state State,
	drivingDistance float64,
	drivingTime time.Duration,
	startTime, endTime time.Time,
	points []*RoutePoint,
) (*DriverRoute, error) {
	r, err := NewDriverRoute(id, optimisationID, driverID, driverName)
	if err != nil {
		return nil, err
	}
	if err = state.Validate(); err != nil {
		return nil, err
	}
	r.state = state
	r.drivingDistance = drivingDistance
	r.drivingTime = drivingTime
	r.startTime = startTime
	r.endTime = endTime
	r.points = append([]*RoutePoint(nil), points...)
	slices.SortStableFunc(r.points, func(a, b *RoutePoint) int { return a.number - b.number })
	return r, nil
}

func (r *DriverRoute) Validate() error {
	if r == nil || !r.isConstructed {
		return ErrDriverRouteIsNotConstructed
	}
	return nil
}

func (r *DriverRoute) ID() kernel.UUID {
	return r.id
}

func (r *DriverRoute) OptimisationID() kernel.UUID {
	return r.optimisationID
}

func (r *DriverRoute) DriverID() kernel.UUID {
	return r.driverID
}

func (r *DriverRoute) DriverName() string {
	return r.driverName
}

func (r *DriverRoute) State() State {
	return r.state
}

func (r *DriverRoute) DrivingDistance() float64 {
	return r.drivingDistance
}

func (r *DriverRoute) DrivingTime() time.Duration {
	return r.drivingTime
}

func (r *DriverRoute) StartTime() time.Time {
	return r.startTime
}

func (r *DriverRoute) EndTime() time.Time {
	return r.endTime
}

// Points returns the points in route order.
func (r *DriverRoute) Points() []*RoutePoint {
	return append([]*RoutePoint(nil), r.points...)
}

// ReplacePoints sets a new ordered point list. Numbers are assigned by the sequencer.
func (r *DriverRoute) ReplacePoints(points []*RoutePoint) error {
	for _, p := range points {
		if err := p.Validate(); err != nil {
			return err
		}
	}
	r.points = append([]*RoutePoint(nil), points...)
	return nil
}

// SetTotals stores the aggregates computed from the point schedule.
func (r *DriverRoute) SetTotals(distance float64, drivingTime time.Duration, start, end time.Time) {
	r.drivingDistance = distance
	r.drivingTime = drivingTime
	r.startTime = start
	r.endTime = end
}

func (r *DriverRoute) PointByID(id kernel.UUID) (*RoutePoint, error) {
	for _, p := range r.points {
		if p.id.IsEqual(id) {
			return p, nil
		}
	}
	return nil, ErrPointNotFound
}

// JobPoints returns pickup and delivery points in route order.
func (r *DriverRoute) JobPoints() []*RoutePoint {
	out := make([]*RoutePoint, 0, len(r.points))
	for _, p := range r.points {
		if p.kind.IsJob() {
			out = append(out, p)
		}
	}
	return out
}

// JobIDs lists every job delivered on the route.
func (r *DriverRoute) JobIDs() []kernel.UUID {
	var ids []kernel.UUID
	for _, p := range r.points {
		if p.kind == KindDelivery {
			ids = append(ids, p.ref.JobIDs()...)
		}
	}
	return ids
}

func (r *DriverRoute) OrdersCount() int {
	return len(r.JobIDs())
}

// IsEmpty reports whether no job is left on the route.
func (r *DriverRoute) IsEmpty() bool {
	return len(r.JobPoints()) == 0
}

// TransitionTo changes the route state. A route never goes back to Created.
func (r *DriverRoute) TransitionTo(next State) error {
	if r.state == next {
		return nil
	}
	if next == Created || r.state == Finished && next != Running {
		return errs.NewValueIsInvalidErrorWithCause(
			"route state",
			fmt.Errorf("can not change route state from %s to %s", r.state, next),
		)
	}
	r.state = next
	return nil
}

// CheckInvariants verifies numbering, bracketing and pickup precedence.
func (r *DriverRoute) CheckInvariants() error {
	if len(r.points) == 0 {
		return nil
	}
	for i, p := range r.points {
		if p.number != i+1 {
			return errs.NewValueIsInvalidErrorWithCause(
				"route point number",
				fmt.Errorf("point %d has number %d", i+1, p.number),
			)
		}
	}
	if !r.points[0].kind.IsTerminal() {
		return errs.NewValueIsInvalidErrorWithCause("route", errors.New("route must start at hub or location"))
	}
	if !r.points[len(r.points)-1].kind.IsTerminal() {
		return errs.NewValueIsInvalidErrorWithCause("route", errors.New("route must finish at hub or location"))
	}

	delivered := map[string]bool{}
	for _, p := range r.points {
		switch p.kind {
		case KindDelivery:
			for _, id := range p.ref.JobIDs() {
				delivered[id.String()] = true
			}
		case KindPickup:
			if delivered[p.ref.id.String()] {
				return errs.NewValueIsInvalidErrorWithCause(
					"route",
					fmt.Errorf("pickup of job %s is after its delivery", p.ref.id),
				)
			}
		default:
		}
	}
	return nil
}
