package route

import (
	"errors"
	"time"

	"routeopt/internal/core/domain/model/kernel"
	"routeopt/internal/pkg/errs"
)

var ErrRoutePointIsNotConstructed = errors.New("RoutePoint must be created via NewRoutePoint constructor")

// RoutePoint is one stop of a driver route.
type RoutePoint struct {
	id                       kernel.UUID
	number                   int
	kind                     PointKind
	ref                      PointRef
	point                    *kernel.GeoPoint
	title                    string
	serviceTime              time.Duration
	startTime                time.Time
	endTime                  time.Time
	startTimeKnownToCustomer *time.Time
	utilizedCapacity         float64

	isConstructed bool
}

// NewRoutePoint creates an unnumbered point. point is nil only for breaks.
func NewRoutePoint(kind PointKind, ref PointRef, point *kernel.GeoPoint, title string, serviceTime time.Duration) (*RoutePoint, error) {
	p := &RoutePoint{
		id:            kernel.NewUUID(),
		title:         title,
		isConstructed: true,
	}
	if err := errors.Join(
		p.setKind(kind, ref, point),
		p.setServiceTime(serviceTime),
	); err != nil {
		return nil, err
	}
	return p, nil
}

func RestoreRoutePoint(
	id kernel.UUID,
	number int,
	kind PointKind,
	ref PointRef,
	point *kernel.GeoPoint,
	title string,
	serviceTime time.Duration,
	startTime, endTime time.Time,
	startTimeKnownToCustomer *time.Time,
	utilizedCapacity float64,
) (*RoutePoint, error) {
	p := &RoutePoint{
		number:                   number,
		title:                    title,
		startTime:                startTime,
		endTime:                  endTime,
		startTimeKnownToCustomer: startTimeKnownToCustomer,
		utilizedCapacity:         utilizedCapacity,
		isConstructed:            true,
	}
	if err := id.Validate(); err != nil {
		return nil, err
	}
	p.id = id
	if number < 1 {
		return nil, errs.NewValueIsOutOfRangeError("number", number, 1, "unbounded")
	}
	if err := errors.Join(
		p.setKind(kind, ref, point),
		p.setServiceTime(serviceTime),
	); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *RoutePoint) Validate() error {
	if p == nil || !p.isConstructed {
		return ErrRoutePointIsNotConstructed
	}
	return nil
}

func (p *RoutePoint) ID() kernel.UUID {
	return p.id
}

func (p *RoutePoint) Number() int {
	return p.number
}

func (p *RoutePoint) Kind() PointKind {
	return p.kind
}

func (p *RoutePoint) Ref() PointRef {
	return p.ref
}

// Point is nil for breaks, which happen wherever the driver is.
func (p *RoutePoint) Point() *kernel.GeoPoint {
	return p.point
}

func (p *RoutePoint) Title() string {
	return p.title
}

func (p *RoutePoint) ServiceTime() time.Duration {
	return p.serviceTime
}

func (p *RoutePoint) StartTime() time.Time {
	return p.startTime
}

func (p *RoutePoint) EndTime() time.Time {
	return p.endTime
}

func (p *RoutePoint) StartTimeKnownToCustomer() *time.Time {
	return p.startTimeKnownToCustomer
}

func (p *RoutePoint) UtilizedCapacity() float64 {
	return p.utilizedCapacity
}

// SetNumber is used by the sequencer only.
func (p *RoutePoint) SetNumber(n int) {
	p.number = n
}

// Schedule sets the planned service interval and the load after the point.
func (p *RoutePoint) Schedule(start, end time.Time, utilizedCapacity float64) error {
	if end.Before(start) {
		return errs.NewValueIsInvalidError("point end time")
	}
	p.startTime = start
	p.endTime = end
	p.utilizedCapacity = utilizedCapacity
	return nil
}

// SetPoint moves a point that has no own entity, such as the closing point of
// a route that ends at its last job.
func (p *RoutePoint) SetPoint(point kernel.GeoPoint) error {
	if err := point.Validate(); err != nil {
		return err
	}
	p.point = &point
	return nil
}

// NotifyCustomer records the current start time as the one promised to the customer.
func (p *RoutePoint) NotifyCustomer() {
	if p.kind != KindDelivery {
		return
	}
	t := p.startTime
	p.startTimeKnownToCustomer = &t
}

// IsPromiseBroken reports whether the customer was told a different start time.
func (p *RoutePoint) IsPromiseBroken() bool {
	return p.startTimeKnownToCustomer != nil && !p.startTimeKnownToCustomer.Equal(p.startTime)
}

func (p *RoutePoint) setKind(kind PointKind, ref PointRef, point *kernel.GeoPoint) error {
	if err := kind.Validate(); err != nil {
		return err
	}
	if err := ref.validateFor(kind); err != nil {
		return err
	}
	if kind != KindBreak {
		if point == nil {
			return errs.NewValueIsRequiredError("point location")
		}
		if err := point.Validate(); err != nil {
			return err
		}
	}
	p.kind = kind
	p.ref = ref
	p.point = point
	return nil
}

func (p *RoutePoint) setServiceTime(d time.Duration) error {
	if d < 0 {
		return errs.NewValueIsOutOfRangeError("service_time", d, 0, "unbounded")
	}
	p.serviceTime = d
	return nil
}
