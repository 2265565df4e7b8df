package services

import (
	"routeopt/internal/core/domain/model/fleet"
	"routeopt/internal/core/domain/model/kernel"
	"routeopt/internal/core/domain/model/route"
)

// SplitStarted cuts points after the last point the driver has already
// reached. The prefix is kept as it is by every mutation; rest is what may
// still be reordered and re-timed. prefix is nil while nothing was started.
func SplitStarted(points []*route.RoutePoint, jobs map[kernel.UUID]fleet.Job) (prefix, rest []*route.RoutePoint) {
	last := -1
	for i, pt := range points {
		if IsPointStarted(pt, jobs) {
			last = i
		}
	}
	if last < 0 {
		return nil, points
	}
	return points[:last+1], points[last+1:]
}

// IsPointStarted reports whether the driver reached pt. A pickup counts once
// the driver heads to it, a delivery once the goods are on the way.
func IsPointStarted(pt *route.RoutePoint, jobs map[kernel.UUID]fleet.Job) bool {
	for _, id := range pt.Ref().JobIDs() {
		j, ok := jobs[id]
		if !ok {
			continue
		}
		switch pt.Kind() {
		case route.KindPickup:
			if j.Status == fleet.PickUp || j.Status.IsPickupPassed() {
				return true
			}
		case route.KindDelivery:
			if j.Status == fleet.InProgress || j.Status == fleet.WayBack || j.Status.IsTerminal() {
				return true
			}
		}
	}
	return false
}
