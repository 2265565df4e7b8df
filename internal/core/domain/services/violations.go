package services

import (
	"fmt"

	"routeopt/internal/core/domain/services/solver"
)

// Mutation conflicts found on a recomputed timeline.
const (
	MsgCapacity         = "Capacity of target driver car can not satisfy route capacity"
	MsgOutOfSchedule    = "Route time is out of schedule of driver"
	MsgNotAccessible    = "Point %s is not accessible by geographical reasons"
	MsgOutOfDelivery    = "Point %s is out of delivery window"
	MsgOutOfPickup      = "Point %s is out of pickup window"
	MsgRouteIntersects  = "Updated route intersects with other route of driver"
	MsgOnlyAssigned     = "You should move only assigned orders"
	MsgSkills           = "Target driver can not satisfy order skill set"
	MsgDayOff           = "Target driver has day off"
	MsgSameDriver       = "Source driver and target driver are same"
	MsgFinishedOrder    = "Can not reorder finished order"
	MsgPassedPickup     = "Can not reorder passed pickup"
	MsgBreakOutOfWindow = "Driver break can not be kept within its allowed time"
)

// Conflicts splits the violations of tl into hard reasons and reasons the
// caller may force.
func (p *Plan) Conflicts(tl solver.Timeline, stops []solver.Stop) (hard, soft []string) {
	add := func(list []string, msg string) []string {
		for _, m := range list {
			if m == msg {
				return list
			}
		}
		return append(list, msg)
	}
	for _, v := range tl.Violations {
		switch v.Kind {
		case solver.ViolationCapacity:
			hard = add(hard, MsgCapacity)
		case solver.ViolationPrecedence:
			hard = add(hard, MsgPickupAfterDelivery)
		case solver.ViolationUnreachable:
			hard = add(hard, fmt.Sprintf(MsgNotAccessible, p.stopTitle(stops, v.Stop)))
		case solver.ViolationWindow:
			msg := MsgOutOfDelivery
			if v.Stop >= 0 && v.Stop < len(stops) && stops[v.Stop].Kind == solver.StopPickup {
				msg = MsgOutOfPickup
			}
			soft = add(soft, fmt.Sprintf(msg, p.stopTitle(stops, v.Stop)))
		case solver.ViolationSchedule:
			soft = add(soft, MsgOutOfSchedule)
		case solver.ViolationBreak:
			soft = add(soft, MsgBreakOutOfWindow)
		}
	}
	return hard, soft
}

func (p *Plan) stopTitle(stops []solver.Stop, i int) string {
	if i < 0 || i >= len(stops) {
		return "end of route"
	}
	s := stops[i]
	switch s.Kind {
	case solver.StopPickup:
		return p.requests[s.Request].pickups[s.Index][0].title
	case solver.StopDelivery:
		_, _, title := p.deliveryRef(s.Request)
		return title
	default:
		return breakTitle
	}
}
