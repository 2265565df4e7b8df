package fleet

import (
	"fmt"

	"routeopt/internal/pkg/errs"
)

// OrderStatus is the lifecycle status of a job as reported by the job service.
type OrderStatus string

const (
	NotAssigned OrderStatus = "not_assigned"
	Assigned    OrderStatus = "assigned"
	PickUp      OrderStatus = "pickup"
	PickedUp    OrderStatus = "picked_up"
	InProgress  OrderStatus = "in_progress"
	WayBack     OrderStatus = "way_back"
	Delivered   OrderStatus = "delivered"
	Failed      OrderStatus = "failed"
)

var knownStatuses = map[OrderStatus]struct{}{
	NotAssigned: {}, Assigned: {}, PickUp: {}, PickedUp: {},
	InProgress: {}, WayBack: {}, Delivered: {}, Failed: {},
}

func ParseOrderStatus(s string) (OrderStatus, error) {
	st := OrderStatus(s)
	if err := st.Validate(); err != nil {
		return "", err
	}
	return st, nil
}

func (s OrderStatus) Validate() error {
	if _, ok := knownStatuses[s]; !ok {
		return errs.NewValueIsInvalidErrorWithCause("status", fmt.Errorf("%q is not a valid order status", string(s)))
	}
	return nil
}

// IsActive reports whether a driver has started working on the job.
func (s OrderStatus) IsActive() bool {
	switch s {
	case PickUp, PickedUp, InProgress, WayBack:
		return true
	default:
		return false
	}
}

func (s OrderStatus) IsTerminal() bool {
	return s == Delivered || s == Failed
}

// IsPickupPassed reports whether the pickup stage of the job is already behind.
func (s OrderStatus) IsPickupPassed() bool {
	switch s {
	case PickedUp, InProgress, WayBack, Delivered, Failed:
		return true
	default:
		return false
	}
}

func (s OrderStatus) String() string {
	return string(s)
}
