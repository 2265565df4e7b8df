package route

import (
	"fmt"

	"routeopt/internal/core/domain/model/kernel"
	"routeopt/internal/pkg/errs"
)

type PointKind string

const (
	KindHub      PointKind = "hub"
	KindLocation PointKind = "location"
	KindPickup   PointKind = "pickup"
	KindDelivery PointKind = "delivery"
	KindBreak    PointKind = "break"
)

func (k PointKind) Validate() error {
	switch k {
	case KindHub, KindLocation, KindPickup, KindDelivery, KindBreak:
		return nil
	default:
		return errs.NewValueIsInvalidErrorWithCause("point_kind", fmt.Errorf("%q is not a valid point kind", string(k)))
	}
}

// IsTerminal reports whether the kind may open or close a route.
func (k PointKind) IsTerminal() bool {
	return k == KindHub || k == KindLocation
}

func (k PointKind) IsJob() bool {
	return k == KindPickup || k == KindDelivery
}

type RefKind string

const (
	RefHub          RefKind = "hub"
	RefLocation     RefKind = "location"
	RefJob          RefKind = "job"
	RefConcatenated RefKind = "concatenated_job"
	RefBreak        RefKind = "break"
	// RefDriverPoint is a driver's default point, which has no entity id.
	RefDriverPoint RefKind = "driver_point"
	// RefLastJob closes a route that ends at the address of its last job.
	RefLastJob RefKind = "last_job"
)

// PointRef identifies what a route point visits. Which fields are set
// depends on Kind:
//
//	RefHub, RefLocation  ID
//	RefJob               ID (job), PickupID for pickup points
//	RefConcatenated      ID (group), MemberIDs
//	RefBreak, RefDriverPoint, RefLastJob  none
type PointRef struct {
	kind      RefKind
	id        kernel.UUID
	pickupID  *kernel.UUID
	memberIDs []kernel.UUID
}

func HubRef(id kernel.UUID) PointRef {
	return PointRef{kind: RefHub, id: id}
}

func LocationRef(id kernel.UUID) PointRef {
	return PointRef{kind: RefLocation, id: id}
}

func DriverPointRef() PointRef {
	return PointRef{kind: RefDriverPoint}
}

func JobRef(jobID kernel.UUID) PointRef {
	return PointRef{kind: RefJob, id: jobID}
}

func PickupRef(jobID, pickupID kernel.UUID) PointRef {
	return PointRef{kind: RefJob, id: jobID, pickupID: &pickupID}
}

func ConcatenatedRef(groupID kernel.UUID, memberIDs []kernel.UUID) PointRef {
	return PointRef{kind: RefConcatenated, id: groupID, memberIDs: append([]kernel.UUID(nil), memberIDs...)}
}

func LastJobRef() PointRef {
	return PointRef{kind: RefLastJob}
}

func BreakRef() PointRef {
	return PointRef{kind: RefBreak}
}

// RestorePointRef rebuilds a reference from storage.
func RestorePointRef(kind RefKind, id *kernel.UUID, pickupID *kernel.UUID, memberIDs []kernel.UUID) (PointRef, error) {
	switch kind {
	case RefBreak:
		return BreakRef(), nil
	case RefDriverPoint:
		return DriverPointRef(), nil
	case RefLastJob:
		return LastJobRef(), nil
	case RefHub, RefLocation, RefJob, RefConcatenated:
		if id == nil {
			return PointRef{}, errs.NewValueIsRequiredError("point_object_id")
		}
		return PointRef{kind: kind, id: *id, pickupID: pickupID, memberIDs: memberIDs}, nil
	default:
		return PointRef{}, errs.NewValueIsInvalidErrorWithCause("ref_kind", fmt.Errorf("%q is not a valid reference", string(kind)))
	}
}

func (r PointRef) Kind() RefKind {
	return r.kind
}

// ID returns the referenced entity id. ok is false for references without one.
func (r PointRef) ID() (kernel.UUID, bool) {
	if r.kind == RefBreak || r.kind == RefDriverPoint || r.kind == RefLastJob {
		return kernel.UUID{}, false
	}
	return r.id, true
}

func (r PointRef) PickupID() *kernel.UUID {
	return r.pickupID
}

// JobIDs lists the jobs served at this point.
func (r PointRef) JobIDs() []kernel.UUID {
	switch r.kind {
	case RefJob:
		return []kernel.UUID{r.id}
	case RefConcatenated:
		return append([]kernel.UUID(nil), r.memberIDs...)
	default:
		return nil
	}
}

// Key is a stable identity of the referenced object within a route.
func (r PointRef) Key() string {
	switch r.kind {
	case RefBreak, RefDriverPoint, RefLastJob:
		return string(r.kind)
	}
	if r.pickupID != nil {
		return fmt.Sprintf("%s:%s:%s", r.kind, r.id, r.pickupID)
	}
	return fmt.Sprintf("%s:%s", r.kind, r.id)
}

func (r PointRef) validateFor(kind PointKind) error {
	ok := false
	switch kind {
	case KindHub:
		ok = r.kind == RefHub
	case KindLocation:
		ok = r.kind == RefLocation || r.kind == RefDriverPoint || r.kind == RefLastJob
	case KindPickup:
		ok = r.kind == RefJob
	case KindDelivery:
		ok = r.kind == RefJob || r.kind == RefConcatenated
	case KindBreak:
		ok = r.kind == RefBreak
	}
	if !ok {
		return errs.NewValueIsInvalidErrorWithCause(
			"point_object",
			fmt.Errorf("%s reference can not be used for %s point", r.kind, kind),
		)
	}
	return nil
}
