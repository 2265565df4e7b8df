package services

import (
	"slices"

	"routeopt/internal/core/domain/model/kernel"
	"routeopt/internal/core/domain/model/route"
	"routeopt/internal/pkg/errs"
)

// Route sequence conflicts.
const (
	MsgSequenceNotChanged  = "Route sequence is not changed"
	MsgSequenceCount       = "Count of points in new sequence is not right"
	MsgSequenceStart       = "Route must start at hub or specific location but not order"
	MsgSequenceFinish      = "Route must finish at hub or specific location but not order"
	MsgPickupAfterDelivery = "Pickup can not be after delivery"
)

// Sequencer keeps point numbers contiguous from 1 in route order.
type Sequencer struct{}

func NewSequencer() Sequencer {
	return Sequencer{}
}

func (Sequencer) Number(points []*route.RoutePoint) {
	for i, p := range points {
		p.SetNumber(i + 1)
	}
}

// Reorder arranges the non-break points of a route in the order of ids.
// Breaks are left out of the result; callers place them again.
func (s Sequencer) Reorder(points []*route.RoutePoint, ids []kernel.UUID) ([]*route.RoutePoint, error) {
	current := slices.DeleteFunc(slices.Clone(points), func(p *route.RoutePoint) bool {
		return p.Kind() == route.KindBreak
	})
	if len(ids) != len(current) {
		return nil, errs.NewConflictError(MsgSequenceCount)
	}

	byID := make(map[kernel.UUID]*route.RoutePoint, len(current))
	for _, p := range current {
		byID[p.ID()] = p
	}
	out := make([]*route.RoutePoint, 0, len(ids))
	changed := false
	for i, id := range ids {
		p, ok := byID[id]
		if !ok {
			return nil, errs.NewConflictError(route.ErrPointNotFound.Error())
		}
		delete(byID, id)
		changed = changed || !current[i].ID().IsEqual(id)
		out = append(out, p)
	}
	if !changed {
		return nil, errs.NewConflictError(MsgSequenceNotChanged)
	}
	if !out[0].Kind().IsTerminal() {
		return nil, errs.NewConflictError(MsgSequenceStart)
	}
	if !out[len(out)-1].Kind().IsTerminal() {
		return nil, errs.NewConflictError(MsgSequenceFinish)
	}
	if err := CheckPrecedence(out); err != nil {
		return nil, err
	}
	return out, nil
}

// CheckPrecedence rejects a sequence that visits a delivery before one of its pickups.
func CheckPrecedence(points []*route.RoutePoint) error {
	delivered := make(map[kernel.UUID]bool)
	for _, p := range points {
		switch p.Kind() {
		case route.KindDelivery:
			for _, id := range p.Ref().JobIDs() {
				delivered[id] = true
			}
		case route.KindPickup:
			if id, _ := p.Ref().ID(); delivered[id] {
				return errs.NewConflictError(MsgPickupAfterDelivery)
			}
		}
	}
	return nil
}
