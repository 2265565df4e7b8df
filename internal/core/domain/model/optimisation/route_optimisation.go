package optimisation

import (
	"errors"
	"fmt"
	"time"

	"routeopt/internal/core/domain/model/kernel"
	"routeopt/internal/pkg/errs"
)

var (
	ErrRouteOptimisationIsNotConstructed = errors.New("RouteOptimisation must be created via NewRouteOptimisation constructor")
	ErrOptimisationIsRemoved             = errors.New("optimisation is removed")
)

// RouteOptimisation is one optimisation run of a merchant for one day.
//
// Invariants:
//   - the day is a calendar date at midnight in the merchant timezone
//   - options always pass Options.Validate
//   - the log is append only
//   - Removed is terminal; removed optimisations are never hard deleted
type RouteOptimisation struct {
	id                kernel.UUID
	merchantID        kernel.UUID
	initiator         Initiator
	day               time.Time
	typ               Type
	state             State
	options           Options
	customersNotified bool
	log               []LogEntry
	placedJobIDs      []kernel.UUID
	createdAt         time.Time

	isConstructed bool
}

func NewRouteOptimisation(
	id kernel.UUID,
	merchantID kernel.UUID,
	initiator Initiator,
	day time.Time,
	typ Type,
	options Options,
	now time.Time,
) (*RouteOptimisation, error) {
	o := &RouteOptimisation{
		state:         Created,
		createdAt:     now,
		isConstructed: true,
	}

	if err := errors.Join(
		o.setID(id),
		o.setMerchantID(merchantID),
		o.setInitiator(initiator),
		o.setDay(day),
		o.setType(typ),
		o.setOptions(options),
	); err != nil {
		return nil, err
	}

	return o, nil
}

// RestoreRouteOptimisation rebuilds the aggregate from storage.
func RestoreRouteOptimisation(
	id kernel.UUID,
	merchantID kernel.UUID,
	initiator Initiator,
	day time.Time,
	typ Type,
	state State,
	options Options,
	customersNotified bool,
	log []LogEntry,
	placedJobIDs []kernel.UUID,
	createdAt time.Time,
) (*RouteOptimisation, error) {
	o := &RouteOptimisation{
		customersNotified: customersNotified,
		log:               log,
		placedJobIDs:      placedJobIDs,
		createdAt:         createdAt,
		isConstructed:     true,
	}

	if err := errors.Join(
		o.setID(id),
		o.setMerchantID(merchantID),
		o.setInitiator(initiator),
		o.setDay(day),
		o.setType(typ),
		o.setOptions(options),
		state.Validate(),
	); err != nil {
		return nil, err
	}
	o.state = state

	return o, nil
}

func (o *RouteOptimisation) Validate() error {
	if o == nil || !o.isConstructed {
		return ErrRouteOptimisationIsNotConstructed
	}
	return nil
}

func (o *RouteOptimisation) ID() kernel.UUID {
	return o.id
}

func (o *RouteOptimisation) MerchantID() kernel.UUID {
	return o.merchantID
}

func (o *RouteOptimisation) Initiator() Initiator {
	return o.initiator
}

func (o *RouteOptimisation) Day() time.Time {
	return o.day
}

func (o *RouteOptimisation) Type() Type {
	return o.typ
}

func (o *RouteOptimisation) State() State {
	return o.state
}

func (o *RouteOptimisation) Options() Options {
	return o.options
}

func (o *RouteOptimisation) CustomersNotified() bool {
	return o.customersNotified
}

func (o *RouteOptimisation) CreatedAt() time.Time {
	return o.createdAt
}

func (o *RouteOptimisation) PlacedJobIDs() []kernel.UUID {
	return o.placedJobIDs
}

// Log returns a copy of the log entries.
func (o *RouteOptimisation) Log() []LogEntry {
	return append([]LogEntry(nil), o.log...)
}

func (o *RouteOptimisation) IsRemoved() bool {
	return o.state == Removed
}

// TransitionTo moves the optimisation to next. Staying in the same state is a no-op.
func (o *RouteOptimisation) TransitionTo(next State) error {
	if o.state == next {
		return nil
	}
	if !o.state.CanTransitionTo(next) {
		return errs.NewValueIsInvalidErrorWithCause(
			"state",
			fmt.Errorf("can not change optimisation state from %s to %s", o.state, next),
		)
	}
	o.state = next
	return nil
}

// Fail marks the optimisation as failed and records the reason.
func (o *RouteOptimisation) Fail(reason string, now time.Time) error {
	if err := o.TransitionTo(Failed); err != nil {
		return err
	}
	o.AppendLog(EventSolverFailed, LogParams{Reason: reason}, now)
	return nil
}

// Remove soft deletes the optimisation.
func (o *RouteOptimisation) Remove(by Initiator, unassign bool, unassigned int, now time.Time) error {
	if o.IsRemoved() {
		return ErrOptimisationIsRemoved
	}
	if err := o.TransitionTo(Removed); err != nil {
		return err
	}
	o.AppendLog(EventRemoved, LogParams{Initiator: by.Label(), Unassign: unassign, Count: unassigned}, now)
	return nil
}

func (o *RouteOptimisation) AppendLog(event EventType, params LogParams, now time.Time) {
	o.log = append(o.log, NewLogEntry(event, params, now))
}

// NotifyCustomers marks the current route times as promised to customers.
func (o *RouteOptimisation) NotifyCustomers(now time.Time) {
	o.customersNotified = true
	o.AppendLog(EventCustomersNotified, LogParams{}, now)
}

// InvalidateCustomersNotified is called when a promised time shifted.
func (o *RouteOptimisation) InvalidateCustomersNotified() {
	o.customersNotified = false
}

func (o *RouteOptimisation) SetOptions(options Options) error {
	return o.setOptions(options)
}

// AddPlacedJobs records jobs whose assignment was made by this optimisation.
func (o *RouteOptimisation) AddPlacedJobs(ids []kernel.UUID) {
	for _, id := range ids {
		if !containsID(o.placedJobIDs, id) {
			o.placedJobIDs = append(o.placedJobIDs, id)
		}
	}
}

func (o *RouteOptimisation) IsPlacedJob(id kernel.UUID) bool {
	return containsID(o.placedJobIDs, id)
}

func (o *RouteOptimisation) setID(id kernel.UUID) error {
	if err := id.Validate(); err != nil {
		return err
	}
	o.id = id
	return nil
}

func (o *RouteOptimisation) setMerchantID(id kernel.UUID) error {
	if err := id.Validate(); err != nil {
		return errs.NewValueIsRequiredErrorWithCause("merchant", err)
	}
	o.merchantID = id
	return nil
}

func (o *RouteOptimisation) setInitiator(i Initiator) error {
	if err := i.Validate(); err != nil {
		return err
	}
	o.initiator = i
	return nil
}

func (o *RouteOptimisation) setDay(day time.Time) error {
	if day.IsZero() {
		return errs.NewValueIsRequiredError("day")
	}
	y, m, d := day.Date()
	o.day = time.Date(y, m, d, 0, 0, 0, 0, day.Location())
	return nil
}

func (o *RouteOptimisation) setType(t Type) error {
	if err := t.Validate(); err != nil {
		return err
	}
	o.typ = t
	return nil
}

func (o *RouteOptimisation) setOptions(options Options) error {
	if err := options.Validate(); err != nil {
		return err
	}
	o.options = options
	return nil
}
