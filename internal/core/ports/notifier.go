package ports

import (
	"context"
	"time"

	"routeopt/internal/core/domain/model/fleet"
	"routeopt/internal/core/domain/model/kernel"
)

type MessageKind string

const (
	MessageRouteRemoved    MessageKind = "route_removed"
	MessageRouteChanged    MessageKind = "route_changed"
	MessageJobsAssigned    MessageKind = "jobs_assigned"
	MessageJobsUnassigned  MessageKind = "jobs_unassigned"
	MessageCustomerUpdated MessageKind = "customer_eta"
)

// Message is a push/SMS message handed to the notification service.
type Message interface {
	Kind() MessageKind
}

type RouteRemovedMessage struct {
	OptimisationID kernel.UUID
	RouteID        kernel.UUID
	DriverID       kernel.UUID
}

func (RouteRemovedMessage) Kind() MessageKind { return MessageRouteRemoved }

type RouteChangedMessage struct {
	OptimisationID kernel.UUID
	RouteID        kernel.UUID
	DriverID       kernel.UUID
}

func (RouteChangedMessage) Kind() MessageKind { return MessageRouteChanged }

type JobsAssignedMessage struct {
	DriverID kernel.UUID
	JobIDs   []kernel.UUID
}

func (JobsAssignedMessage) Kind() MessageKind { return MessageJobsAssigned }

type JobsUnassignedMessage struct {
	DriverID kernel.UUID
	JobIDs   []kernel.UUID
}

func (JobsUnassignedMessage) Kind() MessageKind { return MessageJobsUnassigned }

// CustomerETAMessage tells a customer when the driver is expected.
type CustomerETAMessage struct {
	JobID     kernel.UUID
	StartTime time.Time
}

func (CustomerETAMessage) Kind() MessageKind { return MessageCustomerUpdated }

// Notifier delivers messages. Delivery itself belongs to another service.
type Notifier interface {
	Send(ctx context.Context, msg Message) error
}

// JobStatusEvent is a job status change made by the core or reported by the
// job service.
type JobStatusEvent struct {
	JobID     kernel.UUID
	Status    fleet.OrderStatus
	ChangedAt time.Time

	// Deleted is set when the job itself was removed; Status is its last one.
	Deleted bool
}

// RemovesJob reports whether the job no longer belongs on any route.
func (e JobStatusEvent) RemovesJob() bool {
	return e.Deleted || e.Status == fleet.NotAssigned
}

// StatusEventSink receives status change events for downstream consumers.
type StatusEventSink interface {
	Publish(ctx context.Context, events []JobStatusEvent) error
}
