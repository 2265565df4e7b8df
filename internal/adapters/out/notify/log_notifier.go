// Package notify hands messages and status events to the process log. It
// stands in for the notification service when none is configured.
package notify

import (
	"context"
	"log/slog"

	"routeopt/internal/core/ports"
)

var (
	_ ports.Notifier        = (*LogNotifier)(nil)
	_ ports.StatusEventSink = (*LogEventSink)(nil)
)

type LogNotifier struct {
	logger *slog.Logger
}

func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger.With("component", "LogNotifier")}
}

func (n *LogNotifier) Send(ctx context.Context, msg ports.Message) error {
	n.logger.InfoContext(ctx, "notification", append([]any{"kind", string(msg.Kind())}, attrs(msg)...)...)
	return nil
}

func attrs(msg ports.Message) []any {
	switch m := msg.(type) {
	case ports.RouteRemovedMessage:
		return []any{"optimisation_id", m.OptimisationID, "route_id", m.RouteID, "driver_id", m.DriverID}
	case ports.RouteChangedMessage:
		return []any{"optimisation_id", m.OptimisationID, "route_id", m.RouteID, "driver_id", m.DriverID}
	case ports.JobsAssignedMessage:
		return []any{"driver_id", m.DriverID, "jobs", len(m.JobIDs)}
	case ports.JobsUnassignedMessage:
		return []any{"driver_id", m.DriverID, "jobs", len(m.JobIDs)}
	case ports.CustomerETAMessage:
		return []any{"job_id", m.JobID, "start_time", m.StartTime}
	}
	return nil
}

type LogEventSink struct {
	logger *slog.Logger
}

func NewLogEventSink(logger *slog.Logger) *LogEventSink {
	return &LogEventSink{logger: logger.With("component", "LogEventSink")}
}

func (s *LogEventSink) Publish(ctx context.Context, events []ports.JobStatusEvent) error {
	for _, e := range events {
		s.logger.InfoContext(ctx, "job status changed",
			"job_id", e.JobID, "status", string(e.Status), "changed_at", e.ChangedAt)
	}
	return nil
}
