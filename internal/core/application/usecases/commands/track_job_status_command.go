package commands

import (
	"errors"

	"routeopt/internal/core/ports"
	"routeopt/internal/pkg/errs"
	"routeopt/internal/pkg/guard"
)

var ErrTrackJobStatusCommandIsNotConstructed = errors.New(
	"TrackJobStatusCommand must be created via NewTrackJobStatusCommand constructor",
)

// TrackJobStatusCommand carries job status changes reported by the job service.
type TrackJobStatusCommand struct { //nolint:recvcheck //using for validation
	events []ports.JobStatusEvent

	guard guard.ConstructorGuard
}

func NewTrackJobStatusCommand(events []ports.JobStatusEvent) (TrackJobStatusCommand, error) {
	if len(events) == 0 {
		return TrackJobStatusCommand{}, errs.NewValueIsRequiredError("events")
	}
	for _, e := range events {
		if err := errors.Join(e.JobID.Validate(), e.Status.Validate()); err != nil {
			return TrackJobStatusCommand{}, err
		}
	}
	return TrackJobStatusCommand{
		events: events,
		guard:  guard.NewConstructorGuard(),
	}, nil
}

func (c TrackJobStatusCommand) Validate() error {
	return c.guard.Validate(ErrTrackJobStatusCommandIsNotConstructed)
}

func (c TrackJobStatusCommand) Events() []ports.JobStatusEvent {
	return c.events
}
