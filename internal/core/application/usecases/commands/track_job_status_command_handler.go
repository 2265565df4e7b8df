package commands

import (
	"context"
	"errors"
	"log/slog"

	"routeopt/internal/core/domain/model/kernel"
	"routeopt/internal/core/domain/model/route"
	"routeopt/internal/core/domain/services"
	"routeopt/internal/core/ports"

	"github.com/samber/lo"
)

// TrackJobStatusCommandHandler re-derives the state of every optimisation
// routing a job whose status changed. Jobs that were unassigned or deleted are
// taken off their routes first. Each optimisation is handled in its own
// transaction; a failure on one does not stop the others.
type TrackJobStatusCommandHandler struct {
	uowFactory UoWFactory
	dirs       directories
	states     services.StateMachine
	sequencer  services.Sequencer
	notifier   ports.Notifier
	logger     *slog.Logger
}

func NewTrackJobStatusCommandHandler(
	uowFactory UoWFactory,
	jobDirectory ports.JobDirectory,
	notifier ports.Notifier,
	logger *slog.Logger,
) TrackJobStatusCommandHandler {
	return TrackJobStatusCommandHandler{
		uowFactory: uowFactory,
		dirs:       directories{jobs: jobDirectory},
		states:     services.NewStateMachine(),
		sequencer:  services.NewSequencer(),
		notifier:   notifier,
		logger:     logger.With("component", "TrackJobStatus"),
	}
}

func (h *TrackJobStatusCommandHandler) Handle(ctx context.Context, cmd TrackJobStatusCommand) error {
	if err := cmd.Validate(); err != nil {
		return err
	}

	ids, err := h.affected(ctx, cmd)
	if err != nil {
		return err
	}
	removed := lo.Uniq(lo.FilterMap(cmd.Events(), func(e ports.JobStatusEvent, _ int) (kernel.UUID, bool) {
		return e.JobID, e.RemovesJob()
	}))

	var errs []error
	for _, id := range ids {
		messages, syncErr := h.sync(ctx, id, removed)
		if syncErr != nil {
			h.logger.ErrorContext(ctx, "failed to sync optimisation state", "optimisation_id", id.String(), "error", syncErr)
			errs = append(errs, syncErr)
			continue
		}
		notifyAll(ctx, h.notifier, h.logger, messages)
	}
	return errors.Join(errs...)
}

func (h *TrackJobStatusCommandHandler) affected(ctx context.Context, cmd TrackJobStatusCommand) ([]kernel.UUID, error) {
	uow := h.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, err
	}

	defer func() {
		_ = uow.Rollback(ctx)
	}()

	var ids []kernel.UUID
	for _, e := range cmd.Events() {
		found, err := uow.RouteRepository().FindOptimisationsByJob(ctx, e.JobID)
		if err != nil {
			return nil, err
		}
		ids = append(ids, found...)
	}
	return lo.Uniq(ids), nil
}

func (h *TrackJobStatusCommandHandler) sync(ctx context.Context, id kernel.UUID, removed []kernel.UUID) ([]ports.Message, error) {
	uow := h.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, err
	}

	defer func() {
		_ = uow.Rollback(ctx)
	}()

	messages, err := h.dropJobs(ctx, uow, id, removed)
	if err != nil {
		return nil, err
	}
	changed, err := syncState(ctx, uow, h.dirs, h.states, id)
	if err != nil {
		return nil, err
	}
	if !changed && len(messages) == 0 {
		return nil, nil
	}
	if err = uow.Commit(ctx); err != nil {
		return nil, err
	}
	return messages, nil
}

// dropJobs takes the removed jobs off the routes of an optimisation and its job
// set. A route left without job points is deleted.
func (h *TrackJobStatusCommandHandler) dropJobs(
	ctx context.Context,
	uow UoW,
	id kernel.UUID,
	removed []kernel.UUID,
) ([]ports.Message, error) {
	if len(removed) == 0 {
		return nil, nil
	}
	o, err := uow.OptimisationRepository().Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if o.IsRemoved() {
		return nil, nil
	}
	listed, err := uow.RouteRepository().ListByOptimisation(ctx, id)
	if err != nil {
		return nil, err
	}
	touched := lo.FilterMap(listed, func(r *route.DriverRoute, _ int) (kernel.UUID, bool) {
		return r.ID(), lo.Some(r.JobIDs(), removed)
	})
	if len(touched) == 0 {
		return nil, nil
	}
	routes, err := uow.RouteRepository().GetForUpdate(ctx, touched)
	if err != nil {
		return nil, err
	}

	gone := lo.SliceToMap(removed, func(id kernel.UUID) (kernel.UUID, bool) { return id, true })
	var messages []ports.Message
	for _, r := range routes {
		kept := lo.Reject(r.Points(), func(pt *route.RoutePoint, _ int) bool {
			jobs := pt.Ref().JobIDs()
			return pt.Kind().IsJob() && len(jobs) > 0 && lo.EveryBy(jobs, func(j kernel.UUID) bool { return gone[j] })
		})
		if len(kept) == len(r.Points()) {
			continue
		}
		if !hasJobPoints(kept) {
			if err = uow.RouteRepository().Delete(ctx, r.ID()); err != nil {
				return nil, err
			}
			messages = append(messages, routeRemoved(r))
			continue
		}
		h.sequencer.Number(kept)
		if err = r.ReplacePoints(kept); err != nil {
			return nil, err
		}
		if err = uow.RouteRepository().Update(ctx, r); err != nil {
			return nil, err
		}
		messages = append(messages, routeChanged(r))
	}

	if err = o.SetOptions(o.Options().WithoutJobs(removed)); err != nil {
		return nil, err
	}
	if err = uow.OptimisationRepository().Update(ctx, o); err != nil {
		return nil, err
	}
	h.logger.InfoContext(ctx, "jobs taken off routes",
		"optimisation_id", id.String(),
		"routes", len(routes),
	)
	return messages, nil
}
