package commands

import (
	"context"
	"fmt"
	"log/slog"

	"routeopt/internal/core/domain/model/fleet"
	"routeopt/internal/core/domain/model/kernel"
	"routeopt/internal/core/ports"
	"routeopt/internal/pkg/throttle"

	"github.com/samber/lo"
)

// DeleteOptimisationCommandHandler removes optimisations. Unassignment runs in
// batches paced by a throttle window so downstream consumers of status events
// are not flooded; the optimisation is not locked while the loop waits.
type DeleteOptimisationCommandHandler struct {
	uowFactory UoWFactory
	jobs       ports.JobDirectory
	sink       ports.StatusEventSink
	limiter    *throttle.Window
	notifier   ports.Notifier
	clock      ports.Clock
	logger     *slog.Logger
}

func NewDeleteOptimisationCommandHandler(
	uowFactory UoWFactory,
	jobDirectory ports.JobDirectory,
	sink ports.StatusEventSink,
	limiter *throttle.Window,
	notifier ports.Notifier,
	clock ports.Clock,
	logger *slog.Logger,
) DeleteOptimisationCommandHandler {
	return DeleteOptimisationCommandHandler{
		uowFactory: uowFactory,
		jobs:       jobDirectory,
		sink:       sink,
		limiter:    limiter,
		notifier:   notifier,
		clock:      clock,
		logger:     logger.With("component", "DeleteOptimisation"),
	}
}

func (h *DeleteOptimisationCommandHandler) Handle(ctx context.Context, cmd DeleteOptimisationCommand) error {
	if err := cmd.Validate(); err != nil {
		return err
	}

	routes, err := h.snapshot(ctx, cmd)
	if err != nil {
		return err
	}

	var unassigned []kernel.UUID
	if cmd.Unassign() {
		if unassigned, err = h.unassign(ctx, routes.placed); err != nil {
			return err
		}
	}

	messages, err := h.remove(ctx, cmd, len(unassigned))
	if err != nil {
		return err
	}
	for driverID, ids := range routes.byDriver {
		if changed := lo.Intersect(ids, unassigned); len(changed) > 0 {
			messages = append(messages, ports.JobsUnassignedMessage{DriverID: driverID, JobIDs: changed})
		}
	}
	notifyAll(ctx, h.notifier, h.logger, messages)
	return nil
}

// deletedRoutes lists the jobs of an optimisation about to be removed.
type deletedRoutes struct {
	// placed are the jobs the optimisation assigned that are still routed.
	placed   []kernel.UUID
	byDriver map[kernel.UUID][]kernel.UUID
}

func (h *DeleteOptimisationCommandHandler) snapshot(ctx context.Context, cmd DeleteOptimisationCommand) (deletedRoutes, error) {
	uow := h.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return deletedRoutes{}, err
	}

	defer func() {
		_ = uow.Rollback(ctx)
	}()

	o, err := getOptimisation(ctx, uow.OptimisationRepository(), cmd.OptimisationID(), cmd.MerchantID())
	if err != nil {
		return deletedRoutes{}, err
	}
	if err = ensureIdle(ctx, uow.TaskRepository(), o.ID()); err != nil {
		return deletedRoutes{}, err
	}
	routes, err := uow.RouteRepository().ListByOptimisation(ctx, o.ID())
	if err != nil {
		return deletedRoutes{}, err
	}

	out := deletedRoutes{byDriver: make(map[kernel.UUID][]kernel.UUID, len(routes))}
	for _, r := range routes {
		ids := lo.Filter(r.JobIDs(), func(id kernel.UUID, _ int) bool { return o.IsPlacedJob(id) })
		out.placed = append(out.placed, ids...)
		out.byDriver[r.DriverID()] = append(out.byDriver[r.DriverID()], ids...)
	}
	out.placed = lo.Uniq(out.placed)
	return out, nil
}

// unassign releases jobs batch by batch. Each batch waits for room in the
// limiter before the job service is called.
func (h *DeleteOptimisationCommandHandler) unassign(ctx context.Context, ids []kernel.UUID) ([]kernel.UUID, error) {
	var changed []kernel.UUID
	for _, batch := range lo.Chunk(ids, h.limiter.Limit()) {
		if err := h.limiter.Acquire(ctx, len(batch)); err != nil {
			return changed, err
		}
		done, err := h.jobs.Unassign(ctx, batch)
		if err != nil {
			return changed, fmt.Errorf("unassign jobs: %w", err)
		}
		changed = append(changed, done...)

		now := h.clock.Now()
		events := lo.Map(done, func(id kernel.UUID, _ int) ports.JobStatusEvent {
			return ports.JobStatusEvent{JobID: id, Status: fleet.NotAssigned, ChangedAt: now}
		})
		if len(events) == 0 {
			continue
		}
		if err = h.sink.Publish(ctx, events); err != nil {
			h.logger.WarnContext(ctx, "failed to publish status events", "count", len(events), "error", err)
		}
	}
	return changed, nil
}

// remove deletes the routes and marks the optimisation removed.
func (h *DeleteOptimisationCommandHandler) remove(ctx context.Context, cmd DeleteOptimisationCommand, unassigned int) ([]ports.Message, error) {
	uow := h.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, err
	}

	defer func() {
		_ = uow.Rollback(ctx)
	}()

	o, err := getOptimisation(ctx, uow.OptimisationRepository(), cmd.OptimisationID(), cmd.MerchantID())
	if err != nil {
		return nil, err
	}
	routes, err := uow.RouteRepository().ListByOptimisation(ctx, o.ID())
	if err != nil {
		return nil, err
	}
	messages := make([]ports.Message, 0, len(routes))
	for _, r := range routes {
		if err = uow.RouteRepository().Delete(ctx, r.ID()); err != nil {
			return nil, err
		}
		messages = append(messages, routeRemoved(r))
	}
	if err = o.Remove(cmd.Initiator(), cmd.Unassign(), unassigned, h.clock.Now()); err != nil {
		return nil, err
	}
	if err = uow.OptimisationRepository().Update(ctx, o); err != nil {
		return nil, err
	}
	if err = uow.Commit(ctx); err != nil {
		return nil, err
	}
	h.logger.InfoContext(ctx, "optimisation removed",
		"optimisation_id", o.ID().String(),
		"routes", len(routes),
		"unassigned", unassigned,
	)
	return messages, nil
}
