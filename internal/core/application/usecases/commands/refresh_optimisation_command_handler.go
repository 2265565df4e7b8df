package commands

import (
	"context"
	"fmt"

	"routeopt/internal/core/domain/model/fleet"
	"routeopt/internal/core/domain/model/kernel"
	"routeopt/internal/core/domain/model/optimisation"
	"routeopt/internal/core/domain/model/task"
	"routeopt/internal/core/ports"
	"routeopt/internal/pkg/errs"

	"github.com/samber/lo"
)

// RefreshOptimisationCommandHandler extends the job set of an optimisation with
// newly eligible jobs and queues a refresh run of the solver. Routes are not
// touched here; the run keeps what drivers already did.
type RefreshOptimisationCommandHandler struct {
	uowFactory UoWFactory
	dirs       directories
	queue      ports.TaskQueue
	clock      ports.Clock
}

func NewRefreshOptimisationCommandHandler(
	uowFactory UoWFactory,
	fleetDirectory ports.FleetDirectory,
	jobDirectory ports.JobDirectory,
	queue ports.TaskQueue,
	clock ports.Clock,
) RefreshOptimisationCommandHandler {
	return RefreshOptimisationCommandHandler{
		uowFactory: uowFactory,
		dirs:       directories{fleet: fleetDirectory, jobs: jobDirectory},
		queue:      queue,
		clock:      clock,
	}
}

// Handle returns ErrNothingToRefresh, after logging it, when no job is new.
// A failed optimisation is always run again so it can recover.
func (h *RefreshOptimisationCommandHandler) Handle(ctx context.Context, cmd RefreshOptimisationCommand) error {
	if err := cmd.Validate(); err != nil {
		return err
	}

	uow := h.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return err
	}

	defer func() {
		_ = uow.Rollback(ctx)
	}()

	o, err := getOptimisation(ctx, uow.OptimisationRepository(), cmd.OptimisationID(), cmd.MerchantID())
	if err != nil {
		return err
	}
	if err = ensureIdle(ctx, uow.TaskRepository(), o.ID()); err != nil {
		return err
	}
	failed := o.State() == optimisation.Failed
	if !o.State().IsManageable() && !failed {
		return ErrOptimisationIsNotManageable
	}
	t, err := uow.TaskRepository().GetByOptimisation(ctx, o.ID())
	if err != nil {
		return err
	}

	driverID, err := h.driverFilter(ctx, uow, o, cmd.RouteID())
	if err != nil {
		return err
	}
	merchant, err := h.dirs.fleet.GetMerchant(ctx, o.MerchantID())
	if err != nil {
		return fmt.Errorf("load merchant: %w", err)
	}
	eligible, err := h.dirs.jobs.FindEligibleJobs(ctx, o.MerchantID(), dayIn(o.Day(), merchant.Tz()), driverID)
	if err != nil {
		return fmt.Errorf("find eligible jobs: %w", err)
	}
	candidates := lo.Map(eligible, func(j fleet.Job, _ int) kernel.UUID { return j.ID })
	if requested := cmd.JobIDs(); len(requested) > 0 {
		// ids of other merchants or of ineligible jobs are ignored
		candidates = lo.Filter(candidates, func(id kernel.UUID, _ int) bool { return lo.Contains(requested, id) })
	}
	delta := lo.Without(candidates, o.Options().JobIDs...)

	now := h.clock.Now()
	if len(delta) == 0 && !failed {
		o.AppendLog(optimisation.EventNothingToRefresh, optimisation.LogParams{}, now)
		if err = uow.OptimisationRepository().Update(ctx, o); err != nil {
			return err
		}
		if err = uow.Commit(ctx); err != nil {
			return err
		}
		return ErrNothingToRefresh
	}

	if err = o.SetOptions(o.Options().WithJobs(delta)); err != nil {
		return err
	}
	o.AppendLog(optimisation.EventRefreshStarted, optimisation.LogParams{Initiator: cmd.Initiator().Label()}, now)
	if err = t.Rearm(task.KindRefresh, now); err != nil {
		return err
	}

	if err = uow.OptimisationRepository().Update(ctx, o); err != nil {
		return err
	}
	if err = uow.TaskRepository().Update(ctx, t); err != nil {
		return err
	}
	if err = uow.Commit(ctx); err != nil {
		return err
	}

	return h.queue.Enqueue(ctx, o.ID())
}

// driverFilter picks the driver whose assigned jobs may join the refresh.
// Without one only unassigned jobs are eligible. Advanced optimisations are
// refreshed one route at a time.
func (h *RefreshOptimisationCommandHandler) driverFilter(
	ctx context.Context,
	uow UoW,
	o *optimisation.RouteOptimisation,
	routeID *kernel.UUID,
) (*kernel.UUID, error) {
	if routeID != nil {
		r, err := uow.RouteRepository().Get(ctx, *routeID)
		if err != nil {
			return nil, err
		}
		if !r.OptimisationID().IsEqual(o.ID()) {
			return nil, errNotFound("route", *routeID)
		}
		id := r.DriverID()
		return &id, nil
	}
	if o.Type() == optimisation.Advanced {
		return nil, errs.NewValueIsRequiredError("route")
	}
	if o.Type() == optimisation.Solo && len(o.Options().DriverIDs) == 1 {
		id := o.Options().DriverIDs[0]
		return &id, nil
	}
	return nil, nil
}
