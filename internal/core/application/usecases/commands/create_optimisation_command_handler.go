package commands

import (
	"context"
	"fmt"
	"time"

	"routeopt/internal/core/domain/model/fleet"
	"routeopt/internal/core/domain/model/kernel"
	"routeopt/internal/core/domain/model/optimisation"
	"routeopt/internal/core/domain/model/task"
	"routeopt/internal/core/domain/services"
	"routeopt/internal/core/ports"

	"github.com/samber/lo"
)

// CreateOptimisationCommandHandler validates an optimisation request, persists the
// optimisation in Created state together with a Pending solver task and hands the
// task over to the queue.
//
// Example:
//
//	handler := NewCreateOptimisationCommandHandler(uowFactory, fleetDir, jobDir, queue, clock)
//	if err := handler.Handle(ctx, cmd); err != nil {
//	    return err // validation errors are returned before anything is stored
//	}
type CreateOptimisationCommandHandler struct {
	uowFactory UoWFactory
	dirs       directories
	queue      ports.TaskQueue
	clock      ports.Clock
	validator  services.OptionsValidator
}

func NewCreateOptimisationCommandHandler(
	uowFactory UoWFactory,
	fleetDirectory ports.FleetDirectory,
	jobDirectory ports.JobDirectory,
	queue ports.TaskQueue,
	clock ports.Clock,
) CreateOptimisationCommandHandler {
	return CreateOptimisationCommandHandler{
		uowFactory: uowFactory,
		dirs:       directories{fleet: fleetDirectory, jobs: jobDirectory},
		queue:      queue,
		clock:      clock,
		validator:  services.NewOptionsValidator(),
	}
}

// Handle stores nothing when validation fails. The task is queued only after
// the transaction is committed, so a worker always finds it.
func (h *CreateOptimisationCommandHandler) Handle(ctx context.Context, cmd CreateOptimisationCommand) error {
	if err := cmd.Validate(); err != nil {
		return err
	}

	now := h.clock.Now()
	merchant, err := h.dirs.fleet.GetMerchant(ctx, cmd.MerchantID())
	if err != nil {
		return fmt.Errorf("load merchant: %w", err)
	}
	day := dayIn(cmd.Day(), merchant.Tz())

	options, err := h.withEligibleJobs(ctx, merchant, cmd.Type(), day, cmd.Options())
	if err != nil {
		return err
	}
	in, err := h.dirs.optionsInput(ctx, merchant, cmd.Type(), day, now, options)
	if err != nil {
		return err
	}
	if _, err = h.validator.Validate(in); err != nil {
		return err
	}

	o, err := optimisation.NewRouteOptimisation(
		cmd.OptimisationID(), merchant.ID, cmd.Initiator(), day, cmd.Type(), options, now)
	if err != nil {
		return err
	}
	t, err := task.NewOptimisationTask(kernel.NewUUID(), o.ID(), task.KindBuild, now)
	if err != nil {
		return err
	}

	uow := h.uowFactory.Create()
	if err = uow.Begin(ctx); err != nil {
		return err
	}

	defer func() {
		_ = uow.Rollback(ctx)
	}()

	if err = uow.OptimisationRepository().Add(ctx, o); err != nil {
		return err
	}
	if err = uow.TaskRepository().Add(ctx, t); err != nil {
		return err
	}
	if err = uow.Commit(ctx); err != nil {
		return err
	}

	return h.queue.Enqueue(ctx, o.ID())
}

// withEligibleJobs fills the job set of a solo optimisation requested without
// jobs with everything the driver may deliver that day.
func (h *CreateOptimisationCommandHandler) withEligibleJobs(
	ctx context.Context,
	merchant fleet.Merchant,
	typ optimisation.Type,
	day time.Time,
	options optimisation.Options,
) (optimisation.Options, error) {
	if typ != optimisation.Solo || len(options.JobIDs) > 0 || len(options.DriverIDs) != 1 {
		return options, nil
	}
	driverID := options.DriverIDs[0]
	jobs, err := h.dirs.jobs.FindEligibleJobs(ctx, merchant.ID, day, &driverID)
	if err != nil {
		return optimisation.Options{}, fmt.Errorf("find eligible jobs: %w", err)
	}
	return options.WithJobs(lo.Map(jobs, func(j fleet.Job, _ int) kernel.UUID { return j.ID })), nil
}
