package commands

import (
	"context"

	"routeopt/internal/core/domain/model/kernel"
	"routeopt/internal/core/domain/model/optimisation"
	"routeopt/internal/core/domain/model/route"
	"routeopt/internal/core/domain/services"
	"routeopt/internal/core/ports"
	"routeopt/internal/pkg/errs"
)

func solverLockKey(optimisationID kernel.UUID) string {
	return "optimisation:" + optimisationID.String() + ":solver"
}

func errNotFound(name string, id kernel.UUID) error {
	return errs.NewObjectNotFoundError(name, id)
}

// getOptimisation loads an optimisation of the merchant. Removed ones and
// ones of another merchant are reported as not found.
func getOptimisation(
	ctx context.Context,
	repo ports.OptimisationRepository,
	id, merchantID kernel.UUID,
) (*optimisation.RouteOptimisation, error) {
	o, err := repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !o.MerchantID().IsEqual(merchantID) || o.IsRemoved() {
		return nil, errNotFound("optimisation", id)
	}
	return o, nil
}

// getManageable is getOptimisation for operations that change routes.
func getManageable(
	ctx context.Context,
	uow UoW,
	id, merchantID kernel.UUID,
) (*optimisation.RouteOptimisation, error) {
	o, err := getOptimisation(ctx, uow.OptimisationRepository(), id, merchantID)
	if err != nil {
		return nil, err
	}
	if err = ensureIdle(ctx, uow.TaskRepository(), id); err != nil {
		return nil, err
	}
	if !o.State().IsManageable() {
		return nil, ErrOptimisationIsNotManageable
	}
	return o, nil
}

// ensureIdle fails while the solver task of the optimisation is queued or running.
func ensureIdle(ctx context.Context, tasks ports.TaskRepository, id kernel.UUID) error {
	t, err := tasks.GetByOptimisation(ctx, id)
	if err != nil {
		return err
	}
	if t.Status().IsInFlight() {
		return ErrOptimisationBusy
	}
	return nil
}

// syncState derives the states of an optimisation and its routes from job
// statuses and stores what changed. An optimisation whose solver task is in
// flight keeps its own state.
func syncState(ctx context.Context, uow UoW, dirs directories, states services.StateMachine, id kernel.UUID) (bool, error) {
	o, err := uow.OptimisationRepository().Get(ctx, id)
	if err != nil {
		return false, err
	}
	if o.IsRemoved() {
		return false, nil
	}
	t, err := uow.TaskRepository().GetByOptimisation(ctx, id)
	if err != nil {
		return false, err
	}
	routes, err := uow.RouteRepository().ListByOptimisation(ctx, id)
	if err != nil {
		return false, err
	}
	var jobIDs []kernel.UUID
	for _, r := range routes {
		jobIDs = append(jobIDs, r.JobIDs()...)
	}
	jobs, err := dirs.jobsByID(ctx, o.MerchantID(), jobIDs)
	if err != nil {
		return false, err
	}

	before := make([]route.State, len(routes))
	for i, r := range routes {
		before[i] = r.State()
	}
	changed, err := states.Sync(o, routes, jobs, t.Status().IsInFlight())
	if err != nil || !changed {
		return false, err
	}
	for i, r := range routes {
		if r.State() == before[i] {
			continue
		}
		if err = uow.RouteRepository().Update(ctx, r); err != nil {
			return false, err
		}
	}
	if err = uow.OptimisationRepository().Update(ctx, o); err != nil {
		return false, err
	}
	return true, nil
}
