package commands

import (
	"context"

	"routeopt/internal/core/domain/services"
	"routeopt/internal/core/ports"
)

type SyncOptimisationStateCommandHandler struct {
	uowFactory UoWFactory
	dirs       directories
	states     services.StateMachine
}

func NewSyncOptimisationStateCommandHandler(
	uowFactory UoWFactory,
	jobDirectory ports.JobDirectory,
) SyncOptimisationStateCommandHandler {
	return SyncOptimisationStateCommandHandler{
		uowFactory: uowFactory,
		dirs:       directories{jobs: jobDirectory},
		states:     services.NewStateMachine(),
	}
}

func (h *SyncOptimisationStateCommandHandler) Handle(ctx context.Context, cmd SyncOptimisationStateCommand) error {
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

	changed, err := syncState(ctx, uow, h.dirs, h.states, cmd.OptimisationID())
	if err != nil {
		return err
	}
	if !changed {
		return nil
	}
	return uow.Commit(ctx)
}
