package commands

import (
	"errors"

	"routeopt/internal/core/domain/model/kernel"
	"routeopt/internal/pkg/guard"
)

var ErrSyncOptimisationStateCommandIsNotConstructed = errors.New(
	"SyncOptimisationStateCommand must be created via NewSyncOptimisationStateCommand constructor",
)

// SyncOptimisationStateCommand re-derives route and optimisation states from
// the current job statuses.
type SyncOptimisationStateCommand struct { //nolint:recvcheck //using for validation
	optimisationID kernel.UUID

	guard guard.ConstructorGuard
}

func NewSyncOptimisationStateCommand(optimisationID kernel.UUID) (SyncOptimisationStateCommand, error) {
	if err := optimisationID.Validate(); err != nil {
		return SyncOptimisationStateCommand{}, err
	}
	return SyncOptimisationStateCommand{
		optimisationID: optimisationID,
		guard:          guard.NewConstructorGuard(),
	}, nil
}

func (c SyncOptimisationStateCommand) Validate() error {
	return c.guard.Validate(ErrSyncOptimisationStateCommandIsNotConstructed)
}

func (c SyncOptimisationStateCommand) OptimisationID() kernel.UUID {
	return c.optimisationID
}
