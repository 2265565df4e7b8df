package commands

import (
	"errors"

	"routeopt/internal/core/domain/model/kernel"
	"routeopt/internal/pkg/guard"
)

var ErrRunOptimisationCommandIsNotConstructed = errors.New(
	"RunOptimisationCommand must be created via NewRunOptimisationCommand constructor",
)

// RunOptimisationCommand asks a worker to execute the pending solver task of an optimisation.
// The kind of the run (build or refresh) is taken from the task.
type RunOptimisationCommand struct { //nolint:recvcheck //using for validation
	optimisationID kernel.UUID

	guard guard.ConstructorGuard
}

func NewRunOptimisationCommand(optimisationID kernel.UUID) (RunOptimisationCommand, error) {
	if err := optimisationID.Validate(); err != nil {
		return RunOptimisationCommand{}, err
	}
	return RunOptimisationCommand{
		optimisationID: optimisationID,
		guard:          guard.NewConstructorGuard(),
	}, nil
}

func (c RunOptimisationCommand) Validate() error {
	return c.guard.Validate(ErrRunOptimisationCommandIsNotConstructed)
}

func (c RunOptimisationCommand) OptimisationID() kernel.UUID {
	return c.optimisationID
}
