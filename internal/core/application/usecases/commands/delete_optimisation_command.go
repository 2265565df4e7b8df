package commands

import (
	"errors"

	"routeopt/internal/core/domain/model/kernel"
	"routeopt/internal/core/domain/model/optimisation"
	"routeopt/internal/pkg/guard"
)

var ErrDeleteOptimisationCommandIsNotConstructed = errors.New(
	"DeleteOptimisationCommand must be created via NewDeleteOptimisationCommand constructor",
)

// DeleteOptimisationCommand removes an optimisation with its routes. With
// unassign set, jobs the optimisation assigned and that are still ASSIGNED
// go back to NOT_ASSIGNED.
type DeleteOptimisationCommand struct { //nolint:recvcheck //using for validation
	optimisationID kernel.UUID
	merchantID     kernel.UUID
	initiator      optimisation.Initiator
	unassign       bool

	guard guard.ConstructorGuard
}

func NewDeleteOptimisationCommand(
	optimisationID, merchantID kernel.UUID,
	initiator optimisation.Initiator,
	unassign bool,
) (DeleteOptimisationCommand, error) {
	if err := errors.Join(
		optimisationID.Validate(),
		validateMerchant(merchantID),
		initiator.Validate(),
	); err != nil {
		return DeleteOptimisationCommand{}, err
	}
	return DeleteOptimisationCommand{
		optimisationID: optimisationID,
		merchantID:     merchantID,
		initiator:      initiator,
		unassign:       unassign,
		guard:          guard.NewConstructorGuard(),
	}, nil
}

func (c DeleteOptimisationCommand) Validate() error {
	return c.guard.Validate(ErrDeleteOptimisationCommandIsNotConstructed)
}

func (c DeleteOptimisationCommand) OptimisationID() kernel.UUID {
	return c.optimisationID
}

func (c DeleteOptimisationCommand) MerchantID() kernel.UUID {
	return c.merchantID
}

func (c DeleteOptimisationCommand) Initiator() optimisation.Initiator {
	return c.initiator
}

func (c DeleteOptimisationCommand) Unassign() bool {
	return c.unassign
}
