package commands

import (
	"errors"

	"routeopt/internal/core/domain/model/kernel"
	"routeopt/internal/core/domain/model/optimisation"
	"routeopt/internal/pkg/errs"
	"routeopt/internal/pkg/guard"
)

var ErrReorderSequenceCommandIsNotConstructed = errors.New(
	"ReorderSequenceCommand must be created via NewReorderSequenceCommand constructor",
)

// ReorderSequenceCommand sets a new order for the points of a route. The
// sequence lists every point except breaks, which are placed again.
type ReorderSequenceCommand struct { //nolint:recvcheck //using for validation
	optimisationID kernel.UUID
	merchantID     kernel.UUID
	initiator      optimisation.Initiator
	routeID        kernel.UUID
	sequence       []kernel.UUID
	force          bool

	guard guard.ConstructorGuard
}

func NewReorderSequenceCommand(
	optimisationID, merchantID kernel.UUID,
	initiator optimisation.Initiator,
	routeID kernel.UUID,
	sequence []kernel.UUID,
	force bool,
) (ReorderSequenceCommand, error) {
	if err := errors.Join(
		optimisationID.Validate(),
		validateMerchant(merchantID),
		initiator.Validate(),
		routeID.Validate(),
		validateSequence(sequence),
	); err != nil {
		return ReorderSequenceCommand{}, err
	}
	return ReorderSequenceCommand{
		optimisationID: optimisationID,
		merchantID:     merchantID,
		initiator:      initiator,
		routeID:        routeID,
		sequence:       sequence,
		force:          force,
		guard:          guard.NewConstructorGuard(),
	}, nil
}

func (c ReorderSequenceCommand) Validate() error {
	return c.guard.Validate(ErrReorderSequenceCommandIsNotConstructed)
}

func (c ReorderSequenceCommand) OptimisationID() kernel.UUID {
	return c.optimisationID
}

func (c ReorderSequenceCommand) MerchantID() kernel.UUID {
	return c.merchantID
}

func (c ReorderSequenceCommand) Initiator() optimisation.Initiator {
	return c.initiator
}

func (c ReorderSequenceCommand) RouteID() kernel.UUID {
	return c.routeID
}

func (c ReorderSequenceCommand) Sequence() []kernel.UUID {
	return c.sequence
}

func (c ReorderSequenceCommand) Force() bool {
	return c.force
}

func validateSequence(ids []kernel.UUID) error {
	if len(ids) == 0 {
		return errs.NewValueIsRequiredError("sequence")
	}
	for _, id := range ids {
		if err := id.Validate(); err != nil {
			return errs.NewValueIsInvalidErrorWithCause("sequence", err)
		}
	}
	return nil
}
