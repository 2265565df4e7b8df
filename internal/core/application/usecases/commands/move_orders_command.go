package commands

import (
	"errors"

	"routeopt/internal/core/domain/model/kernel"
	"routeopt/internal/core/domain/model/optimisation"
	"routeopt/internal/pkg/errs"
	"routeopt/internal/pkg/guard"
)

var ErrMoveOrdersCommandIsNotConstructed = errors.New(
	"MoveOrdersCommand must be created via NewMoveOrdersCommand constructor",
)

// MoveOrdersCommand moves job points of one route to another driver.
//
// Selecting a pickup or a delivery moves every point of its job. Conflicts that
// the caller may accept are reported as a forcible errs.ConflictError; the same
// request with force set applies the move anyway.
type MoveOrdersCommand struct { //nolint:recvcheck //using for validation
	optimisationID kernel.UUID
	merchantID     kernel.UUID
	initiator      optimisation.Initiator
	routeID        kernel.UUID
	pointIDs       []kernel.UUID
	targetDriverID kernel.UUID
	force          bool

	guard guard.ConstructorGuard
}

func NewMoveOrdersCommand(
	optimisationID, merchantID kernel.UUID,
	initiator optimisation.Initiator,
	routeID kernel.UUID,
	pointIDs []kernel.UUID,
	targetDriverID kernel.UUID,
	force bool,
) (MoveOrdersCommand, error) {
	cmd := MoveOrdersCommand{
		force: force,
		guard: guard.NewConstructorGuard(),
	}
	if err := errors.Join(
		optimisationID.Validate(),
		validateMerchant(merchantID),
		initiator.Validate(),
		routeID.Validate(),
		cmd.setPointIDs(pointIDs),
		cmd.setTargetDriverID(targetDriverID),
	); err != nil {
		return MoveOrdersCommand{}, err
	}
	cmd.optimisationID = optimisationID
	cmd.merchantID = merchantID
	cmd.initiator = initiator
	cmd.routeID = routeID
	return cmd, nil
}

func (c MoveOrdersCommand) Validate() error {
	return c.guard.Validate(ErrMoveOrdersCommandIsNotConstructed)
}

func (c MoveOrdersCommand) OptimisationID() kernel.UUID {
	return c.optimisationID
}

func (c MoveOrdersCommand) MerchantID() kernel.UUID {
	return c.merchantID
}

func (c MoveOrdersCommand) Initiator() optimisation.Initiator {
	return c.initiator
}

// RouteID is the source route.
func (c MoveOrdersCommand) RouteID() kernel.UUID {
	return c.routeID
}

func (c MoveOrdersCommand) PointIDs() []kernel.UUID {
	return c.pointIDs
}

func (c MoveOrdersCommand) TargetDriverID() kernel.UUID {
	return c.targetDriverID
}

func (c MoveOrdersCommand) Force() bool {
	return c.force
}

func (c *MoveOrdersCommand) setPointIDs(ids []kernel.UUID) error {
	if len(ids) == 0 {
		return errs.NewValueIsRequiredError("points")
	}
	for _, id := range ids {
		if err := id.Validate(); err != nil {
			return errs.NewValueIsInvalidErrorWithCause("points", err)
		}
	}
	c.pointIDs = ids
	return nil
}

func (c *MoveOrdersCommand) setTargetDriverID(id kernel.UUID) error {
	if err := id.Validate(); err != nil {
		return errs.NewValueIsRequiredErrorWithCause("target driver", err)
	}
	c.targetDriverID = id
	return nil
}
