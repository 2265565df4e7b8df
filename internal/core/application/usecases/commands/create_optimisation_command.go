package commands

import (
	"errors"
	"time"

	"routeopt/internal/core/domain/model/kernel"
	"routeopt/internal/core/domain/model/optimisation"
	"routeopt/internal/pkg/errs"
	"routeopt/internal/pkg/guard"
)

var ErrCreateOptimisationCommandIsNotConstructed = errors.New(
	"CreateOptimisationCommand must be created via NewCreateOptimisationCommand constructor",
)

// CreateOptimisationCommand represents a request to plan the routes of a merchant for one day.
// The solver itself runs later on a background worker; the command only validates
// the request and queues the work.
//
// Example:
//
//	id := kernel.NewUUID()
//	cmd, err := NewCreateOptimisationCommand(id, merchantID, initiator, day, optimisation.Advanced, options)
//	if err != nil {
//	    return fmt.Errorf("invalid optimisation request: %w", err)
//	}
//
//	if err := handler.Handle(ctx, cmd); err != nil {
//	    return fmt.Errorf("failed to create optimisation: %w", err)
//	}
//	// poll GET /optimisations/{id}/task until the solver finishes
type CreateOptimisationCommand struct { //nolint:recvcheck //using for validation
	optimisationID kernel.UUID
	merchantID     kernel.UUID
	initiator      optimisation.Initiator
	day            time.Time
	typ            optimisation.Type
	options        optimisation.Options

	guard guard.ConstructorGuard
}

// NewCreateOptimisationCommand checks the shape of the request. Checks that need
// merchant data happen in the handler.
func NewCreateOptimisationCommand(
	optimisationID kernel.UUID,
	merchantID kernel.UUID,
	initiator optimisation.Initiator,
	day time.Time,
	typ optimisation.Type,
	options optimisation.Options,
) (CreateOptimisationCommand, error) {
	cmd := CreateOptimisationCommand{
		guard: guard.NewConstructorGuard(),
	}

	if err := errors.Join(
		cmd.setOptimisationID(optimisationID),
		cmd.setMerchantID(merchantID),
		cmd.setInitiator(initiator),
		cmd.setDay(day),
		cmd.setType(typ),
		cmd.setOptions(options),
	); err != nil {
		return CreateOptimisationCommand{}, err
	}

	return cmd, nil
}

// Validate ensures the command was created through the constructor.
func (c CreateOptimisationCommand) Validate() error {
	return c.guard.Validate(ErrCreateOptimisationCommandIsNotConstructed)
}

func (c CreateOptimisationCommand) OptimisationID() kernel.UUID {
	return c.optimisationID
}

func (c CreateOptimisationCommand) MerchantID() kernel.UUID {
	return c.merchantID
}

func (c CreateOptimisationCommand) Initiator() optimisation.Initiator {
	return c.initiator
}

func (c CreateOptimisationCommand) Day() time.Time {
	return c.day
}

func (c CreateOptimisationCommand) Type() optimisation.Type {
	return c.typ
}

func (c CreateOptimisationCommand) Options() optimisation.Options {
	return c.options
}

func (c *CreateOptimisationCommand) setOptimisationID(id kernel.UUID) error {
	if err := id.Validate(); err != nil {
		return err
	}
	c.optimisationID = id
	return nil
}

func (c *CreateOptimisationCommand) setMerchantID(id kernel.UUID) error {
	if err := id.Validate(); err != nil {
		return errs.NewValueIsRequiredErrorWithCause("merchant", err)
	}
	c.merchantID = id
	return nil
}

func (c *CreateOptimisationCommand) setInitiator(initiator optimisation.Initiator) error {
	if err := initiator.Validate(); err != nil {
		return err
	}
	c.initiator = initiator
	return nil
}

func (c *CreateOptimisationCommand) setDay(day time.Time) error {
	if day.IsZero() {
		return errs.NewValueIsRequiredError("day")
	}
	c.day = day
	return nil
}

func (c *CreateOptimisationCommand) setType(typ optimisation.Type) error {
	if err := typ.Validate(); err != nil {
		return err
	}
	c.typ = typ
	return nil
}

func (c *CreateOptimisationCommand) setOptions(options optimisation.Options) error {
	if err := options.Validate(); err != nil {
		return err
	}
	c.options = options
	return nil
}
