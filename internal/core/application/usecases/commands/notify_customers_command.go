package commands

import (
	"errors"

	"routeopt/internal/core/domain/model/kernel"
	"routeopt/internal/pkg/guard"
)

var ErrNotifyCustomersCommandIsNotConstructed = errors.New(
	"NotifyCustomersCommand must be created via NewNotifyCustomersCommand constructor",
)

// NotifyCustomersCommand tells customers the planned start times of their jobs.
type NotifyCustomersCommand struct { //nolint:recvcheck //using for validation
	optimisationID kernel.UUID
	merchantID     kernel.UUID

	guard guard.ConstructorGuard
}

func NewNotifyCustomersCommand(optimisationID, merchantID kernel.UUID) (NotifyCustomersCommand, error) {
	if err := errors.Join(optimisationID.Validate(), validateMerchant(merchantID)); err != nil {
		return NotifyCustomersCommand{}, err
	}
	return NotifyCustomersCommand{
		optimisationID: optimisationID,
		merchantID:     merchantID,
		guard:          guard.NewConstructorGuard(),
	}, nil
}

func (c NotifyCustomersCommand) Validate() error {
	return c.guard.Validate(ErrNotifyCustomersCommandIsNotConstructed)
}

func (c NotifyCustomersCommand) OptimisationID() kernel.UUID {
	return c.optimisationID
}

func (c NotifyCustomersCommand) MerchantID() kernel.UUID {
	return c.merchantID
}
