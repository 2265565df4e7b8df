package commands

import (
	"errors"

	"routeopt/internal/core/domain/model/kernel"
	"routeopt/internal/core/domain/model/optimisation"
	"routeopt/internal/pkg/errs"
	"routeopt/internal/pkg/guard"

	"github.com/samber/lo"
)

var ErrRefreshOptimisationCommandIsNotConstructed = errors.New(
	"RefreshOptimisationCommand must be created via NewRefreshOptimisationCommand constructor",
)

// RefreshOptimisationCommand adds jobs that became eligible after the optimisation
// was built. With a route id only jobs available to that route's driver are considered;
// advanced optimisations always need one. Job ids narrow the refresh to those jobs.
//
// Example:
//
//	cmd, _ := NewRefreshOptimisationCommand(optimisationID, merchantID, initiator, &routeID, nil)
//	err := handler.Handle(ctx, cmd)
//	if errors.Is(err, ErrNothingToRefresh) {
//	    // every eligible job is already part of the optimisation
//	}
type RefreshOptimisationCommand struct { //nolint:recvcheck //using for validation
	optimisationID kernel.UUID
	merchantID     kernel.UUID
	initiator      optimisation.Initiator
	routeID        *kernel.UUID
	jobIDs         []kernel.UUID

	guard guard.ConstructorGuard
}

func NewRefreshOptimisationCommand(
	optimisationID, merchantID kernel.UUID,
	initiator optimisation.Initiator,
	routeID *kernel.UUID,
	jobIDs []kernel.UUID,
) (RefreshOptimisationCommand, error) {
	cmd := RefreshOptimisationCommand{
		routeID: routeID,
		jobIDs:  lo.Uniq(jobIDs),
		guard:   guard.NewConstructorGuard(),
	}
	if err := errors.Join(
		optimisationID.Validate(),
		validateMerchant(merchantID),
		initiator.Validate(),
		validateJobIDs(jobIDs),
	); err != nil {
		return RefreshOptimisationCommand{}, err
	}
	cmd.optimisationID = optimisationID
	cmd.merchantID = merchantID
	cmd.initiator = initiator
	return cmd, nil
}

func (c RefreshOptimisationCommand) Validate() error {
	return c.guard.Validate(ErrRefreshOptimisationCommandIsNotConstructed)
}

func (c RefreshOptimisationCommand) OptimisationID() kernel.UUID {
	return c.optimisationID
}

func (c RefreshOptimisationCommand) MerchantID() kernel.UUID {
	return c.merchantID
}

func (c RefreshOptimisationCommand) Initiator() optimisation.Initiator {
	return c.initiator
}

// RouteID is nil when the whole optimisation is refreshed.
func (c RefreshOptimisationCommand) RouteID() *kernel.UUID {
	return c.routeID
}

// JobIDs is empty when every newly eligible job may join.
func (c RefreshOptimisationCommand) JobIDs() []kernel.UUID {
	return c.jobIDs
}

func validateMerchant(id kernel.UUID) error {
	if err := id.Validate(); err != nil {
		return errs.NewValueIsRequiredErrorWithCause("merchant", err)
	}
	return nil
}

func validateJobIDs(ids []kernel.UUID) error {
	for _, id := range ids {
		if err := id.Validate(); err != nil {
			return errs.NewValueIsInvalidErrorWithCause("jobs_ids", err)
		}
	}
	return nil
}
