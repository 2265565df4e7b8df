package ports

import (
	"context"
	"time"

	"routeopt/internal/core/domain/model/fleet"
	"routeopt/internal/core/domain/model/kernel"
	"routeopt/internal/pkg/errs"
)

// ErrJobNotAssignable is returned when a job changed status after it was
// planned and can no longer be given to a driver.
var ErrJobNotAssignable = errs.NewConflictError("Job status changed, it can not be assigned")

// FleetDirectory is the read model of merchant entities owned by other services.
// Lookups by ids silently omit ids that do not belong to the merchant.
type FleetDirectory interface {
	GetMerchant(ctx context.Context, merchantID kernel.UUID) (fleet.Merchant, error)

	// GetDrivers returns drivers with their schedule for the day.
	GetDrivers(ctx context.Context, merchantID kernel.UUID, ids []kernel.UUID, day time.Time) ([]fleet.Driver, error)

	GetHubs(ctx context.Context, merchantID kernel.UUID, ids []kernel.UUID) ([]fleet.Hub, error)
	GetLocations(ctx context.Context, merchantID kernel.UUID, ids []kernel.UUID) ([]fleet.Location, error)
}

// JobDirectory reads jobs and changes their assignment in the job service.
type JobDirectory interface {
	GetJobs(ctx context.Context, merchantID kernel.UUID, ids []kernel.UUID) ([]fleet.Job, error)

	// FindEligibleJobs returns jobs deliverable on the day that are not
	// assigned, or assigned to driverID when it is set.
	FindEligibleJobs(ctx context.Context, merchantID kernel.UUID, day time.Time, driverID *kernel.UUID) ([]fleet.Job, error)

	// Assign sets driver and ASSIGNED status on jobs that are NOT_ASSIGNED or
	// ASSIGNED. If any job is in another status or unknown nothing changes and
	// ErrJobNotAssignable is returned.
	Assign(ctx context.Context, driverID kernel.UUID, jobIDs []kernel.UUID) error

	// Unassign moves jobs that are still ASSIGNED back to NOT_ASSIGNED and
	// returns the ids it changed. Jobs in other statuses are left untouched.
	Unassign(ctx context.Context, jobIDs []kernel.UUID) ([]kernel.UUID, error)
}
