// Package ports defines the contracts between the optimisation core and
// infrastructure: repositories for the aggregates it owns and the
// collaborators it consumes (fleet and job directories, distance provider,
// notifier, event sink, solver lock).
package ports

import (
	"context"
	"time"

	"routeopt/internal/core/domain/model/kernel"
	"routeopt/internal/core/domain/model/optimisation"
	"routeopt/internal/core/domain/model/route"
	"routeopt/internal/core/domain/model/task"
)

// OptimisationRepository defines the persistence contract for RouteOptimisation aggregates.
type OptimisationRepository interface {
	// Add persists a new optimisation.
	Add(ctx context.Context, o *optimisation.RouteOptimisation) error

	// Update persists state, options, flags and the log of an existing optimisation.
	Update(ctx context.Context, o *optimisation.RouteOptimisation) error

	// Get retrieves an optimisation by id, removed ones included.
	// Returns errs.ObjectNotFoundError when it does not exist.
	Get(ctx context.Context, id kernel.UUID) (*optimisation.RouteOptimisation, error)

	// FindForDay returns the optimisations of a merchant for the day that are
	// not removed, failed or finished.
	FindForDay(ctx context.Context, merchantID kernel.UUID, day time.Time) ([]*optimisation.RouteOptimisation, error)

	// ListInStates returns optimisations of every merchant in the given states.
	ListInStates(ctx context.Context, states ...optimisation.State) ([]*optimisation.RouteOptimisation, error)
}

// RouteRepository defines the persistence contract for DriverRoute aggregates.
// Points are stored and loaded together with their route.
type RouteRepository interface {
	Add(ctx context.Context, r *route.DriverRoute) error

	// Update persists totals, state and replaces the points of the route.
	Update(ctx context.Context, r *route.DriverRoute) error

	// Delete removes a route with its points.
	Delete(ctx context.Context, id kernel.UUID) error

	Get(ctx context.Context, id kernel.UUID) (*route.DriverRoute, error)

	// GetForUpdate loads routes locking them until the transaction ends.
	// Rows are locked in id order so concurrent callers can not deadlock.
	GetForUpdate(ctx context.Context, ids []kernel.UUID) ([]*route.DriverRoute, error)

	ListByOptimisation(ctx context.Context, optimisationID kernel.UUID) ([]*route.DriverRoute, error)

	// FindOptimisationsByJob returns ids of optimisations with a point serving the job.
	FindOptimisationsByJob(ctx context.Context, jobID kernel.UUID) ([]kernel.UUID, error)
}

// TaskRepository defines the persistence contract for OptimisationTask entities.
type TaskRepository interface {
	Add(ctx context.Context, t *task.OptimisationTask) error
	Update(ctx context.Context, t *task.OptimisationTask) error

	// GetByOptimisation returns the task of an optimisation.
	GetByOptimisation(ctx context.Context, optimisationID kernel.UUID) (*task.OptimisationTask, error)

	// ListByStatus is used to resume queued tasks after a restart.
	ListByStatus(ctx context.Context, status task.Status) ([]*task.OptimisationTask, error)
}
