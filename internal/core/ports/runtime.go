package ports

import (
	"context"
	"time"

	"routeopt/internal/core/domain/model/kernel"
)

// Clock abstracts the current time.
type Clock interface {
	Now() time.Time
}

// SolverLock guards an optimisation against concurrent solver runs.
type SolverLock interface {
	// TryLock returns false when the key is held by somebody else.
	TryLock(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Unlock(ctx context.Context, key string) error
}

// TaskQueue hands optimisation tasks over to background workers.
type TaskQueue interface {
	Enqueue(ctx context.Context, optimisationID kernel.UUID) error
}
