package queries

import (
	"errors"

	"routeopt/internal/pkg/guard"
)

var (
	ErrListTrackedOptimisationsQueryIsNotConstructed = errors.New(
		"ListTrackedOptimisationsQuery must be created via NewListTrackedOptimisationsQuery constructor",
	)
)

// ListTrackedOptimisationsQuery lists the optimisations of every merchant
// whose routes still follow job statuses, for the periodic state sync.
type ListTrackedOptimisationsQuery struct {
	guard guard.ConstructorGuard
}

func NewListTrackedOptimisationsQuery() ListTrackedOptimisationsQuery {
	return ListTrackedOptimisationsQuery{
		guard: guard.NewConstructorGuard(),
	}
}

func (q ListTrackedOptimisationsQuery) Validate() error {
	return q.guard.Validate(ErrListTrackedOptimisationsQueryIsNotConstructed)
}
