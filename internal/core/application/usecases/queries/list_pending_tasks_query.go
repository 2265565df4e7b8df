package queries

import (
	"errors"

	"routeopt/internal/pkg/guard"
)

var (
	ErrListPendingTasksQueryIsNotConstructed = errors.New(
		"ListPendingTasksQuery must be created via NewListPendingTasksQuery constructor",
	)
)

// ListPendingTasksQuery finds solver tasks that were queued but never picked
// up, typically because the process restarted.
type ListPendingTasksQuery struct {
	guard guard.ConstructorGuard
}

func NewListPendingTasksQuery() ListPendingTasksQuery {
	return ListPendingTasksQuery{
		guard: guard.NewConstructorGuard(),
	}
}

func (q ListPendingTasksQuery) Validate() error {
	return q.guard.Validate(ErrListPendingTasksQueryIsNotConstructed)
}
