package queries

import (
	"context"

	"routeopt/internal/core/domain/model/kernel"
	"routeopt/internal/core/domain/model/task"

	"gorm.io/gorm"
)

type ListPendingTasksQueryHandler struct {
	db *gorm.DB
}

func NewListPendingTasksQueryHandler(db *gorm.DB) ListPendingTasksQueryHandler {
	return ListPendingTasksQueryHandler{db: db}
}

// Handle returns optimisation ids of pending tasks in the order they were queued.
func (h ListPendingTasksQueryHandler) Handle(
	ctx context.Context,
	query ListPendingTasksQuery,
) ([]kernel.UUID, error) {
	if err := query.Validate(); err != nil {
		return nil, err
	}

	rows, err := h.db.WithContext(ctx).Raw(`
		SELECT optimisation_id
		FROM optimisation_tasks
		WHERE status = ?
		ORDER BY created_at
	`, task.Pending.String()).Rows()
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanIDs(rows)
}
