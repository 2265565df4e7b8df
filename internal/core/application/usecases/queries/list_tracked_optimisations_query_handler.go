package queries

import (
	"context"

	"routeopt/internal/core/domain/model/kernel"
	"routeopt/internal/core/domain/model/optimisation"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type ListTrackedOptimisationsQueryHandler struct {
	db *gorm.DB
}

func NewListTrackedOptimisationsQueryHandler(db *gorm.DB) ListTrackedOptimisationsQueryHandler {
	return ListTrackedOptimisationsQueryHandler{db: db}
}

// Handle returns ids of completed and running optimisations, oldest first.
func (h ListTrackedOptimisationsQueryHandler) Handle(
	ctx context.Context,
	query ListTrackedOptimisationsQuery,
) ([]kernel.UUID, error) {
	if err := query.Validate(); err != nil {
		return nil, err
	}

	rows, err := h.db.WithContext(ctx).Raw(`
		SELECT id
		FROM route_optimisations
		WHERE state IN (?, ?)
		ORDER BY created_at
	`, string(optimisation.Completed), string(optimisation.Running)).Rows()
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanIDs(rows)
}

type idRows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}

func scanIDs(rows idRows) ([]kernel.UUID, error) {
	ids := make([]kernel.UUID, 0)
	for rows.Next() {
		var raw uuid.UUID
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		id, err := kernel.UUIDFromBytes(raw[:])
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
