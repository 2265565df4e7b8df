package queries

import (
	"context"
	"database/sql"
	"errors"

	"routeopt/internal/core/domain/model/kernel"
	"routeopt/internal/core/domain/model/optimisation"
	"routeopt/internal/pkg/errs"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GetTaskStatusQueryHandler reports the solver task of an optimisation
// together with the optimisation state, so a poller can tell a failed
// solver run from one that completed.
type GetTaskStatusQueryHandler struct {
	db *gorm.DB
}

func NewGetTaskStatusQueryHandler(db *gorm.DB) GetTaskStatusQueryHandler {
	return GetTaskStatusQueryHandler{db: db}
}

func (h GetTaskStatusQueryHandler) Handle(
	ctx context.Context,
	query GetTaskStatusQuery,
) (*GetTaskStatusQueryResponse, error) {
	if err := query.Validate(); err != nil {
		return nil, err
	}

	var (
		resp               GetTaskStatusQueryResponse
		id, optimisationID uuid.UUID
	)
	err := h.db.WithContext(ctx).Raw(`
		SELECT
			t.id,
			t.optimisation_id,
			t.kind,
			t.status,
			t.error,
			o.state,
			t.created_at,
			t.started_at,
			t.finished_at
		FROM optimisation_tasks t
		JOIN route_optimisations o ON o.id = t.optimisation_id
		WHERE t.optimisation_id = ? AND o.merchant_id = ? AND o.state <> ?
	`, query.OptimisationID().Bytes(), query.MerchantID().Bytes(), string(optimisation.Removed)).Row().Scan(
		&id,
		&optimisationID,
		&resp.Kind,
		&resp.Status,
		&resp.Error,
		&resp.OptimisationState,
		&resp.CreatedAt,
		&resp.StartedAt,
		&resp.FinishedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errs.NewObjectNotFoundError("task", query.OptimisationID().String())
	}
	if err != nil {
		return nil, err
	}

	if resp.ID, err = kernel.UUIDFromBytes(id[:]); err != nil {
		return nil, err
	}
	if resp.OptimisationID, err = kernel.UUIDFromBytes(optimisationID[:]); err != nil {
		return nil, err
	}
	return &resp, nil
}
