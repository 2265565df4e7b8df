package queries

import (
	"errors"
	"time"

	"routeopt/internal/core/domain/model/kernel"
	"routeopt/internal/pkg/errs"
	"routeopt/internal/pkg/guard"
)

var (
	ErrGetTaskStatusQueryIsNotConstructed = errors.New(
		"GetTaskStatusQuery must be created via NewGetTaskStatusQuery constructor",
	)
)

// GetTaskStatusQuery is what clients poll after creating or refreshing an
// optimisation.
type GetTaskStatusQuery struct {
	merchantID     kernel.UUID
	optimisationID kernel.UUID

	guard guard.ConstructorGuard
}

func NewGetTaskStatusQuery(merchantID, optimisationID kernel.UUID) (GetTaskStatusQuery, error) {
	if err := merchantID.Validate(); err != nil {
		return GetTaskStatusQuery{}, errs.NewValueIsRequiredErrorWithCause("merchant", err)
	}
	if err := optimisationID.Validate(); err != nil {
		return GetTaskStatusQuery{}, errs.NewValueIsRequiredErrorWithCause("optimisation", err)
	}
	return GetTaskStatusQuery{
		merchantID:     merchantID,
		optimisationID: optimisationID,
		guard:          guard.NewConstructorGuard(),
	}, nil
}

func (q GetTaskStatusQuery) Validate() error {
	return q.guard.Validate(ErrGetTaskStatusQueryIsNotConstructed)
}

func (q GetTaskStatusQuery) MerchantID() kernel.UUID {
	return q.merchantID
}

func (q GetTaskStatusQuery) OptimisationID() kernel.UUID {
	return q.optimisationID
}

type GetTaskStatusQueryResponse struct {
	ID                kernel.UUID
	OptimisationID    kernel.UUID
	Kind              string
	Status            string
	Error             string
	OptimisationState string
	CreatedAt         time.Time
	StartedAt         *time.Time
	FinishedAt        *time.Time
}
