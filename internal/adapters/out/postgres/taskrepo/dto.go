// Package taskrepo persists OptimisationTask entities, one row per optimisation.
package taskrepo

import (
	"time"

	"routeopt/internal/core/domain/model/kernel"
	"routeopt/internal/core/domain/model/task"

	"github.com/google/uuid"
)

type TaskDTO struct {
	ID             uuid.UUID `gorm:"type:uuid;primaryKey"`
	OptimisationID uuid.UUID `gorm:"type:uuid;uniqueIndex"`
	Kind           string    `gorm:"type:varchar(16)"`
	Status         string    `gorm:"type:varchar(16);index"`
	Error          string
	CreatedAt      time.Time
	StartedAt      *time.Time
	FinishedAt     *time.Time
}

func (TaskDTO) TableName() string {
	return "optimisation_tasks"
}

func fromDomain(t *task.OptimisationTask) TaskDTO {
	return TaskDTO{
		ID:             t.ID().Bytes(),
		OptimisationID: t.OptimisationID().Bytes(),
		Kind:           string(t.Kind()),
		Status:         t.Status().String(),
		Error:          t.Error(),
		CreatedAt:      t.CreatedAt(),
		StartedAt:      t.StartedAt(),
		FinishedAt:     t.FinishedAt(),
	}
}

func toDomain(dto TaskDTO) (*task.OptimisationTask, error) {
	id, err := kernel.UUIDFromBytes(dto.ID[:])
	if err != nil {
		return nil, err
	}
	optimisationID, err := kernel.UUIDFromBytes(dto.OptimisationID[:])
	if err != nil {
		return nil, err
	}
	status, err := task.ParseStatus(dto.Status)
	if err != nil {
		return nil, err
	}

	return task.RestoreOptimisationTask(
		id,
		optimisationID,
		task.Kind(dto.Kind),
		status,
		dto.Error,
		dto.CreatedAt,
		dto.StartedAt,
		dto.FinishedAt,
	)
}
