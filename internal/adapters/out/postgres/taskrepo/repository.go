package taskrepo

import (
	"context"
	"errors"

	"routeopt/internal/core/domain/model/kernel"
	"routeopt/internal/core/domain/model/task"
	"routeopt/internal/pkg/errs"

	"gorm.io/gorm"
)

// GormTaskRepository implements ports.TaskRepository using GORM.
type GormTaskRepository struct {
	db      *gorm.DB
	tracker aggregateTracker
}

type aggregateTracker interface {
	TrackAggregate(id kernel.UUID, aggregate any)
}

func NewGormTaskRepository(db *gorm.DB, tracker aggregateTracker) *GormTaskRepository {
	return &GormTaskRepository{
		db:      db,
		tracker: tracker,
	}
}

func (r *GormTaskRepository) Add(ctx context.Context, aggregate *task.OptimisationTask) error {
	if err := aggregate.Validate(); err != nil {
		return err
	}

	dto := fromDomain(aggregate)
	if err := r.db.WithContext(ctx).Create(&dto).Error; err != nil {
		return err
	}

	r.tracker.TrackAggregate(aggregate.ID(), aggregate)
	return nil
}

func (r *GormTaskRepository) Update(ctx context.Context, aggregate *task.OptimisationTask) error {
	if err := aggregate.Validate(); err != nil {
		return err
	}

	dto := fromDomain(aggregate)
	result := r.db.WithContext(ctx).Model(&TaskDTO{}).Where("id = ?", dto.ID).
		Select("kind", "status", "error", "created_at", "started_at", "finished_at").
		Updates(&dto)
	if result.Error != nil {
		return result.Error
	}

	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}

	r.tracker.TrackAggregate(aggregate.ID(), aggregate)
	return nil
}

func (r *GormTaskRepository) GetByOptimisation(ctx context.Context, optimisationID kernel.UUID) (*task.OptimisationTask, error) {
	if err := optimisationID.Validate(); err != nil {
		return nil, err
	}

	var dto TaskDTO
	if err := r.db.WithContext(ctx).First(&dto, "optimisation_id = ?", optimisationID.Bytes()).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errs.NewObjectNotFoundError("task", optimisationID.String())
		}
		return nil, err
	}

	return toDomain(dto)
}

func (r *GormTaskRepository) ListByStatus(ctx context.Context, status task.Status) ([]*task.OptimisationTask, error) {
	var dtos []TaskDTO
	if err := r.db.WithContext(ctx).Where("status = ?", status.String()).Order("created_at").Find(&dtos).Error; err != nil {
		return nil, err
	}

	tasks := make([]*task.OptimisationTask, 0, len(dtos))
	for _, dto := range dtos {
		t, err := toDomain(dto)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, t)
	}
	return tasks, nil
}
