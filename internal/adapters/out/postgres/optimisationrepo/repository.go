package optimisationrepo

import (
	"context"
	"errors"
	"time"

	"routeopt/internal/core/domain/model/kernel"
	"routeopt/internal/core/domain/model/optimisation"
	"routeopt/internal/pkg/errs"

	"github.com/samber/lo"
	"gorm.io/gorm"
)

// GormOptimisationRepository implements ports.OptimisationRepository using GORM.
type GormOptimisationRepository struct {
	db      *gorm.DB
	tracker aggregateTracker
}

type aggregateTracker interface {
	TrackAggregate(id kernel.UUID, aggregate any)
}

func NewGormOptimisationRepository(db *gorm.DB, tracker aggregateTracker) *GormOptimisationRepository {
	return &GormOptimisationRepository{
		db:      db,
		tracker: tracker,
	}
}

func (r *GormOptimisationRepository) Add(ctx context.Context, aggregate *optimisation.RouteOptimisation) error {
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

// Update writes the mutable columns. They are selected explicitly so that
// false and empty values are persisted too.
func (r *GormOptimisationRepository) Update(ctx context.Context, aggregate *optimisation.RouteOptimisation) error {
	if err := aggregate.Validate(); err != nil {
		return err
	}

	dto := fromDomain(aggregate)
	result := r.db.WithContext(ctx).Model(&OptimisationDTO{}).Where("id = ?", dto.ID).
		Select("state", "options", "customers_notified", "log", "placed_job_ids").
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

func (r *GormOptimisationRepository) Get(ctx context.Context, id kernel.UUID) (*optimisation.RouteOptimisation, error) {
	if err := id.Validate(); err != nil {
		return nil, err
	}

	var dto OptimisationDTO
	if err := r.db.WithContext(ctx).First(&dto, "id = ?", id.Bytes()).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errs.NewObjectNotFoundError("optimisation", id.String())
		}
		return nil, err
	}

	return toDomain(dto)
}

func (r *GormOptimisationRepository) FindForDay(
	ctx context.Context,
	merchantID kernel.UUID,
	day time.Time,
) ([]*optimisation.RouteOptimisation, error) {
	var dtos []OptimisationDTO
	err := r.db.WithContext(ctx).
		Where("merchant_id = ? AND day = ?", merchantID.Bytes(), day.Format(DayLayout)).
		Where("state NOT IN ?", []string{
			string(optimisation.Removed),
			string(optimisation.Failed),
			string(optimisation.Finished),
		}).
		Order("created_at").
		Find(&dtos).Error
	if err != nil {
		return nil, err
	}
	return restoreAll(dtos)
}

func (r *GormOptimisationRepository) ListInStates(
	ctx context.Context,
	states ...optimisation.State,
) ([]*optimisation.RouteOptimisation, error) {
	if len(states) == 0 {
		return nil, nil
	}

	var dtos []OptimisationDTO
	values := lo.Map(states, func(s optimisation.State, _ int) string { return string(s) })
	if err := r.db.WithContext(ctx).Where("state IN ?", values).Order("created_at").Find(&dtos).Error; err != nil {
		return nil, err
	}
	return restoreAll(dtos)
}

func restoreAll(dtos []OptimisationDTO) ([]*optimisation.RouteOptimisation, error) {
	out := make([]*optimisation.RouteOptimisation, 0, len(dtos))
	for _, dto := range dtos {
		o, err := toDomain(dto)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, nil
}
