package routerepo

import (
	"context"
	"errors"
	"slices"

	"routeopt/internal/core/domain/model/kernel"
	"routeopt/internal/core/domain/model/route"
	"routeopt/internal/pkg/errs"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormRouteRepository implements ports.RouteRepository using GORM.
type GormRouteRepository struct {
	db      *gorm.DB
	tracker aggregateTracker
}

type aggregateTracker interface {
	TrackAggregate(id kernel.UUID, aggregate any)
}

func NewGormRouteRepository(db *gorm.DB, tracker aggregateTracker) *GormRouteRepository {
	return &GormRouteRepository{
		db:      db,
		tracker: tracker,
	}
}

func (r *GormRouteRepository) Add(ctx context.Context, aggregate *route.DriverRoute) error {
	if err := aggregate.Validate(); err != nil {
		return err
	}

	dto, jobs := fromDomain(aggregate)
	db := r.db.WithContext(ctx)
	if err := db.Create(&dto).Error; err != nil {
		return err
	}
	if len(jobs) > 0 {
		if err := db.Create(&jobs).Error; err != nil {
			return err
		}
	}

	r.tracker.TrackAggregate(aggregate.ID(), aggregate)
	return nil
}

// Update rewrites the route row and replaces its points and job links.
func (r *GormRouteRepository) Update(ctx context.Context, aggregate *route.DriverRoute) error {
	if err := aggregate.Validate(); err != nil {
		return err
	}

	dto, jobs := fromDomain(aggregate)
	db := r.db.WithContext(ctx)
	result := db.Model(&RouteDTO{}).Where("id = ?", dto.ID).
		Select("driver_name", "state", "driving_distance", "driving_time_seconds", "start_time", "end_time").
		Omit(clause.Associations).
		Updates(&dto)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}

	if err := r.deleteChildren(db, dto.ID); err != nil {
		return err
	}
	if len(dto.Points) > 0 {
		if err := db.Create(&dto.Points).Error; err != nil {
			return err
		}
	}
	if len(jobs) > 0 {
		if err := db.Create(&jobs).Error; err != nil {
			return err
		}
	}

	r.tracker.TrackAggregate(aggregate.ID(), aggregate)
	return nil
}

func (r *GormRouteRepository) Delete(ctx context.Context, id kernel.UUID) error {
	if err := id.Validate(); err != nil {
		return err
	}

	db := r.db.WithContext(ctx)
	if err := r.deleteChildren(db, id.Bytes()); err != nil {
		return err
	}
	result := db.Delete(&RouteDTO{}, "id = ?", id.Bytes())
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return errs.NewObjectNotFoundError("route", id.String())
	}
	return nil
}

func (r *GormRouteRepository) Get(ctx context.Context, id kernel.UUID) (*route.DriverRoute, error) {
	if err := id.Validate(); err != nil {
		return nil, err
	}

	var dto RouteDTO
	if err := r.db.WithContext(ctx).First(&dto, "id = ?", id.Bytes()).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errs.NewObjectNotFoundError("route", id.String())
		}
		return nil, err
	}

	routes, err := r.withPoints(ctx, []RouteDTO{dto})
	if err != nil {
		return nil, err
	}
	return routes[0], nil
}

// GetForUpdate locks rows with SELECT ... FOR UPDATE ordered by id. Every id
// must exist.
func (r *GormRouteRepository) GetForUpdate(ctx context.Context, ids []kernel.UUID) ([]*route.DriverRoute, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	sorted := append([]kernel.UUID(nil), ids...)
	slices.SortFunc(sorted, func(a, b kernel.UUID) int {
		if a.Less(b) {
			return -1
		}
		if b.Less(a) {
			return 1
		}
		return 0
	})
	raw := lo.Uniq(lo.Map(sorted, func(id kernel.UUID, _ int) uuid.UUID { return id.Bytes() }))

	var dtos []RouteDTO
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id IN ?", raw).
		Order("id").
		Find(&dtos).Error
	if err != nil {
		return nil, err
	}
	if len(dtos) != len(raw) {
		found := lo.Map(dtos, func(d RouteDTO, _ int) uuid.UUID { return d.ID })
		missing, _ := lo.Difference(raw, found)
		return nil, errs.NewObjectNotFoundError("route", missing[0].String())
	}
	return r.withPoints(ctx, dtos)
}

func (r *GormRouteRepository) ListByOptimisation(ctx context.Context, optimisationID kernel.UUID) ([]*route.DriverRoute, error) {
	var dtos []RouteDTO
	err := r.db.WithContext(ctx).
		Where("optimisation_id = ?", optimisationID.Bytes()).
		Order("driver_name, id").
		Find(&dtos).Error
	if err != nil {
		return nil, err
	}
	return r.withPoints(ctx, dtos)
}

func (r *GormRouteRepository) FindOptimisationsByJob(ctx context.Context, jobID kernel.UUID) ([]kernel.UUID, error) {
	var raw []uuid.UUID
	err := r.db.WithContext(ctx).
		Model(&RouteJobDTO{}).
		Joins("JOIN driver_routes ON driver_routes.id = route_jobs.route_id").
		Where("route_jobs.job_id = ?", jobID.Bytes()).
		Distinct().
		Pluck("driver_routes.optimisation_id", &raw).Error
	if err != nil {
		return nil, err
	}

	out := make([]kernel.UUID, 0, len(raw))
	for _, id := range raw {
		converted, convErr := kernel.UUIDFromBytes(id[:])
		if convErr != nil {
			return nil, convErr
		}
		out = append(out, converted)
	}
	return out, nil
}

func (r *GormRouteRepository) deleteChildren(db *gorm.DB, routeID uuid.UUID) error {
	if err := db.Where("route_id = ?", routeID).Delete(&PointDTO{}).Error; err != nil {
		return err
	}
	return db.Where("route_id = ?", routeID).Delete(&RouteJobDTO{}).Error
}

// withPoints loads the points of all routes in one query and restores the aggregates.
func (r *GormRouteRepository) withPoints(ctx context.Context, dtos []RouteDTO) ([]*route.DriverRoute, error) {
	if len(dtos) == 0 {
		return nil, nil
	}
	ids := lo.Map(dtos, func(d RouteDTO, _ int) uuid.UUID { return d.ID })

	var points []PointDTO
	if err := r.db.WithContext(ctx).Where("route_id IN ?", ids).Order("number").Find(&points).Error; err != nil {
		return nil, err
	}
	byRoute := lo.GroupBy(points, func(p PointDTO) uuid.UUID { return p.RouteID })

	out := make([]*route.DriverRoute, 0, len(dtos))
	for _, dto := range dtos {
		dto.Points = byRoute[dto.ID]
		restored, err := toDomain(dto)
		if err != nil {
			return nil, err
		}
		out = append(out, restored)
	}
	return out, nil
}
