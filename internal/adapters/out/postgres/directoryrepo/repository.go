package directoryrepo

import (
	"context"
	"errors"
	"time"

	"routeopt/internal/core/domain/model/fleet"
	"routeopt/internal/core/domain/model/kernel"
	"routeopt/internal/core/ports"
	"routeopt/internal/pkg/errs"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/samber/lo"
	"gorm.io/gorm"
)

const dayLayout = "2006-01-02"

var (
	_ ports.FleetDirectory = (*GormDirectory)(nil)
	_ ports.JobDirectory   = (*GormDirectory)(nil)
)

// GormDirectory reads the replicated entity tables.
type GormDirectory struct {
	db *gorm.DB
}

func NewGormDirectory(db *gorm.DB) *GormDirectory {
	return &GormDirectory{db: db}
}

func (d *GormDirectory) GetMerchant(ctx context.Context, merchantID kernel.UUID) (fleet.Merchant, error) {
	var dto MerchantDTO
	if err := d.db.WithContext(ctx).First(&dto, "id = ?", merchantID.Bytes()).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fleet.Merchant{}, errs.NewObjectNotFoundError("merchant", merchantID.String())
		}
		return fleet.Merchant{}, err
	}
	return merchantToDomain(dto)
}

func (d *GormDirectory) GetDrivers(
	ctx context.Context,
	merchantID kernel.UUID,
	ids []kernel.UUID,
	day time.Time,
) ([]fleet.Driver, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	var dtos []DriverDTO
	err := d.db.WithContext(ctx).
		Where("merchant_id = ? AND id IN ?", merchantID.Bytes(), toRaw(ids)).
		Order("name").
		Find(&dtos).Error
	if err != nil {
		return nil, err
	}

	var schedules []DriverScheduleDTO
	err = d.db.WithContext(ctx).
		Where("day = ? AND driver_id IN ?", day.Format(dayLayout), toRaw(ids)).
		Find(&schedules).Error
	if err != nil {
		return nil, err
	}
	byDriver := lo.KeyBy(schedules, func(s DriverScheduleDTO) uuid.UUID { return s.DriverID })

	drivers := make([]fleet.Driver, 0, len(dtos))
	for _, dto := range dtos {
		var schedule *DriverScheduleDTO
		if s, ok := byDriver[dto.ID]; ok {
			schedule = &s
		}
		driver, convErr := driverToDomain(dto, schedule)
		if convErr != nil {
			return nil, convErr
		}
		drivers = append(drivers, driver)
	}
	return drivers, nil
}

func (d *GormDirectory) GetHubs(ctx context.Context, merchantID kernel.UUID, ids []kernel.UUID) ([]fleet.Hub, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var dtos []HubDTO
	if err := d.db.WithContext(ctx).Where("merchant_id = ? AND id IN ?", merchantID.Bytes(), toRaw(ids)).Find(&dtos).Error; err != nil {
		return nil, err
	}
	return convertAll(dtos, hubToDomain)
}

func (d *GormDirectory) GetLocations(ctx context.Context, merchantID kernel.UUID, ids []kernel.UUID) ([]fleet.Location, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var dtos []LocationDTO
	if err := d.db.WithContext(ctx).Where("merchant_id = ? AND id IN ?", merchantID.Bytes(), toRaw(ids)).Find(&dtos).Error; err != nil {
		return nil, err
	}
	return convertAll(dtos, locationToDomain)
}

func (d *GormDirectory) GetJobs(ctx context.Context, merchantID kernel.UUID, ids []kernel.UUID) ([]fleet.Job, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	return d.findJobs(ctx, d.db.Where("merchant_id = ? AND id = ANY(?::uuid[])", merchantID.Bytes(), pq.Array(toStrings(ids))))
}

func (d *GormDirectory) FindEligibleJobs(
	ctx context.Context,
	merchantID kernel.UUID,
	day time.Time,
	driverID *kernel.UUID,
) ([]fleet.Job, error) {
	scope := d.db.Where("merchant_id = ? AND deliver_on = ?", merchantID.Bytes(), day.Format(dayLayout))
	if driverID == nil {
		scope = scope.Where("status = ?", string(fleet.NotAssigned))
	} else {
		scope = scope.Where(
			d.db.Where("status = ?", string(fleet.NotAssigned)).
				Or("status = ? AND driver_id = ?", string(fleet.Assigned), driverID.Bytes()),
		)
	}
	return d.findJobs(ctx, scope)
}

// Assign runs in its own transaction so a batch with one job that moved past
// ASSIGNED changes nothing.
func (d *GormDirectory) Assign(ctx context.Context, driverID kernel.UUID, jobIDs []kernel.UUID) error {
	ids := lo.Uniq(jobIDs)
	if len(ids) == 0 {
		return nil
	}
	return d.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var changed []uuid.UUID
		err := tx.Raw(
			`UPDATE jobs SET driver_id = ?, status = ?
			WHERE id = ANY(?::uuid[]) AND status IN (?, ?)
			RETURNING id`,
			driverID.Bytes(), string(fleet.Assigned), pq.Array(toStrings(ids)),
			string(fleet.NotAssigned), string(fleet.Assigned),
		).Scan(&changed).Error
		if err != nil {
			return err
		}
		if len(changed) < len(ids) {
			return ports.ErrJobNotAssignable
		}
		return nil
	})
}

func (d *GormDirectory) Unassign(ctx context.Context, jobIDs []kernel.UUID) ([]kernel.UUID, error) {
	if len(jobIDs) == 0 {
		return nil, nil
	}
	var changed []uuid.UUID
	err := d.db.WithContext(ctx).Raw(
		`UPDATE jobs SET driver_id = NULL, status = ?
		WHERE id = ANY(?::uuid[]) AND status = ?
		RETURNING id`,
		string(fleet.NotAssigned), pq.Array(toStrings(jobIDs)), string(fleet.Assigned),
	).Scan(&changed).Error
	if err != nil {
		return nil, err
	}
	return convertAll(changed, func(id uuid.UUID) (kernel.UUID, error) { return kernel.UUIDFromBytes(id[:]) })
}

func (d *GormDirectory) findJobs(ctx context.Context, scope *gorm.DB) ([]fleet.Job, error) {
	var dtos []JobDTO
	if err := scope.WithContext(ctx).Preload("Pickups").Order("title, id").Find(&dtos).Error; err != nil {
		return nil, err
	}

	skillIDs := lo.Uniq(lo.FlatMap(dtos, func(j JobDTO, _ int) []uuid.UUID {
		return lo.Map(j.SkillIDs, func(id kernel.UUID, _ int) uuid.UUID { return id.Bytes() })
	}))
	skills := map[uuid.UUID]fleet.Skill{}
	if len(skillIDs) > 0 {
		var skillDTOs []SkillDTO
		if err := d.db.WithContext(ctx).Where("id IN ?", skillIDs).Find(&skillDTOs).Error; err != nil {
			return nil, err
		}
		for _, s := range skillDTOs {
			skill, err := skillToDomain(s)
			if err != nil {
				return nil, err
			}
			skills[s.ID] = skill
		}
	}

	return convertAll(dtos, func(dto JobDTO) (fleet.Job, error) { return jobToDomain(dto, skills) })
}

func convertAll[S, T any](items []S, convert func(S) (T, error)) ([]T, error) {
	out := make([]T, 0, len(items))
	for _, item := range items {
		converted, err := convert(item)
		if err != nil {
			return nil, err
		}
		out = append(out, converted)
	}
	return out, nil
}

func toRaw(ids []kernel.UUID) []uuid.UUID {
	return lo.Map(ids, func(id kernel.UUID, _ int) uuid.UUID { return id.Bytes() })
}

func toStrings(ids []kernel.UUID) []string {
	return lo.Map(ids, func(id kernel.UUID, _ int) string { return id.String() })
}
