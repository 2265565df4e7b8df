// Package optimisationrepo persists RouteOptimisation aggregates. Options,
// the log and placed job ids are stored as JSON documents next to the
// columns queries filter on.
package optimisationrepo

import (
	"fmt"
	"time"

	"routeopt/internal/core/domain/model/kernel"
	"routeopt/internal/core/domain/model/optimisation"

	"github.com/google/uuid"
)

// DayLayout is the storage format of the optimisation day.
const DayLayout = "2006-01-02"

// OptimisationDTO represents the database structure of an optimisation.
type OptimisationDTO struct {
	ID                uuid.UUID                 `gorm:"type:uuid;primaryKey"`
	MerchantID        uuid.UUID                 `gorm:"type:uuid;index:idx_optimisation_merchant_day"`
	Day               string                    `gorm:"type:varchar(10);index:idx_optimisation_merchant_day"`
	Timezone          string                    `gorm:"type:varchar(64)"`
	Type              string                    `gorm:"type:varchar(16)"`
	State             string                    `gorm:"type:varchar(16);index"`
	Initiator         optimisation.Initiator    `gorm:"type:jsonb;serializer:json"`
	Options           optimisation.Options      `gorm:"type:jsonb;serializer:json"`
	CustomersNotified bool
	Log               []optimisation.LogEntry `gorm:"type:jsonb;serializer:json"`
	PlacedJobIDs      []kernel.UUID           `gorm:"type:jsonb;serializer:json"`
	CreatedAt         time.Time
}

func (OptimisationDTO) TableName() string {
	return "route_optimisations"
}

func fromDomain(o *optimisation.RouteOptimisation) OptimisationDTO {
	return OptimisationDTO{
		ID:                o.ID().Bytes(),
		MerchantID:        o.MerchantID().Bytes(),
		Day:               o.Day().Format(DayLayout),
		Timezone:          o.Day().Location().String(),
		Type:              string(o.Type()),
		State:             string(o.State()),
		Initiator:         o.Initiator(),
		Options:           o.Options(),
		CustomersNotified: o.CustomersNotified(),
		Log:               o.Log(),
		PlacedJobIDs:      o.PlacedJobIDs(),
		CreatedAt:         o.CreatedAt(),
	}
}

func toDomain(dto OptimisationDTO) (*optimisation.RouteOptimisation, error) {
	id, err := kernel.UUIDFromBytes(dto.ID[:])
	if err != nil {
		return nil, err
	}
	merchantID, err := kernel.UUIDFromBytes(dto.MerchantID[:])
	if err != nil {
		return nil, err
	}
	day, err := ParseDay(dto.Day, dto.Timezone)
	if err != nil {
		return nil, err
	}

	return optimisation.RestoreRouteOptimisation(
		id,
		merchantID,
		dto.Initiator,
		day,
		optimisation.Type(dto.Type),
		optimisation.State(dto.State),
		dto.Options,
		dto.CustomersNotified,
		dto.Log,
		dto.PlacedJobIDs,
		dto.CreatedAt,
	)
}

// ParseDay restores a stored day as midnight in the named timezone.
func ParseDay(day, timezone string) (time.Time, error) {
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return time.Time{}, fmt.Errorf("load timezone %q: %w", timezone, err)
	}
	return time.ParseInLocation(DayLayout, day, loc)
}
