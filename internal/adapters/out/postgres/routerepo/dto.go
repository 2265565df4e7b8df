// Package routerepo persists DriverRoute aggregates together with their
// points. A route_jobs side table indexes which jobs every route serves so
// status events can be traced back to optimisations.
package routerepo

import (
	"time"

	"routeopt/internal/core/domain/model/kernel"
	"routeopt/internal/core/domain/model/route"

	"github.com/google/uuid"
)

type RouteDTO struct {
	ID                 uuid.UUID `gorm:"type:uuid;primaryKey"`
	OptimisationID     uuid.UUID `gorm:"type:uuid;index"`
	DriverID           uuid.UUID `gorm:"type:uuid"`
	DriverName         string
	State              string `gorm:"type:varchar(16)"`
	DrivingDistance    float64
	DrivingTimeSeconds int64
	StartTime          time.Time
	EndTime            time.Time
	Points             []PointDTO `gorm:"foreignKey:RouteID;constraint:OnDelete:CASCADE"`
}

func (RouteDTO) TableName() string {
	return "driver_routes"
}

type PointDTO struct {
	ID                       uuid.UUID     `gorm:"type:uuid;primaryKey"`
	RouteID                  uuid.UUID     `gorm:"type:uuid;index"`
	Number                   int           `gorm:"not null"`
	Kind                     string        `gorm:"type:varchar(16)"`
	RefKind                  string        `gorm:"type:varchar(32)"`
	ObjectID                 *uuid.UUID    `gorm:"type:uuid"`
	PickupID                 *uuid.UUID    `gorm:"type:uuid"`
	MemberIDs                []kernel.UUID `gorm:"type:jsonb;serializer:json"`
	Lat                      *float64
	Lng                      *float64
	Title                    string
	ServiceTimeSeconds       int64
	StartTime                time.Time
	EndTime                  time.Time
	StartTimeKnownToCustomer *time.Time
	UtilizedCapacity         float64
}

func (PointDTO) TableName() string {
	return "route_points"
}

// RouteJobDTO links a route to a job it delivers.
type RouteJobDTO struct {
	RouteID uuid.UUID `gorm:"type:uuid;primaryKey"`
	JobID   uuid.UUID `gorm:"type:uuid;primaryKey;index"`
}

func (RouteJobDTO) TableName() string {
	return "route_jobs"
}

func fromDomain(r *route.DriverRoute) (RouteDTO, []RouteJobDTO) {
	dto := RouteDTO{
		ID:                 r.ID().Bytes(),
		OptimisationID:     r.OptimisationID().Bytes(),
		DriverID:           r.DriverID().Bytes(),
		DriverName:         r.DriverName(),
		State:              string(r.State()),
		DrivingDistance:    r.DrivingDistance(),
		DrivingTimeSeconds: int64(r.DrivingTime() / time.Second),
		StartTime:          r.StartTime(),
		EndTime:            r.EndTime(),
	}
	for _, p := range r.Points() {
		dto.Points = append(dto.Points, pointFromDomain(dto.ID, p))
	}

	seen := map[uuid.UUID]bool{}
	var jobs []RouteJobDTO
	for _, id := range r.JobIDs() {
		raw := id.Bytes()
		if seen[raw] {
			continue
		}
		seen[raw] = true
		jobs = append(jobs, RouteJobDTO{RouteID: dto.ID, JobID: raw})
	}
	return dto, jobs
}

func pointFromDomain(routeID uuid.UUID, p *route.RoutePoint) PointDTO {
	dto := PointDTO{
		ID:                       p.ID().Bytes(),
		RouteID:                  routeID,
		Number:                   p.Number(),
		Kind:                     string(p.Kind()),
		RefKind:                  string(p.Ref().Kind()),
		Title:                    p.Title(),
		ServiceTimeSeconds:       int64(p.ServiceTime() / time.Second),
		StartTime:                p.StartTime(),
		EndTime:                  p.EndTime(),
		StartTimeKnownToCustomer: p.StartTimeKnownToCustomer(),
		UtilizedCapacity:         p.UtilizedCapacity(),
	}
	if id, ok := p.Ref().ID(); ok {
		raw := id.Bytes()
		dto.ObjectID = &raw
	}
	if pickupID := p.Ref().PickupID(); pickupID != nil {
		raw := pickupID.Bytes()
		dto.PickupID = &raw
	}
	if p.Ref().Kind() == route.RefConcatenated {
		dto.MemberIDs = p.Ref().JobIDs()
	}
	if pt := p.Point(); pt != nil {
		lat, lng := pt.Lat(), pt.Lng()
		dto.Lat, dto.Lng = &lat, &lng
	}
	return dto
}

func toDomain(dto RouteDTO) (*route.DriverRoute, error) {
	id, err := kernel.UUIDFromBytes(dto.ID[:])
	if err != nil {
		return nil, err
	}
	optimisationID, err := kernel.UUIDFromBytes(dto.OptimisationID[:])
	if err != nil {
		return nil, err
	}
	driverID, err := kernel.UUIDFromBytes(dto.DriverID[:])
	if err != nil {
		return nil, err
	}

	points := make([]*route.RoutePoint, 0, len(dto.Points))
	for _, p := range dto.Points {
		point, pointErr := pointToDomain(p)
		if pointErr != nil {
			return nil, pointErr
		}
		points = append(points, point)
	}

	return route.RestoreDriverRoute(
		id, optimisationID, driverID,
		dto.DriverName,
		route.State(dto.State),
		dto.DrivingDistance,
		time.Duration(dto.DrivingTimeSeconds)*time.Second,
		dto.StartTime, dto.EndTime,
		points,
	)
}

func pointToDomain(dto PointDTO) (*route.RoutePoint, error) {
	id, err := kernel.UUIDFromBytes(dto.ID[:])
	if err != nil {
		return nil, err
	}
	objectID, err := optionalUUID(dto.ObjectID)
	if err != nil {
		return nil, err
	}
	pickupID, err := optionalUUID(dto.PickupID)
	if err != nil {
		return nil, err
	}
	ref, err := route.RestorePointRef(route.RefKind(dto.RefKind), objectID, pickupID, dto.MemberIDs)
	if err != nil {
		return nil, err
	}

	var point *kernel.GeoPoint
	if dto.Lat != nil && dto.Lng != nil {
		p, pointErr := kernel.NewGeoPoint(*dto.Lat, *dto.Lng)
		if pointErr != nil {
			return nil, pointErr
		}
		point = &p
	}

	return route.RestoreRoutePoint(
		id,
		dto.Number,
		route.PointKind(dto.Kind),
		ref,
		point,
		dto.Title,
		time.Duration(dto.ServiceTimeSeconds)*time.Second,
		dto.StartTime, dto.EndTime,
		dto.StartTimeKnownToCustomer,
		dto.UtilizedCapacity,
	)
}

func optionalUUID(raw *uuid.UUID) (*kernel.UUID, error) {
	if raw == nil {
		return nil, nil
	}
	id, err := kernel.UUIDFromBytes(raw[:])
	if err != nil {
		return nil, err
	}
	return &id, nil
}
