// Package directoryrepo reads merchants, drivers, hubs, locations and jobs
// from the tables replicated from the entity services, and changes job
// assignment in place. It implements ports.FleetDirectory and
// ports.JobDirectory.
package directoryrepo

import (
	"time"

	"routeopt/internal/core/domain/model/fleet"
	"routeopt/internal/core/domain/model/kernel"

	"github.com/google/uuid"
)

type MerchantDTO struct {
	ID                    uuid.UUID `gorm:"type:uuid;primaryKey"`
	Timezone              string    `gorm:"type:varchar(64)"`
	CapacityEnabled       bool
	DefaultServiceSeconds int64
	PickupServiceSeconds  int64
}

func (MerchantDTO) TableName() string { return "merchants" }

type HubDTO struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey"`
	MerchantID uuid.UUID `gorm:"type:uuid;index"`
	Name       string
	Lat        float64
	Lng        float64
}

func (HubDTO) TableName() string { return "hubs" }

type LocationDTO struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey"`
	MerchantID uuid.UUID `gorm:"type:uuid;index"`
	Address    string
	Lat        float64
	Lng        float64
}

func (LocationDTO) TableName() string { return "locations" }

type DriverDTO struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey"`
	MerchantID   uuid.UUID `gorm:"type:uuid;index"`
	Name         string
	Capacity     *float64
	DefaultHubID *uuid.UUID `gorm:"type:uuid"`
	DefaultLat   *float64
	DefaultLng   *float64
	SkillIDs     []kernel.UUID `gorm:"type:jsonb;serializer:json"`
}

func (DriverDTO) TableName() string { return "drivers" }

// BreakDTO is stored inside the schedule row.
type BreakDTO struct {
	Start               time.Time `json:"start"`
	End                 time.Time `json:"end"`
	AllowedShiftSeconds int64     `json:"allowed_shift"`
}

type DriverScheduleDTO struct {
	DriverID  uuid.UUID `gorm:"type:uuid;primaryKey"`
	Day       string    `gorm:"type:varchar(10);primaryKey"`
	DayOff    bool
	StartTime time.Time
	EndTime   time.Time
	Breaks    []BreakDTO `gorm:"type:jsonb;serializer:json"`
}

func (DriverScheduleDTO) TableName() string { return "driver_schedules" }

type SkillDTO struct {
	ID             uuid.UUID `gorm:"type:uuid;primaryKey"`
	MerchantID     uuid.UUID `gorm:"type:uuid;index"`
	Name           string
	ServiceSeconds *int64
}

func (SkillDTO) TableName() string { return "skills" }

type JobDTO struct {
	ID             uuid.UUID `gorm:"type:uuid;primaryKey"`
	MerchantID     uuid.UUID `gorm:"type:uuid;index:idx_job_merchant_day"`
	DeliverOn      string    `gorm:"type:varchar(10);index:idx_job_merchant_day"`
	Title          string
	Status         string     `gorm:"type:varchar(16)"`
	DriverID       *uuid.UUID `gorm:"type:uuid;index"`
	Address        string
	Lat            float64
	Lng            float64
	WindowStart    *time.Time
	WindowEnd      *time.Time
	Capacity       float64
	ServiceSeconds *int64
	SkillIDs       []kernel.UUID `gorm:"type:jsonb;serializer:json"`
	ConcatenatedID *uuid.UUID    `gorm:"type:uuid"`
	Pickups        []PickupDTO   `gorm:"foreignKey:JobID;constraint:OnDelete:CASCADE"`
}

func (JobDTO) TableName() string { return "jobs" }

type PickupDTO struct {
	ID             uuid.UUID `gorm:"type:uuid;primaryKey"`
	JobID          uuid.UUID `gorm:"type:uuid;index"`
	Address        string
	Lat            float64
	Lng            float64
	WindowStart    *time.Time
	WindowEnd      *time.Time
	Capacity       float64
	ServiceSeconds *int64
}

func (PickupDTO) TableName() string { return "job_pickups" }

// Models lists the read model tables for migrations.
func Models() []any {
	return []any{
		&MerchantDTO{}, &HubDTO{}, &LocationDTO{}, &DriverDTO{}, &DriverScheduleDTO{},
		&SkillDTO{}, &JobDTO{}, &PickupDTO{},
	}
}

func merchantToDomain(dto MerchantDTO) (fleet.Merchant, error) {
	id, err := kernel.UUIDFromBytes(dto.ID[:])
	if err != nil {
		return fleet.Merchant{}, err
	}
	loc := time.UTC
	if dto.Timezone != "" {
		if loc, err = time.LoadLocation(dto.Timezone); err != nil {
			return fleet.Merchant{}, err
		}
	}
	return fleet.Merchant{
		ID:                 id,
		Timezone:           loc,
		CapacityEnabled:    dto.CapacityEnabled,
		DefaultServiceTime: time.Duration(dto.DefaultServiceSeconds) * time.Second,
		PickupServiceTime:  time.Duration(dto.PickupServiceSeconds) * time.Second,
	}, nil
}

func hubToDomain(dto HubDTO) (fleet.Hub, error) {
	id, err := kernel.UUIDFromBytes(dto.ID[:])
	if err != nil {
		return fleet.Hub{}, err
	}
	point, err := kernel.NewGeoPoint(dto.Lat, dto.Lng)
	if err != nil {
		return fleet.Hub{}, err
	}
	return fleet.Hub{ID: id, Name: dto.Name, Point: point}, nil
}

func locationToDomain(dto LocationDTO) (fleet.Location, error) {
	id, err := kernel.UUIDFromBytes(dto.ID[:])
	if err != nil {
		return fleet.Location{}, err
	}
	point, err := kernel.NewGeoPoint(dto.Lat, dto.Lng)
	if err != nil {
		return fleet.Location{}, err
	}
	return fleet.Location{ID: id, Address: dto.Address, Point: point}, nil
}

// driverToDomain combines a driver with its schedule. A driver without a
// schedule row for the day is off.
func driverToDomain(dto DriverDTO, schedule *DriverScheduleDTO) (fleet.Driver, error) {
	id, err := kernel.UUIDFromBytes(dto.ID[:])
	if err != nil {
		return fleet.Driver{}, err
	}
	d := fleet.Driver{
		ID:       id,
		Name:     dto.Name,
		SkillIDs: dto.SkillIDs,
		Capacity: dto.Capacity,
		Schedule: fleet.Schedule{DayOff: true},
	}
	if d.DefaultHubID, err = optionalUUID(dto.DefaultHubID); err != nil {
		return fleet.Driver{}, err
	}
	if dto.DefaultLat != nil && dto.DefaultLng != nil {
		point, pointErr := kernel.NewGeoPoint(*dto.DefaultLat, *dto.DefaultLng)
		if pointErr != nil {
			return fleet.Driver{}, pointErr
		}
		d.DefaultPoint = &point
	}
	if schedule == nil || schedule.DayOff {
		return d, nil
	}

	window, err := kernel.NewTimeWindow(schedule.StartTime, schedule.EndTime)
	if err != nil {
		return fleet.Driver{}, err
	}
	d.Schedule = fleet.Schedule{Window: window}
	for _, b := range schedule.Breaks {
		bw, bErr := kernel.NewTimeWindow(b.Start, b.End)
		if bErr != nil {
			return fleet.Driver{}, bErr
		}
		d.Schedule.Breaks = append(d.Schedule.Breaks, fleet.Break{
			Window:       bw,
			AllowedShift: time.Duration(b.AllowedShiftSeconds) * time.Second,
		})
	}
	return d, nil
}

func jobToDomain(dto JobDTO, skills map[uuid.UUID]fleet.Skill) (fleet.Job, error) {
	id, err := kernel.UUIDFromBytes(dto.ID[:])
	if err != nil {
		return fleet.Job{}, err
	}
	status, err := fleet.ParseOrderStatus(dto.Status)
	if err != nil {
		return fleet.Job{}, err
	}
	point, err := kernel.NewGeoPoint(dto.Lat, dto.Lng)
	if err != nil {
		return fleet.Job{}, err
	}
	window, err := optionalWindow(dto.WindowStart, dto.WindowEnd)
	if err != nil {
		return fleet.Job{}, err
	}

	j := fleet.Job{
		ID:          id,
		Title:       dto.Title,
		Status:      status,
		Address:     dto.Address,
		Point:       point,
		Window:      window,
		Capacity:    dto.Capacity,
		ServiceTime: optionalSeconds(dto.ServiceSeconds),
	}
	if j.DriverID, err = optionalUUID(dto.DriverID); err != nil {
		return fleet.Job{}, err
	}
	if j.ConcatenatedID, err = optionalUUID(dto.ConcatenatedID); err != nil {
		return fleet.Job{}, err
	}
	for _, skillID := range dto.SkillIDs {
		if s, ok := skills[skillID.Bytes()]; ok {
			j.Skills = append(j.Skills, s)
		}
	}
	for _, p := range dto.Pickups {
		pickup, pErr := pickupToDomain(p)
		if pErr != nil {
			return fleet.Job{}, pErr
		}
		j.Pickups = append(j.Pickups, pickup)
	}
	return j, nil
}

func pickupToDomain(dto PickupDTO) (fleet.Pickup, error) {
	id, err := kernel.UUIDFromBytes(dto.ID[:])
	if err != nil {
		return fleet.Pickup{}, err
	}
	point, err := kernel.NewGeoPoint(dto.Lat, dto.Lng)
	if err != nil {
		return fleet.Pickup{}, err
	}
	window, err := optionalWindow(dto.WindowStart, dto.WindowEnd)
	if err != nil {
		return fleet.Pickup{}, err
	}
	return fleet.Pickup{
		ID:          id,
		Address:     dto.Address,
		Point:       point,
		Window:      window,
		Capacity:    dto.Capacity,
		ServiceTime: optionalSeconds(dto.ServiceSeconds),
	}, nil
}

func skillToDomain(dto SkillDTO) (fleet.Skill, error) {
	id, err := kernel.UUIDFromBytes(dto.ID[:])
	if err != nil {
		return fleet.Skill{}, err
	}
	return fleet.Skill{ID: id, Name: dto.Name, ServiceTime: optionalSeconds(dto.ServiceSeconds)}, nil
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

func optionalWindow(start, end *time.Time) (*kernel.TimeWindow, error) {
	if start == nil || end == nil {
		return nil, nil
	}
	w, err := kernel.NewTimeWindow(*start, *end)
	if err != nil {
		return nil, err
	}
	return &w, nil
}

func optionalSeconds(s *int64) *time.Duration {
	if s == nil {
		return nil
	}
	d := time.Duration(*s) * time.Second
	return &d
}
