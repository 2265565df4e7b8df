package fleet

import (
	"time"

	"routeopt/internal/core/domain/model/kernel"
)

// Break is a scheduled driver pause. The pause may start up to AllowedShift
// earlier or later than planned.
type Break struct {
	Window       kernel.TimeWindow
	AllowedShift time.Duration
}

// Schedule is a driver's working day.
type Schedule struct {
	DayOff bool
	Window kernel.TimeWindow
	Breaks []Break
}

type Driver struct {
	ID           kernel.UUID
	Name         string
	SkillIDs     []kernel.UUID
	Capacity     *float64
	DefaultHubID *kernel.UUID
	DefaultPoint *kernel.GeoPoint
	Schedule     Schedule
}

func (d Driver) HasSkills(required []kernel.UUID) bool {
	for _, r := range required {
		found := false
		for _, s := range d.SkillIDs {
			if s.IsEqual(r) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

type Hub struct {
	ID    kernel.UUID
	Name  string
	Point kernel.GeoPoint
}

type Location struct {
	ID      kernel.UUID
	Address string
	Point   kernel.GeoPoint
}

type Merchant struct {
	ID                 kernel.UUID
	Timezone           *time.Location
	CapacityEnabled    bool
	DefaultServiceTime time.Duration
	PickupServiceTime  time.Duration
}

// Tz returns the merchant timezone, UTC when unset.
func (m Merchant) Tz() *time.Location {
	if m.Timezone == nil {
		return time.UTC
	}
	return m.Timezone
}
