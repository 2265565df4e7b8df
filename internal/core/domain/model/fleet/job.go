package fleet

import (
	"time"

	"routeopt/internal/core/domain/model/kernel"
	"routeopt/internal/pkg/errs"
)

// Skill is a capability a job may require. ServiceTime, when set, overrides
// the default service time for jobs carrying the skill.
type Skill struct {
	ID          kernel.UUID
	Name        string
	ServiceTime *time.Duration
}

type Pickup struct {
	ID          kernel.UUID
	Address     string
	Point       kernel.GeoPoint
	Window      *kernel.TimeWindow
	Capacity    float64
	ServiceTime *time.Duration
}

type Job struct {
	ID             kernel.UUID
	Title          string
	Status         OrderStatus
	DriverID       *kernel.UUID
	Address        string
	Point          kernel.GeoPoint
	Window         *kernel.TimeWindow
	Capacity       float64
	ServiceTime    *time.Duration
	Skills         []Skill
	Pickups        []Pickup
	ConcatenatedID *kernel.UUID
}

func (j Job) Validate() error {
	if err := j.ID.Validate(); err != nil {
		return err
	}
	if err := j.Point.Validate(); err != nil {
		return errs.NewValueIsRequiredErrorWithCause("job address", err)
	}
	if j.Capacity < 0 {
		return errs.NewValueIsOutOfRangeError("capacity", j.Capacity, 0, "unbounded")
	}
	for _, p := range j.Pickups {
		if err := p.Point.Validate(); err != nil {
			return errs.NewValueIsRequiredErrorWithCause("pickup address", err)
		}
	}
	return j.Status.Validate()
}

func (j Job) HasPickups() bool {
	return len(j.Pickups) > 0
}

func (j Job) IsAssignedTo(driverID kernel.UUID) bool {
	return j.DriverID != nil && j.DriverID.IsEqual(driverID)
}

func (j Job) SkillIDs() []kernel.UUID {
	ids := make([]kernel.UUID, 0, len(j.Skills))
	for _, s := range j.Skills {
		ids = append(ids, s.ID)
	}
	return ids
}

// ConcatenatedJob groups jobs sharing one delivery address into a single stop.
type ConcatenatedJob struct {
	ID      kernel.UUID
	Title   string
	Point   kernel.GeoPoint
	Members []Job
}

// Unserved returns members that still need a visit.
func (c ConcatenatedJob) Unserved() []Job {
	out := make([]Job, 0, len(c.Members))
	for _, m := range c.Members {
		if !m.Status.IsTerminal() {
			out = append(out, m)
		}
	}
	return out
}
