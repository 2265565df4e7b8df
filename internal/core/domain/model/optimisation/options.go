package optimisation

import (
	"errors"
	"fmt"
	"time"

	"routeopt/internal/core/domain/model/kernel"
	"routeopt/internal/pkg/errs"
)

// OptionsVersion is bumped whenever the stored Options layout changes.
const OptionsVersion = 1

type Placement string

const (
	PlaceDefaultHub   Placement = "default_hub"
	PlaceHub          Placement = "hub"
	PlaceLocation     Placement = "location"
	PlaceLastJob      Placement = "last_job"
	PlaceDefaultPoint Placement = "default_point"
)

// ClockTime is a wall-clock time of day in minutes after midnight.
type ClockTime int

func ParseClockTime(s string) (ClockTime, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, errs.NewValueIsInvalidErrorWithCause("time of day", err)
	}
	return ClockTime(t.Hour()*60 + t.Minute()), nil
}

func (c ClockTime) String() string {
	return fmt.Sprintf("%02d:%02d", int(c)/60, int(c)%60)
}

func (c ClockTime) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

func (c *ClockTime) UnmarshalText(text []byte) error {
	v, err := ParseClockTime(string(text))
	if err != nil {
		return err
	}
	*c = v
	return nil
}

// On returns the instant of c on the given calendar day.
func (c ClockTime) On(day time.Time) time.Time {
	y, m, d := day.Date()
	return time.Date(y, m, d, int(c)/60, int(c)%60, 0, 0, day.Location())
}

type WorkingHours struct {
	Lower ClockTime `json:"lower"`
	Upper ClockTime `json:"upper"`
}

// Options is the validated, versioned request configuration stored on the
// optimisation.
type Options struct {
	Version            int           `json:"version"`
	JobIDs             []kernel.UUID `json:"jobs_ids"`
	DriverIDs          []kernel.UUID `json:"drivers_ids"`
	StartPlace         Placement     `json:"start_place"`
	StartHubID         *kernel.UUID  `json:"start_hub,omitempty"`
	StartLocationID    *kernel.UUID  `json:"start_location,omitempty"`
	EndPlace           Placement     `json:"end_place"`
	EndHubID           *kernel.UUID  `json:"end_hub,omitempty"`
	EndLocationID      *kernel.UUID  `json:"end_location,omitempty"`
	WorkingHours       WorkingHours  `json:"working_hours"`
	UseVehicleCapacity bool          `json:"use_vehicle_capacity"`
	ReOptimiseAssigned bool          `json:"re_optimise_assigned"`
	ServiceTimeMinutes int           `json:"service_time"`
	PickupServiceTime  int           `json:"pickup_service_time"`
}

// Validate checks the shape of the options. Checks that need collaborator
// data live in services.OptionsValidator.
func (o Options) Validate() error {
	if o.Version != OptionsVersion {
		return errs.NewVersionIsInvalidError("options", fmt.Errorf("version %d is not supported", o.Version))
	}
	return errors.Join(
		validatePlacement("start_place", o.StartPlace, o.StartHubID, o.StartLocationID, false),
		validatePlacement("end_place", o.EndPlace, o.EndHubID, o.EndLocationID, true),
		o.validateWorkingHours(),
		o.validateServiceTimes(),
	)
}

func (o Options) ServiceTime() time.Duration {
	return time.Duration(o.ServiceTimeMinutes) * time.Minute
}

func (o Options) PickupServiceDuration() time.Duration {
	return time.Duration(o.PickupServiceTime) * time.Minute
}

// WorkingWindow is the working-hour window on the optimisation day.
func (o Options) WorkingWindow(day time.Time) (kernel.TimeWindow, error) {
	return kernel.NewTimeWindow(o.WorkingHours.Lower.On(day), o.WorkingHours.Upper.On(day))
}

// WithJobs returns a copy with ids added to the job set, skipping duplicates.
func (o Options) WithJobs(ids []kernel.UUID) Options {
	out := o
	out.JobIDs = append([]kernel.UUID(nil), o.JobIDs...)
	for _, id := range ids {
		if !containsID(out.JobIDs, id) {
			out.JobIDs = append(out.JobIDs, id)
		}
	}
	return out
}

// WithoutJobs returns a copy with ids removed from the job set.
func (o Options) WithoutJobs(ids []kernel.UUID) Options {
	out := o
	out.JobIDs = make([]kernel.UUID, 0, len(o.JobIDs))
	for _, id := range o.JobIDs {
		if !containsID(ids, id) {
			out.JobIDs = append(out.JobIDs, id)
		}
	}
	return out
}

func (o Options) validateWorkingHours() error {
	if o.WorkingHours.Lower < 0 || o.WorkingHours.Upper > 24*60 {
		return errs.NewValueIsOutOfRangeError("working_hours", o.WorkingHours, "00:00", "24:00")
	}
	if o.WorkingHours.Lower >= o.WorkingHours.Upper {
		return errs.NewValueIsInvalidErrorWithCause(
			"working_hours",
			fmt.Errorf("lower %s must be before upper %s", o.WorkingHours.Lower, o.WorkingHours.Upper),
		)
	}
	return nil
}

func (o Options) validateServiceTimes() error {
	if o.ServiceTimeMinutes < 0 {
		return errs.NewValueIsOutOfRangeError("service_time", o.ServiceTimeMinutes, 0, "unbounded")
	}
	if o.PickupServiceTime < 0 {
		return errs.NewValueIsOutOfRangeError("pickup_service_time", o.PickupServiceTime, 0, "unbounded")
	}
	return nil
}

func validatePlacement(name string, p Placement, hubID, locationID *kernel.UUID, isEnd bool) error {
	switch p {
	case PlaceDefaultHub, PlaceDefaultPoint:
		return nil
	case PlaceHub:
		if hubID == nil {
			return errs.NewValueIsRequiredError(name + " hub")
		}
		return nil
	case PlaceLocation:
		if locationID == nil {
			return errs.NewValueIsRequiredError(name + " location")
		}
		return nil
	case PlaceLastJob:
		if !isEnd {
			return errs.NewValueIsInvalidErrorWithCause(name, errors.New("route can not start at the last job"))
		}
		return nil
	default:
		return errs.NewValueIsInvalidErrorWithCause(name, fmt.Errorf("%q is not a valid placement", string(p)))
	}
}

func containsID(ids []kernel.UUID, id kernel.UUID) bool {
	for _, v := range ids {
		if v.IsEqual(id) {
			return true
		}
	}
	return false
}
