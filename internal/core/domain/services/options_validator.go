package services

import (
	"errors"
	"fmt"
	"time"

	"routeopt/internal/core/domain/model/fleet"
	"routeopt/internal/core/domain/model/kernel"
	"routeopt/internal/core/domain/model/optimisation"
	"routeopt/internal/core/domain/model/route"
	"routeopt/internal/pkg/errs"
)

// Site is a place a route starts or ends at.
type Site struct {
	Kind  route.PointKind
	Ref   route.PointRef
	Point kernel.GeoPoint
	Title string
}

func HubSite(h fleet.Hub) Site {
	return Site{Kind: route.KindHub, Ref: route.HubRef(h.ID), Point: h.Point, Title: h.Name}
}

func LocationSite(l fleet.Location) Site {
	return Site{Kind: route.KindLocation, Ref: route.LocationRef(l.ID), Point: l.Point, Title: l.Address}
}

func DriverPointSite(p kernel.GeoPoint) Site {
	return Site{Kind: route.KindLocation, Ref: route.DriverPointRef(), Point: p, Title: "Driver location"}
}

// ResolvedDriver is a driver ready to be turned into a solver vehicle.
type ResolvedDriver struct {
	DriverWindow
	Start Site
	// End is nil when the route closes at its last job.
	End *Site
}

// OptionsInput is the raw request together with the collaborator records it
// references. Lookups for ids of another merchant must have returned nothing.
type OptionsInput struct {
	Merchant  fleet.Merchant
	Type      optimisation.Type
	Day       time.Time
	Now       time.Time
	Options   optimisation.Options
	Jobs      []fleet.Job
	Drivers   []fleet.Driver
	Hubs      []fleet.Hub
	Locations []fleet.Location
}

// ValidatedOptions is the solver-ready configuration.
type ValidatedOptions struct {
	Options    optimisation.Options
	Day        time.Time
	Working    kernel.TimeWindow
	Jobs       []fleet.Job
	Drivers    []ResolvedDriver
	Exclusions []DriverExclusion
}

// ServiceTimes returns the defaults for the optimisation, falling back to the
// merchant settings.
func (v *ValidatedOptions) ServiceTimes(m fleet.Merchant) ServiceTimes {
	return ServiceTimesFor(v.Options, m)
}

// ServiceTimesFor is ServiceTimes for options stored on an optimisation.
func ServiceTimesFor(o optimisation.Options, m fleet.Merchant) ServiceTimes {
	st := ServiceTimes{Default: o.ServiceTime(), Pickup: o.PickupServiceDuration()}
	if st.Default == 0 {
		st.Default = m.DefaultServiceTime
	}
	if st.Pickup == 0 {
		st.Pickup = m.PickupServiceTime
	}
	return st
}

// OptionsValidator turns a request into ValidatedOptions. It has no side effects.
type OptionsValidator struct {
	windows DriverWindowResolver
}

func NewOptionsValidator() OptionsValidator {
	return OptionsValidator{windows: NewDriverWindowResolver()}
}

func (v OptionsValidator) Validate(in OptionsInput) (*ValidatedOptions, error) {
	if err := in.Options.Validate(); err != nil {
		return nil, err
	}
	if err := in.Type.Validate(); err != nil {
		return nil, err
	}
	tz := in.Merchant.Tz()
	day := midnight(in.Day.In(tz))
	if day.Before(midnight(in.Now.In(tz))) {
		return nil, errs.NewValueIsInvalidErrorWithCause("day", errors.New("day is in the past"))
	}
	if in.Options.UseVehicleCapacity && !in.Merchant.CapacityEnabled {
		return nil, errs.NewValueIsInvalidErrorWithCause(
			"use_vehicle_capacity",
			errors.New("capacity is disabled for the merchant"),
		)
	}
	working, err := in.Options.WorkingWindow(day)
	if err != nil {
		return nil, err
	}

	if err = v.checkDrivers(in); err != nil {
		return nil, err
	}
	jobs, err := v.checkJobs(in)
	if err != nil {
		return nil, err
	}
	hubs, locations, err := v.checkPlaces(in)
	if err != nil {
		return nil, err
	}

	out := &ValidatedOptions{Options: in.Options, Day: day, Working: working, Jobs: jobs}
	for _, d := range in.Drivers {
		start, end, reason := resolveSites(in.Options, d, hubs, locations)
		if reason != "" {
			out.Exclusions = append(out.Exclusions, DriverExclusion{Driver: d, Reason: reason})
			continue
		}
		w, exclusion := v.windows.Resolve(d, day, in.Now.In(tz), working)
		if exclusion != nil {
			out.Exclusions = append(out.Exclusions, *exclusion)
			continue
		}
		out.Drivers = append(out.Drivers, ResolvedDriver{DriverWindow: w, Start: start, End: end})
	}
	if len(out.Drivers) == 0 {
		return nil, noDriversLeft(out.Exclusions)
	}
	return out, nil
}

func (v OptionsValidator) checkDrivers(in OptionsInput) error {
	if len(in.Options.DriverIDs) == 0 {
		return errs.NewValueIsRequiredError("drivers")
	}
	if in.Type == optimisation.Solo && len(in.Options.DriverIDs) != 1 {
		return errs.NewValueIsInvalidErrorWithCause("drivers", errors.New("solo optimisation is built for one driver"))
	}
	for _, id := range in.Options.DriverIDs {
		if !containsDriver(in.Drivers, id) {
			return errs.NewObjectNotFoundError("driver", id)
		}
	}
	return nil
}

func (v OptionsValidator) checkJobs(in OptionsInput) ([]fleet.Job, error) {
	if len(in.Options.JobIDs) == 0 {
		return nil, errs.NewValueIsRequiredError("jobs")
	}
	byID := make(map[kernel.UUID]fleet.Job, len(in.Jobs))
	for _, j := range in.Jobs {
		byID[j.ID] = j
	}
	jobs := make([]fleet.Job, 0, len(in.Options.JobIDs))
	for _, id := range in.Options.JobIDs {
		j, ok := byID[id]
		if !ok {
			return nil, errs.NewObjectNotFoundError("job", id)
		}
		if err := j.Validate(); err != nil {
			return nil, err
		}
		if j.Status != fleet.NotAssigned && j.Status != fleet.Assigned {
			return nil, errs.NewValueIsInvalidErrorWithCause(
				"job",
				fmt.Errorf("job %s is %s and can not be optimised", j.Title, j.Status),
			)
		}
		if !in.Options.ReOptimiseAssigned && j.DriverID != nil && !containsDriver(in.Drivers, *j.DriverID) {
			return nil, errs.NewValueIsInvalidErrorWithCause(
				"job",
				fmt.Errorf("job %s is assigned to a driver outside the optimisation", j.Title),
			)
		}
		jobs = append(jobs, j)
	}
	return jobs, nil
}

func (v OptionsValidator) checkPlaces(in OptionsInput) (map[kernel.UUID]fleet.Hub, map[kernel.UUID]fleet.Location, error) {
	hubs := make(map[kernel.UUID]fleet.Hub, len(in.Hubs))
	for _, h := range in.Hubs {
		hubs[h.ID] = h
	}
	locations := make(map[kernel.UUID]fleet.Location, len(in.Locations))
	for _, l := range in.Locations {
		locations[l.ID] = l
	}
	o := in.Options
	for _, id := range []*kernel.UUID{o.StartHubID, o.EndHubID} {
		if id == nil {
			continue
		}
		if _, ok := hubs[*id]; !ok {
			return nil, nil, errs.NewObjectNotFoundError("hub", *id)
		}
	}
	for _, id := range []*kernel.UUID{o.StartLocationID, o.EndLocationID} {
		if id == nil {
			continue
		}
		if _, ok := locations[*id]; !ok {
			return nil, nil, errs.NewObjectNotFoundError("location", *id)
		}
	}
	return hubs, locations, nil
}

// ResolveSites finds where the route of d starts and ends under o.
func ResolveSites(o optimisation.Options, d fleet.Driver, hubs []fleet.Hub, locations []fleet.Location) (Site, *Site, error) {
	hubByID := make(map[kernel.UUID]fleet.Hub, len(hubs))
	for _, h := range hubs {
		hubByID[h.ID] = h
	}
	locationByID := make(map[kernel.UUID]fleet.Location, len(locations))
	for _, l := range locations {
		locationByID[l.ID] = l
	}
	for _, id := range []*kernel.UUID{o.StartHubID, o.EndHubID} {
		if id != nil {
			if _, ok := hubByID[*id]; !ok {
				return Site{}, nil, errs.NewObjectNotFoundError("hub", *id)
			}
		}
	}
	for _, id := range []*kernel.UUID{o.StartLocationID, o.EndLocationID} {
		if id != nil {
			if _, ok := locationByID[*id]; !ok {
				return Site{}, nil, errs.NewObjectNotFoundError("location", *id)
			}
		}
	}
	start, end, reason := resolveSites(o, d, hubByID, locationByID)
	if reason != "" {
		return Site{}, nil, noDriversLeft([]DriverExclusion{{Driver: d, Reason: reason}})
	}
	return start, end, nil
}

// resolveSites returns an exclusion reason when the driver lacks a default
// the placement needs.
func resolveSites(
	o optimisation.Options,
	d fleet.Driver,
	hubs map[kernel.UUID]fleet.Hub,
	locations map[kernel.UUID]fleet.Location,
) (Site, *Site, string) {
	place := func(p optimisation.Placement, hubID, locationID *kernel.UUID) (*Site, string) {
		switch p {
		case optimisation.PlaceHub:
			s := HubSite(hubs[*hubID])
			return &s, ""
		case optimisation.PlaceLocation:
			s := LocationSite(locations[*locationID])
			return &s, ""
		case optimisation.PlaceDefaultHub:
			if d.DefaultHubID == nil {
				return nil, optimisation.ExcludeNoDefaultHub
			}
			h, ok := hubs[*d.DefaultHubID]
			if !ok {
				return nil, optimisation.ExcludeNoDefaultHub
			}
			s := HubSite(h)
			return &s, ""
		case optimisation.PlaceDefaultPoint:
			if d.DefaultPoint == nil {
				return nil, optimisation.ExcludeNoDefaultPoint
			}
			s := DriverPointSite(*d.DefaultPoint)
			return &s, ""
		default:
			return nil, ""
		}
	}
	start, reason := place(o.StartPlace, o.StartHubID, o.StartLocationID)
	if reason != "" {
		return Site{}, nil, reason
	}
	end, reason := place(o.EndPlace, o.EndHubID, o.EndLocationID)
	if reason != "" {
		return Site{}, nil, reason
	}
	return *start, end, ""
}

func noDriversLeft(exclusions []DriverExclusion) error {
	if len(exclusions) == 1 {
		switch exclusions[0].Reason {
		case optimisation.ExcludeNoDefaultHub:
			return errs.NewValueIsRequiredErrorWithCause("default hub", fmt.Errorf("driver %s has no default hub", exclusions[0].Driver.Name))
		case optimisation.ExcludeNoDefaultPoint:
			return errs.NewValueIsRequiredErrorWithCause("default point", fmt.Errorf("driver %s has no default point", exclusions[0].Driver.Name))
		case optimisation.ExcludeDayOff:
			return errs.NewValueIsInvalidErrorWithCause("drivers", fmt.Errorf("driver %s has day off", exclusions[0].Driver.Name))
		}
	}
	return errs.NewValueIsInvalidErrorWithCause(
		"drivers",
		errors.New("no driver is available during the optimisation working hours"),
	)
}

func containsDriver(drivers []fleet.Driver, id kernel.UUID) bool {
	for _, d := range drivers {
		if d.ID.IsEqual(id) {
			return true
		}
	}
	return false
}

func midnight(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
