package commands

import (
	"context"
	"fmt"
	"time"

	"routeopt/internal/core/domain/model/fleet"
	"routeopt/internal/core/domain/model/kernel"
	"routeopt/internal/core/domain/model/optimisation"
	"routeopt/internal/core/domain/services"
	"routeopt/internal/core/ports"

	"github.com/samber/lo"
)

// directories loads collaborator records for optimisation use cases.
type directories struct {
	fleet ports.FleetDirectory
	jobs  ports.JobDirectory
}

// optionsInput gathers what the options validator needs for options.
func (d directories) optionsInput(
	ctx context.Context,
	merchant fleet.Merchant,
	typ optimisation.Type,
	day, now time.Time,
	options optimisation.Options,
) (services.OptionsInput, error) {
	jobs, err := d.jobs.GetJobs(ctx, merchant.ID, options.JobIDs)
	if err != nil {
		return services.OptionsInput{}, fmt.Errorf("load jobs: %w", err)
	}
	drivers, err := d.fleet.GetDrivers(ctx, merchant.ID, options.DriverIDs, day)
	if err != nil {
		return services.OptionsInput{}, fmt.Errorf("load drivers: %w", err)
	}
	hubs, locations, err := d.places(ctx, merchant.ID, options, drivers)
	if err != nil {
		return services.OptionsInput{}, err
	}
	return services.OptionsInput{
		Merchant:  merchant,
		Type:      typ,
		Day:       day,
		Now:       now,
		Options:   options,
		Jobs:      jobs,
		Drivers:   drivers,
		Hubs:      hubs,
		Locations: locations,
	}, nil
}

// places loads the hubs and locations the options and drivers refer to.
func (d directories) places(
	ctx context.Context,
	merchantID kernel.UUID,
	options optimisation.Options,
	drivers []fleet.Driver,
) ([]fleet.Hub, []fleet.Location, error) {
	hubIDs := lo.FilterMap(
		append([]*kernel.UUID{options.StartHubID, options.EndHubID}, lo.Map(drivers, func(dr fleet.Driver, _ int) *kernel.UUID {
			return dr.DefaultHubID
		})...),
		func(id *kernel.UUID, _ int) (kernel.UUID, bool) { return lo.FromPtr(id), id != nil },
	)
	locationIDs := lo.FilterMap(
		[]*kernel.UUID{options.StartLocationID, options.EndLocationID},
		func(id *kernel.UUID, _ int) (kernel.UUID, bool) { return lo.FromPtr(id), id != nil },
	)

	var hubs []fleet.Hub
	if ids := lo.Uniq(hubIDs); len(ids) > 0 {
		var err error
		if hubs, err = d.fleet.GetHubs(ctx, merchantID, ids); err != nil {
			return nil, nil, fmt.Errorf("load hubs: %w", err)
		}
	}
	var locations []fleet.Location
	if ids := lo.Uniq(locationIDs); len(ids) > 0 {
		var err error
		if locations, err = d.fleet.GetLocations(ctx, merchantID, ids); err != nil {
			return nil, nil, fmt.Errorf("load locations: %w", err)
		}
	}
	return hubs, locations, nil
}

// jobsByID loads jobs keyed by id.
func (d directories) jobsByID(ctx context.Context, merchantID kernel.UUID, ids []kernel.UUID) (map[kernel.UUID]fleet.Job, error) {
	if len(ids) == 0 {
		return map[kernel.UUID]fleet.Job{}, nil
	}
	jobs, err := d.jobs.GetJobs(ctx, merchantID, lo.Uniq(ids))
	if err != nil {
		return nil, fmt.Errorf("load jobs: %w", err)
	}
	return lo.KeyBy(jobs, func(j fleet.Job) kernel.UUID { return j.ID }), nil
}

// driver loads one driver with the schedule for day.
func (d directories) driver(ctx context.Context, merchantID, driverID kernel.UUID, day time.Time) (fleet.Driver, error) {
	drivers, err := d.fleet.GetDrivers(ctx, merchantID, []kernel.UUID{driverID}, day)
	if err != nil {
		return fleet.Driver{}, fmt.Errorf("load driver: %w", err)
	}
	for _, dr := range drivers {
		if dr.ID.IsEqual(driverID) {
			return dr, nil
		}
	}
	return fleet.Driver{}, errNotFound("driver", driverID)
}

// dayIn returns the calendar day of t at midnight in loc.
func dayIn(t time.Time, loc *time.Location) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}
