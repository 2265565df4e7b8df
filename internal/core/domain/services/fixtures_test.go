package services_test

import (
	"time"

	"routeopt/internal/core/domain/model/fleet"
	"routeopt/internal/core/domain/model/kernel"
	"routeopt/internal/core/domain/model/optimisation"
)

var testDay = time.Date(2030, time.March, 4, 0, 0, 0, 0, time.UTC)

func clock(hour, minute int) time.Time {
	return testDay.Add(time.Duration(hour)*time.Hour + time.Duration(minute)*time.Minute)
}

func window(fromH, fromM, toH, toM int) kernel.TimeWindow {
	w, err := kernel.NewTimeWindow(clock(fromH, fromM), clock(toH, toM))
	if err != nil {
		panic(err)
	}
	return w
}

func newDriver(name string, schedule kernel.TimeWindow, breaks ...fleet.Break) fleet.Driver {
	return fleet.Driver{
		ID:       kernel.NewUUID(),
		Name:     name,
		Schedule: fleet.Schedule{Window: schedule, Breaks: breaks},
	}
}

func breakAt(w kernel.TimeWindow) fleet.Break {
	return fleet.Break{Window: w}
}

func newJob(title string, lat, lng float64) fleet.Job {
	return fleet.Job{
		ID:      kernel.NewUUID(),
		Title:   title,
		Status:  fleet.NotAssigned,
		Address: title + " street",
		Point:   kernel.MustGeoPoint(lat, lng),
	}
}

func newHub(name string, lat, lng float64) fleet.Hub {
	return fleet.Hub{ID: kernel.NewUUID(), Name: name, Point: kernel.MustGeoPoint(lat, lng)}
}

func baseOptions(jobs []fleet.Job, drivers []fleet.Driver) optimisation.Options {
	o := optimisation.Options{
		Version:      optimisation.OptionsVersion,
		StartPlace:   optimisation.PlaceDefaultHub,
		EndPlace:     optimisation.PlaceDefaultHub,
		WorkingHours: optimisation.WorkingHours{Lower: 8 * 60, Upper: 20 * 60},
	}
	for _, j := range jobs {
		o.JobIDs = append(o.JobIDs, j.ID)
	}
	for _, d := range drivers {
		o.DriverIDs = append(o.DriverIDs, d.ID)
	}
	return o
}
