package commands_test

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"routeopt/internal/adapters/out/memory"
	"routeopt/internal/core/application/usecases/commands"
	"routeopt/internal/core/domain/model/fleet"
	"routeopt/internal/core/domain/model/kernel"
	"routeopt/internal/core/domain/model/optimisation"
	"routeopt/internal/core/domain/model/route"
	"routeopt/internal/core/domain/services/solver"
	"routeopt/internal/core/ports"
	"routeopt/internal/pkg/throttle"
	"routeopt/internal/testutil"

	"github.com/stretchr/testify/require"
)

var (
	testDay = time.Date(2030, time.March, 4, 0, 0, 0, 0, time.UTC)
	testNow = time.Date(2030, time.March, 3, 12, 0, 0, 0, time.UTC)
)

func at(hour, minute int) time.Time {
	return testDay.Add(time.Duration(hour)*time.Hour + time.Duration(minute)*time.Minute)
}

func window(fromH, toH int) kernel.TimeWindow {
	w, err := kernel.NewTimeWindow(at(fromH, 0), at(toH, 0))
	if err != nil {
		panic(err)
	}
	return w
}

// world is a merchant with its fleet, jobs and an in-memory store wired into
// command handlers.
type world struct {
	t *testing.T

	store     *testutil.Store
	fleet     *testutil.FleetDirectory
	jobs      *testutil.JobDirectory
	clock     *testutil.Clock
	notifier  *testutil.Notifier
	queue     *testutil.Queue
	sink      *testutil.EventSink
	lock      *memory.SolverLock
	distances *testutil.DistanceTable

	merchant  fleet.Merchant
	hub       fleet.Hub
	initiator optimisation.Initiator
}

func newWorld(t *testing.T) *world {
	t.Helper()
	merchant := fleet.Merchant{
		ID:                 kernel.NewUUID(),
		Timezone:           time.UTC,
		DefaultServiceTime: 5 * time.Minute,
		PickupServiceTime:  5 * time.Minute,
	}
	hub := fleet.Hub{ID: kernel.NewUUID(), Name: "Main hub", Point: kernel.MustGeoPoint(52.37, 4.89)}
	return &world{
		t:         t,
		store:     testutil.NewStore(),
		fleet:     &testutil.FleetDirectory{Merchant: merchant, Hubs: []fleet.Hub{hub}},
		jobs:      testutil.NewJobDirectory(),
		clock:     testutil.NewClock(testNow),
		notifier:  &testutil.Notifier{},
		queue:     &testutil.Queue{},
		sink:      &testutil.EventSink{},
		lock:      memory.NewSolverLock(),
		distances: testutil.NewStraightLineTable(10),
		merchant:  merchant,
		hub:       hub,
		initiator: optimisation.Initiator{MemberID: "m1", Role: optimisation.RoleManager, Name: "Ann"},
	}
}

func (w *world) addDriver(name string) fleet.Driver {
	hubID := w.hub.ID
	d := fleet.Driver{
		ID:           kernel.NewUUID(),
		Name:         name,
		DefaultHubID: &hubID,
		Schedule:     fleet.Schedule{Window: window(8, 18)},
	}
	w.fleet.Drivers = append(w.fleet.Drivers, d)
	return d
}

func (w *world) addJob(title string, lat, lng float64) fleet.Job {
	j := fleet.Job{
		ID:      kernel.NewUUID(),
		Title:   title,
		Status:  fleet.NotAssigned,
		Address: title + " street",
		Point:   kernel.MustGeoPoint(lat, lng),
	}
	w.jobs.Put(j)
	return j
}

// addAssignedJob adds a job already given to d, which pins it to d's route.
func (w *world) addAssignedJob(title string, lat, lng float64, d fleet.Driver) fleet.Job {
	j := w.addJob(title, lat, lng)
	driverID := d.ID
	j.DriverID = &driverID
	j.Status = fleet.Assigned
	w.jobs.Put(j)
	return j
}

func (w *world) options(jobs []fleet.Job, drivers ...fleet.Driver) optimisation.Options {
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

func (w *world) logger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func (w *world) solver() *solver.Solver {
	return solver.New(solver.Config{
		TimeLimit:               2 * time.Second,
		TimeLimitPickups:        time.Second,
		MaxReachableMeters:      500_000,
		ContinentDistanceMeters: 3_000_000,
	})
}

func (w *world) createHandler() commands.CreateOptimisationCommandHandler {
	return commands.NewCreateOptimisationCommandHandler(w.store, w.fleet, w.jobs, w.queue, w.clock)
}

func (w *world) runHandler() commands.RunOptimisationCommandHandler {
	return w.runHandlerWith(w.jobs)
}

func (w *world) runHandlerWith(jobs ports.JobDirectory) commands.RunOptimisationCommandHandler {
	return commands.NewRunOptimisationCommandHandler(
		w.store, w.fleet, jobs, w.distances, 4, w.solver(), w.lock, w.notifier, w.clock, w.logger())
}

func (w *world) refreshHandler() commands.RefreshOptimisationCommandHandler {
	return commands.NewRefreshOptimisationCommandHandler(w.store, w.fleet, w.jobs, w.queue, w.clock)
}

func (w *world) moveHandler() commands.MoveOrdersCommandHandler {
	return w.moveHandlerWith(w.jobs)
}

func (w *world) moveHandlerWith(jobs ports.JobDirectory) commands.MoveOrdersCommandHandler {
	return commands.NewMoveOrdersCommandHandler(
		w.store, w.fleet, jobs, w.distances, 4, w.notifier, w.clock, w.logger())
}

// racingJobs runs hook once, right before the first assignment, standing in
// for a change made concurrently in the job service.
type racingJobs struct {
	*testutil.JobDirectory
	hook func()
}

func (r *racingJobs) Assign(ctx context.Context, driverID kernel.UUID, ids []kernel.UUID) error {
	if hook := r.hook; hook != nil {
		r.hook = nil
		hook()
	}
	return r.JobDirectory.Assign(ctx, driverID, ids)
}

func (w *world) reorderHandler() commands.ReorderSequenceCommandHandler {
	return commands.NewReorderSequenceCommandHandler(
		w.store, w.fleet, w.jobs, w.distances, 4, w.notifier, w.clock, w.logger())
}

func (w *world) deleteHandler(limit int) commands.DeleteOptimisationCommandHandler {
	w.t.Helper()
	limiter, err := throttle.NewWindow(limit, time.Millisecond, throttle.SystemClock())
	require.NoError(w.t, err)
	return commands.NewDeleteOptimisationCommandHandler(
		w.store, w.jobs, w.sink, limiter, w.notifier, w.clock, w.logger())
}

// create stores a new optimisation and returns its id.
func (w *world) create(typ optimisation.Type, options optimisation.Options) kernel.UUID {
	w.t.Helper()
	id := kernel.NewUUID()
	cmd, err := commands.NewCreateOptimisationCommand(id, w.merchant.ID, w.initiator, testDay, typ, options)
	require.NoError(w.t, err)
	handler := w.createHandler()
	require.NoError(w.t, handler.Handle(w.t.Context(), cmd))
	return id
}

func (w *world) run(id kernel.UUID) error {
	w.t.Helper()
	cmd, err := commands.NewRunOptimisationCommand(id)
	require.NoError(w.t, err)
	handler := w.runHandler()
	return handler.Handle(w.t.Context(), cmd)
}

// build creates an advanced optimisation and solves it.
func (w *world) build(options optimisation.Options) kernel.UUID {
	w.t.Helper()
	id := w.create(optimisation.Advanced, options)
	require.NoError(w.t, w.run(id))
	return id
}

func (w *world) routeOf(optimisationID kernel.UUID, d fleet.Driver) *route.DriverRoute {
	w.t.Helper()
	for _, r := range w.store.Routes(optimisationID) {
		if r.DriverID().IsEqual(d.ID) {
			return r
		}
	}
	w.t.Fatalf("driver %s has no route", d.Name)
	return nil
}

// pointOf returns the delivery point of job j on r.
func pointOf(t *testing.T, r *route.DriverRoute, j fleet.Job) *route.RoutePoint {
	t.Helper()
	for _, pt := range r.JobPoints() {
		if pt.Kind() != route.KindDelivery {
			continue
		}
		for _, id := range pt.Ref().JobIDs() {
			if id.IsEqual(j.ID) {
				return pt
			}
		}
	}
	t.Fatalf("job %s is not on the route", j.Title)
	return nil
}

func hasEvent(o *optimisation.RouteOptimisation, event optimisation.EventType) bool {
	for _, e := range o.Log() {
		if e.Event == event {
			return true
		}
	}
	return false
}

func lastEvent(o *optimisation.RouteOptimisation) optimisation.LogEntry {
	log := o.Log()
	return log[len(log)-1]
}
