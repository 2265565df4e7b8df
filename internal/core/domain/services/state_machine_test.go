package services_test

import (
	"testing"
	"time"

	"routeopt/internal/core/domain/model/fleet"
	"routeopt/internal/core/domain/model/kernel"
	"routeopt/internal/core/domain/model/optimisation"
	"routeopt/internal/core/domain/model/route"
	"routeopt/internal/core/domain/services"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func routeWithJobs(t *testing.T, driverID kernel.UUID, jobs ...fleet.Job) *route.DriverRoute {
	t.Helper()
	hub := kernel.MustGeoPoint(52.5, 13.4)
	points := []*route.RoutePoint{}
	add := func(kind route.PointKind, ref route.PointRef) {
		p, err := route.NewRoutePoint(kind, ref, &hub, "", time.Minute)
		require.NoError(t, err)
		points = append(points, p)
	}
	add(route.KindHub, route.HubRef(kernel.NewUUID()))
	for _, j := range jobs {
		add(route.KindDelivery, route.JobRef(j.ID))
	}
	add(route.KindHub, route.HubRef(kernel.NewUUID()))
	services.NewSequencer().Number(points)

	r, err := route.NewDriverRoute(kernel.NewUUID(), kernel.NewUUID(), driverID, "Ann")
	require.NoError(t, err)
	require.NoError(t, r.ReplacePoints(points))
	return r
}

func assignedJob(driverID kernel.UUID, status fleet.OrderStatus) fleet.Job {
	j := newJob("A", 52.5, 13.4)
	j.Status = status
	j.DriverID = &driverID
	return j
}

func byID(jobs ...fleet.Job) map[kernel.UUID]fleet.Job {
	m := make(map[kernel.UUID]fleet.Job, len(jobs))
	for _, j := range jobs {
		m[j.ID] = j
	}
	return m
}

func TestStateMachine_RouteState(t *testing.T) {
	sm := services.NewStateMachine()
	driver := kernel.NewUUID()

	tests := []struct {
		name     string
		statuses []fleet.OrderStatus
		want     route.State
	}{
		{name: "all assigned", statuses: []fleet.OrderStatus{fleet.Assigned, fleet.Assigned}, want: route.Created},
		{name: "one picked up", statuses: []fleet.OrderStatus{fleet.Assigned, fleet.PickedUp}, want: route.Running},
		{name: "one delivered", statuses: []fleet.OrderStatus{fleet.Delivered, fleet.Assigned}, want: route.Running},
		{name: "all terminal", statuses: []fleet.OrderStatus{fleet.Delivered, fleet.Failed}, want: route.Finished},
		{name: "no jobs", want: route.Finished},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var jobs []fleet.Job
			for _, s := range tt.statuses {
				jobs = append(jobs, assignedJob(driver, s))
			}
			r := routeWithJobs(t, driver, jobs...)

			assert.Equal(t, tt.want, sm.RouteState(r, byID(jobs...)))
		})
	}

	t.Run("unassigned jobs are gone", func(t *testing.T) {
		delivered := assignedJob(driver, fleet.Delivered)
		unassigned := assignedJob(driver, fleet.NotAssigned)
		unassigned.DriverID = nil
		r := routeWithJobs(t, driver, delivered, unassigned)

		assert.Equal(t, route.Finished, sm.RouteState(r, byID(delivered, unassigned)))
	})
}

func TestStateMachine_OptimisationState(t *testing.T) {
	sm := services.NewStateMachine()

	assert.Equal(t, optimisation.Completed,
		sm.OptimisationState(optimisation.Completed, false, []route.State{route.Created, route.Finished}))
	assert.Equal(t, optimisation.Running,
		sm.OptimisationState(optimisation.Completed, false, []route.State{route.Running, route.Finished}))
	assert.Equal(t, optimisation.Finished,
		sm.OptimisationState(optimisation.Running, false, []route.State{route.Finished, route.Finished}))
	assert.Equal(t, optimisation.Running,
		sm.OptimisationState(optimisation.Running, true, []route.State{route.Finished}), "solver still running")
	assert.Equal(t, optimisation.Failed,
		sm.OptimisationState(optimisation.Failed, false, []route.State{route.Running}))
	assert.Equal(t, optimisation.Removed,
		sm.OptimisationState(optimisation.Removed, false, nil))
}

func TestStateMachine_Sync(t *testing.T) {
	sm := services.NewStateMachine()
	driver := kernel.NewUUID()
	active := assignedJob(driver, fleet.InProgress)
	waiting := assignedJob(driver, fleet.Assigned)
	r := routeWithJobs(t, driver, active, waiting)
	o, err := optimisation.RestoreRouteOptimisation(
		kernel.NewUUID(), kernel.NewUUID(),
		optimisation.Initiator{MemberID: "m", Role: optimisation.RoleManager},
		testDay, optimisation.Advanced, optimisation.Completed,
		baseOptions(nil, nil), false, nil, nil, testDay,
	)
	require.NoError(t, err)

	changed, err := sm.Sync(o, []*route.DriverRoute{r}, byID(active, waiting), false)

	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, route.Running, r.State())
	assert.Equal(t, optimisation.Running, o.State())

	active.Status = fleet.Delivered
	waiting.Status = fleet.Failed
	changed, err = sm.Sync(o, []*route.DriverRoute{r}, byID(active, waiting), false)

	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, route.Finished, r.State())
	assert.Equal(t, optimisation.Finished, o.State())

	changed, err = sm.Sync(o, []*route.DriverRoute{r}, byID(active, waiting), false)
	require.NoError(t, err)
	assert.False(t, changed)
}
