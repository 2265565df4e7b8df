package services_test

import (
	"testing"
	"time"

	"routeopt/internal/core/domain/model/fleet"
	"routeopt/internal/core/domain/model/kernel"
	"routeopt/internal/core/domain/model/route"
	"routeopt/internal/core/domain/services"
	"routeopt/internal/core/domain/services/solver"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// tenMinutes drives any two distinct locations in ten minutes.
type tenMinutes struct{}

func (tenMinutes) Travel(from, to int) (float64, int, bool) {
	if from == to {
		return 0, 0, true
	}
	return 5000, 600, true
}

func resolved(d fleet.Driver, hub fleet.Hub, lastJob bool) services.ResolvedDriver {
	rd := services.ResolvedDriver{
		DriverWindow: services.DriverWindow{Driver: d, Window: d.Schedule.Window, Breaks: d.Schedule.Breaks},
		Start:        services.HubSite(hub),
	}
	if !lastJob {
		end := services.HubSite(hub)
		rd.End = &end
	}
	return rd
}

func minutes(n int) *time.Duration {
	d := time.Duration(n) * time.Minute
	return &d
}

func TestServiceTimes(t *testing.T) {
	st := services.ServiceTimes{Default: 12 * time.Minute, Pickup: 4 * time.Minute}
	job := newJob("A", 52.5, 13.4)

	assert.Equal(t, 12*time.Minute, st.ForJob(job))

	job.ServiceTime = minutes(20)
	assert.Equal(t, 20*time.Minute, st.ForJob(job))

	job.Skills = []fleet.Skill{
		{ID: kernel.NewUUID(), ServiceTime: minutes(3)},
		{ID: kernel.NewUUID()},
		{ID: kernel.NewUUID(), ServiceTime: minutes(5)},
	}
	assert.Equal(t, 8*time.Minute, st.ForJob(job))

	assert.Equal(t, 4*time.Minute, st.ForPickup(fleet.Pickup{}))
	assert.Equal(t, time.Minute, st.ForPickup(fleet.Pickup{ServiceTime: minutes(1)}))
}

func TestPlan_AddJobs(t *testing.T) {
	hub := newHub("Main", 52.50, 13.40)
	plan := services.NewPlan(testDay, services.ServiceTimes{Default: 10 * time.Minute, Pickup: 5 * time.Minute})
	plan.AddVehicle(resolved(newDriver("Ann", window(9, 0, 17, 0)), hub, false), services.VehicleOptions{})

	group := kernel.NewUUID()
	shop := kernel.MustGeoPoint(52.40, 13.30)
	first := newJob("A", 52.51, 13.41)
	first.ConcatenatedID = &group
	first.Pickups = []fleet.Pickup{{ID: kernel.NewUUID(), Address: "Shop", Point: shop}}
	second := newJob("B", 52.51, 13.41)
	second.ConcatenatedID = &group
	second.Skills = []fleet.Skill{{ID: kernel.NewUUID()}}
	second.Pickups = []fleet.Pickup{{ID: kernel.NewUUID(), Address: "Shop", Point: shop}}
	served := newJob("C", 52.51, 13.41)
	served.ConcatenatedID = &group
	served.Status = fleet.Delivered
	single := newJob("D", 52.52, 13.42)

	requests := plan.AddJobs([]fleet.Job{first, second, served, single}, nil)

	require.Len(t, requests, 2)
	p := plan.Problem(tenMinutes{})
	grouped := p.Requests[requests[0]]
	assert.Equal(t, group.String(), grouped.Key)
	assert.Equal(t, 20*60, grouped.Delivery.Service)
	assert.InDelta(t, 2.0, grouped.Delivery.Demand, 1e-9)
	assert.Len(t, grouped.Skills, 1)
	require.Len(t, grouped.Pickups, 1, "pickups at one address are merged")
	assert.Equal(t, 10*60, grouped.Pickups[0].Service)
	assert.Equal(t, -1, grouped.Vehicle)
	assert.Len(t, plan.Jobs(requests[0]), 2)
	assert.Len(t, plan.Locations(), 4)

	again := plan.AddJobs([]fleet.Job{single}, nil)
	assert.Empty(t, again, "a job enters the plan once")
}

func TestPlan_MaterializeAndReuse(t *testing.T) {
	hub := newHub("Main", 52.50, 13.40)
	plan := services.NewPlan(testDay, services.ServiceTimes{Default: 10 * time.Minute, Pickup: 5 * time.Minute})
	lunch := fleet.Break{Window: window(12, 0, 12, 30), AllowedShift: 3 * time.Hour}
	v := plan.AddVehicle(resolved(newDriver("Ann", window(9, 0, 17, 0), lunch), hub, false), services.VehicleOptions{})

	a := newJob("A", 52.51, 13.41)
	a.Pickups = []fleet.Pickup{{ID: kernel.NewUUID(), Address: "Shop", Point: kernel.MustGeoPoint(52.40, 13.30)}}
	b := newJob("B", 52.52, 13.42)
	reqs := plan.AddJobs([]fleet.Job{a, b}, nil)
	p := plan.Problem(tenMinutes{})

	stops := []solver.Stop{
		solver.PickupStop(reqs[0], 0), solver.DeliveryStop(reqs[0]),
		solver.BreakStop(0), solver.DeliveryStop(reqs[1]),
	}
	tl := p.Evaluate(v, stops)
	require.True(t, tl.Feasible())

	points, err := plan.Materialize(v, tl, nil)
	require.NoError(t, err)

	kinds := make([]route.PointKind, 0, len(points))
	for i, pt := range points {
		kinds = append(kinds, pt.Kind())
		assert.Equal(t, i+1, pt.Number())
	}
	assert.Equal(t, []route.PointKind{
		route.KindHub, route.KindPickup, route.KindDelivery, route.KindBreak, route.KindDelivery, route.KindHub,
	}, kinds)
	assert.Equal(t, clock(9, 0), points[0].StartTime())
	assert.Equal(t, clock(9, 10), points[1].StartTime())
	assert.Equal(t, clock(9, 25), points[2].StartTime())

	back, err := plan.StopsOf(v, points)
	require.NoError(t, err)
	assert.Equal(t, stops, back)

	points[2].NotifyCustomer()
	shifted := []solver.Stop{solver.DeliveryStop(reqs[1]), solver.PickupStop(reqs[0], 0), solver.DeliveryStop(reqs[0]), solver.BreakStop(0)}
	again, err := plan.Materialize(v, p.Evaluate(v, shifted), points)
	require.NoError(t, err)

	require.Len(t, again, len(points))
	assert.Equal(t, points[0].ID(), again[0].ID())
	assert.Equal(t, points[2].ID(), again[3].ID())
	assert.True(t, again[3].IsPromiseBroken())
	assert.Equal(t, points[5].ID(), again[5].ID())
}

func TestPlan_ApplyClosesAtLastJob(t *testing.T) {
	hub := newHub("Main", 52.50, 13.40)
	plan := services.NewPlan(testDay, services.ServiceTimes{Default: 10 * time.Minute})
	d := newDriver("Ann", window(9, 0, 17, 0))
	v := plan.AddVehicle(resolved(d, hub, true), services.VehicleOptions{})
	job := newJob("A", 52.51, 13.41)
	reqs := plan.AddJobs([]fleet.Job{job}, nil)
	p := plan.Problem(tenMinutes{})

	r, err := route.NewDriverRoute(kernel.NewUUID(), kernel.NewUUID(), d.ID, d.Name)
	require.NoError(t, err)
	require.NoError(t, plan.Apply(r, v, p.Evaluate(v, []solver.Stop{solver.DeliveryStop(reqs[0])})))

	points := r.Points()
	require.Len(t, points, 3)
	last := points[2]
	assert.Equal(t, route.LastJobRef(), last.Ref())
	assert.True(t, job.Point.IsEqual(*last.Point()))
	assert.Equal(t, clock(9, 20), r.EndTime())
	assert.Equal(t, 10*time.Minute, r.DrivingTime())
	assert.InDelta(t, 5000, r.DrivingDistance(), 1e-9)
}

func TestPlan_Conflicts(t *testing.T) {
	hub := newHub("Main", 52.50, 13.40)
	plan := services.NewPlan(testDay, services.ServiceTimes{Default: 10 * time.Minute})
	capacity := 1.0
	d := newDriver("Ann", window(9, 0, 10, 0))
	d.Capacity = &capacity
	v := plan.AddVehicle(resolved(d, hub, false), services.VehicleOptions{UseCapacity: true})
	late := newJob("Late", 52.51, 13.41)
	promised := window(9, 0, 9, 5)
	late.Window = &promised
	heavy := newJob("Heavy", 52.52, 13.42)
	heavy.Capacity = 2
	reqs := plan.AddJobs([]fleet.Job{late, heavy}, nil)
	p := plan.Problem(tenMinutes{})

	stops := []solver.Stop{solver.DeliveryStop(reqs[1]), solver.DeliveryStop(reqs[0])}
	hard, soft := plan.Conflicts(p.Evaluate(v, stops), stops)

	assert.Equal(t, []string{services.MsgCapacity}, hard)
	assert.Contains(t, soft, "Point Late is out of delivery window")
}
