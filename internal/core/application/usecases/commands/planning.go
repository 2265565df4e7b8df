package commands

import (
	"context"
	"fmt"
	"time"

	"routeopt/internal/core/domain/model/fleet"
	"routeopt/internal/core/domain/model/optimisation"
	"routeopt/internal/core/domain/model/route"
	"routeopt/internal/core/domain/services"
	"routeopt/internal/core/domain/services/distcache"
	"routeopt/internal/core/domain/services/solver"
	"routeopt/internal/core/ports"
)

// routePlanner builds solver problems for optimisation runs and route mutations.
type routePlanner struct {
	distances   ports.DistanceProvider
	concurrency int
	windows     services.DriverWindowResolver
}

func newRoutePlanner(distances ports.DistanceProvider, concurrency int) routePlanner {
	return routePlanner{
		distances:   distances,
		concurrency: concurrency,
		windows:     services.NewDriverWindowResolver(),
	}
}

// problem fetches the travel matrix of plan. Distances are memoized for the
// duration of one call only.
func (p routePlanner) problem(ctx context.Context, plan *services.Plan) (*solver.Problem, error) {
	table, err := distcache.New(p.distances, p.concurrency).Table(ctx, plan.Locations())
	if err != nil {
		return nil, fmt.Errorf("fetch distances: %w", err)
	}
	return plan.Problem(table), nil
}

// routeDriver resolves d for re-timing a route between start and end. A
// driver the resolver excludes keeps the full schedule and the exclusion
// reason is returned for the caller to judge.
func (p routePlanner) routeDriver(
	d fleet.Driver,
	o *optimisation.RouteOptimisation,
	day, now time.Time,
	start services.Site,
	end *services.Site,
) (services.ResolvedDriver, string, error) {
	working, err := o.Options().WorkingWindow(day)
	if err != nil {
		return services.ResolvedDriver{}, "", err
	}
	w, exclusion := p.windows.Resolve(d, day, now.In(day.Location()), working)
	reason := ""
	if exclusion != nil {
		reason = exclusion.Reason
		w = services.DriverWindow{Driver: d, Window: d.Schedule.Window, Breaks: d.Schedule.Breaks}
	}
	return services.ResolvedDriver{DriverWindow: w, Start: start, End: end}, reason, nil
}

// continueAfter makes a vehicle start where the kept prefix of a route ends.
func continueAfter(prefix []*route.RoutePoint, useCapacity bool) services.VehicleOptions {
	opts := services.VehicleOptions{UseCapacity: useCapacity}
	if len(prefix) == 0 {
		return opts
	}
	last := prefix[len(prefix)-1]
	site := services.SiteOf(last)
	from := last.EndTime()
	opts.From = &site
	opts.FromTime = &from
	opts.StartLoad = last.UtilizedCapacity()
	return opts
}

// applyRoute writes tl into r keeping prefix untouched.
func applyRoute(plan *services.Plan, r *route.DriverRoute, v int, tl solver.Timeline, prefix []*route.RoutePoint) error {
	if len(prefix) == 0 {
		return plan.Apply(r, v, tl)
	}
	return plan.ApplyAfter(r, v, tl, prefix)
}

// requestsOf lists the requests delivered by stops, in visiting order.
func requestsOf(stops []solver.Stop) []int {
	var out []int
	for _, s := range stops {
		if s.Kind == solver.StopDelivery {
			out = append(out, s.Request)
		}
	}
	return out
}

// appendRequest adds request r at the end of stops, pickups first.
func appendRequest(problem *solver.Problem, stops []solver.Stop, r int) []solver.Stop {
	out := append([]solver.Stop(nil), stops...)
	for i := range problem.Requests[r].Pickups {
		out = append(out, solver.PickupStop(r, i))
	}
	return append(out, solver.DeliveryStop(r))
}

// isPromiseBroken reports whether any time told to a customer shifted.
func isPromiseBroken(r *route.DriverRoute) bool {
	for _, pt := range r.Points() {
		if pt.IsPromiseBroken() {
			return true
		}
	}
	return false
}

func jobTitles(jobs []fleet.Job) []string {
	out := make([]string, 0, len(jobs))
	for _, j := range jobs {
		out = append(out, j.Title)
	}
	return out
}
