package services

import (
	"fmt"
	"slices"
	"time"

	"routeopt/internal/core/domain/model/fleet"
	"routeopt/internal/core/domain/model/kernel"
	"routeopt/internal/core/domain/model/route"
	"routeopt/internal/core/domain/services/solver"
	"routeopt/internal/pkg/errs"
)

const breakTitle = "Break"

// ServiceTimes are the fallbacks used when neither skills nor the job set one.
type ServiceTimes struct {
	Default time.Duration
	Pickup  time.Duration
}

// ForJob sums the per-skill overrides, then falls back to the job override
// and finally to the default.
func (s ServiceTimes) ForJob(j fleet.Job) time.Duration {
	var sum time.Duration
	overridden := false
	for _, sk := range j.Skills {
		if sk.ServiceTime != nil {
			sum += *sk.ServiceTime
			overridden = true
		}
	}
	if overridden {
		return sum
	}
	if j.ServiceTime != nil {
		return *j.ServiceTime
	}
	return s.Default
}

func (s ServiceTimes) ForPickup(p fleet.Pickup) time.Duration {
	if p.ServiceTime != nil {
		return *p.ServiceTime
	}
	return s.Pickup
}

// VehicleOptions tune how a driver enters a plan.
type VehicleOptions struct {
	UseCapacity bool
	// From replaces the start site, and FromTime the window start, when a
	// route prefix is kept as it is.
	From      *Site
	FromTime  *time.Time
	StartLoad float64
}

type planVehicle struct {
	driver ResolvedDriver
	start  Site
	breaks []fleet.Break
}

type pickupRef struct {
	jobID    kernel.UUID
	pickupID kernel.UUID
	title    string
	point    kernel.GeoPoint
}

type planRequest struct {
	groupID *kernel.UUID
	jobs    []fleet.Job
	// pickups holds the pickups merged into each solver pickup node.
	pickups [][]pickupRef
}

// Plan maps drivers and jobs onto a solver problem and solver timelines back
// onto route points.
type Plan struct {
	day      time.Time
	service  ServiceTimes
	points   []kernel.GeoPoint
	pointIdx map[string]int

	vehicles   []planVehicle
	solverVehs []solver.Vehicle
	requests   []planRequest
	solverReqs []solver.Request
	byKey      map[string]int
	byPickup   map[kernel.UUID][2]int
}

func NewPlan(day time.Time, service ServiceTimes) *Plan {
	return &Plan{
		day:      day,
		service:  service,
		pointIdx: make(map[string]int),
		byKey:    make(map[string]int),
		byPickup: make(map[kernel.UUID][2]int),
	}
}

func (p *Plan) Day() time.Time {
	return p.day
}

// AddVehicle registers a driver and returns its vehicle index.
func (p *Plan) AddVehicle(d ResolvedDriver, opts VehicleOptions) int {
	start := d.Start
	if opts.From != nil {
		start = *opts.From
	}
	window := d.Window
	if from := opts.FromTime; from != nil && from.After(window.Start()) {
		end := window.End()
		if from.After(end) {
			end = *from
		}
		if w, err := kernel.NewTimeWindow(*from, end); err == nil {
			window = w
		}
	}

	breaks := slices.Clone(d.Breaks)
	slices.SortFunc(breaks, func(a, b fleet.Break) int { return a.Window.Start().Compare(b.Window.Start()) })
	breaks = slices.DeleteFunc(breaks, func(b fleet.Break) bool {
		return b.Window.Start().Add(b.AllowedShift).Before(window.Start())
	})

	v := solver.Vehicle{
		Key:       d.Driver.ID.String(),
		Start:     p.location(start.Point),
		End:       -1,
		Window:    p.window(window),
		Skills:    uuidStrings(d.Driver.SkillIDs),
		StartLoad: opts.StartLoad,
	}
	if d.End != nil {
		v.End = p.location(d.End.Point)
	}
	if opts.UseCapacity && d.Driver.Capacity != nil {
		c := *d.Driver.Capacity
		v.Capacity = &c
	}
	for _, b := range breaks {
		v.Breaks = append(v.Breaks, solver.Break{
			Window: solver.Window{
				Start: solver.Seconds(p.day, b.Window.Start().Add(-b.AllowedShift)),
				End:   solver.Seconds(p.day, b.Window.Start().Add(b.AllowedShift)),
			},
			Duration: int(b.Window.Duration() / time.Second),
		})
	}

	p.vehicles = append(p.vehicles, planVehicle{driver: d, start: start, breaks: breaks})
	p.solverVehs = append(p.solverVehs, v)
	return len(p.vehicles) - 1
}

// AddJobs turns jobs into requests. Members of one concatenated job become a
// single request; served members are left out while any member is unserved.
// pin returns the vehicle a job is bound to, or -1. The request indexes are
// returned in job order.
func (p *Plan) AddJobs(jobs []fleet.Job, pin func(fleet.Job) int) []int {
	var order []string
	groups := make(map[string][]fleet.Job)
	for _, j := range jobs {
		key := j.ID.String()
		if j.ConcatenatedID != nil {
			key = j.ConcatenatedID.String()
		}
		if _, ok := p.byKey[key]; ok {
			continue
		}
		if _, ok := groups[key]; !ok {
			order = append(order, key)
		}
		groups[key] = append(groups[key], j)
	}

	out := make([]int, 0, len(order))
	for _, key := range order {
		members := groups[key]
		if unserved := slices.DeleteFunc(slices.Clone(members), func(j fleet.Job) bool {
			return j.Status.IsTerminal()
		}); len(unserved) > 0 {
			members = unserved
		}
		vehicle := -1
		if pin != nil {
			vehicle = pin(members[0])
		}
		out = append(out, p.addRequest(key, members, vehicle))
	}
	return out
}

func (p *Plan) addRequest(key string, members []fleet.Job, vehicle int) int {
	r := len(p.requests)
	first := members[0]
	pr := planRequest{jobs: members}
	if first.ConcatenatedID != nil {
		id := *first.ConcatenatedID
		pr.groupID = &id
	}

	delivery := solver.Node{Location: p.location(first.Point), Window: p.jobWindow(members)}
	var skills []string
	for _, m := range members {
		delivery.Service += seconds(p.service.ForJob(m))
		delivery.Demand += demand(m)
		for _, s := range uuidStrings(m.SkillIDs()) {
			if !slices.Contains(skills, s) {
				skills = append(skills, s)
			}
		}
	}

	req := solver.Request{Key: key, Delivery: delivery, Skills: skills, Vehicle: vehicle}
	for _, m := range members {
		if m.Status.IsPickupPassed() {
			continue
		}
		for _, pk := range m.Pickups {
			ref := pickupRef{jobID: m.ID, pickupID: pk.ID, title: pk.Address, point: pk.Point}
			node := slices.IndexFunc(pr.pickups, func(refs []pickupRef) bool { return refs[0].point.IsEqual(pk.Point) })
			if node < 0 {
				req.Pickups = append(req.Pickups, solver.Node{
					Location: p.location(pk.Point),
					Window:   p.optionalWindow(pk.Window),
				})
				pr.pickups = append(pr.pickups, nil)
				node = len(req.Pickups) - 1
			}
			req.Pickups[node].Service += seconds(p.service.ForPickup(pk))
			req.Pickups[node].Demand += pickupDemand(m, pk)
			pr.pickups[node] = append(pr.pickups[node], ref)
			p.byPickup[pk.ID] = [2]int{r, node}
		}
	}

	p.requests = append(p.requests, pr)
	p.solverReqs = append(p.solverReqs, req)
	p.byKey[key] = r
	return r
}

// Driver returns the driver behind vehicle v.
func (p *Plan) Driver(v int) ResolvedDriver {
	return p.vehicles[v].driver
}

func (p *Plan) VehicleCount() int {
	return len(p.vehicles)
}

// Jobs returns the members served by request r.
func (p *Plan) Jobs(r int) []fleet.Job {
	return p.requests[r].jobs
}

// JobIDs flattens the members of the given requests.
func (p *Plan) JobIDs(requests []int) []kernel.UUID {
	var out []kernel.UUID
	for _, r := range requests {
		for _, j := range p.requests[r].jobs {
			out = append(out, j.ID)
		}
	}
	return out
}

// RequestOf returns the request a job belongs to.
func (p *Plan) RequestOf(jobID kernel.UUID) (int, bool) {
	for r, pr := range p.requests {
		for _, j := range pr.jobs {
			if j.ID.IsEqual(jobID) {
				return r, true
			}
		}
	}
	return 0, false
}

// Locations lists the distinct coordinates referenced by the plan, in
// solver location order.
func (p *Plan) Locations() []kernel.GeoPoint {
	return p.points
}

func (p *Plan) Problem(m solver.Matrix) *solver.Problem {
	return &solver.Problem{
		Locations: p.points,
		Matrix:    m,
		Vehicles:  p.solverVehs,
		Requests:  p.solverReqs,
	}
}

// StopsOf maps the points of an existing route onto solver stops of vehicle
// v. Terminal points are implied by the vehicle and skipped, as are pickups
// that are already behind the driver.
func (p *Plan) StopsOf(v int, points []*route.RoutePoint) ([]solver.Stop, error) {
	stops := make([]solver.Stop, 0, len(points))
	breaks := 0
	for _, pt := range points {
		switch pt.Kind() {
		case route.KindHub, route.KindLocation:
			continue
		case route.KindBreak:
			if breaks < len(p.vehicles[v].breaks) {
				stops = append(stops, solver.BreakStop(breaks))
			}
			breaks++
		case route.KindPickup:
			pickupID := pt.Ref().PickupID()
			if pickupID == nil {
				continue
			}
			loc, ok := p.byPickup[*pickupID]
			if !ok {
				continue
			}
			stop := solver.PickupStop(loc[0], loc[1])
			if !slices.Contains(stops, stop) {
				stops = append(stops, stop)
			}
		case route.KindDelivery:
			id, _ := pt.Ref().ID()
			r, ok := p.byKey[id.String()]
			if !ok {
				return nil, errs.NewObjectNotFoundError("job", id)
			}
			stops = append(stops, solver.DeliveryStop(r))
		}
	}
	return stops, nil
}

// Materialize turns a timeline of vehicle v into route points. Points of the
// existing route that visit the same object keep their id and the start time
// promised to the customer.
func (p *Plan) Materialize(v int, tl solver.Timeline, existing []*route.RoutePoint) ([]*route.RoutePoint, error) {
	reuse := reuseIndex(existing)
	veh := p.vehicles[v]
	out := make([]*route.RoutePoint, 0, len(tl.Visits)+2)

	departure := solver.At(p.day, tl.Departure)
	startPoint := veh.start.Point
	first, err := p.point(reuse, "start:"+veh.start.Ref.Key(),
		veh.start.Kind, veh.start.Ref, &startPoint, veh.start.Title, 0, departure, departure, tl.StartLoad)
	if err != nil {
		return nil, err
	}
	out = append(out, first)

	last := veh.start.Point
	load := tl.StartLoad
	breaks := 0
	for _, visit := range tl.Visits {
		start, end := solver.At(p.day, visit.Start), solver.At(p.day, visit.End)
		load = visit.Load
		var pt *route.RoutePoint
		switch visit.Stop.Kind {
		case solver.StopBreak:
			b := veh.breaks[visit.Stop.Index]
			pt, err = p.point(reuse, fmt.Sprintf("break:%d", breaks),
				route.KindBreak, route.BreakRef(), nil, breakTitle, b.Window.Duration(), start, end, load)
			breaks++
		case solver.StopPickup:
			refs := p.requests[visit.Stop.Request].pickups[visit.Stop.Index]
			ref := route.PickupRef(refs[0].jobID, refs[0].pickupID)
			geo := refs[0].point
			last = geo
			pt, err = p.point(reuse, ref.Key(), route.KindPickup, ref, &geo, refs[0].title,
				time.Duration(p.solverReqs[visit.Stop.Request].Pickups[visit.Stop.Index].Service)*time.Second, start, end, load)
		case solver.StopDelivery:
			ref, geo, title := p.deliveryRef(visit.Stop.Request)
			last = geo
			pt, err = p.point(reuse, ref.Key(), route.KindDelivery, ref, &geo, title,
				time.Duration(p.solverReqs[visit.Stop.Request].Delivery.Service)*time.Second, start, end, load)
		}
		if err != nil {
			return nil, err
		}
		out = append(out, pt)
	}

	arrival := solver.At(p.day, tl.Return)
	var closing *route.RoutePoint
	if end := veh.driver.End; end != nil {
		geo := end.Point
		closing, err = p.point(reuse, "end:"+end.Ref.Key(), end.Kind, end.Ref, &geo, end.Title, 0, arrival, arrival, load)
	} else {
		closing, err = p.point(reuse, "end:"+route.LastJobRef().Key(),
			route.KindLocation, route.LastJobRef(), &last, "Last job", 0, arrival, arrival, load)
	}
	if err != nil {
		return nil, err
	}
	out = append(out, closing)

	NewSequencer().Number(out)
	return out, nil
}

// Apply materializes tl into r and refreshes the route totals.
func (p *Plan) Apply(r *route.DriverRoute, v int, tl solver.Timeline) error {
	return p.ApplyAfter(r, v, tl, nil)
}

// ApplyAfter is Apply for a vehicle that continues a kept prefix of the
// route. The vehicle must start at the last prefix point, which replaces the
// materialized start.
func (p *Plan) ApplyAfter(r *route.DriverRoute, v int, tl solver.Timeline, prefix []*route.RoutePoint) error {
	points, err := p.Materialize(v, tl, r.Points())
	if err != nil {
		return err
	}
	start := solver.At(p.day, tl.Departure)
	distance := tl.Distance
	driving := time.Duration(tl.TravelSeconds) * time.Second
	if len(prefix) > 0 {
		points = append(slices.Clone(prefix), points[1:]...)
		NewSequencer().Number(points)
		start = r.StartTime()
		distance += r.DrivingDistance() * prefixShare(r, prefix)
		driving += time.Duration(float64(r.DrivingTime()) * prefixShare(r, prefix))
	}
	if err = r.ReplacePoints(points); err != nil {
		return err
	}
	r.SetTotals(distance, driving, start, solver.At(p.day, tl.Return))
	return r.CheckInvariants()
}

// prefixShare estimates the part of the old totals driven within prefix by
// its share of the route duration.
func prefixShare(r *route.DriverRoute, prefix []*route.RoutePoint) float64 {
	total := r.EndTime().Sub(r.StartTime())
	if total <= 0 {
		return 0
	}
	done := prefix[len(prefix)-1].EndTime().Sub(r.StartTime())
	return min(max(float64(done)/float64(total), 0), 1)
}

// SiteOf describes the place of a terminal or job point.
func SiteOf(pt *route.RoutePoint) Site {
	s := Site{Kind: pt.Kind(), Ref: pt.Ref(), Title: pt.Title()}
	if g := pt.Point(); g != nil {
		s.Point = *g
	}
	return s
}

// TerminalSites returns the start and end sites of an existing route. End is
// nil when the route closes at its last job.
func TerminalSites(points []*route.RoutePoint) (Site, *Site) {
	start := SiteOf(points[0])
	last := points[len(points)-1]
	if last.Ref().Kind() == route.RefLastJob {
		return start, nil
	}
	end := SiteOf(last)
	return start, &end
}

func (p *Plan) deliveryRef(r int) (route.PointRef, kernel.GeoPoint, string) {
	pr := p.requests[r]
	first := pr.jobs[0]
	if pr.groupID == nil {
		return route.JobRef(first.ID), first.Point, first.Title
	}
	ids := make([]kernel.UUID, 0, len(pr.jobs))
	for _, j := range pr.jobs {
		ids = append(ids, j.ID)
	}
	return route.ConcatenatedRef(*pr.groupID, ids), first.Point, first.Address
}

func (p *Plan) point(
	reuse map[string]*route.RoutePoint,
	key string,
	kind route.PointKind,
	ref route.PointRef,
	geo *kernel.GeoPoint,
	title string,
	service time.Duration,
	start, end time.Time,
	load float64,
) (*route.RoutePoint, error) {
	if old, ok := reuse[key]; ok {
		delete(reuse, key)
		return route.RestoreRoutePoint(old.ID(), max(old.Number(), 1), kind, ref, geo, title, service,
			start, end, old.StartTimeKnownToCustomer(), load)
	}
	pt, err := route.NewRoutePoint(kind, ref, geo, title, service)
	if err != nil {
		return nil, err
	}
	return pt, pt.Schedule(start, end, load)
}

func reuseIndex(points []*route.RoutePoint) map[string]*route.RoutePoint {
	idx := make(map[string]*route.RoutePoint, len(points))
	breaks := 0
	for i, pt := range points {
		switch {
		case i == 0 && pt.Kind().IsTerminal():
			idx["start:"+pt.Ref().Key()] = pt
		case i == len(points)-1 && pt.Kind().IsTerminal():
			idx["end:"+pt.Ref().Key()] = pt
		case pt.Kind() == route.KindBreak:
			idx[fmt.Sprintf("break:%d", breaks)] = pt
			breaks++
		default:
			idx[pt.Ref().Key()] = pt
		}
	}
	return idx
}

func (p *Plan) location(g kernel.GeoPoint) int {
	key := fmt.Sprintf("%.7f,%.7f", g.Lat(), g.Lng())
	if i, ok := p.pointIdx[key]; ok {
		return i
	}
	p.points = append(p.points, g)
	p.pointIdx[key] = len(p.points) - 1
	return len(p.points) - 1
}

func (p *Plan) window(w kernel.TimeWindow) solver.Window {
	return solver.Window{Start: solver.Seconds(p.day, w.Start()), End: solver.Seconds(p.day, w.End())}
}

func (p *Plan) optionalWindow(w *kernel.TimeWindow) *solver.Window {
	if w == nil {
		return nil
	}
	sw := p.window(*w)
	return &sw
}

// jobWindow intersects the member windows. Members with disjoint windows fall
// back to the first one.
func (p *Plan) jobWindow(members []fleet.Job) *solver.Window {
	var acc *kernel.TimeWindow
	for _, m := range members {
		if m.Window == nil {
			continue
		}
		if acc == nil {
			w := *m.Window
			acc = &w
			continue
		}
		if w, ok := acc.Intersect(*m.Window); ok {
			acc = &w
		}
	}
	return p.optionalWindow(acc)
}

func demand(j fleet.Job) float64 {
	if j.Capacity <= 0 {
		return 1
	}
	return j.Capacity
}

func pickupDemand(j fleet.Job, pk fleet.Pickup) float64 {
	if pk.Capacity > 0 {
		return pk.Capacity
	}
	return demand(j) / float64(len(j.Pickups))
}

func seconds(d time.Duration) int {
	return int(d / time.Second)
}

func uuidStrings(ids []kernel.UUID) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		out = append(out, id.String())
	}
	return out
}
