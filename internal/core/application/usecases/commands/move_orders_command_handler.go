package commands

import (
	"context"
	"log/slog"
	"time"

	"routeopt/internal/core/domain/model/fleet"
	"routeopt/internal/core/domain/model/kernel"
	"routeopt/internal/core/domain/model/optimisation"
	"routeopt/internal/core/domain/model/route"
	"routeopt/internal/core/domain/model/task"
	"routeopt/internal/core/domain/services"
	"routeopt/internal/core/domain/services/solver"
	"routeopt/internal/core/ports"
	"routeopt/internal/pkg/errs"

	"github.com/samber/lo"
)

type MoveOrdersCommandHandler struct {
	uowFactory UoWFactory
	dirs       directories
	planner    routePlanner
	notifier   ports.Notifier
	clock      ports.Clock
	logger     *slog.Logger
}

func NewMoveOrdersCommandHandler(
	uowFactory UoWFactory,
	fleetDirectory ports.FleetDirectory,
	jobDirectory ports.JobDirectory,
	distances ports.DistanceProvider,
	distanceConcurrency int,
	notifier ports.Notifier,
	clock ports.Clock,
	logger *slog.Logger,
) MoveOrdersCommandHandler {
	return MoveOrdersCommandHandler{
		uowFactory: uowFactory,
		dirs:       directories{fleet: fleetDirectory, jobs: jobDirectory},
		planner:    newRoutePlanner(distances, distanceConcurrency),
		notifier:   notifier,
		clock:      clock,
		logger:     logger.With("component", "MoveOrders"),
	}
}

// moveTarget is where moved jobs go. route is nil when the target driver has
// no route for the day yet and opt is nil until a new optimisation is made.
type moveTarget struct {
	route *route.DriverRoute
	opt   *optimisation.RouteOptimisation
}

// moveState carries one move between its planning steps.
type moveState struct {
	cmd      MoveOrdersCommand
	o        *optimisation.RouteOptimisation
	merchant fleet.Merchant
	day      time.Time
	now      time.Time
	handover *jobHandover

	source  *route.DriverRoute
	target  moveTarget
	others  map[kernel.UUID][]*route.DriverRoute
	jobs    map[kernel.UUID]fleet.Job
	moved   []fleet.Job
	movedPt map[kernel.UUID]bool

	targetDriver fleet.Driver
	plan         *services.Plan
	srcVehicle   int
	tgtVehicle   int
	srcPrefix    []*route.RoutePoint
	tgtPrefix    []*route.RoutePoint
	srcStops     []solver.Stop
	tgtStops     []solver.Stop
	srcTimeline  solver.Timeline
	tgtTimeline  solver.Timeline
	outOfHours   bool
}

func (h *MoveOrdersCommandHandler) Handle(ctx context.Context, cmd MoveOrdersCommand) error {
	if err := cmd.Validate(); err != nil {
		return err
	}

	messages, err := h.move(ctx, cmd)
	if err != nil {
		return rejectMutation(ctx, h.uowFactory, h.clock, cmd.OptimisationID(), operationMove, err)
	}
	notifyAll(ctx, h.notifier, h.logger, messages)
	return nil
}

func (h *MoveOrdersCommandHandler) move(ctx context.Context, cmd MoveOrdersCommand) ([]ports.Message, error) {
	uow := h.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, err
	}

	defer func() {
		_ = uow.Rollback(ctx)
	}()

	o, err := getManageable(ctx, uow, cmd.OptimisationID(), cmd.MerchantID())
	if err != nil {
		return nil, err
	}
	merchant, err := h.dirs.fleet.GetMerchant(ctx, cmd.MerchantID())
	if err != nil {
		return nil, err
	}
	st := &moveState{
		cmd:      cmd,
		o:        o,
		merchant: merchant,
		day:      dayIn(o.Day(), merchant.Tz()),
		now:      h.clock.Now(),
		handover: newJobHandover(h.dirs.jobs),
	}

	if err = h.locate(ctx, uow, st); err != nil {
		return nil, err
	}
	if err = h.selectMoved(ctx, st); err != nil {
		return nil, err
	}
	if err = h.replan(ctx, st); err != nil {
		return nil, err
	}
	if err = h.check(st); err != nil {
		return nil, err
	}

	messages, err := h.apply(ctx, uow, st)
	if err != nil {
		return nil, err
	}
	if err = uow.Commit(ctx); err != nil {
		if revertErr := st.handover.revert(context.WithoutCancel(ctx)); revertErr != nil {
			h.logger.ErrorContext(ctx, "failed to give moved jobs back", "error", revertErr)
		}
		return nil, err
	}
	return messages, nil
}

// locate finds the source route and the route of the target driver and locks both.
//
// The target route is looked up in this optimisation first, then in other
// manageable optimisations of the same day. Without one a new optimisation
// is created on apply.
func (h *MoveOrdersCommandHandler) locate(ctx context.Context, uow UoW, st *moveState) error {
	routes, err := uow.RouteRepository().ListByOptimisation(ctx, st.o.ID())
	if err != nil {
		return err
	}
	source, ok := lo.Find(routes, func(r *route.DriverRoute) bool { return r.ID().IsEqual(st.cmd.RouteID()) })
	if !ok {
		return errNotFound("route", st.cmd.RouteID())
	}
	if source.DriverID().IsEqual(st.cmd.TargetDriverID()) {
		return errs.NewConflictError(services.MsgSameDriver)
	}
	isTarget := func(r *route.DriverRoute) bool { return r.DriverID().IsEqual(st.cmd.TargetDriverID()) }

	st.others = make(map[kernel.UUID][]*route.DriverRoute)
	if r, found := lo.Find(routes, isTarget); found {
		st.target = moveTarget{route: r, opt: st.o}
	}

	sameDay, err := uow.OptimisationRepository().FindForDay(ctx, st.o.MerchantID(), st.o.Day())
	if err != nil {
		return err
	}
	for _, other := range sameDay {
		if other.ID().IsEqual(st.o.ID()) {
			continue
		}
		otherRoutes, err := uow.RouteRepository().ListByOptimisation(ctx, other.ID())
		if err != nil {
			return err
		}
		st.others[other.ID()] = otherRoutes
		if st.target.route != nil || !other.State().IsManageable() {
			continue
		}
		if r, found := lo.Find(otherRoutes, isTarget); found {
			if err = ensureIdle(ctx, uow.TaskRepository(), other.ID()); err != nil {
				return err
			}
			st.target = moveTarget{route: r, opt: other}
		}
	}

	ids := []kernel.UUID{source.ID()}
	if st.target.route != nil {
		ids = append(ids, st.target.route.ID())
	}
	locked, err := uow.RouteRepository().GetForUpdate(ctx, ids)
	if err != nil {
		return err
	}
	for _, r := range locked {
		switch {
		case r.ID().IsEqual(source.ID()):
			st.source = r
		case st.target.route != nil && r.ID().IsEqual(st.target.route.ID()):
			st.target.route = r
		}
	}
	if st.source == nil {
		return errNotFound("route", source.ID())
	}
	return nil
}

// selectMoved resolves the selected points into jobs. Every point serving a
// selected job moves with it, so a pickup never stays behind its delivery.
func (h *MoveOrdersCommandHandler) selectMoved(ctx context.Context, st *moveState) error {
	jobIDs := st.source.JobIDs()
	if st.target.route != nil {
		jobIDs = append(jobIDs, st.target.route.JobIDs()...)
	}
	jobs, err := h.dirs.jobsByID(ctx, st.cmd.MerchantID(), jobIDs)
	if err != nil {
		return err
	}
	st.jobs = jobs

	selected := make(map[kernel.UUID]bool)
	for _, id := range st.cmd.PointIDs() {
		pt, err := st.source.PointByID(id)
		if err != nil {
			return errs.NewConflictError(route.ErrPointNotFound.Error())
		}
		if !pt.Kind().IsJob() {
			return errs.NewConflictError(services.MsgOnlyAssigned)
		}
		for _, jobID := range pt.Ref().JobIDs() {
			selected[jobID] = true
		}
	}

	// Members of a concatenated delivery share one point and move together.
	st.movedPt = make(map[kernel.UUID]bool)
	for changed := true; changed; {
		changed = false
		for _, pt := range st.source.JobPoints() {
			ids := pt.Ref().JobIDs()
			if st.movedPt[pt.ID()] || !lo.SomeBy(ids, func(id kernel.UUID) bool { return selected[id] }) {
				continue
			}
			st.movedPt[pt.ID()] = true
			changed = true
			for _, id := range ids {
				selected[id] = true
			}
		}
	}

	for id := range selected {
		j, ok := st.jobs[id]
		if !ok || j.Status != fleet.Assigned || !j.IsAssignedTo(st.source.DriverID()) {
			return errs.NewConflictError(services.MsgOnlyAssigned)
		}
	}
	// Route order keeps insertion on the target stable.
	order := lo.Uniq(lo.FlatMap(st.source.JobPoints(), func(pt *route.RoutePoint, _ int) []kernel.UUID {
		return pt.Ref().JobIDs()
	}))
	st.moved = lo.FilterMap(order, func(id kernel.UUID, _ int) (fleet.Job, bool) {
		return st.jobs[id], selected[id]
	})
	return nil
}

// replan rebuilds both timelines: the source without the moved jobs and the
// target with each moved job at its cheapest feasible position.
func (h *MoveOrdersCommandHandler) replan(ctx context.Context, st *moveState) error {
	merchantID := st.cmd.MerchantID()
	targetDriver, err := h.dirs.driver(ctx, merchantID, st.cmd.TargetDriverID(), st.day)
	if err != nil {
		return err
	}
	for _, j := range st.moved {
		if !targetDriver.HasSkills(j.SkillIDs()) {
			return errs.NewConflictError(services.MsgSkills)
		}
	}
	sourceDriver, err := h.dirs.driver(ctx, merchantID, st.source.DriverID(), st.day)
	if err != nil {
		return err
	}
	st.targetDriver = targetDriver

	options := st.o.Options()
	st.plan = services.NewPlan(st.day, services.ServiceTimesFor(options, st.merchant))

	prefix, rest := services.SplitStarted(st.source.Points(), st.jobs)
	st.srcPrefix = withoutPoints(prefix, st.movedPt)
	rest = withoutPoints(rest, st.movedPt)
	start, end := services.TerminalSites(st.source.Points())
	srcDriver, _, err := h.planner.routeDriver(sourceDriver, st.o, st.day, st.now, start, end)
	if err != nil {
		return err
	}
	st.srcVehicle = st.plan.AddVehicle(srcDriver, continueAfter(st.srcPrefix, options.UseVehicleCapacity))

	var tgtRest []*route.RoutePoint
	if st.target.route != nil {
		st.tgtPrefix, tgtRest = services.SplitStarted(st.target.route.Points(), st.jobs)
		start, end = services.TerminalSites(st.target.route.Points())
	} else {
		hubs, locations, err := h.dirs.places(ctx, merchantID, options, []fleet.Driver{targetDriver})
		if err != nil {
			return err
		}
		if start, end, err = services.ResolveSites(options, targetDriver, hubs, locations); err != nil {
			return err
		}
	}
	tgtDriver, excluded, err := h.planner.routeDriver(targetDriver, st.o, st.day, st.now, start, end)
	if err != nil {
		return err
	}
	if excluded == optimisation.ExcludeDayOff {
		return errs.NewConflictError(services.MsgDayOff)
	}
	st.outOfHours = excluded != ""
	st.tgtVehicle = st.plan.AddVehicle(tgtDriver, continueAfter(st.tgtPrefix, options.UseVehicleCapacity))

	st.plan.AddJobs(jobsOnPoints(rest, st.jobs), pinTo(st.srcVehicle))
	st.plan.AddJobs(jobsOnPoints(tgtRest, st.jobs), pinTo(st.tgtVehicle))
	movedRequests := st.plan.AddJobs(st.moved, pinTo(st.tgtVehicle))

	problem, err := h.planner.problem(ctx, st.plan)
	if err != nil {
		return err
	}

	if st.srcStops, err = st.plan.StopsOf(st.srcVehicle, rest); err != nil {
		return err
	}
	st.srcStops = problem.PlaceBreaks(st.srcVehicle, st.srcStops)
	st.srcTimeline = problem.Evaluate(st.srcVehicle, st.srcStops)

	if st.tgtStops, err = st.plan.StopsOf(st.tgtVehicle, tgtRest); err != nil {
		return err
	}
	for _, r := range movedRequests {
		stops, ok := problem.BestInsertion(st.tgtVehicle, st.tgtStops, r)
		if !ok {
			stops = appendRequest(problem, st.tgtStops, r)
		}
		st.tgtStops = stops
	}
	st.tgtStops = problem.PlaceBreaks(st.tgtVehicle, st.tgtStops)
	st.tgtTimeline = problem.Evaluate(st.tgtVehicle, st.tgtStops)
	return nil
}

// check turns target timeline violations into conflicts.
func (h *MoveOrdersCommandHandler) check(st *moveState) error {
	hard, soft := st.plan.Conflicts(st.tgtTimeline, st.tgtStops)
	if len(hard) > 0 {
		return errs.NewConflictError(hard[0])
	}
	if st.outOfHours {
		soft = append(soft, services.MsgOutOfSchedule)
	}
	if h.intersects(st) {
		soft = append(soft, services.MsgRouteIntersects)
	}
	if soft = lo.Uniq(soft); len(soft) > 0 && !st.cmd.Force() {
		return errs.NewForcibleConflictError(soft)
	}
	return nil
}

// intersects reports whether the new target route overlaps a route of the
// same driver in another optimisation of the day.
func (h *MoveOrdersCommandHandler) intersects(st *moveState) bool {
	start := solver.At(st.plan.Day(), st.tgtTimeline.Departure)
	if len(st.tgtPrefix) > 0 {
		start = st.target.route.StartTime()
	}
	end := solver.At(st.plan.Day(), st.tgtTimeline.Return)

	for optID, routes := range st.others {
		if st.target.opt != nil && optID.IsEqual(st.target.opt.ID()) {
			continue
		}
		for _, r := range routes {
			if r.DriverID().IsEqual(st.targetDriver.ID) && r.StartTime().Before(end) && start.Before(r.EndTime()) {
				return true
			}
		}
	}
	return false
}

func (h *MoveOrdersCommandHandler) apply(ctx context.Context, uow UoW, st *moveState) ([]ports.Message, error) {
	routes := uow.RouteRepository()
	movedIDs := lo.Map(st.moved, func(j fleet.Job, _ int) kernel.UUID { return j.ID })
	var messages []ports.Message

	if len(requestsOf(st.srcStops)) == 0 && !hasJobPoints(st.srcPrefix) {
		if err := routes.Delete(ctx, st.source.ID()); err != nil {
			return nil, err
		}
		messages = append(messages, routeRemoved(st.source))
	} else {
		if err := applyRoute(st.plan, st.source, st.srcVehicle, st.srcTimeline, st.srcPrefix); err != nil {
			return nil, err
		}
		if err := routes.Update(ctx, st.source); err != nil {
			return nil, err
		}
		if isPromiseBroken(st.source) {
			st.o.InvalidateCustomersNotified()
		}
		messages = append(messages, routeChanged(st.source))
	}

	target := st.target
	if target.route != nil {
		if err := applyRoute(st.plan, target.route, st.tgtVehicle, st.tgtTimeline, st.tgtPrefix); err != nil {
			return nil, err
		}
		if err := routes.Update(ctx, target.route); err != nil {
			return nil, err
		}
	} else {
		var err error
		if target.opt, err = h.createTargetOptimisation(ctx, uow, st, movedIDs); err != nil {
			return nil, err
		}
		if target.route, err = route.NewDriverRoute(
			kernel.NewUUID(), target.opt.ID(), st.targetDriver.ID, st.targetDriver.Name,
		); err != nil {
			return nil, err
		}
		if err = st.plan.Apply(target.route, st.tgtVehicle, st.tgtTimeline); err != nil {
			return nil, err
		}
		if err = routes.Add(ctx, target.route); err != nil {
			return nil, err
		}
	}

	params := optimisation.LogParams{
		Count:        len(movedIDs),
		SourceDriver: st.source.DriverName(),
		TargetDriver: st.targetDriver.Name,
		Initiator:    st.cmd.Initiator().Label(),
	}
	target.opt.AddPlacedJobs(movedIDs)
	if isPromiseBroken(target.route) {
		target.opt.InvalidateCustomersNotified()
	}
	if target.opt != st.o {
		if err := target.opt.SetOptions(target.opt.Options().WithJobs(movedIDs)); err != nil {
			return nil, err
		}
		target.opt.AppendLog(optimisation.EventJobsMoved, params, st.now)
		if err := uow.OptimisationRepository().Update(ctx, target.opt); err != nil {
			return nil, err
		}
	}
	st.o.AppendLog(optimisation.EventJobsMoved, params, st.now)
	if err := uow.OptimisationRepository().Update(ctx, st.o); err != nil {
		return nil, err
	}
	if err := st.handover.assign(ctx, st.targetDriver.ID, st.moved); err != nil {
		return nil, err
	}

	h.logger.InfoContext(ctx, "jobs moved",
		"optimisation_id", st.o.ID().String(),
		"target_optimisation_id", target.opt.ID().String(),
		"count", len(movedIDs),
	)
	return append(messages,
		ports.JobsUnassignedMessage{DriverID: st.source.DriverID(), JobIDs: movedIDs},
		ports.JobsAssignedMessage{DriverID: st.targetDriver.ID, JobIDs: movedIDs},
		routeChanged(target.route),
	), nil
}

// createTargetOptimisation opens an Advanced optimisation for a driver who has
// no route on the day. It is completed right away; no solver runs for it.
func (h *MoveOrdersCommandHandler) createTargetOptimisation(
	ctx context.Context,
	uow UoW,
	st *moveState,
	jobIDs []kernel.UUID,
) (*optimisation.RouteOptimisation, error) {
	options := st.o.Options()
	options.JobIDs = append([]kernel.UUID(nil), jobIDs...)
	options.DriverIDs = []kernel.UUID{st.targetDriver.ID}

	o, err := optimisation.NewRouteOptimisation(
		kernel.NewUUID(), st.o.MerchantID(), st.cmd.Initiator(), st.o.Day(), optimisation.Advanced, options, st.now,
	)
	if err != nil {
		return nil, err
	}
	if err = o.TransitionTo(optimisation.Completed); err != nil {
		return nil, err
	}
	o.AppendLog(optimisation.EventCreatedAfterMove, optimisation.LogParams{Initiator: st.cmd.Initiator().Label()}, st.now)

	t, err := task.NewOptimisationTask(kernel.NewUUID(), o.ID(), task.KindBuild, st.now)
	if err != nil {
		return nil, err
	}
	if err = t.Start(st.now); err != nil {
		return nil, err
	}
	if err = t.Complete(st.now); err != nil {
		return nil, err
	}

	if err = uow.OptimisationRepository().Add(ctx, o); err != nil {
		return nil, err
	}
	if err = uow.TaskRepository().Add(ctx, t); err != nil {
		return nil, err
	}
	return o, nil
}

// withoutPoints drops the points listed in ids.
func withoutPoints(points []*route.RoutePoint, ids map[kernel.UUID]bool) []*route.RoutePoint {
	if len(points) == 0 {
		return nil
	}
	return lo.Reject(points, func(pt *route.RoutePoint, _ int) bool { return ids[pt.ID()] })
}

// jobsOnPoints returns the known jobs delivered at points.
func jobsOnPoints(points []*route.RoutePoint, jobs map[kernel.UUID]fleet.Job) []fleet.Job {
	var out []fleet.Job
	for _, pt := range points {
		if pt.Kind() != route.KindDelivery {
			continue
		}
		for _, id := range pt.Ref().JobIDs() {
			if j, ok := jobs[id]; ok {
				out = append(out, j)
			}
		}
	}
	return out
}

func hasJobPoints(points []*route.RoutePoint) bool {
	return lo.SomeBy(points, func(pt *route.RoutePoint) bool { return pt.Kind().IsJob() })
}

func pinTo(v int) func(fleet.Job) int {
	return func(fleet.Job) int { return v }
}
