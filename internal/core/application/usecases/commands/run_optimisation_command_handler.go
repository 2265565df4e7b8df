package commands

import (
	"context"
	"errors"
	"fmt"
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

	"github.com/samber/lo"
)

// RunOptimisationCommandHandler executes the solver for a queued optimisation task.
//
// The run has three phases:
//  1. a short transaction marks the task and the optimisation as running
//  2. options are validated again, distances fetched and the solver invoked,
//     without holding any database lock
//  3. a second transaction stores the routes, assigns jobs, appends the log
//     and finishes the task
//
// A solver lock keyed by the optimisation id guarantees one run at a time.
// Infeasible problems leave the optimisation FAILED with the reason logged;
// they are never retried.
type RunOptimisationCommandHandler struct {
	uowFactory UoWFactory
	dirs       directories
	planner    routePlanner
	solver     *solver.Solver
	lock       ports.SolverLock
	notifier   ports.Notifier
	clock      ports.Clock
	logger     *slog.Logger
	validator  services.OptionsValidator
	states     services.StateMachine
	lockTTL    time.Duration
}

func NewRunOptimisationCommandHandler(
	uowFactory UoWFactory,
	fleetDirectory ports.FleetDirectory,
	jobDirectory ports.JobDirectory,
	distances ports.DistanceProvider,
	distanceConcurrency int,
	routeSolver *solver.Solver,
	lock ports.SolverLock,
	notifier ports.Notifier,
	clock ports.Clock,
	logger *slog.Logger,
) RunOptimisationCommandHandler {
	cfg := routeSolver.Config()
	return RunOptimisationCommandHandler{
		uowFactory: uowFactory,
		dirs:       directories{fleet: fleetDirectory, jobs: jobDirectory},
		planner:    newRoutePlanner(distances, distanceConcurrency),
		solver:     routeSolver,
		lock:       lock,
		notifier:   notifier,
		clock:      clock,
		logger:     logger.With("component", "RunOptimisation"),
		validator:  services.NewOptionsValidator(),
		states:     services.NewStateMachine(),
		lockTTL:    2*max(cfg.TimeLimit, cfg.TimeLimitPickups) + 5*time.Minute,
	}
}

// solverRun carries one run across its phases.
type solverRun struct {
	optimisationID kernel.UUID
	kind           task.Kind
	// snapshot is the optimisation as it was when the run started.
	snapshot *optimisation.RouteOptimisation
	routes   []*route.DriverRoute

	merchant  fleet.Merchant
	validated *services.ValidatedOptions
	plan      *services.Plan
	problem   *solver.Problem
	solution  *solver.Solution

	// vehicles maps vehicle indexes to the routes they continue on refresh.
	vehicles map[int]refreshVehicle
	// added holds the jobs a refresh brings in.
	added   map[kernel.UUID]bool
	nothing bool
}

// jobsOf returns the planned jobs with the given ids.
func (run *solverRun) jobsOf(ids []kernel.UUID) []fleet.Job {
	out := make([]fleet.Job, 0, len(ids))
	for _, id := range ids {
		r, ok := run.plan.RequestOf(id)
		if !ok {
			continue
		}
		if j, found := lo.Find(run.plan.Jobs(r), func(j fleet.Job) bool { return j.ID.IsEqual(id) }); found {
			out = append(out, j)
		}
	}
	return out
}

type refreshVehicle struct {
	route  *route.DriverRoute
	prefix []*route.RoutePoint
}

// Handle returns nil when there is no pending task, so duplicate deliveries of
// the same queue message are harmless.
func (h *RunOptimisationCommandHandler) Handle(ctx context.Context, cmd RunOptimisationCommand) error {
	if err := cmd.Validate(); err != nil {
		return err
	}

	key := solverLockKey(cmd.OptimisationID())
	locked, err := h.lock.TryLock(ctx, key, h.lockTTL)
	if err != nil {
		return fmt.Errorf("acquire solver lock: %w", err)
	}
	if !locked {
		return ErrOptimisationBusy
	}
	defer func() {
		_ = h.lock.Unlock(context.WithoutCancel(ctx), key)
	}()

	run, err := h.start(ctx, cmd.OptimisationID())
	if err != nil || run == nil {
		return err
	}

	runErr := h.solve(ctx, run)
	messages, err := h.finish(context.WithoutCancel(ctx), run, runErr)
	if runErr == nil && errors.Is(err, ports.ErrJobNotAssignable) {
		// a planned job changed status while the solver ran
		runErr = err
		messages, err = h.finish(context.WithoutCancel(ctx), run, runErr)
	}
	if err != nil {
		return err
	}
	notifyAll(ctx, h.notifier, h.logger, messages)
	return runErr
}

func (h *RunOptimisationCommandHandler) start(ctx context.Context, id kernel.UUID) (*solverRun, error) {
	uow := h.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, err
	}

	defer func() {
		_ = uow.Rollback(ctx)
	}()

	o, err := uow.OptimisationRepository().Get(ctx, id)
	if err != nil {
		return nil, err
	}
	t, err := uow.TaskRepository().GetByOptimisation(ctx, id)
	if err != nil {
		return nil, err
	}
	if t.Status() != task.Pending {
		return nil, nil
	}

	now := h.clock.Now()
	if err = t.Start(now); err != nil {
		return nil, err
	}
	if o.IsRemoved() {
		if err = t.Fail(optimisation.ErrOptimisationIsRemoved.Error(), now); err != nil {
			return nil, err
		}
		if err = uow.TaskRepository().Update(ctx, t); err != nil {
			return nil, err
		}
		return nil, uow.Commit(ctx)
	}
	if err = o.TransitionTo(optimisation.Running); err != nil {
		return nil, err
	}

	run := &solverRun{optimisationID: id, kind: t.Kind(), snapshot: o}
	if run.kind == task.KindRefresh {
		if run.routes, err = uow.RouteRepository().ListByOptimisation(ctx, id); err != nil {
			return nil, err
		}
	}

	if err = uow.OptimisationRepository().Update(ctx, o); err != nil {
		return nil, err
	}
	if err = uow.TaskRepository().Update(ctx, t); err != nil {
		return nil, err
	}
	if err = uow.Commit(ctx); err != nil {
		return nil, err
	}
	return run, nil
}

func (h *RunOptimisationCommandHandler) solve(ctx context.Context, run *solverRun) error {
	o := run.snapshot
	var err error
	if run.merchant, err = h.dirs.fleet.GetMerchant(ctx, o.MerchantID()); err != nil {
		return fmt.Errorf("load merchant: %w", err)
	}
	day := dayIn(o.Day(), run.merchant.Tz())
	now := h.clock.Now()

	if run.kind == task.KindRefresh {
		return h.solveRefresh(ctx, run, o, day, now)
	}

	in, err := h.dirs.optionsInput(ctx, run.merchant, o.Type(), day, now, o.Options())
	if err != nil {
		return err
	}
	if run.validated, err = h.validator.Validate(in); err != nil {
		return err
	}

	run.plan = services.NewPlan(run.validated.Day, run.validated.ServiceTimes(run.merchant))
	vehicles := make(map[kernel.UUID]int, len(run.validated.Drivers))
	for _, d := range run.validated.Drivers {
		vehicles[d.Driver.ID] = run.plan.AddVehicle(d, services.VehicleOptions{UseCapacity: run.validated.Options.UseVehicleCapacity})
	}
	run.plan.AddJobs(run.validated.Jobs, pinAssigned(run.validated.Options, vehicles))

	return h.invokeSolver(ctx, run)
}

// solveRefresh keeps what drivers already did, keeps the remaining jobs of
// every route on that route and lets the solver place the new jobs.
func (h *RunOptimisationCommandHandler) solveRefresh(
	ctx context.Context,
	run *solverRun,
	o *optimisation.RouteOptimisation,
	day, now time.Time,
) error {
	var routed []kernel.UUID
	for _, r := range run.routes {
		routed = append(routed, r.JobIDs()...)
	}
	routedJobs, err := h.dirs.jobsByID(ctx, o.MerchantID(), routed)
	if err != nil {
		return err
	}

	options := o.Options()
	candidates, err := h.dirs.jobsByID(ctx, o.MerchantID(), lo.Without(options.JobIDs, routed...))
	if err != nil {
		return err
	}
	options.JobIDs = lo.Filter(lo.Without(options.JobIDs, routed...), func(id kernel.UUID, _ int) bool {
		j, ok := candidates[id]
		return ok && isRefreshable(j, options)
	})
	if len(options.JobIDs) == 0 {
		run.nothing = true
		return nil
	}

	in, err := h.dirs.optionsInput(ctx, run.merchant, o.Type(), day, now, options)
	if err != nil {
		return err
	}
	if run.validated, err = h.validator.Validate(in); err != nil {
		return err
	}

	run.plan = services.NewPlan(run.validated.Day, run.validated.ServiceTimes(run.merchant))
	run.vehicles = make(map[int]refreshVehicle, len(run.validated.Drivers))
	run.added = make(map[kernel.UUID]bool, len(options.JobIDs))
	for _, id := range options.JobIDs {
		run.added[id] = true
	}

	byDriver := lo.KeyBy(run.routes, func(r *route.DriverRoute) kernel.UUID { return r.DriverID() })
	vehicles := make(map[kernel.UUID]int, len(run.validated.Drivers))
	for _, d := range run.validated.Drivers {
		r, ok := byDriver[d.Driver.ID]
		if !ok {
			vehicles[d.Driver.ID] = run.plan.AddVehicle(d, services.VehicleOptions{UseCapacity: options.UseVehicleCapacity})
			continue
		}
		prefix, rest := services.SplitStarted(r.Points(), routedJobs)
		start, end := services.TerminalSites(r.Points())
		d.Start, d.End = start, end
		v := run.plan.AddVehicle(d, continueAfter(prefix, options.UseVehicleCapacity))
		vehicles[d.Driver.ID] = v
		run.vehicles[v] = refreshVehicle{route: r, prefix: prefix}

		var kept []fleet.Job
		for _, pt := range rest {
			if pt.Kind() != route.KindDelivery {
				continue
			}
			for _, id := range pt.Ref().JobIDs() {
				if j, ok := routedJobs[id]; ok {
					kept = append(kept, j)
				}
			}
		}
		run.plan.AddJobs(kept, func(fleet.Job) int { return v })
	}
	run.plan.AddJobs(run.validated.Jobs, pinAssigned(options, vehicles))

	if err = h.invokeSolver(ctx, run); err != nil {
		return err
	}
	h.keepRoutedJobs(run)
	return nil
}

// keepRoutedJobs puts jobs the solver dropped from an existing route back on
// it. Any conflict they cause stays visible on the route.
func (h *RunOptimisationCommandHandler) keepRoutedJobs(run *solverRun) {
	var skipped []solver.Skip
	for _, sk := range run.solution.Skipped {
		v := run.problem.Requests[sk.Request].Vehicle
		if _, continued := run.vehicles[v]; v < 0 || !continued {
			skipped = append(skipped, sk)
			continue
		}
		for i := range run.solution.Routes {
			sr := &run.solution.Routes[i]
			if sr.Vehicle != v {
				continue
			}
			stops, ok := run.problem.BestInsertion(v, sr.Stops, sk.Request)
			if !ok {
				stops = appendRequest(run.problem, sr.Stops, sk.Request)
			}
			sr.Stops = stops
			sr.Timeline = run.problem.Evaluate(v, stops)
		}
	}
	run.solution.Skipped = skipped
}

func (h *RunOptimisationCommandHandler) invokeSolver(ctx context.Context, run *solverRun) error {
	var err error
	if run.problem, err = h.planner.problem(ctx, run.plan); err != nil {
		return err
	}
	startedAt := time.Now()
	run.solution, err = h.solver.Solve(ctx, run.problem)
	h.logger.InfoContext(ctx, "solver finished",
		"optimisation", run.optimisationID.String(),
		"vehicles", len(run.problem.Vehicles),
		"requests", len(run.problem.Requests),
		"took", time.Since(startedAt),
		"error", err,
	)
	return err
}

func (h *RunOptimisationCommandHandler) finish(ctx context.Context, run *solverRun, runErr error) ([]ports.Message, error) {
	uow := h.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, err
	}

	defer func() {
		_ = uow.Rollback(ctx)
	}()

	o, err := uow.OptimisationRepository().Get(ctx, run.optimisationID)
	if err != nil {
		return nil, err
	}
	t, err := uow.TaskRepository().GetByOptimisation(ctx, run.optimisationID)
	if err != nil {
		return nil, err
	}

	now := h.clock.Now()
	handover := newJobHandover(h.dirs.jobs)
	var messages []ports.Message
	switch {
	case o.IsRemoved():
		err = t.Fail(optimisation.ErrOptimisationIsRemoved.Error(), now)
	case runErr != nil:
		err = h.fail(o, t, run, runErr, now)
	case run.nothing:
		o.AppendLog(optimisation.EventNothingToRefresh, optimisation.LogParams{}, now)
		err = errors.Join(h.settle(ctx, uow, o, run), t.Complete(now))
	default:
		messages, err = h.store(ctx, uow, o, run, handover, now)
		if err == nil {
			err = t.Complete(now)
		}
	}
	if err == nil && !o.IsRemoved() {
		err = uow.OptimisationRepository().Update(ctx, o)
	}
	if err == nil {
		err = uow.TaskRepository().Update(ctx, t)
	}
	if err == nil {
		err = uow.Commit(ctx)
	}
	if err != nil {
		if revertErr := handover.revert(context.WithoutCancel(ctx)); revertErr != nil {
			h.logger.ErrorContext(ctx, "failed to give assigned jobs back",
				"optimisation", run.optimisationID.String(), "error", revertErr)
		}
		return nil, err
	}
	return messages, nil
}

// fail records a run that produced no routes. Routes built before a failed
// refresh are kept so a later refresh can recover the optimisation.
func (h *RunOptimisationCommandHandler) fail(
	o *optimisation.RouteOptimisation,
	t *task.OptimisationTask,
	run *solverRun,
	runErr error,
	now time.Time,
) error {
	reason := runErr.Error()
	var infeasible *solver.InfeasibleError
	if errors.As(runErr, &infeasible) {
		reason = infeasible.Reason
		h.logSkipped(o, run, now)
	}
	return errors.Join(o.Fail(reason, now), t.Fail(reason, now))
}

func (h *RunOptimisationCommandHandler) store(
	ctx context.Context,
	uow UoW,
	o *optimisation.RouteOptimisation,
	run *solverRun,
	handover *jobHandover,
	now time.Time,
) ([]ports.Message, error) {
	if run.kind == task.KindBuild {
		logDrivers(o, run.validated, now)
	}

	var messages []ports.Message
	included, added := 0, 0
	for _, sr := range run.solution.Routes {
		d := run.plan.Driver(sr.Vehicle)
		ids := run.plan.JobIDs(requestsOf(sr.Stops))
		continued, isContinued := run.vehicles[sr.Vehicle]

		var err error
		switch {
		case isContinued:
			if err = applyRoute(run.plan, continued.route, sr.Vehicle, sr.Timeline, continued.prefix); err != nil {
				return nil, err
			}
			if isPromiseBroken(continued.route) {
				o.InvalidateCustomersNotified()
			}
			err = uow.RouteRepository().Update(ctx, continued.route)
		case sr.HasRequests():
			var r *route.DriverRoute
			if r, err = route.NewDriverRoute(kernel.NewUUID(), o.ID(), d.Driver.ID, d.Driver.Name); err != nil {
				return nil, err
			}
			if err = run.plan.Apply(r, sr.Vehicle, sr.Timeline); err != nil {
				return nil, err
			}
			err = uow.RouteRepository().Add(ctx, r)
		default:
			continue
		}
		if err != nil {
			return nil, err
		}

		if run.kind == task.KindRefresh {
			ids = lo.Filter(ids, func(id kernel.UUID, _ int) bool { return run.added[id] })
			added += len(ids)
		}
		if len(ids) == 0 {
			continue
		}
		placed := h.placedBy(run, sr.Vehicle, ids)
		if err = handover.assign(ctx, d.Driver.ID, run.jobsOf(ids)); err != nil {
			return nil, fmt.Errorf("assign jobs: %w", err)
		}
		o.AddPlacedJobs(placed)
		included += len(ids)

		if run.kind == task.KindBuild && o.Type() == optimisation.Advanced {
			o.AppendLog(optimisation.EventJobsAssigned, optimisation.LogParams{
				Count:            len(placed),
				ReoptimisedCount: len(ids) - len(placed),
				DriverName:       d.Driver.Name,
			}, now)
		}
		messages = append(messages, ports.JobsAssignedMessage{DriverID: d.Driver.ID, JobIDs: ids})
		if isContinued {
			messages = append(messages, routeChanged(continued.route))
		}
	}

	if run.kind == task.KindBuild && o.Type() == optimisation.Solo {
		o.AppendLog(optimisation.EventJobsIncluded, optimisation.LogParams{Count: included}, now)
	}
	h.logSkipped(o, run, now)
	if run.kind == task.KindRefresh {
		o.AppendLog(optimisation.EventRefreshCompleted, optimisation.LogParams{Count: added}, now)
	}
	return messages, h.settle(ctx, uow, o, run)
}

// settle moves the optimisation out of RUNNING. After a refresh the state is
// derived from the routes because drivers may already be on their way.
func (h *RunOptimisationCommandHandler) settle(ctx context.Context, uow UoW, o *optimisation.RouteOptimisation, run *solverRun) error {
	if err := o.TransitionTo(optimisation.Completed); err != nil {
		return err
	}
	if run.kind != task.KindRefresh {
		return nil
	}
	routes, err := uow.RouteRepository().ListByOptimisation(ctx, o.ID())
	if err != nil {
		return err
	}
	var ids []kernel.UUID
	for _, r := range routes {
		ids = append(ids, r.JobIDs()...)
	}
	jobs, err := h.dirs.jobsByID(ctx, o.MerchantID(), ids)
	if err != nil {
		return err
	}
	before := lo.Map(routes, func(r *route.DriverRoute, _ int) route.State { return r.State() })
	if _, err = h.states.Sync(o, routes, jobs, false); err != nil {
		return err
	}
	for i, r := range routes {
		if r.State() == before[i] {
			continue
		}
		if err = uow.RouteRepository().Update(ctx, r); err != nil {
			return err
		}
	}
	return nil
}

// placedBy returns the jobs whose assignment the run makes, leaving out those
// the driver already had.
func (h *RunOptimisationCommandHandler) placedBy(run *solverRun, v int, ids []kernel.UUID) []kernel.UUID {
	driverID := run.plan.Driver(v).Driver.ID
	assigned := make(map[kernel.UUID]bool)
	for _, j := range run.validated.Jobs {
		assigned[j.ID] = j.IsAssignedTo(driverID)
	}
	return lo.Filter(ids, func(id kernel.UUID, _ int) bool { return !assigned[id] })
}

func (h *RunOptimisationCommandHandler) logSkipped(o *optimisation.RouteOptimisation, run *solverRun, now time.Time) {
	if run.solution == nil {
		return
	}
	for _, reason := range []solver.SkipReason{solver.SkipUnreachable, solver.SkipNoSolution} {
		requests := run.solution.SkippedBy(reason)
		if len(requests) == 0 {
			continue
		}
		var jobs []fleet.Job
		for _, r := range requests {
			jobs = append(jobs, run.plan.Jobs(r)...)
		}
		o.AppendLog(optimisation.EventObjectsSkipped, optimisation.LogParams{
			Count:   len(jobs),
			Reason:  string(reason),
			Objects: jobTitles(jobs),
		}, now)
	}
}

// logDrivers records why drivers were left out and how their time was narrowed.
func logDrivers(o *optimisation.RouteOptimisation, vo *services.ValidatedOptions, now time.Time) {
	for _, ex := range vo.Exclusions {
		params := optimisation.LogParams{DriverName: ex.Driver.Name, Reason: ex.Reason}
		if ex.Break != nil {
			params.Window = ex.Break.String()
		}
		o.AppendLog(optimisation.EventDriverExcluded, params, now)
	}
	for _, d := range vo.Drivers {
		for _, m := range d.Messages {
			o.AppendLog(optimisation.EventDriverTimeChanged, optimisation.LogParams{
				DriverName: d.Driver.Name,
				Change:     m.Change,
				Time:       m.Time.Format("15:04"),
				Window:     m.Break.String(),
			}, now)
		}
	}
}

// pinAssigned keeps assigned jobs with their driver unless the options allow
// moving them.
func pinAssigned(options optimisation.Options, vehicles map[kernel.UUID]int) func(fleet.Job) int {
	return func(j fleet.Job) int {
		if options.ReOptimiseAssigned || j.DriverID == nil || j.Status != fleet.Assigned {
			return -1
		}
		if v, ok := vehicles[*j.DriverID]; ok {
			return v
		}
		return -1
	}
}

// isRefreshable reports whether a job of the options may join a refresh run.
func isRefreshable(j fleet.Job, options optimisation.Options) bool {
	switch j.Status {
	case fleet.NotAssigned:
		return true
	case fleet.Assigned:
		return options.ReOptimiseAssigned || j.DriverID == nil || lo.Contains(options.DriverIDs, *j.DriverID)
	default:
		return false
	}
}
