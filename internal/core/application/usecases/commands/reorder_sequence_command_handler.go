package commands

import (
	"context"
	"log/slog"

	"routeopt/internal/core/domain/model/fleet"
	"routeopt/internal/core/domain/model/kernel"
	"routeopt/internal/core/domain/model/optimisation"
	"routeopt/internal/core/domain/model/route"
	"routeopt/internal/core/domain/services"
	"routeopt/internal/core/ports"
	"routeopt/internal/pkg/errs"

	"github.com/samber/lo"
)

type ReorderSequenceCommandHandler struct {
	uowFactory UoWFactory
	dirs       directories
	planner    routePlanner
	sequencer  services.Sequencer
	notifier   ports.Notifier
	clock      ports.Clock
	logger     *slog.Logger
}

func NewReorderSequenceCommandHandler(
	uowFactory UoWFactory,
	fleetDirectory ports.FleetDirectory,
	jobDirectory ports.JobDirectory,
	distances ports.DistanceProvider,
	distanceConcurrency int,
	notifier ports.Notifier,
	clock ports.Clock,
	logger *slog.Logger,
) ReorderSequenceCommandHandler {
	return ReorderSequenceCommandHandler{
		uowFactory: uowFactory,
		dirs:       directories{fleet: fleetDirectory, jobs: jobDirectory},
		planner:    newRoutePlanner(distances, distanceConcurrency),
		sequencer:  services.NewSequencer(),
		notifier:   notifier,
		clock:      clock,
		logger:     logger.With("component", "ReorderSequence"),
	}
}

func (h *ReorderSequenceCommandHandler) Handle(ctx context.Context, cmd ReorderSequenceCommand) error {
	if err := cmd.Validate(); err != nil {
		return err
	}

	msg, err := h.reorder(ctx, cmd)
	if err != nil {
		return rejectMutation(ctx, h.uowFactory, h.clock, cmd.OptimisationID(), operationReorder, err)
	}
	notifyAll(ctx, h.notifier, h.logger, []ports.Message{msg})
	return nil
}

func (h *ReorderSequenceCommandHandler) reorder(ctx context.Context, cmd ReorderSequenceCommand) (ports.Message, error) {
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
	locked, err := uow.RouteRepository().GetForUpdate(ctx, []kernel.UUID{cmd.RouteID()})
	if err != nil {
		return nil, err
	}
	if len(locked) == 0 || !locked[0].OptimisationID().IsEqual(o.ID()) {
		return nil, errNotFound("route", cmd.RouteID())
	}
	r := locked[0]

	jobs, err := h.dirs.jobsByID(ctx, cmd.MerchantID(), r.JobIDs())
	if err != nil {
		return nil, err
	}
	sequence, err := h.sequencer.Reorder(r.Points(), cmd.Sequence())
	if err != nil {
		return nil, err
	}
	current := lo.Filter(r.Points(), func(pt *route.RoutePoint, _ int) bool { return pt.Kind() != route.KindBreak })
	kept := commonPrefix(current, sequence)
	if err = checkReorderable(sequence[kept:], jobs); err != nil {
		return nil, err
	}

	merchant, err := h.dirs.fleet.GetMerchant(ctx, cmd.MerchantID())
	if err != nil {
		return nil, err
	}
	day := dayIn(o.Day(), merchant.Tz())
	now := h.clock.Now()
	d, err := h.dirs.driver(ctx, cmd.MerchantID(), r.DriverID(), day)
	if err != nil {
		return nil, err
	}

	// Started points ahead of the first change keep their times.
	prefix, _ := services.SplitStarted(sequence[:kept], jobs)
	rest := sequence[len(prefix):]

	start, end := services.TerminalSites(sequence)
	driver, excluded, err := h.planner.routeDriver(d, o, day, now, start, end)
	if err != nil {
		return nil, err
	}
	plan := services.NewPlan(day, services.ServiceTimesFor(o.Options(), merchant))
	v := plan.AddVehicle(driver, continueAfter(prefix, o.Options().UseVehicleCapacity))
	plan.AddJobs(jobsOnPoints(rest, jobs), pinTo(v))

	problem, err := h.planner.problem(ctx, plan)
	if err != nil {
		return nil, err
	}
	stops, err := plan.StopsOf(v, rest)
	if err != nil {
		return nil, err
	}
	stops = problem.PlaceBreaks(v, stops)
	tl := problem.Evaluate(v, stops)

	hard, soft := plan.Conflicts(tl, stops)
	if len(hard) > 0 {
		return nil, errs.NewConflictError(hard[0])
	}
	if excluded != "" {
		soft = append(soft, services.MsgOutOfSchedule)
	}
	if soft = lo.Uniq(soft); len(soft) > 0 && !cmd.Force() {
		return nil, errs.NewForcibleConflictError(soft)
	}

	if err = applyRoute(plan, r, v, tl, prefix); err != nil {
		return nil, err
	}
	if err = uow.RouteRepository().Update(ctx, r); err != nil {
		return nil, err
	}
	if isPromiseBroken(r) {
		o.InvalidateCustomersNotified()
	}
	o.AppendLog(optimisation.EventSequenceChanged, optimisation.LogParams{
		RouteID:    r.ID().String(),
		DriverName: r.DriverName(),
		Initiator:  cmd.Initiator().Label(),
	}, now)
	if err = uow.OptimisationRepository().Update(ctx, o); err != nil {
		return nil, err
	}
	if err = uow.Commit(ctx); err != nil {
		return nil, err
	}
	return routeChanged(r), nil
}

// commonPrefix returns how many leading points a and b share.
func commonPrefix(a, b []*route.RoutePoint) int {
	n := 0
	for n < len(a) && n < len(b) && a[n].ID().IsEqual(b[n].ID()) {
		n++
	}
	return n
}

// checkReorderable rejects a changed part of a sequence that holds a pickup
// already passed or a delivery already finished.
func checkReorderable(points []*route.RoutePoint, jobs map[kernel.UUID]fleet.Job) error {
	for _, pt := range points {
		for _, id := range pt.Ref().JobIDs() {
			j, ok := jobs[id]
			if !ok {
				continue
			}
			switch pt.Kind() {
			case route.KindPickup:
				if j.Status != fleet.NotAssigned && j.Status != fleet.Assigned && j.Status != fleet.PickUp {
					return errs.NewConflictError(services.MsgPassedPickup)
				}
			case route.KindDelivery:
				if j.Status.IsTerminal() || j.Status == fleet.WayBack {
					return errs.NewConflictError(services.MsgFinishedOrder)
				}
			}
		}
	}
	return nil
}
