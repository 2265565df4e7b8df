package services

import (
	"routeopt/internal/core/domain/model/fleet"
	"routeopt/internal/core/domain/model/kernel"
	"routeopt/internal/core/domain/model/optimisation"
	"routeopt/internal/core/domain/model/route"
)

// StateMachine derives route and optimisation states from job statuses.
//
// A route is FINISHED when none of its jobs still needs a visit, RUNNING once
// any job was started or served, CREATED otherwise. The optimisation follows
// its routes: all FINISHED gives FINISHED, any RUNNING gives RUNNING, anything
// else COMPLETED. FAILED and REMOVED optimisations, and ones the solver is
// still working on, keep their state.
type StateMachine struct{}

func NewStateMachine() StateMachine {
	return StateMachine{}
}

// RouteState derives the state of r. Jobs missing from statuses, or no longer
// assigned to the route driver, count as gone.
func (StateMachine) RouteState(r *route.DriverRoute, jobs map[kernel.UUID]fleet.Job) route.State {
	open, started := 0, false
	for _, id := range r.JobIDs() {
		j, ok := jobs[id]
		if !ok || !j.IsAssignedTo(r.DriverID()) {
			continue
		}
		switch {
		case j.Status.IsTerminal():
			started = true
		case j.Status.IsActive():
			started = true
			open++
		default:
			open++
		}
	}
	switch {
	case open == 0:
		return route.Finished
	case started:
		return route.Running
	default:
		return route.Created
	}
}

// OptimisationState derives the optimisation state from its route states.
func (StateMachine) OptimisationState(current optimisation.State, solving bool, routes []route.State) optimisation.State {
	if solving || current == optimisation.Failed || current == optimisation.Removed || current == optimisation.Created {
		return current
	}
	if len(routes) == 0 {
		return optimisation.Finished
	}
	finished, running := 0, false
	for _, s := range routes {
		switch s {
		case route.Finished:
			finished++
		case route.Running:
			running = true
		case route.Created:
		}
	}
	switch {
	case finished == len(routes):
		return optimisation.Finished
	case running:
		return optimisation.Running
	default:
		return optimisation.Completed
	}
}

// Sync applies the derived states. It returns true when anything changed.
func (m StateMachine) Sync(
	o *optimisation.RouteOptimisation,
	routes []*route.DriverRoute,
	jobs map[kernel.UUID]fleet.Job,
	solving bool,
) (bool, error) {
	changed := false
	states := make([]route.State, 0, len(routes))
	for _, r := range routes {
		next := m.RouteState(r, jobs)
		if next != r.State() && next != route.Created {
			if err := r.TransitionTo(next); err != nil {
				return false, err
			}
			changed = true
		}
		states = append(states, r.State())
	}

	next := m.OptimisationState(o.State(), solving, states)
	if next != o.State() {
		if err := o.TransitionTo(next); err != nil {
			return false, err
		}
		changed = true
	}
	return changed, nil
}
