package testutil

import (
	"context"
	"slices"
	"sync"
	"time"

	"routeopt/internal/core/application/usecases/commands"
	"routeopt/internal/core/domain/model/kernel"
	"routeopt/internal/core/domain/model/optimisation"
	"routeopt/internal/core/domain/model/route"
	"routeopt/internal/core/domain/model/task"
	"routeopt/internal/core/ports"
	"routeopt/internal/pkg/errs"
)

// Store keeps aggregates in memory. Aggregates are stored by pointer, so a
// rollback undoes adds and deletes but not changes made to loaded objects.
type Store struct {
	mu            sync.Mutex
	optimisations map[kernel.UUID]*optimisation.RouteOptimisation
	routes        map[kernel.UUID]*route.DriverRoute
	tasks         map[kernel.UUID]*task.OptimisationTask
	commits       int
	commitErr     error
}

func NewStore() *Store {
	return &Store{
		optimisations: make(map[kernel.UUID]*optimisation.RouteOptimisation),
		routes:        make(map[kernel.UUID]*route.DriverRoute),
		tasks:         make(map[kernel.UUID]*task.OptimisationTask),
	}
}

// Create implements commands.UoWFactory.
func (s *Store) Create() commands.UoW {
	return &storeUoW{store: s}
}

// FailNextCommit makes the next Commit return err and keep nothing.
func (s *Store) FailNextCommit(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.commitErr = err
}

// Commits counts committed units of work.
func (s *Store) Commits() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.commits
}

func (s *Store) PutOptimisation(o *optimisation.RouteOptimisation) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.optimisations[o.ID()] = o
}

func (s *Store) PutRoute(r *route.DriverRoute) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.routes[r.ID()] = r
}

func (s *Store) PutTask(t *task.OptimisationTask) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tasks[t.OptimisationID()] = t
}

func (s *Store) Optimisation(id kernel.UUID) *optimisation.RouteOptimisation {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.optimisations[id]
}

func (s *Store) Task(optimisationID kernel.UUID) *task.OptimisationTask {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tasks[optimisationID]
}

// Routes returns the routes of an optimisation ordered by driver name.
func (s *Store) Routes(optimisationID kernel.UUID) []*route.DriverRoute {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.routesOf(optimisationID)
}

// Optimisations returns every stored optimisation of a merchant.
func (s *Store) Optimisations(merchantID kernel.UUID) []*optimisation.RouteOptimisation {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*optimisation.RouteOptimisation
	for _, o := range s.optimisations {
		if o.MerchantID().IsEqual(merchantID) {
			out = append(out, o)
		}
	}
	return out
}

func (s *Store) routesOf(optimisationID kernel.UUID) []*route.DriverRoute {
	var out []*route.DriverRoute
	for _, r := range s.routes {
		if r.OptimisationID().IsEqual(optimisationID) {
			out = append(out, r)
		}
	}
	slices.SortFunc(out, func(a, b *route.DriverRoute) int {
		switch {
		case a.DriverName() < b.DriverName():
			return -1
		case a.DriverName() > b.DriverName():
			return 1
		default:
			return 0
		}
	})
	return out
}

type storeUoW struct {
	store     *Store
	undo      []func()
	committed bool
}

func (u *storeUoW) Begin(context.Context) error {
	u.undo = nil
	u.committed = false
	return nil
}

func (u *storeUoW) Commit(context.Context) error {
	u.store.mu.Lock()
	defer u.store.mu.Unlock()
	if err := u.store.commitErr; err != nil {
		u.store.commitErr = nil
		return err
	}
	u.committed = true
	u.undo = nil
	u.store.commits++
	return nil
}

func (u *storeUoW) Rollback(context.Context) error {
	if u.committed {
		return nil
	}
	u.store.mu.Lock()
	defer u.store.mu.Unlock()
	for i := len(u.undo) - 1; i >= 0; i-- {
		u.undo[i]()
	}
	u.undo = nil
	return nil
}

func (u *storeUoW) OptimisationRepository() ports.OptimisationRepository {
	return optimisationRepo{u}
}

func (u *storeUoW) RouteRepository() ports.RouteRepository {
	return routeRepo{u}
}

func (u *storeUoW) TaskRepository() ports.TaskRepository {
	return taskRepo{u}
}

// remember records how to restore key of m. The store lock must be held.
func remember[V any](u *storeUoW, m map[kernel.UUID]V, key kernel.UUID) {
	prev, existed := m[key]
	u.undo = append(u.undo, func() {
		if existed {
			m[key] = prev
		} else {
			delete(m, key)
		}
	})
}

type optimisationRepo struct{ u *storeUoW }

func (r optimisationRepo) Add(_ context.Context, o *optimisation.RouteOptimisation) error {
	s := r.u.store
	s.mu.Lock()
	defer s.mu.Unlock()
	remember(r.u, s.optimisations, o.ID())
	s.optimisations[o.ID()] = o
	return nil
}

func (r optimisationRepo) Update(_ context.Context, o *optimisation.RouteOptimisation) error {
	s := r.u.store
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.optimisations[o.ID()]; !ok {
		return errs.NewObjectNotFoundError("optimisation", o.ID())
	}
	s.optimisations[o.ID()] = o
	return nil
}

func (r optimisationRepo) Get(_ context.Context, id kernel.UUID) (*optimisation.RouteOptimisation, error) {
	s := r.u.store
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.optimisations[id]
	if !ok {
		return nil, errs.NewObjectNotFoundError("optimisation", id)
	}
	return o, nil
}

func (r optimisationRepo) FindForDay(_ context.Context, merchantID kernel.UUID, day time.Time) ([]*optimisation.RouteOptimisation, error) {
	s := r.u.store
	s.mu.Lock()
	defer s.mu.Unlock()
	y, m, d := day.Date()
	var out []*optimisation.RouteOptimisation
	for _, o := range s.optimisations {
		oy, om, od := o.Day().Date()
		if !o.MerchantID().IsEqual(merchantID) || oy != y || om != m || od != d {
			continue
		}
		switch o.State() {
		case optimisation.Removed, optimisation.Failed, optimisation.Finished:
			continue
		}
		out = append(out, o)
	}
	return out, nil
}

func (r optimisationRepo) ListInStates(_ context.Context, states ...optimisation.State) ([]*optimisation.RouteOptimisation, error) {
	s := r.u.store
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*optimisation.RouteOptimisation
	for _, o := range s.optimisations {
		if slices.Contains(states, o.State()) {
			out = append(out, o)
		}
	}
	return out, nil
}

type routeRepo struct{ u *storeUoW }

func (r routeRepo) Add(_ context.Context, dr *route.DriverRoute) error {
	s := r.u.store
	s.mu.Lock()
	defer s.mu.Unlock()
	remember(r.u, s.routes, dr.ID())
	s.routes[dr.ID()] = dr
	return nil
}

func (r routeRepo) Update(_ context.Context, dr *route.DriverRoute) error {
	s := r.u.store
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.routes[dr.ID()]; !ok {
		return errs.NewObjectNotFoundError("route", dr.ID())
	}
	s.routes[dr.ID()] = dr
	return nil
}

func (r routeRepo) Delete(_ context.Context, id kernel.UUID) error {
	s := r.u.store
	s.mu.Lock()
	defer s.mu.Unlock()
	remember(r.u, s.routes, id)
	delete(s.routes, id)
	return nil
}

func (r routeRepo) Get(_ context.Context, id kernel.UUID) (*route.DriverRoute, error) {
	s := r.u.store
	s.mu.Lock()
	defer s.mu.Unlock()
	dr, ok := s.routes[id]
	if !ok {
		return nil, errs.NewObjectNotFoundError("route", id)
	}
	return dr, nil
}

func (r routeRepo) GetForUpdate(_ context.Context, ids []kernel.UUID) ([]*route.DriverRoute, error) {
	s := r.u.store
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*route.DriverRoute
	for _, id := range ids {
		if dr, ok := s.routes[id]; ok {
			out = append(out, dr)
		}
	}
	return out, nil
}

func (r routeRepo) ListByOptimisation(_ context.Context, optimisationID kernel.UUID) ([]*route.DriverRoute, error) {
	s := r.u.store
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.routesOf(optimisationID), nil
}

func (r routeRepo) FindOptimisationsByJob(_ context.Context, jobID kernel.UUID) ([]kernel.UUID, error) {
	s := r.u.store
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []kernel.UUID
	for _, dr := range s.routes {
		for _, pt := range dr.JobPoints() {
			if slices.Contains(pt.Ref().JobIDs(), jobID) && !slices.Contains(out, dr.OptimisationID()) {
				out = append(out, dr.OptimisationID())
			}
		}
	}
	return out, nil
}

type taskRepo struct{ u *storeUoW }

func (r taskRepo) Add(_ context.Context, t *task.OptimisationTask) error {
	s := r.u.store
	s.mu.Lock()
	defer s.mu.Unlock()
	remember(r.u, s.tasks, t.OptimisationID())
	s.tasks[t.OptimisationID()] = t
	return nil
}

func (r taskRepo) Update(_ context.Context, t *task.OptimisationTask) error {
	s := r.u.store
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tasks[t.OptimisationID()] = t
	return nil
}

func (r taskRepo) GetByOptimisation(_ context.Context, optimisationID kernel.UUID) (*task.OptimisationTask, error) {
	s := r.u.store
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[optimisationID]
	if !ok {
		return nil, errs.NewObjectNotFoundError("task", optimisationID)
	}
	return t, nil
}

func (r taskRepo) ListByStatus(_ context.Context, status task.Status) ([]*task.OptimisationTask, error) {
	s := r.u.store
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*task.OptimisationTask
	for _, t := range s.tasks {
		if t.Status() == status {
			out = append(out, t)
		}
	}
	return out, nil
}
