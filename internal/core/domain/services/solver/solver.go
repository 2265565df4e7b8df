package solver

import (
	"context"
	"fmt"
	"time"
)

type SkipReason string

const (
	SkipUnreachable SkipReason = "unreachable"
	SkipNoSolution  SkipReason = "no_solution"
)

type Skip struct {
	Request int
	Reason  SkipReason
}

// Route is the solved sequence of one vehicle.
type Route struct {
	Vehicle  int
	Stops    []Stop
	Timeline Timeline
}

// HasRequests reports whether the route serves at least one request.
func (r Route) HasRequests() bool {
	for _, s := range r.Stops {
		if s.Kind != StopBreak {
			return true
		}
	}
	return false
}

type Solution struct {
	Routes  []Route
	Skipped []Skip
}

func (s *Solution) SkippedBy(reason SkipReason) []int {
	var out []int
	for _, sk := range s.Skipped {
		if sk.Reason == reason {
			out = append(out, sk.Request)
		}
	}
	return out
}

type Config struct {
	TimeLimit               time.Duration `yaml:"time_limit"`
	TimeLimitPickups        time.Duration `yaml:"time_limit_pickups"`
	MaxReachableMeters      float64       `yaml:"max_reachable_meters"`
	ContinentDistanceMeters float64       `yaml:"continent_distance_meters"`
}

func DefaultConfig() Config {
	return Config{
		TimeLimit:               30 * time.Second,
		TimeLimitPickups:        20 * time.Second,
		MaxReachableMeters:      500_000,
		ContinentDistanceMeters: 3_000_000,
	}
}

// Solver is a vehicle routing heuristic: regret insertion followed by
// relocate local search under a time budget.
type Solver struct {
	cfg Config
	now func() time.Time
}

func New(cfg Config) *Solver {
	return &Solver{cfg: cfg, now: time.Now}
}

func (s *Solver) Config() Config {
	return s.cfg
}

// Solve assigns requests to vehicles. Requests that can not be placed are
// reported as skipped; ErrNoSolution is returned when nothing is placed.
func (s *Solver) Solve(ctx context.Context, p *Problem) (*Solution, error) {
	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("invalid problem: %w", err)
	}
	if err := s.checkContinents(p); err != nil {
		return nil, err
	}

	limit := s.cfg.TimeLimit
	if p.HasPickups() && s.cfg.TimeLimitPickups > 0 {
		limit = s.cfg.TimeLimitPickups
	}
	deadline := s.now().Add(limit)

	st := &state{
		ctx:     ctx,
		problem: p,
		routes:  make([][]Stop, len(p.Vehicles)),
		costs:   make([]float64, len(p.Vehicles)),
		expired: func() bool { return limit > 0 && s.now().After(deadline) },
	}
	for v := range p.Vehicles {
		st.routes[v] = p.InitialStops(v)
		st.costs[v] = p.evaluate(v, st.routes[v], false, true).Cost()
	}

	sol := &Solution{}
	pending := make([]int, 0, len(p.Requests))
	for r := range p.Requests {
		if s.isReachable(p, r) {
			pending = append(pending, r)
			continue
		}
		sol.Skipped = append(sol.Skipped, Skip{Request: r, Reason: SkipUnreachable})
	}

	pending = s.construct(st, pending)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.improve(st)
	if len(pending) > 0 && !st.done() {
		pending = s.construct(st, pending)
	}
	for _, r := range pending {
		sol.Skipped = append(sol.Skipped, Skip{Request: r, Reason: SkipNoSolution})
	}

	placed := false
	for v, stops := range st.routes {
		route := Route{Vehicle: v, Stops: stops, Timeline: p.Evaluate(v, stops)}
		placed = placed || route.HasRequests()
		sol.Routes = append(sol.Routes, route)
	}
	if !placed {
		return sol, ErrNoSolution
	}
	return sol, nil
}

func (s *Solver) checkContinents(p *Problem) error {
	if s.cfg.ContinentDistanceMeters <= 0 {
		return nil
	}
	for i := range p.Vehicles {
		for j := i + 1; j < len(p.Vehicles); j++ {
			a := p.Locations[p.Vehicles[i].Start]
			b := p.Locations[p.Vehicles[j].Start]
			if a.HaversineMeters(b) > s.cfg.ContinentDistanceMeters {
				return ErrDifferentContinents
			}
		}
	}
	return nil
}

// isReachable requires every node of the request to be reachable from at
// least one vehicle start within MaxReachableMeters.
func (s *Solver) isReachable(p *Problem, r int) bool {
	req := p.Requests[r]
	nodes := append([]Node{req.Delivery}, req.Pickups...)
	for _, n := range nodes {
		reachable := false
		for _, v := range p.Vehicles {
			meters, _, ok := p.Matrix.Travel(v.Start, n.Location)
			if ok && (s.cfg.MaxReachableMeters <= 0 || meters <= s.cfg.MaxReachableMeters) {
				reachable = true
				break
			}
		}
		if !reachable {
			return false
		}
	}
	return true
}
