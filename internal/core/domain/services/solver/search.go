package solver

import (
	"context"
	"slices"
)

const improvementEpsilon = 1e-6

type state struct {
	ctx     context.Context
	problem *Problem
	routes  [][]Stop
	costs   []float64
	expired func() bool
}

func (st *state) apply(ins insertion) {
	st.routes[ins.vehicle] = ins.stops
	st.costs[ins.vehicle] = st.problem.evaluate(ins.vehicle, ins.stops, false, true).Cost()
}

func (st *state) done() bool {
	return st.ctx.Err() != nil || st.expired()
}

// requestsOn lists requests served by a sequence in visiting order.
func requestsOn(stops []Stop) []int {
	var out []int
	for _, s := range stops {
		if s.Kind == StopDelivery && !slices.Contains(out, s.Request) {
			out = append(out, s.Request)
		}
	}
	return out
}

// improve relocates single requests while that lowers the total cost.
func (s *Solver) improve(st *state) {
	p := st.problem
	for improved := true; improved; {
		improved = false
		for v := range st.routes {
			for _, r := range requestsOn(st.routes[v]) {
				if st.done() {
					return
				}
				if s.relocate(st, p, v, r) {
					improved = true
				}
			}
		}
	}
}

func (s *Solver) relocate(st *state, p *Problem, from, r int) bool {
	reduced := removeRequest(st.routes[from], r)
	tl := p.evaluate(from, reduced, true, true)
	if !tl.Feasible() {
		return false
	}
	gain := st.costs[from] - tl.Cost()

	var best insertion
	bestProfit := improvementEpsilon
	for v := range p.Vehicles {
		if !p.AllowsVehicle(r, v) {
			continue
		}
		stops, base := st.routes[v], st.costs[v]
		if v == from {
			stops, base = reduced, tl.Cost()
		}
		ins, ok := p.bestInsertion(v, stops, base, r)
		if !ok {
			continue
		}
		if profit := gain - ins.delta; profit > bestProfit {
			best, bestProfit = ins, profit
		}
	}
	if best.stops == nil {
		return false
	}
	if best.vehicle != from {
		st.routes[from] = reduced
		st.costs[from] = tl.Cost()
	}
	st.apply(best)
	return true
}
