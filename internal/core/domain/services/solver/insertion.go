package solver

import (
	"math"
	"slices"
)

// noRegret is the regret of a request that fits a single vehicle only.
const noRegret = 1e12

type insertion struct {
	vehicle int
	stops   []Stop
	delta   float64
}

func insertAt(stops []Stop, pos int, s Stop) []Stop {
	out := make([]Stop, 0, len(stops)+1)
	out = append(out, stops[:pos]...)
	out = append(out, s)
	return append(out, stops[pos:]...)
}

// removeRequest drops every stop of request r.
func removeRequest(stops []Stop, r int) []Stop {
	return slices.DeleteFunc(slices.Clone(stops), func(s Stop) bool {
		return s.Kind != StopBreak && s.Request == r
	})
}

// BestInsertion finds the cheapest feasible way to add request r to the
// stops of vehicle v. Pickups are placed greedily before the delivery.
func (p *Problem) BestInsertion(v int, stops []Stop, r int) ([]Stop, bool) {
	base := p.evaluate(v, stops, true, true).Cost()
	ins, ok := p.bestInsertion(v, stops, base, r)
	return ins.stops, ok
}

func (p *Problem) bestInsertion(v int, stops []Stop, base float64, r int) (insertion, bool) {
	req := p.Requests[r]
	best := insertion{vehicle: v, delta: math.Inf(1)}
	found := false

	for d := 0; d <= len(stops); d++ {
		cand := insertAt(stops, d, DeliveryStop(r))
		delivery := d
		placed := true
		for k := range req.Pickups {
			pos := p.bestPickupPosition(v, cand, delivery, PickupStop(r, k))
			if pos < 0 {
				placed = false
				break
			}
			cand = insertAt(cand, pos, PickupStop(r, k))
			delivery++
		}
		if !placed {
			continue
		}
		tl := p.evaluate(v, cand, true, true)
		if !tl.Feasible() {
			continue
		}
		if delta := tl.Cost() - base; delta < best.delta {
			best = insertion{vehicle: v, stops: cand, delta: delta}
			found = true
		}
	}
	return best, found
}

// bestPickupPosition ignores capacity: load is only meaningful once every
// pickup of the request is on the route.
func (p *Problem) bestPickupPosition(v int, stops []Stop, limit int, s Stop) int {
	best, bestCost := -1, math.Inf(1)
	for pos := 0; pos <= limit; pos++ {
		tl := p.evaluate(v, insertAt(stops, pos, s), true, false)
		if tl.Feasible() && tl.Cost() < bestCost {
			best, bestCost = pos, tl.Cost()
		}
	}
	return best
}

type insertionCache struct {
	entries map[[2]int]cachedInsertion
}

type cachedInsertion struct {
	ins insertion
	ok  bool
}

func newInsertionCache() *insertionCache {
	return &insertionCache{entries: make(map[[2]int]cachedInsertion)}
}

func (c *insertionCache) invalidate(v int) {
	for k := range c.entries {
		if k[1] == v {
			delete(c.entries, k)
		}
	}
}

// construct places pending requests by regret-2 insertion and returns the
// requests it could not place.
func (s *Solver) construct(st *state, pending []int) []int {
	p := st.problem
	cache := newInsertionCache()
	lookup := func(r, v int) (insertion, bool) {
		key := [2]int{r, v}
		if c, ok := cache.entries[key]; ok {
			return c.ins, c.ok
		}
		ins, ok := p.bestInsertion(v, st.routes[v], st.costs[v], r)
		cache.entries[key] = cachedInsertion{ins: ins, ok: ok}
		return ins, ok
	}

	for len(pending) > 0 {
		if st.ctx.Err() != nil {
			break
		}
		pick := -1
		var pickIns insertion
		pickRegret := math.Inf(-1)
		for i, r := range pending {
			first, second := math.Inf(1), math.Inf(1)
			var firstIns insertion
			for v := range p.Vehicles {
				if !p.AllowsVehicle(r, v) {
					continue
				}
				ins, ok := lookup(r, v)
				if !ok {
					continue
				}
				switch {
				case ins.delta < first:
					second = first
					first, firstIns = ins.delta, ins
				case ins.delta < second:
					second = ins.delta
				}
			}
			if math.IsInf(first, 1) {
				continue
			}
			regret := noRegret
			if !math.IsInf(second, 1) {
				regret = second - first
			}
			if regret > pickRegret || (regret == pickRegret && first < pickIns.delta) {
				pick, pickIns, pickRegret = i, firstIns, regret
			}
		}
		if pick < 0 {
			break
		}
		st.apply(pickIns)
		cache.invalidate(pickIns.vehicle)
		pending = slices.Delete(pending, pick, pick+1)
	}
	return pending
}

// PlaceBreaks drops any break stops from stops and re-inserts every break of
// vehicle v where it causes the fewest violations, then the lowest cost. The
// order of the other stops is kept.
func (p *Problem) PlaceBreaks(v int, stops []Stop) []Stop {
	out := slices.DeleteFunc(slices.Clone(stops), func(s Stop) bool { return s.Kind == StopBreak })
	for _, b := range p.InitialStops(v) {
		best := len(out)
		bestViolations, bestCost := math.MaxInt, math.Inf(1)
		for pos := 0; pos <= len(out); pos++ {
			tl := p.evaluate(v, insertAt(out, pos, b), false, true)
			n := len(tl.Violations)
			if n < bestViolations || (n == bestViolations && tl.Cost() < bestCost) {
				best, bestViolations, bestCost = pos, n, tl.Cost()
			}
		}
		out = insertAt(out, best, b)
	}
	return out
}
