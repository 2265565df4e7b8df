// Package distcache memoizes travel distances for one optimisation run and
// turns them into the matrix the solver works on.
package distcache

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"routeopt/internal/core/domain/model/kernel"
	"routeopt/internal/core/ports"

	"golang.org/x/sync/errgroup"
)

const defaultConcurrency = 8

type entry struct {
	result    ports.DistanceResult
	reachable bool
}

// Cache is safe for concurrent use. Unreachable pairs are remembered too.
type Cache struct {
	provider    ports.DistanceProvider
	concurrency int

	mu   sync.RWMutex
	legs map[[2]string]entry
}

func New(provider ports.DistanceProvider, concurrency int) *Cache {
	if concurrency <= 0 {
		concurrency = defaultConcurrency
	}
	return &Cache{
		provider:    provider,
		concurrency: concurrency,
		legs:        make(map[[2]string]entry),
	}
}

// Get returns the leg between two points. reachable is false when the
// provider reported ports.ErrUnreachable.
func (c *Cache) Get(ctx context.Context, from, to kernel.GeoPoint) (ports.DistanceResult, bool, error) {
	if from.IsEqual(to) {
		return ports.DistanceResult{}, true, nil
	}
	key := [2]string{from.String(), to.String()}
	c.mu.RLock()
	e, ok := c.legs[key]
	c.mu.RUnlock()
	if ok {
		return e.result, e.reachable, nil
	}

	res, err := c.provider.GetDistance(ctx, from, to)
	switch {
	case errors.Is(err, ports.ErrUnreachable):
		c.put(key, entry{})
		return ports.DistanceResult{}, false, nil
	case err != nil:
		return ports.DistanceResult{}, false, fmt.Errorf("distance %s -> %s: %w", key[0], key[1], err)
	}
	c.put(key, entry{result: res, reachable: true})
	return res, true, nil
}

func (c *Cache) put(key [2]string, e entry) {
	c.mu.Lock()
	c.legs[key] = e
	c.mu.Unlock()
}

func (c *Cache) missing(origin kernel.GeoPoint, points []kernel.GeoPoint) []kernel.GeoPoint {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var out []kernel.GeoPoint
	for _, p := range points {
		if p.IsEqual(origin) {
			continue
		}
		if _, ok := c.legs[[2]string{origin.String(), p.String()}]; !ok {
			out = append(out, p)
		}
	}
	return out
}

// Table prefetches every ordered pair of points and returns the matrix.
// With a matrix provider one request per origin is made.
func (c *Cache) Table(ctx context.Context, points []kernel.GeoPoint) (*Table, error) {
	uniq := dedupe(points)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.concurrency)
	matrix, isMatrix := c.provider.(ports.DistanceMatrixProvider)
	for _, origin := range uniq {
		dests := c.missing(origin, uniq)
		if len(dests) == 0 {
			continue
		}
		if isMatrix {
			g.Go(func() error {
				return c.fetchRow(gctx, matrix, origin, dests)
			})
			continue
		}
		for _, dest := range dests {
			g.Go(func() error {
				_, _, err := c.Get(gctx, origin, dest)
				return err
			})
		}
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	t := &Table{
		meters:  make([][]float64, len(points)),
		seconds: make([][]int, len(points)),
		ok:      make([][]bool, len(points)),
	}
	for i, from := range points {
		t.meters[i] = make([]float64, len(points))
		t.seconds[i] = make([]int, len(points))
		t.ok[i] = make([]bool, len(points))
		for j, to := range points {
			res, reachable, err := c.Get(ctx, from, to)
			if err != nil {
				return nil, err
			}
			t.meters[i][j] = res.DistanceMeters
			t.seconds[i][j] = res.DurationSeconds
			t.ok[i][j] = reachable
		}
	}
	return t, nil
}

func (c *Cache) fetchRow(ctx context.Context, m ports.DistanceMatrixProvider, origin kernel.GeoPoint, dests []kernel.GeoPoint) error {
	row, err := m.GetDistances(ctx, origin, dests)
	if err != nil {
		return fmt.Errorf("distance matrix from %s: %w", origin, err)
	}
	if len(row) != len(dests) {
		return fmt.Errorf("distance matrix from %s: got %d results for %d destinations", origin, len(row), len(dests))
	}
	for i, dest := range dests {
		key := [2]string{origin.String(), dest.String()}
		if row[i] == nil {
			c.put(key, entry{})
			continue
		}
		c.put(key, entry{result: *row[i], reachable: true})
	}
	return nil
}

func dedupe(points []kernel.GeoPoint) []kernel.GeoPoint {
	seen := make(map[string]struct{}, len(points))
	out := make([]kernel.GeoPoint, 0, len(points))
	for _, p := range points {
		if _, ok := seen[p.String()]; ok {
			continue
		}
		seen[p.String()] = struct{}{}
		out = append(out, p)
	}
	return out
}

// Table is a dense travel matrix over a fixed list of points.
type Table struct {
	meters  [][]float64
	seconds [][]int
	ok      [][]bool
}

// Travel implements solver.Matrix.
func (t *Table) Travel(from, to int) (float64, int, bool) {
	return t.meters[from][to], t.seconds[from][to], t.ok[from][to]
}

func (t *Table) Len() int {
	return len(t.ok)
}
