// Package testutil holds test doubles shared by package tests.
package testutil

import (
	"context"
	"fmt"
	"math"
	"sync"

	"routeopt/internal/core/domain/model/kernel"
	"routeopt/internal/core/ports"
)

type DistancePair struct {
	From, To kernel.GeoPoint
	Meters   float64
	Seconds  int
}

// DistanceTable is a DistanceProvider backed by a fixed lookup table.
// Pairs missing from the table are derived from the straight line at Speed
// meters per second; with Speed zero they are an error.
type DistanceTable struct {
	Speed float64

	mu          sync.Mutex
	m           map[string]ports.DistanceResult
	unreachable map[string]bool
	calls       int
}

func NewDistanceTable(pairs ...DistancePair) *DistanceTable {
	t := &DistanceTable{
		m:           make(map[string]ports.DistanceResult, len(pairs)),
		unreachable: make(map[string]bool),
	}
	for _, p := range pairs {
		t.m[key(p.From, p.To)] = ports.DistanceResult{DistanceMeters: p.Meters, DurationSeconds: p.Seconds}
	}
	return t
}

// NewStraightLineTable answers every pair from the haversine distance.
func NewStraightLineTable(speed float64) *DistanceTable {
	t := NewDistanceTable()
	t.Speed = speed
	return t
}

// SetUnreachable makes every pair touching p unreachable.
func (t *DistanceTable) SetUnreachable(p kernel.GeoPoint) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.unreachable[p.String()] = true
}

func (t *DistanceTable) Calls() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.calls
}

func (t *DistanceTable) GetDistance(_ context.Context, origin, destination kernel.GeoPoint) (ports.DistanceResult, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.calls++

	if t.unreachable[origin.String()] || t.unreachable[destination.String()] {
		return ports.DistanceResult{}, ports.ErrUnreachable
	}
	if r, ok := t.m[key(origin, destination)]; ok {
		return r, nil
	}
	if t.Speed > 0 {
		meters := origin.HaversineMeters(destination)
		return ports.DistanceResult{
			DistanceMeters:  meters,
			DurationSeconds: int(math.Round(meters / t.Speed)),
		}, nil
	}
	return ports.DistanceResult{}, fmt.Errorf("missing pair %q -> %q", origin, destination)
}

func key(from, to kernel.GeoPoint) string {
	return from.String() + "|" + to.String()
}
