package distcache_test

import (
	"context"
	"testing"

	"routeopt/internal/core/domain/model/kernel"
	"routeopt/internal/core/domain/services/distcache"
	"routeopt/internal/core/ports"
	"routeopt/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	hub = kernel.MustGeoPoint(53.90, 27.56)
	a   = kernel.MustGeoPoint(53.91, 27.57)
	b   = kernel.MustGeoPoint(53.92, 27.58)
)

func TestCache_GetIsMemoized(t *testing.T) {
	table := testutil.NewDistanceTable(testutil.DistancePair{From: hub, To: a, Meters: 1500, Seconds: 240})
	c := distcache.New(table, 2)

	for range 3 {
		res, ok, err := c.Get(t.Context(), hub, a)
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, 240, res.DurationSeconds)
	}
	assert.Equal(t, 1, table.Calls())
}

func TestCache_SamePointIsFree(t *testing.T) {
	table := testutil.NewDistanceTable()
	c := distcache.New(table, 2)

	res, ok, err := c.Get(t.Context(), a, a)

	require.NoError(t, err)
	assert.True(t, ok)
	assert.Zero(t, res.DistanceMeters)
	assert.Zero(t, table.Calls())
}

func TestCache_ProviderErrorIsReturned(t *testing.T) {
	c := distcache.New(testutil.NewDistanceTable(), 2)

	_, _, err := c.Get(t.Context(), hub, a)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing pair")
}

func TestCache_Table(t *testing.T) {
	table := testutil.NewStraightLineTable(10)
	table.SetUnreachable(b)
	c := distcache.New(table, 4)

	m, err := c.Table(t.Context(), []kernel.GeoPoint{hub, a, b, hub})

	require.NoError(t, err)
	assert.Equal(t, 4, m.Len())

	meters, seconds, ok := m.Travel(0, 1)
	require.True(t, ok)
	assert.InDelta(t, hub.HaversineMeters(a), meters, 0.001)
	assert.Positive(t, seconds)

	_, _, ok = m.Travel(0, 2)
	assert.False(t, ok)

	_, seconds, ok = m.Travel(0, 3)
	assert.True(t, ok)
	assert.Zero(t, seconds)

	calls := table.Calls()
	_, err = c.Table(t.Context(), []kernel.GeoPoint{a, hub})
	require.NoError(t, err)
	assert.Equal(t, calls, table.Calls())
}

type rowProvider struct {
	*testutil.DistanceTable
	rows int
}

func (p *rowProvider) GetDistances(ctx context.Context, origin kernel.GeoPoint, dests []kernel.GeoPoint) ([]*ports.DistanceResult, error) {
	p.rows++
	out := make([]*ports.DistanceResult, len(dests))
	for i, d := range dests {
		res, err := p.GetDistance(ctx, origin, d)
		if err != nil {
			continue
		}
		out[i] = &res
	}
	return out, nil
}

func TestCache_TableUsesMatrixRows(t *testing.T) {
	provider := &rowProvider{DistanceTable: testutil.NewStraightLineTable(10)}
	c := distcache.New(provider, 1)

	m, err := c.Table(t.Context(), []kernel.GeoPoint{hub, a, b})

	require.NoError(t, err)
	assert.Equal(t, 3, provider.rows)
	_, _, ok := m.Travel(2, 0)
	assert.True(t, ok)
}
