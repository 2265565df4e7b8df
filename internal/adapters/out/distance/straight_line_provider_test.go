package distance

import (
	"context"
	"testing"

	"routeopt/internal/core/domain/model/kernel"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStraightLineProvider_GetDistance(t *testing.T) {
	p := NewStraightLineProvider(36)

	res, err := p.GetDistance(t.Context(), dam, zuid)

	require.NoError(t, err)
	expected := dam.HaversineMeters(zuid) * 1.3
	assert.InDelta(t, expected, res.DistanceMeters, 1)
	// 36 km/h is 10 m/s.
	assert.InDelta(t, expected/10, float64(res.DurationSeconds), 1)
}

func TestStraightLineProvider_SamePointIsFree(t *testing.T) {
	res, err := NewStraightLineProvider(0).GetDistance(t.Context(), dam, dam)

	require.NoError(t, err)
	assert.Zero(t, res.DistanceMeters)
	assert.Zero(t, res.DurationSeconds)
}

func TestStraightLineProvider_GetDistances(t *testing.T) {
	p := NewStraightLineProvider(30)

	results, err := p.GetDistances(t.Context(), dam, []kernel.GeoPoint{zuid, schiedam})

	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Less(t, results[0].DistanceMeters, results[1].DistanceMeters)
}

func TestStraightLineProvider_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(t.Context())
	cancel()

	_, err := NewStraightLineProvider(30).GetDistances(ctx, dam, []kernel.GeoPoint{zuid})

	require.ErrorIs(t, err, context.Canceled)
}
