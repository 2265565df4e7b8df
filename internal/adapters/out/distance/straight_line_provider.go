package distance

import (
	"context"
	"math"

	"routeopt/internal/core/domain/model/kernel"
	"routeopt/internal/core/ports"
)

var _ ports.DistanceMatrixProvider = StraightLineProvider{}

// StraightLineProvider estimates road legs from the great-circle distance.
// It is used when no routing engine is configured and never reports a pair
// as unreachable.
type StraightLineProvider struct {
	// DetourFactor scales the straight line up to an expected road distance.
	DetourFactor float64
	SpeedKmh     float64
}

func NewStraightLineProvider(speedKmh float64) StraightLineProvider {
	if speedKmh <= 0 {
		speedKmh = 30
	}
	return StraightLineProvider{DetourFactor: 1.3, SpeedKmh: speedKmh}
}

func (p StraightLineProvider) GetDistance(
	ctx context.Context,
	origin, destination kernel.GeoPoint,
) (ports.DistanceResult, error) {
	if err := ctx.Err(); err != nil {
		return ports.DistanceResult{}, err
	}
	meters := origin.HaversineMeters(destination) * p.DetourFactor
	seconds := meters / (p.SpeedKmh * 1000 / 3600)
	return ports.DistanceResult{
		DistanceMeters:  math.Round(meters),
		DurationSeconds: int(math.Round(seconds)),
	}, nil
}

func (p StraightLineProvider) GetDistances(
	ctx context.Context,
	origin kernel.GeoPoint,
	destinations []kernel.GeoPoint,
) ([]*ports.DistanceResult, error) {
	out := make([]*ports.DistanceResult, len(destinations))
	for i, d := range destinations {
		res, err := p.GetDistance(ctx, origin, d)
		if err != nil {
			return nil, err
		}
		out[i] = &res
	}
	return out, nil
}
