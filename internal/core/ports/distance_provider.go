package ports

import (
	"context"
	"errors"

	"routeopt/internal/core/domain/model/kernel"
)

// ErrUnreachable is returned when no road connects origin and destination.
var ErrUnreachable = errors.New("destination is unreachable")

// Distance and travel duration between two locations.
type DistanceResult struct {
	DistanceMeters  float64
	DurationSeconds int
}

// Contract for retrieving travel distance and duration between locations.
type DistanceProvider interface {
	GetDistance(ctx context.Context, origin, destination kernel.GeoPoint) (DistanceResult, error)
}

// Optional extension of DistanceProvider that supports batched lookups.
type DistanceMatrixProvider interface {
	DistanceProvider
	// GetDistances returns one result per destination; nil marks an unreachable one.
	GetDistances(ctx context.Context, origin kernel.GeoPoint, destinations []kernel.GeoPoint) ([]*DistanceResult, error)
}
