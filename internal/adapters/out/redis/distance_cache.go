// Package redis keeps state shared between service instances in Redis:
// the persistent distance cache and the solver lock.
package redis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"routeopt/internal/core/domain/model/kernel"
	"routeopt/internal/core/ports"

	goredis "github.com/redis/go-redis/v9"
)

const (
	distanceKeyPrefix = "routeopt:distance:v1:"
	unreachableValue  = "unreachable"
)

var _ ports.DistanceMatrixProvider = (*DistanceCache)(nil)

// DistanceCache puts a Redis layer in front of a distance provider. Unreachable
// pairs are cached too. Redis failures are logged and the provider is asked
// instead, so the cache never fails a solver run on its own.
type DistanceCache struct {
	client   goredis.UniversalClient
	provider ports.DistanceProvider
	ttl      time.Duration
	logger   *slog.Logger
}

func NewDistanceCache(
	client goredis.UniversalClient,
	provider ports.DistanceProvider,
	ttl time.Duration,
	logger *slog.Logger,
) *DistanceCache {
	return &DistanceCache{
		client:   client,
		provider: provider,
		ttl:      ttl,
		logger:   logger.With("component", "RedisDistanceCache"),
	}
}

func (c *DistanceCache) GetDistance(
	ctx context.Context,
	origin, destination kernel.GeoPoint,
) (ports.DistanceResult, error) {
	key := distanceKey(origin, destination)
	raw, err := c.client.Get(ctx, key).Result()
	switch {
	case err == nil:
		res, reachable, decErr := decodeDistance(raw)
		if decErr == nil {
			if !reachable {
				return ports.DistanceResult{}, ports.ErrUnreachable
			}
			return res, nil
		}
		c.logger.WarnContext(ctx, "dropping malformed cache entry", "key", key, "error", decErr)
	case !errors.Is(err, goredis.Nil):
		c.logger.WarnContext(ctx, "distance cache read failed", "error", err)
	}

	res, err := c.provider.GetDistance(ctx, origin, destination)
	switch {
	case errors.Is(err, ports.ErrUnreachable):
		c.store(ctx, map[string]*ports.DistanceResult{key: nil})
		return ports.DistanceResult{}, err
	case err != nil:
		return ports.DistanceResult{}, err
	}
	c.store(ctx, map[string]*ports.DistanceResult{key: &res})
	return res, nil
}

// GetDistances reads every pair with one MGET and asks the provider only for
// the misses.
func (c *DistanceCache) GetDistances(
	ctx context.Context,
	origin kernel.GeoPoint,
	destinations []kernel.GeoPoint,
) ([]*ports.DistanceResult, error) {
	out := make([]*ports.DistanceResult, len(destinations))
	if len(destinations) == 0 {
		return out, nil
	}

	keys := make([]string, len(destinations))
	for i, d := range destinations {
		keys[i] = distanceKey(origin, d)
	}

	hit := make([]bool, len(destinations))
	values, err := c.client.MGet(ctx, keys...).Result()
	if err != nil {
		c.logger.WarnContext(ctx, "distance cache read failed", "error", err)
		values = nil
	}
	for i, v := range values {
		s, ok := v.(string)
		if !ok {
			continue
		}
		res, reachable, decErr := decodeDistance(s)
		if decErr != nil {
			continue
		}
		hit[i] = true
		if reachable {
			out[i] = &res
		}
	}

	var (
		missIdx  []int
		missDest []kernel.GeoPoint
	)
	for i, d := range destinations {
		if !hit[i] {
			missIdx = append(missIdx, i)
			missDest = append(missDest, d)
		}
	}
	if len(missIdx) == 0 {
		return out, nil
	}

	fetched, err := c.fetch(ctx, origin, missDest)
	if err != nil {
		return nil, err
	}
	fresh := make(map[string]*ports.DistanceResult, len(missIdx))
	for j, i := range missIdx {
		out[i] = fetched[j]
		fresh[keys[i]] = fetched[j]
	}
	c.store(ctx, fresh)
	return out, nil
}

func (c *DistanceCache) fetch(
	ctx context.Context,
	origin kernel.GeoPoint,
	destinations []kernel.GeoPoint,
) ([]*ports.DistanceResult, error) {
	if matrix, ok := c.provider.(ports.DistanceMatrixProvider); ok {
		return matrix.GetDistances(ctx, origin, destinations)
	}
	out := make([]*ports.DistanceResult, len(destinations))
	for i, d := range destinations {
		res, err := c.provider.GetDistance(ctx, origin, d)
		switch {
		case errors.Is(err, ports.ErrUnreachable):
			continue
		case err != nil:
			return nil, err
		}
		out[i] = &res
	}
	return out, nil
}

func (c *DistanceCache) store(ctx context.Context, entries map[string]*ports.DistanceResult) {
	_, err := c.client.Pipelined(ctx, func(pipe goredis.Pipeliner) error {
		for key, res := range entries {
			pipe.Set(ctx, key, encodeDistance(res), c.ttl)
		}
		return nil
	})
	if err != nil {
		c.logger.WarnContext(ctx, "distance cache write failed", "entries", len(entries), "error", err)
	}
}

// distanceKey rounds coordinates to five decimals, about a metre.
func distanceKey(origin, destination kernel.GeoPoint) string {
	return distanceKeyPrefix + roundedCoordinate(origin) + ":" + roundedCoordinate(destination)
}

func roundedCoordinate(p kernel.GeoPoint) string {
	return strconv.FormatFloat(p.Lat(), 'f', 5, 64) + "," + strconv.FormatFloat(p.Lng(), 'f', 5, 64)
}

func encodeDistance(res *ports.DistanceResult) string {
	if res == nil {
		return unreachableValue
	}
	return strconv.FormatFloat(res.DistanceMeters, 'f', -1, 64) + "|" + strconv.Itoa(res.DurationSeconds)
}

func decodeDistance(raw string) (ports.DistanceResult, bool, error) {
	if raw == unreachableValue {
		return ports.DistanceResult{}, false, nil
	}
	meters, seconds, ok := strings.Cut(raw, "|")
	if !ok {
		return ports.DistanceResult{}, false, fmt.Errorf("malformed distance %q", raw)
	}
	m, err := strconv.ParseFloat(meters, 64)
	if err != nil {
		return ports.DistanceResult{}, false, fmt.Errorf("parse meters: %w", err)
	}
	s, err := strconv.Atoi(seconds)
	if err != nil {
		return ports.DistanceResult{}, false, fmt.Errorf("parse seconds: %w", err)
	}
	return ports.DistanceResult{DistanceMeters: m, DurationSeconds: s}, true, nil
}
