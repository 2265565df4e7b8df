// Package distance holds ports.DistanceProvider implementations backed by a
// routing engine or by plain geometry.
package distance

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"routeopt/internal/core/domain/model/kernel"
	"routeopt/internal/core/ports"

	"github.com/samber/lo"
)

const (
	defaultOSRMProfile = "driving"
	// maxTableCoordinates is what the public OSRM demo server accepts per request.
	maxTableCoordinates = 80
)

var _ ports.DistanceMatrixProvider = (*OSRMProvider)(nil)

// OSRMProvider asks an OSRM server for road distances using the table service.
// It is safe for concurrent use.
type OSRMProvider struct {
	client      *http.Client
	baseURL     string
	profile     string
	maxAttempts int
	backoff     time.Duration
	logger      *slog.Logger
}

func NewOSRMProvider(baseURL string, timeout time.Duration, logger *slog.Logger) (*OSRMProvider, error) {
	if baseURL == "" {
		return nil, errors.New("OSRM base url is empty")
	}
	if _, err := url.Parse(baseURL); err != nil {
		return nil, fmt.Errorf("parse OSRM base url: %w", err)
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &OSRMProvider{
		client:      &http.Client{Timeout: timeout},
		baseURL:     strings.TrimRight(baseURL, "/"),
		profile:     defaultOSRMProfile,
		maxAttempts: 4,
		backoff:     200 * time.Millisecond,
		logger:      logger.With("component", "OSRMProvider"),
	}, nil
}

type tableResponse struct {
	Code      string       `json:"code"`
	Message   string       `json:"message"`
	Distances [][]*float64 `json:"distances"`
	Durations [][]*float64 `json:"durations"`
}

// GetDistance delegates to the batched path. ports.ErrUnreachable is returned
// when OSRM has no route between the points.
func (p *OSRMProvider) GetDistance(
	ctx context.Context,
	origin, destination kernel.GeoPoint,
) (ports.DistanceResult, error) {
	if origin.IsEqual(destination) {
		return ports.DistanceResult{}, nil
	}
	results, err := p.GetDistances(ctx, origin, []kernel.GeoPoint{destination})
	if err != nil {
		return ports.DistanceResult{}, err
	}
	if results[0] == nil {
		return ports.DistanceResult{}, ports.ErrUnreachable
	}
	return *results[0], nil
}

// GetDistances returns one row of the table from origin. Destinations are
// split into chunks when they do not fit in one request.
func (p *OSRMProvider) GetDistances(
	ctx context.Context,
	origin kernel.GeoPoint,
	destinations []kernel.GeoPoint,
) ([]*ports.DistanceResult, error) {
	out := make([]*ports.DistanceResult, 0, len(destinations))
	for _, chunk := range lo.Chunk(destinations, maxTableCoordinates-1) {
		row, err := p.fetchRow(ctx, origin, chunk)
		if err != nil {
			return nil, err
		}
		out = append(out, row...)
	}
	return out, nil
}

func (p *OSRMProvider) fetchRow(
	ctx context.Context,
	origin kernel.GeoPoint,
	destinations []kernel.GeoPoint,
) ([]*ports.DistanceResult, error) {
	coords := make([]string, 0, len(destinations)+1)
	coords = append(coords, coordinate(origin))
	destIdx := make([]string, 0, len(destinations))
	for i, d := range destinations {
		coords = append(coords, coordinate(d))
		destIdx = append(destIdx, strconv.Itoa(i+1))
	}

	endpoint := fmt.Sprintf(
		"%s/table/v1/%s/%s?sources=0&destinations=%s&annotations=distance,duration",
		p.baseURL, p.profile, strings.Join(coords, ";"), strings.Join(destIdx, ";"),
	)

	resp, err := p.doWithRetry(ctx, func() (*http.Request, error) {
		return p.newRequest(ctx, endpoint)
	})
	if err != nil {
		p.logger.ErrorContext(ctx, "OSRM table request failed",
			"points", len(coords), "error", err)
		return nil, fmt.Errorf("OSRM table request: %w", err)
	}
	defer resp.Body.Close()

	var tr tableResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return nil, fmt.Errorf("decode OSRM table response: %w", err)
	}
	if tr.Code != "Ok" {
		return nil, fmt.Errorf("OSRM error %s: %s", tr.Code, tr.Message)
	}
	if len(tr.Distances) != 1 || len(tr.Durations) != 1 ||
		len(tr.Distances[0]) != len(destinations) || len(tr.Durations[0]) != len(destinations) {
		return nil, fmt.Errorf("OSRM table has unexpected shape for %d destinations", len(destinations))
	}

	row := make([]*ports.DistanceResult, len(destinations))
	for i := range destinations {
		dist, dur := tr.Distances[0][i], tr.Durations[0][i]
		if dist == nil || dur == nil {
			continue
		}
		row[i] = &ports.DistanceResult{
			DistanceMeters:  *dist,
			DurationSeconds: int(math.Round(*dur)),
		}
	}
	return row, nil
}

// OSRM expects longitude first.
func coordinate(p kernel.GeoPoint) string {
	return strconv.FormatFloat(p.Lng(), 'f', 6, 64) + "," + strconv.FormatFloat(p.Lat(), 'f', 6, 64)
}
