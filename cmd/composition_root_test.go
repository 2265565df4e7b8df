package cmd_test

import (
	"log/slog"
	"testing"
	"time"

	"routeopt/cmd"
	"routeopt/internal/core/domain/services/solver"
	"routeopt/internal/jobs"
	"routeopt/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() cmd.Config {
	return cmd.Config{
		StraightLineSpeedKmh:  40,
		DistanceConcurrency:   4,
		Solver:                solver.DefaultConfig(),
		UnassignLimit:         200,
		UnassignPeriod:        15 * time.Second,
		Workers:               1,
		StateTracking:         true,
		StateTrackingSchedule: jobs.DefaultStateTrackingSchedule,
	}
}

func TestCompositionRoot_WiresServerAndJobs(t *testing.T) {
	// Arrange
	db := testutil.SQLiteDB(t)

	// Act
	root, err := cmd.NewCompositionRoot(testConfig(), db, nil, slog.New(slog.DiscardHandler))
	require.NoError(t, err)
	server, err := root.CreateServer()
	require.NoError(t, err)
	jobManager := root.CreateJobManager()

	// Assert
	assert.NotNil(t, server)
	require.NoError(t, jobManager.StartAll(t.Context()))
	jobManager.StopAll()
}

func TestCompositionRoot_RejectsMalformedOSRMURL(t *testing.T) {
	// Arrange
	cfg := testConfig()
	cfg.OSRMURL = "://osrm"

	// Act
	_, err := cmd.NewCompositionRoot(cfg, testutil.SQLiteDB(t), nil, slog.New(slog.DiscardHandler))

	// Assert
	assert.Error(t, err)
}

func TestCompositionRoot_RejectsInvalidThrottle(t *testing.T) {
	// Arrange
	cfg := testConfig()
	cfg.UnassignLimit = 0
	root, err := cmd.NewCompositionRoot(cfg, testutil.SQLiteDB(t), nil, slog.New(slog.DiscardHandler))
	require.NoError(t, err)

	// Act
	_, err = root.CreateServer()

	// Assert
	assert.Error(t, err)
}
