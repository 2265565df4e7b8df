package http_test

import (
	"testing"

	httpin "routeopt/internal/adapters/in/http"
	"routeopt/internal/pkg/errs"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequestValidator_AcceptsValidBody(t *testing.T) {
	// Arrange
	v := httpin.NewRequestValidator()
	req := &httpin.MoveOrdersRequest{
		Route:        uuid.New(),
		Points:       []uuid.UUID{uuid.New()},
		TargetDriver: uuid.New(),
	}

	// Act
	err := v.Validate(req)

	// Assert
	assert.NoError(t, err)
}

func TestRequestValidator_ReportsJSONFieldNames(t *testing.T) {
	// Arrange
	v := httpin.NewRequestValidator()
	req := &httpin.MoveOrdersRequest{Points: []uuid.UUID{uuid.New()}}

	// Act
	err := v.Validate(req)

	// Assert
	require.Error(t, err)
	assert.ErrorIs(t, err, errs.ErrValueIsRequired)
	assert.Contains(t, err.Error(), "route")
	assert.Contains(t, err.Error(), "target_driver")
	assert.NotContains(t, err.Error(), "TargetDriver")
}

func TestRequestValidator_RejectsOutOfSetValues(t *testing.T) {
	// Arrange
	v := httpin.NewRequestValidator()
	req := &httpin.CreateOptimisationRequest{
		Type: "fleet",
		Day:  "2026-10-16",
		Options: httpin.OptionsRequest{
			StartPlace:   "default_hub",
			EndPlace:     "default_hub",
			WorkingHours: httpin.WorkingHoursRequest{Lower: "08:00", Upper: "18:00"},
		},
	}

	// Act
	err := v.Validate(req)

	// Assert
	require.Error(t, err)
	assert.ErrorIs(t, err, errs.ErrValueIsInvalid)
	assert.Contains(t, err.Error(), "type")
}

func TestRequestValidator_DivesIntoEvents(t *testing.T) {
	// Arrange
	v := httpin.NewRequestValidator()
	req := &httpin.JobStatusEventsRequest{Events: []httpin.JobStatusEventRequest{{Status: "delivered"}}}

	// Act
	err := v.Validate(req)

	// Assert
	require.Error(t, err)
	assert.Contains(t, err.Error(), "events[0].job_id")
}
