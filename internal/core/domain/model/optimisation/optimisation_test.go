package optimisation_test

import (
	"encoding/json"
	"testing"
	"time"

	"routeopt/internal/core/domain/model/kernel"
	"routeopt/internal/core/domain/model/optimisation"
	"routeopt/internal/pkg/errs"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validOptions() optimisation.Options {
	return optimisation.Options{
		Version:            optimisation.OptionsVersion,
		JobIDs:             []kernel.UUID{kernel.NewUUID()},
		DriverIDs:          []kernel.UUID{kernel.NewUUID()},
		StartPlace:         optimisation.PlaceDefaultHub,
		EndPlace:           optimisation.PlaceLastJob,
		WorkingHours:       optimisation.WorkingHours{Lower: 8 * 60, Upper: 18 * 60},
		ServiceTimeMinutes: 12,
	}
}

func manager() optimisation.Initiator {
	return optimisation.Initiator{MemberID: "42", Role: optimisation.RoleManager, Name: "Ann"}
}

func newOptimisation(t *testing.T) *optimisation.RouteOptimisation {
	t.Helper()
	o, err := optimisation.NewRouteOptimisation(
		kernel.NewUUID(), kernel.NewUUID(), manager(),
		time.Date(2026, 5, 4, 15, 30, 0, 0, time.UTC),
		optimisation.Advanced, validOptions(), time.Now(),
	)
	require.NoError(t, err)
	return o
}

func TestNewRouteOptimisation(t *testing.T) {
	o := newOptimisation(t)

	require.NoError(t, o.Validate())
	assert.Equal(t, optimisation.Created, o.State())
	assert.Equal(t, time.Date(2026, 5, 4, 0, 0, 0, 0, time.UTC), o.Day())
	assert.False(t, o.CustomersNotified())
	assert.Empty(t, o.Log())
}

func TestNewRouteOptimisation_InvalidInput(t *testing.T) {
	opts := validOptions()
	opts.StartPlace = optimisation.PlaceHub

	_, err := optimisation.NewRouteOptimisation(
		kernel.NewUUID(), kernel.NewUUID(), optimisation.Initiator{},
		time.Time{}, "fleet", opts, time.Now(),
	)

	require.Error(t, err)
	require.ErrorIs(t, err, errs.ErrValueIsRequired)
	require.ErrorIs(t, err, errs.ErrValueIsInvalid)
}

func TestRouteOptimisation_ZeroValue(t *testing.T) {
	var o optimisation.RouteOptimisation

	require.ErrorIs(t, o.Validate(), optimisation.ErrRouteOptimisationIsNotConstructed)
}

func TestRouteOptimisation_Lifecycle(t *testing.T) {
	o := newOptimisation(t)
	now := time.Now()

	require.NoError(t, o.TransitionTo(optimisation.Running))
	require.NoError(t, o.TransitionTo(optimisation.Completed))
	require.NoError(t, o.TransitionTo(optimisation.Running))
	require.NoError(t, o.TransitionTo(optimisation.Finished))
	require.NoError(t, o.Remove(manager(), true, 3, now))

	assert.True(t, o.IsRemoved())
	require.ErrorIs(t, o.Remove(manager(), true, 0, now), optimisation.ErrOptimisationIsRemoved)
	require.ErrorIs(t, o.TransitionTo(optimisation.Running), errs.ErrValueIsInvalid)

	msgs := optimisation.RenderLog(o.Log())
	assert.Equal(t, []string{"Optimisation was removed by manager Ann. 3 jobs were unassigned"}, msgs)
}

func TestRouteOptimisation_Fail(t *testing.T) {
	o := newOptimisation(t)

	require.NoError(t, o.TransitionTo(optimisation.Running))
	require.NoError(t, o.Fail("no solution found", time.Now()))

	assert.Equal(t, optimisation.Failed, o.State())
	assert.Equal(t, []string{"Optimisation failed: no solution found"}, optimisation.RenderLog(o.Log()))
}

func TestRouteOptimisation_CustomersNotified(t *testing.T) {
	o := newOptimisation(t)

	o.NotifyCustomers(time.Now())
	assert.True(t, o.CustomersNotified())

	o.InvalidateCustomersNotified()
	assert.False(t, o.CustomersNotified())
}

func TestRouteOptimisation_PlacedJobs(t *testing.T) {
	o := newOptimisation(t)
	a, b := kernel.NewUUID(), kernel.NewUUID()

	o.AddPlacedJobs([]kernel.UUID{a, a, b})

	assert.Len(t, o.PlacedJobIDs(), 2)
	assert.True(t, o.IsPlacedJob(b))
	assert.False(t, o.IsPlacedJob(kernel.NewUUID()))
}

func TestState_CanTransitionTo(t *testing.T) {
	tests := []struct {
		from, to optimisation.State
		allowed  bool
	}{
		{optimisation.Created, optimisation.Running, true},
		{optimisation.Running, optimisation.Completed, true},
		{optimisation.Completed, optimisation.Finished, true},
		{optimisation.Failed, optimisation.Running, true},
		{optimisation.Finished, optimisation.Created, false},
		{optimisation.Removed, optimisation.Running, false},
		{optimisation.Removed, optimisation.Removed, false},
	}
	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			assert.Equal(t, tt.allowed, tt.from.CanTransitionTo(tt.to))
		})
	}
}

func TestOptions_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(o *optimisation.Options)
		target error
	}{
		{name: "valid", mutate: func(*optimisation.Options) {}},
		{name: "unknown version", mutate: func(o *optimisation.Options) { o.Version = 99 }, target: errs.ErrVersionIsInvalid},
		{name: "hub without id", mutate: func(o *optimisation.Options) { o.EndPlace = optimisation.PlaceHub }, target: errs.ErrValueIsRequired},
		{name: "location without id", mutate: func(o *optimisation.Options) { o.StartPlace = optimisation.PlaceLocation }, target: errs.ErrValueIsRequired},
		{name: "start at last job", mutate: func(o *optimisation.Options) { o.StartPlace = optimisation.PlaceLastJob }, target: errs.ErrValueIsInvalid},
		{name: "inverted hours", mutate: func(o *optimisation.Options) {
			o.WorkingHours = optimisation.WorkingHours{Lower: 18 * 60, Upper: 8 * 60}
		}, target: errs.ErrValueIsInvalid},
		{name: "negative service time", mutate: func(o *optimisation.Options) { o.ServiceTimeMinutes = -1 }, target: errs.ErrValueIsOutOfRange},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := validOptions()
			tt.mutate(&o)

			err := o.Validate()
			if tt.target == nil {
				require.NoError(t, err)
				return
			}
			require.ErrorIs(t, err, tt.target)
		})
	}
}

func TestOptions_JSON(t *testing.T) {
	o := validOptions()

	raw, err := json.Marshal(o)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"working_hours":{"lower":"08:00","upper":"18:00"}`)

	var back optimisation.Options
	require.NoError(t, json.Unmarshal(raw, &back))
	require.NoError(t, back.Validate())
	assert.Equal(t, o.WorkingHours, back.WorkingHours)
	assert.Equal(t, 12*time.Minute, back.ServiceTime())
}

func TestOptions_WorkingWindowAndWithJobs(t *testing.T) {
	o := validOptions()
	tz := time.FixedZone("UTC+3", 3*3600)
	day := time.Date(2026, 5, 4, 0, 0, 0, 0, tz)

	w, err := o.WorkingWindow(day)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 5, 4, 8, 0, 0, 0, tz), w.Start())
	assert.Equal(t, time.Date(2026, 5, 4, 18, 0, 0, 0, tz), w.End())

	extra := kernel.NewUUID()
	more := o.WithJobs([]kernel.UUID{o.JobIDs[0], extra})
	assert.Len(t, more.JobIDs, 2)
	assert.Len(t, o.JobIDs, 1)

	less := more.WithoutJobs([]kernel.UUID{o.JobIDs[0], kernel.NewUUID()})
	assert.Equal(t, []kernel.UUID{extra}, less.JobIDs)
	assert.Len(t, more.JobIDs, 2)
}
