package services_test

import (
	"testing"
	"time"

	"routeopt/internal/core/domain/model/optimisation"
	"routeopt/internal/core/domain/services"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDriverWindowResolver_Resolve(t *testing.T) {
	resolver := services.NewDriverWindowResolver()
	working := window(8, 0, 20, 0)
	earlier := testDay.AddDate(0, 0, -1)

	t.Run("day off excludes the driver", func(t *testing.T) {
		d := newDriver("Ann", window(9, 0, 17, 0))
		d.Schedule.DayOff = true

		_, exclusion := resolver.Resolve(d, testDay, earlier, working)

		require.NotNil(t, exclusion)
		assert.Equal(t, optimisation.ExcludeDayOff, exclusion.Reason)
	})

	t.Run("schedule is clipped to working hours", func(t *testing.T) {
		d := newDriver("Ann", window(6, 0, 22, 0))

		w, exclusion := resolver.Resolve(d, testDay, earlier, working)

		require.Nil(t, exclusion)
		assert.Equal(t, clock(8, 0), w.Window.Start())
		assert.Equal(t, clock(20, 0), w.Window.End())
	})

	t.Run("schedule outside working hours excludes the driver", func(t *testing.T) {
		d := newDriver("Ann", window(20, 30, 23, 0))

		_, exclusion := resolver.Resolve(d, testDay, earlier, working)

		require.NotNil(t, exclusion)
		assert.Equal(t, optimisation.ExcludeOutOfHours, exclusion.Reason)
	})

	t.Run("today starts after the lead time", func(t *testing.T) {
		d := newDriver("Ann", window(9, 0, 17, 0))

		w, exclusion := resolver.Resolve(d, testDay, clock(12, 0), working)

		require.Nil(t, exclusion)
		assert.Equal(t, clock(12, 0).Add(services.MinStartLead), w.Window.Start())
	})

	t.Run("today after the schedule end excludes the driver", func(t *testing.T) {
		d := newDriver("Ann", window(9, 0, 17, 0))

		_, exclusion := resolver.Resolve(d, testDay, clock(16, 55), working)

		require.NotNil(t, exclusion)
		assert.Equal(t, optimisation.ExcludeOutOfHours, exclusion.Reason)
	})

	t.Run("break covering the whole window excludes the driver", func(t *testing.T) {
		d := newDriver("Ann", window(9, 0, 12, 0), breakAt(window(8, 30, 12, 30)))

		_, exclusion := resolver.Resolve(d, testDay, earlier, working)

		require.NotNil(t, exclusion)
		assert.Equal(t, optimisation.ExcludeBreak, exclusion.Reason)
		require.NotNil(t, exclusion.Break)
		assert.Equal(t, "08:30-12:30", exclusion.Break.String())
	})

	t.Run("break at the start moves the start", func(t *testing.T) {
		d := newDriver("Ann", window(9, 0, 17, 0), breakAt(window(8, 30, 10, 0)))

		w, exclusion := resolver.Resolve(d, testDay, earlier, working)

		require.Nil(t, exclusion)
		assert.Equal(t, clock(10, 0), w.Window.Start())
		require.Len(t, w.Messages, 1)
		assert.Equal(t, optimisation.ChangeMinTime, w.Messages[0].Change)
		assert.Empty(t, w.Breaks)
	})

	t.Run("break at the end moves the end", func(t *testing.T) {
		d := newDriver("Ann", window(9, 0, 17, 0), breakAt(window(16, 0, 18, 0)))

		w, exclusion := resolver.Resolve(d, testDay, earlier, working)

		require.Nil(t, exclusion)
		assert.Equal(t, clock(16, 0), w.Window.End())
		require.Len(t, w.Messages, 1)
		assert.Equal(t, optimisation.ChangeMaxTime, w.Messages[0].Change)
	})

	t.Run("inner break is kept for the route", func(t *testing.T) {
		lunch := breakAt(window(12, 0, 12, 30))
		d := newDriver("Ann", window(9, 0, 17, 0), lunch)

		w, exclusion := resolver.Resolve(d, testDay, earlier, working)

		require.Nil(t, exclusion)
		assert.Equal(t, clock(9, 0), w.Window.Start())
		assert.Equal(t, clock(17, 0), w.Window.End())
		require.Len(t, w.Breaks, 1)
		assert.Equal(t, 30*time.Minute, w.Breaks[0].Window.Duration())
		assert.Empty(t, w.Messages)
	})

	t.Run("breaks apply in chronological order", func(t *testing.T) {
		d := newDriver("Ann", window(9, 0, 17, 0),
			breakAt(window(15, 0, 18, 0)),
			breakAt(window(12, 0, 12, 30)),
			breakAt(window(8, 0, 9, 30)),
		)

		w, exclusion := resolver.Resolve(d, testDay, earlier, working)

		require.Nil(t, exclusion)
		assert.Equal(t, "09:30-15:00", w.Window.String())
		require.Len(t, w.Messages, 2)
		assert.Equal(t, optimisation.ChangeMinTime, w.Messages[0].Change)
		assert.Equal(t, optimisation.ChangeMaxTime, w.Messages[1].Change)
		assert.Len(t, w.Breaks, 1)
	})

	t.Run("overlapping breaks keep the tightest end", func(t *testing.T) {
		d := newDriver("Ann", window(9, 0, 17, 0),
			breakAt(window(12, 0, 13, 0)),
			breakAt(window(12, 30, 18, 0)),
		)

		w, exclusion := resolver.Resolve(d, testDay, earlier, working)

		require.Nil(t, exclusion)
		assert.Equal(t, "09:00-12:00", w.Window.String())
		assert.Empty(t, w.Breaks)
		require.Len(t, w.Messages, 2)
		assert.Equal(t, optimisation.ChangeMaxTime, w.Messages[1].Change)
		assert.Equal(t, "12:00-13:00", w.Messages[1].Break.String())
	})

	t.Run("narrowed window drops breaks left outside it", func(t *testing.T) {
		d := newDriver("Ann", window(9, 0, 17, 0),
			breakAt(window(8, 0, 11, 0)),
			breakAt(window(9, 30, 10, 0)),
		)

		w, exclusion := resolver.Resolve(d, testDay, earlier, working)

		require.Nil(t, exclusion)
		assert.Equal(t, "11:00-17:00", w.Window.String())
		assert.Empty(t, w.Breaks)
		assert.Len(t, w.Messages, 1)
	})

}
