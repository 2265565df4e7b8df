package queries_test

import (
	"testing"
	"time"

	"routeopt/internal/adapters/out/postgres/optimisationrepo"
	"routeopt/internal/adapters/out/postgres/taskrepo"
	"routeopt/internal/core/application/usecases/queries"
	"routeopt/internal/core/domain/model/kernel"
	"routeopt/internal/core/domain/model/optimisation"
	"routeopt/internal/core/domain/model/task"
	"routeopt/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func storeOptimisation(t *testing.T, db *gorm.DB, state optimisation.State, createdAt time.Time) *optimisation.RouteOptimisation {
	t.Helper()
	o, err := optimisation.NewRouteOptimisation(
		kernel.NewUUID(), kernel.NewUUID(),
		optimisation.Initiator{MemberID: "7", Role: optimisation.RoleManager},
		planDay, optimisation.Solo,
		optimisation.Options{
			Version:      optimisation.OptionsVersion,
			DriverIDs:    []kernel.UUID{kernel.NewUUID()},
			StartPlace:   optimisation.PlaceDefaultHub,
			EndPlace:     optimisation.PlaceDefaultHub,
			WorkingHours: optimisation.WorkingHours{Lower: 8 * 60, Upper: 18 * 60},
		},
		createdAt,
	)
	require.NoError(t, err)
	require.NoError(t, o.TransitionTo(state))
	require.NoError(t, optimisationrepo.NewGormOptimisationRepository(db, &mockAggregateTracker{}).Add(t.Context(), o))
	return o
}

func TestListTrackedOptimisationsQueryHandler_Handle(t *testing.T) {
	// Arrange
	db := testutil.SQLiteDB(t)
	running := storeOptimisation(t, db, optimisation.Running, planDay.Add(2*time.Hour))
	completed := storeOptimisation(t, db, optimisation.Completed, planDay.Add(time.Hour))
	storeOptimisation(t, db, optimisation.Created, planDay)
	storeOptimisation(t, db, optimisation.Failed, planDay)
	storeOptimisation(t, db, optimisation.Removed, planDay)
	handler := queries.NewListTrackedOptimisationsQueryHandler(db)

	// Act
	ids, err := handler.Handle(t.Context(), queries.NewListTrackedOptimisationsQuery())

	// Assert
	require.NoError(t, err)
	assert.Equal(t, []kernel.UUID{completed.ID(), running.ID()}, ids)
}

func TestListTrackedOptimisationsQueryHandler_Handle_NotConstructed(t *testing.T) {
	// Arrange
	handler := queries.NewListTrackedOptimisationsQueryHandler(testutil.SQLiteDB(t))

	// Act
	ids, err := handler.Handle(t.Context(), queries.ListTrackedOptimisationsQuery{})

	// Assert
	require.ErrorIs(t, err, queries.ErrListTrackedOptimisationsQueryIsNotConstructed)
	assert.Nil(t, ids)
}

func TestListPendingTasksQueryHandler_Handle(t *testing.T) {
	// Arrange
	db := testutil.SQLiteDB(t)
	tasks := taskrepo.NewGormTaskRepository(db, &mockAggregateTracker{})
	addTask := func(createdAt time.Time, start bool) kernel.UUID {
		o := storeOptimisation(t, db, optimisation.Created, createdAt)
		tk, err := task.NewOptimisationTask(kernel.NewUUID(), o.ID(), task.KindBuild, createdAt)
		require.NoError(t, err)
		if start {
			require.NoError(t, tk.Start(createdAt.Add(time.Second)))
		}
		require.NoError(t, tasks.Add(t.Context(), tk))
		return o.ID()
	}
	later := addTask(planStart.Add(time.Minute), false)
	earlier := addTask(planStart, false)
	addTask(planStart, true)
	handler := queries.NewListPendingTasksQueryHandler(db)

	// Act
	ids, err := handler.Handle(t.Context(), queries.NewListPendingTasksQuery())

	// Assert
	require.NoError(t, err)
	assert.Equal(t, []kernel.UUID{earlier, later}, ids)
}
