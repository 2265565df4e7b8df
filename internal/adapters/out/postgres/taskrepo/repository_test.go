package taskrepo_test

import (
	"testing"
	"time"

	"routeopt/internal/adapters/out/postgres/taskrepo"
	"routeopt/internal/core/domain/model/kernel"
	"routeopt/internal/core/domain/model/task"
	"routeopt/internal/pkg/errs"
	"routeopt/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockAggregateTracker struct {
	mock.Mock
}

func (m *MockAggregateTracker) TrackAggregate(id kernel.UUID, aggregate any) {
	m.Called(id, aggregate)
}

var now = time.Date(2030, 3, 4, 8, 0, 0, 0, time.UTC)

func newRepository(t *testing.T) *taskrepo.GormTaskRepository {
	t.Helper()
	tracker := new(MockAggregateTracker)
	tracker.On("TrackAggregate", mock.Anything, mock.Anything).Maybe()
	return taskrepo.NewGormTaskRepository(testutil.SQLiteDB(t), tracker)
}

func newTask(t *testing.T) *task.OptimisationTask {
	t.Helper()
	tk, err := task.NewOptimisationTask(kernel.NewUUID(), kernel.NewUUID(), task.KindBuild, now)
	require.NoError(t, err)
	return tk
}

func TestGormTaskRepository_AddAndGet(t *testing.T) {
	// Arrange
	repo := newRepository(t)
	tk := newTask(t)

	// Act
	require.NoError(t, repo.Add(t.Context(), tk))
	got, err := repo.GetByOptimisation(t.Context(), tk.OptimisationID())

	// Assert
	require.NoError(t, err)
	assert.Equal(t, tk.ID(), got.ID())
	assert.Equal(t, task.KindBuild, got.Kind())
	assert.Equal(t, task.Pending, got.Status())
	assert.Nil(t, got.StartedAt())
	assert.Nil(t, got.FinishedAt())
}

func TestGormTaskRepository_GetByOptimisation_NotFound(t *testing.T) {
	repo := newRepository(t)

	_, err := repo.GetByOptimisation(t.Context(), kernel.NewUUID())

	require.ErrorIs(t, err, errs.ErrObjectNotFound)
}

func TestGormTaskRepository_Update(t *testing.T) {
	// Arrange
	repo := newRepository(t)
	tk := newTask(t)
	require.NoError(t, repo.Add(t.Context(), tk))
	require.NoError(t, tk.Start(now.Add(time.Second)))
	require.NoError(t, tk.Fail("solver timed out", now.Add(time.Minute)))

	// Act
	err := repo.Update(t.Context(), tk)

	// Assert
	require.NoError(t, err)
	got, err := repo.GetByOptimisation(t.Context(), tk.OptimisationID())
	require.NoError(t, err)
	assert.Equal(t, task.Failed, got.Status())
	assert.Equal(t, "solver timed out", got.Error())
	require.NotNil(t, got.StartedAt())
	require.NotNil(t, got.FinishedAt())
	assert.True(t, got.FinishedAt().Equal(now.Add(time.Minute)))
}

func TestGormTaskRepository_UpdateClearsRearmedTask(t *testing.T) {
	// Arrange
	repo := newRepository(t)
	tk := newTask(t)
	require.NoError(t, tk.Start(now))
	require.NoError(t, tk.Fail("boom", now))
	require.NoError(t, repo.Add(t.Context(), tk))
	require.NoError(t, tk.Rearm(task.KindRefresh, now.Add(time.Hour)))

	// Act
	err := repo.Update(t.Context(), tk)

	// Assert
	require.NoError(t, err)
	got, err := repo.GetByOptimisation(t.Context(), tk.OptimisationID())
	require.NoError(t, err)
	assert.Equal(t, task.KindRefresh, got.Kind())
	assert.Equal(t, task.Pending, got.Status())
	assert.Empty(t, got.Error())
	assert.Nil(t, got.StartedAt())
	assert.Nil(t, got.FinishedAt())
}

func TestGormTaskRepository_Update_Missing(t *testing.T) {
	repo := newRepository(t)

	err := repo.Update(t.Context(), newTask(t))

	require.Error(t, err)
}

func TestGormTaskRepository_ListByStatus(t *testing.T) {
	// Arrange
	repo := newRepository(t)
	pending := newTask(t)
	running := newTask(t)
	require.NoError(t, running.Start(now))
	require.NoError(t, repo.Add(t.Context(), pending))
	require.NoError(t, repo.Add(t.Context(), running))

	// Act
	found, err := repo.ListByStatus(t.Context(), task.Pending)

	// Assert
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, pending.ID(), found[0].ID())
}
