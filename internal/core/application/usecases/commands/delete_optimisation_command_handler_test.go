package commands_test

import (
	"testing"

	"routeopt/internal/core/application/usecases/commands"
	"routeopt/internal/core/domain/model/fleet"
	"routeopt/internal/core/domain/model/kernel"
	"routeopt/internal/core/domain/model/optimisation"
	"routeopt/internal/core/domain/model/task"
	"routeopt/internal/core/ports"
	"routeopt/internal/pkg/errs"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func (w *world) delete(id kernel.UUID, unassign bool, limit int) error {
	w.t.Helper()
	cmd, err := commands.NewDeleteOptimisationCommand(id, w.merchant.ID, w.initiator, unassign)
	require.NoError(w.t, err)
	handler := w.deleteHandler(limit)
	return handler.Handle(w.t.Context(), cmd)
}

func TestDeleteOptimisationCommandHandler_Handle_UnassignsPlacedJobs(t *testing.T) {
	// Arrange
	w := newWorld(t)
	bob := w.addDriver("Bob")
	north := w.addJob("North", 52.40, 4.89)
	south := w.addJob("South", 52.34, 4.89)
	own := w.addAssignedJob("Own", 52.37, 4.95, bob)
	id := w.build(w.options([]fleet.Job{north, south, own}, bob))

	// Act
	err := w.delete(id, true, 1)

	// Assert
	require.NoError(t, err)
	o := w.store.Optimisation(id)
	assert.Equal(t, optimisation.Removed, o.State())
	assert.Empty(t, w.store.Routes(id))

	entry := lastEvent(o)
	assert.Equal(t, optimisation.EventRemoved, entry.Event)
	assert.Equal(t, 2, entry.Params.Count)
	assert.True(t, entry.Params.Unassign)

	assert.Equal(t, fleet.NotAssigned, w.jobs.Job(north.ID).Status)
	assert.Equal(t, fleet.NotAssigned, w.jobs.Job(south.ID).Status)
	assert.True(t, w.jobs.Job(own.ID).IsAssignedTo(bob.ID))

	batches := w.sink.Batches()
	require.Len(t, batches, 2)
	for _, b := range batches {
		require.Len(t, b, 1)
		assert.Equal(t, fleet.NotAssigned, b[0].Status)
	}

	var unassigned []kernel.UUID
	for _, msg := range w.notifier.Messages() {
		if m, ok := msg.(ports.JobsUnassignedMessage); ok {
			assert.Equal(t, bob.ID, m.DriverID)
			unassigned = append(unassigned, m.JobIDs...)
		}
	}
	assert.ElementsMatch(t, []kernel.UUID{north.ID, south.ID}, unassigned)
	assert.Contains(t, w.notifier.Kinds(), ports.MessageRouteRemoved)
}

func TestDeleteOptimisationCommandHandler_Handle_KeepsAssignments(t *testing.T) {
	// Arrange
	w := newWorld(t)
	bob := w.addDriver("Bob")
	north := w.addJob("North", 52.40, 4.89)
	id := w.build(w.options([]fleet.Job{north}, bob))

	// Act
	err := w.delete(id, false, 10)

	// Assert
	require.NoError(t, err)
	assert.Equal(t, optimisation.Removed, w.store.Optimisation(id).State())
	assert.True(t, w.jobs.Job(north.ID).IsAssignedTo(bob.ID))
	assert.Empty(t, w.sink.Batches())
	assert.Equal(t, 0, lastEvent(w.store.Optimisation(id)).Params.Count)
}

func TestDeleteOptimisationCommandHandler_Handle_CountsOnlyChangedJobs(t *testing.T) {
	// Arrange
	w := newWorld(t)
	bob := w.addDriver("Bob")
	north := w.addJob("North", 52.40, 4.89)
	south := w.addJob("South", 52.34, 4.89)
	id := w.build(w.options([]fleet.Job{north, south}, bob))
	w.jobs.SetStatus(north.ID, fleet.Delivered)

	// Act
	err := w.delete(id, true, 10)

	// Assert
	require.NoError(t, err)
	assert.Equal(t, 1, lastEvent(w.store.Optimisation(id)).Params.Count)
	assert.Equal(t, fleet.Delivered, w.jobs.Job(north.ID).Status)
	assert.Equal(t, fleet.NotAssigned, w.jobs.Job(south.ID).Status)
}

func TestDeleteOptimisationCommandHandler_Handle_BusyOptimisation(t *testing.T) {
	// Arrange
	w := newWorld(t)
	bob := w.addDriver("Bob")
	id := w.create(optimisation.Advanced, w.options([]fleet.Job{w.addJob("North", 52.40, 4.89)}, bob))

	// Act
	err := w.delete(id, true, 10)

	// Assert
	require.ErrorIs(t, err, commands.ErrOptimisationBusy)
	assert.Equal(t, optimisation.Created, w.store.Optimisation(id).State())
	assert.Equal(t, task.Pending, w.store.Task(id).Status())
}

func TestDeleteOptimisationCommandHandler_Handle_AlreadyRemoved(t *testing.T) {
	// Arrange
	w := newWorld(t)
	bob := w.addDriver("Bob")
	id := w.build(w.options([]fleet.Job{w.addJob("North", 52.40, 4.89)}, bob))
	require.NoError(t, w.delete(id, false, 10))

	// Act
	err := w.delete(id, false, 10)

	// Assert
	require.ErrorIs(t, err, errs.ErrObjectNotFound)
}

func TestDeleteOptimisationCommandHandler_Handle_OtherMerchant(t *testing.T) {
	// Arrange
	w := newWorld(t)
	bob := w.addDriver("Bob")
	id := w.build(w.options([]fleet.Job{w.addJob("North", 52.40, 4.89)}, bob))
	cmd, err := commands.NewDeleteOptimisationCommand(id, kernel.NewUUID(), w.initiator, true)
	require.NoError(t, err)
	handler := w.deleteHandler(10)

	// Act
	err = handler.Handle(t.Context(), cmd)

	// Assert
	require.ErrorIs(t, err, errs.ErrObjectNotFound)
	assert.Equal(t, optimisation.Completed, w.store.Optimisation(id).State())
}
