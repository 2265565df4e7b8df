package commands_test

import (
	"errors"
	"testing"
	"time"

	"routeopt/internal/core/application/usecases/commands"
	"routeopt/internal/core/domain/model/fleet"
	"routeopt/internal/core/domain/model/kernel"
	"routeopt/internal/core/domain/model/optimisation"
	"routeopt/internal/core/domain/model/task"
	"routeopt/internal/pkg/errs"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestCreateOptimisationCommandHandler_Handle_Success(t *testing.T) {
	// Arrange
	ctx := t.Context()
	w := newWorld(t)
	d := w.addDriver("Bob")
	j := w.addJob("Flowers", 52.38, 4.90)

	id := kernel.NewUUID()
	cmd, err := commands.NewCreateOptimisationCommand(
		id, w.merchant.ID, w.initiator, testDay, optimisation.Advanced, w.options([]fleet.Job{j}, d))
	require.NoError(t, err)

	optimisations := new(MockOptimisationRepository)
	tasks := new(MockTaskRepository)
	uow := new(MockUoW)
	factory := new(MockUoWFactory)
	queue := new(MockTaskQueue)

	mock.InOrder(
		uow.On("Begin", ctx).Return(nil).Once(),
		uow.On("OptimisationRepository").Return(optimisations).Once(),
		optimisations.On("Add", ctx, mock.MatchedBy(func(o *optimisation.RouteOptimisation) bool {
			return o.ID().IsEqual(id) && o.State() == optimisation.Created
		})).Return(nil).Once(),
		uow.On("TaskRepository").Return(tasks).Once(),
		tasks.On("Add", ctx, mock.MatchedBy(func(tk *task.OptimisationTask) bool {
			return tk.OptimisationID().IsEqual(id) && tk.Status() == task.Pending && tk.Kind() == task.KindBuild
		})).Return(nil).Once(),
		uow.On("Commit", ctx).Return(nil).Once(),
		uow.On("Rollback", ctx).Return(nil).Once(),
		queue.On("Enqueue", ctx, id).Return(nil).Once(),
	)
	factory.On("Create").Return(uow).Once()

	handler := commands.NewCreateOptimisationCommandHandler(factory, w.fleet, w.jobs, queue, w.clock)

	// Act
	err = handler.Handle(ctx, cmd)

	// Assert
	require.NoError(t, err)
	factory.AssertExpectations(t)
	uow.AssertExpectations(t)
	optimisations.AssertExpectations(t)
	tasks.AssertExpectations(t)
	queue.AssertExpectations(t)
}

func TestCreateOptimisationCommandHandler_Handle_InvalidCommand(t *testing.T) {
	// Arrange
	ctx := t.Context()
	var invalidCmd commands.CreateOptimisationCommand

	factory := new(MockUoWFactory)
	queue := new(MockTaskQueue)
	w := newWorld(t)
	handler := commands.NewCreateOptimisationCommandHandler(factory, w.fleet, w.jobs, queue, w.clock)

	// Act
	err := handler.Handle(ctx, invalidCmd)

	// Assert
	require.ErrorIs(t, err, commands.ErrCreateOptimisationCommandIsNotConstructed)
	factory.AssertExpectations(t)
	queue.AssertExpectations(t)
}

func TestCreateOptimisationCommandHandler_Handle_ValidationStoresNothing(t *testing.T) {
	tests := []struct {
		name    string
		prepare func(w *world) optimisation.Options
		want    error
	}{
		{
			name: "day in the past",
			prepare: func(w *world) optimisation.Options {
				w.clock.Set(testDay.Add(48 * time.Hour))
				return w.options([]fleet.Job{w.addJob("Flowers", 52.38, 4.90)}, w.addDriver("Bob"))
			},
			want: errs.ErrValueIsInvalid,
		},
		{
			name: "unknown driver",
			prepare: func(w *world) optimisation.Options {
				o := w.options([]fleet.Job{w.addJob("Flowers", 52.38, 4.90)})
				o.DriverIDs = []kernel.UUID{kernel.NewUUID()}
				return o
			},
			want: errs.ErrObjectNotFound,
		},
		{
			name: "delivered job",
			prepare: func(w *world) optimisation.Options {
				j := w.addJob("Flowers", 52.38, 4.90)
				w.jobs.SetStatus(j.ID, fleet.Delivered)
				return w.options([]fleet.Job{j}, w.addDriver("Bob"))
			},
			want: errs.ErrValueIsInvalid,
		},
		{
			name: "capacity disabled for merchant",
			prepare: func(w *world) optimisation.Options {
				o := w.options([]fleet.Job{w.addJob("Flowers", 52.38, 4.90)}, w.addDriver("Bob"))
				o.UseVehicleCapacity = true
				return o
			},
			want: errs.ErrValueIsInvalid,
		},
		{
			name: "driver without default hub",
			prepare: func(w *world) optimisation.Options {
				d := w.addDriver("Bob")
				w.fleet.Drivers[0].DefaultHubID = nil
				return w.options([]fleet.Job{w.addJob("Flowers", 52.38, 4.90)}, d)
			},
			want: errs.ErrValueIsRequired,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Arrange
			w := newWorld(t)
			options := tt.prepare(w)
			cmd, err := commands.NewCreateOptimisationCommand(
				kernel.NewUUID(), w.merchant.ID, w.initiator, testDay, optimisation.Advanced, options)
			require.NoError(t, err)
			handler := w.createHandler()

			// Act
			err = handler.Handle(t.Context(), cmd)

			// Assert
			require.ErrorIs(t, err, tt.want)
			assert.Empty(t, w.store.Optimisations(w.merchant.ID))
			assert.Empty(t, w.queue.Enqueued())
		})
	}
}

func TestCreateOptimisationCommandHandler_Handle_SoloCollectsEligibleJobs(t *testing.T) {
	// Arrange
	w := newWorld(t)
	bob := w.addDriver("Bob")
	eve := w.addDriver("Eve")
	free := w.addJob("Free", 52.38, 4.90)
	own := w.addAssignedJob("Own", 52.39, 4.91, bob)
	w.addAssignedJob("Foreign", 52.36, 4.88, eve)

	// Act
	id := w.create(optimisation.Solo, w.options(nil, bob))

	// Assert
	o := w.store.Optimisation(id)
	require.NotNil(t, o)
	assert.ElementsMatch(t, []kernel.UUID{free.ID, own.ID}, o.Options().JobIDs)
	assert.Equal(t, []kernel.UUID{id}, w.queue.Enqueued())
	assert.Equal(t, task.Pending, w.store.Task(id).Status())
}

func TestCreateOptimisationCommandHandler_Handle_CommitFailsNothingQueued(t *testing.T) {
	// Arrange
	ctx := t.Context()
	w := newWorld(t)
	d := w.addDriver("Bob")
	j := w.addJob("Flowers", 52.38, 4.90)
	cmd, err := commands.NewCreateOptimisationCommand(
		kernel.NewUUID(), w.merchant.ID, w.initiator, testDay, optimisation.Advanced, w.options([]fleet.Job{j}, d))
	require.NoError(t, err)

	optimisations := new(MockOptimisationRepository)
	tasks := new(MockTaskRepository)
	uow := new(MockUoW)
	factory := new(MockUoWFactory)
	queue := new(MockTaskQueue)
	commitErr := errors.New("connection reset")

	mock.InOrder(
		uow.On("Begin", ctx).Return(nil).Once(),
		uow.On("OptimisationRepository").Return(optimisations).Once(),
		optimisations.On("Add", ctx, mock.AnythingOfType("*optimisation.RouteOptimisation")).Return(nil).Once(),
		uow.On("TaskRepository").Return(tasks).Once(),
		tasks.On("Add", ctx, mock.AnythingOfType("*task.OptimisationTask")).Return(nil).Once(),
		uow.On("Commit", ctx).Return(commitErr).Once(),
		uow.On("Rollback", ctx).Return(nil).Once(),
	)
	factory.On("Create").Return(uow).Once()

	handler := commands.NewCreateOptimisationCommandHandler(factory, w.fleet, w.jobs, queue, w.clock)

	// Act
	err = handler.Handle(ctx, cmd)

	// Assert
	require.ErrorIs(t, err, commitErr)
	uow.AssertExpectations(t)
	queue.AssertNotCalled(t, "Enqueue", mock.Anything, mock.Anything)
}
