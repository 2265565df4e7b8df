package commands_test

import (
	"testing"

	"routeopt/internal/core/application/usecases/commands"
	"routeopt/internal/core/domain/model/fleet"
	"routeopt/internal/core/domain/model/kernel"
	"routeopt/internal/core/domain/model/optimisation"
	"routeopt/internal/core/domain/model/task"
	"routeopt/internal/core/domain/services"
	"routeopt/internal/core/ports"
	"routeopt/internal/pkg/errs"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func (w *world) move(id, routeID kernel.UUID, points []kernel.UUID, target fleet.Driver, force bool) error {
	w.t.Helper()
	cmd, err := commands.NewMoveOrdersCommand(id, w.merchant.ID, w.initiator, routeID, points, target.ID, force)
	require.NoError(w.t, err)
	handler := w.moveHandler()
	return handler.Handle(w.t.Context(), cmd)
}

func TestMoveOrdersCommandHandler_Handle_ToRouteInSameOptimisation(t *testing.T) {
	// Arrange
	w := newWorld(t)
	bob := w.addDriver("Bob")
	eve := w.addDriver("Eve")
	north := w.addAssignedJob("North", 52.40, 4.89, bob)
	south := w.addAssignedJob("South", 52.34, 4.89, bob)
	east := w.addAssignedJob("East", 52.37, 4.95, eve)
	id := w.build(w.options([]fleet.Job{north, south, east}, bob, eve))
	source := w.routeOf(id, bob)
	point := pointOf(t, source, north)

	// Act
	err := w.move(id, source.ID(), []kernel.UUID{point.ID()}, eve, false)

	// Assert
	require.NoError(t, err)
	assert.ElementsMatch(t, []kernel.UUID{south.ID}, w.routeOf(id, bob).JobIDs())
	target := w.routeOf(id, eve)
	assert.ElementsMatch(t, []kernel.UUID{north.ID, east.ID}, target.JobIDs())
	require.NoError(t, target.CheckInvariants())

	moved := w.jobs.Job(north.ID)
	assert.True(t, moved.IsAssignedTo(eve.ID))
	assert.Equal(t, fleet.Assigned, moved.Status)

	o := w.store.Optimisation(id)
	entry := lastEvent(o)
	assert.Equal(t, optimisation.EventJobsMoved, entry.Event)
	assert.Equal(t, 1, entry.Params.Count)
	assert.Equal(t, "Bob", entry.Params.SourceDriver)
	assert.Equal(t, "Eve", entry.Params.TargetDriver)
	assert.True(t, o.IsPlacedJob(north.ID))
	assert.Len(t, w.store.Optimisations(w.merchant.ID), 1)

	kinds := w.notifier.Kinds()
	assert.Contains(t, kinds, ports.MessageJobsUnassigned)
	assert.Contains(t, kinds, ports.MessageRouteChanged)
}

func TestMoveOrdersCommandHandler_Handle_CreatesOptimisationForDriverWithoutRoute(t *testing.T) {
	// Arrange
	w := newWorld(t)
	bob := w.addDriver("Bob")
	eve := w.addDriver("Eve")
	north := w.addJob("North", 52.40, 4.89)
	id := w.build(w.options([]fleet.Job{north}, bob))
	source := w.routeOf(id, bob)

	// Act
	err := w.move(id, source.ID(), []kernel.UUID{pointOf(t, source, north).ID()}, eve, false)

	// Assert
	require.NoError(t, err)
	assert.Empty(t, w.store.Routes(id))
	assert.Contains(t, w.notifier.Kinds(), ports.MessageRouteRemoved)

	var created *optimisation.RouteOptimisation
	for _, o := range w.store.Optimisations(w.merchant.ID) {
		if !o.ID().IsEqual(id) {
			created = o
		}
	}
	require.NotNil(t, created)
	assert.Equal(t, optimisation.Advanced, created.Type())
	assert.Equal(t, optimisation.Completed, created.State())
	assert.Equal(t, []kernel.UUID{eve.ID}, created.Options().DriverIDs)
	assert.Equal(t, []kernel.UUID{north.ID}, created.Options().JobIDs)
	assert.True(t, hasEvent(created, optimisation.EventCreatedAfterMove))
	assert.True(t, hasEvent(created, optimisation.EventJobsMoved))
	assert.False(t, w.store.Task(created.ID()).Status().IsInFlight())

	assert.ElementsMatch(t, []kernel.UUID{north.ID}, w.routeOf(created.ID(), eve).JobIDs())
	assert.True(t, w.jobs.Job(north.ID).IsAssignedTo(eve.ID))
}

func TestMoveOrdersCommandHandler_Handle_MovesToOtherOptimisationOfTheDay(t *testing.T) {
	// Arrange
	w := newWorld(t)
	bob := w.addDriver("Bob")
	eve := w.addDriver("Eve")
	north := w.addJob("North", 52.40, 4.89)
	south := w.addJob("South", 52.34, 4.89)
	first := w.build(w.options([]fleet.Job{north}, bob))
	second := w.build(w.options([]fleet.Job{south}, eve))
	source := w.routeOf(first, bob)

	// Act
	err := w.move(first, source.ID(), []kernel.UUID{pointOf(t, source, north).ID()}, eve, false)

	// Assert
	require.NoError(t, err)
	assert.ElementsMatch(t, []kernel.UUID{north.ID, south.ID}, w.routeOf(second, eve).JobIDs())
	target := w.store.Optimisation(second)
	assert.Contains(t, target.Options().JobIDs, north.ID)
	assert.Equal(t, optimisation.EventJobsMoved, lastEvent(target).Event)
	assert.Len(t, w.store.Optimisations(w.merchant.ID), 2)
}

func TestMoveOrdersCommandHandler_Handle_Conflicts(t *testing.T) {
	skill := fleet.Skill{ID: kernel.NewUUID(), Name: "Fridge"}

	tests := []struct {
		name   string
		mutate func(w *world, bob, eve *fleet.Driver, job *fleet.Job)
		target func(bob, eve fleet.Driver) fleet.Driver
		want   string
	}{
		{
			name:   "same driver",
			mutate: func(*world, *fleet.Driver, *fleet.Driver, *fleet.Job) {},
			target: func(bob, _ fleet.Driver) fleet.Driver { return bob },
			want:   services.MsgSameDriver,
		},
		{
			name: "missing skill",
			mutate: func(w *world, bob, _ *fleet.Driver, job *fleet.Job) {
				bob.SkillIDs = []kernel.UUID{skill.ID}
				w.fleet.Drivers[0] = *bob
				job.Skills = []fleet.Skill{skill}
				w.jobs.Put(*job)
			},
			target: func(_, eve fleet.Driver) fleet.Driver { return eve },
			want:   services.MsgSkills,
		},
		{
			name: "day off",
			mutate: func(w *world, _, eve *fleet.Driver, _ *fleet.Job) {
				eve.Schedule.DayOff = true
				w.fleet.Drivers[1] = *eve
			},
			target: func(_, eve fleet.Driver) fleet.Driver { return eve },
			want:   services.MsgDayOff,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Arrange
			w := newWorld(t)
			bob := w.addDriver("Bob")
			eve := w.addDriver("Eve")
			job := w.addJob("North", 52.40, 4.89)
			tt.mutate(w, &bob, &eve, &job)
			id := w.build(w.options([]fleet.Job{job}, bob))
			source := w.routeOf(id, bob)

			// Act
			err := w.move(id, source.ID(), []kernel.UUID{pointOf(t, source, job).ID()}, tt.target(bob, eve), false)

			// Assert
			var conflict *errs.ConflictError
			require.ErrorAs(t, err, &conflict)
			assert.False(t, conflict.Forcible)
			assert.Equal(t, tt.want, conflict.Detail)

			o := w.store.Optimisation(id)
			entry := lastEvent(o)
			assert.Equal(t, optimisation.EventMutationRejected, entry.Event)
			assert.Equal(t, "move", entry.Params.Operation)
			assert.Equal(t, tt.want, entry.Params.Reason)
			assert.ElementsMatch(t, []kernel.UUID{job.ID}, w.routeOf(id, bob).JobIDs())
			assert.True(t, w.jobs.Job(job.ID).IsAssignedTo(bob.ID))
		})
	}
}

func TestMoveOrdersCommandHandler_Handle_OutOfScheduleNeedsForce(t *testing.T) {
	// Arrange
	w := newWorld(t)
	bob := w.addDriver("Bob")
	eve := w.addDriver("Eve")
	w.fleet.Drivers[1].Schedule.Window = window(8, 8)
	job := w.addJob("Far", 52.42, 4.89)
	id := w.build(w.options([]fleet.Job{job}, bob))
	source := w.routeOf(id, bob)
	point := pointOf(t, source, job).ID()

	// Act
	err := w.move(id, source.ID(), []kernel.UUID{point}, eve, false)

	// Assert
	var conflict *errs.ConflictError
	require.ErrorAs(t, err, &conflict)
	assert.True(t, conflict.Forcible)
	assert.Contains(t, conflict.Reasons, services.MsgOutOfSchedule)
	assert.True(t, w.jobs.Job(job.ID).IsAssignedTo(bob.ID))

	// Act
	err = w.move(id, source.ID(), []kernel.UUID{point}, eve, true)

	// Assert
	require.NoError(t, err)
	assert.True(t, w.jobs.Job(job.ID).IsAssignedTo(eve.ID))
}

func TestMoveOrdersCommandHandler_Handle_OnlyAssignedJobsMove(t *testing.T) {
	// Arrange
	w := newWorld(t)
	bob := w.addDriver("Bob")
	eve := w.addDriver("Eve")
	job := w.addJob("North", 52.40, 4.89)
	id := w.build(w.options([]fleet.Job{job}, bob))
	source := w.routeOf(id, bob)
	w.jobs.SetStatus(job.ID, fleet.InProgress)

	// Act
	err := w.move(id, source.ID(), []kernel.UUID{pointOf(t, source, job).ID()}, eve, false)

	// Assert
	var conflict *errs.ConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, services.MsgOnlyAssigned, conflict.Detail)
}

func TestMoveOrdersCommandHandler_Handle_UnknownPoint(t *testing.T) {
	// Arrange
	w := newWorld(t)
	bob := w.addDriver("Bob")
	eve := w.addDriver("Eve")
	id := w.build(w.options([]fleet.Job{w.addJob("North", 52.40, 4.89)}, bob))
	source := w.routeOf(id, bob)

	// Act
	err := w.move(id, source.ID(), []kernel.UUID{kernel.NewUUID()}, eve, false)

	// Assert
	require.ErrorIs(t, err, errs.ErrConflict)
}

func TestMoveOrdersCommandHandler_Handle_BusyOptimisation(t *testing.T) {
	// Arrange
	w := newWorld(t)
	bob := w.addDriver("Bob")
	eve := w.addDriver("Eve")
	job := w.addJob("North", 52.40, 4.89)
	id := w.build(w.options([]fleet.Job{job}, bob))
	source := w.routeOf(id, bob)
	require.NoError(t, w.store.Task(id).Rearm(task.KindRefresh, testNow))

	// Act
	err := w.move(id, source.ID(), []kernel.UUID{pointOf(t, source, job).ID()}, eve, false)

	// Assert
	require.ErrorIs(t, err, commands.ErrOptimisationBusy)
	assert.NotEqual(t, optimisation.EventMutationRejected, lastEvent(w.store.Optimisation(id)).Event)
}

func TestMoveOrdersCommandHandler_Handle_JobStartedDuringMove(t *testing.T) {
	// Arrange
	w := newWorld(t)
	bob := w.addDriver("Bob")
	eve := w.addDriver("Eve")
	north := w.addAssignedJob("North", 52.40, 4.89, bob)
	id := w.build(w.options([]fleet.Job{north}, bob, eve))
	source := w.routeOf(id, bob)
	jobs := &racingJobs{JobDirectory: w.jobs, hook: func() { w.jobs.SetStatus(north.ID, fleet.InProgress) }}
	cmd, err := commands.NewMoveOrdersCommand(id, w.merchant.ID, w.initiator, source.ID(), []kernel.UUID{pointOf(t, source, north).ID()}, eve.ID, false)
	require.NoError(t, err)
	handler := w.moveHandlerWith(jobs)

	// Act
	err = handler.Handle(t.Context(), cmd)

	// Assert
	require.ErrorIs(t, err, ports.ErrJobNotAssignable)
	moved := w.jobs.Job(north.ID)
	assert.True(t, moved.IsAssignedTo(bob.ID))
	assert.Equal(t, fleet.InProgress, moved.Status)
}

func TestMoveOrdersCommandHandler_Handle_FailedCommitReturnsJobs(t *testing.T) {
	// Arrange
	w := newWorld(t)
	bob := w.addDriver("Bob")
	eve := w.addDriver("Eve")
	north := w.addAssignedJob("North", 52.40, 4.89, bob)
	id := w.build(w.options([]fleet.Job{north}, bob, eve))
	source := w.routeOf(id, bob)
	jobs := &racingJobs{JobDirectory: w.jobs, hook: func() { w.store.FailNextCommit(assert.AnError) }}
	points := []kernel.UUID{pointOf(t, source, north).ID()}
	cmd, err := commands.NewMoveOrdersCommand(id, w.merchant.ID, w.initiator, source.ID(), points, eve.ID, false)
	require.NoError(t, err)
	handler := w.moveHandlerWith(jobs)

	// Act
	err = handler.Handle(t.Context(), cmd)

	// Assert
	require.ErrorIs(t, err, assert.AnError)
	assert.True(t, w.jobs.Job(north.ID).IsAssignedTo(bob.ID))
	assert.Equal(t, fleet.Assigned, w.jobs.Job(north.ID).Status)
}

func TestNewMoveOrdersCommand_Validation(t *testing.T) {
	initiator := optimisation.Initiator{MemberID: "m1", Role: optimisation.RoleManager}

	_, err := commands.NewMoveOrdersCommand(
		kernel.NewUUID(), kernel.NewUUID(), initiator, kernel.NewUUID(), nil, kernel.NewUUID(), false)
	require.ErrorIs(t, err, errs.ErrValueIsRequired)

	var zero commands.MoveOrdersCommand
	require.ErrorIs(t, zero.Validate(), commands.ErrMoveOrdersCommandIsNotConstructed)
}
