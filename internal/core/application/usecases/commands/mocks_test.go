package commands_test

import (
	"context"
	"time"

	"routeopt/internal/core/application/usecases/commands"
	"routeopt/internal/core/domain/model/kernel"
	"routeopt/internal/core/domain/model/optimisation"
	"routeopt/internal/core/domain/model/route"
	"routeopt/internal/core/domain/model/task"
	"routeopt/internal/core/ports"

	"github.com/stretchr/testify/mock"
)

// Mock implementations for testing.
type MockOptimisationRepository struct {
	mock.Mock
}

func (m *MockOptimisationRepository) Add(ctx context.Context, o *optimisation.RouteOptimisation) error {
	args := m.Called(ctx, o)
	return args.Error(0)
}

func (m *MockOptimisationRepository) Update(ctx context.Context, o *optimisation.RouteOptimisation) error {
	args := m.Called(ctx, o)
	return args.Error(0)
}

func (m *MockOptimisationRepository) Get(ctx context.Context, id kernel.UUID) (*optimisation.RouteOptimisation, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(*optimisation.RouteOptimisation), args.Error(1)
}

func (m *MockOptimisationRepository) FindForDay(
	ctx context.Context,
	merchantID kernel.UUID,
	day time.Time,
) ([]*optimisation.RouteOptimisation, error) {
	args := m.Called(ctx, merchantID, day)
	return args.Get(0).([]*optimisation.RouteOptimisation), args.Error(1)
}

func (m *MockOptimisationRepository) ListInStates(
	ctx context.Context,
	states ...optimisation.State,
) ([]*optimisation.RouteOptimisation, error) {
	args := m.Called(ctx, states)
	return args.Get(0).([]*optimisation.RouteOptimisation), args.Error(1)
}

type MockTaskRepository struct {
	mock.Mock
}

func (m *MockTaskRepository) Add(ctx context.Context, t *task.OptimisationTask) error {
	args := m.Called(ctx, t)
	return args.Error(0)
}

func (m *MockTaskRepository) Update(ctx context.Context, t *task.OptimisationTask) error {
	args := m.Called(ctx, t)
	return args.Error(0)
}

func (m *MockTaskRepository) GetByOptimisation(ctx context.Context, optimisationID kernel.UUID) (*task.OptimisationTask, error) {
	args := m.Called(ctx, optimisationID)
	return args.Get(0).(*task.OptimisationTask), args.Error(1)
}

func (m *MockTaskRepository) ListByStatus(ctx context.Context, status task.Status) ([]*task.OptimisationTask, error) {
	args := m.Called(ctx, status)
	return args.Get(0).([]*task.OptimisationTask), args.Error(1)
}

type MockRouteRepository struct {
	mock.Mock
}

func (m *MockRouteRepository) Add(ctx context.Context, r *route.DriverRoute) error {
	args := m.Called(ctx, r)
	return args.Error(0)
}

func (m *MockRouteRepository) Update(ctx context.Context, r *route.DriverRoute) error {
	args := m.Called(ctx, r)
	return args.Error(0)
}

func (m *MockRouteRepository) Delete(ctx context.Context, id kernel.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockRouteRepository) Get(ctx context.Context, id kernel.UUID) (*route.DriverRoute, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(*route.DriverRoute), args.Error(1)
}

func (m *MockRouteRepository) GetForUpdate(ctx context.Context, ids []kernel.UUID) ([]*route.DriverRoute, error) {
	args := m.Called(ctx, ids)
	return args.Get(0).([]*route.DriverRoute), args.Error(1)
}

func (m *MockRouteRepository) ListByOptimisation(ctx context.Context, optimisationID kernel.UUID) ([]*route.DriverRoute, error) {
	args := m.Called(ctx, optimisationID)
	return args.Get(0).([]*route.DriverRoute), args.Error(1)
}

func (m *MockRouteRepository) FindOptimisationsByJob(ctx context.Context, jobID kernel.UUID) ([]kernel.UUID, error) {
	args := m.Called(ctx, jobID)
	return args.Get(0).([]kernel.UUID), args.Error(1)
}

type MockUoW struct {
	mock.Mock
}

func (m *MockUoW) Begin(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockUoW) Commit(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockUoW) Rollback(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockUoW) OptimisationRepository() ports.OptimisationRepository {
	args := m.Called()
	return args.Get(0).(ports.OptimisationRepository)
}

func (m *MockUoW) RouteRepository() ports.RouteRepository {
	args := m.Called()
	return args.Get(0).(ports.RouteRepository)
}

func (m *MockUoW) TaskRepository() ports.TaskRepository {
	args := m.Called()
	return args.Get(0).(ports.TaskRepository)
}

type MockUoWFactory struct {
	mock.Mock
}

func (m *MockUoWFactory) Create() commands.UoW {
	args := m.Called()
	return args.Get(0).(commands.UoW)
}

type MockTaskQueue struct {
	mock.Mock
}

func (m *MockTaskQueue) Enqueue(ctx context.Context, optimisationID kernel.UUID) error {
	args := m.Called(ctx, optimisationID)
	return args.Error(0)
}
