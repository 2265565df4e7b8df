package postgres_test

import (
	"context"
	"testing"
	"time"

	postgres_adapter "routeopt/internal/adapters/out/postgres"
	"routeopt/internal/core/domain/model/kernel"
	"routeopt/internal/core/domain/model/optimisation"
	"routeopt/internal/core/domain/model/route"
	"routeopt/internal/core/domain/model/task"
	"routeopt/internal/core/ports"
	"routeopt/internal/pkg/errs"

	"github.com/stretchr/testify/suite"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	gorm_postgres "gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// UnitOfWorkIntegrationTestSuite runs the unit of work against a real
// PostgreSQL, which is needed for row locks and transaction isolation.
type UnitOfWorkIntegrationTestSuite struct {
	suite.Suite
	container *postgres.PostgresContainer
	db        *gorm.DB
	factory   ports.UnitOfWorkFactory
}

func (suite *UnitOfWorkIntegrationTestSuite) SetupSuite() {
	ctx := context.Background()

	container, err := postgres.Run(ctx,
		"postgres:15-alpine",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("testuser"),
		postgres.WithPassword("testpass"),
		testcontainers.WithWaitStrategy(wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(30*time.Second)),
	)
	suite.Require().NoError(err)
	suite.container = container

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	suite.Require().NoError(err)

	db, err := gorm.Open(gorm_postgres.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	suite.Require().NoError(err)
	suite.db = db

	suite.Require().NoError(postgres_adapter.Migrate(db, false))
	suite.factory = postgres_adapter.NewGormUnitOfWorkFactory(db)
}

// SetupTest truncates every table so tests do not see each other's rows.
func (suite *UnitOfWorkIntegrationTestSuite) SetupTest() {
	err := suite.db.Exec("TRUNCATE TABLE route_optimisations, driver_routes, route_points, route_jobs, optimisation_tasks").Error
	suite.Require().NoError(err)
}

func (suite *UnitOfWorkIntegrationTestSuite) TearDownSuite() {
	if suite.container != nil {
		err := suite.container.Terminate(context.Background())
		suite.Require().NoError(err)
	}
}

func (suite *UnitOfWorkIntegrationTestSuite) TestUnitOfWorkFactory_Create() {
	uow1 := suite.factory.Create()
	uow2 := suite.factory.Create()

	suite.NotSame(uow1, uow2, "Factory should create separate instances")
	suite.NotNil(uow1.OptimisationRepository())
	suite.NotNil(uow1.RouteRepository())
	suite.NotNil(uow1.TaskRepository())
}

func (suite *UnitOfWorkIntegrationTestSuite) TestUnitOfWork_TransactionLifecycle() {
	ctx := context.Background()
	uow := suite.factory.Create()

	suite.Require().NoError(uow.Begin(ctx))
	suite.Require().NoError(uow.Begin(ctx), "Multiple begin calls should be safe")
	suite.Require().NoError(uow.Commit(ctx))

	suite.Require().NoError(uow.Begin(ctx))
	suite.Require().NoError(uow.Rollback(ctx))
}

func (suite *UnitOfWorkIntegrationTestSuite) TestUnitOfWork_TransactionErrors() {
	ctx := context.Background()
	uow := suite.factory.Create()

	suite.Require().ErrorIs(uow.Commit(ctx), gorm.ErrInvalidTransaction)
	suite.Require().ErrorIs(uow.Rollback(ctx), gorm.ErrInvalidTransaction)
}

// TestUnitOfWork_CommitPersistsAllRepositories stores what a build does in
// one transaction: the optimisation, its task and a route.
func (suite *UnitOfWorkIntegrationTestSuite) TestUnitOfWork_CommitPersistsAllRepositories() {
	// Arrange
	ctx := context.Background()
	uow := suite.factory.Create()
	o := createTestOptimisation(suite.T())
	tk := createTestTask(suite.T(), o.ID())
	jobID := kernel.NewUUID()
	r := createTestRoute(suite.T(), o.ID(), jobID)

	// Act
	suite.Require().NoError(uow.Begin(ctx))
	suite.Require().NoError(uow.OptimisationRepository().Add(ctx, o))
	suite.Require().NoError(uow.TaskRepository().Add(ctx, tk))
	suite.Require().NoError(uow.RouteRepository().Add(ctx, r))
	suite.Require().NoError(uow.Commit(ctx))

	// Assert
	newUow := suite.factory.Create()
	got, err := newUow.OptimisationRepository().Get(ctx, o.ID())
	suite.Require().NoError(err)
	suite.True(got.Day().Equal(o.Day()))
	suite.Equal(o.Options(), got.Options())

	_, err = newUow.TaskRepository().GetByOptimisation(ctx, o.ID())
	suite.Require().NoError(err)

	routes, err := newUow.RouteRepository().ListByOptimisation(ctx, o.ID())
	suite.Require().NoError(err)
	suite.Require().Len(routes, 1)
	suite.Len(routes[0].Points(), 3)

	ids, err := newUow.RouteRepository().FindOptimisationsByJob(ctx, jobID)
	suite.Require().NoError(err)
	suite.Equal([]kernel.UUID{o.ID()}, ids)
}

func (suite *UnitOfWorkIntegrationTestSuite) TestUnitOfWork_TransactionRollback() {
	// Arrange
	ctx := context.Background()
	uow := suite.factory.Create()
	o := createTestOptimisation(suite.T())
	r := createTestRoute(suite.T(), o.ID(), kernel.NewUUID())

	suite.Require().NoError(uow.Begin(ctx))
	suite.Require().NoError(uow.OptimisationRepository().Add(ctx, o))
	suite.Require().NoError(uow.RouteRepository().Add(ctx, r))
	_, err := uow.RouteRepository().Get(ctx, r.ID())
	suite.Require().NoError(err)

	// Act
	suite.Require().NoError(uow.Rollback(ctx))

	// Assert
	newUow := suite.factory.Create()
	_, err = newUow.OptimisationRepository().Get(ctx, o.ID())
	suite.Require().ErrorIs(err, errs.ErrObjectNotFound)
	_, err = newUow.RouteRepository().Get(ctx, r.ID())
	suite.Require().ErrorIs(err, errs.ErrObjectNotFound)
}

func (suite *UnitOfWorkIntegrationTestSuite) TestUnitOfWork_AggregateTracking() {
	ctx := context.Background()
	uow := suite.factory.Create()
	o := createTestOptimisation(suite.T())

	suite.Require().NoError(uow.Begin(ctx))
	suite.Require().NoError(uow.OptimisationRepository().Add(ctx, o))
	suite.Require().NoError(o.TransitionTo(optimisation.Running))
	suite.Require().NoError(uow.OptimisationRepository().Update(ctx, o))

	tracked, ok := uow.(interface{ TrackedCount() int })
	suite.Require().True(ok)
	suite.Equal(2, tracked.TrackedCount())

	suite.Require().NoError(uow.Rollback(ctx))
	suite.Equal(0, tracked.TrackedCount())
}

func (suite *UnitOfWorkIntegrationTestSuite) TestUnitOfWork_RepositoryIsolation() {
	ctx := context.Background()
	uow1 := suite.factory.Create()
	uow2 := suite.factory.Create()
	first := createTestOptimisation(suite.T())
	second := createTestOptimisation(suite.T())

	suite.Require().NoError(uow1.Begin(ctx))
	suite.Require().NoError(uow2.Begin(ctx))
	suite.Require().NoError(uow1.OptimisationRepository().Add(ctx, first))
	suite.Require().NoError(uow2.OptimisationRepository().Add(ctx, second))

	_, err := uow1.OptimisationRepository().Get(ctx, second.ID())
	suite.Require().Error(err, "uncommitted rows of another unit of work must stay invisible")
	_, err = uow2.OptimisationRepository().Get(ctx, first.ID())
	suite.Require().Error(err)

	suite.Require().NoError(uow1.Commit(ctx))
	suite.Require().NoError(uow2.Rollback(ctx))

	newUow := suite.factory.Create()
	_, err = newUow.OptimisationRepository().Get(ctx, first.ID())
	suite.Require().NoError(err)
	_, err = newUow.OptimisationRepository().Get(ctx, second.ID())
	suite.Require().Error(err)
}

// TestUnitOfWork_GetForUpdateBlocksConcurrentWriter checks that a locked
// route can not be locked again until the holder finishes.
func (suite *UnitOfWorkIntegrationTestSuite) TestUnitOfWork_GetForUpdateBlocksConcurrentWriter() {
	// Arrange
	ctx := context.Background()
	r := createTestRoute(suite.T(), kernel.NewUUID(), kernel.NewUUID())
	suite.Require().NoError(suite.factory.Create().RouteRepository().Add(ctx, r))

	holder := suite.factory.Create()
	suite.Require().NoError(holder.Begin(ctx))
	_, err := holder.RouteRepository().GetForUpdate(ctx, []kernel.UUID{r.ID()})
	suite.Require().NoError(err)

	// Act
	waiter := suite.factory.Create()
	waitCtx, cancel := context.WithTimeout(ctx, 300*time.Millisecond)
	defer cancel()
	suite.Require().NoError(waiter.Begin(waitCtx))
	_, err = waiter.RouteRepository().GetForUpdate(waitCtx, []kernel.UUID{r.ID()})

	// Assert
	suite.Require().Error(err, "second lock must wait for the first transaction")
	_ = waiter.Rollback(ctx)

	suite.Require().NoError(holder.Commit(ctx))
	again := suite.factory.Create()
	suite.Require().NoError(again.Begin(ctx))
	_, err = again.RouteRepository().GetForUpdate(ctx, []kernel.UUID{r.ID()})
	suite.Require().NoError(err)
	suite.Require().NoError(again.Commit(ctx))
}

func (suite *UnitOfWorkIntegrationTestSuite) TestUnitOfWork_WithoutTransaction() {
	ctx := context.Background()
	uow := suite.factory.Create()
	o := createTestOptimisation(suite.T())

	suite.Require().NoError(uow.OptimisationRepository().Add(ctx, o))

	_, err := suite.factory.Create().OptimisationRepository().Get(ctx, o.ID())
	suite.Require().NoError(err)
}

func createTestOptimisation(t *testing.T) *optimisation.RouteOptimisation {
	t.Helper()
	o, err := optimisation.NewRouteOptimisation(
		kernel.NewUUID(), kernel.NewUUID(),
		optimisation.Initiator{MemberID: "1", Role: optimisation.RoleManager, Name: "Ann"},
		time.Date(2030, 3, 4, 0, 0, 0, 0, time.UTC),
		optimisation.Advanced,
		optimisation.Options{
			Version:      optimisation.OptionsVersion,
			JobIDs:       []kernel.UUID{kernel.NewUUID()},
			DriverIDs:    []kernel.UUID{kernel.NewUUID()},
			StartPlace:   optimisation.PlaceDefaultHub,
			EndPlace:     optimisation.PlaceDefaultHub,
			WorkingHours: optimisation.WorkingHours{Lower: 8 * 60, Upper: 20 * 60},
		},
		time.Now().UTC(),
	)
	if err != nil {
		t.Fatal(err)
	}
	return o
}

func createTestTask(t *testing.T, optimisationID kernel.UUID) *task.OptimisationTask {
	t.Helper()
	tk, err := task.NewOptimisationTask(kernel.NewUUID(), optimisationID, task.KindBuild, time.Now().UTC())
	if err != nil {
		t.Fatal(err)
	}
	return tk
}

// createTestRoute builds hub -> job -> hub.
func createTestRoute(t *testing.T, optimisationID, jobID kernel.UUID) *route.DriverRoute {
	t.Helper()
	r, err := route.NewDriverRoute(kernel.NewUUID(), optimisationID, kernel.NewUUID(), "Bob")
	if err != nil {
		t.Fatal(err)
	}
	at := kernel.MustGeoPoint(52.37, 4.89)
	hubID := kernel.NewUUID()
	refs := []struct {
		kind route.PointKind
		ref  route.PointRef
	}{
		{route.KindHub, route.HubRef(hubID)},
		{route.KindDelivery, route.JobRef(jobID)},
		{route.KindHub, route.HubRef(hubID)},
	}
	start := time.Date(2030, 3, 4, 9, 0, 0, 0, time.UTC)
	points := make([]*route.RoutePoint, 0, len(refs))
	for i, item := range refs {
		p, pErr := route.NewRoutePoint(item.kind, item.ref, &at, "stop", 5*time.Minute)
		if pErr != nil {
			t.Fatal(pErr)
		}
		p.SetNumber(i + 1)
		offset := time.Duration(i) * 20 * time.Minute
		if pErr = p.Schedule(start.Add(offset), start.Add(offset+5*time.Minute), 0); pErr != nil {
			t.Fatal(pErr)
		}
		points = append(points, p)
	}
	if err = r.ReplacePoints(points); err != nil {
		t.Fatal(err)
	}
	return r
}

func TestUnitOfWorkIntegrationTestSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration tests in short mode")
	}

	suite.Run(t, new(UnitOfWorkIntegrationTestSuite))
}
