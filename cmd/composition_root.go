package cmd

import (
	"fmt"
	"log/slog"

	httpin "routeopt/internal/adapters/in/http"
	"routeopt/internal/adapters/out/distance"
	"routeopt/internal/adapters/out/memory"
	"routeopt/internal/adapters/out/notify"
	"routeopt/internal/adapters/out/postgres"
	"routeopt/internal/adapters/out/postgres/directoryrepo"
	"routeopt/internal/adapters/out/redis"
	"routeopt/internal/core/application/usecases/commands"
	"routeopt/internal/core/application/usecases/queries"
	"routeopt/internal/core/domain/services/solver"
	"routeopt/internal/core/ports"
	"routeopt/internal/jobs"
	"routeopt/internal/pkg/throttle"

	goredis "github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

type CompositionRoot struct {
	cfg        Config
	gormDB     *gorm.DB
	redis      goredis.UniversalClient
	uowFactory *postgres.GormUnitOfWorkFactory
	directory  *directoryrepo.GormDirectory
	distances  ports.DistanceProvider
	solver     *solver.Solver
	clock      throttle.Clock
	logger     *slog.Logger
	taskRunner *jobs.TaskRunner
}

// NewCompositionRoot wires adapters shared by all use cases. redisClient may
// be nil, in which case in-process adapters are used.
func NewCompositionRoot(
	cfg Config,
	gormDB *gorm.DB,
	redisClient goredis.UniversalClient,
	logger *slog.Logger,
) (*CompositionRoot, error) {
	c := &CompositionRoot{
		cfg:        cfg,
		gormDB:     gormDB,
		redis:      redisClient,
		uowFactory: postgres.NewGormUnitOfWorkFactory(gormDB),
		directory:  directoryrepo.NewGormDirectory(gormDB),
		solver:     solver.New(cfg.Solver),
		clock:      throttle.SystemClock(),
		logger:     logger,
	}

	distances, err := c.createDistanceProvider()
	if err != nil {
		return nil, err
	}
	c.distances = distances

	run := c.CreateRunOptimisationCommandHandler()
	c.taskRunner = jobs.NewTaskRunner(
		&run,
		c.CreateListPendingTasksQueryHandler(),
		jobs.TaskRunnerConfig{
			Workers:        cfg.Workers,
			QueueSize:      cfg.QueueSize,
			BusyRetryDelay: cfg.BusyRetryDelay,
		},
		logger,
	)
	return c, nil
}

func (c *CompositionRoot) createDistanceProvider() (ports.DistanceProvider, error) {
	var provider ports.DistanceProvider = distance.NewStraightLineProvider(c.cfg.StraightLineSpeedKmh)
	if c.cfg.OSRMURL != "" {
		osrm, err := distance.NewOSRMProvider(c.cfg.OSRMURL, c.cfg.OSRMTimeout, c.logger)
		if err != nil {
			return nil, fmt.Errorf("create OSRM provider: %w", err)
		}
		provider = osrm
	}
	if c.redis != nil {
		provider = redis.NewDistanceCache(c.redis, provider, c.cfg.DistanceCacheTTL, c.logger)
	}
	return provider, nil
}

func (c *CompositionRoot) uow() commands.UoWFactory {
	return FuncUoWFactory(func() commands.UoW {
		return c.uowFactory.Create()
	})
}

func (c *CompositionRoot) solverLock() ports.SolverLock {
	if c.redis != nil {
		return redis.NewSolverLock(c.redis)
	}
	return memory.NewSolverLock()
}

func (c *CompositionRoot) statusSink() ports.StatusEventSink {
	if c.redis != nil && c.cfg.StatusStream != "" {
		return redis.NewStatusEventStream(c.redis, c.cfg.StatusStream, c.cfg.StatusStreamMaxLen)
	}
	return notify.NewLogEventSink(c.logger)
}

func (c *CompositionRoot) notifier() ports.Notifier {
	return notify.NewLogNotifier(c.logger)
}

func (c *CompositionRoot) CreateCreateOptimisationCommandHandler() commands.CreateOptimisationCommandHandler {
	return commands.NewCreateOptimisationCommandHandler(c.uow(), c.directory, c.directory, c.taskRunner, c.clock)
}

func (c *CompositionRoot) CreateRefreshOptimisationCommandHandler() commands.RefreshOptimisationCommandHandler {
	return commands.NewRefreshOptimisationCommandHandler(c.uow(), c.directory, c.directory, c.taskRunner, c.clock)
}

func (c *CompositionRoot) CreateDeleteOptimisationCommandHandler() (commands.DeleteOptimisationCommandHandler, error) {
	limiter, err := throttle.NewWindow(c.cfg.UnassignLimit, c.cfg.UnassignPeriod, c.clock)
	if err != nil {
		return commands.DeleteOptimisationCommandHandler{}, fmt.Errorf("unassign throttle: %w", err)
	}
	return commands.NewDeleteOptimisationCommandHandler(
		c.uow(), c.directory, c.statusSink(), limiter, c.notifier(), c.clock, c.logger,
	), nil
}

func (c *CompositionRoot) CreateMoveOrdersCommandHandler() commands.MoveOrdersCommandHandler {
	return commands.NewMoveOrdersCommandHandler(
		c.uow(), c.directory, c.directory, c.distances, c.cfg.DistanceConcurrency, c.notifier(), c.clock, c.logger,
	)
}

func (c *CompositionRoot) CreateReorderSequenceCommandHandler() commands.ReorderSequenceCommandHandler {
	return commands.NewReorderSequenceCommandHandler(
		c.uow(), c.directory, c.directory, c.distances, c.cfg.DistanceConcurrency, c.notifier(), c.clock, c.logger,
	)
}

func (c *CompositionRoot) CreateNotifyCustomersCommandHandler() commands.NotifyCustomersCommandHandler {
	return commands.NewNotifyCustomersCommandHandler(c.uow(), c.notifier(), c.clock, c.logger)
}

func (c *CompositionRoot) CreateTrackJobStatusCommandHandler() commands.TrackJobStatusCommandHandler {
	return commands.NewTrackJobStatusCommandHandler(c.uow(), c.directory, c.notifier(), c.logger)
}

func (c *CompositionRoot) CreateSyncOptimisationStateCommandHandler() commands.SyncOptimisationStateCommandHandler {
	return commands.NewSyncOptimisationStateCommandHandler(c.uow(), c.directory)
}

func (c *CompositionRoot) CreateRunOptimisationCommandHandler() commands.RunOptimisationCommandHandler {
	return commands.NewRunOptimisationCommandHandler(
		c.uow(),
		c.directory,
		c.directory,
		c.distances,
		c.cfg.DistanceConcurrency,
		c.solver,
		c.solverLock(),
		c.notifier(),
		c.clock,
		c.logger,
	)
}

func (c *CompositionRoot) CreateGetOptimisationQueryHandler() queries.GetOptimisationQueryHandler {
	return queries.NewGetOptimisationQueryHandler(c.gormDB)
}

func (c *CompositionRoot) CreateGetTaskStatusQueryHandler() queries.GetTaskStatusQueryHandler {
	return queries.NewGetTaskStatusQueryHandler(c.gormDB)
}

func (c *CompositionRoot) CreateListTrackedOptimisationsQueryHandler() queries.ListTrackedOptimisationsQueryHandler {
	return queries.NewListTrackedOptimisationsQueryHandler(c.gormDB)
}

func (c *CompositionRoot) CreateListPendingTasksQueryHandler() queries.ListPendingTasksQueryHandler {
	return queries.NewListPendingTasksQueryHandler(c.gormDB)
}

// CreateServer builds the HTTP server with every use case it dispatches to.
func (c *CompositionRoot) CreateServer() (*httpin.Server, error) {
	create := c.CreateCreateOptimisationCommandHandler()
	refresh := c.CreateRefreshOptimisationCommandHandler()
	remove, err := c.CreateDeleteOptimisationCommandHandler()
	if err != nil {
		return nil, err
	}
	move := c.CreateMoveOrdersCommandHandler()
	reorder := c.CreateReorderSequenceCommandHandler()
	notifyCustomers := c.CreateNotifyCustomersCommandHandler()
	track := c.CreateTrackJobStatusCommandHandler()

	return httpin.NewServer(httpin.Handlers{
		CreateOptimisation:  &create,
		DeleteOptimisation:  &remove,
		RefreshOptimisation: &refresh,
		MoveOrders:          &move,
		ReorderSequence:     &reorder,
		NotifyCustomers:     &notifyCustomers,
		TrackJobStatus:      &track,
		GetOptimisation:     c.CreateGetOptimisationQueryHandler(),
		GetTaskStatus:       c.CreateGetTaskStatusQueryHandler(),
	}, c.clock, c.logger), nil
}

// CreateJobManager bundles the solver workers with the state tracking job.
func (c *CompositionRoot) CreateJobManager() *jobs.JobManager {
	var tracking *jobs.StateTrackingJob
	if c.cfg.StateTracking {
		sync := c.CreateSyncOptimisationStateCommandHandler()
		tracking = jobs.NewStateTrackingJob(
			c.CreateListTrackedOptimisationsQueryHandler(),
			&sync,
			c.cfg.StateTrackingSchedule,
			c.logger,
		)
	}
	return jobs.NewJobManager(c.taskRunner, tracking)
}

type FuncUoWFactory func() commands.UoW

func (f FuncUoWFactory) Create() commands.UoW {
	return f()
}
