package jobs

import (
	"context"
	"errors"
	"log/slog"

	"routeopt/internal/core/application/usecases/commands"
	"routeopt/internal/core/application/usecases/queries"
	"routeopt/internal/core/domain/model/kernel"
	"routeopt/internal/pkg/errs"

	"github.com/robfig/cron/v3"
)

// DefaultStateTrackingSchedule runs the sync every thirty seconds.
const DefaultStateTrackingSchedule = "*/30 * * * * *"

type trackedOptimisations interface {
	Handle(ctx context.Context, query queries.ListTrackedOptimisationsQuery) ([]kernel.UUID, error)
}

type stateSyncer interface {
	Handle(ctx context.Context, cmd commands.SyncOptimisationStateCommand) error
}

// StateTrackingJob re-derives route and optimisation states from job
// statuses. It complements job status events that were lost or arrived
// out of order.
type StateTrackingJob struct {
	list     trackedOptimisations
	sync     stateSyncer
	schedule string
	cron     *cron.Cron
	logger   *slog.Logger
}

func NewStateTrackingJob(
	list trackedOptimisations,
	sync stateSyncer,
	schedule string,
	logger *slog.Logger,
) *StateTrackingJob {
	if schedule == "" {
		schedule = DefaultStateTrackingSchedule
	}
	return &StateTrackingJob{
		list:     list,
		sync:     sync,
		schedule: schedule,
		cron:     cron.New(cron.WithSeconds(), cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
		logger:   logger.With("component", "state_tracking_job"),
	}
}

func (j *StateTrackingJob) Start() error {
	_, err := j.cron.AddFunc(j.schedule, func() {
		j.Run(context.Background())
	})
	if err != nil {
		return err
	}

	j.cron.Start()
	j.logger.InfoContext(context.Background(), "State tracking job started", "schedule", j.schedule)
	return nil
}

// Run syncs every tracked optimisation once. A failure of one optimisation
// does not stop the others.
func (j *StateTrackingJob) Run(ctx context.Context) {
	ids, err := j.list.Handle(ctx, queries.NewListTrackedOptimisationsQuery())
	if err != nil {
		j.logger.ErrorContext(ctx, "State tracking job failed to list optimisations", "error", err)
		return
	}

	for _, id := range ids {
		cmd, err := commands.NewSyncOptimisationStateCommand(id)
		if err != nil {
			j.logger.ErrorContext(ctx, "State tracking job got an invalid optimisation id", "error", err)
			continue
		}
		if err = j.sync.Handle(ctx, cmd); err != nil && !errors.Is(err, errs.ErrObjectNotFound) {
			j.logger.ErrorContext(ctx, "State tracking job failed", "optimisation_id", id.String(), "error", err)
		}
	}
}

func (j *StateTrackingJob) Stop() {
	<-j.cron.Stop().Done()
	j.logger.InfoContext(context.Background(), "State tracking job stopped")
}
