package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"routeopt/internal/core/application/usecases/commands"
	"routeopt/internal/core/application/usecases/queries"
	"routeopt/internal/core/domain/model/kernel"
	"routeopt/internal/core/ports"

	"golang.org/x/sync/errgroup"
)

var ErrTaskRunnerStopped = errors.New("task runner is not running")

var _ ports.TaskQueue = (*TaskRunner)(nil)

type optimisationRunner interface {
	Handle(ctx context.Context, cmd commands.RunOptimisationCommand) error
}

type pendingTasks interface {
	Handle(ctx context.Context, query queries.ListPendingTasksQuery) ([]kernel.UUID, error)
}

type TaskRunnerConfig struct {
	Workers int
	// QueueSize bounds the number of queued optimisations. Enqueue blocks
	// while the queue is full.
	QueueSize int
	// BusyRetryDelay is how long a task waits before it is queued again
	// when another run holds the solver lock of its optimisation.
	BusyRetryDelay time.Duration
}

func DefaultTaskRunnerConfig() TaskRunnerConfig {
	return TaskRunnerConfig{
		Workers:        2,
		QueueSize:      64,
		BusyRetryDelay: 10 * time.Second,
	}
}

// TaskRunner is the in-process solver queue. A fixed pool of workers runs
// RunOptimisationCommand for every queued optimisation.
type TaskRunner struct {
	runner  optimisationRunner
	pending pendingTasks
	cfg     TaskRunnerConfig
	logger  *slog.Logger

	mu      sync.RWMutex
	queue   chan kernel.UUID
	ctx     context.Context
	cancel  context.CancelFunc
	workers *errgroup.Group
	retries sync.WaitGroup
}

func NewTaskRunner(runner optimisationRunner, pending pendingTasks, cfg TaskRunnerConfig, logger *slog.Logger) *TaskRunner {
	defaults := DefaultTaskRunnerConfig()
	if cfg.Workers <= 0 {
		cfg.Workers = defaults.Workers
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = defaults.QueueSize
	}
	if cfg.BusyRetryDelay <= 0 {
		cfg.BusyRetryDelay = defaults.BusyRetryDelay
	}
	return &TaskRunner{
		runner:  runner,
		pending: pending,
		cfg:     cfg,
		logger:  logger.With("component", "task_runner"),
	}
}

// Start launches the workers and queues tasks left pending by a previous
// process.
func (r *TaskRunner) Start(ctx context.Context) error {
	r.mu.Lock()
	if r.queue != nil {
		r.mu.Unlock()
		return errors.New("task runner already started")
	}
	r.ctx, r.cancel = context.WithCancel(context.WithoutCancel(ctx))
	r.queue = make(chan kernel.UUID, r.cfg.QueueSize)
	r.workers = &errgroup.Group{}
	for range r.cfg.Workers {
		r.workers.Go(func() error {
			r.work(r.ctx, r.queue)
			return nil
		})
	}
	r.mu.Unlock()

	r.logger.InfoContext(ctx, "Task runner started", "workers", r.cfg.Workers)

	ids, err := r.pending.Handle(ctx, queries.NewListPendingTasksQuery())
	if err != nil {
		return fmt.Errorf("list pending tasks: %w", err)
	}
	for _, id := range ids {
		if err = r.Enqueue(ctx, id); err != nil {
			return err
		}
	}
	if len(ids) > 0 {
		r.logger.InfoContext(ctx, "Resumed pending tasks", "count", len(ids))
	}
	return nil
}

// Enqueue implements ports.TaskQueue.
func (r *TaskRunner) Enqueue(ctx context.Context, optimisationID kernel.UUID) error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.queue == nil || r.ctx.Err() != nil {
		return ErrTaskRunnerStopped
	}

	select {
	case r.queue <- optimisationID:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-r.ctx.Done():
		return ErrTaskRunnerStopped
	}
}

// Stop cancels running solver invocations and waits for the workers.
func (r *TaskRunner) Stop() {
	r.mu.RLock()
	cancel, workers := r.cancel, r.workers
	r.mu.RUnlock()
	if cancel == nil {
		return
	}

	// Enqueue callers blocked on a full queue return once the context is done.
	cancel()
	_ = workers.Wait()
	r.retries.Wait()
	r.logger.InfoContext(context.Background(), "Task runner stopped")
}

func (r *TaskRunner) work(ctx context.Context, queue <-chan kernel.UUID) {
	for {
		select {
		case <-ctx.Done():
			return
		case id := <-queue:
			r.run(ctx, id)
		}
	}
}

func (r *TaskRunner) run(ctx context.Context, id kernel.UUID) {
	cmd, err := commands.NewRunOptimisationCommand(id)
	if err != nil {
		r.logger.ErrorContext(ctx, "Invalid optimisation id in queue", "error", err)
		return
	}

	started := time.Now()
	err = r.runner.Handle(ctx, cmd)
	switch {
	case err == nil:
		r.logger.InfoContext(ctx, "Optimisation task done",
			"optimisation_id", id.String(),
			"duration_ms", time.Since(started).Milliseconds())
	case errors.Is(err, commands.ErrOptimisationBusy):
		r.logger.InfoContext(ctx, "Optimisation is busy, retrying later", "optimisation_id", id.String())
		r.retryLater(ctx, id)
	case ctx.Err() != nil:
		r.logger.WarnContext(ctx, "Optimisation task interrupted", "optimisation_id", id.String())
	default:
		r.logger.ErrorContext(ctx, "Optimisation task failed", "optimisation_id", id.String(), "error", err)
	}
}

func (r *TaskRunner) retryLater(ctx context.Context, id kernel.UUID) {
	r.retries.Add(1)
	go func() {
		defer r.retries.Done()
		timer := time.NewTimer(r.cfg.BusyRetryDelay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
		case <-timer.C:
			if err := r.Enqueue(ctx, id); err != nil && !errors.Is(err, ErrTaskRunnerStopped) {
				r.logger.WarnContext(ctx, "Failed to requeue optimisation", "optimisation_id", id.String(), "error", err)
			}
		}
	}()
}
