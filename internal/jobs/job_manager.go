package jobs

import (
	"context"
	"fmt"
)

// JobManager coordinates all background work of the application.
// Provides a unified interface to start and stop the solver workers and the
// scheduled jobs.
type JobManager struct {
	taskRunner       *TaskRunner
	stateTrackingJob *StateTrackingJob
}

// NewJobManager takes already built jobs; the state tracking job may be nil
// when periodic sync is disabled.
func NewJobManager(taskRunner *TaskRunner, stateTrackingJob *StateTrackingJob) *JobManager {
	return &JobManager{
		taskRunner:       taskRunner,
		stateTrackingJob: stateTrackingJob,
	}
}

// StartAll starts the task runner first so that resumed tasks are picked up
// before new requests arrive.
func (jm *JobManager) StartAll(ctx context.Context) error {
	if err := jm.taskRunner.Start(ctx); err != nil {
		jm.taskRunner.Stop()
		return fmt.Errorf("failed to start task runner: %w", err)
	}

	if jm.stateTrackingJob != nil {
		if err := jm.stateTrackingJob.Start(); err != nil {
			// Stop already started jobs if this one fails
			jm.taskRunner.Stop()
			return fmt.Errorf("failed to start state tracking job: %w", err)
		}
	}

	return nil
}

// StopAll stops all jobs gracefully.
func (jm *JobManager) StopAll() {
	if jm.stateTrackingJob != nil {
		jm.stateTrackingJob.Stop()
	}
	jm.taskRunner.Stop()
}
