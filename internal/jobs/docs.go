// Package jobs provides the background work of the route optimisation service.
//
// # Available Jobs
//
//  1. TaskRunner - a fixed pool of workers that runs the solver for queued
//     optimisations. It implements ports.TaskQueue, so create and refresh
//     handlers hand their tasks straight to it.
//  2. StateTrackingJob - a github.com/robfig/cron/v3 job that periodically
//     re-derives route and optimisation states from job statuses.
//
// # Usage
//
// Jobs are managed through JobManager which provides a unified interface:
//
//	runner := jobs.NewTaskRunner(&runHandler, pendingHandler, jobs.DefaultTaskRunnerConfig(), logger)
//	tracker := jobs.NewStateTrackingJob(trackedHandler, &syncHandler, jobs.DefaultStateTrackingSchedule, logger)
//	jobManager := jobs.NewJobManager(runner, tracker)
//
//	if err := jobManager.StartAll(ctx); err != nil {
//		log.Fatal("Failed to start jobs:", err)
//	}
//	defer jobManager.StopAll()
//
// # Error Handling
//
//   - Tasks whose optimisation is locked by another run are queued again
//     after TaskRunnerConfig.BusyRetryDelay
//   - Solver failures are recorded on the task by the handler and only logged here
//   - Tasks still pending at startup are resumed in the order they were queued
//   - Failed job starts will stop any already running jobs
package jobs
