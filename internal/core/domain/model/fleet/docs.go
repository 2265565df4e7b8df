// Package fleet describes the collaborator records the optimisation consumes
// read-only: merchants, drivers with their day schedules, hubs, ad-hoc
// locations, jobs with pickups, and concatenated jobs.
//
// These records are owned by other services. They are loaded through
// ports.FleetDirectory and ports.JobDirectory and are never persisted by the
// optimisation itself, except for job status transitions requested through
// JobDirectory.
package fleet
