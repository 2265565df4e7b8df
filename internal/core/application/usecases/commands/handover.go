package commands

import (
	"context"
	"errors"

	"routeopt/internal/core/domain/model/fleet"
	"routeopt/internal/core/domain/model/kernel"
	"routeopt/internal/core/ports"
)

// jobHandover assigns jobs in the job service while a route transaction is
// open and remembers who held them before. revert gives the jobs back when
// the commit fails.
type jobHandover struct {
	jobs     ports.JobDirectory
	released []kernel.UUID
	returned map[kernel.UUID][]kernel.UUID
}

func newJobHandover(jobs ports.JobDirectory) *jobHandover {
	return &jobHandover{jobs: jobs, returned: map[kernel.UUID][]kernel.UUID{}}
}

// assign gives jobs to driverID. Jobs carry their assignment as it was
// when they were read.
func (h *jobHandover) assign(ctx context.Context, driverID kernel.UUID, jobs []fleet.Job) error {
	if len(jobs) == 0 {
		return nil
	}
	ids := make([]kernel.UUID, 0, len(jobs))
	for _, j := range jobs {
		ids = append(ids, j.ID)
	}
	if err := h.jobs.Assign(ctx, driverID, ids); err != nil {
		return err
	}
	for _, j := range jobs {
		switch {
		case j.DriverID == nil || j.Status == fleet.NotAssigned:
			h.released = append(h.released, j.ID)
		case !j.DriverID.IsEqual(driverID):
			h.returned[*j.DriverID] = append(h.returned[*j.DriverID], j.ID)
		}
	}
	return nil
}

// revert restores the previous assignment of every job assign changed.
func (h *jobHandover) revert(ctx context.Context) error {
	var errs []error
	if len(h.released) > 0 {
		_, err := h.jobs.Unassign(ctx, h.released)
		errs = append(errs, err)
	}
	for driverID, ids := range h.returned {
		errs = append(errs, h.jobs.Assign(ctx, driverID, ids))
	}
	h.released, h.returned = nil, map[kernel.UUID][]kernel.UUID{}
	return errors.Join(errs...)
}
