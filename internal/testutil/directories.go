package testutil

import (
	"context"
	"slices"
	"sync"
	"time"

	"routeopt/internal/core/domain/model/fleet"
	"routeopt/internal/core/domain/model/kernel"
	"routeopt/internal/core/ports"
	"routeopt/internal/pkg/errs"
)

// FleetDirectory serves a single merchant from memory. Drivers have the same
// schedule on every day.
type FleetDirectory struct {
	Merchant  fleet.Merchant
	Drivers   []fleet.Driver
	Hubs      []fleet.Hub
	Locations []fleet.Location
}

func (d *FleetDirectory) GetMerchant(_ context.Context, merchantID kernel.UUID) (fleet.Merchant, error) {
	if !d.Merchant.ID.IsEqual(merchantID) {
		return fleet.Merchant{}, errs.NewObjectNotFoundError("merchant", merchantID)
	}
	return d.Merchant, nil
}

func (d *FleetDirectory) GetDrivers(_ context.Context, merchantID kernel.UUID, ids []kernel.UUID, _ time.Time) ([]fleet.Driver, error) {
	if !d.Merchant.ID.IsEqual(merchantID) {
		return nil, nil
	}
	var out []fleet.Driver
	for _, dr := range d.Drivers {
		if slices.Contains(ids, dr.ID) {
			out = append(out, dr)
		}
	}
	return out, nil
}

func (d *FleetDirectory) GetHubs(_ context.Context, merchantID kernel.UUID, ids []kernel.UUID) ([]fleet.Hub, error) {
	if !d.Merchant.ID.IsEqual(merchantID) {
		return nil, nil
	}
	var out []fleet.Hub
	for _, h := range d.Hubs {
		if slices.Contains(ids, h.ID) {
			out = append(out, h)
		}
	}
	return out, nil
}

func (d *FleetDirectory) GetLocations(_ context.Context, merchantID kernel.UUID, ids []kernel.UUID) ([]fleet.Location, error) {
	if !d.Merchant.ID.IsEqual(merchantID) {
		return nil, nil
	}
	var out []fleet.Location
	for _, l := range d.Locations {
		if slices.Contains(ids, l.ID) {
			out = append(out, l)
		}
	}
	return out, nil
}

// JobDirectory keeps jobs of one merchant in memory and applies assignment
// changes to them.
type JobDirectory struct {
	mu    sync.Mutex
	jobs  map[kernel.UUID]fleet.Job
	order []kernel.UUID
}

func NewJobDirectory(jobs ...fleet.Job) *JobDirectory {
	d := &JobDirectory{jobs: make(map[kernel.UUID]fleet.Job, len(jobs))}
	for _, j := range jobs {
		d.Put(j)
	}
	return d
}

// Put adds or replaces a job.
func (d *JobDirectory) Put(j fleet.Job) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.jobs[j.ID]; !ok {
		d.order = append(d.order, j.ID)
	}
	d.jobs[j.ID] = j
}

// SetStatus changes the status of a stored job.
func (d *JobDirectory) SetStatus(id kernel.UUID, status fleet.OrderStatus) {
	d.mu.Lock()
	defer d.mu.Unlock()
	j := d.jobs[id]
	j.Status = status
	d.jobs[id] = j
}

func (d *JobDirectory) Job(id kernel.UUID) fleet.Job {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.jobs[id]
}

func (d *JobDirectory) GetJobs(_ context.Context, _ kernel.UUID, ids []kernel.UUID) ([]fleet.Job, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	var out []fleet.Job
	for _, id := range ids {
		if j, ok := d.jobs[id]; ok {
			out = append(out, j)
		}
	}
	return out, nil
}

func (d *JobDirectory) FindEligibleJobs(_ context.Context, _ kernel.UUID, _ time.Time, driverID *kernel.UUID) ([]fleet.Job, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	var out []fleet.Job
	for _, id := range d.order {
		j := d.jobs[id]
		switch {
		case j.Status == fleet.NotAssigned:
			out = append(out, j)
		case driverID != nil && j.Status == fleet.Assigned && j.IsAssignedTo(*driverID):
			out = append(out, j)
		}
	}
	return out, nil
}

func (d *JobDirectory) Assign(_ context.Context, driverID kernel.UUID, ids []kernel.UUID) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, id := range ids {
		j, ok := d.jobs[id]
		if !ok || (j.Status != fleet.NotAssigned && j.Status != fleet.Assigned) {
			return ports.ErrJobNotAssignable
		}
	}
	for _, id := range ids {
		j := d.jobs[id]
		driver := driverID
		j.DriverID = &driver
		j.Status = fleet.Assigned
		d.jobs[id] = j
	}
	return nil
}

func (d *JobDirectory) Unassign(_ context.Context, ids []kernel.UUID) ([]kernel.UUID, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	var changed []kernel.UUID
	for _, id := range ids {
		j, ok := d.jobs[id]
		if !ok || j.Status != fleet.Assigned {
			continue
		}
		j.DriverID = nil
		j.Status = fleet.NotAssigned
		d.jobs[id] = j
		changed = append(changed, id)
	}
	return changed, nil
}
