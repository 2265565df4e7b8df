package http

import (
	"errors"
	"time"

	"routeopt/internal/core/application/usecases/queries"
	"routeopt/internal/core/domain/model/fleet"
	"routeopt/internal/core/domain/model/kernel"
	"routeopt/internal/core/domain/model/optimisation"
	"routeopt/internal/core/ports"
	"routeopt/internal/pkg/errs"

	"github.com/google/uuid"
	"github.com/samber/lo"
)

type WorkingHoursRequest struct {
	Lower string `json:"lower" validate:"required"`
	Upper string `json:"upper" validate:"required"`
}

// OptionsRequest accepts both the jobs/drivers and the older orders/members
// names of the id lists.
type OptionsRequest struct {
	StartPlace         string              `json:"start_place" validate:"required,oneof=default_hub hub location last_job default_point"`
	StartHub           *uuid.UUID          `json:"start_hub"`
	StartLocation      *uuid.UUID          `json:"start_location"`
	EndPlace           string              `json:"end_place" validate:"required,oneof=default_hub hub location last_job default_point"`
	EndHub             *uuid.UUID          `json:"end_hub"`
	EndLocation        *uuid.UUID          `json:"end_location"`
	WorkingHours       WorkingHoursRequest `json:"working_hours" validate:"required"`
	UseVehicleCapacity bool                `json:"use_vehicle_capacity"`
	ReOptimiseAssigned bool                `json:"re_optimise_assigned"`
	ServiceTime        int                 `json:"service_time" validate:"gte=0"`
	PickupServiceTime  int                 `json:"pickup_service_time" validate:"gte=0"`
	JobsIDs            []uuid.UUID         `json:"jobs_ids"`
	OrderIDs           []uuid.UUID         `json:"order_ids"`
	DriversIDs         []uuid.UUID         `json:"drivers_ids"`
	MemberIDs          []uuid.UUID         `json:"member_ids"`
}

type CreateOptimisationRequest struct {
	Type    string         `json:"type" validate:"required,oneof=solo advanced"`
	Day     string         `json:"day" validate:"required"`
	Options OptionsRequest `json:"options" validate:"required"`
}

type RefreshRequest struct {
	Route   *uuid.UUID             `json:"route"`
	Options *RefreshOptionsRequest `json:"options"`
}

// RefreshOptionsRequest narrows a refresh to the listed jobs.
type RefreshOptionsRequest struct {
	JobsIDs  []uuid.UUID `json:"jobs_ids"`
	OrderIDs []uuid.UUID `json:"order_ids"`
}

type MoveOrdersRequest struct {
	Route        uuid.UUID   `json:"route" validate:"required"`
	Points       []uuid.UUID `json:"points" validate:"required,min=1"`
	TargetDriver uuid.UUID   `json:"target_driver" validate:"required"`
	Force        bool        `json:"force"`
}

type ReorderSequenceRequest struct {
	Route    uuid.UUID   `json:"route" validate:"required"`
	Sequence []uuid.UUID `json:"sequence" validate:"required,min=1"`
	Force    bool        `json:"force"`
}

type JobStatusEventRequest struct {
	JobID     uuid.UUID  `json:"job_id" validate:"required"`
	Status    string     `json:"status" validate:"required"`
	ChangedAt *time.Time `json:"changed_at"`
	Deleted   bool       `json:"deleted"`
}

type JobStatusEventsRequest struct {
	Events []JobStatusEventRequest `json:"events" validate:"required,min=1,dive"`
}

func (r OptionsRequest) toDomain() (optimisation.Options, error) {
	lower, lowerErr := optimisation.ParseClockTime(r.WorkingHours.Lower)
	upper, upperErr := optimisation.ParseClockTime(r.WorkingHours.Upper)
	if err := errors.Join(lowerErr, upperErr); err != nil {
		return optimisation.Options{}, err
	}

	jobs := r.JobsIDs
	if len(jobs) == 0 {
		jobs = r.OrderIDs
	}
	drivers := r.DriversIDs
	if len(drivers) == 0 {
		drivers = r.MemberIDs
	}
	jobIDs, jobsErr := toKernelIDs("jobs_ids", jobs)
	driverIDs, driversErr := toKernelIDs("drivers_ids", drivers)
	startHub, startHubErr := toOptionalKernelID("start_hub", r.StartHub)
	startLocation, startLocationErr := toOptionalKernelID("start_location", r.StartLocation)
	endHub, endHubErr := toOptionalKernelID("end_hub", r.EndHub)
	endLocation, endLocationErr := toOptionalKernelID("end_location", r.EndLocation)
	if err := errors.Join(jobsErr, driversErr, startHubErr, startLocationErr, endHubErr, endLocationErr); err != nil {
		return optimisation.Options{}, err
	}

	return optimisation.Options{
		Version:            optimisation.OptionsVersion,
		JobIDs:             jobIDs,
		DriverIDs:          driverIDs,
		StartPlace:         optimisation.Placement(r.StartPlace),
		StartHubID:         startHub,
		StartLocationID:    startLocation,
		EndPlace:           optimisation.Placement(r.EndPlace),
		EndHubID:           endHub,
		EndLocationID:      endLocation,
		WorkingHours:       optimisation.WorkingHours{Lower: lower, Upper: upper},
		UseVehicleCapacity: r.UseVehicleCapacity,
		ReOptimiseAssigned: r.ReOptimiseAssigned,
		ServiceTimeMinutes: r.ServiceTime,
		PickupServiceTime:  r.PickupServiceTime,
	}, nil
}

func (r RefreshRequest) jobIDs() ([]kernel.UUID, error) {
	if r.Options == nil {
		return nil, nil
	}
	jobs := r.Options.JobsIDs
	if len(jobs) == 0 {
		jobs = r.Options.OrderIDs
	}
	return toKernelIDs("jobs_ids", jobs)
}

// toDomain stamps events without a time with now.
func (r JobStatusEventsRequest) toDomain(now time.Time) ([]ports.JobStatusEvent, error) {
	events := make([]ports.JobStatusEvent, 0, len(r.Events))
	for _, e := range r.Events {
		jobID, err := toKernelID("job_id", e.JobID)
		if err != nil {
			return nil, err
		}
		status, err := fleet.ParseOrderStatus(e.Status)
		if err != nil {
			return nil, err
		}
		at := now
		if e.ChangedAt != nil {
			at = *e.ChangedAt
		}
		events = append(events, ports.JobStatusEvent{JobID: jobID, Status: status, ChangedAt: at, Deleted: e.Deleted})
	}
	return events, nil
}

func (c Caller) merchant() (kernel.UUID, error) {
	return toKernelID("X-Merchant-ID", c.MerchantID)
}

func (c Caller) toDomain() (kernel.UUID, optimisation.Initiator, error) {
	merchantID, err := c.merchant()
	if err != nil {
		return kernel.UUID{}, optimisation.Initiator{}, err
	}
	initiator := optimisation.Initiator{
		MemberID: c.MemberID,
		Role:     optimisation.Role(c.MemberRole),
		Name:     c.MemberName,
	}
	if err = initiator.Validate(); err != nil {
		return kernel.UUID{}, optimisation.Initiator{}, err
	}
	return merchantID, initiator, nil
}

func toKernelID(name string, id uuid.UUID) (kernel.UUID, error) {
	out, err := kernel.UUIDFromBytes(id[:])
	if err != nil {
		return kernel.UUID{}, errs.NewValueIsRequiredErrorWithCause(name, err)
	}
	return out, nil
}

func toOptionalKernelID(name string, id *uuid.UUID) (*kernel.UUID, error) {
	if id == nil {
		return nil, nil
	}
	out, err := toKernelID(name, *id)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func toKernelIDs(name string, ids []uuid.UUID) ([]kernel.UUID, error) {
	out := make([]kernel.UUID, 0, len(ids))
	for _, id := range ids {
		kid, err := toKernelID(name, id)
		if err != nil {
			return nil, err
		}
		out = append(out, kid)
	}
	return out, nil
}

type LocationResponse struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

type PointResponse struct {
	ID                       kernel.UUID       `json:"id"`
	Number                   int               `json:"number"`
	PointKind                string            `json:"point_kind"`
	RefKind                  string            `json:"ref_kind"`
	PointObjectID            *kernel.UUID      `json:"point_object_id"`
	ObjectsIDs               []kernel.UUID     `json:"objects_ids,omitempty"`
	Title                    string            `json:"title"`
	Location                 *LocationResponse `json:"location"`
	ServiceTime              int               `json:"service_time"`
	StartTime                time.Time         `json:"start_time"`
	EndTime                  time.Time         `json:"end_time"`
	StartTimeKnownToCustomer *time.Time        `json:"start_time_known_to_customer"`
	UtilizedCapacity         float64           `json:"utilized_capacity"`
}

type RouteResponse struct {
	ID              kernel.UUID     `json:"id"`
	DriverID        kernel.UUID     `json:"driver_id"`
	Driver          string          `json:"driver"`
	State           string          `json:"state"`
	OrdersCount     int             `json:"orders_count"`
	DrivingDistance float64         `json:"driving_distance"`
	DrivingTime     int             `json:"driving_time"`
	StartTime       time.Time       `json:"start_time"`
	EndTime         time.Time       `json:"end_time"`
	Points          []PointResponse `json:"points"`
}

type LogMessage struct {
	Text string `json:"text"`
}

type LogResponse struct {
	Messages []LogMessage `json:"messages"`
}

type OptimisationResponse struct {
	ID                kernel.UUID            `json:"id"`
	Day               string                 `json:"day"`
	Timezone          string                 `json:"timezone"`
	Type              string                 `json:"type"`
	State             string                 `json:"state"`
	CustomersNotified bool                   `json:"customers_notified"`
	CreatedAt         time.Time              `json:"created_at"`
	Initiator         optimisation.Initiator `json:"initiator"`
	Options           optimisation.Options   `json:"options"`
	Log               LogResponse            `json:"log"`
	Routes            []RouteResponse        `json:"routes"`
}

type TaskResponse struct {
	ID                kernel.UUID `json:"id"`
	OptimisationID    kernel.UUID `json:"optimisation_id"`
	Kind              string      `json:"kind"`
	Status            string      `json:"status"`
	Error             string      `json:"error,omitempty"`
	OptimisationState string      `json:"optimisation_state"`
	CreatedAt         time.Time   `json:"created_at"`
	StartedAt         *time.Time  `json:"started_at"`
	FinishedAt        *time.Time  `json:"finished_at"`
}

func optimisationFromQuery(v *queries.GetOptimisationQueryResponse) OptimisationResponse {
	return OptimisationResponse{
		ID:                v.ID,
		Day:               v.Day,
		Timezone:          v.Timezone,
		Type:              string(v.Type),
		State:             string(v.State),
		CustomersNotified: v.CustomersNotified,
		CreatedAt:         v.CreatedAt,
		Initiator:         v.Initiator,
		Options:           v.Options,
		Log: LogResponse{
			Messages: lo.Map(v.Log, func(text string, _ int) LogMessage { return LogMessage{Text: text} }),
		},
		Routes: lo.Map(v.Routes, func(r queries.RouteView, _ int) RouteResponse { return routeFromQuery(r) }),
	}
}

func routeFromQuery(r queries.RouteView) RouteResponse {
	return RouteResponse{
		ID:              r.ID,
		DriverID:        r.DriverID,
		Driver:          r.DriverName,
		State:           r.State,
		OrdersCount:     r.OrdersCount,
		DrivingDistance: r.DrivingDistance,
		DrivingTime:     int(r.DrivingTime / time.Second),
		StartTime:       r.StartTime,
		EndTime:         r.EndTime,
		Points:          lo.Map(r.Points, func(p queries.PointView, _ int) PointResponse { return pointFromQuery(p) }),
	}
}

func pointFromQuery(p queries.PointView) PointResponse {
	out := PointResponse{
		ID:                       p.ID,
		Number:                   p.Number,
		PointKind:                p.Kind,
		RefKind:                  p.RefKind,
		PointObjectID:            p.ObjectID,
		ObjectsIDs:               p.ObjectIDs,
		Title:                    p.Title,
		ServiceTime:              int(p.ServiceTime / time.Second),
		StartTime:                p.StartTime,
		EndTime:                  p.EndTime,
		StartTimeKnownToCustomer: p.StartTimeKnownToCustomer,
		UtilizedCapacity:         p.UtilizedCapacity,
	}
	if p.Lat != nil && p.Lng != nil {
		out.Location = &LocationResponse{Lat: *p.Lat, Lng: *p.Lng}
	}
	return out
}

func taskFromQuery(t *queries.GetTaskStatusQueryResponse) TaskResponse {
	return TaskResponse{
		ID:                t.ID,
		OptimisationID:    t.OptimisationID,
		Kind:              t.Kind,
		Status:            t.Status,
		Error:             t.Error,
		OptimisationState: t.OptimisationState,
		CreatedAt:         t.CreatedAt,
		StartedAt:         t.StartedAt,
		FinishedAt:        t.FinishedAt,
	}
}
