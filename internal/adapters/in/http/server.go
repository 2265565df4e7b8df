package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"routeopt/internal/core/application/usecases/commands"
	"routeopt/internal/core/application/usecases/queries"
	"routeopt/internal/core/domain/model/kernel"
	"routeopt/internal/core/domain/model/optimisation"
	"routeopt/internal/core/ports"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

var _ ServerInterface = (*Server)(nil)

// CommandHandler is the shape of every command handler in usecases/commands.
type CommandHandler[C any] interface {
	Handle(ctx context.Context, cmd C) error
}

// QueryHandler is the shape of every query handler in usecases/queries.
type QueryHandler[Q, R any] interface {
	Handle(ctx context.Context, query Q) (*R, error)
}

// Handlers groups the use cases the server dispatches to.
type Handlers struct {
	CreateOptimisation  CommandHandler[commands.CreateOptimisationCommand]
	DeleteOptimisation  CommandHandler[commands.DeleteOptimisationCommand]
	RefreshOptimisation CommandHandler[commands.RefreshOptimisationCommand]
	MoveOrders          CommandHandler[commands.MoveOrdersCommand]
	ReorderSequence     CommandHandler[commands.ReorderSequenceCommand]
	NotifyCustomers     CommandHandler[commands.NotifyCustomersCommand]
	TrackJobStatus      CommandHandler[commands.TrackJobStatusCommand]

	GetOptimisation QueryHandler[queries.GetOptimisationQuery, queries.GetOptimisationQueryResponse]
	GetTaskStatus   QueryHandler[queries.GetTaskStatusQuery, queries.GetTaskStatusQueryResponse]
}

// Server implements the ServerInterface for handling HTTP requests.
// It coordinates between HTTP handlers and application use cases.
type Server struct {
	handlers Handlers
	clock    ports.Clock
	logger   *slog.Logger
}

func NewServer(handlers Handlers, clock ports.Clock, logger *slog.Logger) *Server {
	return &Server{
		handlers: handlers,
		clock:    clock,
		logger:   logger.With("component", "HTTPServer"),
	}
}

// CreateOptimisation handles POST /api/v1/optimisations.
func (s *Server) CreateOptimisation(ctx echo.Context, caller Caller) error {
	var req CreateOptimisationRequest
	if err := s.bind(ctx, &req); err != nil {
		return s.fail(ctx, err)
	}
	merchantID, initiator, err := caller.toDomain()
	if err != nil {
		return s.fail(ctx, err)
	}
	day, err := time.Parse(time.DateOnly, req.Day)
	if err != nil {
		return s.fail(ctx, invalid("day", err))
	}
	options, err := req.Options.toDomain()
	if err != nil {
		return s.fail(ctx, err)
	}

	id := kernel.NewUUID()
	cmd, err := commands.NewCreateOptimisationCommand(
		id, merchantID, initiator, day, optimisation.Type(req.Type), options)
	if err != nil {
		return s.fail(ctx, err)
	}
	if err = s.handlers.CreateOptimisation.Handle(ctx.Request().Context(), cmd); err != nil {
		return s.fail(ctx, err)
	}
	return s.respondWithOptimisation(ctx, http.StatusAccepted, merchantID, id)
}

// GetOptimisation handles GET /api/v1/optimisations/{id}.
func (s *Server) GetOptimisation(ctx echo.Context, id uuid.UUID, caller Caller) error {
	merchantID, err := caller.merchant()
	if err != nil {
		return s.fail(ctx, err)
	}
	optimisationID, err := toKernelID("id", id)
	if err != nil {
		return s.fail(ctx, err)
	}
	return s.respondWithOptimisation(ctx, http.StatusOK, merchantID, optimisationID)
}

// DeleteOptimisation handles DELETE /api/v1/optimisations/{id}.
func (s *Server) DeleteOptimisation(ctx echo.Context, id uuid.UUID, caller Caller, params DeleteOptimisationParams) error {
	merchantID, initiator, err := caller.toDomain()
	if err != nil {
		return s.fail(ctx, err)
	}
	optimisationID, err := toKernelID("id", id)
	if err != nil {
		return s.fail(ctx, err)
	}
	unassign := params.Unassign != nil && *params.Unassign

	cmd, err := commands.NewDeleteOptimisationCommand(optimisationID, merchantID, initiator, unassign)
	if err != nil {
		return s.fail(ctx, err)
	}
	if err = s.handlers.DeleteOptimisation.Handle(ctx.Request().Context(), cmd); err != nil {
		return s.fail(ctx, err)
	}
	return ctx.NoContent(http.StatusNoContent)
}

// GetOptimisationTask handles GET /api/v1/optimisations/{id}/task.
func (s *Server) GetOptimisationTask(ctx echo.Context, id uuid.UUID, caller Caller) error {
	merchantID, err := caller.merchant()
	if err != nil {
		return s.fail(ctx, err)
	}
	optimisationID, err := toKernelID("id", id)
	if err != nil {
		return s.fail(ctx, err)
	}
	query, err := queries.NewGetTaskStatusQuery(merchantID, optimisationID)
	if err != nil {
		return s.fail(ctx, err)
	}
	status, err := s.handlers.GetTaskStatus.Handle(ctx.Request().Context(), query)
	if err != nil {
		return s.fail(ctx, err)
	}
	return ctx.JSON(http.StatusOK, taskFromQuery(status))
}

// RefreshOptimisation handles POST /api/v1/optimisations/{id}/refresh.
func (s *Server) RefreshOptimisation(ctx echo.Context, id uuid.UUID, caller Caller) error {
	var req RefreshRequest
	if err := s.bind(ctx, &req); err != nil {
		return s.fail(ctx, err)
	}
	merchantID, initiator, err := caller.toDomain()
	if err != nil {
		return s.fail(ctx, err)
	}
	optimisationID, err := toKernelID("id", id)
	if err != nil {
		return s.fail(ctx, err)
	}
	var routeID *kernel.UUID
	if req.Route != nil {
		rid, ridErr := toKernelID("route", *req.Route)
		if ridErr != nil {
			return s.fail(ctx, ridErr)
		}
		routeID = &rid
	}
	jobIDs, err := req.jobIDs()
	if err != nil {
		return s.fail(ctx, err)
	}

	cmd, err := commands.NewRefreshOptimisationCommand(optimisationID, merchantID, initiator, routeID, jobIDs)
	if err != nil {
		return s.fail(ctx, err)
	}
	if err = s.handlers.RefreshOptimisation.Handle(ctx.Request().Context(), cmd); err != nil {
		return s.fail(ctx, err)
	}
	return s.respondWithOptimisation(ctx, http.StatusAccepted, merchantID, optimisationID)
}

// MoveOrders handles POST /api/v1/optimisations/{id}/move-orders.
func (s *Server) MoveOrders(ctx echo.Context, id uuid.UUID, caller Caller) error {
	var req MoveOrdersRequest
	if err := s.bind(ctx, &req); err != nil {
		return s.fail(ctx, err)
	}
	merchantID, initiator, err := caller.toDomain()
	if err != nil {
		return s.fail(ctx, err)
	}
	optimisationID, err := toKernelID("id", id)
	if err != nil {
		return s.fail(ctx, err)
	}
	routeID, err := toKernelID("route", req.Route)
	if err != nil {
		return s.fail(ctx, err)
	}
	targetDriverID, err := toKernelID("target_driver", req.TargetDriver)
	if err != nil {
		return s.fail(ctx, err)
	}
	pointIDs, err := toKernelIDs("points", req.Points)
	if err != nil {
		return s.fail(ctx, err)
	}

	cmd, err := commands.NewMoveOrdersCommand(
		optimisationID, merchantID, initiator, routeID, pointIDs, targetDriverID, req.Force)
	if err != nil {
		return s.fail(ctx, err)
	}
	if err = s.handlers.MoveOrders.Handle(ctx.Request().Context(), cmd); err != nil {
		return s.fail(ctx, err)
	}
	return s.respondWithOptimisation(ctx, http.StatusOK, merchantID, optimisationID)
}

// ReorderSequence handles POST /api/v1/optimisations/{id}/reorder-sequence.
func (s *Server) ReorderSequence(ctx echo.Context, id uuid.UUID, caller Caller) error {
	var req ReorderSequenceRequest
	if err := s.bind(ctx, &req); err != nil {
		return s.fail(ctx, err)
	}
	merchantID, initiator, err := caller.toDomain()
	if err != nil {
		return s.fail(ctx, err)
	}
	optimisationID, err := toKernelID("id", id)
	if err != nil {
		return s.fail(ctx, err)
	}
	routeID, err := toKernelID("route", req.Route)
	if err != nil {
		return s.fail(ctx, err)
	}
	sequence, err := toKernelIDs("sequence", req.Sequence)
	if err != nil {
		return s.fail(ctx, err)
	}

	cmd, err := commands.NewReorderSequenceCommand(
		optimisationID, merchantID, initiator, routeID, sequence, req.Force)
	if err != nil {
		return s.fail(ctx, err)
	}
	if err = s.handlers.ReorderSequence.Handle(ctx.Request().Context(), cmd); err != nil {
		return s.fail(ctx, err)
	}
	return s.respondWithOptimisation(ctx, http.StatusOK, merchantID, optimisationID)
}

// NotifyCustomers handles POST /api/v1/optimisations/{id}/notify-customers.
func (s *Server) NotifyCustomers(ctx echo.Context, id uuid.UUID, caller Caller) error {
	merchantID, err := caller.merchant()
	if err != nil {
		return s.fail(ctx, err)
	}
	optimisationID, err := toKernelID("id", id)
	if err != nil {
		return s.fail(ctx, err)
	}
	cmd, err := commands.NewNotifyCustomersCommand(optimisationID, merchantID)
	if err != nil {
		return s.fail(ctx, err)
	}
	if err = s.handlers.NotifyCustomers.Handle(ctx.Request().Context(), cmd); err != nil {
		return s.fail(ctx, err)
	}
	return s.respondWithOptimisation(ctx, http.StatusOK, merchantID, optimisationID)
}

// TrackJobStatus handles POST /api/v1/job-status-events.
func (s *Server) TrackJobStatus(ctx echo.Context) error {
	var req JobStatusEventsRequest
	if err := s.bind(ctx, &req); err != nil {
		return s.fail(ctx, err)
	}
	events, err := req.toDomain(s.clock.Now())
	if err != nil {
		return s.fail(ctx, err)
	}
	cmd, err := commands.NewTrackJobStatusCommand(events)
	if err != nil {
		return s.fail(ctx, err)
	}
	if err = s.handlers.TrackJobStatus.Handle(ctx.Request().Context(), cmd); err != nil {
		return s.fail(ctx, err)
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (s *Server) respondWithOptimisation(ctx echo.Context, status int, merchantID, id kernel.UUID) error {
	query, err := queries.NewGetOptimisationQuery(merchantID, id)
	if err != nil {
		return s.fail(ctx, err)
	}
	view, err := s.handlers.GetOptimisation.Handle(ctx.Request().Context(), query)
	if err != nil {
		return s.fail(ctx, err)
	}
	return ctx.JSON(status, optimisationFromQuery(view))
}

// bind decodes the body and runs the struct validator registered on echo.
func (s *Server) bind(ctx echo.Context, req any) error {
	if err := ctx.Bind(req); err != nil {
		return invalid("body", err)
	}
	return ctx.Validate(req)
}
