package http

import (
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/oapi-codegen/runtime"
)

// Caller identifies the tenant and member from the gateway headers.
type Caller struct {
	MerchantID uuid.UUID
	MemberID   string
	MemberRole string
	MemberName string
}

type DeleteOptimisationParams struct {
	Unassign *bool
}

// ServerInterface mirrors the operations of api/openapi.yaml.
type ServerInterface interface {
	// (POST /api/v1/optimisations)
	CreateOptimisation(ctx echo.Context, caller Caller) error
	// (GET /api/v1/optimisations/{id})
	GetOptimisation(ctx echo.Context, id uuid.UUID, caller Caller) error
	// (DELETE /api/v1/optimisations/{id})
	DeleteOptimisation(ctx echo.Context, id uuid.UUID, caller Caller, params DeleteOptimisationParams) error
	// (GET /api/v1/optimisations/{id}/task)
	GetOptimisationTask(ctx echo.Context, id uuid.UUID, caller Caller) error
	// (POST /api/v1/optimisations/{id}/refresh)
	RefreshOptimisation(ctx echo.Context, id uuid.UUID, caller Caller) error
	// (POST /api/v1/optimisations/{id}/move-orders)
	MoveOrders(ctx echo.Context, id uuid.UUID, caller Caller) error
	// (POST /api/v1/optimisations/{id}/reorder-sequence)
	ReorderSequence(ctx echo.Context, id uuid.UUID, caller Caller) error
	// (POST /api/v1/optimisations/{id}/notify-customers)
	NotifyCustomers(ctx echo.Context, id uuid.UUID, caller Caller) error
	// (POST /api/v1/job-status-events)
	TrackJobStatus(ctx echo.Context) error
}

// ServerInterfaceWrapper converts echo contexts to parameters.
type ServerInterfaceWrapper struct {
	Handler ServerInterface
}

func (w *ServerInterfaceWrapper) CreateOptimisation(ctx echo.Context) error {
	caller, err := bindCaller(ctx, true)
	if err != nil {
		return err
	}
	return w.Handler.CreateOptimisation(ctx, caller)
}

func (w *ServerInterfaceWrapper) GetOptimisation(ctx echo.Context) error {
	id, caller, err := bindPathAndCaller(ctx, false)
	if err != nil {
		return err
	}
	return w.Handler.GetOptimisation(ctx, id, caller)
}

func (w *ServerInterfaceWrapper) DeleteOptimisation(ctx echo.Context) error {
	id, caller, err := bindPathAndCaller(ctx, true)
	if err != nil {
		return err
	}
	var params DeleteOptimisationParams
	err = runtime.BindQueryParameter("form", true, false, "unassign", ctx.QueryParams(), &params.Unassign)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("Invalid format for parameter unassign: %s", err))
	}
	return w.Handler.DeleteOptimisation(ctx, id, caller, params)
}

func (w *ServerInterfaceWrapper) GetOptimisationTask(ctx echo.Context) error {
	id, caller, err := bindPathAndCaller(ctx, false)
	if err != nil {
		return err
	}
	return w.Handler.GetOptimisationTask(ctx, id, caller)
}

func (w *ServerInterfaceWrapper) RefreshOptimisation(ctx echo.Context) error {
	id, caller, err := bindPathAndCaller(ctx, true)
	if err != nil {
		return err
	}
	return w.Handler.RefreshOptimisation(ctx, id, caller)
}

func (w *ServerInterfaceWrapper) MoveOrders(ctx echo.Context) error {
	id, caller, err := bindPathAndCaller(ctx, true)
	if err != nil {
		return err
	}
	return w.Handler.MoveOrders(ctx, id, caller)
}

func (w *ServerInterfaceWrapper) ReorderSequence(ctx echo.Context) error {
	id, caller, err := bindPathAndCaller(ctx, true)
	if err != nil {
		return err
	}
	return w.Handler.ReorderSequence(ctx, id, caller)
}

func (w *ServerInterfaceWrapper) NotifyCustomers(ctx echo.Context) error {
	id, caller, err := bindPathAndCaller(ctx, false)
	if err != nil {
		return err
	}
	return w.Handler.NotifyCustomers(ctx, id, caller)
}

func (w *ServerInterfaceWrapper) TrackJobStatus(ctx echo.Context) error {
	return w.Handler.TrackJobStatus(ctx)
}

// EchoRouter is satisfied by *echo.Echo and *echo.Group.
type EchoRouter interface {
	GET(path string, h echo.HandlerFunc, m ...echo.MiddlewareFunc) *echo.Route
	POST(path string, h echo.HandlerFunc, m ...echo.MiddlewareFunc) *echo.Route
	DELETE(path string, h echo.HandlerFunc, m ...echo.MiddlewareFunc) *echo.Route
}

// RegisterHandlers adds every operation to the router.
func RegisterHandlers(router EchoRouter, si ServerInterface) {
	w := &ServerInterfaceWrapper{Handler: si}

	router.POST("/api/v1/optimisations", w.CreateOptimisation)
	router.GET("/api/v1/optimisations/:id", w.GetOptimisation)
	router.DELETE("/api/v1/optimisations/:id", w.DeleteOptimisation)
	router.GET("/api/v1/optimisations/:id/task", w.GetOptimisationTask)
	router.POST("/api/v1/optimisations/:id/refresh", w.RefreshOptimisation)
	router.POST("/api/v1/optimisations/:id/move-orders", w.MoveOrders)
	router.POST("/api/v1/optimisations/:id/reorder-sequence", w.ReorderSequence)
	router.POST("/api/v1/optimisations/:id/notify-customers", w.NotifyCustomers)
	router.POST("/api/v1/job-status-events", w.TrackJobStatus)
}

func bindPathAndCaller(ctx echo.Context, withMember bool) (uuid.UUID, Caller, error) {
	var id uuid.UUID
	err := runtime.BindStyledParameterWithOptions("simple", "id", ctx.Param("id"), &id,
		runtime.BindStyledParameterOptions{ParamLocation: runtime.ParamLocationPath, Explode: false, Required: true})
	if err != nil {
		return uuid.Nil, Caller{}, echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("Invalid format for parameter id: %s", err))
	}
	caller, err := bindCaller(ctx, withMember)
	return id, caller, err
}

// bindCaller reads the gateway headers. Member headers are required only by
// operations that are logged with their initiator.
func bindCaller(ctx echo.Context, withMember bool) (Caller, error) {
	var caller Caller
	headers := ctx.Request().Header

	merchant := headers.Get("X-Merchant-ID")
	if merchant == "" {
		return Caller{}, echo.NewHTTPError(http.StatusBadRequest, "Header parameter X-Merchant-ID is required, but not found")
	}
	err := runtime.BindStyledParameterWithOptions("simple", "X-Merchant-ID", merchant, &caller.MerchantID,
		runtime.BindStyledParameterOptions{ParamLocation: runtime.ParamLocationHeader, Explode: false, Required: true})
	if err != nil {
		return Caller{}, echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("Invalid format for parameter X-Merchant-ID: %s", err))
	}

	caller.MemberID = headers.Get("X-Member-ID")
	caller.MemberRole = headers.Get("X-Member-Role")
	caller.MemberName = headers.Get("X-Member-Name")
	if withMember && (caller.MemberID == "" || caller.MemberRole == "") {
		return Caller{}, echo.NewHTTPError(http.StatusBadRequest, "Header parameters X-Member-ID and X-Member-Role are required")
	}
	return caller, nil
}
