package http

import (
	"errors"
	"net/http"

	"routeopt/internal/core/application/usecases/commands"
	"routeopt/internal/core/domain/services/solver"
	"routeopt/internal/pkg/errs"

	"github.com/labstack/echo/v4"
)

type ErrorDetails struct {
	CanForce []string `json:"can_force,omitempty"`
}

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Detail string        `json:"detail"`
	Errors *ErrorDetails `json:"errors,omitempty"`
}

func invalid(name string, err error) error {
	return errs.NewValueIsInvalidErrorWithCause(name, err)
}

// fail renders err. Conflicts keep their reasons so the client can offer to
// repeat the request with force enabled.
func (s *Server) fail(ctx echo.Context, err error) error {
	var conflict *errs.ConflictError
	if errors.As(err, &conflict) {
		resp := ErrorResponse{Detail: conflict.Detail}
		if conflict.Forcible {
			resp.Errors = &ErrorDetails{CanForce: conflict.Reasons}
		}
		return ctx.JSON(http.StatusBadRequest, resp)
	}

	status := statusOf(err)
	if status == http.StatusInternalServerError {
		s.logger.ErrorContext(ctx.Request().Context(), "request failed",
			"method", ctx.Request().Method,
			"path", ctx.Path(),
			"error", err)
		return ctx.JSON(status, ErrorResponse{Detail: http.StatusText(status)})
	}
	return ctx.JSON(status, ErrorResponse{Detail: err.Error()})
}

func statusOf(err error) int {
	switch {
	case errors.Is(err, errs.ErrObjectNotFound):
		return http.StatusNotFound
	case errors.Is(err, commands.ErrOptimisationBusy),
		errors.Is(err, commands.ErrOptimisationIsNotManageable):
		return http.StatusConflict
	case errors.Is(err, commands.ErrNothingToRefresh),
		errors.Is(err, solver.ErrInfeasible):
		return http.StatusUnprocessableEntity
	case errors.Is(err, errs.ErrValueIsInvalid),
		errors.Is(err, errs.ErrValueIsRequired),
		errors.Is(err, errs.ErrValueIsOutOfRange),
		errors.Is(err, errs.ErrVersionIsInvalid):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// HTTPErrorHandler renders errors raised outside the Server, such as binding
// and routing failures, with the same body shape.
func HTTPErrorHandler(err error, ctx echo.Context) {
	if ctx.Response().Committed {
		return
	}
	status := http.StatusInternalServerError
	detail := http.StatusText(status)
	var he *echo.HTTPError
	if errors.As(err, &he) {
		status = he.Code
		if msg, ok := he.Message.(string); ok {
			detail = msg
		} else {
			detail = http.StatusText(status)
		}
	}

	if ctx.Request().Method == http.MethodHead {
		err = ctx.NoContent(status)
	} else {
		err = ctx.JSON(status, ErrorResponse{Detail: detail})
	}
	if err != nil {
		ctx.Logger().Error(err)
	}
}
