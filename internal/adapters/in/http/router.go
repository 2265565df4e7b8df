package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

// slowRequestThreshold is the duration above which requests are logged at WARN level.
const slowRequestThreshold = 500 * time.Millisecond

type RouterConfig struct {
	// ValidateRequests enables checking requests against api/openapi.yaml.
	ValidateRequests bool
	// Swagger serves the contract and the UI under /swagger/.
	Swagger bool
}

// NewRouter builds the echo instance with middleware, health check and all
// API routes of the server.
func NewRouter(ctx context.Context, server *Server, cfg RouterConfig, logger *slog.Logger) (*echo.Echo, error) {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = NewRequestValidator()
	e.HTTPErrorHandler = HTTPErrorHandler

	e.Use(middleware.Recover())
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:     true,
		LogURI:        true,
		LogStatus:     true,
		LogLatency:    true,
		LogError:      true,
		HandleError:   true,
		LogValuesFunc: requestLogger(logger.With("component", "HTTP")),
	}))

	e.GET("/health", func(c echo.Context) error {
		return c.String(http.StatusOK, "Healthy")
	})

	if cfg.ValidateRequests || cfg.Swagger {
		doc, err := LoadOpenAPI(ctx)
		if err != nil {
			return nil, err
		}
		if cfg.Swagger {
			if err = RegisterSwagger(e, doc); err != nil {
				return nil, err
			}
		}
		if cfg.ValidateRequests {
			validate, err := OpenAPIRequestValidator(doc)
			if err != nil {
				return nil, err
			}
			e.Use(validate)
		}
	}

	RegisterHandlers(e, server)
	return e, nil
}

func requestLogger(logger *slog.Logger) func(echo.Context, middleware.RequestLoggerValues) error {
	return func(c echo.Context, v middleware.RequestLoggerValues) error {
		attrs := []any{
			"method", v.Method,
			"uri", v.URI,
			"status", v.Status,
			"duration_ms", v.Latency.Milliseconds(),
		}
		ctx := c.Request().Context()
		switch {
		case v.Error != nil:
			attrs = append(attrs, "error", v.Error.Error())
			logger.WarnContext(ctx, "request failed", attrs...)
		case v.Latency > slowRequestThreshold:
			logger.WarnContext(ctx, "slow request", attrs...)
		default:
			logger.DebugContext(ctx, "request completed", attrs...)
		}
		return nil
	}
}
