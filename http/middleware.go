package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/fernwick/trapline"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

const (
	// TechnicianHeader carries the acting technician's ID, set by the edge
	// gateway after authentication.
	TechnicianHeader = "X-Technician-ID"

	// Default timeout for database operations.
	DefaultTimeout = 5 * time.Second

	// SaveTimeout is the longer budget for record saves, which may include a
	// photo upload to remote storage.
	SaveTimeout = 30 * time.Second
)

// registerMiddleware sets up all middleware for the server.
func (s *Server) registerMiddleware() {
	// Recovery middleware
	s.echo.Use(middleware.Recover())

	// Request ID middleware
	s.echo.Use(middleware.RequestID())

	// Logger middleware with request ID
	s.echo.Use(s.requestLoggerMiddleware())

	// CORS middleware (configure as needed)
	s.echo.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, TechnicianHeader},
	}))

	// Custom error handler
	s.echo.HTTPErrorHandler = s.httpErrorHandler
}

// requestLoggerMiddleware creates a middleware that logs requests with context.
func (s *Server) requestLoggerMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			requestID := c.Response().Header().Get(echo.HeaderXRequestID)

			// Create request-scoped logger
			logger := s.logger.With(
				slog.String("request_id", requestID),
				slog.String("method", c.Request().Method),
				slog.String("path", c.Path()),
			)
			c.Set("logger", logger)

			ctx := trapline.NewContextWithRequestID(c.Request().Context(), requestID)
			c.SetRequest(c.Request().WithContext(ctx))

			err := next(c)

			// Log request completion
			duration := time.Since(start)
			status := c.Response().Status

			logAttrs := []any{
				slog.Int("status", status),
				slog.Duration("duration", duration),
			}

			if err != nil {
				logAttrs = append(logAttrs, slog.String("error", err.Error()))
				logger.Error("request failed", logAttrs...)
			} else if status >= 500 {
				logger.Error("request completed with server error", logAttrs...)
			} else if status >= 400 {
				logger.Warn("request completed with client error", logAttrs...)
			} else {
				logger.Info("request completed", logAttrs...)
			}

			return err
		}
	}
}

// httpErrorHandler handles errors and returns appropriate responses.
func (s *Server) httpErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	// Check if it's an Echo HTTP error
	if he, ok := err.(*echo.HTTPError); ok {
		msg := he.Message
		if m, ok := msg.(string); ok {
			_ = HandleError(c, s.logger, echo.NewHTTPError(he.Code, m))
		} else {
			_ = c.JSON(he.Code, map[string]any{"error": msg})
		}
		return
	}

	// Handle domain errors
	_ = HandleError(c, s.logger, err)
}

// TechnicianMiddleware extracts the technician identity from the request
// header and attaches it to the context. If required is true, a missing or
// malformed header yields 401.
func (s *Server) TechnicianMiddleware(required bool) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			logger := s.getRequestLogger(c)

			header := c.Request().Header.Get(TechnicianHeader)
			if header == "" {
				if required {
					logger.Debug("technician identity required but header missing")
					return trapline.Unauthorized("Technician identity required")
				}
				return next(c)
			}

			technicianID, err := uuid.Parse(header)
			if err != nil {
				if required {
					return trapline.Unauthorized("Invalid technician identity")
				}
				return next(c)
			}

			// Attach technician to context
			ctx := trapline.NewContextWithTechnician(c.Request().Context(), technicianID)
			c.SetRequest(c.Request().WithContext(ctx))
			c.Set("technician_id", technicianID)

			return next(c)
		}
	}
}

// RequireTechnician is a middleware that requires a technician identity.
func (s *Server) RequireTechnician() echo.MiddlewareFunc {
	return s.TechnicianMiddleware(true)
}

// OptionalTechnician checks for a technician identity but doesn't require it.
func (s *Server) OptionalTechnician() echo.MiddlewareFunc {
	return s.TechnicianMiddleware(false)
}

// getRequestLogger retrieves the request-scoped logger from context.
func (s *Server) getRequestLogger(c echo.Context) *slog.Logger {
	if logger, ok := c.Get("logger").(*slog.Logger); ok {
		return logger
	}
	return s.logger
}
