// Package http provides the HTTP transport over the visit engine and domain
// services, built on Echo.
package http

import (
	"context"
	"log/slog"
	"net"

	"github.com/fernwick/trapline"
	"github.com/fernwick/trapline/internal/validation"
	"github.com/fernwick/trapline/visit"
	"github.com/labstack/echo/v4"
)

// Server represents the HTTP server with all its dependencies.
type Server struct {
	echo   *echo.Echo
	ln     net.Listener
	logger *slog.Logger

	// Configuration
	Addr   string
	Domain string

	// Visit engines, one per active session
	visits *visit.Manager

	// Domain services
	sessionService trapline.SessionService
	stationService trapline.StationService
	recordService  trapline.RecordService

	// External services
	fileStorage  trapline.FileStorage
	emailService trapline.EmailService
}

// Config holds the configuration for creating a new Server.
type Config struct {
	Addr   string
	Domain string
	Logger *slog.Logger

	Visits *visit.Manager

	// Domain services
	SessionService trapline.SessionService
	StationService trapline.StationService
	RecordService  trapline.RecordService

	// External services
	FileStorage  trapline.FileStorage
	EmailService trapline.EmailService
}

// NewServer creates a new HTTP server with the given configuration.
func NewServer(cfg Config) *Server {
	s := &Server{
		Addr:           cfg.Addr,
		Domain:         cfg.Domain,
		logger:         cfg.Logger,
		visits:         cfg.Visits,
		sessionService: cfg.SessionService,
		stationService: cfg.StationService,
		recordService:  cfg.RecordService,
		fileStorage:    cfg.FileStorage,
		emailService:   cfg.EmailService,
	}

	s.echo = echo.New()
	s.echo.HideBanner = true
	s.echo.HidePort = true
	s.echo.Validator = validation.NewValidator()

	// Register middleware and routes
	s.registerMiddleware()
	s.registerRoutes()

	return s
}

// Echo returns the underlying Echo instance.
// Use sparingly - prefer registering routes through Server methods.
func (s *Server) Echo() *echo.Echo {
	return s.echo
}

// Open starts the HTTP server.
func (s *Server) Open() error {
	ln, err := net.Listen("tcp", s.Addr)
	if err != nil {
		return err
	}
	s.ln = ln

	go func() {
		if err := s.echo.Server.Serve(s.ln); err != nil {
			s.logger.Error("server error", slog.String("error", err.Error()))
		}
	}()

	s.logger.Info("server started", slog.String("addr", s.Addr))
	return nil
}

// Close gracefully shuts down the HTTP server.
func (s *Server) Close(ctx context.Context) error {
	if err := s.echo.Shutdown(ctx); err != nil {
		return err
	}
	s.logger.Info("server stopped")
	return nil
}

// URL returns the URL of the server.
func (s *Server) URL() string {
	if s.ln == nil {
		return ""
	}
	return "http://" + s.ln.Addr().String()
}
