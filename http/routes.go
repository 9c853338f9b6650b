package http

import (
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// registerRoutes sets up all routes for the server.
// All routes are defined in this single file for easy navigation.
func (s *Server) registerRoutes() {
	// Health check routes (public)
	s.echo.GET("/health", s.handleHealthCheck)
	s.echo.GET("/health/live", s.handleLivenessCheck)
	s.echo.GET("/health/ready", s.handleReadinessCheck)

	// Prometheus metrics (public)
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	// API routes (require technician identity)
	api := s.echo.Group("/api")
	api.Use(s.RequireTechnician())

	// Sessions
	api.POST("/sessions", s.handleCreateSession)
	api.GET("/sessions", s.handleListSessions)
	api.GET("/sessions/:id", s.handleGetSession)
	api.POST("/sessions/:id/start", s.handleStartSession)
	api.POST("/sessions/:id/complete", s.handleCompleteSession)
	api.GET("/sessions/:id/progress", s.handleSessionProgress)
	api.GET("/sessions/:id/summary", s.handleSessionSummary)

	// Inspection records
	api.POST("/sessions/:id/records", s.handleSaveRecord)
	api.POST("/sessions/:id/records/quick-ok", s.handleQuickOK)
	api.GET("/sessions/:id/records", s.handleListRecords)
	api.GET("/sessions/:id/records/:stationId", s.handleGetRecord)

	// Station catalog (read-only)
	api.GET("/customers/:customerId/stations", s.handleListStations)

	// Station wizard
	api.POST("/sessions/:id/wizard/start", s.handleWizardStart)
	api.POST("/sessions/:id/wizard/next", s.handleWizardNext)
	api.POST("/sessions/:id/wizard/previous", s.handleWizardPrevious)
	api.POST("/sessions/:id/wizard/skip", s.handleWizardSkip)
	api.POST("/sessions/:id/wizard/stop", s.handleWizardStop)
	api.GET("/sessions/:id/wizard", s.handleWizardState)
}
