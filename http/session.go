package http

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"github.com/fernwick/trapline"
	"github.com/labstack/echo/v4"
)

// CreateSessionRequest is the request payload for scheduling a session.
type CreateSessionRequest struct {
	CaseID       string `json:"caseId" form:"caseId" validate:"required,uuid"`
	CustomerID   string `json:"customerId" form:"customerId" validate:"required,uuid"`
	TechnicianID string `json:"technicianId" form:"technicianId" validate:"required,uuid"`
	TotalOutdoor int    `json:"totalOutdoor" form:"totalOutdoor" validate:"gte=0"`
	TotalIndoor  int    `json:"totalIndoor" form:"totalIndoor" validate:"gte=0"`
}

func (s *Server) handleCreateSession(c echo.Context) error {
	ctx, cancel := withTimeout(c)
	defer cancel()

	var req CreateSessionRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	caseID, err := parseUUID(req.CaseID)
	if err != nil {
		return err
	}
	customerID, err := parseUUID(req.CustomerID)
	if err != nil {
		return err
	}
	technicianID, err := parseUUID(req.TechnicianID)
	if err != nil {
		return err
	}

	session := &trapline.InspectionSession{
		CaseID:       caseID,
		CustomerID:   customerID,
		TechnicianID: technicianID,
		Status:       trapline.SessionStatusScheduled,
		TotalOutdoor: req.TotalOutdoor,
		TotalIndoor:  req.TotalIndoor,
	}

	if err := s.sessionService.CreateSession(ctx, session); err != nil {
		return err
	}

	s.log(c).Info("session scheduled",
		slog.String("session_id", session.ID.String()),
		slog.String("customer_id", customerID.String()),
	)

	return RespondCreated(c, session)
}

func (s *Server) handleGetSession(c echo.Context) error {
	ctx, cancel := withTimeout(c)
	defer cancel()

	sessionID, err := requireUUIDParam(c, "id")
	if err != nil {
		return err
	}

	session, err := s.sessionService.FindSessionByID(ctx, sessionID)
	if err != nil {
		return err
	}

	return RespondOK(c, session)
}

func (s *Server) handleListSessions(c echo.Context) error {
	ctx, cancel := withTimeout(c)
	defer cancel()

	filter := trapline.SessionFilter{Limit: 100}

	if v := c.QueryParam("customerId"); v != "" {
		id, err := parseUUID(v)
		if err != nil {
			return err
		}
		filter.CustomerID = &id
	}
	if v := c.QueryParam("technicianId"); v != "" {
		id, err := parseUUID(v)
		if err != nil {
			return err
		}
		filter.TechnicianID = &id
	}
	if v := c.QueryParam("status"); v != "" {
		status := trapline.SessionStatus(v)
		if !status.IsValid() {
			return trapline.Invalid("Unknown session status %q", v)
		}
		filter.Status = &status
	}
	if v := c.QueryParam("offset"); v != "" {
		offset, err := strconv.Atoi(v)
		if err != nil || offset < 0 {
			return trapline.Invalid("Invalid offset")
		}
		filter.Offset = offset
	}
	if v := c.QueryParam("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil || limit < 1 {
			return trapline.Invalid("Invalid limit")
		}
		filter.Limit = limit
	}

	sessions, total, err := s.sessionService.FindSessions(ctx, filter)
	if err != nil {
		return err
	}

	return RespondList(c, sessions, total, filter.Offset, filter.Limit)
}

func (s *Server) handleStartSession(c echo.Context) error {
	ctx, cancel := withTimeout(c)
	defer cancel()

	sessionID, err := requireUUIDParam(c, "id")
	if err != nil {
		return err
	}

	session, err := s.visits.Start(ctx, sessionID)
	if err != nil {
		return err
	}

	s.log(c).Info("session started",
		slog.String("session_id", sessionID.String()),
		slog.String("status", string(session.Status)),
	)

	return RespondOK(c, session)
}

func (s *Server) handleCompleteSession(c echo.Context) error {
	ctx, cancel := withTimeout(c)
	defer cancel()

	sessionID, err := requireUUIDParam(c, "id")
	if err != nil {
		return err
	}

	session, err := s.visits.Complete(ctx, sessionID)
	if err != nil {
		return err
	}

	s.log(c).Info("session completed",
		slog.String("session_id", sessionID.String()),
		slog.Int("inspected", session.InspectedOutdoor+session.InspectedIndoor),
		slog.Int("total", session.TotalOutdoor+session.TotalIndoor),
	)

	s.sendVisitSummary(session)

	return RespondOK(c, session)
}

// sendVisitSummary emails the customer their visit summary in the background.
// Failures are logged and never affect the completion response.
func (s *Server) sendVisitSummary(session *trapline.InspectionSession) {
	if s.emailService == nil {
		return
	}
	progress := session.Progress()

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		customer := session.Customer
		if customer == nil {
			full, err := s.sessionService.FindSessionByID(ctx, session.ID)
			if err != nil {
				s.logger.Warn("visit summary email skipped, session lookup failed",
					slog.String("session_id", session.ID.String()),
					slog.String("error", err.Error()))
				return
			}
			customer = full.Customer
		}
		if customer == nil || customer.ContactEmail == "" {
			return
		}

		if err := s.emailService.SendVisitSummary(ctx, customer.ContactEmail, customer.Name, progress); err != nil {
			s.logger.Warn("visit summary email failed",
				slog.String("session_id", session.ID.String()),
				slog.String("error", err.Error()))
		}
	}()
}

func (s *Server) handleSessionProgress(c echo.Context) error {
	ctx, cancel := withTimeout(c)
	defer cancel()

	sessionID, err := requireUUIDParam(c, "id")
	if err != nil {
		return err
	}

	eng, err := s.visits.Engine(ctx, sessionID)
	if err != nil {
		return err
	}

	progress, err := eng.Progress()
	if err != nil {
		return err
	}

	return RespondOK(c, progress)
}

func (s *Server) handleSessionSummary(c echo.Context) error {
	ctx, cancel := withTimeout(c)
	defer cancel()

	sessionID, err := requireUUIDParam(c, "id")
	if err != nil {
		return err
	}

	eng, err := s.visits.Engine(ctx, sessionID)
	if err != nil {
		return err
	}

	results, err := eng.Summary()
	if err != nil {
		return err
	}

	return RespondOK(c, map[string]any{
		"session": eng.Session(),
		"results": results,
	})
}
