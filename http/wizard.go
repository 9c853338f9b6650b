package http

import (
	"log/slog"

	"github.com/fernwick/trapline"
	"github.com/labstack/echo/v4"
)

// StartWizardRequest selects which station set the wizard walks.
type StartWizardRequest struct {
	LocationKind string `json:"locationKind" form:"locationKind" validate:"required,oneof=outdoor indoor"`
}

func (s *Server) handleWizardStart(c echo.Context) error {
	ctx, cancel := withTimeout(c)
	defer cancel()

	sessionID, err := requireUUIDParam(c, "id")
	if err != nil {
		return err
	}

	var req StartWizardRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	eng, err := s.visits.Engine(ctx, sessionID)
	if err != nil {
		return err
	}

	result, err := eng.StartWizard(ctx, trapline.LocationKind(req.LocationKind))
	if err != nil {
		return err
	}

	s.log(c).Info("wizard start requested",
		slog.String("session_id", sessionID.String()),
		slog.String("kind", req.LocationKind),
		slog.Bool("nothing_to_do", result.NothingToDo),
	)

	return RespondOK(c, result)
}

func (s *Server) handleWizardNext(c echo.Context) error {
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

	result, err := eng.Next()
	if err != nil {
		return err
	}
	return RespondOK(c, result)
}

func (s *Server) handleWizardPrevious(c echo.Context) error {
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

	result, err := eng.Previous()
	if err != nil {
		return err
	}
	return RespondOK(c, result)
}

func (s *Server) handleWizardSkip(c echo.Context) error {
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

	result, err := eng.Skip()
	if err != nil {
		return err
	}
	return RespondOK(c, result)
}

func (s *Server) handleWizardStop(c echo.Context) error {
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

	state := eng.StopWizard()
	return RespondOK(c, map[string]any{"state": state})
}

func (s *Server) handleWizardState(c echo.Context) error {
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

	return RespondOK(c, map[string]any{"state": eng.WizardState()})
}
