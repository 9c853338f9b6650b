package mock

import (
	"context"

	"github.com/fernwick/trapline"
	"github.com/google/uuid"
)

// Compile-time interface check
var _ trapline.SessionService = (*SessionService)(nil)

// SessionService is a mock implementation of trapline.SessionService.
type SessionService struct {
	FindSessionByIDFn func(ctx context.Context, id uuid.UUID) (*trapline.InspectionSession, error)
	FindSessionsFn    func(ctx context.Context, filter trapline.SessionFilter) ([]*trapline.InspectionSession, int, error)
	CreateSessionFn   func(ctx context.Context, session *trapline.InspectionSession) error
	StartSessionFn    func(ctx context.Context, id uuid.UUID) (*trapline.InspectionSession, error)
	CompleteSessionFn func(ctx context.Context, id uuid.UUID) (*trapline.InspectionSession, error)
}

func (s *SessionService) FindSessionByID(ctx context.Context, id uuid.UUID) (*trapline.InspectionSession, error) {
	if s.FindSessionByIDFn != nil {
		return s.FindSessionByIDFn(ctx, id)
	}
	return nil, trapline.NotFound("Session not found")
}

func (s *SessionService) FindSessions(ctx context.Context, filter trapline.SessionFilter) ([]*trapline.InspectionSession, int, error) {
	if s.FindSessionsFn != nil {
		return s.FindSessionsFn(ctx, filter)
	}
	return nil, 0, nil
}

func (s *SessionService) CreateSession(ctx context.Context, session *trapline.InspectionSession) error {
	if s.CreateSessionFn != nil {
		return s.CreateSessionFn(ctx, session)
	}
	return nil
}

func (s *SessionService) StartSession(ctx context.Context, id uuid.UUID) (*trapline.InspectionSession, error) {
	if s.StartSessionFn != nil {
		return s.StartSessionFn(ctx, id)
	}
	return nil, trapline.NotFound("Session not found")
}

func (s *SessionService) CompleteSession(ctx context.Context, id uuid.UUID) (*trapline.InspectionSession, error) {
	if s.CompleteSessionFn != nil {
		return s.CompleteSessionFn(ctx, id)
	}
	return nil, trapline.NotFound("Session not found")
}
