package trapline

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// InspectionSession represents one technician visit covering all monitoring
// stations at a customer site. A session row is created by the scheduling
// workflow; this core only reads and updates it during the visit, and it
// becomes immutable once completed.
type InspectionSession struct {
	ID           uuid.UUID     `json:"id"`
	CaseID       uuid.UUID     `json:"caseId"`
	CustomerID   uuid.UUID     `json:"customerId"`
	TechnicianID uuid.UUID     `json:"technicianId"`
	Status       SessionStatus `json:"status"`

	// Counters always equal the count of distinct stations with a persisted
	// inspection record for this session, partitioned by location kind. They
	// are owned by the session lifecycle manager and are only mutated inside
	// the record-creation transaction or by StartSession/CompleteSession.
	TotalOutdoor     int `json:"totalOutdoor"`
	InspectedOutdoor int `json:"inspectedOutdoor"`
	TotalIndoor      int `json:"totalIndoor"`
	InspectedIndoor  int `json:"inspectedIndoor"`

	StartedAt   *time.Time `json:"startedAt,omitempty"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`

	// Joined fields (populated by some queries)
	Customer   *Customer   `json:"customer,omitempty"`
	Technician *Technician `json:"technician,omitempty"`
}

// SessionStatus represents the lifecycle status of an inspection session.
type SessionStatus string

const (
	SessionStatusScheduled  SessionStatus = "scheduled"
	SessionStatusInProgress SessionStatus = "in_progress"
	SessionStatusCompleted  SessionStatus = "completed"
)

// IsValid returns true for a recognized session status.
func (s SessionStatus) IsValid() bool {
	switch s {
	case SessionStatusScheduled, SessionStatusInProgress, SessionStatusCompleted:
		return true
	default:
		return false
	}
}

// IsTerminal returns true if no further status change is allowed.
func (s SessionStatus) IsTerminal() bool {
	return s == SessionStatusCompleted
}

// CanTransitionTo returns true if this status can transition to the target status.
func (s SessionStatus) CanTransitionTo(target SessionStatus) bool {
	switch s {
	case SessionStatusScheduled:
		return target == SessionStatusInProgress
	case SessionStatusInProgress:
		return target == SessionStatusCompleted
	default:
		return false
	}
}

// Progress derives the SessionProgress view from the session counters.
func (s *InspectionSession) Progress() SessionProgress {
	p := SessionProgress{
		TotalStations:     s.TotalOutdoor + s.TotalIndoor,
		InspectedStations: s.InspectedOutdoor + s.InspectedIndoor,
		Outdoor:           KindProgress{Total: s.TotalOutdoor, Inspected: s.InspectedOutdoor},
		Indoor:            KindProgress{Total: s.TotalIndoor, Inspected: s.InspectedIndoor},
	}
	if p.TotalStations > 0 {
		p.PercentComplete = float64(p.InspectedStations) / float64(p.TotalStations) * 100
	}
	return p
}

// SessionProgress is the per-session progress view exposed to the UI and
// reporting, recomputed from the counters on every change.
type SessionProgress struct {
	TotalStations     int          `json:"totalStations"`
	InspectedStations int          `json:"inspectedStations"`
	PercentComplete   float64      `json:"percentComplete"`
	Outdoor           KindProgress `json:"outdoorProgress"`
	Indoor            KindProgress `json:"indoorProgress"`
}

// KindProgress is progress for one station location kind.
type KindProgress struct {
	Total     int `json:"total"`
	Inspected int `json:"inspected"`
}

// SessionService defines operations for managing inspection sessions.
type SessionService interface {
	// FindSessionByID retrieves a session by its ID.
	// Returns ENOTFOUND if the session does not exist.
	FindSessionByID(ctx context.Context, id uuid.UUID) (*InspectionSession, error)

	// FindSessions retrieves sessions matching the filter criteria.
	// Returns the matching sessions and total count.
	FindSessions(ctx context.Context, filter SessionFilter) ([]*InspectionSession, int, error)

	// CreateSession creates a new scheduled session with its station totals.
	// Normally invoked by the external scheduling workflow.
	CreateSession(ctx context.Context, session *InspectionSession) error

	// StartSession moves a scheduled session to in_progress and sets StartedAt.
	// Starting an in_progress session is a safe no-op; starting a completed
	// session returns EINVALID.
	StartSession(ctx context.Context, id uuid.UUID) (*InspectionSession, error)

	// CompleteSession moves an in_progress session to completed and sets
	// CompletedAt. Partial completion is allowed: counters may be below the
	// totals. Returns EINVALID if the session is scheduled or already completed.
	CompleteSession(ctx context.Context, id uuid.UUID) (*InspectionSession, error)
}

// SessionFilter defines criteria for filtering sessions.
type SessionFilter struct {
	ID           *uuid.UUID
	CustomerID   *uuid.UUID
	TechnicianID *uuid.UUID
	Status       *SessionStatus

	// Pagination
	Offset int
	Limit  int
}
