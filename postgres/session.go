package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fernwick/trapline"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// Compile-time check that SessionService implements trapline.SessionService.
var _ trapline.SessionService = (*SessionService)(nil)

// SessionService implements trapline.SessionService using PostgreSQL. It is
// the sole owner of the session row's status and counters; the record
// service mutates them only through the helpers below, inside its own
// transaction.
type SessionService struct {
	db *DB
}

const sessionColumns = `
	id, case_id, customer_id, technician_id, status,
	total_outdoor, inspected_outdoor, total_indoor, inspected_indoor,
	started_at, completed_at, created_at, updated_at
`

// rowScanner covers pgx.Row and pgx.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (*trapline.InspectionSession, error) {
	var s trapline.InspectionSession
	err := row.Scan(
		&s.ID,
		&s.CaseID,
		&s.CustomerID,
		&s.TechnicianID,
		&s.Status,
		&s.TotalOutdoor,
		&s.InspectedOutdoor,
		&s.TotalIndoor,
		&s.InspectedIndoor,
		&s.StartedAt,
		&s.CompletedAt,
		&s.CreatedAt,
		&s.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (s *SessionService) FindSessionByID(ctx context.Context, id uuid.UUID) (*trapline.InspectionSession, error) {
	query := `SELECT ` + sessionColumns + ` FROM inspection_sessions WHERE id = $1`

	session, err := scanSession(s.db.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, trapline.NotFound("Session not found")
		}
		return nil, trapline.Internal("Failed to fetch session", err)
	}
	if err := s.attachParticipants(ctx, session); err != nil {
		return nil, err
	}
	return session, nil
}

// attachParticipants joins the customer and technician references onto a
// session. Missing rows are tolerated; these tables are owned by the
// scheduling system and may lag.
func (s *SessionService) attachParticipants(ctx context.Context, session *trapline.InspectionSession) error {
	var customer trapline.Customer
	err := s.db.pool.QueryRow(ctx,
		`SELECT id, name, contact_email, created_at FROM customers WHERE id = $1`,
		session.CustomerID,
	).Scan(&customer.ID, &customer.Name, &customer.ContactEmail, &customer.CreatedAt)
	switch {
	case err == nil:
		session.Customer = &customer
	case !errors.Is(err, pgx.ErrNoRows):
		return trapline.Internal("Failed to fetch customer", err)
	}

	var technician trapline.Technician
	err = s.db.pool.QueryRow(ctx,
		`SELECT id, name, email FROM technicians WHERE id = $1`,
		session.TechnicianID,
	).Scan(&technician.ID, &technician.Name, &technician.Email)
	switch {
	case err == nil:
		session.Technician = &technician
	case !errors.Is(err, pgx.ErrNoRows):
		return trapline.Internal("Failed to fetch technician", err)
	}

	return nil
}

func (s *SessionService) FindSessions(ctx context.Context, filter trapline.SessionFilter) ([]*trapline.InspectionSession, int, error) {
	query := `SELECT ` + sessionColumns + ` FROM inspection_sessions WHERE 1=1`
	args := []any{}

	if filter.ID != nil {
		args = append(args, *filter.ID)
		query += fmt.Sprintf(" AND id = $%d", len(args))
	}
	if filter.CustomerID != nil {
		args = append(args, *filter.CustomerID)
		query += fmt.Sprintf(" AND customer_id = $%d", len(args))
	}
	if filter.TechnicianID != nil {
		args = append(args, *filter.TechnicianID)
		query += fmt.Sprintf(" AND technician_id = $%d", len(args))
	}
	if filter.Status != nil {
		args = append(args, string(*filter.Status))
		query += fmt.Sprintf(" AND status = $%d", len(args))
	}
	query += " ORDER BY created_at DESC"

	rows, err := s.db.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, trapline.Internal("Failed to list sessions", err)
	}
	defer rows.Close()

	var sessions []*trapline.InspectionSession
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			return nil, 0, trapline.Internal("Failed to scan session", err)
		}
		sessions = append(sessions, session)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, trapline.Internal("Failed to list sessions", err)
	}

	// Apply offset/limit in memory
	total := len(sessions)
	if filter.Offset > 0 && filter.Offset < len(sessions) {
		sessions = sessions[filter.Offset:]
	} else if filter.Offset >= len(sessions) {
		sessions = nil
	}
	if filter.Limit > 0 && filter.Limit < len(sessions) {
		sessions = sessions[:filter.Limit]
	}

	return sessions, total, nil
}

func (s *SessionService) CreateSession(ctx context.Context, session *trapline.InspectionSession) error {
	if session.ID == uuid.Nil {
		session.ID = uuid.New()
	}
	if session.Status == "" {
		session.Status = trapline.SessionStatusScheduled
	}
	if !session.Status.IsValid() {
		return trapline.Invalid("Unknown session status %q", session.Status)
	}

	query := `
		INSERT INTO inspection_sessions (
			id, case_id, customer_id, technician_id, status,
			total_outdoor, inspected_outdoor, total_indoor, inspected_indoor
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING created_at, updated_at
	`

	err := s.db.pool.QueryRow(ctx, query,
		session.ID,
		session.CaseID,
		session.CustomerID,
		session.TechnicianID,
		string(session.Status),
		session.TotalOutdoor,
		session.InspectedOutdoor,
		session.TotalIndoor,
		session.InspectedIndoor,
	).Scan(&session.CreatedAt, &session.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return trapline.Conflict("Session already exists")
		}
		if isForeignKeyViolation(err) {
			return trapline.NotFound("Customer or technician not found")
		}
		return trapline.Internal("Failed to create session", err)
	}
	return nil
}

func (s *SessionService) StartSession(ctx context.Context, id uuid.UUID) (*trapline.InspectionSession, error) {
	tx, err := s.db.pool.Begin(ctx)
	if err != nil {
		return nil, trapline.Internal("Failed to begin transaction", err)
	}
	defer tx.Rollback(ctx)

	session, err := s.lockSession(ctx, tx, id)
	if err != nil {
		return nil, err
	}

	switch session.Status {
	case trapline.SessionStatusInProgress:
		// Re-start is safely ignorable.
		return session, nil
	case trapline.SessionStatusCompleted:
		return nil, trapline.InvalidTransition(session.Status, trapline.SessionStatusInProgress)
	}

	session, err = s.startLocked(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, trapline.Internal("Failed to start session", err)
	}
	return session, nil
}

func (s *SessionService) CompleteSession(ctx context.Context, id uuid.UUID) (*trapline.InspectionSession, error) {
	tx, err := s.db.pool.Begin(ctx)
	if err != nil {
		return nil, trapline.Internal("Failed to begin transaction", err)
	}
	defer tx.Rollback(ctx)

	session, err := s.lockSession(ctx, tx, id)
	if err != nil {
		return nil, err
	}

	// Partial completion is allowed; only the status gate matters here.
	if session.Status != trapline.SessionStatusInProgress {
		return nil, trapline.InvalidTransition(session.Status, trapline.SessionStatusCompleted)
	}

	query := `
		UPDATE inspection_sessions
		SET status = $2, completed_at = $3, updated_at = $3
		WHERE id = $1
		RETURNING ` + sessionColumns

	session, err = scanSession(tx.QueryRow(ctx, query, id, string(trapline.SessionStatusCompleted), time.Now()))
	if err != nil {
		return nil, trapline.Internal("Failed to complete session", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, trapline.Internal("Failed to complete session", err)
	}
	return session, nil
}

// lockSession reads the session row FOR UPDATE inside tx, serializing all
// lifecycle and counter mutations against it.
func (s *SessionService) lockSession(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*trapline.InspectionSession, error) {
	query := `SELECT ` + sessionColumns + ` FROM inspection_sessions WHERE id = $1 FOR UPDATE`

	session, err := scanSession(tx.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, trapline.NotFound("Session not found")
		}
		return nil, trapline.Internal("Failed to fetch session", err)
	}
	return session, nil
}

// startLocked applies the scheduled -> in_progress transition on an already
// locked row. Shared with the record service's auto-start path.
func (s *SessionService) startLocked(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*trapline.InspectionSession, error) {
	query := `
		UPDATE inspection_sessions
		SET status = $2, started_at = $3, updated_at = $3
		WHERE id = $1
		RETURNING ` + sessionColumns

	session, err := scanSession(tx.QueryRow(ctx, query, id, string(trapline.SessionStatusInProgress), time.Now()))
	if err != nil {
		return nil, trapline.Internal("Failed to start session", err)
	}
	return session, nil
}

// incrementLocked adds one to the counter matching the location kind on an
// already locked row, returning the updated session. Called exactly once per
// newly created record, inside the record-creation transaction.
func (s *SessionService) incrementLocked(ctx context.Context, tx pgx.Tx, id uuid.UUID, kind trapline.LocationKind) (*trapline.InspectionSession, error) {
	column := "inspected_outdoor"
	if kind == trapline.LocationIndoor {
		column = "inspected_indoor"
	}

	query := `
		UPDATE inspection_sessions
		SET ` + column + ` = ` + column + ` + 1, updated_at = $2
		WHERE id = $1
		RETURNING ` + sessionColumns

	session, err := scanSession(tx.QueryRow(ctx, query, id, time.Now()))
	if err != nil {
		return nil, trapline.Internal("Failed to update session counters", err)
	}
	return session, nil
}
