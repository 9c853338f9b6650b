package postgres

import (
	"context"
	"errors"

	"github.com/fernwick/trapline"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// Compile-time check that RecordService implements trapline.RecordService.
var _ trapline.RecordService = (*RecordService)(nil)

// RecordService implements trapline.RecordService using PostgreSQL.
type RecordService struct {
	db       *DB
	sessions *SessionService
}

const recordColumns = `
	id, station_id, session_id, location_kind, status, findings,
	photo_path, measurement_value, measurement_unit, inspected_at, technician_id
`

func scanRecord(row rowScanner) (*trapline.InspectionRecord, error) {
	var r trapline.InspectionRecord
	err := row.Scan(
		&r.ID,
		&r.StationID,
		&r.SessionID,
		&r.LocationKind,
		&r.Status,
		&r.Findings,
		&r.PhotoPath,
		&r.MeasurementValue,
		&r.MeasurementUnit,
		&r.InspectedAt,
		&r.TechnicianID,
	)
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// CreateRecord persists an inspection record and keeps the session row
// consistent with it, all in one transaction:
//
//  1. lock the session row
//  2. reject writes to a completed session
//  3. auto-start a scheduled session
//  4. insert the record; a duplicate (station, session) pair is ECONFLICT
//  5. bump the counter for the record's location kind
//
// The updated session is returned so callers never hold a stale copy.
func (s *RecordService) CreateRecord(ctx context.Context, record *trapline.InspectionRecord) (*trapline.InspectionSession, error) {
	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}
	if !record.Status.IsValid() {
		return nil, trapline.Invalid("Unknown record status %q", record.Status)
	}
	if !record.LocationKind.IsValid() {
		return nil, trapline.Invalid("Unknown location kind %q", record.LocationKind)
	}

	tx, err := s.db.pool.Begin(ctx)
	if err != nil {
		return nil, trapline.Internal("Failed to begin transaction", err)
	}
	defer tx.Rollback(ctx)

	session, err := s.sessions.lockSession(ctx, tx, record.SessionID)
	if err != nil {
		return nil, err
	}

	if session.Status == trapline.SessionStatusCompleted {
		return nil, trapline.SessionClosed("Session %s is completed and accepts no more records", session.ID)
	}
	if session.Status == trapline.SessionStatusScheduled {
		if _, err := s.sessions.startLocked(ctx, tx, session.ID); err != nil {
			return nil, err
		}
	}

	query := `
		INSERT INTO inspection_records (
			id, station_id, session_id, location_kind, status, findings,
			photo_path, measurement_value, measurement_unit, technician_id
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING inspected_at
	`

	err = tx.QueryRow(ctx, query,
		record.ID,
		record.StationID,
		record.SessionID,
		string(record.LocationKind),
		string(record.Status),
		record.Findings,
		record.PhotoPath,
		record.MeasurementValue,
		record.MeasurementUnit,
		record.TechnicianID,
	).Scan(&record.InspectedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, trapline.Conflict("Station already inspected in this session")
		}
		if isForeignKeyViolation(err) {
			return nil, trapline.NotFound("Station or session not found")
		}
		return nil, trapline.Internal("Failed to create record", err)
	}

	session, err = s.sessions.incrementLocked(ctx, tx, record.SessionID, record.LocationKind)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, trapline.Internal("Failed to create record", err)
	}
	return session, nil
}

func (s *RecordService) FindRecord(ctx context.Context, stationID, sessionID uuid.UUID) (*trapline.InspectionRecord, error) {
	query := `SELECT ` + recordColumns + ` FROM inspection_records WHERE station_id = $1 AND session_id = $2`

	record, err := scanRecord(s.db.pool.QueryRow(ctx, query, stationID, sessionID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, trapline.NotFound("Record not found")
		}
		return nil, trapline.Internal("Failed to fetch record", err)
	}
	return record, nil
}

func (s *RecordService) FindRecordsBySession(ctx context.Context, sessionID uuid.UUID) ([]*trapline.InspectionRecord, error) {
	query := `SELECT ` + recordColumns + ` FROM inspection_records WHERE session_id = $1 ORDER BY inspected_at`

	rows, err := s.db.pool.Query(ctx, query, sessionID)
	if err != nil {
		return nil, trapline.Internal("Failed to list records", err)
	}
	defer rows.Close()

	var records []*trapline.InspectionRecord
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, trapline.Internal("Failed to scan record", err)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, trapline.Internal("Failed to list records", err)
	}
	return records, nil
}
