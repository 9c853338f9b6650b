package trapline

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// InspectionRecord is the durable result of checking one station during one
// session. At most one record may exist per (StationID, SessionID) pair, and
// a record is never updated or deleted once created.
type InspectionRecord struct {
	ID           uuid.UUID    `json:"id"`
	StationID    uuid.UUID    `json:"stationId"`
	SessionID    uuid.UUID    `json:"sessionId"`
	LocationKind LocationKind `json:"locationKind"`
	Status       RecordStatus `json:"status"`

	Findings         string     `json:"findings,omitempty"`
	PhotoPath        string     `json:"photoPath,omitempty"`
	MeasurementValue *float64   `json:"measurementValue,omitempty"`
	MeasurementUnit  string     `json:"measurementUnit,omitempty"`

	InspectedAt  time.Time `json:"inspectedAt"`
	TechnicianID uuid.UUID `json:"technicianId"`
}

// HasPhoto returns true if a photo was stored alongside the record.
func (r *InspectionRecord) HasPhoto() bool {
	return r.PhotoPath != ""
}

// RecordStatus is the technician's finding for a station.
type RecordStatus string

const (
	RecordStatusOK           RecordStatus = "ok"
	RecordStatusActivity     RecordStatus = "activity"
	RecordStatusNeedsService RecordStatus = "needs_service"
	RecordStatusReplaced     RecordStatus = "replaced"
)

// IsValid returns true for a recognized record status.
func (s RecordStatus) IsValid() bool {
	switch s {
	case RecordStatusOK, RecordStatusActivity, RecordStatusNeedsService, RecordStatusReplaced:
		return true
	default:
		return false
	}
}

// RecordService defines operations over inspection records. Implementations
// own the transactional save unit: the session status precondition, the
// implicit scheduled -> in_progress auto-start, the record insert, and the
// counter increment all commit or fail together.
type RecordService interface {
	// CreateRecord persists a record and returns the session as updated by the
	// same transaction (auto-start applied, counter incremented exactly once).
	// Returns ESESSIONCLOSED if the session is completed, ECONFLICT if a
	// record already exists for (StationID, SessionID), ENOTFOUND if the
	// session does not exist. Two concurrent saves for the same station can
	// never double-count: the unique key rejects the loser inside the
	// transaction, before any counter change commits.
	CreateRecord(ctx context.Context, record *InspectionRecord) (*InspectionSession, error)

	// FindRecord retrieves the record for a (station, session) pair.
	// Returns ENOTFOUND if no record exists.
	FindRecord(ctx context.Context, stationID, sessionID uuid.UUID) (*InspectionRecord, error)

	// FindRecordsBySession retrieves all records for a session, both location
	// kinds, ordered by InspectedAt ascending.
	FindRecordsBySession(ctx context.Context, sessionID uuid.UUID) ([]*InspectionRecord, error)
}

// StationResult pairs a station with its saved result, for the in-session
// summary panel and for report generation.
type StationResult struct {
	StationID uuid.UUID         `json:"stationId"`
	Result    *InspectionRecord `json:"result"`
}
