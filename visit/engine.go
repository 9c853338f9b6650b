// Package visit implements the in-memory engine for a technician's site
// visit: session open/resumption, the per-station save saga, and the guided
// wizard traversal over stations still needing inspection.
package visit

import (
	"context"
	"io"
	"log/slog"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/fernwick/trapline"
	"github.com/fernwick/trapline/internal/metrics"
	"github.com/google/uuid"
)

// DefaultAdvanceDelay is the presentational pause the UI should show between
// a successful save and opening the next station. It has no effect on
// ordering or persistence; the engine state advances synchronously.
const DefaultAdvanceDelay = 600 * time.Millisecond

// Config holds the collaborators an engine needs.
type Config struct {
	Logger   *slog.Logger
	Sessions trapline.SessionService
	Records  trapline.RecordService
	Stations trapline.StationService
	Photos   trapline.FileStorage

	// AdvanceDelay overrides DefaultAdvanceDelay when positive.
	AdvanceDelay time.Duration
}

// Engine drives one technician's visit against one session. It is designed
// for a single active user per session: a mutex serializes double-submits
// from the same device, and the database's unique record key protects against
// anything beyond that.
type Engine struct {
	mu     sync.Mutex
	logger *slog.Logger

	sessions trapline.SessionService
	records  trapline.RecordService
	stations trapline.StationService
	photos   trapline.FileStorage

	advanceDelay time.Duration

	sessionID uuid.UUID
	session   *trapline.InspectionSession

	// inspected caches each inspected station's last-saved record, keyed by
	// station ID. Rebuilt on Open, extended on every successful save.
	inspected map[uuid.UUID]*trapline.InspectionRecord

	wizard wizardState
}

// NewEngine creates an engine for one session. Call Open before anything else.
func NewEngine(cfg Config, sessionID uuid.UUID) *Engine {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	delay := cfg.AdvanceDelay
	if delay <= 0 {
		delay = DefaultAdvanceDelay
	}
	return &Engine{
		logger:       logger.With("session_id", sessionID.String()),
		sessions:     cfg.Sessions,
		records:      cfg.Records,
		stations:     cfg.Stations,
		photos:       cfg.Photos,
		advanceDelay: delay,
		sessionID:    sessionID,
	}
}

// Open loads the session and, when it is already in_progress, reconstructs
// the inspected-set and per-station result cache from persisted records.
// Open is idempotent: the cache is rebuilt from scratch each call, keyed by
// station ID with last write winning by InspectedAt. It must run before the
// wizard builds its first queue, which the engine enforces via requireOpen.
func (e *Engine) Open(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	session, err := e.sessions.FindSessionByID(ctx, e.sessionID)
	if err != nil {
		return err
	}
	e.session = session

	inspected := make(map[uuid.UUID]*trapline.InspectionRecord)
	if session.Status == trapline.SessionStatusInProgress {
		records, err := e.records.FindRecordsBySession(ctx, session.ID)
		if err != nil {
			return err
		}
		for _, rec := range records {
			prev, ok := inspected[rec.StationID]
			if !ok || rec.InspectedAt.After(prev.InspectedAt) {
				inspected[rec.StationID] = rec
			}
		}
	}
	e.inspected = inspected

	e.logger.Info("visit opened",
		"status", string(session.Status),
		"resumed_records", len(inspected))
	return nil
}

func (e *Engine) requireOpen() error {
	if e.session == nil {
		return trapline.Invalid("Visit has not been opened")
	}
	return nil
}

// PhotoInput carries an optional photo to store alongside a record.
type PhotoInput struct {
	Reader      io.Reader
	ContentType string
}

// SaveInput is one station save action.
type SaveInput struct {
	StationID        uuid.UUID
	Kind             trapline.LocationKind
	Status           trapline.RecordStatus
	Findings         string
	MeasurementValue *float64
	MeasurementUnit  string
	Photo            *PhotoInput
}

// SaveResult reports a completed save action.
type SaveResult struct {
	Record  *trapline.InspectionRecord  `json:"record"`
	Session *trapline.InspectionSession `json:"session"`
	Wizard  trapline.WizardUIState      `json:"wizard"`

	// Duplicate is set when a record already existed for this station and
	// session; the save was a benign no-op and Record holds the existing
	// result for display.
	Duplicate bool `json:"duplicate,omitempty"`

	// AutoAdvanced is set when the saved station was the wizard cursor and
	// the queue advanced to the next pending station (or the wizard ended).
	AutoAdvanced bool `json:"autoAdvanced,omitempty"`

	// WizardCompleted is set when the save removed the last pending station.
	WizardCompleted bool `json:"wizardCompleted,omitempty"`

	// AdvanceDelayMS tells the UI how long to show success feedback before
	// opening the next station. Purely presentational.
	AdvanceDelayMS int64 `json:"advanceDelayMs"`
}

// Save runs the four-step save saga as one logical unit: photo upload (if
// any), record creation with counter increment and auto-start in one
// transaction, then in-memory cache and wizard updates. If any step fails no
// partial state is committed: an upload failure aborts before anything is
// persisted, and a create failure after an upload triggers a best-effort
// delete of the orphaned photo.
func (e *Engine) Save(ctx context.Context, in SaveInput) (*SaveResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.requireOpen(); err != nil {
		return nil, err
	}
	if err := e.validateSave(in); err != nil {
		return nil, err
	}
	if e.session.Status == trapline.SessionStatusCompleted {
		return nil, trapline.SessionClosed("Session is completed; no further inspections accepted")
	}
	if existing, ok := e.inspected[in.StationID]; ok {
		return e.duplicateResult(existing), nil
	}

	technicianID := trapline.TechnicianIDFromContext(ctx)
	if technicianID == uuid.Nil {
		technicianID = e.session.TechnicianID
	}

	record := &trapline.InspectionRecord{
		StationID:        in.StationID,
		SessionID:        e.session.ID,
		LocationKind:     in.Kind,
		Status:           in.Status,
		Findings:         in.Findings,
		MeasurementValue: in.MeasurementValue,
		MeasurementUnit:  in.MeasurementUnit,
		TechnicianID:     technicianID,
	}

	// Step 1: photo upload must complete and yield a stable path before the
	// record is persisted.
	var photoKey string
	if in.Photo != nil {
		photoKey = photoStorageKey(e.session.ID, in.StationID)
		url, err := e.photos.Upload(ctx, photoKey, in.Photo.Reader, in.Photo.ContentType)
		if err != nil {
			metrics.PhotoUploadFailures.Inc()
			e.logger.Error("photo upload failed",
				"station_id", in.StationID, "error", err.Error())
			return nil, trapline.UploadFailed("Photo upload failed; the inspection was not saved", err)
		}
		record.PhotoPath = url
	}

	// Steps 2-3: record insert, auto-start, and counter increment commit
	// together inside the record service transaction.
	session, err := e.records.CreateRecord(ctx, record)
	if err != nil {
		if photoKey != "" {
			if delErr := e.photos.Delete(ctx, photoKey); delErr != nil {
				e.logger.Warn("orphaned photo cleanup failed",
					"key", photoKey, "error", delErr.Error())
			}
		}
		if trapline.IsErrorCode(err, trapline.ECONFLICT) {
			return e.resolveDuplicate(ctx, in.StationID)
		}
		if trapline.IsErrorCode(err, trapline.ESESSIONCLOSED) {
			// Another device completed the session; pick up the terminal state.
			e.session.Status = trapline.SessionStatusCompleted
		}
		return nil, err
	}

	startedNow := e.session.Status == trapline.SessionStatusScheduled &&
		session.Status == trapline.SessionStatusInProgress

	// Step 4: only after the durable write succeeds does in-memory state move.
	e.session = session
	e.inspected[in.StationID] = record
	removed, advanced := e.wizard.remove(in.StationID)
	wizardEnded := removed && !e.wizard.active()

	if startedNow {
		metrics.SessionsStarted.Inc()
	}
	metrics.RecordsSaved.WithLabelValues(string(record.Status), string(record.LocationKind)).Inc()
	e.logger.Info("inspection saved",
		"station_id", in.StationID,
		"status", string(record.Status),
		"has_photo", record.HasPhoto(),
		"auto_started", startedNow)

	return &SaveResult{
		Record:          record,
		Session:         session,
		Wizard:          e.wizard.uiState(),
		AutoAdvanced:    advanced,
		WizardCompleted: wizardEnded,
		AdvanceDelayMS:  e.advanceDelay.Milliseconds(),
	}, nil
}

// QuickOK is the abbreviated save path: status ok, nothing else to report.
func (e *Engine) QuickOK(ctx context.Context, stationID uuid.UUID, kind trapline.LocationKind) (*SaveResult, error) {
	return e.Save(ctx, SaveInput{
		StationID: stationID,
		Kind:      kind,
		Status:    trapline.RecordStatusOK,
	})
}

func (e *Engine) validateSave(in SaveInput) error {
	fields := map[string]string{}
	if in.StationID == uuid.Nil {
		fields["stationId"] = "is required"
	}
	if !in.Kind.IsValid() {
		fields["locationKind"] = "must be outdoor or indoor"
	}
	if !in.Status.IsValid() {
		fields["status"] = "must be one of: ok, activity, needs_service, replaced"
	}
	if in.MeasurementValue != nil {
		if math.IsNaN(*in.MeasurementValue) || math.IsInf(*in.MeasurementValue, 0) {
			fields["measurementValue"] = "must be a finite number"
		}
	} else if in.MeasurementUnit != "" {
		fields["measurementUnit"] = "requires a measurement value"
	}
	if in.Photo != nil && !trapline.IsAcceptedImageType(in.Photo.ContentType) {
		fields["photo"] = "must be a JPEG, PNG, or WebP image"
	}
	if len(fields) > 0 {
		return trapline.ErrorWithFields(fields)
	}
	return nil
}

// resolveDuplicate handles the race where the unique key caught a concurrent
// save for the same station: the existing record is fetched, cached, and
// surfaced as a benign no-op.
func (e *Engine) resolveDuplicate(ctx context.Context, stationID uuid.UUID) (*SaveResult, error) {
	existing, err := e.records.FindRecord(ctx, stationID, e.session.ID)
	if err != nil {
		return nil, trapline.Conflict("Station already inspected in this session")
	}
	e.inspected[stationID] = existing
	e.wizard.remove(stationID)
	return e.duplicateResult(existing), nil
}

func (e *Engine) duplicateResult(existing *trapline.InspectionRecord) *SaveResult {
	return &SaveResult{
		Record:         existing,
		Session:        e.session,
		Wizard:         e.wizard.uiState(),
		Duplicate:      true,
		AdvanceDelayMS: e.advanceDelay.Milliseconds(),
	}
}

// Session returns the current session snapshot.
func (e *Engine) Session() *trapline.InspectionSession {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.session
}

// Progress derives the session progress view from the current counters.
func (e *Engine) Progress() (trapline.SessionProgress, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.requireOpen(); err != nil {
		return trapline.SessionProgress{}, err
	}
	return e.session.Progress(), nil
}

// Summary returns the read-only station results recorded so far, ordered by
// station ID for stable rendering in the summary panel.
func (e *Engine) Summary() ([]trapline.StationResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.requireOpen(); err != nil {
		return nil, err
	}
	results := make([]trapline.StationResult, 0, len(e.inspected))
	for id, rec := range e.inspected {
		results = append(results, trapline.StationResult{StationID: id, Result: rec})
	}
	sort.Slice(results, func(i, j int) bool {
		return results[i].StationID.String() < results[j].StationID.String()
	})
	return results, nil
}

// InspectedSet returns the IDs of stations already inspected this session.
func (e *Engine) InspectedSet() map[uuid.UUID]bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	set := make(map[uuid.UUID]bool, len(e.inspected))
	for id := range e.inspected {
		set[id] = true
	}
	return set
}

func photoStorageKey(sessionID, stationID uuid.UUID) string {
	return "photos/" + sessionID.String() + "/" + stationID.String() + "/" + uuid.New().String()
}
