package http

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/fernwick/trapline"
	"github.com/fernwick/trapline/mock"
	"github.com/fernwick/trapline/visit"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type testServices struct {
	sessions *mock.SessionService
	records  *mock.RecordService
	stations *mock.StationService
	storage  *mock.FileStorage
	email    *mock.EmailService
}

func newTestServer(svc testServices) *Server {
	logger := testLogger()
	visits := visit.NewManager(visit.Config{
		Logger:   logger,
		Sessions: svc.sessions,
		Records:  svc.records,
		Stations: svc.stations,
		Photos:   svc.storage,
	})
	return NewServer(Config{
		Addr:           "localhost:0",
		Logger:         logger,
		Visits:         visits,
		SessionService: svc.sessions,
		StationService: svc.stations,
		RecordService:  svc.records,
		FileStorage:    svc.storage,
		EmailService:   svc.email,
	})
}

func defaultServices() testServices {
	return testServices{
		sessions: &mock.SessionService{},
		records:  &mock.RecordService{},
		stations: &mock.StationService{},
		storage:  &mock.FileStorage{},
		email:    &mock.EmailService{},
	}
}

func doRequest(s *Server, method, target, body string, technicianID *uuid.UUID) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if technicianID != nil {
		req.Header.Set(TechnicianHeader, technicianID.String())
	}
	rec := httptest.NewRecorder()
	s.Echo().ServeHTTP(rec, req)
	return rec
}

func inProgressSession() *trapline.InspectionSession {
	now := time.Now()
	return &trapline.InspectionSession{
		ID:           uuid.New(),
		CaseID:       uuid.New(),
		CustomerID:   uuid.New(),
		TechnicianID: uuid.New(),
		Status:       trapline.SessionStatusInProgress,
		TotalOutdoor: 5,
		StartedAt:    &now,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

func TestHealthCheck(t *testing.T) {
	s := newTestServer(defaultServices())

	rec := doRequest(s, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "ok")
}

func TestAPIRequiresTechnician(t *testing.T) {
	s := newTestServer(defaultServices())

	rec := doRequest(s, http.MethodGet, "/api/sessions/"+uuid.NewString(), "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, trapline.EUNAUTHORIZED, resp.Error)
}

func TestGetSession(t *testing.T) {
	svc := defaultServices()
	session := inProgressSession()
	svc.sessions.FindSessionByIDFn = func(ctx context.Context, id uuid.UUID) (*trapline.InspectionSession, error) {
		if id != session.ID {
			return nil, trapline.NotFound("Session not found")
		}
		return session, nil
	}
	s := newTestServer(svc)
	tech := session.TechnicianID

	rec := doRequest(s, http.MethodGet, "/api/sessions/"+session.ID.String(), "", &tech)
	assert.Equal(t, http.StatusOK, rec.Code)

	var got trapline.InspectionSession
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, session.ID, got.ID)
	assert.Equal(t, trapline.SessionStatusInProgress, got.Status)

	rec = doRequest(s, http.MethodGet, "/api/sessions/"+uuid.NewString(), "", &tech)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = doRequest(s, http.MethodGet, "/api/sessions/not-a-uuid", "", &tech)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSaveRecord(t *testing.T) {
	svc := defaultServices()
	session := inProgressSession()
	svc.sessions.FindSessionByIDFn = func(ctx context.Context, id uuid.UUID) (*trapline.InspectionSession, error) {
		return session, nil
	}

	var created *trapline.InspectionRecord
	svc.records.CreateRecordFn = func(ctx context.Context, record *trapline.InspectionRecord) (*trapline.InspectionSession, error) {
		record.ID = uuid.New()
		record.InspectedAt = time.Now()
		created = record
		updated := *session
		updated.InspectedOutdoor++
		return &updated, nil
	}
	s := newTestServer(svc)
	tech := session.TechnicianID

	stationID := uuid.New()
	body := `{"stationId":"` + stationID.String() + `","locationKind":"outdoor","status":"activity","findings":"droppings near bait"}`
	rec := doRequest(s, http.MethodPost, "/api/sessions/"+session.ID.String()+"/records", body, &tech)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var result visit.SaveResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.False(t, result.Duplicate)
	assert.Equal(t, stationID, result.Record.StationID)
	assert.Equal(t, 1, result.Session.InspectedOutdoor)

	// Record service observed the acting technician from the header.
	require.NotNil(t, created)
	assert.Equal(t, tech, created.TechnicianID)
}

func TestSaveRecord_Duplicate(t *testing.T) {
	svc := defaultServices()
	session := inProgressSession()
	stationID := uuid.New()
	existing := &trapline.InspectionRecord{
		ID:           uuid.New(),
		StationID:    stationID,
		SessionID:    session.ID,
		LocationKind: trapline.LocationOutdoor,
		Status:       trapline.RecordStatusOK,
		InspectedAt:  time.Now(),
	}
	svc.sessions.FindSessionByIDFn = func(ctx context.Context, id uuid.UUID) (*trapline.InspectionSession, error) {
		return session, nil
	}
	svc.records.FindRecordsBySessionFn = func(ctx context.Context, sessionID uuid.UUID) ([]*trapline.InspectionRecord, error) {
		return []*trapline.InspectionRecord{existing}, nil
	}
	s := newTestServer(svc)
	tech := session.TechnicianID

	body := `{"stationId":"` + stationID.String() + `","locationKind":"outdoor","status":"needs_service"}`
	rec := doRequest(s, http.MethodPost, "/api/sessions/"+session.ID.String()+"/records", body, &tech)
	require.Equal(t, http.StatusOK, rec.Code, "duplicate save is a benign no-op")

	var result visit.SaveResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.True(t, result.Duplicate)
	assert.Equal(t, trapline.RecordStatusOK, result.Record.Status)
}

func TestSaveRecord_SessionClosed(t *testing.T) {
	svc := defaultServices()
	session := inProgressSession()
	session.Status = trapline.SessionStatusCompleted
	svc.sessions.FindSessionByIDFn = func(ctx context.Context, id uuid.UUID) (*trapline.InspectionSession, error) {
		return session, nil
	}
	s := newTestServer(svc)
	tech := session.TechnicianID

	body := `{"stationId":"` + uuid.NewString() + `","locationKind":"outdoor","status":"ok"}`
	rec := doRequest(s, http.MethodPost, "/api/sessions/"+session.ID.String()+"/records", body, &tech)
	assert.Equal(t, http.StatusConflict, rec.Code)

	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, trapline.ESESSIONCLOSED, resp.Error)
}

func TestSaveRecord_ValidationFailure(t *testing.T) {
	svc := defaultServices()
	session := inProgressSession()
	svc.sessions.FindSessionByIDFn = func(ctx context.Context, id uuid.UUID) (*trapline.InspectionSession, error) {
		return session, nil
	}
	s := newTestServer(svc)
	tech := session.TechnicianID

	body := `{"stationId":"` + uuid.NewString() + `","locationKind":"outdoor","status":"broken"}`
	rec := doRequest(s, http.MethodPost, "/api/sessions/"+session.ID.String()+"/records", body, &tech)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, trapline.EINVALID, resp.Error)
	assert.Contains(t, resp.Fields, "status")
}

func TestWizardFlow(t *testing.T) {
	svc := defaultServices()
	session := inProgressSession()
	svc.sessions.FindSessionByIDFn = func(ctx context.Context, id uuid.UUID) (*trapline.InspectionSession, error) {
		return session, nil
	}

	stations := []trapline.Station{
		&trapline.OutdoorStation{ID: uuid.New(), CustomerID: session.CustomerID, Rank: 1},
		&trapline.OutdoorStation{ID: uuid.New(), CustomerID: session.CustomerID, Rank: 2},
	}
	svc.stations.ListStationsFn = func(ctx context.Context, customerID uuid.UUID, kind trapline.LocationKind) ([]trapline.Station, error) {
		return stations, nil
	}
	s := newTestServer(svc)
	tech := session.TechnicianID
	base := "/api/sessions/" + session.ID.String() + "/wizard"

	rec := doRequest(s, http.MethodPost, base+"/start", `{"locationKind":"outdoor"}`, &tech)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var result visit.WizardResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.Equal(t, 2, result.State.QueueLength)
	assert.Equal(t, stations[0].StationID(), *result.State.CursorStationID)

	rec = doRequest(s, http.MethodPost, base+"/next", "", &tech)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.Equal(t, 2, result.State.Position)

	rec = doRequest(s, http.MethodPost, base+"/next", "", &tech)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.True(t, result.Completed)

	// Wizard is now off; further navigation is a client error.
	rec = doRequest(s, http.MethodPost, base+"/next", "", &tech)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCompleteSession(t *testing.T) {
	svc := defaultServices()
	session := inProgressSession()
	svc.sessions.FindSessionByIDFn = func(ctx context.Context, id uuid.UUID) (*trapline.InspectionSession, error) {
		return session, nil
	}
	svc.sessions.CompleteSessionFn = func(ctx context.Context, id uuid.UUID) (*trapline.InspectionSession, error) {
		now := time.Now()
		completed := *session
		completed.Status = trapline.SessionStatusCompleted
		completed.CompletedAt = &now
		return &completed, nil
	}
	s := newTestServer(svc)
	tech := session.TechnicianID

	rec := doRequest(s, http.MethodPost, "/api/sessions/"+session.ID.String()+"/complete", "", &tech)
	require.Equal(t, http.StatusOK, rec.Code)

	var got trapline.InspectionSession
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, trapline.SessionStatusCompleted, got.Status)
	assert.NotNil(t, got.CompletedAt)
}

func TestCompleteSession_InvalidFromScheduled(t *testing.T) {
	svc := defaultServices()
	session := inProgressSession()
	session.Status = trapline.SessionStatusScheduled
	svc.sessions.FindSessionByIDFn = func(ctx context.Context, id uuid.UUID) (*trapline.InspectionSession, error) {
		return session, nil
	}
	svc.sessions.CompleteSessionFn = func(ctx context.Context, id uuid.UUID) (*trapline.InspectionSession, error) {
		return nil, trapline.InvalidTransition(trapline.SessionStatusScheduled, trapline.SessionStatusCompleted)
	}
	s := newTestServer(svc)
	tech := session.TechnicianID

	rec := doRequest(s, http.MethodPost, "/api/sessions/"+session.ID.String()+"/complete", "", &tech)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListStations(t *testing.T) {
	svc := defaultServices()
	customerID := uuid.New()
	svc.stations.ListStationsFn = func(ctx context.Context, id uuid.UUID, kind trapline.LocationKind) ([]trapline.Station, error) {
		if kind == trapline.LocationOutdoor {
			return []trapline.Station{&trapline.OutdoorStation{ID: uuid.New(), CustomerID: id, Rank: 1}}, nil
		}
		return nil, nil
	}
	s := newTestServer(svc)
	tech := uuid.New()

	rec := doRequest(s, http.MethodGet, "/api/customers/"+customerID.String()+"/stations?kind=outdoor", "", &tech)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"total":1`)

	rec = doRequest(s, http.MethodGet, "/api/customers/"+customerID.String()+"/stations?kind=basement", "", &tech)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestErrorStatusCodes(t *testing.T) {
	tests := []struct {
		code   string
		status int
	}{
		{trapline.ENOTFOUND, http.StatusNotFound},
		{trapline.EINVALID, http.StatusBadRequest},
		{trapline.EUNAUTHORIZED, http.StatusUnauthorized},
		{trapline.ECONFLICT, http.StatusConflict},
		{trapline.ESESSIONCLOSED, http.StatusConflict},
		{trapline.EUPLOADFAILED, http.StatusBadGateway},
		{trapline.EINTERNAL, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.status, errorStatusCode(tt.code), tt.code)
	}
}
