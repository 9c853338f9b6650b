package visit

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/fernwick/trapline"
	"github.com/fernwick/trapline/mock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeStore is an in-memory backend with the same transactional semantics as
// the real record service: status precondition, auto-start, unique record key,
// and counter increment all succeed or fail as a unit.
type fakeStore struct {
	mu      sync.Mutex
	session *trapline.InspectionSession
	records map[uuid.UUID]*trapline.InspectionRecord
}

func newFakeStore(session *trapline.InspectionSession) *fakeStore {
	return &fakeStore{
		session: session,
		records: make(map[uuid.UUID]*trapline.InspectionRecord),
	}
}

func (f *fakeStore) snapshot() *trapline.InspectionSession {
	clone := *f.session
	return &clone
}

func (f *fakeStore) FindSessionByID(ctx context.Context, id uuid.UUID) (*trapline.InspectionSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if id != f.session.ID {
		return nil, trapline.NotFound("Session not found")
	}
	return f.snapshot(), nil
}

func (f *fakeStore) FindSessions(ctx context.Context, filter trapline.SessionFilter) ([]*trapline.InspectionSession, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return []*trapline.InspectionSession{f.snapshot()}, 1, nil
}

func (f *fakeStore) CreateSession(ctx context.Context, session *trapline.InspectionSession) error {
	return nil
}

func (f *fakeStore) StartSession(ctx context.Context, id uuid.UUID) (*trapline.InspectionSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	switch f.session.Status {
	case trapline.SessionStatusInProgress:
		return f.snapshot(), nil
	case trapline.SessionStatusCompleted:
		return nil, trapline.InvalidTransition(f.session.Status, trapline.SessionStatusInProgress)
	}
	now := time.Now()
	f.session.Status = trapline.SessionStatusInProgress
	f.session.StartedAt = &now
	return f.snapshot(), nil
}

func (f *fakeStore) CompleteSession(ctx context.Context, id uuid.UUID) (*trapline.InspectionSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.session.Status != trapline.SessionStatusInProgress {
		return nil, trapline.InvalidTransition(f.session.Status, trapline.SessionStatusCompleted)
	}
	now := time.Now()
	f.session.Status = trapline.SessionStatusCompleted
	f.session.CompletedAt = &now
	return f.snapshot(), nil
}

func (f *fakeStore) CreateRecord(ctx context.Context, record *trapline.InspectionRecord) (*trapline.InspectionSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.session.Status == trapline.SessionStatusCompleted {
		return nil, trapline.SessionClosed("Session is completed")
	}
	if _, exists := f.records[record.StationID]; exists {
		return nil, trapline.Conflict("Station already inspected in this session")
	}
	if f.session.Status == trapline.SessionStatusScheduled {
		now := time.Now()
		f.session.Status = trapline.SessionStatusInProgress
		f.session.StartedAt = &now
	}

	record.ID = uuid.New()
	record.InspectedAt = time.Now()
	stored := *record
	f.records[record.StationID] = &stored

	if record.LocationKind == trapline.LocationIndoor {
		f.session.InspectedIndoor++
	} else {
		f.session.InspectedOutdoor++
	}
	return f.snapshot(), nil
}

func (f *fakeStore) FindRecord(ctx context.Context, stationID, sessionID uuid.UUID) (*trapline.InspectionRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	record, ok := f.records[stationID]
	if !ok {
		return nil, trapline.NotFound("Record not found")
	}
	clone := *record
	return &clone, nil
}

func (f *fakeStore) FindRecordsBySession(ctx context.Context, sessionID uuid.UUID) ([]*trapline.InspectionRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var records []*trapline.InspectionRecord
	for _, record := range f.records {
		clone := *record
		records = append(records, &clone)
	}
	return records, nil
}

func testSession(status trapline.SessionStatus, totalOutdoor, totalIndoor int) *trapline.InspectionSession {
	return &trapline.InspectionSession{
		ID:           uuid.New(),
		CaseID:       uuid.New(),
		CustomerID:   uuid.New(),
		TechnicianID: uuid.New(),
		Status:       status,
		TotalOutdoor: totalOutdoor,
		TotalIndoor:  totalIndoor,
	}
}

func outdoorStations(customerID uuid.UUID, n int) []*trapline.OutdoorStation {
	stations := make([]*trapline.OutdoorStation, n)
	for i := range stations {
		stations[i] = &trapline.OutdoorStation{
			ID:            uuid.New(),
			CustomerID:    customerID,
			DisplayNumber: i + 1,
			Rank:          i + 1,
		}
	}
	return stations
}

func stationServiceFor(outdoor []*trapline.OutdoorStation) *mock.StationService {
	return &mock.StationService{
		ListStationsFn: func(ctx context.Context, customerID uuid.UUID, kind trapline.LocationKind) ([]trapline.Station, error) {
			if kind != trapline.LocationOutdoor {
				return nil, nil
			}
			stations := make([]trapline.Station, 0, len(outdoor))
			for _, st := range outdoor {
				stations = append(stations, st)
			}
			return stations, nil
		},
	}
}

func openEngine(t *testing.T, store *fakeStore, stations trapline.StationService, photos trapline.FileStorage) *Engine {
	t.Helper()
	if photos == nil {
		photos = &mock.FileStorage{}
	}
	eng := NewEngine(Config{
		Sessions: store,
		Records:  store,
		Stations: stations,
		Photos:   photos,
	}, store.session.ID)
	require.NoError(t, eng.Open(context.Background()))
	return eng
}

func TestEngine_SaveAutoStartsSession(t *testing.T) {
	store := newFakeStore(testSession(trapline.SessionStatusScheduled, 3, 0))
	eng := openEngine(t, store, &mock.StationService{}, nil)

	result, err := eng.Save(context.Background(), SaveInput{
		StationID: uuid.New(),
		Kind:      trapline.LocationOutdoor,
		Status:    trapline.RecordStatusOK,
	})
	require.NoError(t, err)

	assert.Equal(t, trapline.SessionStatusInProgress, result.Session.Status)
	assert.NotNil(t, result.Session.StartedAt)
	assert.Equal(t, 1, result.Session.InspectedOutdoor)
	assert.False(t, result.Duplicate)
}

func TestEngine_CounterInvariant(t *testing.T) {
	store := newFakeStore(testSession(trapline.SessionStatusInProgress, 5, 2))
	eng := openEngine(t, store, &mock.StationService{}, nil)
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		_, err := eng.Save(ctx, SaveInput{
			StationID: uuid.New(),
			Kind:      trapline.LocationOutdoor,
			Status:    trapline.RecordStatusOK,
		})
		require.NoError(t, err)
	}
	_, err := eng.Save(ctx, SaveInput{
		StationID: uuid.New(),
		Kind:      trapline.LocationIndoor,
		Status:    trapline.RecordStatusActivity,
	})
	require.NoError(t, err)

	session := eng.Session()
	assert.Equal(t, 4, session.InspectedOutdoor)
	assert.Equal(t, 1, session.InspectedIndoor)
	assert.Len(t, store.records, 5)
}

func TestEngine_DuplicateSaveIsNoOp(t *testing.T) {
	store := newFakeStore(testSession(trapline.SessionStatusInProgress, 2, 0))
	eng := openEngine(t, store, &mock.StationService{}, nil)
	ctx := context.Background()
	stationID := uuid.New()

	first, err := eng.Save(ctx, SaveInput{
		StationID: stationID,
		Kind:      trapline.LocationOutdoor,
		Status:    trapline.RecordStatusOK,
	})
	require.NoError(t, err)
	require.False(t, first.Duplicate)

	second, err := eng.Save(ctx, SaveInput{
		StationID: stationID,
		Kind:      trapline.LocationOutdoor,
		Status:    trapline.RecordStatusActivity,
	})
	require.NoError(t, err)
	assert.True(t, second.Duplicate)
	// The existing record is surfaced, not the attempted overwrite.
	assert.Equal(t, trapline.RecordStatusOK, second.Record.Status)
	assert.Equal(t, 1, eng.Session().InspectedOutdoor)
}

func TestEngine_ConcurrentDoubleSubmit(t *testing.T) {
	store := newFakeStore(testSession(trapline.SessionStatusInProgress, 1, 0))
	stationID := uuid.New()

	// Two engines simulate two devices racing on the same station. Only the
	// shared store's unique key arbitrates.
	engA := openEngine(t, store, &mock.StationService{}, nil)
	engB := openEngine(t, store, &mock.StationService{}, nil)

	var wg sync.WaitGroup
	results := make([]*SaveResult, 2)
	errs := make([]error, 2)
	for i, eng := range []*Engine{engA, engB} {
		wg.Add(1)
		go func(i int, eng *Engine) {
			defer wg.Done()
			results[i], errs[i] = eng.Save(context.Background(), SaveInput{
				StationID: stationID,
				Kind:      trapline.LocationOutdoor,
				Status:    trapline.RecordStatusOK,
			})
		}(i, eng)
	}
	wg.Wait()

	require.NoError(t, errs[0])
	require.NoError(t, errs[1])

	duplicates := 0
	for _, result := range results {
		if result.Duplicate {
			duplicates++
		}
	}
	assert.Equal(t, 1, duplicates, "exactly one save must resolve as a duplicate")
	assert.Equal(t, 1, store.session.InspectedOutdoor, "counter must count the station once")
	assert.Len(t, store.records, 1)
}

func TestEngine_SaveRejectedWhenCompleted(t *testing.T) {
	store := newFakeStore(testSession(trapline.SessionStatusCompleted, 1, 0))
	eng := openEngine(t, store, &mock.StationService{}, nil)

	_, err := eng.Save(context.Background(), SaveInput{
		StationID: uuid.New(),
		Kind:      trapline.LocationOutdoor,
		Status:    trapline.RecordStatusOK,
	})
	require.Error(t, err)
	assert.True(t, trapline.IsErrorCode(err, trapline.ESESSIONCLOSED))
	assert.Empty(t, store.records)
}

func TestEngine_CompletionRaceMarksSessionClosed(t *testing.T) {
	// The engine believes the session is open; another device completes it
	// between the local check and the store write.
	store := newFakeStore(testSession(trapline.SessionStatusInProgress, 2, 0))
	eng := openEngine(t, store, &mock.StationService{}, nil)

	_, err := store.CompleteSession(context.Background(), store.session.ID)
	require.NoError(t, err)

	_, err = eng.Save(context.Background(), SaveInput{
		StationID: uuid.New(),
		Kind:      trapline.LocationOutdoor,
		Status:    trapline.RecordStatusOK,
	})
	require.Error(t, err)
	assert.True(t, trapline.IsErrorCode(err, trapline.ESESSIONCLOSED))
	assert.Equal(t, trapline.SessionStatusCompleted, eng.Session().Status)
}

func TestEngine_PhotoUploadFailureAbortsSave(t *testing.T) {
	store := newFakeStore(testSession(trapline.SessionStatusScheduled, 1, 0))
	photos := &mock.FileStorage{
		UploadFn: func(ctx context.Context, key string, reader io.Reader, contentType string) (string, error) {
			return "", fmt.Errorf("bucket unreachable")
		},
	}
	eng := openEngine(t, store, &mock.StationService{}, photos)

	_, err := eng.Save(context.Background(), SaveInput{
		StationID: uuid.New(),
		Kind:      trapline.LocationOutdoor,
		Status:    trapline.RecordStatusActivity,
		Photo:     &PhotoInput{Reader: strings.NewReader("img"), ContentType: "image/jpeg"},
	})
	require.Error(t, err)
	assert.True(t, trapline.IsErrorCode(err, trapline.EUPLOADFAILED))

	// Nothing persisted, session untouched: the failed upload aborted the
	// whole save before auto-start.
	assert.Empty(t, store.records)
	assert.Equal(t, trapline.SessionStatusScheduled, store.session.Status)
	assert.Zero(t, store.session.InspectedOutdoor)
}

func TestEngine_CreateFailureDeletesUploadedPhoto(t *testing.T) {
	var uploadedKey string
	var deletedKey string
	photos := &mock.FileStorage{
		UploadFn: func(ctx context.Context, key string, reader io.Reader, contentType string) (string, error) {
			uploadedKey = key
			return "https://mock-storage.example.com/" + key, nil
		},
		DeleteFn: func(ctx context.Context, key string) error {
			deletedKey = key
			return nil
		},
	}
	session := testSession(trapline.SessionStatusInProgress, 1, 0)
	sessions := &mock.SessionService{
		FindSessionByIDFn: func(ctx context.Context, id uuid.UUID) (*trapline.InspectionSession, error) {
			return session, nil
		},
	}
	records := &mock.RecordService{
		CreateRecordFn: func(ctx context.Context, record *trapline.InspectionRecord) (*trapline.InspectionSession, error) {
			return nil, trapline.Internal("insert failed", fmt.Errorf("connection reset"))
		},
	}
	eng := NewEngine(Config{
		Sessions: sessions,
		Records:  records,
		Stations: &mock.StationService{},
		Photos:   photos,
	}, session.ID)
	require.NoError(t, eng.Open(context.Background()))

	_, err := eng.Save(context.Background(), SaveInput{
		StationID: uuid.New(),
		Kind:      trapline.LocationOutdoor,
		Status:    trapline.RecordStatusOK,
		Photo:     &PhotoInput{Reader: strings.NewReader("img"), ContentType: "image/png"},
	})
	require.Error(t, err)
	assert.True(t, trapline.IsErrorCode(err, trapline.EINTERNAL))
	assert.NotEmpty(t, uploadedKey)
	assert.Equal(t, uploadedKey, deletedKey, "orphaned photo must be cleaned up")
}

func TestEngine_SaveWithPhotoStoresPath(t *testing.T) {
	store := newFakeStore(testSession(trapline.SessionStatusInProgress, 1, 0))
	eng := openEngine(t, store, &mock.StationService{}, nil)

	result, err := eng.Save(context.Background(), SaveInput{
		StationID: uuid.New(),
		Kind:      trapline.LocationOutdoor,
		Status:    trapline.RecordStatusNeedsService,
		Findings:  "bait depleted",
		Photo:     &PhotoInput{Reader: strings.NewReader("img"), ContentType: "image/jpeg"},
	})
	require.NoError(t, err)
	assert.True(t, result.Record.HasPhoto())
	assert.Contains(t, result.Record.PhotoPath, store.session.ID.String())
}

func TestEngine_ValidateSave(t *testing.T) {
	store := newFakeStore(testSession(trapline.SessionStatusInProgress, 1, 0))
	eng := openEngine(t, store, &mock.StationService{}, nil)
	ctx := context.Background()

	_, err := eng.Save(ctx, SaveInput{Kind: trapline.LocationOutdoor, Status: trapline.RecordStatusOK})
	assert.True(t, trapline.IsErrorCode(err, trapline.EINVALID), "missing station ID")

	_, err = eng.Save(ctx, SaveInput{StationID: uuid.New(), Kind: "rooftop", Status: trapline.RecordStatusOK})
	assert.True(t, trapline.IsErrorCode(err, trapline.EINVALID), "bad location kind")

	_, err = eng.Save(ctx, SaveInput{
		StationID:       uuid.New(),
		Kind:            trapline.LocationOutdoor,
		Status:          trapline.RecordStatusOK,
		MeasurementUnit: "g",
	})
	assert.True(t, trapline.IsErrorCode(err, trapline.EINVALID), "unit without value")
}

func TestEngine_QuickOK(t *testing.T) {
	store := newFakeStore(testSession(trapline.SessionStatusInProgress, 1, 0))
	eng := openEngine(t, store, &mock.StationService{}, nil)

	result, err := eng.QuickOK(context.Background(), uuid.New(), trapline.LocationOutdoor)
	require.NoError(t, err)
	assert.Equal(t, trapline.RecordStatusOK, result.Record.Status)
	assert.Empty(t, result.Record.Findings)
	assert.False(t, result.Record.HasPhoto())
}

func TestEngine_ResumptionRebuildsState(t *testing.T) {
	customerID := uuid.New()
	session := testSession(trapline.SessionStatusScheduled, 3, 0)
	session.CustomerID = customerID
	store := newFakeStore(session)
	stations := outdoorStations(customerID, 3)
	svc := stationServiceFor(stations)

	eng := openEngine(t, store, svc, nil)
	ctx := context.Background()
	for _, st := range stations[:2] {
		_, err := eng.Save(ctx, SaveInput{
			StationID: st.ID,
			Kind:      trapline.LocationOutdoor,
			Status:    trapline.RecordStatusOK,
		})
		require.NoError(t, err)
	}

	// A fresh engine (app restart) must rebuild the inspected-set from the
	// store and exclude finished stations from a new wizard queue.
	resumed := openEngine(t, store, svc, nil)
	set := resumed.InspectedSet()
	assert.Len(t, set, 2)
	assert.True(t, set[stations[0].ID])
	assert.True(t, set[stations[1].ID])

	result, err := resumed.StartWizard(ctx, trapline.LocationOutdoor)
	require.NoError(t, err)
	require.False(t, result.NothingToDo)
	assert.Equal(t, 1, result.State.QueueLength)
	assert.Equal(t, stations[2].ID, *result.State.CursorStationID)

	progress, err := resumed.Progress()
	require.NoError(t, err)
	assert.Equal(t, 2, progress.InspectedStations)
}

func TestEngine_EarlyCompletionAllowed(t *testing.T) {
	store := newFakeStore(testSession(trapline.SessionStatusInProgress, 10, 5))
	store.session.InspectedOutdoor = 2

	session, err := store.CompleteSession(context.Background(), store.session.ID)
	require.NoError(t, err)
	assert.Equal(t, trapline.SessionStatusCompleted, session.Status)
	assert.NotNil(t, session.CompletedAt)
	assert.Equal(t, 2, session.InspectedOutdoor, "partial progress is preserved")
}

func TestEngine_SummaryOrdering(t *testing.T) {
	store := newFakeStore(testSession(trapline.SessionStatusInProgress, 3, 0))
	eng := openEngine(t, store, &mock.StationService{}, nil)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := eng.Save(ctx, SaveInput{
			StationID: uuid.New(),
			Kind:      trapline.LocationOutdoor,
			Status:    trapline.RecordStatusOK,
		})
		require.NoError(t, err)
	}

	results, err := eng.Summary()
	require.NoError(t, err)
	require.Len(t, results, 3)
	for i := 1; i < len(results); i++ {
		assert.Less(t, results[i-1].StationID.String(), results[i].StationID.String())
	}
}

func TestManager_CompleteDropsEngine(t *testing.T) {
	store := newFakeStore(testSession(trapline.SessionStatusInProgress, 1, 0))
	mgr := NewManager(Config{
		Sessions: store,
		Records:  store,
		Stations: &mock.StationService{},
		Photos:   &mock.FileStorage{},
	})
	ctx := context.Background()

	eng, err := mgr.Engine(ctx, store.session.ID)
	require.NoError(t, err)
	require.NotNil(t, eng)

	// Same session returns the same live engine.
	again, err := mgr.Engine(ctx, store.session.ID)
	require.NoError(t, err)
	assert.Same(t, eng, again)

	_, err = mgr.Complete(ctx, store.session.ID)
	require.NoError(t, err)
	assert.Equal(t, trapline.SessionStatusCompleted, eng.Session().Status)

	// A completed session gets a fresh engine on next access, rebuilt from
	// the store's terminal state.
	fresh, err := mgr.Engine(ctx, store.session.ID)
	require.NoError(t, err)
	assert.NotSame(t, eng, fresh)
}

func TestManager_StartIsIdempotent(t *testing.T) {
	store := newFakeStore(testSession(trapline.SessionStatusScheduled, 1, 0))
	mgr := NewManager(Config{
		Sessions: store,
		Records:  store,
		Stations: &mock.StationService{},
		Photos:   &mock.FileStorage{},
	})
	ctx := context.Background()

	first, err := mgr.Start(ctx, store.session.ID)
	require.NoError(t, err)
	assert.Equal(t, trapline.SessionStatusInProgress, first.Status)
	startedAt := first.StartedAt

	second, err := mgr.Start(ctx, store.session.ID)
	require.NoError(t, err)
	assert.Equal(t, trapline.SessionStatusInProgress, second.Status)
	assert.Equal(t, startedAt, second.StartedAt, "re-start must not reset StartedAt")

	_, err = mgr.Complete(ctx, store.session.ID)
	require.NoError(t, err)

	_, err = mgr.Start(ctx, store.session.ID)
	require.Error(t, err)
	assert.True(t, trapline.IsErrorCode(err, trapline.EINVALID))
}
