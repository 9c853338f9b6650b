package visit

import (
	"context"
	"sync"

	"github.com/fernwick/trapline"
	"github.com/fernwick/trapline/internal/metrics"
	"github.com/google/uuid"
)

// Manager hands out one engine per session and keeps session lifecycle
// changes in sync with any live engine. The resumption load happens inside
// Engine.Open, so an engine obtained here is always ready before the wizard
// can build a queue.
type Manager struct {
	mu      sync.Mutex
	cfg     Config
	engines map[uuid.UUID]*Engine
}

// NewManager creates an engine registry with shared collaborators.
func NewManager(cfg Config) *Manager {
	return &Manager{
		cfg:     cfg,
		engines: make(map[uuid.UUID]*Engine),
	}
}

// Engine returns the live engine for a session, opening a new one on first
// use. Opening loads the session and resumption state.
func (m *Manager) Engine(ctx context.Context, sessionID uuid.UUID) (*Engine, error) {
	m.mu.Lock()
	if eng, ok := m.engines[sessionID]; ok {
		m.mu.Unlock()
		return eng, nil
	}
	m.mu.Unlock()

	eng := NewEngine(m.cfg, sessionID)
	if err := eng.Open(ctx); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	// Another request may have opened the same session concurrently.
	if existing, ok := m.engines[sessionID]; ok {
		return existing, nil
	}
	m.engines[sessionID] = eng
	return eng, nil
}

// Start moves a session to in_progress and syncs any live engine.
func (m *Manager) Start(ctx context.Context, sessionID uuid.UUID) (*trapline.InspectionSession, error) {
	session, err := m.cfg.Sessions.StartSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	metrics.SessionsStarted.Inc()
	m.sync(session)
	return session, nil
}

// Complete moves a session to completed, syncs any live engine, and drops it
// from the registry: a completed session is terminal and accepts no writes.
func (m *Manager) Complete(ctx context.Context, sessionID uuid.UUID) (*trapline.InspectionSession, error) {
	session, err := m.cfg.Sessions.CompleteSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	metrics.SessionsCompleted.Inc()
	m.sync(session)

	m.mu.Lock()
	delete(m.engines, sessionID)
	m.mu.Unlock()
	return session, nil
}

// Release drops a session's engine from the registry, e.g. when the
// technician leaves the visit without completing it. State is rebuilt from
// persisted records on the next open.
func (m *Manager) Release(sessionID uuid.UUID) {
	m.mu.Lock()
	delete(m.engines, sessionID)
	m.mu.Unlock()
}

func (m *Manager) sync(session *trapline.InspectionSession) {
	m.mu.Lock()
	eng, ok := m.engines[session.ID]
	m.mu.Unlock()
	if !ok {
		return
	}
	eng.mu.Lock()
	eng.session = session
	eng.mu.Unlock()
}
