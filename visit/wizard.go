package visit

import (
	"context"

	"github.com/fernwick/trapline"
	"github.com/google/uuid"
)

// wizardState is the ephemeral traversal state over the stations still
// pending inspection. It is never persisted; resumption rebuilds it from the
// inspected-set. The queue order is fixed at build time (placement rank, ties
// by ID) and only changed by explicit skips.
type wizardState struct {
	mode   trapline.WizardMode
	queue  []uuid.UUID
	cursor int // index into queue; valid only while mode != off
}

func (w *wizardState) active() bool {
	return w.mode != "" && w.mode != trapline.WizardModeOff
}

func (w *wizardState) reset() {
	w.mode = trapline.WizardModeOff
	w.queue = nil
	w.cursor = 0
}

// remove drops a station from the queue if present, regardless of position.
// When the removed station is the cursor, removal and advance are the same
// operation: the cursor index now points at the next pending station, and the
// wizard ends if nothing remains. Returns (removed, advanced).
func (w *wizardState) remove(stationID uuid.UUID) (bool, bool) {
	if !w.active() {
		return false, false
	}
	idx := -1
	for i, id := range w.queue {
		if id == stationID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return false, false
	}
	w.queue = append(w.queue[:idx], w.queue[idx+1:]...)
	switch {
	case len(w.queue) == 0:
		w.reset()
		return true, true
	case idx < w.cursor:
		w.cursor--
		return true, false
	case idx == w.cursor:
		if w.cursor >= len(w.queue) {
			w.cursor = 0
		}
		return true, true
	default:
		return true, false
	}
}

func (w *wizardState) uiState() trapline.WizardUIState {
	if !w.active() {
		return trapline.WizardUIState{Mode: trapline.WizardModeOff}
	}
	cursorID := w.queue[w.cursor]
	return trapline.WizardUIState{
		Mode:            w.mode,
		CursorStationID: &cursorID,
		Position:        w.cursor + 1,
		QueueLength:     len(w.queue),
	}
}

// WizardResult reports the outcome of a wizard operation.
type WizardResult struct {
	State trapline.WizardUIState `json:"state"`

	// NothingToDo is set by StartWizard when every candidate station is
	// already inspected; the wizard did not enter the requested mode.
	NothingToDo bool `json:"nothingToDo,omitempty"`

	// Completed is set when an advance walked past the last pending station
	// and the wizard ended.
	Completed bool `json:"completed,omitempty"`

	// AtStart is set by Previous when the cursor was already at the first
	// element; the call is a no-op with a user-visible notice, not an error.
	AtStart bool `json:"atStart,omitempty"`
}

// StartWizard builds the pending-station queue for one location kind and
// opens the first station. Stations already in the inspected-set are excluded
// from the queue at build time; if nothing remains the wizard reports success
// without entering wizard mode.
func (e *Engine) StartWizard(ctx context.Context, kind trapline.LocationKind) (*WizardResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.requireOpen(); err != nil {
		return nil, err
	}
	if !kind.IsValid() {
		return nil, trapline.Invalid("Unknown location kind %q", kind)
	}

	stations, err := e.stations.ListStations(ctx, e.session.CustomerID, kind)
	if err != nil {
		return nil, err
	}
	trapline.SortStations(stations)

	queue := make([]uuid.UUID, 0, len(stations))
	for _, st := range stations {
		if _, done := e.inspected[st.StationID()]; !done {
			queue = append(queue, st.StationID())
		}
	}

	if len(queue) == 0 {
		e.wizard.reset()
		e.logger.Info("wizard not started, all stations inspected",
			"session_id", e.session.ID, "kind", kind)
		return &WizardResult{State: e.wizard.uiState(), NothingToDo: true}, nil
	}

	e.wizard = wizardState{
		mode:   trapline.WizardModeFor(kind),
		queue:  queue,
		cursor: 0,
	}
	e.logger.Info("wizard started",
		"session_id", e.session.ID, "kind", kind, "pending", len(queue))
	return &WizardResult{State: e.wizard.uiState()}, nil
}

// Next advances the cursor to the following pending station. Advancing past
// the last element ends the wizard and reports completion.
func (e *Engine) Next() (*WizardResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.wizard.active() {
		return nil, trapline.Invalid("Wizard is not active")
	}
	if e.wizard.cursor+1 >= len(e.wizard.queue) {
		e.wizard.reset()
		return &WizardResult{State: e.wizard.uiState(), Completed: true}, nil
	}
	e.wizard.cursor++
	return &WizardResult{State: e.wizard.uiState()}, nil
}

// Previous moves the cursor back one station. At the first element it is a
// no-op that reports AtStart.
func (e *Engine) Previous() (*WizardResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.wizard.active() {
		return nil, trapline.Invalid("Wizard is not active")
	}
	if e.wizard.cursor == 0 {
		return &WizardResult{State: e.wizard.uiState(), AtStart: true}, nil
	}
	e.wizard.cursor--
	return &WizardResult{State: e.wizard.uiState()}, nil
}

// Skip rotates the cursor station to the end of the queue and opens the new
// first pending station. Skip is a pure reordering: it never removes a
// station from the queue, so a single-element queue is unchanged.
func (e *Engine) Skip() (*WizardResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.wizard.active() {
		return nil, trapline.Invalid("Wizard is not active")
	}
	skipped := e.wizard.queue[e.wizard.cursor]
	e.wizard.queue = append(e.wizard.queue[:e.wizard.cursor], e.wizard.queue[e.wizard.cursor+1:]...)
	e.wizard.queue = append(e.wizard.queue, skipped)
	e.wizard.cursor = 0
	return &WizardResult{State: e.wizard.uiState()}, nil
}

// StopWizard clears the wizard state without touching persisted data.
func (e *Engine) StopWizard() trapline.WizardUIState {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.wizard.reset()
	return e.wizard.uiState()
}

// WizardState returns the current wizard view.
func (e *Engine) WizardState() trapline.WizardUIState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.wizard.uiState()
}
