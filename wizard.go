package trapline

import "github.com/google/uuid"

// WizardMode indicates which station set the wizard is walking, or off.
type WizardMode string

const (
	WizardModeOff     WizardMode = "off"
	WizardModeOutdoor WizardMode = "outdoor"
	WizardModeIndoor  WizardMode = "indoor"
)

// WizardModeFor maps a location kind to its wizard mode.
func WizardModeFor(kind LocationKind) WizardMode {
	if kind == LocationIndoor {
		return WizardModeIndoor
	}
	return WizardModeOutdoor
}

// WizardUIState is the wizard view exposed to the UI for rendering the
// progress banner and next/prev/skip controls. Position is 1-based; it is
// zero when the wizard is off.
type WizardUIState struct {
	Mode            WizardMode `json:"mode"`
	CursorStationID *uuid.UUID `json:"cursorStationId,omitempty"`
	Position        int        `json:"position"`
	QueueLength     int        `json:"queueLength"`
}
