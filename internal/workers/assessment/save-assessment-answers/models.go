// internal/workers/assessment/save-assessment-answers/models.go
package saveassessmentanswers

import (
	"ipo-readiness/internal/autosave"
	"ipo-readiness/internal/models"
)

const (
	ModeDirect   = "direct"
	ModeAutosave = "autosave"
	ModeFlush    = "flush"
)

type Input struct {
	SessionToken    string           `json:"sessionToken"`
	AssessmentID    string           `json:"assessmentId"`
	Answers         models.AnswerSet `json:"answers"`
	ExpectedVersion int64            `json:"expectedVersion"`
	Mode            string           `json:"mode,omitempty"`
}

// Output reports the saved version for direct writes and the buffer state
// for autosave modes.
type Output struct {
	AssessmentID string         `json:"assessmentId"`
	Mode         string         `json:"mode"`
	Version      int64          `json:"version"`
	SaveState    autosave.State `json:"saveState"`
	Answered     int            `json:"answered,omitempty"`
	Unsaved      bool           `json:"unsaved"`
}
