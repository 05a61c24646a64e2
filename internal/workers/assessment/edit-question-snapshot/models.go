// internal/workers/assessment/edit-question-snapshot/models.go
package editquestionsnapshot

import (
	"ipo-readiness/internal/models"
	"ipo-readiness/internal/snapshot"
)

const (
	OpAdd     = "add"
	OpEdit    = "edit"
	OpRemove  = "remove"
	OpReorder = "reorder"
)

// Input carries one snapshot edit. Which fields are read depends on Op:
// add reads Question, edit reads QuestionID and Patch, remove reads
// QuestionID, reorder reads Category and Order.
type Input struct {
	SessionToken    string                `json:"sessionToken"`
	AssessmentID    string                `json:"assessmentId"`
	Op              string                `json:"op"`
	ExpectedVersion int64                 `json:"expectedVersion"`
	Question        *snapshot.NewQuestion `json:"question,omitempty"`
	QuestionID      models.QuestionID     `json:"questionId,omitempty"`
	Patch           *snapshot.Patch       `json:"patch,omitempty"`
	Category        models.Category       `json:"category,omitempty"`
	Order           []models.QuestionID   `json:"order,omitempty"`
}

type Output struct {
	AssessmentID string                   `json:"assessmentId"`
	Op           string                   `json:"op"`
	Version      int64                    `json:"version"`
	Question     *models.SnapshotQuestion `json:"question,omitempty"`
}
