// internal/workers/assessment/submit-assessment/models.go
package submitassessment

import "ipo-readiness/internal/models"

type Input struct {
	SessionToken    string `json:"sessionToken"`
	AssessmentID    string `json:"assessmentId"`
	ExpectedVersion int64  `json:"expectedVersion"`
}

type Output struct {
	AssessmentID string                  `json:"assessmentId"`
	Version      int64                   `json:"version"`
	Status       models.AssessmentStatus `json:"status"`
	TotalScore   int                     `json:"totalScore"`
	MaxScore     int                     `json:"maxScore"`
	Percentage   float64                 `json:"percentage"`
	Rating       models.Rating           `json:"rating"`
}
