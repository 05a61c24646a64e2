// internal/workers/assessment/update-eligibility-answers/models.go
package updateeligibilityanswers

import "ipo-readiness/internal/models"

type Input struct {
	SessionToken    string                    `json:"sessionToken"`
	AssessmentID    string                    `json:"assessmentId"`
	Answers         models.EligibilityAnswers `json:"answers"`
	ExpectedVersion int64                     `json:"expectedVersion"`
}

type Output struct {
	AssessmentID string `json:"assessmentId"`
	Version      int64  `json:"version"`
	Answered     int    `json:"answered"`
	Checked      int    `json:"checked"`
}
