// internal/workers/assessment/complete-eligibility/models.go
package completeeligibility

import "ipo-readiness/internal/models"

type Input struct {
	SessionToken    string `json:"sessionToken"`
	AssessmentID    string `json:"assessmentId"`
	ExpectedVersion int64  `json:"expectedVersion"`
}

// Output drives the gateway after screening: ineligible leads leave the
// main questionnaire path.
type Output struct {
	AssessmentID string                    `json:"assessmentId"`
	Version      int64                     `json:"version"`
	IsEligible   bool                      `json:"isEligible"`
	Eligibility  models.EligibilityOutcome `json:"eligibility"`
	Unchecked    []models.QuestionID       `json:"unchecked,omitempty"`
}
