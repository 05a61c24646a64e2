// internal/workers/assessment/review-assessment/models.go
package reviewassessment

import "ipo-readiness/internal/models"

const (
	DecisionApprove = "approve"
	DecisionReject  = "reject"
	DecisionReopen  = "reopen"
)

type Input struct {
	SessionToken string `json:"sessionToken"`
	AssessmentID string `json:"assessmentId"`
	Decision     string `json:"decision"`
	Remark       string `json:"remark,omitempty"`
}

type Output struct {
	AssessmentID string                  `json:"assessmentId"`
	Decision     string                  `json:"decision"`
	Status       models.AssessmentStatus `json:"status"`
	Version      int64                   `json:"version"`
	Percentage   float64                 `json:"percentage"`
	Rating       models.Rating           `json:"rating,omitempty"`
}
