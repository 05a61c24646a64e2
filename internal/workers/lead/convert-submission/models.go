// internal/workers/lead/convert-submission/models.go
package convertsubmission

import "ipo-readiness/internal/models"

type Action string

const (
	ActionSubmit  Action = "submit"
	ActionApprove Action = "approve"
	ActionReject  Action = "reject"
	ActionConvert Action = "convert"
)

// Input drives one step of the organic submission lifecycle. Submit is the
// public intake and carries the contact fields instead of a session token.
type Input struct {
	SessionToken string `json:"sessionToken,omitempty"`
	Action       Action `json:"action"`
	SubmissionID string `json:"submissionId,omitempty"`
	Remark       string `json:"remark,omitempty"`

	CompanyID     string `json:"companyId,omitempty"`
	CompanyName   string `json:"companyName,omitempty"`
	ContactName   string `json:"contactName,omitempty"`
	ContactEmail  string `json:"contactEmail,omitempty"`
	ContactPhone  string `json:"contactPhone,omitempty"`
	EmailVerified bool   `json:"emailVerified,omitempty"`
}

type Output struct {
	SubmissionID     string                  `json:"submissionId"`
	SubmissionStatus models.SubmissionStatus `json:"submissionStatus"`
	Lead             *models.Lead            `json:"lead,omitempty"`
	AssessmentID     string                  `json:"assessmentId,omitempty"`
}
