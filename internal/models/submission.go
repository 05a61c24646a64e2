package models

import "time"

type SubmissionStatus string

const (
	SubmissionPending   SubmissionStatus = "PENDING"
	SubmissionApproved  SubmissionStatus = "APPROVED"
	SubmissionRejected  SubmissionStatus = "REJECTED"
	SubmissionConverted SubmissionStatus = "CONVERTED"
)

// OrganicSubmission is a public lead candidate awaiting triage.
type OrganicSubmission struct {
	ID            string           `json:"id"`
	CompanyID     string           `json:"companyId"`
	CompanyName   string           `json:"companyName"`
	ContactName   string           `json:"contactName"`
	ContactEmail  string           `json:"contactEmail"`
	ContactPhone  string           `json:"contactPhone,omitempty"`
	EmailVerified bool             `json:"emailVerified"`
	Status        SubmissionStatus `json:"status"`
	LeadID        *string          `json:"leadId,omitempty"`
	CreatedAt     time.Time        `json:"createdAt"`
	UpdatedAt     time.Time        `json:"updatedAt"`
}
