// internal/workers/lead/create-lead/models.go
package createlead

import "ipo-readiness/internal/models"

type Input struct {
	SessionToken string `json:"sessionToken"`
	CompanyID    string `json:"companyId"`
	CompanyName  string `json:"companyName"`
	ContactName  string `json:"contactName"`
	ContactEmail string `json:"contactEmail"`
	ContactPhone string `json:"contactPhone,omitempty"`
}

type Output struct {
	Lead              *models.Lead `json:"lead"`
	LeadVersion       int64        `json:"leadVersion"`
	AssessmentID      string       `json:"assessmentId"`
	AssessmentVersion int64        `json:"assessmentVersion"`
	QuestionCount     int          `json:"questionCount"`
}
