// internal/workers/lead/assign-assessor/models.go
package assignassessor

import "ipo-readiness/internal/models"

type Input struct {
	SessionToken    string `json:"sessionToken"`
	LeadID          string `json:"leadId"`
	AssessorID      string `json:"assessorId"`
	ExpectedVersion int64  `json:"expectedVersion"`
}

type Output struct {
	Lead        *models.Lead      `json:"lead"`
	LeadStatus  models.LeadStatus `json:"leadStatus"`
	LeadVersion int64             `json:"leadVersion"`
	AssessorID  string            `json:"assessorId"`
}
