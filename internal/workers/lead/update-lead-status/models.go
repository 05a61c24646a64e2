// internal/workers/lead/update-lead-status/models.go
package updateleadstatus

import "ipo-readiness/internal/models"

type Input struct {
	SessionToken    string            `json:"sessionToken"`
	LeadID          string            `json:"leadId"`
	Status          models.LeadStatus `json:"status"`
	ExpectedVersion int64             `json:"expectedVersion"`
	Remark          string            `json:"remark,omitempty"`
}

type Output struct {
	Lead           *models.Lead      `json:"lead"`
	PreviousStatus models.LeadStatus `json:"previousStatus"`
	LeadStatus     models.LeadStatus `json:"leadStatus"`
	LeadVersion    int64             `json:"leadVersion"`
}
