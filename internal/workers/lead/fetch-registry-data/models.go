// internal/workers/lead/fetch-registry-data/models.go
package fetchregistrydata

import "ipo-readiness/internal/models"

type Input struct {
	SessionToken    string `json:"sessionToken"`
	LeadID          string `json:"leadId"`
	ExpectedVersion int64  `json:"expectedVersion"`
	Refresh         bool   `json:"refresh,omitempty"`
}

type Output struct {
	Lead          *models.Lead             `json:"lead"`
	LeadVersion   int64                    `json:"leadVersion"`
	Registry      *models.RegistrySnapshot `json:"registry"`
	FromCache     bool                     `json:"fromCache"`
	CompanyActive bool                     `json:"companyActive"`
}
