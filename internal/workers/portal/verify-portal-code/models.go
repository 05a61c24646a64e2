// internal/workers/portal/verify-portal-code/models.go
package verifyportalcode

import "time"

type Input struct {
	Identifier string `json:"identifier"`
	Code       string `json:"code"`
}

type Output struct {
	Verified     bool      `json:"verified"`
	LeadID       string    `json:"leadId"`
	SessionToken string    `json:"sessionToken"`
	ExpiresAt    time.Time `json:"expiresAt"`
}
