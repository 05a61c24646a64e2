// internal/workers/portal/issue-portal-code/models.go
package issueportalcode

import "time"

type Input struct {
	SessionToken string `json:"sessionToken"`
	LeadID       string `json:"leadId"`
}

// Output never carries the code itself; it only reaches the contact.
type Output struct {
	Identifier string    `json:"identifier"`
	LeadID     string    `json:"leadId"`
	ExpiresAt  time.Time `json:"expiresAt"`
}
