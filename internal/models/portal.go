package models

import "time"

// PortalCode is a one-time login code for the client portal. Only the bcrypt
// hash of the code is stored.
type PortalCode struct {
	ID         string     `json:"id"`
	Identifier string     `json:"identifier"`
	CodeHash   string     `json:"-"`
	LeadID     string     `json:"leadId"`
	ExpiresAt  time.Time  `json:"expiresAt"`
	ConsumedAt *time.Time `json:"consumedAt,omitempty"`
	CreatedAt  time.Time  `json:"createdAt"`
}
