// internal/workers/lead/confirm-payment/models.go
package confirmpayment

import "ipo-readiness/internal/models"

// Input comes from the payment processor callback, not from a staff session.
type Input struct {
	LeadID     string  `json:"leadId"`
	PaymentRef string  `json:"paymentRef"`
	Amount     float64 `json:"amount"`
	Currency   string  `json:"currency"`
}

type Output struct {
	Lead             *models.Lead      `json:"lead"`
	LeadStatus       models.LeadStatus `json:"leadStatus"`
	AlreadyCompleted bool              `json:"alreadyCompleted"`
}
