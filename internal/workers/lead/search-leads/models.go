// internal/workers/lead/search-leads/models.go
package searchleads

import (
	"ipo-readiness/internal/models"
	"ipo-readiness/internal/search"
)

type Input struct {
	SessionToken string            `json:"sessionToken"`
	Text         string            `json:"text,omitempty"`
	Status       models.LeadStatus `json:"status,omitempty"`
	AssessorID   string            `json:"assessorId,omitempty"`
	Source       models.LeadSource `json:"source,omitempty"`
	Page         int               `json:"page,omitempty"`
	PageSize     int               `json:"pageSize,omitempty"`
}

type Output struct {
	Leads     []search.LeadDocument `json:"leads"`
	TotalHits int64                 `json:"totalHits"`
	Page      int                   `json:"page"`
	PageSize  int                   `json:"pageSize"`
	HasMore   bool                  `json:"hasMore"`
}
