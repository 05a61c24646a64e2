package models

import "time"

const (
	EntityLead       = "lead"
	EntityAssessment = "assessment"
	EntitySnapshot   = "question_snapshot"
	EntitySubmission = "organic_submission"
	EntityDocument   = "document"
)

// AuditEntry records one lifecycle change, written in the same transaction.
type AuditEntry struct {
	ID         string                 `json:"id"`
	EntityType string                 `json:"entityType"`
	EntityID   string                 `json:"entityId"`
	Action     string                 `json:"action"`
	ActorID    string                 `json:"actorId"`
	OldStatus  string                 `json:"oldStatus,omitempty"`
	NewStatus  string                 `json:"newStatus,omitempty"`
	Remark     string                 `json:"remark,omitempty"`
	Metadata   map[string]interface{} `json:"metadata,omitempty"`
	CreatedAt  time.Time              `json:"createdAt"`
}
