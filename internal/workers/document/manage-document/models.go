// internal/workers/document/manage-document/models.go
package managedocument

import "ipo-readiness/internal/models"

const (
	ActionUpload = "upload"
	ActionDelete = "delete"
	ActionList   = "list"
)

// Input.Content is base64 in the job variables.
type Input struct {
	SessionToken string `json:"sessionToken"`
	Action       string `json:"action"`
	LeadID       string `json:"leadId,omitempty"`
	DocumentID   string `json:"documentId,omitempty"`
	Name         string `json:"name,omitempty"`
	ContentType  string `json:"contentType,omitempty"`
	Content      []byte `json:"content,omitempty"`
}

type Output struct {
	Action    string             `json:"action"`
	Document  *models.Document   `json:"document,omitempty"`
	Documents []*models.Document `json:"documents,omitempty"`
	Deleted   bool               `json:"deleted,omitempty"`
}
