// internal/workers/document/manage-document/handler.go
package managedocument

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"ipo-readiness/internal/common/auth"
	"ipo-readiness/internal/common/camunda"
	"ipo-readiness/internal/common/errors"
	"ipo-readiness/internal/common/logger"
	"ipo-readiness/internal/documents"
	"ipo-readiness/internal/models"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

const (
	TaskType = "manage-document"
)

// DocumentManager is satisfied by *documents.Service.
type DocumentManager interface {
	Upload(ctx context.Context, actor *auth.Identity, in documents.UploadInput) (*models.Document, error)
	Delete(ctx context.Context, actor *auth.Identity, id string) error
	List(ctx context.Context, actor *auth.Identity, leadID string) ([]*models.Document, error)
}

type Handler struct {
	config    *Config
	gate      auth.Resolver
	documents DocumentManager
	responder *camunda.Responder
	logger    logger.Logger
}

func NewHandler(cfg *Config, gate auth.Resolver, svc DocumentManager, log logger.Logger) *Handler {
	l := log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:    cfg,
		gate:      gate,
		documents: svc,
		responder: camunda.NewResponder(TaskType, l),
		logger:    l,
	}
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	h.logger.Info("processing job", map[string]interface{}{
		"jobKey":      job.Key,
		"workflowKey": job.ProcessInstanceKey,
	})

	var input Input
	if err := json.Unmarshal([]byte(job.Variables), &input); err != nil {
		h.responder.Fail(context.Background(), client, job, errors.NewInvalidInputError(fmt.Sprintf("parse input: %v", err)))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	output, err := h.Execute(ctx, &input)
	if err != nil {
		h.responder.Fail(ctx, client, job, err)
		return
	}
	h.responder.Complete(ctx, client, job, output)
}

func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	action := strings.ToLower(strings.TrimSpace(input.Action))
	switch action {
	case ActionUpload, ActionList:
		if input.LeadID == "" {
			return nil, errors.NewInvalidInputError("leadId is required")
		}
	case ActionDelete:
		if input.DocumentID == "" {
			return nil, errors.NewInvalidInputError("documentId is required")
		}
	default:
		return nil, errors.NewInvalidInputError(fmt.Sprintf("unknown document action %q", input.Action))
	}

	actor, err := h.gate.Resolve(ctx, input.SessionToken)
	if err != nil {
		return nil, err
	}

	out := &Output{Action: action}
	switch action {
	case ActionUpload:
		doc, err := h.documents.Upload(ctx, actor, documents.UploadInput{
			LeadID:      input.LeadID,
			Name:        input.Name,
			ContentType: input.ContentType,
			Data:        input.Content,
		})
		if err != nil {
			return nil, err
		}
		out.Document = doc
		h.logger.Info("document uploaded", map[string]interface{}{
			"documentId": doc.ID,
			"leadId":     doc.LeadID,
			"sizeBytes":  doc.SizeBytes,
		})

	case ActionDelete:
		if err := h.documents.Delete(ctx, actor, input.DocumentID); err != nil {
			return nil, err
		}
		out.Deleted = true
		h.logger.Info("document deleted", map[string]interface{}{"documentId": input.DocumentID})

	case ActionList:
		docs, err := h.documents.List(ctx, actor, input.LeadID)
		if err != nil {
			return nil, err
		}
		out.Documents = docs
	}
	return out, nil
}
