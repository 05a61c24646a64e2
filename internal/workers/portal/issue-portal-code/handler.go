// internal/workers/portal/issue-portal-code/handler.go
package issueportalcode

import (
	"context"
	"encoding/json"
	"fmt"

	"ipo-readiness/internal/common/auth"
	"ipo-readiness/internal/common/camunda"
	"ipo-readiness/internal/common/errors"
	"ipo-readiness/internal/common/logger"
	"ipo-readiness/internal/models"
	"ipo-readiness/internal/portal"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

const (
	TaskType = "issue-portal-code"
)

// CodeIssuer is satisfied by *portal.Service.
type CodeIssuer interface {
	IssueCode(ctx context.Context, leadID string) (*portal.Issued, error)
}

type Handler struct {
	config    *Config
	gate      auth.Resolver
	portal    CodeIssuer
	responder *camunda.Responder
	logger    logger.Logger
}

func NewHandler(cfg *Config, gate auth.Resolver, svc CodeIssuer, log logger.Logger) *Handler {
	l := log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:    cfg,
		gate:      gate,
		portal:    svc,
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
	if input.LeadID == "" {
		return nil, errors.NewInvalidInputError("leadId is required")
	}
	actor, err := h.gate.Resolve(ctx, input.SessionToken)
	if err != nil {
		return nil, err
	}
	if err := auth.Authorize(actor, "issue portal code", models.RoleReviewer); err != nil {
		return nil, err
	}

	issued, err := h.portal.IssueCode(ctx, input.LeadID)
	if err != nil {
		return nil, err
	}
	return &Output{
		Identifier: issued.Identifier,
		LeadID:     issued.LeadID,
		ExpiresAt:  issued.ExpiresAt,
	}, nil
}
