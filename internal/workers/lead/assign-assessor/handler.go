// internal/workers/lead/assign-assessor/handler.go
package assignassessor

import (
	"context"
	"encoding/json"
	"fmt"

	"ipo-readiness/internal/common/auth"
	"ipo-readiness/internal/common/camunda"
	"ipo-readiness/internal/common/errors"
	"ipo-readiness/internal/common/logger"
	"ipo-readiness/internal/models"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

const (
	TaskType = "assign-assessor"
)

// Assigner is satisfied by *leads.Service.
type Assigner interface {
	AssignAssessor(ctx context.Context, actor *auth.Identity, leadID, assessorID string, expectedVersion int64) (*models.Lead, error)
}

type Handler struct {
	config    *Config
	gate      auth.Resolver
	leads     Assigner
	responder *camunda.Responder
	logger    logger.Logger
}

func NewHandler(cfg *Config, gate auth.Resolver, svc Assigner, log logger.Logger) *Handler {
	l := log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:    cfg,
		gate:      gate,
		leads:     svc,
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
	if input.LeadID == "" || input.AssessorID == "" {
		return nil, errors.NewInvalidInputError("leadId and assessorId are required")
	}
	actor, err := h.gate.Resolve(ctx, input.SessionToken)
	if err != nil {
		return nil, err
	}

	lead, err := h.leads.AssignAssessor(ctx, actor, input.LeadID, input.AssessorID, input.ExpectedVersion)
	if err != nil {
		return nil, err
	}

	return &Output{
		Lead:        lead,
		LeadStatus:  lead.Status,
		LeadVersion: lead.Version,
		AssessorID:  input.AssessorID,
	}, nil
}
