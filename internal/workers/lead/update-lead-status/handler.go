// internal/workers/lead/update-lead-status/handler.go
package updateleadstatus

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"ipo-readiness/internal/common/auth"
	"ipo-readiness/internal/common/camunda"
	"ipo-readiness/internal/common/errors"
	"ipo-readiness/internal/common/logger"
	"ipo-readiness/internal/models"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

const (
	TaskType = "update-lead-status"
)

// StatusUpdater is satisfied by *leads.Service.
type StatusUpdater interface {
	GetLead(ctx context.Context, actor *auth.Identity, id string) (*models.Lead, error)
	UpdateLeadStatus(ctx context.Context, actor *auth.Identity, leadID string, to models.LeadStatus, expectedVersion int64, remark string) (*models.Lead, error)
}

type Handler struct {
	config    *Config
	gate      auth.Resolver
	leads     StatusUpdater
	responder *camunda.Responder
	logger    logger.Logger
}

func NewHandler(cfg *Config, gate auth.Resolver, svc StatusUpdater, log logger.Logger) *Handler {
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
	to := models.LeadStatus(strings.ToUpper(strings.TrimSpace(string(input.Status))))
	if !to.Valid() {
		return nil, errors.NewInvalidInputError(fmt.Sprintf("unknown lead status %q", input.Status))
	}
	actor, err := h.gate.Resolve(ctx, input.SessionToken)
	if err != nil {
		return nil, err
	}

	current, err := h.leads.GetLead(ctx, actor, input.LeadID)
	if err != nil {
		return nil, err
	}

	lead, err := h.leads.UpdateLeadStatus(ctx, actor, input.LeadID, to, input.ExpectedVersion, strings.TrimSpace(input.Remark))
	if err != nil {
		return nil, err
	}

	return &Output{
		Lead:           lead,
		PreviousStatus: current.Status,
		LeadStatus:     lead.Status,
		LeadVersion:    lead.Version,
	}, nil
}
