// internal/workers/lead/create-lead/handler.go
package createlead

import (
	"context"
	"encoding/json"
	"fmt"

	"ipo-readiness/internal/common/auth"
	"ipo-readiness/internal/common/camunda"
	"ipo-readiness/internal/common/errors"
	"ipo-readiness/internal/common/logger"
	"ipo-readiness/internal/leads"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

const (
	TaskType = "create-lead"
)

// LeadCreator is satisfied by *leads.Service.
type LeadCreator interface {
	CreateLead(ctx context.Context, actor *auth.Identity, in leads.CreateLeadInput) (*leads.Created, error)
}

type Handler struct {
	config    *Config
	gate      auth.Resolver
	leads     LeadCreator
	responder *camunda.Responder
	logger    logger.Logger
}

func NewHandler(cfg *Config, gate auth.Resolver, svc LeadCreator, log logger.Logger) *Handler {
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
	actor, err := h.gate.Resolve(ctx, input.SessionToken)
	if err != nil {
		return nil, err
	}

	created, err := h.leads.CreateLead(ctx, actor, leads.CreateLeadInput{
		CompanyID:    input.CompanyID,
		CompanyName:  input.CompanyName,
		ContactName:  input.ContactName,
		ContactEmail: input.ContactEmail,
		ContactPhone: input.ContactPhone,
	})
	if err != nil {
		return nil, err
	}

	h.logger.Info("lead created", map[string]interface{}{
		"leadId":       created.Lead.LeadID,
		"assessmentId": created.Assessment.ID,
		"createdBy":    actor.UserID,
	})

	return &Output{
		Lead:              created.Lead,
		LeadVersion:       created.Lead.Version,
		AssessmentID:      created.Assessment.ID,
		AssessmentVersion: created.Assessment.Version,
		QuestionCount:     len(created.Questions),
	}, nil
}
