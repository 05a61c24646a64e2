// internal/workers/lead/convert-submission/handler.go
package convertsubmission

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"ipo-readiness/internal/common/auth"
	"ipo-readiness/internal/common/camunda"
	"ipo-readiness/internal/common/errors"
	"ipo-readiness/internal/common/logger"
	"ipo-readiness/internal/leads"
	"ipo-readiness/internal/models"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

const (
	TaskType = "convert-submission"
)

// Submissions is satisfied by *leads.Service.
type Submissions interface {
	CreateSubmission(ctx context.Context, in leads.SubmissionInput) (*models.OrganicSubmission, error)
	TriageSubmission(ctx context.Context, actor *auth.Identity, id string, approve bool, remark string) (*models.OrganicSubmission, error)
	ConvertSubmission(ctx context.Context, actor *auth.Identity, id string) (*leads.Created, error)
}

type Handler struct {
	config    *Config
	gate      auth.Resolver
	leads     Submissions
	responder *camunda.Responder
	logger    logger.Logger
}

func NewHandler(cfg *Config, gate auth.Resolver, svc Submissions, log logger.Logger) *Handler {
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
	action := Action(strings.ToLower(strings.TrimSpace(string(input.Action))))
	if action == "" {
		action = ActionConvert
	}

	if action == ActionSubmit {
		sub, err := h.leads.CreateSubmission(ctx, leads.SubmissionInput{
			CompanyID:     input.CompanyID,
			CompanyName:   input.CompanyName,
			ContactName:   input.ContactName,
			ContactEmail:  input.ContactEmail,
			ContactPhone:  input.ContactPhone,
			EmailVerified: input.EmailVerified,
		})
		if err != nil {
			return nil, err
		}
		return &Output{SubmissionID: sub.ID, SubmissionStatus: sub.Status}, nil
	}

	if input.SubmissionID == "" {
		return nil, errors.NewInvalidInputError("submissionId is required")
	}
	actor, err := h.gate.Resolve(ctx, input.SessionToken)
	if err != nil {
		return nil, err
	}

	switch action {
	case ActionApprove, ActionReject:
		sub, err := h.leads.TriageSubmission(ctx, actor, input.SubmissionID, action == ActionApprove, strings.TrimSpace(input.Remark))
		if err != nil {
			return nil, err
		}
		return &Output{SubmissionID: sub.ID, SubmissionStatus: sub.Status}, nil

	case ActionConvert:
		created, err := h.leads.ConvertSubmission(ctx, actor, input.SubmissionID)
		if err != nil {
			return nil, err
		}
		h.logger.Info("submission converted", map[string]interface{}{
			"submissionId": input.SubmissionID,
			"leadId":       created.Lead.LeadID,
		})
		return &Output{
			SubmissionID:     input.SubmissionID,
			SubmissionStatus: models.SubmissionConverted,
			Lead:             created.Lead,
			AssessmentID:     created.Assessment.ID,
		}, nil
	}
	return nil, errors.NewInvalidInputError(fmt.Sprintf("unknown action %q", input.Action))
}
