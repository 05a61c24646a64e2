// internal/workers/assessment/review-assessment/handler.go
package reviewassessment

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
	TaskType = "review-assessment"
)

// Reviewer is satisfied by *assessment.Service.
type Reviewer interface {
	ApproveAssessment(ctx context.Context, actor *auth.Identity, id, remark string) (*models.Assessment, error)
	RejectAssessment(ctx context.Context, actor *auth.Identity, id, remark string) (*models.Assessment, error)
	ReopenAssessment(ctx context.Context, actor *auth.Identity, id, remark string) (*models.Assessment, error)
}

type Handler struct {
	config      *Config
	gate        auth.Resolver
	assessments Reviewer
	responder   *camunda.Responder
	logger      logger.Logger
}

func NewHandler(cfg *Config, gate auth.Resolver, svc Reviewer, log logger.Logger) *Handler {
	l := log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:      cfg,
		gate:        gate,
		assessments: svc,
		responder:   camunda.NewResponder(TaskType, l),
		logger:      l,
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
	decision := strings.ToLower(strings.TrimSpace(input.Decision))
	var review func(context.Context, *auth.Identity, string, string) (*models.Assessment, error)
	switch decision {
	case DecisionApprove:
		review = h.assessments.ApproveAssessment
	case DecisionReject:
		review = h.assessments.RejectAssessment
	case DecisionReopen:
		review = h.assessments.ReopenAssessment
	default:
		return nil, errors.NewInvalidInputError(fmt.Sprintf("unknown review decision %q", input.Decision))
	}

	actor, err := h.gate.Resolve(ctx, input.SessionToken)
	if err != nil {
		return nil, err
	}

	a, err := review(ctx, actor, input.AssessmentID, input.Remark)
	if err != nil {
		return nil, err
	}

	h.logger.Info("review recorded", map[string]interface{}{
		"assessmentId": a.ID,
		"decision":     decision,
		"reviewerId":   actor.UserID,
	})

	return &Output{
		AssessmentID: a.ID,
		Decision:     decision,
		Status:       a.Status,
		Version:      a.Version,
		Percentage:   a.Percentage,
		Rating:       a.Rating,
	}, nil
}
