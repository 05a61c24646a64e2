// internal/workers/assessment/submit-assessment/handler.go
package submitassessment

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
	TaskType = "submit-assessment"
)

// Submitter is satisfied by *assessment.Service.
type Submitter interface {
	SubmitAssessment(ctx context.Context, actor *auth.Identity, id string, expectedVersion int64) (*models.Assessment, error)
}

type Handler struct {
	config      *Config
	gate        auth.Resolver
	assessments Submitter
	responder   *camunda.Responder
	logger      logger.Logger
}

func NewHandler(cfg *Config, gate auth.Resolver, svc Submitter, log logger.Logger) *Handler {
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
	if input.AssessmentID == "" {
		return nil, errors.NewInvalidInputError("assessmentId is required")
	}
	actor, err := h.gate.Resolve(ctx, input.SessionToken)
	if err != nil {
		return nil, err
	}

	a, err := h.assessments.SubmitAssessment(ctx, actor, input.AssessmentID, input.ExpectedVersion)
	if err != nil {
		return nil, err
	}

	return &Output{
		AssessmentID: a.ID,
		Version:      a.Version,
		Status:       a.Status,
		TotalScore:   a.TotalScore,
		MaxScore:     a.MaxScore,
		Percentage:   a.Percentage,
		Rating:       a.Rating,
	}, nil
}
