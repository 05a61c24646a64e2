// internal/workers/assessment/update-eligibility-answers/handler.go
package updateeligibilityanswers

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
	TaskType = "update-eligibility-answers"
)

// EligibilityUpdater is satisfied by *assessment.Service.
type EligibilityUpdater interface {
	UpdateEligibilityAnswers(ctx context.Context, actor *auth.Identity, id string, answers models.EligibilityAnswers, expectedVersion int64) (*models.Assessment, error)
}

type Handler struct {
	config      *Config
	gate        auth.Resolver
	assessments EligibilityUpdater
	responder   *camunda.Responder
	logger      logger.Logger
}

func NewHandler(cfg *Config, gate auth.Resolver, svc EligibilityUpdater, log logger.Logger) *Handler {
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
	actor, err := h.gate.Resolve(ctx, input.SessionToken)
	if err != nil {
		return nil, err
	}
	answers := input.Answers
	if answers == nil {
		answers = models.EligibilityAnswers{}
	}

	a, err := h.assessments.UpdateEligibilityAnswers(ctx, actor, input.AssessmentID, answers, input.ExpectedVersion)
	if err != nil {
		return nil, err
	}

	checked := 0
	for _, ans := range a.EligibilityAnswers {
		if ans.Checked {
			checked++
		}
	}
	return &Output{
		AssessmentID: a.ID,
		Version:      a.Version,
		Answered:     len(a.EligibilityAnswers),
		Checked:      checked,
	}, nil
}
