// internal/workers/assessment/complete-eligibility/handler.go
package completeeligibility

import (
	"context"
	"encoding/json"
	"fmt"

	"ipo-readiness/internal/assessment"
	"ipo-readiness/internal/common/auth"
	"ipo-readiness/internal/common/camunda"
	"ipo-readiness/internal/common/errors"
	"ipo-readiness/internal/common/logger"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

const (
	TaskType = "complete-eligibility"
)

// Completer is satisfied by *assessment.Service.
type Completer interface {
	CompleteEligibility(ctx context.Context, actor *auth.Identity, id string, expectedVersion int64) (*assessment.EligibilityResult, error)
}

type Handler struct {
	config      *Config
	gate        auth.Resolver
	assessments Completer
	responder   *camunda.Responder
	logger      logger.Logger
}

func NewHandler(cfg *Config, gate auth.Resolver, svc Completer, log logger.Logger) *Handler {
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

	res, err := h.assessments.CompleteEligibility(ctx, actor, input.AssessmentID, input.ExpectedVersion)
	if err != nil {
		return nil, err
	}

	h.logger.Info("eligibility completed", map[string]interface{}{
		"assessmentId": res.Assessment.ID,
		"isEligible":   res.IsEligible,
		"unchecked":    len(res.Unchecked),
	})

	return &Output{
		AssessmentID: res.Assessment.ID,
		Version:      res.Assessment.Version,
		IsEligible:   res.IsEligible,
		Eligibility:  res.Assessment.Eligibility,
		Unchecked:    res.Unchecked,
	}, nil
}
