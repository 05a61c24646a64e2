// internal/workers/assessment/edit-question-snapshot/handler.go
package editquestionsnapshot

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
	"ipo-readiness/internal/snapshot"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

const (
	TaskType = "edit-question-snapshot"
)

// SnapshotEditor is satisfied by *assessment.Service.
type SnapshotEditor interface {
	AddQuestion(ctx context.Context, actor *auth.Identity, id string, nq snapshot.NewQuestion, expectedVersion int64) (*models.SnapshotQuestion, *models.Assessment, error)
	EditQuestion(ctx context.Context, actor *auth.Identity, id string, qid models.QuestionID, p snapshot.Patch, expectedVersion int64) (*models.SnapshotQuestion, *models.Assessment, error)
	RemoveQuestion(ctx context.Context, actor *auth.Identity, id string, qid models.QuestionID, expectedVersion int64) (*models.Assessment, error)
	ReorderQuestions(ctx context.Context, actor *auth.Identity, id string, category models.Category, ids []models.QuestionID, expectedVersion int64) (*models.Assessment, error)
}

type Handler struct {
	config      *Config
	gate        auth.Resolver
	assessments SnapshotEditor
	responder   *camunda.Responder
	logger      logger.Logger
}

func NewHandler(cfg *Config, gate auth.Resolver, svc SnapshotEditor, log logger.Logger) *Handler {
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
	op := strings.ToLower(strings.TrimSpace(input.Op))
	if err := validateInput(op, input); err != nil {
		return nil, err
	}

	actor, err := h.gate.Resolve(ctx, input.SessionToken)
	if err != nil {
		return nil, err
	}

	var (
		q *models.SnapshotQuestion
		a *models.Assessment
	)
	switch op {
	case OpAdd:
		q, a, err = h.assessments.AddQuestion(ctx, actor, input.AssessmentID, *input.Question, input.ExpectedVersion)
	case OpEdit:
		q, a, err = h.assessments.EditQuestion(ctx, actor, input.AssessmentID, input.QuestionID, *input.Patch, input.ExpectedVersion)
	case OpRemove:
		a, err = h.assessments.RemoveQuestion(ctx, actor, input.AssessmentID, input.QuestionID, input.ExpectedVersion)
	case OpReorder:
		a, err = h.assessments.ReorderQuestions(ctx, actor, input.AssessmentID, input.Category, input.Order, input.ExpectedVersion)
	}
	if err != nil {
		return nil, err
	}

	h.logger.Info("snapshot edited", map[string]interface{}{
		"assessmentId": a.ID,
		"op":           op,
		"version":      a.Version,
	})
	return &Output{AssessmentID: a.ID, Op: op, Version: a.Version, Question: q}, nil
}

func validateInput(op string, input *Input) error {
	switch op {
	case OpAdd:
		if input.Question == nil {
			return errors.NewInvalidInputError("question is required to add")
		}
	case OpEdit:
		if input.QuestionID == "" || input.Patch == nil {
			return errors.NewInvalidInputError("questionId and patch are required to edit")
		}
	case OpRemove:
		if input.QuestionID == "" {
			return errors.NewInvalidInputError("questionId is required to remove")
		}
	case OpReorder:
		if input.Category == "" || len(input.Order) == 0 {
			return errors.NewInvalidInputError("category and order are required to reorder")
		}
	default:
		return errors.NewInvalidInputError(fmt.Sprintf("unknown snapshot op %q", input.Op))
	}
	return nil
}
