// internal/workers/assessment/save-assessment-answers/handler.go
package saveassessmentanswers

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"ipo-readiness/internal/autosave"
	"ipo-readiness/internal/common/auth"
	"ipo-readiness/internal/common/camunda"
	"ipo-readiness/internal/common/errors"
	"ipo-readiness/internal/common/logger"
	"ipo-readiness/internal/models"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

const (
	TaskType = "save-assessment-answers"
)

// AnswerWriter is satisfied by *assessment.Service.
type AnswerWriter interface {
	UpdateAllAssessmentAnswers(ctx context.Context, actor *auth.Identity, id string, partial models.AnswerSet, expectedVersion int64) (*models.Assessment, error)
}

// AutoSaver is satisfied by *autosave.Saver.
type AutoSaver interface {
	Edit(ctx context.Context, actor *auth.Identity, id string, partial models.AnswerSet, version int64) (autosave.Status, error)
	Flush(ctx context.Context, id string) (autosave.Status, error)
	HasUnsaved(ctx context.Context, id string) (bool, error)
}

type Handler struct {
	config    *Config
	gate      auth.Resolver
	writer    AnswerWriter
	saver     AutoSaver
	responder *camunda.Responder
	logger    logger.Logger
}

// NewHandler wires the direct write path. saver may be nil when Redis is
// disabled; the autosave modes then reject the job.
func NewHandler(cfg *Config, gate auth.Resolver, writer AnswerWriter, saver AutoSaver, log logger.Logger) *Handler {
	l := log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:    cfg,
		gate:      gate,
		writer:    writer,
		saver:     saver,
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
	mode := strings.ToLower(strings.TrimSpace(input.Mode))
	if mode == "" {
		mode = ModeDirect
	}
	if mode != ModeDirect && mode != ModeAutosave && mode != ModeFlush {
		return nil, errors.NewInvalidInputError(fmt.Sprintf("unknown save mode %q", input.Mode))
	}
	if mode != ModeDirect && h.saver == nil {
		return nil, errors.NewInvalidInputError("auto-save is not enabled")
	}

	actor, err := h.gate.Resolve(ctx, input.SessionToken)
	if err != nil {
		return nil, err
	}

	switch mode {
	case ModeAutosave:
		st, err := h.saver.Edit(ctx, actor, input.AssessmentID, input.Answers, input.ExpectedVersion)
		if err != nil {
			return nil, err
		}
		return h.statusOutput(mode, st, true), nil

	case ModeFlush:
		if err := auth.Authorize(actor, "flush answers", models.RoleAssessor, models.RoleReviewer); err != nil {
			return nil, err
		}
		st, err := h.saver.Flush(ctx, input.AssessmentID)
		if err != nil {
			return nil, err
		}
		unsaved, err := h.saver.HasUnsaved(ctx, input.AssessmentID)
		if err != nil {
			return nil, err
		}
		h.logger.Info("answer buffer flushed", map[string]interface{}{
			"assessmentId": input.AssessmentID,
			"state":        string(st.State),
			"version":      st.Version,
		})
		return h.statusOutput(mode, st, unsaved), nil
	}

	a, err := h.writer.UpdateAllAssessmentAnswers(ctx, actor, input.AssessmentID, input.Answers, input.ExpectedVersion)
	if err != nil {
		return nil, err
	}
	return &Output{
		AssessmentID: a.ID,
		Mode:         mode,
		Version:      a.Version,
		SaveState:    autosave.StateSaved,
		Answered:     len(a.Answers.All()),
	}, nil
}

func (h *Handler) statusOutput(mode string, st autosave.Status, unsaved bool) *Output {
	return &Output{
		AssessmentID: st.AssessmentID,
		Mode:         mode,
		Version:      st.Version,
		SaveState:    st.State,
		Unsaved:      unsaved,
	}
}
