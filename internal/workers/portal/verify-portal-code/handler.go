// internal/workers/portal/verify-portal-code/handler.go
package verifyportalcode

import (
	"context"
	"encoding/json"
	"fmt"

	"ipo-readiness/internal/common/camunda"
	"ipo-readiness/internal/common/errors"
	"ipo-readiness/internal/common/logger"
	"ipo-readiness/internal/portal"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

const (
	TaskType = "verify-portal-code"
)

// CodeVerifier is satisfied by *portal.Service.
type CodeVerifier interface {
	VerifyCode(ctx context.Context, identifier, code string) (*portal.Session, error)
}

// Handler serves the unauthenticated side of the portal login, so it takes
// no session token.
type Handler struct {
	config    *Config
	portal    CodeVerifier
	responder *camunda.Responder
	logger    logger.Logger
}

func NewHandler(cfg *Config, svc CodeVerifier, log logger.Logger) *Handler {
	l := log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:    cfg,
		portal:    svc,
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
	sess, err := h.portal.VerifyCode(ctx, input.Identifier, input.Code)
	if err != nil {
		return nil, err
	}
	return &Output{
		Verified:     true,
		LeadID:       sess.LeadID,
		SessionToken: sess.Token,
		ExpiresAt:    sess.ExpiresAt,
	}, nil
}
