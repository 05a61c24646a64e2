// internal/workers/lead/confirm-payment/handler.go
package confirmpayment

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"ipo-readiness/internal/common/camunda"
	"ipo-readiness/internal/common/errors"
	"ipo-readiness/internal/common/logger"
	"ipo-readiness/internal/leads"
	"ipo-readiness/internal/models"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

const (
	TaskType = "confirm-payment"
)

// PaymentConfirmer is satisfied by *leads.Service.
type PaymentConfirmer interface {
	ConfirmPayment(ctx context.Context, p leads.PaymentConfirmation) (*models.Lead, bool, error)
}

type Handler struct {
	config    *Config
	leads     PaymentConfirmer
	responder *camunda.Responder
	logger    logger.Logger
}

func NewHandler(cfg *Config, svc PaymentConfirmer, log logger.Logger) *Handler {
	l := log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:    cfg,
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
	if input.Amount < 0 {
		return nil, errors.NewInvalidInputError("amount cannot be negative")
	}

	lead, already, err := h.leads.ConfirmPayment(ctx, leads.PaymentConfirmation{
		LeadID:     strings.TrimSpace(input.LeadID),
		PaymentRef: strings.TrimSpace(input.PaymentRef),
		Amount:     input.Amount,
		Currency:   strings.ToUpper(strings.TrimSpace(input.Currency)),
	})
	if err != nil {
		return nil, err
	}

	if already {
		h.logger.Info("payment already confirmed", map[string]interface{}{
			"leadId":     lead.LeadID,
			"paymentRef": input.PaymentRef,
		})
	}
	return &Output{Lead: lead, LeadStatus: lead.Status, AlreadyCompleted: already}, nil
}
