// internal/workers/lead/fetch-registry-data/handler.go
package fetchregistrydata

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
	TaskType = "fetch-registry-data"
)

// Fetcher is satisfied by *leads.Service.
type Fetcher interface {
	FetchRegistryData(ctx context.Context, actor *auth.Identity, leadID string, expectedVersion int64, refresh bool) (*models.Lead, bool, error)
}

type Handler struct {
	config    *Config
	gate      auth.Resolver
	leads     Fetcher
	responder *camunda.Responder
	logger    logger.Logger
}

func NewHandler(cfg *Config, gate auth.Resolver, svc Fetcher, log logger.Logger) *Handler {
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

	lead, fromCache, err := h.leads.FetchRegistryData(ctx, actor, input.LeadID, input.ExpectedVersion, input.Refresh)
	if err != nil {
		return nil, err
	}

	h.logger.Info("registry data attached", map[string]interface{}{
		"leadId":    lead.LeadID,
		"fromCache": fromCache,
	})

	return &Output{
		Lead:          lead,
		LeadVersion:   lead.Version,
		Registry:      lead.Registry,
		FromCache:     fromCache,
		CompanyActive: lead.Registry != nil && strings.EqualFold(lead.Registry.CompanyStatus, "active"),
	}, nil
}
