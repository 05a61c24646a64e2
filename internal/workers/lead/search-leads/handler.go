// internal/workers/lead/search-leads/handler.go
package searchleads

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
	"ipo-readiness/internal/search"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

const (
	TaskType = "search-leads"

	defaultPageSize = 20
	maxPageSize     = 100
)

// Searcher is satisfied by *search.Index.
type Searcher interface {
	Search(ctx context.Context, actor *auth.Identity, q search.Query) (*search.Result, error)
}

type Handler struct {
	config    *Config
	gate      auth.Resolver
	index     Searcher
	responder *camunda.Responder
	logger    logger.Logger
}

func NewHandler(cfg *Config, gate auth.Resolver, index Searcher, log logger.Logger) *Handler {
	l := log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:    cfg,
		gate:      gate,
		index:     index,
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

	page, size := input.Page, input.PageSize
	if page < 1 {
		page = 1
	}
	if size <= 0 {
		size = defaultPageSize
	}
	if size > maxPageSize {
		size = maxPageSize
	}

	res, err := h.index.Search(ctx, actor, search.Query{
		Text:       strings.TrimSpace(input.Text),
		Status:     models.LeadStatus(strings.ToUpper(string(input.Status))),
		AssessorID: input.AssessorID,
		Source:     models.LeadSource(strings.ToUpper(string(input.Source))),
		From:       (page - 1) * size,
		Size:       size,
	})
	if err != nil {
		return nil, err
	}

	h.logger.Debug("lead search", map[string]interface{}{
		"text":      input.Text,
		"totalHits": res.TotalHits,
		"tookMs":    res.Took,
	})

	return &Output{
		Leads:     res.Leads,
		TotalHits: res.TotalHits,
		Page:      page,
		PageSize:  size,
		HasMore:   int64(page*size) < res.TotalHits,
	}, nil
}
