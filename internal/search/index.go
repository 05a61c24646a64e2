// Package search keeps the reviewer-facing lead index in Elasticsearch. The
// record store stays authoritative; the index is refreshed after each commit
// and may briefly lag.
package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"ipo-readiness/internal/common/auth"
	"ipo-readiness/internal/common/errors"
	"ipo-readiness/internal/common/logger"
	"ipo-readiness/internal/models"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

const leadMapping = `{
  "mappings": {
    "properties": {
      "leadId":             {"type": "keyword"},
      "companyId":          {"type": "keyword"},
      "companyName":        {"type": "text", "fields": {"raw": {"type": "keyword"}}},
      "legalName":          {"type": "text"},
      "contactName":        {"type": "text"},
      "contactEmail":       {"type": "keyword"},
      "status":             {"type": "keyword"},
      "source":             {"type": "keyword"},
      "assignedAssessorId": {"type": "keyword"},
      "registryFetched":    {"type": "boolean"},
      "createdAt":          {"type": "date"},
      "updatedAt":          {"type": "date"}
    }
  }
}`

// LeadDocument is the indexed view of a lead.
type LeadDocument struct {
	ID                 string            `json:"id"`
	LeadID             string            `json:"leadId"`
	CompanyID          string            `json:"companyId"`
	CompanyName        string            `json:"companyName"`
	LegalName          string            `json:"legalName,omitempty"`
	ContactName        string            `json:"contactName"`
	ContactEmail       string            `json:"contactEmail"`
	Status             models.LeadStatus `json:"status"`
	Source             models.LeadSource `json:"source"`
	AssignedAssessorID string            `json:"assignedAssessorId,omitempty"`
	RegistryFetched    bool              `json:"registryFetched"`
	CreatedAt          time.Time         `json:"createdAt"`
	UpdatedAt          time.Time         `json:"updatedAt"`
}

func DocumentFor(l *models.Lead) LeadDocument {
	doc := LeadDocument{
		ID:              l.ID,
		LeadID:          l.LeadID,
		CompanyID:       l.CompanyID,
		CompanyName:     l.CompanyName,
		ContactName:     l.ContactName,
		ContactEmail:    l.ContactEmail,
		Status:          l.Status,
		Source:          l.Source,
		RegistryFetched: l.RegistryFetched,
		CreatedAt:       l.CreatedAt,
		UpdatedAt:       l.UpdatedAt,
	}
	if l.AssignedAssessorID != nil {
		doc.AssignedAssessorID = *l.AssignedAssessorID
	}
	if l.Registry != nil {
		doc.LegalName = l.Registry.LegalName
	}
	return doc
}

type Index struct {
	client   *elasticsearch.Client
	name     string
	pageSize int
	logger   logger.Logger
}

func NewIndex(client *elasticsearch.Client, name string, pageSize int, log logger.Logger) *Index {
	if name == "" {
		name = "ipo-leads"
	}
	if pageSize <= 0 || pageSize > maxPageSize {
		pageSize = defaultPageSize
	}
	return &Index{
		client:   client,
		name:     name,
		pageSize: pageSize,
		logger:   log.WithFields(map[string]interface{}{"component": "lead-search", "index": name}),
	}
}

// EnsureIndex creates the index with its mapping when it does not exist.
func (ix *Index) EnsureIndex(ctx context.Context) error {
	res, err := ix.client.Indices.Exists([]string{ix.name}, ix.client.Indices.Exists.WithContext(ctx))
	if err != nil {
		return errors.NewSearchQueryFailedError(err)
	}
	res.Body.Close()
	if res.StatusCode == 200 {
		return nil
	}

	res, err = ix.client.Indices.Create(ix.name,
		ix.client.Indices.Create.WithContext(ctx),
		ix.client.Indices.Create.WithBody(strings.NewReader(leadMapping)))
	if err != nil {
		return errors.NewSearchQueryFailedError(err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return errors.NewSearchQueryFailedError(responseError("create index", res))
	}
	ix.logger.Info("created lead index", nil)
	return nil
}

// IndexLead upserts the lead's document.
func (ix *Index) IndexLead(ctx context.Context, lead *models.Lead) error {
	body, err := json.Marshal(DocumentFor(lead))
	if err != nil {
		return errors.NewInternalError(err)
	}
	req := esapi.IndexRequest{
		Index:      ix.name,
		DocumentID: lead.ID,
		Body:       bytes.NewReader(body),
	}
	res, err := req.Do(ctx, ix.client)
	if err != nil {
		return errors.NewSearchQueryFailedError(err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return errors.NewSearchQueryFailedError(responseError("index lead", res))
	}
	return nil
}

type Query struct {
	Text       string            `json:"text,omitempty"`
	Status     models.LeadStatus `json:"status,omitempty"`
	AssessorID string            `json:"assessorId,omitempty"`
	Source     models.LeadSource `json:"source,omitempty"`
	From       int               `json:"from,omitempty"`
	Size       int               `json:"size,omitempty"`
}

type Result struct {
	Leads     []LeadDocument `json:"leads"`
	TotalHits int64          `json:"totalHits"`
	Took      int64          `json:"took"`
}

// Search runs q. Assessors only ever see leads assigned to them.
func (ix *Index) Search(ctx context.Context, actor *auth.Identity, q Query) (*Result, error) {
	if err := auth.Authorize(actor, "search leads"); err != nil {
		return nil, err
	}
	if actor.Is(models.RoleAssessor) {
		q.AssessorID = actor.UserID
	}
	if q.Status != "" && !q.Status.Valid() {
		return nil, errors.NewInvalidInputError(fmt.Sprintf("unknown lead status %q", q.Status))
	}
	if q.From < 0 {
		q.From = 0
	}
	if q.Size <= 0 {
		q.Size = ix.pageSize
	}
	if q.Size > maxPageSize {
		q.Size = maxPageSize
	}

	body, _ := json.Marshal(buildQuery(q))
	req := esapi.SearchRequest{
		Index: []string{ix.name},
		Body:  bytes.NewReader(body),
		From:  &q.From,
		Size:  &q.Size,
	}
	res, err := req.Do(ctx, ix.client)
	if err != nil {
		return nil, errors.NewSearchQueryFailedError(err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return nil, errors.NewSearchQueryFailedError(responseError("search leads", res))
	}

	var raw struct {
		Took int64 `json:"took"`
		Hits struct {
			Total struct {
				Value int64 `json:"value"`
			} `json:"total"`
			Hits []struct {
				Source LeadDocument `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&raw); err != nil {
		return nil, errors.NewSearchQueryFailedError(fmt.Errorf("decode search response: %w", err))
	}

	out := &Result{TotalHits: raw.Hits.Total.Value, Took: raw.Took, Leads: make([]LeadDocument, 0, len(raw.Hits.Hits))}
	for _, h := range raw.Hits.Hits {
		out.Leads = append(out.Leads, h.Source)
	}
	return out, nil
}

func buildQuery(q Query) map[string]interface{} {
	must := []interface{}{}
	filter := []interface{}{}

	if text := strings.TrimSpace(q.Text); text != "" {
		must = append(must, map[string]interface{}{
			"multi_match": map[string]interface{}{
				"query":  text,
				"fields": []string{"companyName^3", "legalName^2", "leadId", "companyId", "contactName"},
				"type":   "best_fields",
			},
		})
	}
	term := func(field, value string) {
		if value != "" {
			filter = append(filter, map[string]interface{}{
				"term": map[string]interface{}{field: value},
			})
		}
	}
	term("status", string(q.Status))
	term("assignedAssessorId", q.AssessorID)
	term("source", string(q.Source))

	if len(must) == 0 {
		must = append(must, map[string]interface{}{"match_all": map[string]interface{}{}})
	}
	return map[string]interface{}{
		"query": map[string]interface{}{
			"bool": map[string]interface{}{"must": must, "filter": filter},
		},
		"sort": []interface{}{
			map[string]interface{}{"_score": "desc"},
			map[string]interface{}{"createdAt": "desc"},
		},
	}
}

func responseError(op string, res *esapi.Response) error {
	detail, _ := io.ReadAll(io.LimitReader(res.Body, 2048))
	return fmt.Errorf("%s: %s: %s", op, res.Status(), strings.TrimSpace(string(detail)))
}
