package search

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"ipo-readiness/internal/common/auth"
	"ipo-readiness/internal/common/errors"
	"ipo-readiness/internal/common/logger"
	"ipo-readiness/internal/models"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	reviewer = &auth.Identity{UserID: "rev-1", Role: models.RoleReviewer, IsActive: true}
	assessor = &auth.Identity{UserID: "ass-1", Role: models.RoleAssessor, IsActive: true}
)

func newIndex(t *testing.T, handler http.HandlerFunc) *Index {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Elastic-Product", "Elasticsearch")
		w.Header().Set("Content-Type", "application/json")
		handler(w, r)
	}))
	t.Cleanup(srv.Close)

	client, err := elasticsearch.NewClient(elasticsearch.Config{Addresses: []string{srv.URL}})
	require.NoError(t, err)
	return NewIndex(client, "ipo-leads", 20, logger.NewTestLogger(t))
}

func TestIndexLead(t *testing.T) {
	var got LeadDocument
	ix := newIndex(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, "/ipo-leads/_doc/lead-1", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"result":"created"}`))
	})

	assessorID := "ass-1"
	err := ix.IndexLead(context.Background(), &models.Lead{
		ID: "lead-1", LeadID: "IPO-2026-0001", CompanyID: "U72900MH2015PTC123456", CompanyName: "Acme Industries",
		Status: models.LeadStatusAssigned, AssignedAssessorID: &assessorID, Source: models.LeadSourceReviewer,
		Registry:  &models.RegistrySnapshot{LegalName: "Acme Industries Private Limited"},
		CreatedAt: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	})
	require.NoError(t, err)
	assert.Equal(t, "IPO-2026-0001", got.LeadID)
	assert.Equal(t, "ass-1", got.AssignedAssessorID)
	assert.Equal(t, "Acme Industries Private Limited", got.LegalName)
	assert.Equal(t, models.LeadStatusAssigned, got.Status)
}

func TestSearch(t *testing.T) {
	var body map[string]interface{}
	ix := newIndex(t, func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasSuffix(r.URL.Path, "/ipo-leads/_search"))
		assert.Equal(t, "0", r.URL.Query().Get("from"))
		assert.Equal(t, "20", r.URL.Query().Get("size"))
		raw, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(raw, &body))
		_, _ = w.Write([]byte(`{
			"took": 3,
			"hits": {
				"total": {"value": 1, "relation": "eq"},
				"hits": [{"_source": {"id": "lead-1", "leadId": "IPO-2026-0001", "companyName": "Acme Industries", "status": "IN_REVIEW"}}]
			}
		}`))
	})

	res, err := ix.Search(context.Background(), assessor, Query{Text: "acme", Status: models.LeadStatusInReview, AssessorID: "someone-else"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), res.TotalHits)
	require.Len(t, res.Leads, 1)
	assert.Equal(t, "IPO-2026-0001", res.Leads[0].LeadID)
	assert.Equal(t, models.LeadStatusInReview, res.Leads[0].Status)

	filters := body["query"].(map[string]interface{})["bool"].(map[string]interface{})["filter"].([]interface{})
	terms := map[string]interface{}{}
	for _, f := range filters {
		for k, v := range f.(map[string]interface{})["term"].(map[string]interface{}) {
			terms[k] = v
		}
	}
	assert.Equal(t, "IN_REVIEW", terms["status"])
	assert.Equal(t, "ass-1", terms["assignedAssessorId"], "assessors are pinned to their own leads")
}

func TestSearch_Errors(t *testing.T) {
	ix := newIndex(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"type":"parsing_exception"}}`))
	})

	_, err := ix.Search(context.Background(), reviewer, Query{Text: "acme"})
	assert.Equal(t, errors.ErrCodeSearchQueryFailed, errors.CodeOf(err))

	_, err = ix.Search(context.Background(), reviewer, Query{Status: "ARCHIVED"})
	assert.Equal(t, errors.ErrCodeInvalidInput, errors.CodeOf(err))

	_, err = ix.Search(context.Background(), nil, Query{})
	assert.Equal(t, errors.ErrCodeUnauthorized, errors.CodeOf(err))
}

func TestEnsureIndex_CreatesMissingIndex(t *testing.T) {
	var created bool
	ix := newIndex(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodHead:
			w.WriteHeader(http.StatusNotFound)
		case http.MethodPut:
			assert.Equal(t, "/ipo-leads", r.URL.Path)
			raw, _ := io.ReadAll(r.Body)
			assert.Contains(t, string(raw), `"assignedAssessorId"`)
			created = true
			_, _ = w.Write([]byte(`{"acknowledged":true}`))
		default:
			t.Errorf("unexpected %s %s", r.Method, r.URL.Path)
		}
	})

	require.NoError(t, ix.EnsureIndex(context.Background()))
	assert.True(t, created)
}

func TestBuildQuery_MatchAllWithoutText(t *testing.T) {
	q := buildQuery(Query{})
	must := q["query"].(map[string]interface{})["bool"].(map[string]interface{})["must"].([]interface{})
	require.Len(t, must, 1)
	assert.Contains(t, must[0], "match_all")
}
