// internal/workers/lead/create-lead/handler_test.go
package createlead

import (
	"context"
	"sync"
	"testing"
	"time"

	"ipo-readiness/internal/common/config"
	"ipo-readiness/internal/common/errors"
	"ipo-readiness/internal/common/logger"
	"ipo-readiness/internal/leads"
	"ipo-readiness/internal/models"
	"ipo-readiness/internal/store/memory"
	"ipo-readiness/internal/workers/workertest"
	"ipo-readiness/pkg/questionbank"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newHandler(t *testing.T) (*Handler, *memory.Store) {
	t.Helper()
	st := memory.New()
	require.NoError(t, questionbank.Default().Seed(context.Background(), st.Questions()))
	now := time.Date(2026, 3, 9, 9, 30, 0, 0, time.UTC)
	svc := leads.NewService(st, leads.Options{Now: func() time.Time { return now }}, logger.NewTestLogger(t))
	return NewHandler(LoadConfig(config.WorkerConfig{}), workertest.NewGate(), svc, logger.NewTestLogger(t)), st
}

func validInput(company string) *Input {
	return &Input{
		SessionToken: workertest.ReviewerToken,
		CompanyID:    company,
		CompanyName:  "Acme Industries",
		ContactName:  "Meera Shah",
		ContactEmail: "Meera@Acme.example",
	}
}

func TestHandler_Execute_CreatesLeadWithSnapshot(t *testing.T) {
	h, st := newHandler(t)

	out, err := h.Execute(context.Background(), validInput("u72900mh2015ptc123456"))
	require.NoError(t, err)

	assert.Equal(t, "IPO-2026-0001", out.Lead.LeadID)
	assert.Equal(t, "U72900MH2015PTC123456", out.Lead.CompanyID)
	assert.Equal(t, "meera@acme.example", out.Lead.ContactEmail)
	assert.Equal(t, models.LeadStatusNew, out.Lead.Status)
	assert.Equal(t, int64(1), out.LeadVersion)
	assert.Equal(t, int64(1), out.AssessmentVersion)
	assert.Equal(t, len(questionbank.Default().Templates()), out.QuestionCount)

	a, err := st.Assessments().Get(context.Background(), out.AssessmentID)
	require.NoError(t, err)
	assert.Equal(t, out.Lead.ID, a.LeadID)
	assert.Equal(t, models.EligibilityUnset, a.Eligibility)
}

func TestHandler_Execute_Rejections(t *testing.T) {
	h, _ := newHandler(t)
	ctx := context.Background()

	tests := []struct {
		name  string
		input *Input
		code  errors.ErrorCode
	}{
		{"unknown token", &Input{SessionToken: "forged"}, errors.ErrCodeUnauthorized},
		{"assessor cannot create", func() *Input { in := validInput("C100001"); in.SessionToken = workertest.AssessorToken; return in }(), errors.ErrCodeInsufficientPermissions},
		{"bad email", func() *Input { in := validInput("C100002"); in.ContactEmail = "nope"; return in }(), errors.ErrCodeInvalidInput},
		{"missing company", func() *Input { in := validInput(""); return in }(), errors.ErrCodeInvalidInput},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := h.Execute(ctx, tt.input)
			assert.Equal(t, tt.code, errors.CodeOf(err))
		})
	}
}

func TestHandler_Execute_DuplicateCompany(t *testing.T) {
	h, _ := newHandler(t)
	ctx := context.Background()

	_, err := h.Execute(ctx, validInput("C200001"))
	require.NoError(t, err)
	_, err = h.Execute(ctx, validInput("c200001"))
	assert.Equal(t, errors.ErrCodeDuplicateUniqueKey, errors.CodeOf(err))
}

func TestHandler_Execute_ConcurrentCreatesGetDistinctIDs(t *testing.T) {
	h, _ := newHandler(t)
	const n = 12

	var (
		wg  sync.WaitGroup
		mu  sync.Mutex
		ids = map[string]bool{}
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			out, err := h.Execute(context.Background(), validInput("CONC"+string(rune('A'+i))+"0001"))
			if !assert.NoError(t, err) {
				return
			}
			mu.Lock()
			ids[out.Lead.LeadID] = true
			mu.Unlock()
		}(i)
	}
	wg.Wait()
	assert.Len(t, ids, n)
}

func TestLoadConfig_DefaultsTimeout(t *testing.T) {
	assert.Equal(t, 10*time.Second, LoadConfig(config.WorkerConfig{}).Timeout)
	assert.Equal(t, 2*time.Second, LoadConfig(config.WorkerConfig{Timeout: 2000}).Timeout)
}
