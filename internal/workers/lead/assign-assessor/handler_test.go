// internal/workers/lead/assign-assessor/handler_test.go
package assignassessor

import (
	"context"
	"testing"

	"ipo-readiness/internal/common/config"
	"ipo-readiness/internal/common/errors"
	"ipo-readiness/internal/common/logger"
	"ipo-readiness/internal/leads"
	"ipo-readiness/internal/models"
	"ipo-readiness/internal/store/memory"
	"ipo-readiness/internal/workers/workertest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setup(t *testing.T) *Handler {
	t.Helper()
	ctx := context.Background()
	st := memory.New()
	require.NoError(t, st.Leads().Create(ctx, &models.Lead{
		ID: "lead-1", LeadID: "IPO-2026-0001", CompanyID: "C1", Status: models.LeadStatusNew, Version: 1,
	}))
	require.NoError(t, st.Users().Upsert(ctx, &models.User{ID: "ass-1", Email: "ass@ipo.example", Role: models.RoleAssessor, IsActive: true}))
	require.NoError(t, st.Users().Upsert(ctx, &models.User{ID: "ass-2", Email: "gone@ipo.example", Role: models.RoleAssessor, IsActive: false}))
	require.NoError(t, st.Users().Upsert(ctx, &models.User{ID: "rev-1", Email: "rev@ipo.example", Role: models.RoleReviewer, IsActive: true}))

	svc := leads.NewService(st, leads.Options{}, logger.NewTestLogger(t))
	return NewHandler(LoadConfig(config.WorkerConfig{}), workertest.NewGate(), svc, logger.NewTestLogger(t))
}

func TestHandler_Execute_AssignsAndReassigns(t *testing.T) {
	h := setup(t)
	ctx := context.Background()

	out, err := h.Execute(ctx, &Input{SessionToken: workertest.ReviewerToken, LeadID: "lead-1", AssessorID: "ass-1", ExpectedVersion: 1})
	require.NoError(t, err)
	assert.Equal(t, models.LeadStatusAssigned, out.LeadStatus)
	assert.Equal(t, int64(2), out.LeadVersion)
	require.NotNil(t, out.Lead.AssignedAssessorID)
	assert.Equal(t, "ass-1", *out.Lead.AssignedAssessorID)

	_, err = h.Execute(ctx, &Input{SessionToken: workertest.ReviewerToken, LeadID: "lead-1", AssessorID: "ass-1", ExpectedVersion: 1})
	assert.Equal(t, errors.ErrCodeConcurrentModification, errors.CodeOf(err))
}

func TestHandler_Execute_Rejections(t *testing.T) {
	h := setup(t)
	ctx := context.Background()

	tests := []struct {
		name  string
		input Input
		code  errors.ErrorCode
	}{
		{"missing ids", Input{SessionToken: workertest.ReviewerToken}, errors.ErrCodeInvalidInput},
		{"assessor caller", Input{SessionToken: workertest.AssessorToken, LeadID: "lead-1", AssessorID: "ass-1", ExpectedVersion: 1}, errors.ErrCodeInsufficientPermissions},
		{"inactive assessor", Input{SessionToken: workertest.ReviewerToken, LeadID: "lead-1", AssessorID: "ass-2", ExpectedVersion: 1}, errors.ErrCodeUserInactive},
		{"reviewer as assessor", Input{SessionToken: workertest.ReviewerToken, LeadID: "lead-1", AssessorID: "rev-1", ExpectedVersion: 1}, errors.ErrCodeInvalidInput},
		{"unknown lead", Input{SessionToken: workertest.ReviewerToken, LeadID: "nope", AssessorID: "ass-1", ExpectedVersion: 1}, errors.ErrCodeLeadNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := h.Execute(ctx, &tt.input)
			assert.Equal(t, tt.code, errors.CodeOf(err))
		})
	}
}
