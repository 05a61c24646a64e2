// internal/workers/lead/update-lead-status/handler_test.go
package updateleadstatus

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

func setup(t *testing.T, status models.LeadStatus) (*Handler, *memory.Store) {
	t.Helper()
	st := memory.New()
	assessor := workertest.Assessor.UserID
	require.NoError(t, st.Leads().Create(context.Background(), &models.Lead{
		ID: "lead-1", LeadID: "IPO-2026-0001", CompanyID: "C1", Status: status,
		AssignedAssessorID: &assessor, Version: 3,
	}))
	svc := leads.NewService(st, leads.Options{}, logger.NewTestLogger(t))
	return NewHandler(LoadConfig(config.WorkerConfig{}), workertest.NewGate(), svc, logger.NewTestLogger(t)), st
}

func TestHandler_Execute_AdvancesOneStep(t *testing.T) {
	h, st := setup(t, models.LeadStatusAssigned)

	out, err := h.Execute(context.Background(), &Input{
		SessionToken: workertest.ReviewerToken, LeadID: "lead-1", Status: "in_review", ExpectedVersion: 3, Remark: " ready ",
	})
	require.NoError(t, err)
	assert.Equal(t, models.LeadStatusAssigned, out.PreviousStatus)
	assert.Equal(t, models.LeadStatusInReview, out.LeadStatus)
	assert.Equal(t, int64(4), out.LeadVersion)

	entries, err := st.Audit().List(context.Background(), models.EntityLead, "lead-1")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "ready", entries[0].Remark)
}

func TestHandler_Execute_Rejections(t *testing.T) {
	tests := []struct {
		name   string
		status models.LeadStatus
		input  Input
		code   errors.ErrorCode
	}{
		{"skip a step", models.LeadStatusNew, Input{SessionToken: workertest.ReviewerToken, LeadID: "lead-1", Status: models.LeadStatusInReview, ExpectedVersion: 3}, errors.ErrCodeInvalidStatusTransition},
		{"backwards", models.LeadStatusInReview, Input{SessionToken: workertest.ReviewerToken, LeadID: "lead-1", Status: models.LeadStatusAssigned, ExpectedVersion: 3}, errors.ErrCodeInvalidStatusTransition},
		{"stale version", models.LeadStatusAssigned, Input{SessionToken: workertest.ReviewerToken, LeadID: "lead-1", Status: models.LeadStatusInReview, ExpectedVersion: 2}, errors.ErrCodeConcurrentModification},
		{"unknown status", models.LeadStatusAssigned, Input{SessionToken: workertest.ReviewerToken, LeadID: "lead-1", Status: "ARCHIVED", ExpectedVersion: 3}, errors.ErrCodeInvalidInput},
		{"assessor caller", models.LeadStatusAssigned, Input{SessionToken: workertest.AssessorToken, LeadID: "lead-1", Status: models.LeadStatusInReview, ExpectedVersion: 3}, errors.ErrCodeInsufficientPermissions},
		{"no token", models.LeadStatusAssigned, Input{LeadID: "lead-1", Status: models.LeadStatusInReview, ExpectedVersion: 3}, errors.ErrCodeUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, st := setup(t, tt.status)
			_, err := h.Execute(context.Background(), &tt.input)
			assert.Equal(t, tt.code, errors.CodeOf(err))

			lead, err := st.Leads().Get(context.Background(), "lead-1")
			require.NoError(t, err)
			assert.Equal(t, tt.status, lead.Status)
			assert.Equal(t, int64(3), lead.Version)
		})
	}
}
