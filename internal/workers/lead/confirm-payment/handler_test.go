// internal/workers/lead/confirm-payment/handler_test.go
package confirmpayment

import (
	"context"
	"testing"

	"ipo-readiness/internal/common/config"
	"ipo-readiness/internal/common/errors"
	"ipo-readiness/internal/common/logger"
	"ipo-readiness/internal/leads"
	"ipo-readiness/internal/models"
	"ipo-readiness/internal/store/memory"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setup(t *testing.T, status models.LeadStatus) (*Handler, *memory.Store) {
	t.Helper()
	st := memory.New()
	require.NoError(t, st.Leads().Create(context.Background(), &models.Lead{
		ID: "lead-1", LeadID: "IPO-2026-0004", CompanyID: "C4", Status: status, Version: 5,
	}))
	svc := leads.NewService(st, leads.Options{}, logger.NewTestLogger(t))
	return NewHandler(LoadConfig(config.WorkerConfig{}), svc, logger.NewTestLogger(t)), st
}

func TestHandler_Execute_CompletesOnce(t *testing.T) {
	h, st := setup(t, models.LeadStatusPaymentPending)
	ctx := context.Background()
	in := &Input{LeadID: "lead-1", PaymentRef: "pay_123", Amount: 50000, Currency: "inr"}

	out, err := h.Execute(ctx, in)
	require.NoError(t, err)
	assert.Equal(t, models.LeadStatusCompleted, out.LeadStatus)
	assert.False(t, out.AlreadyCompleted)

	out, err = h.Execute(ctx, in)
	require.NoError(t, err)
	assert.True(t, out.AlreadyCompleted)

	lead, err := st.Leads().Get(ctx, "lead-1")
	require.NoError(t, err)
	assert.Equal(t, int64(6), lead.Version, "a repeated confirmation does not write")

	entries, err := st.Audit().List(ctx, models.EntityLead, "lead-1")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "INR", entries[0].Metadata["currency"])
}

func TestHandler_Execute_FromAnyStatus(t *testing.T) {
	for _, status := range []models.LeadStatus{models.LeadStatusNew, models.LeadStatusAssigned, models.LeadStatusInReview} {
		t.Run(string(status), func(t *testing.T) {
			h, _ := setup(t, status)
			out, err := h.Execute(context.Background(), &Input{LeadID: "lead-1", PaymentRef: "pay_9"})
			require.NoError(t, err)
			assert.Equal(t, models.LeadStatusCompleted, out.LeadStatus)
		})
	}
}

func TestHandler_Execute_Rejections(t *testing.T) {
	h, _ := setup(t, models.LeadStatusPaymentPending)
	ctx := context.Background()

	_, err := h.Execute(ctx, &Input{LeadID: "lead-1"})
	assert.Equal(t, errors.ErrCodeInvalidInput, errors.CodeOf(err))

	_, err = h.Execute(ctx, &Input{LeadID: "lead-1", PaymentRef: "p", Amount: -1})
	assert.Equal(t, errors.ErrCodeInvalidInput, errors.CodeOf(err))

	_, err = h.Execute(ctx, &Input{LeadID: "missing", PaymentRef: "p"})
	assert.Equal(t, errors.ErrCodeLeadNotFound, errors.CodeOf(err))
}
