// internal/workers/assessment/review-assessment/handler_test.go
package reviewassessment

import (
	"context"
	"testing"

	"ipo-readiness/internal/common/config"
	"ipo-readiness/internal/common/errors"
	"ipo-readiness/internal/common/logger"
	"ipo-readiness/internal/models"
	"ipo-readiness/internal/notify"
	"ipo-readiness/internal/workers/workertest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandler_Execute_Approve(t *testing.T) {
	f := workertest.NewFixture(t)
	h := NewHandler(LoadConfig(config.WorkerConfig{}), workertest.NewGate(), f.Assessments, logger.NewTestLogger(t))
	ctx := context.Background()
	a := f.Submitted(t)

	out, err := h.Execute(ctx, &Input{SessionToken: workertest.ReviewerToken, AssessmentID: a.ID, Decision: "Approve", Remark: "  strong board  "})
	require.NoError(t, err)
	assert.Equal(t, DecisionApprove, out.Decision)
	assert.Equal(t, models.AssessmentStatusApproved, out.Status)
	assert.Equal(t, models.RatingIPOReady, out.Rating)

	stored, err := f.Store.Assessments().Get(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, "strong board", stored.ReviewerRemark)
	require.NotNil(t, stored.ReviewerID)
	assert.Equal(t, workertest.Reviewer.UserID, *stored.ReviewerID)

	lead, err := f.Store.Leads().Get(ctx, a.LeadID)
	require.NoError(t, err)
	assert.Equal(t, models.LeadStatusPaymentPending, lead.Status)
	assert.Contains(t, f.Notifier.Sent(), notify.TemplateAssessmentApproved)
}

func TestHandler_Execute_RejectThenReopen(t *testing.T) {
	f := workertest.NewFixture(t)
	h := NewHandler(LoadConfig(config.WorkerConfig{}), workertest.NewGate(), f.Assessments, logger.NewTestLogger(t))
	ctx := context.Background()
	a := f.Submitted(t)

	out, err := h.Execute(ctx, &Input{SessionToken: workertest.ReviewerToken, AssessmentID: a.ID, Decision: DecisionReject, Remark: "financials unaudited"})
	require.NoError(t, err)
	assert.Equal(t, models.AssessmentStatusRejected, out.Status)
	assert.Contains(t, f.Notifier.Sent(), notify.TemplateAssessmentRejected)

	lead, err := f.Store.Leads().Get(ctx, a.LeadID)
	require.NoError(t, err)
	assert.Equal(t, models.LeadStatusInReview, lead.Status, "rejection leaves the lead in review")

	out, err = h.Execute(ctx, &Input{SessionToken: workertest.ReviewerToken, AssessmentID: a.ID, Decision: DecisionReopen})
	require.NoError(t, err)
	assert.Equal(t, models.AssessmentStatusDraft, out.Status)
	assert.Zero(t, out.Percentage)
	assert.Empty(t, out.Rating)

	stored, err := f.Store.Assessments().Get(ctx, a.ID)
	require.NoError(t, err)
	assert.NotEmpty(t, stored.Answers.All(), "answers survive a reopen")
	assert.NotNil(t, stored.SnapshotFrozenAt)
}

func TestHandler_Execute_Rejections(t *testing.T) {
	f := workertest.NewFixture(t)
	h := NewHandler(LoadConfig(config.WorkerConfig{}), workertest.NewGate(), f.Assessments, logger.NewTestLogger(t))
	draft := f.AssignedDraft(t)
	submitted := f.Submitted(t)

	tests := []struct {
		name  string
		input Input
		code  errors.ErrorCode
	}{
		{"unknown decision", Input{SessionToken: workertest.ReviewerToken, AssessmentID: submitted.ID, Decision: "escalate"}, errors.ErrCodeInvalidInput},
		{"reject without remark", Input{SessionToken: workertest.ReviewerToken, AssessmentID: submitted.ID, Decision: DecisionReject, Remark: "   "}, errors.ErrCodeInvalidInput},
		{"assessor approves", Input{SessionToken: workertest.AssessorToken, AssessmentID: submitted.ID, Decision: DecisionApprove}, errors.ErrCodeInsufficientPermissions},
		{"approve a draft", Input{SessionToken: workertest.ReviewerToken, AssessmentID: draft.ID, Decision: DecisionApprove}, errors.ErrCodeInvalidStatusTransition},
		{"reopen a submitted", Input{SessionToken: workertest.ReviewerToken, AssessmentID: submitted.ID, Decision: DecisionReopen}, errors.ErrCodeInvalidStatusTransition},
		{"unknown assessment", Input{SessionToken: workertest.ReviewerToken, AssessmentID: "nope", Decision: DecisionApprove}, errors.ErrCodeAssessmentNotFound},
		{"no session", Input{AssessmentID: submitted.ID, Decision: DecisionApprove}, errors.ErrCodeUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := h.Execute(context.Background(), &tt.input)
			assert.Equal(t, tt.code, errors.CodeOf(err))
		})
	}
}
