// internal/workers/assessment/update-eligibility-answers/handler_test.go
package updateeligibilityanswers

import (
	"context"
	"testing"

	"ipo-readiness/internal/common/config"
	"ipo-readiness/internal/common/errors"
	"ipo-readiness/internal/common/logger"
	"ipo-readiness/internal/models"
	"ipo-readiness/internal/workers/workertest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandler_Execute_ReplacesAnswers(t *testing.T) {
	f := workertest.NewFixture(t)
	h := NewHandler(LoadConfig(config.WorkerConfig{}), workertest.NewGate(), f.Assessments, logger.NewTestLogger(t))
	a := f.AssignedDraft(t)
	ids := f.QuestionIDs(t, a.ID, models.CategoryEligibility)
	require.Len(t, ids, 5)

	out, err := h.Execute(context.Background(), &Input{
		SessionToken: workertest.AssessorToken,
		AssessmentID: a.ID,
		Answers: models.EligibilityAnswers{
			ids[0]: {Checked: true},
			ids[1]: {Checked: false, Remark: "auditor qualified the accounts"},
		},
		ExpectedVersion: a.Version,
	})
	require.NoError(t, err)
	assert.Equal(t, 2, out.Answered)
	assert.Equal(t, 1, out.Checked)
	assert.Equal(t, a.Version+1, out.Version)

	out, err = h.Execute(context.Background(), &Input{
		SessionToken:    workertest.AssessorToken,
		AssessmentID:    a.ID,
		Answers:         models.EligibilityAnswers{ids[4]: {Checked: true}},
		ExpectedVersion: out.Version,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, out.Answered, "the whole map is replaced")
}

func TestHandler_Execute_Rejections(t *testing.T) {
	f := workertest.NewFixture(t)
	h := NewHandler(LoadConfig(config.WorkerConfig{}), workertest.NewGate(), f.Assessments, logger.NewTestLogger(t))
	a := f.AssignedDraft(t)
	company := f.QuestionIDs(t, a.ID, models.CategoryCompany)
	settled := f.Eligible(t)

	tests := []struct {
		name  string
		input Input
		code  errors.ErrorCode
	}{
		{"scored question key", Input{SessionToken: workertest.AssessorToken, AssessmentID: a.ID, Answers: models.EligibilityAnswers{company[0]: {Checked: true}}, ExpectedVersion: a.Version}, errors.ErrCodeInvalidInput},
		{"stale version", Input{SessionToken: workertest.AssessorToken, AssessmentID: a.ID, ExpectedVersion: a.Version + 3}, errors.ErrCodeConcurrentModification},
		{"unknown assessment", Input{SessionToken: workertest.AssessorToken, AssessmentID: "nope", ExpectedVersion: 1}, errors.ErrCodeAssessmentNotFound},
		{"no session", Input{AssessmentID: a.ID, ExpectedVersion: a.Version}, errors.ErrCodeUnauthorized},
		{"outcome already settled", Input{SessionToken: workertest.AssessorToken, AssessmentID: settled.ID, ExpectedVersion: settled.Version}, errors.ErrCodeInvalidStatusTransition},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := h.Execute(context.Background(), &tt.input)
			assert.Equal(t, tt.code, errors.CodeOf(err))
		})
	}
}
