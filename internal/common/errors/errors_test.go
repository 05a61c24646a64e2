package errors

import (
	"context"
	"database/sql"
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ==========================
// Inspection
// ==========================

func TestCodeOf(t *testing.T) {
	assert.Equal(t, ErrorCode(""), CodeOf(nil))
	assert.Equal(t, ErrCodeInternal, CodeOf(fmt.Errorf("boom")))

	wrapped := fmt.Errorf("submit: %w", NewConcurrentModificationError("assessment", "a1", 3))
	assert.Equal(t, ErrCodeConcurrentModification, CodeOf(wrapped))
	assert.True(t, Is(wrapped, ErrCodeConcurrentModification))
	assert.False(t, Is(wrapped, ErrCodeAssessmentNotDraft))
}

func TestInvalidStatusTransitionNamesBothEndpoints(t *testing.T) {
	err := NewInvalidStatusTransitionError("lead", "NEW", "COMPLETED")

	assert.Contains(t, err.Message, "NEW")
	assert.Contains(t, err.Message, "COMPLETED")
	assert.Equal(t, "NEW", err.Metadata["from"])
	assert.Equal(t, "COMPLETED", err.Metadata["to"])
	assert.False(t, err.Retryable)
}

func TestNormalize(t *testing.T) {
	assert.Equal(t, ErrCodeTimeout, Normalize(context.DeadlineExceeded).Code)
	assert.Equal(t, ErrCodeInternal, Normalize(fmt.Errorf("boom")).Code)

	orig := NewLeadNotFoundError("IPO-2026-0001")
	assert.Same(t, orig, Normalize(orig))
}

// ==========================
// Storage translation
// ==========================

func TestFromStorage(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		wantCode  ErrorCode
		retryable bool
	}{
		{"no rows", sql.ErrNoRows, ErrCodeResourceNotFound, false},
		{"unique violation", &pq.Error{Code: "23505", Constraint: "leads_company_id_key"}, ErrCodeDuplicateUniqueKey, false},
		{"serialization failure", &pq.Error{Code: "40001"}, ErrCodeDatabaseError, true},
		{"deadlock", &pq.Error{Code: "40P01"}, ErrCodeDatabaseError, true},
		{"check violation", &pq.Error{Code: "23514", Message: "bad score"}, ErrCodeInvalidInput, false},
		{"generic", stderrors.New("connection reset"), ErrCodeDatabaseError, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FromStorage("insert lead", tt.err)
			std, ok := AsStandard(got)
			require.True(t, ok)
			assert.Equal(t, tt.wantCode, std.Code)
			assert.Equal(t, tt.retryable, std.Retryable)
		})
	}

	assert.NoError(t, FromStorage("noop", nil))

	passthrough := NewAssessmentNotDraftError("a1", "SUBMITTED")
	assert.Same(t, passthrough, FromStorage("update", passthrough))
}

// ==========================
// BPMN conversion
// ==========================

func TestConvertToBPMNError(t *testing.T) {
	business := ConvertToBPMNError(NewEligibilityNotMetError("assessment a1"))
	assert.Equal(t, "ELIGIBILITY_NOT_MET", business.Code)
	assert.Equal(t, 0, business.Retries)
	assert.Equal(t, "BUSINESS_RULE", business.ToErrorVariables()["errorCategory"])

	technical := ConvertToBPMNError(NewDatabaseError("select", fmt.Errorf("reset")))
	assert.Equal(t, 3, technical.Retries)
	assert.True(t, technical.Retryable)
}

func TestGetErrorCategory(t *testing.T) {
	assert.Equal(t, "AUTH", GetErrorCategory(ErrCodeUserInactive))
	assert.Equal(t, "RESOURCE", GetErrorCategory(ErrCodeLeadNotFound))
	assert.Equal(t, "VALIDATION", GetErrorCategory(ErrCodeDuplicateUniqueKey))
	assert.Equal(t, "CONCURRENCY", GetErrorCategory(ErrCodeConcurrentModification))
	assert.Equal(t, "BUSINESS_RULE", GetErrorCategory(ErrCodeAssessmentAlreadySubmitted))
	assert.Equal(t, "SYSTEM", GetErrorCategory(ErrCodeDatabaseError))
}
