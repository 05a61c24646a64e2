// Package errors provides the error taxonomy shared by the assessment workers
// and its mapping onto BPMN errors.
package errors

import (
	"context"
	"database/sql"
	stderrors "errors"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"
)

// ==========================
// 1. Standard Error Types
// ==========================

// ErrorCode is a stable, machine-readable error identifier.
type ErrorCode string

// Auth
const (
	ErrCodeUnauthorized            ErrorCode = "UNAUTHORIZED"
	ErrCodeInsufficientPermissions ErrorCode = "INSUFFICIENT_PERMISSIONS"
	ErrCodeUserInactive            ErrorCode = "USER_INACTIVE"
)

// Resource
const (
	ErrCodeLeadNotFound       ErrorCode = "LEAD_NOT_FOUND"
	ErrCodeAssessmentNotFound ErrorCode = "ASSESSMENT_NOT_FOUND"
	ErrCodeQuestionNotFound   ErrorCode = "QUESTION_NOT_FOUND"
	ErrCodeSubmissionNotFound ErrorCode = "SUBMISSION_NOT_FOUND"
	ErrCodeDocumentNotFound   ErrorCode = "DOCUMENT_NOT_FOUND"
	ErrCodeUserNotFound       ErrorCode = "USER_NOT_FOUND"
	ErrCodeCompanyNotFound    ErrorCode = "COMPANY_NOT_FOUND"
	ErrCodePortalCodeNotFound ErrorCode = "PORTAL_CODE_NOT_FOUND"
	ErrCodeTemplateNotFound   ErrorCode = "TEMPLATE_NOT_FOUND"
	ErrCodeResourceNotFound   ErrorCode = "RESOURCE_NOT_FOUND"
)

// Validation
const (
	ErrCodeInvalidInput       ErrorCode = "INVALID_INPUT"
	ErrCodeDuplicateUniqueKey ErrorCode = "DUPLICATE_UNIQUE_KEY"
)

// Concurrency
const (
	ErrCodeConcurrentModification ErrorCode = "CONCURRENT_MODIFICATION"
)

// Business rule
const (
	ErrCodeInvalidStatusTransition    ErrorCode = "INVALID_STATUS_TRANSITION"
	ErrCodeEligibilityNotMet          ErrorCode = "ELIGIBILITY_NOT_MET"
	ErrCodeAssessmentAlreadySubmitted ErrorCode = "ASSESSMENT_ALREADY_SUBMITTED"
	ErrCodeAssessmentNotDraft         ErrorCode = "ASSESSMENT_NOT_DRAFT"
	ErrCodeAssessmentIncomplete       ErrorCode = "ASSESSMENT_INCOMPLETE"
	ErrCodePortalCodeExpired          ErrorCode = "PORTAL_CODE_EXPIRED"
	ErrCodeRateLimited                ErrorCode = "RATE_LIMITED"
)

// System
const (
	ErrCodeScoringFailed            ErrorCode = "SCORING_FAILED"
	ErrCodeDatabaseError            ErrorCode = "DATABASE_ERROR"
	ErrCodeDatabaseConnectionFailed ErrorCode = "DATABASE_CONNECTION_FAILED"
	ErrCodeCacheError               ErrorCode = "CACHE_ERROR"
	ErrCodeSearchQueryFailed        ErrorCode = "SEARCH_QUERY_FAILED"
	ErrCodeStorageError             ErrorCode = "BLOB_STORAGE_ERROR"
	ErrCodeRegistryUnavailable      ErrorCode = "REGISTRY_UNAVAILABLE"
	ErrCodeNotificationSendFailed   ErrorCode = "NOTIFICATION_SEND_FAILED"
	ErrCodeTimeout                  ErrorCode = "TIMEOUT_ERROR"
	ErrCodeInternal                 ErrorCode = "INTERNAL_ERROR"
)

// StandardError represents a structured application error.
type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

func (e *StandardError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("StandardError[%s]: %s (%s)", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

// WithMetadata attaches a key to the error's metadata and returns the error.
func (e *StandardError) WithMetadata(key string, value interface{}) *StandardError {
	if e.Metadata == nil {
		e.Metadata = make(map[string]interface{})
	}
	e.Metadata[key] = value
	return e
}

func newError(code ErrorCode, message, details string, retryable bool) *StandardError {
	return &StandardError{
		Code:      code,
		Message:   message,
		Details:   details,
		Retryable: retryable,
		Timestamp: time.Now().UTC(),
	}
}

// ==========================
// 2. BPMN Error Integration
// ==========================

// BPMNError represents an error that can be thrown to the Camunda workflow engine.
type BPMNError struct {
	Code           string                 `json:"code"`
	Message        string                 `json:"message"`
	Details        string                 `json:"details,omitempty"`
	Retryable      bool                   `json:"retryable"`
	Retries        int                    `json:"retries"`
	ErrorVariables map[string]interface{} `json:"errorVariables,omitempty"`
}

func (e *BPMNError) Error() string {
	return fmt.Sprintf("BPMNError[%s]: %s", e.Code, e.Message)
}

// ToErrorVariables returns the process variables published with a failed job.
func (e *BPMNError) ToErrorVariables() map[string]interface{} {
	vars := map[string]interface{}{
		"errorCode":    e.Code,
		"errorMessage": e.Message,
		"errorDetails": e.Details,
		"retryable":    e.Retryable,
	}
	for k, v := range e.ErrorVariables {
		vars[k] = v
	}
	return vars
}

// ==========================
// 3. Error Constructors
// ==========================

func NewUnauthorizedError(details string) *StandardError {
	return newError(ErrCodeUnauthorized, "Authentication required", details, false)
}

func NewInsufficientPermissionsError(role, action string) *StandardError {
	return newError(ErrCodeInsufficientPermissions, "Caller is not allowed to perform this action",
		fmt.Sprintf("role: %s, action: %s", role, action), false)
}

func NewUserInactiveError(userID string) *StandardError {
	return newError(ErrCodeUserInactive, "User account is inactive", fmt.Sprintf("userId: %s", userID), false)
}

// NewNotFoundError builds a resource-specific not-found error.
func NewNotFoundError(code ErrorCode, resource, id string) *StandardError {
	return newError(code, fmt.Sprintf("%s not found", resource), fmt.Sprintf("id: %s", id), false)
}

func NewLeadNotFoundError(id string) *StandardError {
	return NewNotFoundError(ErrCodeLeadNotFound, "Lead", id)
}

func NewAssessmentNotFoundError(id string) *StandardError {
	return NewNotFoundError(ErrCodeAssessmentNotFound, "Assessment", id)
}

func NewQuestionNotFoundError(id string) *StandardError {
	return NewNotFoundError(ErrCodeQuestionNotFound, "Question", id)
}

func NewInvalidInputError(details string) *StandardError {
	return newError(ErrCodeInvalidInput, "Invalid input", details, false)
}

func NewDuplicateUniqueKeyError(details string) *StandardError {
	return newError(ErrCodeDuplicateUniqueKey, "Record already exists", details, false)
}

// NewConcurrentModificationError reports a stale version token. The caller
// must reload the record and re-apply its change.
func NewConcurrentModificationError(resource, id string, expected int64) *StandardError {
	return newError(ErrCodeConcurrentModification, "Data was changed by someone else, refresh and retry",
		fmt.Sprintf("%s: %s, expectedVersion: %d", resource, id, expected), false)
}

func NewInvalidStatusTransitionError(resource, from, to string) *StandardError {
	err := newError(ErrCodeInvalidStatusTransition,
		fmt.Sprintf("Invalid %s status transition from %s to %s", resource, from, to), "", false)
	return err.WithMetadata("from", from).WithMetadata("to", to)
}

func NewEligibilityNotMetError(details string) *StandardError {
	return newError(ErrCodeEligibilityNotMet, "Eligibility must be confirmed before answering the assessment", details, false)
}

func NewAssessmentAlreadySubmittedError(id, status string) *StandardError {
	return newError(ErrCodeAssessmentAlreadySubmitted, "Assessment has already been submitted",
		fmt.Sprintf("assessmentId: %s, status: %s", id, status), false)
}

// NewAssessmentNotDraftError is returned for any answer or snapshot mutation
// outside DRAFT.
func NewAssessmentNotDraftError(id, status string) *StandardError {
	return newError(ErrCodeAssessmentNotDraft, "Assessment can only be changed while in DRAFT",
		fmt.Sprintf("assessmentId: %s, status: %s", id, status), false)
}

func NewAssessmentIncompleteError(missing []string) *StandardError {
	err := newError(ErrCodeAssessmentIncomplete, "Every question must be answered before submission",
		fmt.Sprintf("unanswered: %s", strings.Join(missing, ",")), false)
	return err.WithMetadata("unanswered", missing)
}

func NewScoringFailedError(details string) *StandardError {
	return newError(ErrCodeScoringFailed, "Score calculation failed", details, false)
}

func NewDatabaseError(op string, err error) *StandardError {
	return newError(ErrCodeDatabaseError, "Database operation failed", fmt.Sprintf("op: %s, error: %v", op, err), true)
}

func NewDatabaseConnectionFailedError(err error) *StandardError {
	return newError(ErrCodeDatabaseConnectionFailed, "Database connection error", err.Error(), true)
}

func NewCacheError(op string, err error) *StandardError {
	return newError(ErrCodeCacheError, "Cache operation failed", fmt.Sprintf("op: %s, error: %v", op, err), true)
}

func NewSearchQueryFailedError(err error) *StandardError {
	return newError(ErrCodeSearchQueryFailed, "Elasticsearch query error", err.Error(), true)
}

func NewStorageError(op string, err error) *StandardError {
	return newError(ErrCodeStorageError, "Blob storage operation failed", fmt.Sprintf("op: %s, error: %v", op, err), true)
}

func NewRegistryUnavailableError(err error) *StandardError {
	return newError(ErrCodeRegistryUnavailable, "Company registry is unavailable", err.Error(), true)
}

func NewNotificationSendFailedError(template string, err error) *StandardError {
	return newError(ErrCodeNotificationSendFailed, "Notification delivery failed",
		fmt.Sprintf("template: %s, error: %v", template, err), true)
}

func NewPortalCodeExpiredError(identifier string) *StandardError {
	return newError(ErrCodePortalCodeExpired, "Access code has expired", fmt.Sprintf("identifier: %s", identifier), false)
}

func NewRateLimitedError(details string) *StandardError {
	return newError(ErrCodeRateLimited, "Too many attempts, try again later", details, false)
}

func NewTimeoutError(service string, err error) *StandardError {
	return newError(ErrCodeTimeout, fmt.Sprintf("Service '%s' timeout", service), err.Error(), true)
}

func NewInternalError(err error) *StandardError {
	return newError(ErrCodeInternal, "Unexpected error", err.Error(), false)
}

// ==========================
// 4. Inspection & Translation
// ==========================

// AsStandard returns the StandardError in err's chain, if any.
func AsStandard(err error) (*StandardError, bool) {
	var stdErr *StandardError
	if stderrors.As(err, &stdErr) {
		return stdErr, true
	}
	return nil, false
}

// CodeOf returns the taxonomy code carried by err, INTERNAL_ERROR for foreign
// errors and "" for nil.
func CodeOf(err error) ErrorCode {
	if err == nil {
		return ""
	}
	if stdErr, ok := AsStandard(err); ok {
		return stdErr.Code
	}
	return ErrCodeInternal
}

// Is reports whether err carries the given code.
func Is(err error, code ErrorCode) bool {
	return err != nil && CodeOf(err) == code
}

// Normalize converts any error to a StandardError.
func Normalize(err error) *StandardError {
	if stdErr, ok := AsStandard(err); ok {
		return stdErr
	}
	switch {
	case stderrors.Is(err, context.DeadlineExceeded):
		return NewTimeoutError("operation", err)
	case stderrors.Is(err, context.Canceled):
		return newError(ErrCodeTimeout, "Operation cancelled", err.Error(), true)
	}
	return NewInternalError(err)
}

// FromStorage translates a storage-layer error into the taxonomy. StandardErrors
// pass through unchanged.
func FromStorage(op string, err error) error {
	if err == nil {
		return nil
	}
	if _, ok := AsStandard(err); ok {
		return err
	}
	if stderrors.Is(err, sql.ErrNoRows) {
		return newError(ErrCodeResourceNotFound, "Record not found", fmt.Sprintf("op: %s", op), false)
	}
	var pqErr *pq.Error
	if stderrors.As(err, &pqErr) {
		switch pqErr.Code {
		case "23505":
			return NewDuplicateUniqueKeyError(fmt.Sprintf("op: %s, constraint: %s", op, pqErr.Constraint))
		case "40001", "40P01":
			e := NewDatabaseError(op, err)
			e.Message = "Transaction conflict, retry"
			return e
		case "23503", "23514", "22P02":
			return NewInvalidInputError(fmt.Sprintf("op: %s, %s", op, pqErr.Message))
		}
	}
	if stderrors.Is(err, context.DeadlineExceeded) {
		return NewTimeoutError("postgres", err)
	}
	return NewDatabaseError(op, err)
}

// ==========================
// 5. Error Conversion to BPMN
// ==========================

// GetRetryCount returns the number of job retries granted for a code.
func GetRetryCount(code ErrorCode) int {
	switch code {
	case ErrCodeDatabaseError,
		ErrCodeDatabaseConnectionFailed,
		ErrCodeCacheError,
		ErrCodeSearchQueryFailed,
		ErrCodeStorageError,
		ErrCodeRegistryUnavailable,
		ErrCodeNotificationSendFailed:
		return 3
	case ErrCodeTimeout:
		return 2
	default:
		return 0
	}
}

// ConvertToBPMNError converts a StandardError to a BPMNError for Camunda.
func ConvertToBPMNError(stdErr *StandardError) *BPMNError {
	retries := GetRetryCount(stdErr.Code)
	if !stdErr.Retryable {
		retries = 0
	}

	vars := map[string]interface{}{
		"errorCategory": GetErrorCategory(stdErr.Code),
		"timestamp":     stdErr.Timestamp.Format(time.RFC3339),
	}
	for k, v := range stdErr.Metadata {
		vars[k] = v
	}

	return &BPMNError{
		Code:           string(stdErr.Code),
		Message:        stdErr.Message,
		Details:        stdErr.Details,
		Retryable:      stdErr.Retryable,
		Retries:        retries,
		ErrorVariables: vars,
	}
}

// IsRetryableErrorCode checks if an error code is retryable.
func IsRetryableErrorCode(code ErrorCode) bool {
	return GetRetryCount(code) > 0
}

// GetErrorCategory returns the taxonomy category of the error code.
func GetErrorCategory(code ErrorCode) string {
	switch code {
	case ErrCodeUnauthorized, ErrCodeInsufficientPermissions, ErrCodeUserInactive:
		return "AUTH"
	case ErrCodeInvalidInput, ErrCodeDuplicateUniqueKey:
		return "VALIDATION"
	case ErrCodeConcurrentModification:
		return "CONCURRENCY"
	case ErrCodeInvalidStatusTransition, ErrCodeEligibilityNotMet, ErrCodeAssessmentAlreadySubmitted,
		ErrCodeAssessmentNotDraft, ErrCodeAssessmentIncomplete, ErrCodePortalCodeExpired, ErrCodeRateLimited:
		return "BUSINESS_RULE"
	}
	if strings.HasSuffix(string(code), "_NOT_FOUND") {
		return "RESOURCE"
	}
	return "SYSTEM"
}

// KnownCodes lists every code in the taxonomy.
func KnownCodes() map[string]bool {
	codes := []ErrorCode{
		ErrCodeUnauthorized, ErrCodeInsufficientPermissions, ErrCodeUserInactive,
		ErrCodeLeadNotFound, ErrCodeAssessmentNotFound, ErrCodeQuestionNotFound, ErrCodeSubmissionNotFound,
		ErrCodeDocumentNotFound, ErrCodeUserNotFound, ErrCodeCompanyNotFound, ErrCodePortalCodeNotFound,
		ErrCodeTemplateNotFound, ErrCodeResourceNotFound,
		ErrCodeInvalidInput, ErrCodeDuplicateUniqueKey,
		ErrCodeConcurrentModification,
		ErrCodeInvalidStatusTransition, ErrCodeEligibilityNotMet, ErrCodeAssessmentAlreadySubmitted,
		ErrCodeAssessmentNotDraft, ErrCodeAssessmentIncomplete, ErrCodePortalCodeExpired, ErrCodeRateLimited,
		ErrCodeScoringFailed, ErrCodeDatabaseError, ErrCodeDatabaseConnectionFailed, ErrCodeCacheError,
		ErrCodeSearchQueryFailed, ErrCodeStorageError, ErrCodeRegistryUnavailable, ErrCodeNotificationSendFailed,
		ErrCodeTimeout, ErrCodeInternal,
	}
	out := make(map[string]bool, len(codes))
	for _, c := range codes {
		out[string(c)] = true
	}
	return out
}
