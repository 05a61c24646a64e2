// Package store defines the record store behind leads, assessments and their
// question snapshots. Every mutating repository call that takes an
// expectedVersion is a compare-and-swap: it fails with CONCURRENT_MODIFICATION
// when the stored version differs, and bumps the version by one on success.
package store

import (
	"context"
	"time"

	"ipo-readiness/internal/models"
)

type LeadRepository interface {
	// NextSequence atomically increments and returns the year's counter.
	NextSequence(ctx context.Context, year int) (int64, error)
	Create(ctx context.Context, lead *models.Lead) error
	Get(ctx context.Context, id string) (*models.Lead, error)
	GetByCompanyID(ctx context.Context, companyID string) (*models.Lead, error)
	Update(ctx context.Context, lead *models.Lead, expectedVersion int64) error
	List(ctx context.Context, filter models.LeadFilter) ([]*models.Lead, error)
}

type AssessmentRepository interface {
	Create(ctx context.Context, a *models.Assessment) error
	Get(ctx context.Context, id string) (*models.Assessment, error)
	GetByLead(ctx context.Context, leadID string) (*models.Assessment, error)
	Update(ctx context.Context, a *models.Assessment, expectedVersion int64) error
}

type QuestionRepository interface {
	ListTemplates(ctx context.Context, activeOnly bool) ([]*models.QuestionTemplate, error)
	UpsertTemplate(ctx context.Context, t *models.QuestionTemplate) error

	// InsertSnapshot bulk-inserts assessment-scoped copies.
	InsertSnapshot(ctx context.Context, questions []*models.SnapshotQuestion) error
	// ListSnapshot returns questions ordered by category then order index. An
	// empty category lists every category.
	ListSnapshot(ctx context.Context, assessmentID string, category models.Category) ([]*models.SnapshotQuestion, error)
	GetSnapshotQuestion(ctx context.Context, assessmentID string, id models.QuestionID) (*models.SnapshotQuestion, error)
	UpdateSnapshotQuestion(ctx context.Context, q *models.SnapshotQuestion) error
	DeleteSnapshotQuestion(ctx context.Context, assessmentID string, id models.QuestionID) error
	// SetSnapshotOrder rewrites order indices of a category to 0..n-1 in the
	// given id order.
	SetSnapshotOrder(ctx context.Context, assessmentID string, category models.Category, ids []models.QuestionID) error
}

type AuditRepository interface {
	Append(ctx context.Context, e *models.AuditEntry) error
	List(ctx context.Context, entityType, entityID string) ([]*models.AuditEntry, error)
}

type SubmissionRepository interface {
	Create(ctx context.Context, s *models.OrganicSubmission) error
	Get(ctx context.Context, id string) (*models.OrganicSubmission, error)
	// UpdateStatus moves a submission from one status to another, failing with
	// CONCURRENT_MODIFICATION when it is no longer in from.
	UpdateStatus(ctx context.Context, id string, from, to models.SubmissionStatus, leadID *string) error
}

type DocumentRepository interface {
	Create(ctx context.Context, d *models.Document) error
	Get(ctx context.Context, id string) (*models.Document, error)
	Delete(ctx context.Context, id string) error
	ListByLead(ctx context.Context, leadID string) ([]*models.Document, error)
}

type PortalCodeRepository interface {
	Create(ctx context.Context, c *models.PortalCode) error
	// ListActive returns unconsumed codes for identifier, newest first,
	// including expired ones so callers can report expiry.
	ListActive(ctx context.Context, identifier string) ([]*models.PortalCode, error)
	// Consume marks a code used. A code can be consumed once.
	Consume(ctx context.Context, id string, at time.Time) error
}

type UserRepository interface {
	Get(ctx context.Context, id string) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	Upsert(ctx context.Context, u *models.User) error
}

// Tx exposes the repositories bound to one transaction.
type Tx interface {
	Leads() LeadRepository
	Assessments() AssessmentRepository
	Questions() QuestionRepository
	Audit() AuditRepository
	Submissions() SubmissionRepository
	Documents() DocumentRepository
	PortalCodes() PortalCodeRepository
	Users() UserRepository
}

// Store is a Tx whose calls each run in their own transaction, plus InTx for
// multi-statement units of work. fn's error rolls the transaction back.
type Store interface {
	Tx
	InTx(ctx context.Context, fn func(tx Tx) error) error
	Ping(ctx context.Context) error
	Close() error
}
