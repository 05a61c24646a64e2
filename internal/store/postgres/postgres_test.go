package postgres

import (
	"context"
	"database/sql"
	stderrors "errors"
	"testing"
	"time"

	"ipo-readiness/internal/common/errors"
	"ipo-readiness/internal/models"
	"ipo-readiness/internal/store"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return New(db), mock
}

var leadCols = []string{
	"id", "lead_id", "company_id", "company_name", "status", "assigned_assessor_id",
	"contact_name", "contact_email", "contact_phone", "source", "registry_fetched", "registry",
	"created_by", "created_at", "updated_at", "version",
}

func TestLeads_NextSequence(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery(`INSERT INTO lead_sequences`).
		WithArgs(2026).
		WillReturnRows(sqlmock.NewRows([]string{"value"}).AddRow(int64(42)))

	v, err := s.Leads().NextSequence(context.Background(), 2026)
	require.NoError(t, err)
	assert.Equal(t, int64(42), v)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLeads_Get(t *testing.T) {
	s, mock := newMockStore(t)
	now := time.Now().UTC()

	mock.ExpectQuery(`SELECT .+ FROM leads WHERE id = \$1`).
		WithArgs("lead-1").
		WillReturnRows(sqlmock.NewRows(leadCols).AddRow(
			"lead-1", "IPO-2026-0001", "U12345MH2010PLC000001", "Acme", "ASSIGNED", "ass-1",
			"Jane", "jane@acme.test", "", "REVIEWER", true,
			[]byte(`{"legalName":"Acme Industries Limited","paidUpCapital":100}`),
			"rev-1", now, now, int64(3),
		))

	l, err := s.Leads().Get(context.Background(), "lead-1")
	require.NoError(t, err)
	assert.Equal(t, models.LeadStatusAssigned, l.Status)
	require.NotNil(t, l.AssignedAssessorID)
	assert.Equal(t, "ass-1", *l.AssignedAssessorID)
	require.NotNil(t, l.Registry)
	assert.Equal(t, "Acme Industries Limited", l.Registry.LegalName)
	assert.Equal(t, int64(3), l.Version)
}

func TestLeads_GetNotFound(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery(`SELECT .+ FROM leads WHERE id = \$1`).
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	_, err := s.Leads().Get(context.Background(), "missing")
	assert.Equal(t, errors.ErrCodeLeadNotFound, errors.CodeOf(err))
}

func TestLeads_CreateDuplicateCompany(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectExec(`INSERT INTO leads`).
		WillReturnError(&pq.Error{Code: "23505", Constraint: "leads_company_id_key"})

	err := s.Leads().Create(context.Background(), &models.Lead{ID: "lead-1", CompanyID: "C1"})
	assert.Equal(t, errors.ErrCodeDuplicateUniqueKey, errors.CodeOf(err))
}

func TestLeads_UpdateCompareAndSwap(t *testing.T) {
	s, mock := newMockStore(t)
	lead := &models.Lead{ID: "lead-1", Status: models.LeadStatusAssigned, UpdatedAt: time.Now()}

	mock.ExpectExec(`UPDATE leads SET .+ WHERE id = \$1 AND version = \$2`).
		WithArgs("lead-1", int64(4), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(),
			sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, s.Leads().Update(context.Background(), lead, 4))
	assert.Equal(t, int64(5), lead.Version)

	mock.ExpectExec(`UPDATE leads SET`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := s.Leads().Update(context.Background(), lead, 4)
	assert.Equal(t, errors.ErrCodeConcurrentModification, errors.CodeOf(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLeads_ListBuildsFilter(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery(`SELECT .+ FROM leads WHERE status = \$1 AND assigned_assessor_id = \$2 ORDER BY created_at DESC LIMIT \$3`).
		WithArgs(models.LeadStatusInReview, "ass-1", 10).
		WillReturnRows(sqlmock.NewRows(leadCols))

	leads, err := s.Leads().List(context.Background(), models.LeadFilter{
		Status: models.LeadStatusInReview, AssessorID: "ass-1", Limit: 10,
	})
	require.NoError(t, err)
	assert.Empty(t, leads)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAssessments_GetDecodesAnswers(t *testing.T) {
	s, mock := newMockStore(t)
	now := time.Now().UTC()

	cols := []string{
		"id", "lead_id", "status", "eligibility", "eligibility_answers", "answers",
		"total_score", "max_score", "percentage", "rating", "submitted_at", "reviewed_at", "reviewer_id",
		"reviewer_remark", "snapshot_frozen_at", "created_at", "updated_at", "version",
	}
	mock.ExpectQuery(`SELECT .+ FROM assessments WHERE id = \$1`).
		WithArgs("asm-1").
		WillReturnRows(sqlmock.NewRows(cols).AddRow(
			"asm-1", "lead-1", "SUBMITTED", "ELIGIBLE",
			[]byte(`{"elig-1":{"checked":true,"remark":"ok"}}`),
			[]byte(`{"company":{"company-01":{"score":2}},"sector":{"sector-01":{"score":-1}}}`),
			16, 16, 100.0, "IPO_READY", now, nil, nil,
			"", now, now, now, int64(7),
		))

	a, err := s.Assessments().Get(context.Background(), "asm-1")
	require.NoError(t, err)
	assert.Equal(t, models.AssessmentStatusSubmitted, a.Status)
	assert.True(t, a.EligibilityAnswers["elig-1"].Checked)
	assert.Equal(t, 2, a.Answers.Company["company-01"].Score)
	assert.Equal(t, -1, a.Answers.Sector["sector-01"].Score)
	assert.Equal(t, models.RatingIPOReady, a.Rating)
	require.NotNil(t, a.SubmittedAt)
	assert.Nil(t, a.ReviewedAt)
	assert.NotNil(t, a.SnapshotFrozenAt)
}

func TestQuestions_InsertSnapshotIsOneStatement(t *testing.T) {
	s, mock := newMockStore(t)
	now := time.Now()
	tmpl := models.QuestionID("company-01")
	qs := []*models.SnapshotQuestion{
		{ID: "q1", AssessmentID: "asm-1", TemplateID: &tmpl, Category: models.CategoryCompany, Weight: 1, OrderIndex: 0, CreatedAt: now, UpdatedAt: now},
		{ID: "q2", AssessmentID: "asm-1", Category: models.CategoryCompany, Weight: 1, OrderIndex: 1, CreatedAt: now, UpdatedAt: now},
	}

	mock.ExpectExec(`INSERT INTO question_snapshots .+ VALUES \(\$1, .+\), \(\$12, .+\$22\)`).
		WillReturnResult(sqlmock.NewResult(0, 2))

	require.NoError(t, s.Questions().InsertSnapshot(context.Background(), qs))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestQuestions_SetSnapshotOrder(t *testing.T) {
	s, mock := newMockStore(t)
	ids := []models.QuestionID{"q3", "q1", "q2"}

	for i, id := range ids {
		mock.ExpectExec(`UPDATE question_snapshots SET order_index`).
			WithArgs("asm-1", models.CategoryCompany, id, i).
			WillReturnResult(sqlmock.NewResult(0, 1))
	}

	require.NoError(t, s.Questions().SetSnapshotOrder(context.Background(), "asm-1", models.CategoryCompany, ids))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestQuestions_SetSnapshotOrderUnknownID(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectExec(`UPDATE question_snapshots SET order_index`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := s.Questions().SetSnapshotOrder(context.Background(), "asm-1", models.CategoryCompany, []models.QuestionID{"nope"})
	assert.Equal(t, errors.ErrCodeQuestionNotFound, errors.CodeOf(err))
}

func TestInTx_CommitAndRollback(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO audit_log`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := s.InTx(context.Background(), func(tx store.Tx) error {
		return tx.Audit().Append(context.Background(), &models.AuditEntry{ID: "a1", EntityType: models.EntityLead, EntityID: "lead-1", Action: "create"})
	})
	require.NoError(t, err)

	mock.ExpectBegin()
	mock.ExpectRollback()

	boom := stderrors.New("boom")
	err = s.InTx(context.Background(), func(tx store.Tx) error { return boom })
	assert.ErrorIs(t, err, boom)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSubmissions_UpdateStatusRequiresFromStatus(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectExec(`UPDATE organic_submissions SET status = \$3`).
		WithArgs("sub-1", models.SubmissionApproved, models.SubmissionConverted, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))

	leadID := "lead-1"
	err := s.Submissions().UpdateStatus(context.Background(), "sub-1", models.SubmissionApproved, models.SubmissionConverted, &leadID)
	assert.Equal(t, errors.ErrCodeConcurrentModification, errors.CodeOf(err))
}

func TestPortalCodes_ConsumeOnce(t *testing.T) {
	s, mock := newMockStore(t)
	at := time.Now()

	mock.ExpectExec(`UPDATE portal_codes SET consumed_at`).WithArgs("pc-1", at).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE portal_codes SET consumed_at`).WithArgs("pc-1", at).WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, s.PortalCodes().Consume(context.Background(), "pc-1", at))
	err := s.PortalCodes().Consume(context.Background(), "pc-1", at)
	assert.Equal(t, errors.ErrCodePortalCodeNotFound, errors.CodeOf(err))
}
