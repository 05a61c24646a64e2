package postgres

import (
	"context"
	"database/sql"
	"time"

	"ipo-readiness/internal/common/errors"
	"ipo-readiness/internal/models"
)

type submissionRepo struct {
	q dbtx
}

func (r *submissionRepo) Create(ctx context.Context, s *models.OrganicSubmission) error {
	_, err := r.q.ExecContext(ctx, `
		INSERT INTO organic_submissions (id, company_id, company_name, contact_name, contact_email,
			contact_phone, email_verified, status, lead_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		s.ID, s.CompanyID, s.CompanyName, s.ContactName, s.ContactEmail,
		s.ContactPhone, s.EmailVerified, s.Status, nullString(s.LeadID), s.CreatedAt, s.UpdatedAt,
	)
	return errors.FromStorage("create submission", err)
}

func (r *submissionRepo) Get(ctx context.Context, id string) (*models.OrganicSubmission, error) {
	var (
		s      models.OrganicSubmission
		leadID sql.NullString
	)
	err := r.q.QueryRowContext(ctx, `
		SELECT id, company_id, company_name, contact_name, contact_email, contact_phone,
			email_verified, status, lead_id, created_at, updated_at
		FROM organic_submissions WHERE id = $1`, id).Scan(
		&s.ID, &s.CompanyID, &s.CompanyName, &s.ContactName, &s.ContactEmail, &s.ContactPhone,
		&s.EmailVerified, &s.Status, &leadID, &s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		return nil, notFound(err, func() *errors.StandardError {
			return errors.NewNotFoundError(errors.ErrCodeSubmissionNotFound, "Submission", id)
		}, "get submission")
	}
	s.LeadID = stringPtr(leadID)
	return &s, nil
}

func (r *submissionRepo) UpdateStatus(ctx context.Context, id string, from, to models.SubmissionStatus, leadID *string) error {
	res, err := r.q.ExecContext(ctx, `
		UPDATE organic_submissions SET status = $3, lead_id = COALESCE($4, lead_id), updated_at = $5
		WHERE id = $1 AND status = $2`,
		id, from, to, nullString(leadID), time.Now().UTC(),
	)
	if err != nil {
		return errors.FromStorage("update submission status", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return errors.FromStorage("rows affected", err)
	}
	if n == 0 {
		return errors.NewConcurrentModificationError("submission", id, 0).WithMetadata("expectedStatus", string(from))
	}
	return nil
}
