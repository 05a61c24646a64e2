package postgres

import (
	"context"
	"database/sql"

	"ipo-readiness/internal/common/errors"
	"ipo-readiness/internal/models"
)

type assessmentRepo struct {
	q dbtx
}

const assessmentColumns = `id, lead_id, status, eligibility, eligibility_answers, answers,
	total_score, max_score, percentage, rating, submitted_at, reviewed_at, reviewer_id,
	reviewer_remark, snapshot_frozen_at, created_at, updated_at, version`

func (r *assessmentRepo) Create(ctx context.Context, a *models.Assessment) error {
	eligibility, answers, err := marshalAnswers(a)
	if err != nil {
		return err
	}
	_, err = r.q.ExecContext(ctx, `
		INSERT INTO assessments (`+assessmentColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)`,
		a.ID, a.LeadID, a.Status, a.Eligibility, eligibility, answers,
		a.TotalScore, a.MaxScore, a.Percentage, a.Rating, a.SubmittedAt, a.ReviewedAt, nullString(a.ReviewerID),
		a.ReviewerRemark, a.SnapshotFrozenAt, a.CreatedAt, a.UpdatedAt, a.Version,
	)
	return errors.FromStorage("create assessment", err)
}

func (r *assessmentRepo) Get(ctx context.Context, id string) (*models.Assessment, error) {
	row := r.q.QueryRowContext(ctx, `SELECT `+assessmentColumns+` FROM assessments WHERE id = $1`, id)
	a, err := scanAssessment(row)
	if err != nil {
		return nil, notFound(err, func() *errors.StandardError { return errors.NewAssessmentNotFoundError(id) }, "get assessment")
	}
	return a, nil
}

func (r *assessmentRepo) GetByLead(ctx context.Context, leadID string) (*models.Assessment, error) {
	row := r.q.QueryRowContext(ctx, `SELECT `+assessmentColumns+` FROM assessments WHERE lead_id = $1`, leadID)
	a, err := scanAssessment(row)
	if err != nil {
		return nil, notFound(err, func() *errors.StandardError { return errors.NewAssessmentNotFoundError("lead " + leadID) }, "get assessment by lead")
	}
	return a, nil
}

func (r *assessmentRepo) Update(ctx context.Context, a *models.Assessment, expectedVersion int64) error {
	eligibility, answers, err := marshalAnswers(a)
	if err != nil {
		return err
	}
	res, err := r.q.ExecContext(ctx, `
		UPDATE assessments SET
			status = $3, eligibility = $4, eligibility_answers = $5, answers = $6,
			total_score = $7, max_score = $8, percentage = $9, rating = $10,
			submitted_at = $11, reviewed_at = $12, reviewer_id = $13, reviewer_remark = $14,
			snapshot_frozen_at = $15, updated_at = $16, version = version + 1
		WHERE id = $1 AND version = $2`,
		a.ID, expectedVersion,
		a.Status, a.Eligibility, eligibility, answers,
		a.TotalScore, a.MaxScore, a.Percentage, a.Rating,
		a.SubmittedAt, a.ReviewedAt, nullString(a.ReviewerID), a.ReviewerRemark,
		a.SnapshotFrozenAt, a.UpdatedAt,
	)
	if err != nil {
		return errors.FromStorage("update assessment", err)
	}
	if err := checkAffected(res, "assessment", a.ID, expectedVersion); err != nil {
		return err
	}
	a.Version = expectedVersion + 1
	return nil
}

func scanAssessment(s scanner) (*models.Assessment, error) {
	var (
		a           models.Assessment
		eligibility []byte
		answers     []byte
		submitted   sql.NullTime
		reviewed    sql.NullTime
		frozen      sql.NullTime
		reviewer    sql.NullString
	)
	err := s.Scan(
		&a.ID, &a.LeadID, &a.Status, &a.Eligibility, &eligibility, &answers,
		&a.TotalScore, &a.MaxScore, &a.Percentage, &a.Rating, &submitted, &reviewed, &reviewer,
		&a.ReviewerRemark, &frozen, &a.CreatedAt, &a.UpdatedAt, &a.Version,
	)
	if err != nil {
		return nil, err
	}
	a.EligibilityAnswers = models.EligibilityAnswers{}
	if err := unmarshalJSON(eligibility, &a.EligibilityAnswers); err != nil {
		return nil, err
	}
	if err := unmarshalJSON(answers, &a.Answers); err != nil {
		return nil, err
	}
	if a.EligibilityAnswers == nil {
		a.EligibilityAnswers = models.EligibilityAnswers{}
	}
	a.SubmittedAt = timePtr(submitted)
	a.ReviewedAt = timePtr(reviewed)
	a.SnapshotFrozenAt = timePtr(frozen)
	a.ReviewerID = stringPtr(reviewer)
	return &a, nil
}

func marshalAnswers(a *models.Assessment) ([]byte, []byte, error) {
	eligibility, err := marshalJSON(a.EligibilityAnswers)
	if err != nil {
		return nil, nil, err
	}
	answers, err := marshalJSON(a.Answers)
	if err != nil {
		return nil, nil, err
	}
	return eligibility, answers, nil
}
