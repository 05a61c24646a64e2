package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"ipo-readiness/internal/common/errors"
	"ipo-readiness/internal/models"
)

type questionRepo struct {
	q dbtx
}

const snapshotColumns = `id, assessment_id, template_id, category, text, help_text, type,
	weight, order_index, created_at, updated_at`

func (r *questionRepo) ListTemplates(ctx context.Context, activeOnly bool) ([]*models.QuestionTemplate, error) {
	query := `SELECT id, category, text, help_text, type, weight, order_index, active FROM question_templates`
	if activeOnly {
		query += ` WHERE active`
	}
	query += ` ORDER BY category, order_index`

	rows, err := r.q.QueryContext(ctx, query)
	if err != nil {
		return nil, errors.FromStorage("list templates", err)
	}
	defer rows.Close()

	var out []*models.QuestionTemplate
	for rows.Next() {
		var t models.QuestionTemplate
		if err := rows.Scan(&t.ID, &t.Category, &t.Text, &t.HelpText, &t.Type, &t.Weight, &t.OrderIndex, &t.Active); err != nil {
			return nil, errors.FromStorage("scan template", err)
		}
		out = append(out, &t)
	}
	return out, errors.FromStorage("iterate templates", rows.Err())
}

func (r *questionRepo) UpsertTemplate(ctx context.Context, t *models.QuestionTemplate) error {
	_, err := r.q.ExecContext(ctx, `
		INSERT INTO question_templates (id, category, text, help_text, type, weight, order_index, active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE SET
			category = EXCLUDED.category, text = EXCLUDED.text, help_text = EXCLUDED.help_text,
			type = EXCLUDED.type, weight = EXCLUDED.weight, order_index = EXCLUDED.order_index,
			active = EXCLUDED.active`,
		t.ID, t.Category, t.Text, t.HelpText, t.Type, t.Weight, t.OrderIndex, t.Active,
	)
	return errors.FromStorage("upsert template", err)
}

// InsertSnapshot writes all rows with one multi-VALUES statement.
func (r *questionRepo) InsertSnapshot(ctx context.Context, questions []*models.SnapshotQuestion) error {
	if len(questions) == 0 {
		return nil
	}
	const cols = 11
	placeholders := make([]string, 0, len(questions))
	args := make([]interface{}, 0, len(questions)*cols)
	for i, q := range questions {
		p := make([]string, cols)
		for j := range p {
			p[j] = fmt.Sprintf("$%d", i*cols+j+1)
		}
		placeholders = append(placeholders, "("+strings.Join(p, ", ")+")")
		args = append(args,
			q.ID, q.AssessmentID, templateID(q.TemplateID), q.Category, q.Text, q.HelpText, q.Type,
			q.Weight, q.OrderIndex, q.CreatedAt, q.UpdatedAt,
		)
	}
	_, err := r.q.ExecContext(ctx,
		`INSERT INTO question_snapshots (`+snapshotColumns+`) VALUES `+strings.Join(placeholders, ", "),
		args...,
	)
	return errors.FromStorage("insert snapshot", err)
}

func (r *questionRepo) ListSnapshot(ctx context.Context, assessmentID string, category models.Category) ([]*models.SnapshotQuestion, error) {
	query := `SELECT ` + snapshotColumns + ` FROM question_snapshots WHERE assessment_id = $1`
	args := []interface{}{assessmentID}
	if category != "" {
		query += ` AND category = $2`
		args = append(args, category)
	}
	query += ` ORDER BY category, order_index`

	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.FromStorage("list snapshot", err)
	}
	defer rows.Close()

	var out []*models.SnapshotQuestion
	for rows.Next() {
		q, err := scanSnapshot(rows)
		if err != nil {
			return nil, errors.FromStorage("scan snapshot", err)
		}
		out = append(out, q)
	}
	return out, errors.FromStorage("iterate snapshot", rows.Err())
}

func (r *questionRepo) GetSnapshotQuestion(ctx context.Context, assessmentID string, id models.QuestionID) (*models.SnapshotQuestion, error) {
	row := r.q.QueryRowContext(ctx,
		`SELECT `+snapshotColumns+` FROM question_snapshots WHERE assessment_id = $1 AND id = $2`,
		assessmentID, id)
	q, err := scanSnapshot(row)
	if err != nil {
		return nil, notFound(err, func() *errors.StandardError { return errors.NewQuestionNotFoundError(string(id)) }, "get snapshot question")
	}
	return q, nil
}

func (r *questionRepo) UpdateSnapshotQuestion(ctx context.Context, q *models.SnapshotQuestion) error {
	res, err := r.q.ExecContext(ctx, `
		UPDATE question_snapshots SET
			text = $3, help_text = $4, type = $5, weight = $6, order_index = $7, updated_at = $8
		WHERE assessment_id = $1 AND id = $2`,
		q.AssessmentID, q.ID, q.Text, q.HelpText, q.Type, q.Weight, q.OrderIndex, q.UpdatedAt,
	)
	if err != nil {
		return errors.FromStorage("update snapshot question", err)
	}
	return requireRow(res, func() *errors.StandardError { return errors.NewQuestionNotFoundError(string(q.ID)) })
}

func (r *questionRepo) DeleteSnapshotQuestion(ctx context.Context, assessmentID string, id models.QuestionID) error {
	res, err := r.q.ExecContext(ctx,
		`DELETE FROM question_snapshots WHERE assessment_id = $1 AND id = $2`, assessmentID, id)
	if err != nil {
		return errors.FromStorage("delete snapshot question", err)
	}
	return requireRow(res, func() *errors.StandardError { return errors.NewQuestionNotFoundError(string(id)) })
}

// SetSnapshotOrder relies on the deferred (assessment_id, category,
// order_index) constraint so intermediate collisions inside the transaction
// are allowed.
func (r *questionRepo) SetSnapshotOrder(ctx context.Context, assessmentID string, category models.Category, ids []models.QuestionID) error {
	for i, id := range ids {
		res, err := r.q.ExecContext(ctx, `
			UPDATE question_snapshots SET order_index = $4
			WHERE assessment_id = $1 AND category = $2 AND id = $3`,
			assessmentID, category, id, i)
		if err != nil {
			return errors.FromStorage("reorder snapshot", err)
		}
		if err := requireRow(res, func() *errors.StandardError { return errors.NewQuestionNotFoundError(string(id)) }); err != nil {
			return err
		}
	}
	return nil
}

func scanSnapshot(s scanner) (*models.SnapshotQuestion, error) {
	var (
		q    models.SnapshotQuestion
		tmpl sql.NullString
	)
	err := s.Scan(&q.ID, &q.AssessmentID, &tmpl, &q.Category, &q.Text, &q.HelpText, &q.Type,
		&q.Weight, &q.OrderIndex, &q.CreatedAt, &q.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if tmpl.Valid {
		id := models.QuestionID(tmpl.String)
		q.TemplateID = &id
	}
	return &q, nil
}

func templateID(id *models.QuestionID) sql.NullString {
	if id == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: string(*id), Valid: true}
}

func requireRow(res sql.Result, build func() *errors.StandardError) error {
	n, err := res.RowsAffected()
	if err != nil {
		return errors.FromStorage("rows affected", err)
	}
	if n == 0 {
		return build()
	}
	return nil
}
