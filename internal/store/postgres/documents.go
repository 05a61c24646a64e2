package postgres

import (
	"context"

	"ipo-readiness/internal/common/errors"
	"ipo-readiness/internal/models"
)

type documentRepo struct {
	q dbtx
}

const documentColumns = `id, lead_id, name, content_type, size_bytes, url, uploaded_by, created_at`

func (r *documentRepo) Create(ctx context.Context, d *models.Document) error {
	_, err := r.q.ExecContext(ctx, `INSERT INTO documents (`+documentColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		d.ID, d.LeadID, d.Name, d.ContentType, d.SizeBytes, d.URL, d.UploadedBy, d.CreatedAt)
	return errors.FromStorage("create document", err)
}

func (r *documentRepo) Get(ctx context.Context, id string) (*models.Document, error) {
	var d models.Document
	err := r.q.QueryRowContext(ctx, `SELECT `+documentColumns+` FROM documents WHERE id = $1`, id).Scan(
		&d.ID, &d.LeadID, &d.Name, &d.ContentType, &d.SizeBytes, &d.URL, &d.UploadedBy, &d.CreatedAt)
	if err != nil {
		return nil, notFound(err, func() *errors.StandardError {
			return errors.NewNotFoundError(errors.ErrCodeDocumentNotFound, "Document", id)
		}, "get document")
	}
	return &d, nil
}

func (r *documentRepo) Delete(ctx context.Context, id string) error {
	res, err := r.q.ExecContext(ctx, `DELETE FROM documents WHERE id = $1`, id)
	if err != nil {
		return errors.FromStorage("delete document", err)
	}
	return requireRow(res, func() *errors.StandardError {
		return errors.NewNotFoundError(errors.ErrCodeDocumentNotFound, "Document", id)
	})
}

func (r *documentRepo) ListByLead(ctx context.Context, leadID string) ([]*models.Document, error) {
	rows, err := r.q.QueryContext(ctx,
		`SELECT `+documentColumns+` FROM documents WHERE lead_id = $1 ORDER BY created_at`, leadID)
	if err != nil {
		return nil, errors.FromStorage("list documents", err)
	}
	defer rows.Close()

	var out []*models.Document
	for rows.Next() {
		var d models.Document
		if err := rows.Scan(&d.ID, &d.LeadID, &d.Name, &d.ContentType, &d.SizeBytes, &d.URL, &d.UploadedBy, &d.CreatedAt); err != nil {
			return nil, errors.FromStorage("scan document", err)
		}
		out = append(out, &d)
	}
	return out, errors.FromStorage("iterate documents", rows.Err())
}
