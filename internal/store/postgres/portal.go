package postgres

import (
	"context"
	"database/sql"
	"time"

	"ipo-readiness/internal/common/errors"
	"ipo-readiness/internal/models"
)

type portalCodeRepo struct {
	q dbtx
}

func (r *portalCodeRepo) Create(ctx context.Context, c *models.PortalCode) error {
	_, err := r.q.ExecContext(ctx, `
		INSERT INTO portal_codes (id, identifier, code_hash, lead_id, expires_at, consumed_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		c.ID, c.Identifier, c.CodeHash, c.LeadID, c.ExpiresAt, c.ConsumedAt, c.CreatedAt)
	return errors.FromStorage("create portal code", err)
}

func (r *portalCodeRepo) ListActive(ctx context.Context, identifier string) ([]*models.PortalCode, error) {
	rows, err := r.q.QueryContext(ctx, `
		SELECT id, identifier, code_hash, lead_id, expires_at, consumed_at, created_at
		FROM portal_codes WHERE identifier = $1 AND consumed_at IS NULL
		ORDER BY created_at DESC`, identifier)
	if err != nil {
		return nil, errors.FromStorage("list portal codes", err)
	}
	defer rows.Close()

	var out []*models.PortalCode
	for rows.Next() {
		var (
			c        models.PortalCode
			consumed sql.NullTime
		)
		if err := rows.Scan(&c.ID, &c.Identifier, &c.CodeHash, &c.LeadID, &c.ExpiresAt, &consumed, &c.CreatedAt); err != nil {
			return nil, errors.FromStorage("scan portal code", err)
		}
		c.ConsumedAt = timePtr(consumed)
		out = append(out, &c)
	}
	return out, errors.FromStorage("iterate portal codes", rows.Err())
}

func (r *portalCodeRepo) Consume(ctx context.Context, id string, at time.Time) error {
	res, err := r.q.ExecContext(ctx,
		`UPDATE portal_codes SET consumed_at = $2 WHERE id = $1 AND consumed_at IS NULL`, id, at)
	if err != nil {
		return errors.FromStorage("consume portal code", err)
	}
	return requireRow(res, func() *errors.StandardError {
		return errors.NewNotFoundError(errors.ErrCodePortalCodeNotFound, "Portal code", id)
	})
}
