package postgres

import (
	"context"

	"ipo-readiness/internal/common/errors"
	"ipo-readiness/internal/models"
)

type auditRepo struct {
	q dbtx
}

func (r *auditRepo) Append(ctx context.Context, e *models.AuditEntry) error {
	metadata, err := marshalJSON(e.Metadata)
	if err != nil {
		return err
	}
	if e.Metadata == nil {
		metadata = []byte("{}")
	}
	_, err = r.q.ExecContext(ctx, `
		INSERT INTO audit_log (id, entity_type, entity_id, action, actor_id, old_status, new_status, remark, metadata, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		e.ID, e.EntityType, e.EntityID, e.Action, e.ActorID, e.OldStatus, e.NewStatus, e.Remark, metadata, e.CreatedAt,
	)
	return errors.FromStorage("append audit entry", err)
}

func (r *auditRepo) List(ctx context.Context, entityType, entityID string) ([]*models.AuditEntry, error) {
	rows, err := r.q.QueryContext(ctx, `
		SELECT id, entity_type, entity_id, action, actor_id, old_status, new_status, remark, metadata, created_at
		FROM audit_log WHERE entity_type = $1 AND entity_id = $2
		ORDER BY created_at, id`, entityType, entityID)
	if err != nil {
		return nil, errors.FromStorage("list audit entries", err)
	}
	defer rows.Close()

	var out []*models.AuditEntry
	for rows.Next() {
		var (
			e        models.AuditEntry
			metadata []byte
		)
		if err := rows.Scan(&e.ID, &e.EntityType, &e.EntityID, &e.Action, &e.ActorID,
			&e.OldStatus, &e.NewStatus, &e.Remark, &metadata, &e.CreatedAt); err != nil {
			return nil, errors.FromStorage("scan audit entry", err)
		}
		if err := unmarshalJSON(metadata, &e.Metadata); err != nil {
			return nil, err
		}
		out = append(out, &e)
	}
	return out, errors.FromStorage("iterate audit entries", rows.Err())
}
