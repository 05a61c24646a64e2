package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"ipo-readiness/internal/common/errors"
	"ipo-readiness/internal/models"
)

type leadRepo struct {
	q dbtx
}

const leadColumns = `id, lead_id, company_id, company_name, status, assigned_assessor_id,
	contact_name, contact_email, contact_phone, source, registry_fetched, registry,
	created_by, created_at, updated_at, version`

func (r *leadRepo) NextSequence(ctx context.Context, year int) (int64, error) {
	var value int64
	err := r.q.QueryRowContext(ctx, `
		INSERT INTO lead_sequences (year, value) VALUES ($1, 1)
		ON CONFLICT (year) DO UPDATE SET value = lead_sequences.value + 1
		RETURNING value`, year).Scan(&value)
	if err != nil {
		return 0, errors.FromStorage("next lead sequence", err)
	}
	return value, nil
}

func (r *leadRepo) Create(ctx context.Context, l *models.Lead) error {
	registry, err := marshalRegistry(l.Registry)
	if err != nil {
		return err
	}
	_, err = r.q.ExecContext(ctx, `
		INSERT INTO leads (`+leadColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`,
		l.ID, l.LeadID, l.CompanyID, l.CompanyName, l.Status, nullString(l.AssignedAssessorID),
		l.ContactName, l.ContactEmail, l.ContactPhone, l.Source, l.RegistryFetched, registry,
		l.CreatedBy, l.CreatedAt, l.UpdatedAt, l.Version,
	)
	return errors.FromStorage("create lead", err)
}

func (r *leadRepo) Get(ctx context.Context, id string) (*models.Lead, error) {
	row := r.q.QueryRowContext(ctx, `SELECT `+leadColumns+` FROM leads WHERE id = $1`, id)
	l, err := scanLead(row)
	if err != nil {
		return nil, notFound(err, func() *errors.StandardError { return errors.NewLeadNotFoundError(id) }, "get lead")
	}
	return l, nil
}

func (r *leadRepo) GetByCompanyID(ctx context.Context, companyID string) (*models.Lead, error) {
	row := r.q.QueryRowContext(ctx, `SELECT `+leadColumns+` FROM leads WHERE company_id = $1`, companyID)
	l, err := scanLead(row)
	if err != nil {
		return nil, notFound(err, func() *errors.StandardError { return errors.NewLeadNotFoundError(companyID) }, "get lead by company")
	}
	return l, nil
}

func (r *leadRepo) Update(ctx context.Context, l *models.Lead, expectedVersion int64) error {
	registry, err := marshalRegistry(l.Registry)
	if err != nil {
		return err
	}
	res, err := r.q.ExecContext(ctx, `
		UPDATE leads SET
			company_name = $3, status = $4, assigned_assessor_id = $5,
			contact_name = $6, contact_email = $7, contact_phone = $8,
			registry_fetched = $9, registry = $10, updated_at = $11,
			version = version + 1
		WHERE id = $1 AND version = $2`,
		l.ID, expectedVersion,
		l.CompanyName, l.Status, nullString(l.AssignedAssessorID),
		l.ContactName, l.ContactEmail, l.ContactPhone,
		l.RegistryFetched, registry, l.UpdatedAt,
	)
	if err != nil {
		return errors.FromStorage("update lead", err)
	}
	if err := checkAffected(res, "lead", l.ID, expectedVersion); err != nil {
		return err
	}
	l.Version = expectedVersion + 1
	return nil
}

func (r *leadRepo) List(ctx context.Context, f models.LeadFilter) ([]*models.Lead, error) {
	var (
		where []string
		args  []interface{}
	)
	if f.Status != "" {
		args = append(args, f.Status)
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}
	if f.AssessorID != "" {
		args = append(args, f.AssessorID)
		where = append(where, fmt.Sprintf("assigned_assessor_id = $%d", len(args)))
	}

	query := `SELECT ` + leadColumns + ` FROM leads`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at DESC"
	if f.Limit > 0 {
		args = append(args, f.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if f.Offset > 0 {
		args = append(args, f.Offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.FromStorage("list leads", err)
	}
	defer rows.Close()

	var leads []*models.Lead
	for rows.Next() {
		l, err := scanLead(rows)
		if err != nil {
			return nil, errors.FromStorage("scan lead", err)
		}
		leads = append(leads, l)
	}
	return leads, errors.FromStorage("iterate leads", rows.Err())
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanLead(s scanner) (*models.Lead, error) {
	var (
		l        models.Lead
		assessor sql.NullString
		registry []byte
	)
	err := s.Scan(
		&l.ID, &l.LeadID, &l.CompanyID, &l.CompanyName, &l.Status, &assessor,
		&l.ContactName, &l.ContactEmail, &l.ContactPhone, &l.Source, &l.RegistryFetched, &registry,
		&l.CreatedBy, &l.CreatedAt, &l.UpdatedAt, &l.Version,
	)
	if err != nil {
		return nil, err
	}
	l.AssignedAssessorID = stringPtr(assessor)
	if len(registry) > 0 && string(registry) != "null" {
		var snap models.RegistrySnapshot
		if err := unmarshalJSON(registry, &snap); err != nil {
			return nil, err
		}
		l.Registry = &snap
	}
	return &l, nil
}

func marshalRegistry(snap *models.RegistrySnapshot) (interface{}, error) {
	if snap == nil {
		return nil, nil
	}
	b, err := marshalJSON(snap)
	if err != nil {
		return nil, err
	}
	return b, nil
}
