package postgres

import (
	"context"
	"strings"

	"ipo-readiness/internal/common/errors"
	"ipo-readiness/internal/models"
)

type userRepo struct {
	q dbtx
}

const userColumns = `id, email, name, phone, role, is_active, created_at, updated_at`

func (r *userRepo) Get(ctx context.Context, id string) (*models.User, error) {
	return r.getBy(ctx, "id", id)
}

func (r *userRepo) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	return r.getBy(ctx, "lower(email)", strings.ToLower(strings.TrimSpace(email)))
}

func (r *userRepo) getBy(ctx context.Context, column, value string) (*models.User, error) {
	var u models.User
	err := r.q.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE `+column+` = $1`, value).Scan(
		&u.ID, &u.Email, &u.Name, &u.Phone, &u.Role, &u.IsActive, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, notFound(err, func() *errors.StandardError {
			return errors.NewNotFoundError(errors.ErrCodeUserNotFound, "User", value)
		}, "get user")
	}
	return &u, nil
}

func (r *userRepo) Upsert(ctx context.Context, u *models.User) error {
	_, err := r.q.ExecContext(ctx, `
		INSERT INTO users (`+userColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE SET
			email = EXCLUDED.email, name = EXCLUDED.name, phone = EXCLUDED.phone,
			role = EXCLUDED.role, is_active = EXCLUDED.is_active, updated_at = EXCLUDED.updated_at`,
		u.ID, u.Email, u.Name, u.Phone, u.Role, u.IsActive, u.CreatedAt, u.UpdatedAt)
	return errors.FromStorage("upsert user", err)
}
