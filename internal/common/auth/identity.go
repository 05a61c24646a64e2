// Package auth resolves the caller behind a session token and enforces role
// requirements before any mutation.
package auth

import (
	"context"

	"ipo-readiness/internal/common/errors"
	"ipo-readiness/internal/models"
)

// Claims is what a token verifier extracts from a session token.
type Claims struct {
	Subject string
	Email   string
	Role    models.Role
}

// Identity is the resolved caller.
type Identity struct {
	UserID   string      `json:"userId"`
	Email    string      `json:"email"`
	Role     models.Role `json:"role"`
	IsActive bool        `json:"isActive"`
}

func (i *Identity) Is(role models.Role) bool {
	return i != nil && i.Role == role
}

// Authorize checks an already resolved caller. It repeats the active check so
// services stay safe when handed an identity from a long-lived job.
func Authorize(id *Identity, action string, roles ...models.Role) error {
	if id == nil || id.UserID == "" {
		return errors.NewUnauthorizedError("no caller identity")
	}
	if !id.IsActive {
		return errors.NewUserInactiveError(id.UserID)
	}
	if len(roles) == 0 {
		return nil
	}
	for _, r := range roles {
		if id.Role == r {
			return nil
		}
	}
	return errors.NewInsufficientPermissionsError(string(id.Role), action)
}

// TokenVerifier validates a session token.
type TokenVerifier interface {
	Verify(ctx context.Context, token string) (*Claims, error)
}

// UserDirectory looks up staff records. The store's user repository
// satisfies it.
type UserDirectory interface {
	Get(ctx context.Context, id string) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
}

// Resolver turns a session token into a caller. *Gate satisfies it.
type Resolver interface {
	Resolve(ctx context.Context, token string) (*Identity, error)
}
