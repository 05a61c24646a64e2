package auth

import (
	"context"
	"fmt"
	"strings"

	"ipo-readiness/internal/common/config"
	"ipo-readiness/internal/common/errors"
	"ipo-readiness/internal/common/logger"
	"ipo-readiness/internal/models"
)

// Gate turns a session token into an Identity. The user directory is the
// source of truth for role and active state; token claims name the user and
// must carry a staff role. Portal sessions carry none and are refused.
type Gate struct {
	verifier TokenVerifier
	users    UserDirectory
	auth     *config.AuthConfig
	logger   logger.Logger
}

func NewGate(verifier TokenVerifier, users UserDirectory, cfg *config.AuthConfig, log logger.Logger) *Gate {
	return &Gate{
		verifier: verifier,
		users:    users,
		auth:     cfg,
		logger:   log.WithFields(map[string]interface{}{"component": "auth-gate"}),
	}
}

// Resolve verifies token and loads the caller. Inactive users fail with
// USER_INACTIVE; users outside the allow list fail with UNAUTHORIZED.
func (g *Gate) Resolve(ctx context.Context, token string) (*Identity, error) {
	token = strings.TrimSpace(strings.TrimPrefix(token, "Bearer "))
	if token == "" {
		return nil, errors.NewUnauthorizedError("session token is required")
	}

	claims, err := g.verifier.Verify(ctx, token)
	if err != nil {
		return nil, err
	}
	if claims.Role == "" {
		return nil, errors.NewUnauthorizedError("session token carries no staff role")
	}

	user, err := g.lookup(ctx, claims)
	if err != nil {
		return nil, err
	}

	if !user.IsActive {
		g.logger.Warn("inactive user rejected", map[string]interface{}{"userId": user.ID})
		return nil, errors.NewUserInactiveError(user.ID)
	}
	if g.auth != nil && !g.auth.IsAllowed(user.Email) {
		g.logger.Warn("user outside allow list rejected", map[string]interface{}{"userId": user.ID})
		return nil, errors.NewUnauthorizedError("user is not on the allow list")
	}
	if !user.Role.Valid() {
		return nil, errors.NewInsufficientPermissionsError(string(user.Role), "sign in")
	}

	return &Identity{
		UserID:   user.ID,
		Email:    user.Email,
		Role:     user.Role,
		IsActive: user.IsActive,
	}, nil
}

// Require resolves token and checks the caller holds one of roles.
func (g *Gate) Require(ctx context.Context, token, action string, roles ...models.Role) (*Identity, error) {
	id, err := g.Resolve(ctx, token)
	if err != nil {
		return nil, err
	}
	if err := Authorize(id, action, roles...); err != nil {
		return nil, err
	}
	return id, nil
}

func (g *Gate) lookup(ctx context.Context, claims *Claims) (*models.User, error) {
	user, err := g.users.Get(ctx, claims.Subject)
	if err == nil {
		return user, nil
	}
	if !isNotFound(err) {
		return nil, err
	}
	if claims.Email != "" {
		user, err = g.users.GetByEmail(ctx, claims.Email)
		if err == nil {
			return user, nil
		}
		if !isNotFound(err) {
			return nil, err
		}
	}
	return nil, errors.NewUnauthorizedError(fmt.Sprintf("unknown user %s", claims.Subject))
}

func isNotFound(err error) bool {
	code := errors.CodeOf(err)
	return code == errors.ErrCodeUserNotFound || code == errors.ErrCodeResourceNotFound
}
