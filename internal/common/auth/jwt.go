package auth

import (
	"context"
	"fmt"
	"time"

	"ipo-readiness/internal/common/errors"
	"ipo-readiness/internal/models"

	jwt "github.com/golang-jwt/jwt/v5"
)

type sessionClaims struct {
	Email string      `json:"email"`
	Role  models.Role `json:"role"`
	jwt.RegisteredClaims
}

// JWTIssuer signs and verifies HS256 session tokens.
type JWTIssuer struct {
	secret   []byte
	issuer   string
	audience string
	ttl      time.Duration
	now      func() time.Time
}

func NewJWTIssuer(secret, issuer, audience string, ttl time.Duration) *JWTIssuer {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &JWTIssuer{
		secret:   []byte(secret),
		issuer:   issuer,
		audience: audience,
		ttl:      ttl,
		now:      time.Now,
	}
}

// Sign issues a token for subject. Portal sessions use an empty role.
func (j *JWTIssuer) Sign(subject, email string, role models.Role) (string, time.Time, error) {
	now := j.now()
	exp := now.Add(j.ttl)
	claims := sessionClaims{
		Email: email,
		Role:  role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			Issuer:    j.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	if j.audience != "" {
		claims.Audience = jwt.ClaimStrings{j.audience}
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(j.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign session token: %w", err)
	}
	return signed, exp, nil
}

func (j *JWTIssuer) Verify(_ context.Context, token string) (*Claims, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(j.now),
	}
	if j.issuer != "" {
		opts = append(opts, jwt.WithIssuer(j.issuer))
	}
	if j.audience != "" {
		opts = append(opts, jwt.WithAudience(j.audience))
	}

	parsed, err := jwt.ParseWithClaims(token, &sessionClaims{}, func(*jwt.Token) (interface{}, error) {
		return j.secret, nil
	}, opts...)
	if err != nil {
		return nil, errors.NewUnauthorizedError(fmt.Sprintf("invalid session token: %v", err))
	}
	c, ok := parsed.Claims.(*sessionClaims)
	if !ok || !parsed.Valid || c.Subject == "" {
		return nil, errors.NewUnauthorizedError("invalid session token")
	}
	return &Claims{Subject: c.Subject, Email: c.Email, Role: c.Role}, nil
}
