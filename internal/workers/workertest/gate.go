// Package workertest holds fixtures shared by worker handler tests.
package workertest

import (
	"context"

	"ipo-readiness/internal/common/auth"
	"ipo-readiness/internal/common/errors"
	"ipo-readiness/internal/models"
)

const (
	ReviewerToken = "reviewer-token"
	AssessorToken = "assessor-token"
)

var (
	Reviewer = &auth.Identity{UserID: "rev-1", Email: "rev@ipo.example", Role: models.RoleReviewer, IsActive: true}
	Assessor = &auth.Identity{UserID: "ass-1", Email: "ass@ipo.example", Role: models.RoleAssessor, IsActive: true}
)

// Gate resolves fixed tokens to identities.
type Gate map[string]*auth.Identity

// NewGate knows ReviewerToken and AssessorToken.
func NewGate() Gate {
	return Gate{ReviewerToken: Reviewer, AssessorToken: Assessor}
}

func (g Gate) Resolve(_ context.Context, token string) (*auth.Identity, error) {
	if id, ok := g[token]; ok {
		return id, nil
	}
	return nil, errors.NewUnauthorizedError("invalid session token")
}
