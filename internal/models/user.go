package models

import "time"

type Role string

const (
	RoleAssessor Role = "ASSESSOR"
	RoleReviewer Role = "REVIEWER"
)

func (r Role) Valid() bool {
	return r == RoleAssessor || r == RoleReviewer
}

// User is a staff member known to the identity provider.
type User struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	Phone     string    `json:"phone,omitempty"`
	Role      Role      `json:"role"`
	IsActive  bool      `json:"isActive"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}
