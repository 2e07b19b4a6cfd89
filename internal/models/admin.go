package models

import "time"

type AdminRole string

const (
	AdminRoleAdmin      AdminRole = "admin"
	AdminRoleSuperAdmin AdminRole = "superadmin"
)

func (r AdminRole) Valid() bool {
	return r == AdminRoleAdmin || r == AdminRoleSuperAdmin
}

type Admin struct {
	ID           string
	Username     string
	Email        string
	PasswordHash []byte `json:"-"`
	Role         AdminRole
	LastLoginAt  *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Profile is the public projection of an Admin. It never carries the password hash.
type Profile struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	Role      AdminRole `json:"role"`
	CreatedAt time.Time `json:"createdAt"`
}

func (a Admin) Profile() Profile {
	return Profile{
		ID:        a.ID,
		Username:  a.Username,
		Email:     a.Email,
		Role:      a.Role,
		CreatedAt: a.CreatedAt,
	}
}

// Redacted returns a copy safe to hand to request handlers.
func (a Admin) Redacted() Admin {
	a.PasswordHash = nil
	return a
}
