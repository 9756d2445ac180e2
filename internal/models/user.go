package models

import "time"

// UserRole represents the available roles for the RBAC system.
type UserRole string

const (
	RoleClient UserRole = "client"
	RoleStaff  UserRole = "staff"
	RoleAdmin  UserRole = "admin"
)

// Valid reports whether the role belongs to the closed role set.
func (r UserRole) Valid() bool {
	switch r {
	case RoleClient, RoleStaff, RoleAdmin:
		return true
	}
	return false
}

// IsStaff reports whether the role belongs to the delivery team.
func (r UserRole) IsStaff() bool {
	return r == RoleStaff || r == RoleAdmin
}

// User represents an application user stored in the users table.
type User struct {
	ID           string     `db:"id" json:"id"`
	Email        string     `db:"email" json:"email"`
	PasswordHash string     `db:"password_hash" json:"-"`
	FullName     string     `db:"full_name" json:"full_name"`
	Role         UserRole   `db:"role" json:"role"`
	Active       bool       `db:"active" json:"active"`
	LastLogin    *time.Time `db:"last_login" json:"last_login,omitempty"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time  `db:"updated_at" json:"updated_at"`
}

// CurrentUser is the minimal identity the services act on behalf of.
type CurrentUser struct {
	ID   string   `json:"id"`
	Role UserRole `json:"role"`
	Name string   `json:"name"`
}

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}
