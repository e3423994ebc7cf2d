package models

import (
	"strings"
	"time"
)

// UserRole represents the available roles for the RBAC system.
type UserRole string

const (
	RoleAdmin   UserRole = "admin"
	RoleTeacher UserRole = "teacher"
	RoleStudent UserRole = "student"
)

// Valid reports whether the role is one of the known roles.
func (r UserRole) Valid() bool {
	switch r {
	case RoleAdmin, RoleTeacher, RoleStudent:
		return true
	}
	return false
}

// User represents an application user stored in the users table.
type User struct {
	ID           string    `db:"id" json:"id"`
	Name         string    `db:"name" json:"name"`
	Email        string    `db:"email" json:"email"`
	PasswordHash string    `db:"password_hash" json:"-"`
	Role         UserRole  `db:"role" json:"role"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// UserFilter is the admin user listing query, bound from the query string.
type UserFilter struct {
	Role      *UserRole `form:"role"`
	Search    string    `form:"search"`
	Page      int       `form:"page"`
	PageSize  int       `form:"page_size"`
	SortBy    string    `form:"sort_by"`
	SortOrder string    `form:"sort_order"`
}

// Normalize clamps paging to sane bounds and restricts sorting to known columns.
func (f UserFilter) Normalize() UserFilter {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.PageSize <= 0 || f.PageSize > MaxPageSize {
		f.PageSize = DefaultPageSize
	}
	switch f.SortBy {
	case "name", "email", "role", "created_at", "updated_at":
	default:
		f.SortBy = "created_at"
	}
	if strings.EqualFold(f.SortOrder, "asc") {
		f.SortOrder = "ASC"
	} else {
		f.SortOrder = "DESC"
	}
	f.Search = strings.ToLower(strings.TrimSpace(f.Search))
	return f
}

// Offset is the number of rows skipped for the current page.
func (f UserFilter) Offset() int {
	return (f.Page - 1) * f.PageSize
}

// UpdateRoleRequest is the admin payload for changing a user's role.
type UpdateRoleRequest struct {
	Role UserRole `json:"role" validate:"required,oneof=admin teacher student"`
}

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}
