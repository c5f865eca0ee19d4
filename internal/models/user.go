package models

import (
	"time"

	"github.com/lib/pq"
)

// User is an application account. Accounts belong to instructors; the
// linked instructor id is the identity scheduled rows are owned by and the
// identity self-edit checks compare against. Permissions holds the raw
// permission strings granted to the account.
type User struct {
	ID           string         `db:"id" json:"id"`
	Email        string         `db:"email" json:"email"`
	PasswordHash string         `db:"password_hash" json:"-"`
	FullName     string         `db:"full_name" json:"full_name"`
	InstructorID string         `db:"instructor_id" json:"instructor_id"`
	Permissions  pq.StringArray `db:"permissions" json:"permissions"`
	Active       bool           `db:"active" json:"active"`
	LastLogin    *time.Time     `db:"last_login" json:"last_login,omitempty"`
	CreatedAt    time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time      `db:"updated_at" json:"updated_at"`
}

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}
