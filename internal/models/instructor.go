package models

import "time"

// Instructor is a clinician who can be scheduled on rotations. The id is
// stable and opaque; it is also the identity used for self-edit checks.
type Instructor struct {
	ID        string    `db:"id" json:"id"`
	FullName  string    `db:"full_name" json:"full_name"`
	Email     string    `db:"email" json:"email"`
	Active    bool      `db:"active" json:"active"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// Week is the atomic academic-calendar scheduling unit. Calendar math lives
// outside this service; week ids are treated as opaque.
type Week struct {
	ID       string    `db:"id" json:"id"`
	Label    string    `db:"label" json:"label"`
	StartsOn time.Time `db:"starts_on" json:"starts_on"`
}
