package models

import "time"

// Rotation is a clinical teaching block. Every rotation belongs to exactly
// one clinical service, which determines the permission required to edit
// its schedule.
type Rotation struct {
	ID        string    `db:"id" json:"id"`
	ServiceID string    `db:"service_id" json:"service_id"`
	Name      string    `db:"name" json:"name"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// RotationDetail adds the owning service name for read paths.
type RotationDetail struct {
	Rotation
	ServiceName string `db:"service_name" json:"service_name"`
}
