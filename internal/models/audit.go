package models

import "time"

// Audit actions recorded for schedule mutations.
const (
	AuditActionAdded        = "ADDED"
	AuditActionRemoved      = "REMOVED"
	AuditActionPrimarySet   = "PRIMARY_SET"
	AuditActionPrimaryUnset = "PRIMARY_UNSET"
)

// AuditAreaInstructorSchedule tags entries produced by the instructor
// schedule engine.
const AuditAreaInstructorSchedule = "INSTRUCTOR_SCHEDULE"

// AuditEntry is one append-only record of a successful schedule change.
// Entries are never updated or deleted, and failed or unauthorized attempts
// are never written here. The serial id gives a total order within a
// transaction's batch.
type AuditEntry struct {
	ID           int64     `db:"id" json:"id"`
	InstructorID string    `db:"instructor_id" json:"instructor_id"`
	RotationID   string    `db:"rotation_id" json:"rotation_id"`
	WeekID       string    `db:"week_id" json:"week_id"`
	Action       string    `db:"action" json:"action"`
	Area         string    `db:"area" json:"area"`
	ModifiedBy   string    `db:"modified_by" json:"modified_by"`
	RecordedAt   time.Time `db:"recorded_at" json:"recorded_at"`
}

// NewAuditEntry builds a schedule-area entry for one slot change.
func NewAuditEntry(action, instructorID, rotationID, weekID, modifiedBy string) AuditEntry {
	return AuditEntry{
		InstructorID: instructorID,
		RotationID:   rotationID,
		WeekID:       weekID,
		Action:       action,
		Area:         AuditAreaInstructorSchedule,
		ModifiedBy:   modifiedBy,
		RecordedAt:   time.Now().UTC(),
	}
}
