package models

import "time"

// InstructorAssignment places one instructor on one rotation for one week.
// At most one assignment exists per (instructor, rotation, week) triple and
// at most one assignment per (rotation, week) slot carries the primary
// evaluator flag.
type InstructorAssignment struct {
	ID                 string    `db:"id" json:"id"`
	InstructorID       string    `db:"instructor_id" json:"instructor_id"`
	RotationID         string    `db:"rotation_id" json:"rotation_id"`
	WeekID             string    `db:"week_id" json:"week_id"`
	IsPrimaryEvaluator bool      `db:"is_primary_evaluator" json:"is_primary_evaluator"`
	CreatedAt          time.Time `db:"created_at" json:"created_at"`
	UpdatedAt          time.Time `db:"updated_at" json:"updated_at"`
}

// AssignmentDetail enriches an assignment with display fields for read paths.
type AssignmentDetail struct {
	InstructorAssignment
	InstructorName string `db:"instructor_name" json:"instructor_name"`
	RotationName   string `db:"rotation_name" json:"rotation_name"`
	WeekLabel      string `db:"week_label" json:"week_label"`
}

// SlotRef names one (rotation, week) slot.
type SlotRef struct {
	RotationID string `json:"rotation_id"`
	WeekID     string `json:"week_id"`
}

// PrimaryPromotion instructs the store to clear the slot's primary flag and
// set it on the named assignment, in that order.
type PrimaryPromotion struct {
	AssignmentID string
	Slot         SlotRef
}

// ScheduleConflictError carries the assignments that collide with a
// proposed schedule change.
type ScheduleConflictError struct {
	InstructorID string                 `json:"instructor_id"`
	Conflicts    []InstructorAssignment `json:"conflicts"`
}

// Error implements the error interface.
func (e *ScheduleConflictError) Error() string {
	return "instructor already scheduled on a conflicting rotation"
}

// ConflictSlots lists the colliding (rotation, week) pairs.
func (e *ScheduleConflictError) ConflictSlots() []SlotRef {
	slots := make([]SlotRef, 0, len(e.Conflicts))
	for _, a := range e.Conflicts {
		slots = append(slots, SlotRef{RotationID: a.RotationID, WeekID: a.WeekID})
	}
	return slots
}
