package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/clinrota/rotation-api/internal/models"
)

// AssignmentRepository persists instructor schedule assignments. Every
// write batch runs inside one transaction; audit rows are inserted through
// the audit repository using the same transaction so a rollback discards
// them together with the schedule rows.
type AssignmentRepository struct {
	db    *sqlx.DB
	audit *AuditRepository
}

// NewAssignmentRepository constructs the repository.
func NewAssignmentRepository(db *sqlx.DB, audit *AuditRepository) *AssignmentRepository {
	return &AssignmentRepository{db: db, audit: audit}
}

// FindByID loads one assignment. Returns sql.ErrNoRows when absent.
func (r *AssignmentRepository) FindByID(ctx context.Context, id string) (*models.InstructorAssignment, error) {
	const query = `SELECT id, instructor_id, rotation_id, week_id, is_primary_evaluator, created_at, updated_at
FROM instructor_assignments WHERE id = $1`
	var assignment models.InstructorAssignment
	if err := r.db.GetContext(ctx, &assignment, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find assignment: %w", err)
	}
	return &assignment, nil
}

// ListBySlot returns every assignment on one (rotation, week) slot.
func (r *AssignmentRepository) ListBySlot(ctx context.Context, rotationID, weekID string) ([]models.InstructorAssignment, error) {
	const query = `SELECT id, instructor_id, rotation_id, week_id, is_primary_evaluator, created_at, updated_at
FROM instructor_assignments WHERE rotation_id = $1 AND week_id = $2 ORDER BY created_at ASC`
	var assignments []models.InstructorAssignment
	if err := r.db.SelectContext(ctx, &assignments, query, rotationID, weekID); err != nil {
		return nil, fmt.Errorf("list slot assignments: %w", err)
	}
	return assignments, nil
}

// ListPrimary returns the assignments carrying the primary evaluator flag
// for one slot. Normally zero or one rows, but callers treat more as valid
// input so a drifted slot can still be repaired by a clear-then-set.
func (r *AssignmentRepository) ListPrimary(ctx context.Context, rotationID, weekID string) ([]models.InstructorAssignment, error) {
	const query = `SELECT id, instructor_id, rotation_id, week_id, is_primary_evaluator, created_at, updated_at
FROM instructor_assignments WHERE rotation_id = $1 AND week_id = $2 AND is_primary_evaluator ORDER BY created_at ASC`
	var assignments []models.InstructorAssignment
	if err := r.db.SelectContext(ctx, &assignments, query, rotationID, weekID); err != nil {
		return nil, fmt.Errorf("list primary assignments: %w", err)
	}
	return assignments, nil
}

// ListConflicts returns the instructor's assignments on any of the weeks
// that belong to a rotation other than excludeRotationID.
func (r *AssignmentRepository) ListConflicts(ctx context.Context, instructorID string, weekIDs []string, excludeRotationID string) ([]models.InstructorAssignment, error) {
	const query = `SELECT id, instructor_id, rotation_id, week_id, is_primary_evaluator, created_at, updated_at
FROM instructor_assignments
WHERE instructor_id = $1 AND week_id = ANY($2) AND rotation_id <> $3
ORDER BY week_id ASC`
	var assignments []models.InstructorAssignment
	if err := r.db.SelectContext(ctx, &assignments, query, instructorID, pq.Array(weekIDs), excludeRotationID); err != nil {
		return nil, fmt.Errorf("list conflicting assignments: %w", err)
	}
	return assignments, nil
}

// ListByInstructorAndRotation returns the instructor's assignments on the
// rotation restricted to the given weeks.
func (r *AssignmentRepository) ListByInstructorAndRotation(ctx context.Context, instructorID, rotationID string, weekIDs []string) ([]models.InstructorAssignment, error) {
	const query = `SELECT id, instructor_id, rotation_id, week_id, is_primary_evaluator, created_at, updated_at
FROM instructor_assignments
WHERE instructor_id = $1 AND rotation_id = $2 AND week_id = ANY($3)
ORDER BY week_id ASC`
	var assignments []models.InstructorAssignment
	if err := r.db.SelectContext(ctx, &assignments, query, instructorID, rotationID, pq.Array(weekIDs)); err != nil {
		return nil, fmt.Errorf("list rotation assignments: %w", err)
	}
	return assignments, nil
}

// CountOthersInSlot counts assignments on the slot excluding the given
// assignment id.
func (r *AssignmentRepository) CountOthersInSlot(ctx context.Context, rotationID, weekID, excludeAssignmentID string) (int, error) {
	const query = `SELECT COUNT(*) FROM instructor_assignments WHERE rotation_id = $1 AND week_id = $2 AND id <> $3`
	var count int
	if err := r.db.GetContext(ctx, &count, query, rotationID, weekID, excludeAssignmentID); err != nil {
		return 0, fmt.Errorf("count slot assignments: %w", err)
	}
	return count, nil
}

// ListDetailsBySlots returns enriched assignments for the rotation on the
// given weeks.
func (r *AssignmentRepository) ListDetailsBySlots(ctx context.Context, rotationID string, weekIDs []string) ([]models.AssignmentDetail, error) {
	const query = `
SELECT a.id, a.instructor_id, a.rotation_id, a.week_id, a.is_primary_evaluator, a.created_at, a.updated_at,
       i.full_name AS instructor_name, r.name AS rotation_name, w.label AS week_label
FROM instructor_assignments a
JOIN instructors i ON i.id = a.instructor_id
JOIN rotations r ON r.id = a.rotation_id
JOIN weeks w ON w.id = a.week_id
WHERE a.rotation_id = $1 AND a.week_id = ANY($2)
ORDER BY w.starts_on ASC, i.full_name ASC`
	var details []models.AssignmentDetail
	if err := r.db.SelectContext(ctx, &details, query, rotationID, pq.Array(weekIDs)); err != nil {
		return nil, fmt.Errorf("list assignment details: %w", err)
	}
	return details, nil
}

// CreateBatch inserts the assignments and audit entries atomically. Slots
// named in clearSlots have their primary flag cleared before the inserts so
// the single-primary invariant holds when a new row arrives flagged primary.
func (r *AssignmentRepository) CreateBatch(ctx context.Context, assignments []models.InstructorAssignment, clearSlots []models.SlotRef, entries []models.AuditEntry) (err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin create assignments: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	for _, slot := range clearSlots {
		if err = ctx.Err(); err != nil {
			return err
		}
		if err = clearPrimaryTx(ctx, tx, slot.RotationID, slot.WeekID); err != nil {
			return err
		}
	}

	now := time.Now().UTC()
	const insert = `INSERT INTO instructor_assignments (id, instructor_id, rotation_id, week_id, is_primary_evaluator, created_at, updated_at)
VALUES (:id, :instructor_id, :rotation_id, :week_id, :is_primary_evaluator, :created_at, :updated_at)`
	for i := range assignments {
		if err = ctx.Err(); err != nil {
			return err
		}
		row := assignments[i]
		if row.ID == "" {
			row.ID = uuid.NewString()
		}
		if row.CreatedAt.IsZero() {
			row.CreatedAt = now
		}
		row.UpdatedAt = now
		if _, err = tx.NamedExecContext(ctx, insert, row); err != nil {
			return fmt.Errorf("insert assignment: %w", err)
		}
		assignments[i] = row
	}

	if err = r.audit.InsertBatchTx(ctx, tx, entries); err != nil {
		return err
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit create assignments: %w", err)
	}
	return nil
}

// Delete records the audit entries and removes the assignment in one
// transaction. Returns sql.ErrNoRows when the row is already gone.
func (r *AssignmentRepository) Delete(ctx context.Context, assignmentID string, entries []models.AuditEntry) (err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin delete assignment: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = r.audit.InsertBatchTx(ctx, tx, entries); err != nil {
		return err
	}

	result, err := tx.ExecContext(ctx, `DELETE FROM instructor_assignments WHERE id = $1`, assignmentID)
	if err != nil {
		return fmt.Errorf("delete assignment: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check deleted assignment rows: %w", err)
	}
	if affected == 0 {
		err = sql.ErrNoRows
		return err
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit delete assignment: %w", err)
	}
	return nil
}

// UpdatePrimary flips the primary flag on one assignment. When clear is
// non-nil the slot's existing primary flag is cleared first, inside the
// same transaction.
func (r *AssignmentRepository) UpdatePrimary(ctx context.Context, assignmentID string, isPrimary bool, clear *models.SlotRef, entries []models.AuditEntry) (err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin update primary: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if clear != nil {
		if err = clearPrimaryTx(ctx, tx, clear.RotationID, clear.WeekID); err != nil {
			return err
		}
	}

	if err = setPrimaryTx(ctx, tx, assignmentID, isPrimary); err != nil {
		return err
	}

	if err = r.audit.InsertBatchTx(ctx, tx, entries); err != nil {
		return err
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit update primary: %w", err)
	}
	return nil
}

// PromoteBatch promotes one assignment per slot to primary evaluator,
// clearing each slot's current flag first. All weeks commit or none do.
func (r *AssignmentRepository) PromoteBatch(ctx context.Context, promotions []models.PrimaryPromotion, entries []models.AuditEntry) (err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin promote assignments: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	for _, p := range promotions {
		if err = ctx.Err(); err != nil {
			return err
		}
		if err = clearPrimaryTx(ctx, tx, p.Slot.RotationID, p.Slot.WeekID); err != nil {
			return err
		}
		if err = setPrimaryTx(ctx, tx, p.AssignmentID, true); err != nil {
			return err
		}
	}

	if err = r.audit.InsertBatchTx(ctx, tx, entries); err != nil {
		return err
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit promote assignments: %w", err)
	}
	return nil
}

// clearPrimaryTx lowers the primary flag on every assignment of the slot.
// Tolerant of zero or multiple flagged rows.
func clearPrimaryTx(ctx context.Context, tx *sqlx.Tx, rotationID, weekID string) error {
	const query = `UPDATE instructor_assignments SET is_primary_evaluator = FALSE, updated_at = $3
WHERE rotation_id = $1 AND week_id = $2 AND is_primary_evaluator`
	if _, err := tx.ExecContext(ctx, query, rotationID, weekID, time.Now().UTC()); err != nil {
		return fmt.Errorf("clear primary evaluator: %w", err)
	}
	return nil
}

func setPrimaryTx(ctx context.Context, tx *sqlx.Tx, assignmentID string, isPrimary bool) error {
	const query = `UPDATE instructor_assignments SET is_primary_evaluator = $2, updated_at = $3 WHERE id = $1`
	result, err := tx.ExecContext(ctx, query, assignmentID, isPrimary, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("set primary evaluator: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check primary update rows: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
