package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/clinrota/rotation-api/internal/models"
)

// AuditRepository persists the append-only schedule audit trail. Entries
// carry a serial id so the order of writes within one transaction is
// preserved in reads. There are no update or delete operations.
type AuditRepository struct {
	db *sqlx.DB
}

// NewAuditRepository constructs the repository.
func NewAuditRepository(db *sqlx.DB) *AuditRepository {
	return &AuditRepository{db: db}
}

const insertAuditEntry = `INSERT INTO audit_entries (instructor_id, rotation_id, week_id, action, area, modified_by, recorded_at)
VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING id`

// Insert appends one entry outside any transaction.
func (r *AuditRepository) Insert(ctx context.Context, entry *models.AuditEntry) error {
	if err := r.db.QueryRowxContext(ctx, insertAuditEntry,
		entry.InstructorID, entry.RotationID, entry.WeekID,
		entry.Action, entry.Area, entry.ModifiedBy, entry.RecordedAt,
	).Scan(&entry.ID); err != nil {
		return fmt.Errorf("insert audit entry: %w", err)
	}
	return nil
}

// InsertBatchTx appends entries in order using the caller's transaction.
// The entries only become visible if the caller commits.
func (r *AuditRepository) InsertBatchTx(ctx context.Context, tx *sqlx.Tx, entries []models.AuditEntry) error {
	for i := range entries {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := tx.QueryRowxContext(ctx, insertAuditEntry,
			entries[i].InstructorID, entries[i].RotationID, entries[i].WeekID,
			entries[i].Action, entries[i].Area, entries[i].ModifiedBy, entries[i].RecordedAt,
		).Scan(&entries[i].ID); err != nil {
			return fmt.Errorf("insert audit entry: %w", err)
		}
	}
	return nil
}

// ListByTriple returns the history for one (instructor, rotation, week)
// triple in write order.
func (r *AuditRepository) ListByTriple(ctx context.Context, instructorID, rotationID, weekID string) ([]models.AuditEntry, error) {
	const query = `SELECT id, instructor_id, rotation_id, week_id, action, area, modified_by, recorded_at
FROM audit_entries
WHERE instructor_id = $1 AND rotation_id = $2 AND week_id = $3
ORDER BY id ASC`
	var entries []models.AuditEntry
	if err := r.db.SelectContext(ctx, &entries, query, instructorID, rotationID, weekID); err != nil {
		return nil, fmt.Errorf("list audit entries by triple: %w", err)
	}
	return entries, nil
}

// ListBySlot returns the history for one (rotation, week) slot in write
// order.
func (r *AuditRepository) ListBySlot(ctx context.Context, rotationID, weekID string) ([]models.AuditEntry, error) {
	const query = `SELECT id, instructor_id, rotation_id, week_id, action, area, modified_by, recorded_at
FROM audit_entries
WHERE rotation_id = $1 AND week_id = $2
ORDER BY id ASC`
	var entries []models.AuditEntry
	if err := r.db.SelectContext(ctx, &entries, query, rotationID, weekID); err != nil {
		return nil, fmt.Errorf("list audit entries by slot: %w", err)
	}
	return entries, nil
}
