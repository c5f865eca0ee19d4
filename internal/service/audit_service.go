package service

import (
	"context"
	"database/sql"
	"errors"

	"go.uber.org/zap"

	"github.com/clinrota/rotation-api/internal/models"
	appErrors "github.com/clinrota/rotation-api/pkg/errors"
)

type auditStore interface {
	Insert(ctx context.Context, entry *models.AuditEntry) error
	ListByTriple(ctx context.Context, instructorID, rotationID, weekID string) ([]models.AuditEntry, error)
	ListBySlot(ctx context.Context, rotationID, weekID string) ([]models.AuditEntry, error)
}

// AuditService records schedule changes and serves their history. Entries
// describe successful mutations only; rejected attempts never reach the
// trail. Audit rows store the (instructor, rotation, week) triple rather
// than the assignment row id, so history survives the row's deletion.
type AuditService struct {
	entries     auditStore
	assignments assignmentReader
	logger      *zap.Logger
}

// NewAuditService constructs the service.
func NewAuditService(entries auditStore, assignments assignmentReader, logger *zap.Logger) *AuditService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuditService{entries: entries, assignments: assignments, logger: logger}
}

// LogAdded records a new assignment.
func (s *AuditService) LogAdded(ctx context.Context, instructorID, rotationID, weekID, modifiedBy string) error {
	return s.log(ctx, models.AuditActionAdded, instructorID, rotationID, weekID, modifiedBy)
}

// LogRemoved records an assignment deletion.
func (s *AuditService) LogRemoved(ctx context.Context, instructorID, rotationID, weekID, modifiedBy string) error {
	return s.log(ctx, models.AuditActionRemoved, instructorID, rotationID, weekID, modifiedBy)
}

// LogPrimarySet records a primary evaluator promotion.
func (s *AuditService) LogPrimarySet(ctx context.Context, instructorID, rotationID, weekID, modifiedBy string) error {
	return s.log(ctx, models.AuditActionPrimarySet, instructorID, rotationID, weekID, modifiedBy)
}

// LogPrimaryUnset records a primary evaluator demotion.
func (s *AuditService) LogPrimaryUnset(ctx context.Context, instructorID, rotationID, weekID, modifiedBy string) error {
	return s.log(ctx, models.AuditActionPrimaryUnset, instructorID, rotationID, weekID, modifiedBy)
}

func (s *AuditService) log(ctx context.Context, action, instructorID, rotationID, weekID, modifiedBy string) error {
	entry := models.NewAuditEntry(action, instructorID, rotationID, weekID, modifiedBy)
	if err := s.entries.Insert(ctx, &entry); err != nil {
		s.logger.Error("failed to append audit entry",
			zap.String("action", action),
			zap.String("instructor_id", instructorID),
			zap.String("rotation_id", rotationID),
			zap.String("week_id", weekID),
			zap.Error(err))
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record audit entry")
	}
	return nil
}

// HistoryForAssignment returns the audit trail of one assignment by
// resolving its (instructor, rotation, week) triple first.
func (s *AuditService) HistoryForAssignment(ctx context.Context, assignmentID string) ([]models.AuditEntry, error) {
	assignment, err := s.assignments.FindByID(ctx, assignmentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "assignment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load assignment")
	}

	entries, err := s.entries.ListByTriple(ctx, assignment.InstructorID, assignment.RotationID, assignment.WeekID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list audit entries")
	}
	return entries, nil
}

// HistoryForSlot returns the audit trail of one (rotation, week) slot.
func (s *AuditService) HistoryForSlot(ctx context.Context, rotationID, weekID string) ([]models.AuditEntry, error) {
	entries, err := s.entries.ListBySlot(ctx, rotationID, weekID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list audit entries")
	}
	return entries, nil
}
