package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/clinrota/rotation-api/internal/models"
	appErrors "github.com/clinrota/rotation-api/pkg/errors"
)

type assignmentStore interface {
	FindByID(ctx context.Context, id string) (*models.InstructorAssignment, error)
	ListBySlot(ctx context.Context, rotationID, weekID string) ([]models.InstructorAssignment, error)
	ListPrimary(ctx context.Context, rotationID, weekID string) ([]models.InstructorAssignment, error)
	ListConflicts(ctx context.Context, instructorID string, weekIDs []string, excludeRotationID string) ([]models.InstructorAssignment, error)
	ListByInstructorAndRotation(ctx context.Context, instructorID, rotationID string, weekIDs []string) ([]models.InstructorAssignment, error)
	CountOthersInSlot(ctx context.Context, rotationID, weekID, excludeAssignmentID string) (int, error)
	ListDetailsBySlots(ctx context.Context, rotationID string, weekIDs []string) ([]models.AssignmentDetail, error)
	CreateBatch(ctx context.Context, assignments []models.InstructorAssignment, clearSlots []models.SlotRef, entries []models.AuditEntry) error
	Delete(ctx context.Context, assignmentID string, entries []models.AuditEntry) error
	UpdatePrimary(ctx context.Context, assignmentID string, isPrimary bool, clear *models.SlotRef, entries []models.AuditEntry) error
	PromoteBatch(ctx context.Context, promotions []models.PrimaryPromotion, entries []models.AuditEntry) error
}

type rotationPermissionChecker interface {
	CanEditRotation(ctx context.Context, principal models.Principal, rotationID string) (bool, error)
}

type mutationObserver interface {
	ObserveScheduleMutation(action string, success bool)
}

// AddInstructorRequest schedules one instructor on a rotation for a set of
// weeks, optionally as the primary evaluator of each week.
type AddInstructorRequest struct {
	InstructorID string   `json:"instructor_id" validate:"required"`
	RotationID   string   `json:"rotation_id" validate:"required"`
	WeekIDs      []string `json:"week_ids" validate:"required,min=1,unique"`
	IsPrimary    bool     `json:"is_primary"`
}

// SetPrimaryAcrossWeeksRequest promotes one instructor to primary evaluator
// on every listed week of a rotation.
type SetPrimaryAcrossWeeksRequest struct {
	InstructorID string   `json:"instructor_id" validate:"required"`
	RotationID   string   `json:"rotation_id" validate:"required"`
	WeekIDs      []string `json:"week_ids" validate:"required,min=1,unique"`
}

// ScheduleService is the instructor-schedule mutation engine. Each
// operation authorizes against the rotation's service permission, checks
// its preconditions, and hands a fully ordered batch of row changes plus
// audit entries to the store, which applies them in one transaction. The
// single-primary invariant is kept by clearing the slot's flag before any
// write that raises it.
type ScheduleService struct {
	assignments assignmentStore
	permissions rotationPermissionChecker
	metrics     mutationObserver
	validator   *validator.Validate
	logger      *zap.Logger
}

// NewScheduleService constructs the service. metrics may be nil.
func NewScheduleService(assignments assignmentStore, permissions rotationPermissionChecker, metrics mutationObserver, validate *validator.Validate, logger *zap.Logger) *ScheduleService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ScheduleService{
		assignments: assignments,
		permissions: permissions,
		metrics:     metrics,
		validator:   validate,
		logger:      logger,
	}
}

// FindConflicts returns the instructor's existing assignments on any of the
// weeks that belong to a rotation other than excludeRotationID. Weeks are
// atomic: two assignments conflict only when they share a week id.
func (s *ScheduleService) FindConflicts(ctx context.Context, instructorID string, weekIDs []string, excludeRotationID string) ([]models.InstructorAssignment, error) {
	conflicts, err := s.assignments.ListConflicts(ctx, instructorID, weekIDs, excludeRotationID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check schedule conflicts")
	}
	return conflicts, nil
}

// ListScheduledInstructors returns the enriched assignments of one rotation
// on the given weeks.
func (s *ScheduleService) ListScheduledInstructors(ctx context.Context, rotationID string, weekIDs []string) ([]models.AssignmentDetail, error) {
	details, err := s.assignments.ListDetailsBySlots(ctx, rotationID, weekIDs)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list scheduled instructors")
	}
	return details, nil
}

// AddInstructor schedules the instructor on every requested week. All weeks
// are written in one transaction; a conflict or failure on any week leaves
// nothing persisted. When IsPrimary is set, each slot's current primary
// evaluator is demoted first and the demotion is audited before the add.
func (s *ScheduleService) AddInstructor(ctx context.Context, principal models.Principal, req AddInstructorRequest) ([]models.InstructorAssignment, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid add instructor payload")
	}

	if err := s.authorizeRotation(ctx, principal, req.RotationID); err != nil {
		s.observe(models.AuditActionAdded, false)
		return nil, err
	}

	conflicts, err := s.FindConflicts(ctx, req.InstructorID, req.WeekIDs, req.RotationID)
	if err != nil {
		s.observe(models.AuditActionAdded, false)
		return nil, err
	}
	if len(conflicts) > 0 {
		s.observe(models.AuditActionAdded, false)
		s.logger.Info("rejected conflicting schedule add",
			zap.String("instructor_id", req.InstructorID),
			zap.String("rotation_id", req.RotationID),
			zap.Strings("week_ids", req.WeekIDs))
		return nil, s.wrapConflict(req.InstructorID, conflicts)
	}

	assignments := make([]models.InstructorAssignment, 0, len(req.WeekIDs))
	clearSlots := make([]models.SlotRef, 0)
	entries := make([]models.AuditEntry, 0, len(req.WeekIDs)*2)
	primarySetEntries := make([]models.AuditEntry, 0, len(req.WeekIDs))

	for _, weekID := range req.WeekIDs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		if req.IsPrimary {
			displaced, err := s.assignments.ListPrimary(ctx, req.RotationID, weekID)
			if err != nil {
				s.observe(models.AuditActionAdded, false)
				return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load current primary evaluator")
			}
			for _, d := range displaced {
				entries = append(entries, models.NewAuditEntry(models.AuditActionPrimaryUnset, d.InstructorID, d.RotationID, d.WeekID, principal.InstructorID))
			}
			clearSlots = append(clearSlots, models.SlotRef{RotationID: req.RotationID, WeekID: weekID})
			primarySetEntries = append(primarySetEntries, models.NewAuditEntry(models.AuditActionPrimarySet, req.InstructorID, req.RotationID, weekID, principal.InstructorID))
		}

		assignments = append(assignments, models.InstructorAssignment{
			InstructorID:       req.InstructorID,
			RotationID:         req.RotationID,
			WeekID:             weekID,
			IsPrimaryEvaluator: req.IsPrimary,
		})
		entries = append(entries, models.NewAuditEntry(models.AuditActionAdded, req.InstructorID, req.RotationID, weekID, principal.InstructorID))
	}
	entries = append(entries, primarySetEntries...)

	if err := s.assignments.CreateBatch(ctx, assignments, clearSlots, entries); err != nil {
		s.observe(models.AuditActionAdded, false)
		s.logger.Error("failed to add instructor assignments",
			zap.String("instructor_id", req.InstructorID),
			zap.String("rotation_id", req.RotationID),
			zap.Strings("week_ids", req.WeekIDs),
			zap.Error(err))
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to add instructor")
	}

	s.observe(models.AuditActionAdded, true)
	return assignments, nil
}

// RemoveAssignment deletes one assignment. A primary evaluator can only be
// removed while another instructor remains on the slot, so a staffed slot
// never loses its path to a primary.
func (s *ScheduleService) RemoveAssignment(ctx context.Context, principal models.Principal, assignmentID string) error {
	assignment, err := s.loadAssignment(ctx, assignmentID)
	if err != nil {
		s.observe(models.AuditActionRemoved, false)
		return err
	}

	if err := s.authorizeRotation(ctx, principal, assignment.RotationID); err != nil {
		s.observe(models.AuditActionRemoved, false)
		return err
	}

	if assignment.IsPrimaryEvaluator {
		others, err := s.assignments.CountOthersInSlot(ctx, assignment.RotationID, assignment.WeekID, assignment.ID)
		if err != nil {
			s.observe(models.AuditActionRemoved, false)
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count slot assignments")
		}
		if others == 0 {
			s.observe(models.AuditActionRemoved, false)
			s.logger.Info("rejected removal of sole primary evaluator",
				zap.String("assignment_id", assignment.ID),
				zap.String("rotation_id", assignment.RotationID),
				zap.String("week_id", assignment.WeekID))
			return appErrors.Clone(appErrors.ErrPreconditionFailed, "cannot remove sole primary evaluator")
		}
	}

	entries := []models.AuditEntry{
		models.NewAuditEntry(models.AuditActionRemoved, assignment.InstructorID, assignment.RotationID, assignment.WeekID, principal.InstructorID),
	}
	if assignment.IsPrimaryEvaluator {
		entries = append(entries, models.NewAuditEntry(models.AuditActionPrimaryUnset, assignment.InstructorID, assignment.RotationID, assignment.WeekID, principal.InstructorID))
	}

	if err := s.assignments.Delete(ctx, assignment.ID, entries); err != nil {
		s.observe(models.AuditActionRemoved, false)
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "assignment not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to remove assignment")
	}

	s.observe(models.AuditActionRemoved, true)
	return nil
}

// CanRemove mirrors RemoveAssignment's sole-primary guard without writing,
// for UI pre-checks. Unknown assignments report false.
func (s *ScheduleService) CanRemove(ctx context.Context, assignmentID string) (bool, error) {
	assignment, err := s.assignments.FindByID(ctx, assignmentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load assignment")
	}
	if !assignment.IsPrimaryEvaluator {
		return true, nil
	}
	others, err := s.assignments.CountOthersInSlot(ctx, assignment.RotationID, assignment.WeekID, assignment.ID)
	if err != nil {
		return false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count slot assignments")
	}
	return others > 0, nil
}

// SetPrimary toggles the primary evaluator flag on one assignment. Raising
// the flag demotes the slot's current primary inside the same transaction.
// A call that matches the current flag is a no-op and writes no audit.
func (s *ScheduleService) SetPrimary(ctx context.Context, principal models.Principal, assignmentID string, isPrimary bool) error {
	assignment, err := s.loadAssignment(ctx, assignmentID)
	if err != nil {
		s.observe(models.AuditActionPrimarySet, false)
		return err
	}

	if err := s.authorizeRotation(ctx, principal, assignment.RotationID); err != nil {
		s.observe(models.AuditActionPrimarySet, false)
		return err
	}

	if assignment.IsPrimaryEvaluator == isPrimary {
		return nil
	}

	var clear *models.SlotRef
	var entries []models.AuditEntry

	if isPrimary {
		displaced, err := s.assignments.ListPrimary(ctx, assignment.RotationID, assignment.WeekID)
		if err != nil {
			s.observe(models.AuditActionPrimarySet, false)
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load current primary evaluator")
		}
		for _, d := range displaced {
			entries = append(entries, models.NewAuditEntry(models.AuditActionPrimaryUnset, d.InstructorID, d.RotationID, d.WeekID, principal.InstructorID))
		}
		clear = &models.SlotRef{RotationID: assignment.RotationID, WeekID: assignment.WeekID}
		entries = append(entries, models.NewAuditEntry(models.AuditActionPrimarySet, assignment.InstructorID, assignment.RotationID, assignment.WeekID, principal.InstructorID))
	} else {
		entries = append(entries, models.NewAuditEntry(models.AuditActionPrimaryUnset, assignment.InstructorID, assignment.RotationID, assignment.WeekID, principal.InstructorID))
	}

	if err := s.assignments.UpdatePrimary(ctx, assignment.ID, isPrimary, clear, entries); err != nil {
		s.observe(models.AuditActionPrimarySet, false)
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "assignment not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update primary evaluator")
	}

	s.observe(models.AuditActionPrimarySet, true)
	return nil
}

// SetPrimaryAcrossWeeks promotes the instructor to primary evaluator on
// every listed week of the rotation. The instructor must already be
// scheduled on all of them; otherwise the call fails listing the missing
// weeks and writes nothing. All weeks commit atomically.
func (s *ScheduleService) SetPrimaryAcrossWeeks(ctx context.Context, principal models.Principal, req SetPrimaryAcrossWeeksRequest) error {
	if err := s.validator.Struct(req); err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid promote payload")
	}

	if err := s.authorizeRotation(ctx, principal, req.RotationID); err != nil {
		s.observe(models.AuditActionPrimarySet, false)
		return err
	}

	scheduled, err := s.assignments.ListByInstructorAndRotation(ctx, req.InstructorID, req.RotationID, req.WeekIDs)
	if err != nil {
		s.observe(models.AuditActionPrimarySet, false)
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load instructor assignments")
	}

	byWeek := make(map[string]models.InstructorAssignment, len(scheduled))
	for _, a := range scheduled {
		byWeek[a.WeekID] = a
	}
	var missing []string
	for _, weekID := range req.WeekIDs {
		if _, ok := byWeek[weekID]; !ok {
			missing = append(missing, weekID)
		}
	}
	if len(missing) > 0 {
		s.observe(models.AuditActionPrimarySet, false)
		s.logger.Info("rejected promotion for unscheduled weeks",
			zap.String("instructor_id", req.InstructorID),
			zap.String("rotation_id", req.RotationID),
			zap.Strings("missing_week_ids", missing))
		return appErrors.Clone(appErrors.ErrPreconditionFailed,
			fmt.Sprintf("instructor is not scheduled on weeks: %s", strings.Join(missing, ", ")))
	}

	promotions := make([]models.PrimaryPromotion, 0, len(req.WeekIDs))
	entries := make([]models.AuditEntry, 0, len(req.WeekIDs)*2)
	for _, weekID := range req.WeekIDs {
		if err := ctx.Err(); err != nil {
			return err
		}
		assignment := byWeek[weekID]

		displaced, err := s.assignments.ListPrimary(ctx, req.RotationID, weekID)
		if err != nil {
			s.observe(models.AuditActionPrimarySet, false)
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load current primary evaluator")
		}
		for _, d := range displaced {
			if d.InstructorID == req.InstructorID {
				continue
			}
			entries = append(entries, models.NewAuditEntry(models.AuditActionPrimaryUnset, d.InstructorID, d.RotationID, d.WeekID, principal.InstructorID))
		}

		promotions = append(promotions, models.PrimaryPromotion{
			AssignmentID: assignment.ID,
			Slot:         models.SlotRef{RotationID: req.RotationID, WeekID: weekID},
		})
		entries = append(entries, models.NewAuditEntry(models.AuditActionPrimarySet, req.InstructorID, req.RotationID, weekID, principal.InstructorID))
	}

	if err := s.assignments.PromoteBatch(ctx, promotions, entries); err != nil {
		s.observe(models.AuditActionPrimarySet, false)
		s.logger.Error("failed to promote instructor across weeks",
			zap.String("instructor_id", req.InstructorID),
			zap.String("rotation_id", req.RotationID),
			zap.Strings("week_ids", req.WeekIDs),
			zap.Error(err))
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to promote instructor")
	}

	s.observe(models.AuditActionPrimarySet, true)
	return nil
}

func (s *ScheduleService) loadAssignment(ctx context.Context, assignmentID string) (*models.InstructorAssignment, error) {
	assignment, err := s.assignments.FindByID(ctx, assignmentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "assignment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load assignment")
	}
	return assignment, nil
}

func (s *ScheduleService) authorizeRotation(ctx context.Context, principal models.Principal, rotationID string) error {
	allowed, err := s.permissions.CanEditRotation(ctx, principal, rotationID)
	if err != nil {
		return err
	}
	if !allowed {
		s.logger.Info("rejected unauthorized schedule mutation",
			zap.String("acting_instructor_id", principal.InstructorID),
			zap.String("rotation_id", rotationID))
		return appErrors.Clone(appErrors.ErrForbidden, "not permitted to edit this rotation's schedule")
	}
	return nil
}

func (s *ScheduleService) wrapConflict(instructorID string, conflicts []models.InstructorAssignment) error {
	detail := &models.ScheduleConflictError{InstructorID: instructorID, Conflicts: conflicts}
	return appErrors.Wrap(detail, appErrors.ErrConflict.Code, appErrors.ErrConflict.Status, "instructor already scheduled on a conflicting rotation")
}

func (s *ScheduleService) observe(action string, success bool) {
	if s.metrics != nil {
		s.metrics.ObserveScheduleMutation(action, success)
	}
}
