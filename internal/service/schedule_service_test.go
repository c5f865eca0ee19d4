package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clinrota/rotation-api/internal/models"
	appErrors "github.com/clinrota/rotation-api/pkg/errors"
)

// stubAssignmentStore mimics the repository's transactional semantics in
// memory: composite writes apply every row change and append the audit
// batch, or, when failNextWrite is set, apply nothing at all.
type stubAssignmentStore struct {
	items         map[string]*models.InstructorAssignment
	entries       []models.AuditEntry
	nextID        int
	failNextWrite error
}

func newStubAssignmentStore() *stubAssignmentStore {
	return &stubAssignmentStore{items: make(map[string]*models.InstructorAssignment)}
}

func (m *stubAssignmentStore) seed(id, instructorID, rotationID, weekID string, primary bool) {
	m.items[id] = &models.InstructorAssignment{
		ID:                 id,
		InstructorID:       instructorID,
		RotationID:         rotationID,
		WeekID:             weekID,
		IsPrimaryEvaluator: primary,
	}
}

func (m *stubAssignmentStore) FindByID(ctx context.Context, id string) (*models.InstructorAssignment, error) {
	if a, ok := m.items[id]; ok {
		cp := *a
		return &cp, nil
	}
	return nil, sql.ErrNoRows
}

func (m *stubAssignmentStore) ListBySlot(ctx context.Context, rotationID, weekID string) ([]models.InstructorAssignment, error) {
	var out []models.InstructorAssignment
	for _, a := range m.items {
		if a.RotationID == rotationID && a.WeekID == weekID {
			out = append(out, *a)
		}
	}
	return out, nil
}

func (m *stubAssignmentStore) ListPrimary(ctx context.Context, rotationID, weekID string) ([]models.InstructorAssignment, error) {
	var out []models.InstructorAssignment
	for _, a := range m.items {
		if a.RotationID == rotationID && a.WeekID == weekID && a.IsPrimaryEvaluator {
			out = append(out, *a)
		}
	}
	return out, nil
}

func (m *stubAssignmentStore) ListConflicts(ctx context.Context, instructorID string, weekIDs []string, excludeRotationID string) ([]models.InstructorAssignment, error) {
	weeks := make(map[string]struct{}, len(weekIDs))
	for _, w := range weekIDs {
		weeks[w] = struct{}{}
	}
	var out []models.InstructorAssignment
	for _, a := range m.items {
		if a.InstructorID != instructorID || a.RotationID == excludeRotationID {
			continue
		}
		if _, ok := weeks[a.WeekID]; ok {
			out = append(out, *a)
		}
	}
	return out, nil
}

func (m *stubAssignmentStore) ListByInstructorAndRotation(ctx context.Context, instructorID, rotationID string, weekIDs []string) ([]models.InstructorAssignment, error) {
	weeks := make(map[string]struct{}, len(weekIDs))
	for _, w := range weekIDs {
		weeks[w] = struct{}{}
	}
	var out []models.InstructorAssignment
	for _, a := range m.items {
		if a.InstructorID != instructorID || a.RotationID != rotationID {
			continue
		}
		if _, ok := weeks[a.WeekID]; ok {
			out = append(out, *a)
		}
	}
	return out, nil
}

func (m *stubAssignmentStore) CountOthersInSlot(ctx context.Context, rotationID, weekID, excludeAssignmentID string) (int, error) {
	count := 0
	for _, a := range m.items {
		if a.RotationID == rotationID && a.WeekID == weekID && a.ID != excludeAssignmentID {
			count++
		}
	}
	return count, nil
}

func (m *stubAssignmentStore) ListDetailsBySlots(ctx context.Context, rotationID string, weekIDs []string) ([]models.AssignmentDetail, error) {
	weeks := make(map[string]struct{}, len(weekIDs))
	for _, w := range weekIDs {
		weeks[w] = struct{}{}
	}
	var out []models.AssignmentDetail
	for _, a := range m.items {
		if a.RotationID != rotationID {
			continue
		}
		if _, ok := weeks[a.WeekID]; ok {
			out = append(out, models.AssignmentDetail{InstructorAssignment: *a})
		}
	}
	return out, nil
}

func (m *stubAssignmentStore) clearSlot(rotationID, weekID string) {
	for _, a := range m.items {
		if a.RotationID == rotationID && a.WeekID == weekID {
			a.IsPrimaryEvaluator = false
		}
	}
}

func (m *stubAssignmentStore) CreateBatch(ctx context.Context, assignments []models.InstructorAssignment, clearSlots []models.SlotRef, entries []models.AuditEntry) error {
	if m.failNextWrite != nil {
		return m.failNextWrite
	}
	for _, slot := range clearSlots {
		m.clearSlot(slot.RotationID, slot.WeekID)
	}
	for _, a := range assignments {
		for {
			m.nextID++
			a.ID = fmt.Sprintf("a%d", m.nextID)
			if _, taken := m.items[a.ID]; !taken {
				break
			}
		}
		cp := a
		m.items[a.ID] = &cp
	}
	m.entries = append(m.entries, entries...)
	return nil
}

func (m *stubAssignmentStore) Delete(ctx context.Context, assignmentID string, entries []models.AuditEntry) error {
	if m.failNextWrite != nil {
		return m.failNextWrite
	}
	if _, ok := m.items[assignmentID]; !ok {
		return sql.ErrNoRows
	}
	delete(m.items, assignmentID)
	m.entries = append(m.entries, entries...)
	return nil
}

func (m *stubAssignmentStore) UpdatePrimary(ctx context.Context, assignmentID string, isPrimary bool, clear *models.SlotRef, entries []models.AuditEntry) error {
	if m.failNextWrite != nil {
		return m.failNextWrite
	}
	a, ok := m.items[assignmentID]
	if !ok {
		return sql.ErrNoRows
	}
	if clear != nil {
		m.clearSlot(clear.RotationID, clear.WeekID)
	}
	a.IsPrimaryEvaluator = isPrimary
	m.entries = append(m.entries, entries...)
	return nil
}

func (m *stubAssignmentStore) PromoteBatch(ctx context.Context, promotions []models.PrimaryPromotion, entries []models.AuditEntry) error {
	if m.failNextWrite != nil {
		return m.failNextWrite
	}
	for _, p := range promotions {
		if _, ok := m.items[p.AssignmentID]; !ok {
			return sql.ErrNoRows
		}
	}
	for _, p := range promotions {
		m.clearSlot(p.Slot.RotationID, p.Slot.WeekID)
		m.items[p.AssignmentID].IsPrimaryEvaluator = true
	}
	m.entries = append(m.entries, entries...)
	return nil
}

type stubPermissionChecker struct {
	allowed bool
	err     error
}

func (m *stubPermissionChecker) CanEditRotation(ctx context.Context, principal models.Principal, rotationID string) (bool, error) {
	return m.allowed, m.err
}

type stubMutationObserver struct {
	observed []string
}

func (m *stubMutationObserver) ObserveScheduleMutation(action string, success bool) {
	m.observed = append(m.observed, fmt.Sprintf("%s:%t", action, success))
}

func newTestScheduleService(store *stubAssignmentStore) *ScheduleService {
	return NewScheduleService(store, &stubPermissionChecker{allowed: true}, nil, nil, nil)
}

func actingPrincipal() models.Principal {
	return models.Principal{
		InstructorID: "chief",
		Permissions:  models.NewPermissionSet(models.PermissionManage),
	}
}

func auditActions(entries []models.AuditEntry) []string {
	actions := make([]string, 0, len(entries))
	for _, e := range entries {
		actions = append(actions, e.Action)
	}
	return actions
}

func TestScheduleServiceAddInstructorMultiWeek(t *testing.T) {
	store := newStubAssignmentStore()
	svc := newTestScheduleService(store)

	created, err := svc.AddInstructor(context.Background(), actingPrincipal(), AddInstructorRequest{
		InstructorID: "i1",
		RotationID:   "r1",
		WeekIDs:      []string{"w1", "w2"},
	})
	require.NoError(t, err)
	assert.Len(t, created, 2)
	assert.Len(t, store.items, 2)
	assert.Equal(t, []string{models.AuditActionAdded, models.AuditActionAdded}, auditActions(store.entries))
	for _, e := range store.entries {
		assert.Equal(t, "chief", e.ModifiedBy)
		assert.Equal(t, models.AuditAreaInstructorSchedule, e.Area)
	}
}

func TestScheduleServiceAddInstructorAsPrimaryAcrossWeeks(t *testing.T) {
	store := newStubAssignmentStore()
	svc := newTestScheduleService(store)

	_, err := svc.AddInstructor(context.Background(), actingPrincipal(), AddInstructorRequest{
		InstructorID: "i1",
		RotationID:   "r1",
		WeekIDs:      []string{"w1", "w2"},
		IsPrimary:    true,
	})
	require.NoError(t, err)

	assert.Equal(t, []string{
		models.AuditActionAdded,
		models.AuditActionAdded,
		models.AuditActionPrimarySet,
		models.AuditActionPrimarySet,
	}, auditActions(store.entries))

	primaries, err := store.ListPrimary(context.Background(), "r1", "w1")
	require.NoError(t, err)
	assert.Len(t, primaries, 1)
}

func TestScheduleServiceAddInstructorAsPrimaryDisplacesCurrent(t *testing.T) {
	store := newStubAssignmentStore()
	store.seed("a1", "old", "r1", "w1", true)
	svc := newTestScheduleService(store)

	_, err := svc.AddInstructor(context.Background(), actingPrincipal(), AddInstructorRequest{
		InstructorID: "new",
		RotationID:   "r1",
		WeekIDs:      []string{"w1"},
		IsPrimary:    true,
	})
	require.NoError(t, err)

	assert.Equal(t, []string{
		models.AuditActionPrimaryUnset,
		models.AuditActionAdded,
		models.AuditActionPrimarySet,
	}, auditActions(store.entries))
	assert.Equal(t, "old", store.entries[0].InstructorID)
	assert.Equal(t, "new", store.entries[2].InstructorID)

	assert.False(t, store.items["a1"].IsPrimaryEvaluator)
	primaries, err := store.ListPrimary(context.Background(), "r1", "w1")
	require.NoError(t, err)
	require.Len(t, primaries, 1)
	assert.Equal(t, "new", primaries[0].InstructorID)
}

func TestScheduleServiceAddInstructorConflict(t *testing.T) {
	store := newStubAssignmentStore()
	store.seed("a1", "i1", "r2", "w1", false)
	svc := newTestScheduleService(store)

	_, err := svc.AddInstructor(context.Background(), actingPrincipal(), AddInstructorRequest{
		InstructorID: "i1",
		RotationID:   "r1",
		WeekIDs:      []string{"w1", "w2"},
	})
	require.Error(t, err)

	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrConflict.Code, appErr.Code)

	var conflict *models.ScheduleConflictError
	require.ErrorAs(t, err, &conflict)
	require.Len(t, conflict.Conflicts, 1)
	assert.Equal(t, "r2", conflict.Conflicts[0].RotationID)
	assert.Equal(t, "w1", conflict.Conflicts[0].WeekID)

	assert.Len(t, store.items, 1)
	assert.Empty(t, store.entries)
}

func TestScheduleServiceAddInstructorSameRotationNotConflicting(t *testing.T) {
	store := newStubAssignmentStore()
	store.seed("a1", "i1", "r1", "w1", false)
	svc := newTestScheduleService(store)

	conflicts, err := svc.FindConflicts(context.Background(), "i1", []string{"w1"}, "r1")
	require.NoError(t, err)
	assert.Empty(t, conflicts)
}

func TestScheduleServiceAddInstructorForbidden(t *testing.T) {
	store := newStubAssignmentStore()
	metrics := &stubMutationObserver{}
	svc := NewScheduleService(store, &stubPermissionChecker{allowed: false}, metrics, nil, nil)

	_, err := svc.AddInstructor(context.Background(), actingPrincipal(), AddInstructorRequest{
		InstructorID: "i1",
		RotationID:   "r1",
		WeekIDs:      []string{"w1"},
	})
	require.Error(t, err)

	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErr.Code)
	assert.Empty(t, store.items)
	assert.Empty(t, store.entries)
	assert.Equal(t, []string{"ADDED:false"}, metrics.observed)
}

func TestScheduleServiceAddInstructorValidation(t *testing.T) {
	svc := newTestScheduleService(newStubAssignmentStore())

	_, err := svc.AddInstructor(context.Background(), actingPrincipal(), AddInstructorRequest{
		InstructorID: "i1",
		RotationID:   "r1",
	})
	require.Error(t, err)

	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
}

func TestScheduleServiceAddInstructorAtomicFailure(t *testing.T) {
	store := newStubAssignmentStore()
	store.failNextWrite = errors.New("tx aborted")
	svc := newTestScheduleService(store)

	_, err := svc.AddInstructor(context.Background(), actingPrincipal(), AddInstructorRequest{
		InstructorID: "i1",
		RotationID:   "r1",
		WeekIDs:      []string{"w1", "w2"},
	})
	require.Error(t, err)
	assert.Empty(t, store.items)
	assert.Empty(t, store.entries)
}

func TestScheduleServiceRemoveNonPrimary(t *testing.T) {
	store := newStubAssignmentStore()
	store.seed("a1", "i1", "r1", "w1", false)
	svc := newTestScheduleService(store)

	err := svc.RemoveAssignment(context.Background(), actingPrincipal(), "a1")
	require.NoError(t, err)
	assert.Empty(t, store.items)
	assert.Equal(t, []string{models.AuditActionRemoved}, auditActions(store.entries))
}

func TestScheduleServiceRemoveSolePrimaryRejected(t *testing.T) {
	store := newStubAssignmentStore()
	store.seed("a1", "i1", "r1", "w1", true)
	svc := newTestScheduleService(store)

	err := svc.RemoveAssignment(context.Background(), actingPrincipal(), "a1")
	require.Error(t, err)

	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrPreconditionFailed.Code, appErr.Code)
	assert.Len(t, store.items, 1)
	assert.Empty(t, store.entries)
}

func TestScheduleServiceRemovePrimaryWithOthersRemaining(t *testing.T) {
	store := newStubAssignmentStore()
	store.seed("a1", "i1", "r1", "w1", true)
	store.seed("a2", "i2", "r1", "w1", false)
	svc := newTestScheduleService(store)

	err := svc.RemoveAssignment(context.Background(), actingPrincipal(), "a1")
	require.NoError(t, err)
	assert.Len(t, store.items, 1)
	assert.Equal(t, []string{
		models.AuditActionRemoved,
		models.AuditActionPrimaryUnset,
	}, auditActions(store.entries))
}

func TestScheduleServiceRemoveMissingAssignment(t *testing.T) {
	svc := newTestScheduleService(newStubAssignmentStore())

	err := svc.RemoveAssignment(context.Background(), actingPrincipal(), "nope")
	require.Error(t, err)

	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErr.Code)
}

func TestScheduleServiceCanRemove(t *testing.T) {
	store := newStubAssignmentStore()
	store.seed("lone-primary", "i1", "r1", "w1", true)
	store.seed("covered-primary", "i2", "r1", "w2", true)
	store.seed("companion", "i3", "r1", "w2", false)
	svc := newTestScheduleService(store)

	ok, err := svc.CanRemove(context.Background(), "lone-primary")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = svc.CanRemove(context.Background(), "covered-primary")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = svc.CanRemove(context.Background(), "companion")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = svc.CanRemove(context.Background(), "missing")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestScheduleServiceSetPrimaryDemotesCurrent(t *testing.T) {
	store := newStubAssignmentStore()
	store.seed("a1", "i1", "r1", "w1", true)
	store.seed("a2", "i2", "r1", "w1", false)
	svc := newTestScheduleService(store)

	err := svc.SetPrimary(context.Background(), actingPrincipal(), "a2", true)
	require.NoError(t, err)

	assert.False(t, store.items["a1"].IsPrimaryEvaluator)
	assert.True(t, store.items["a2"].IsPrimaryEvaluator)
	assert.Equal(t, []string{
		models.AuditActionPrimaryUnset,
		models.AuditActionPrimarySet,
	}, auditActions(store.entries))
	assert.Equal(t, "i1", store.entries[0].InstructorID)
	assert.Equal(t, "i2", store.entries[1].InstructorID)
}

func TestScheduleServiceSetPrimaryIdempotent(t *testing.T) {
	store := newStubAssignmentStore()
	store.seed("a1", "i1", "r1", "w1", false)
	svc := newTestScheduleService(store)

	require.NoError(t, svc.SetPrimary(context.Background(), actingPrincipal(), "a1", true))
	require.NoError(t, svc.SetPrimary(context.Background(), actingPrincipal(), "a1", true))

	assert.True(t, store.items["a1"].IsPrimaryEvaluator)
	assert.Equal(t, []string{models.AuditActionPrimarySet}, auditActions(store.entries))
}

func TestScheduleServiceSetPrimaryUnset(t *testing.T) {
	store := newStubAssignmentStore()
	store.seed("a1", "i1", "r1", "w1", true)
	store.seed("a2", "i2", "r1", "w1", false)
	svc := newTestScheduleService(store)

	err := svc.SetPrimary(context.Background(), actingPrincipal(), "a1", false)
	require.NoError(t, err)

	assert.False(t, store.items["a1"].IsPrimaryEvaluator)
	assert.Equal(t, []string{models.AuditActionPrimaryUnset}, auditActions(store.entries))
}

func TestScheduleServiceSetPrimaryAcrossWeeks(t *testing.T) {
	store := newStubAssignmentStore()
	store.seed("a1", "i1", "r1", "w1", false)
	store.seed("a2", "i1", "r1", "w2", false)
	store.seed("a3", "other", "r1", "w1", true)
	svc := newTestScheduleService(store)

	err := svc.SetPrimaryAcrossWeeks(context.Background(), actingPrincipal(), SetPrimaryAcrossWeeksRequest{
		InstructorID: "i1",
		RotationID:   "r1",
		WeekIDs:      []string{"w1", "w2"},
	})
	require.NoError(t, err)

	assert.True(t, store.items["a1"].IsPrimaryEvaluator)
	assert.True(t, store.items["a2"].IsPrimaryEvaluator)
	assert.False(t, store.items["a3"].IsPrimaryEvaluator)
	assert.Equal(t, []string{
		models.AuditActionPrimaryUnset,
		models.AuditActionPrimarySet,
		models.AuditActionPrimarySet,
	}, auditActions(store.entries))
	assert.Equal(t, "other", store.entries[0].InstructorID)
}

func TestScheduleServiceSetPrimaryAcrossWeeksAlreadyPrimarySkipsSelfUnset(t *testing.T) {
	store := newStubAssignmentStore()
	store.seed("a1", "i1", "r1", "w1", true)
	store.seed("a2", "i1", "r1", "w2", false)
	svc := newTestScheduleService(store)

	err := svc.SetPrimaryAcrossWeeks(context.Background(), actingPrincipal(), SetPrimaryAcrossWeeksRequest{
		InstructorID: "i1",
		RotationID:   "r1",
		WeekIDs:      []string{"w1", "w2"},
	})
	require.NoError(t, err)

	// The target being the current primary on w1 is not a displacement.
	assert.Equal(t, []string{
		models.AuditActionPrimarySet,
		models.AuditActionPrimarySet,
	}, auditActions(store.entries))
}

func TestScheduleServiceSetPrimaryAcrossWeeksMissingWeekWritesNothing(t *testing.T) {
	store := newStubAssignmentStore()
	store.seed("a1", "i1", "r1", "w1", false)
	store.seed("a3", "other", "r1", "w1", true)
	svc := newTestScheduleService(store)

	err := svc.SetPrimaryAcrossWeeks(context.Background(), actingPrincipal(), SetPrimaryAcrossWeeksRequest{
		InstructorID: "i1",
		RotationID:   "r1",
		WeekIDs:      []string{"w1", "w2"},
	})
	require.Error(t, err)

	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrPreconditionFailed.Code, appErr.Code)
	assert.Contains(t, appErr.Message, "w2")

	// w1 is untouched even though the instructor is scheduled there.
	assert.False(t, store.items["a1"].IsPrimaryEvaluator)
	assert.True(t, store.items["a3"].IsPrimaryEvaluator)
	assert.Empty(t, store.entries)
}

func TestScheduleServiceMetricsOnSuccess(t *testing.T) {
	store := newStubAssignmentStore()
	metrics := &stubMutationObserver{}
	svc := NewScheduleService(store, &stubPermissionChecker{allowed: true}, metrics, nil, nil)

	_, err := svc.AddInstructor(context.Background(), actingPrincipal(), AddInstructorRequest{
		InstructorID: "i1",
		RotationID:   "r1",
		WeekIDs:      []string{"w1"},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"ADDED:true"}, metrics.observed)
}

func TestScheduleServiceListScheduledInstructors(t *testing.T) {
	store := newStubAssignmentStore()
	store.seed("a1", "i1", "r1", "w1", true)
	store.seed("a2", "i2", "r1", "w2", false)
	store.seed("a3", "i3", "r2", "w1", false)
	svc := newTestScheduleService(store)

	details, err := svc.ListScheduledInstructors(context.Background(), "r1", []string{"w1", "w2"})
	require.NoError(t, err)
	assert.Len(t, details, 2)
}
