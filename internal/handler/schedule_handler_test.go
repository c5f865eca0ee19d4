package handler

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clinrota/rotation-api/internal/middleware"
	"github.com/clinrota/rotation-api/internal/models"
	"github.com/clinrota/rotation-api/internal/service"
)

// memAssignmentStore backs the schedule service with an in-memory table so
// handler tests can drive full request/response cycles.
type memAssignmentStore struct {
	items   map[string]*models.InstructorAssignment
	entries []models.AuditEntry
	nextID  int
}

func newMemAssignmentStore() *memAssignmentStore {
	return &memAssignmentStore{items: make(map[string]*models.InstructorAssignment)}
}

func (m *memAssignmentStore) seed(id, instructorID, rotationID, weekID string, primary bool) {
	m.items[id] = &models.InstructorAssignment{
		ID: id, InstructorID: instructorID, RotationID: rotationID, WeekID: weekID, IsPrimaryEvaluator: primary,
	}
}

func (m *memAssignmentStore) FindByID(ctx context.Context, id string) (*models.InstructorAssignment, error) {
	if a, ok := m.items[id]; ok {
		cp := *a
		return &cp, nil
	}
	return nil, sql.ErrNoRows
}

func (m *memAssignmentStore) ListBySlot(ctx context.Context, rotationID, weekID string) ([]models.InstructorAssignment, error) {
	var out []models.InstructorAssignment
	for _, a := range m.items {
		if a.RotationID == rotationID && a.WeekID == weekID {
			out = append(out, *a)
		}
	}
	return out, nil
}

func (m *memAssignmentStore) ListPrimary(ctx context.Context, rotationID, weekID string) ([]models.InstructorAssignment, error) {
	var out []models.InstructorAssignment
	for _, a := range m.items {
		if a.RotationID == rotationID && a.WeekID == weekID && a.IsPrimaryEvaluator {
			out = append(out, *a)
		}
	}
	return out, nil
}

func (m *memAssignmentStore) ListConflicts(ctx context.Context, instructorID string, weekIDs []string, excludeRotationID string) ([]models.InstructorAssignment, error) {
	var out []models.InstructorAssignment
	for _, a := range m.items {
		if a.InstructorID != instructorID || a.RotationID == excludeRotationID {
			continue
		}
		for _, w := range weekIDs {
			if a.WeekID == w {
				out = append(out, *a)
				break
			}
		}
	}
	return out, nil
}

func (m *memAssignmentStore) ListByInstructorAndRotation(ctx context.Context, instructorID, rotationID string, weekIDs []string) ([]models.InstructorAssignment, error) {
	var out []models.InstructorAssignment
	for _, a := range m.items {
		if a.InstructorID != instructorID || a.RotationID != rotationID {
			continue
		}
		for _, w := range weekIDs {
			if a.WeekID == w {
				out = append(out, *a)
				break
			}
		}
	}
	return out, nil
}

func (m *memAssignmentStore) CountOthersInSlot(ctx context.Context, rotationID, weekID, excludeAssignmentID string) (int, error) {
	count := 0
	for _, a := range m.items {
		if a.RotationID == rotationID && a.WeekID == weekID && a.ID != excludeAssignmentID {
			count++
		}
	}
	return count, nil
}

func (m *memAssignmentStore) ListDetailsBySlots(ctx context.Context, rotationID string, weekIDs []string) ([]models.AssignmentDetail, error) {
	var out []models.AssignmentDetail
	for _, a := range m.items {
		if a.RotationID != rotationID {
			continue
		}
		for _, w := range weekIDs {
			if a.WeekID == w {
				out = append(out, models.AssignmentDetail{InstructorAssignment: *a})
				break
			}
		}
	}
	return out, nil
}

func (m *memAssignmentStore) clearSlot(rotationID, weekID string) {
	for _, a := range m.items {
		if a.RotationID == rotationID && a.WeekID == weekID {
			a.IsPrimaryEvaluator = false
		}
	}
}

func (m *memAssignmentStore) CreateBatch(ctx context.Context, assignments []models.InstructorAssignment, clearSlots []models.SlotRef, entries []models.AuditEntry) error {
	for _, slot := range clearSlots {
		m.clearSlot(slot.RotationID, slot.WeekID)
	}
	for _, a := range assignments {
		m.nextID++
		a.ID = fmt.Sprintf("a%d", m.nextID)
		cp := a
		m.items[a.ID] = &cp
	}
	m.entries = append(m.entries, entries...)
	return nil
}

func (m *memAssignmentStore) Delete(ctx context.Context, assignmentID string, entries []models.AuditEntry) error {
	if _, ok := m.items[assignmentID]; !ok {
		return sql.ErrNoRows
	}
	delete(m.items, assignmentID)
	m.entries = append(m.entries, entries...)
	return nil
}

func (m *memAssignmentStore) UpdatePrimary(ctx context.Context, assignmentID string, isPrimary bool, clear *models.SlotRef, entries []models.AuditEntry) error {
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

func (m *memAssignmentStore) PromoteBatch(ctx context.Context, promotions []models.PrimaryPromotion, entries []models.AuditEntry) error {
	for _, p := range promotions {
		m.clearSlot(p.Slot.RotationID, p.Slot.WeekID)
		m.items[p.AssignmentID].IsPrimaryEvaluator = true
	}
	m.entries = append(m.entries, entries...)
	return nil
}

type memPermissionChecker struct {
	allowed bool
}

func (m *memPermissionChecker) CanEditRotation(ctx context.Context, principal models.Principal, rotationID string) (bool, error) {
	return m.allowed, nil
}

func buildScheduleRouter(store *memAssignmentStore, allowed bool, principal models.Principal) *gin.Engine {
	gin.SetMode(gin.TestMode)
	checker := &memPermissionChecker{allowed: allowed}
	scheduleSvc := service.NewScheduleService(store, checker, nil, nil, nil)
	accessSvc := service.NewAccessService(checker, nil)
	h := NewScheduleHandler(scheduleSvc, accessSvc)

	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set(middleware.ContextPrincipalKey, principal)
		c.Next()
	})
	r.GET("/rotations/:id/instructors", h.ListScheduled)
	r.POST("/rotations/:id/instructors", h.Add)
	r.POST("/rotations/:id/primary", h.Promote)
	r.DELETE("/assignments/:id", h.Remove)
	r.GET("/assignments/:id/can-remove", h.CanRemove)
	r.PATCH("/assignments/:id/primary", h.SetPrimary)
	r.GET("/instructors/:id/conflicts", h.Conflicts)
	return r
}

func performJSON(router *gin.Engine, method, path string, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func schedulerPrincipal() models.Principal {
	return models.Principal{
		InstructorID: "chief",
		Permissions:  models.NewPermissionSet(models.PermissionManage),
	}
}

func TestScheduleHandlerAddCreated(t *testing.T) {
	store := newMemAssignmentStore()
	router := buildScheduleRouter(store, true, schedulerPrincipal())

	rec := performJSON(router, http.MethodPost, "/rotations/r1/instructors", gin.H{
		"instructor_id": "i1",
		"week_ids":      []string{"w1", "w2"},
	})
	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Len(t, store.items, 2)
}

func TestScheduleHandlerAddForbidden(t *testing.T) {
	store := newMemAssignmentStore()
	router := buildScheduleRouter(store, false, schedulerPrincipal())

	rec := performJSON(router, http.MethodPost, "/rotations/r1/instructors", gin.H{
		"instructor_id": "i1",
		"week_ids":      []string{"w1"},
	})
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Empty(t, store.items)
}

func TestScheduleHandlerAddSelfEditException(t *testing.T) {
	store := newMemAssignmentStore()
	self := models.Principal{
		InstructorID: "i1",
		Permissions:  models.NewPermissionSet(models.PermissionEditOwnSchedule),
	}
	router := buildScheduleRouter(store, false, self)

	// The gate admits the self-edit, but the mutation itself still requires
	// the rotation permission.
	rec := performJSON(router, http.MethodPost, "/rotations/r1/instructors", gin.H{
		"instructor_id": "i1",
		"week_ids":      []string{"w1"},
	})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	// A foreign target never passes the gate.
	rec = performJSON(router, http.MethodPost, "/rotations/r1/instructors", gin.H{
		"instructor_id": "someone-else",
		"week_ids":      []string{"w1"},
	})
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestScheduleHandlerAddConflict(t *testing.T) {
	store := newMemAssignmentStore()
	store.seed("a1", "i1", "r2", "w1", false)
	router := buildScheduleRouter(store, true, schedulerPrincipal())

	rec := performJSON(router, http.MethodPost, "/rotations/r1/instructors", gin.H{
		"instructor_id": "i1",
		"week_ids":      []string{"w1"},
	})
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestScheduleHandlerRemoveSolePrimary(t *testing.T) {
	store := newMemAssignmentStore()
	store.seed("a1", "i1", "r1", "w1", true)
	router := buildScheduleRouter(store, true, schedulerPrincipal())

	rec := performJSON(router, http.MethodDelete, "/assignments/a1", nil)
	assert.Equal(t, http.StatusPreconditionFailed, rec.Code)
	assert.Len(t, store.items, 1)
}

func TestScheduleHandlerRemove(t *testing.T) {
	store := newMemAssignmentStore()
	store.seed("a1", "i1", "r1", "w1", false)
	router := buildScheduleRouter(store, true, schedulerPrincipal())

	rec := performJSON(router, http.MethodDelete, "/assignments/a1", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Empty(t, store.items)
}

func TestScheduleHandlerSetPrimaryRequiresFlag(t *testing.T) {
	store := newMemAssignmentStore()
	store.seed("a1", "i1", "r1", "w1", false)
	router := buildScheduleRouter(store, true, schedulerPrincipal())

	rec := performJSON(router, http.MethodPatch, "/assignments/a1/primary", gin.H{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = performJSON(router, http.MethodPatch, "/assignments/a1/primary", gin.H{"is_primary": true})
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.True(t, store.items["a1"].IsPrimaryEvaluator)
}

func TestScheduleHandlerPromoteMissingWeek(t *testing.T) {
	store := newMemAssignmentStore()
	store.seed("a1", "i1", "r1", "w1", false)
	router := buildScheduleRouter(store, true, schedulerPrincipal())

	rec := performJSON(router, http.MethodPost, "/rotations/r1/primary", gin.H{
		"instructor_id": "i1",
		"week_ids":      []string{"w1", "w2"},
	})
	assert.Equal(t, http.StatusPreconditionFailed, rec.Code)
	assert.False(t, store.items["a1"].IsPrimaryEvaluator)
}

func TestScheduleHandlerConflictsRequiresWeekIDs(t *testing.T) {
	router := buildScheduleRouter(newMemAssignmentStore(), true, schedulerPrincipal())

	rec := performJSON(router, http.MethodGet, "/instructors/i1/conflicts", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestScheduleHandlerListScheduled(t *testing.T) {
	store := newMemAssignmentStore()
	store.seed("a1", "i1", "r1", "w1", true)
	router := buildScheduleRouter(store, true, schedulerPrincipal())

	rec := performJSON(router, http.MethodGet, "/rotations/r1/instructors?weekIds=w1,w2", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var envelope struct {
		Data []models.AssignmentDetail `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	assert.Len(t, envelope.Data, 1)
}
