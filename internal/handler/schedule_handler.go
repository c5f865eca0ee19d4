package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/clinrota/rotation-api/internal/middleware"
	"github.com/clinrota/rotation-api/internal/service"
	appErrors "github.com/clinrota/rotation-api/pkg/errors"
	"github.com/clinrota/rotation-api/pkg/response"
)

// ScheduleHandler manages instructor schedule endpoints.
type ScheduleHandler struct {
	schedule *service.ScheduleService
	access   *service.AccessService
}

// NewScheduleHandler constructs handler.
func NewScheduleHandler(schedule *service.ScheduleService, access *service.AccessService) *ScheduleHandler {
	return &ScheduleHandler{schedule: schedule, access: access}
}

type addInstructorBody struct {
	InstructorID string   `json:"instructor_id"`
	WeekIDs      []string `json:"week_ids"`
	IsPrimary    bool     `json:"is_primary"`
}

type setPrimaryBody struct {
	IsPrimary *bool `json:"is_primary"`
}

type promoteBody struct {
	InstructorID string   `json:"instructor_id"`
	WeekIDs      []string `json:"week_ids"`
}

// ListScheduled godoc
// @Summary List instructors scheduled on a rotation
// @Tags Schedule
// @Produce json
// @Param id path string true "Rotation ID"
// @Param weekIds query string true "Comma-separated week ids"
// @Success 200 {object} response.Envelope
// @Router /rotations/{id}/instructors [get]
func (h *ScheduleHandler) ListScheduled(c *gin.Context) {
	weekIDs := splitIDs(c.Query("weekIds"))
	if len(weekIDs) == 0 {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "weekIds query parameter is required"))
		return
	}
	details, err := h.schedule.ListScheduledInstructors(c.Request.Context(), c.Param("id"), weekIDs)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, details, nil)
}

// Add godoc
// @Summary Schedule an instructor on a rotation for one or more weeks
// @Tags Schedule
// @Accept json
// @Produce json
// @Param id path string true "Rotation ID"
// @Param payload body addInstructorBody true "Assignment payload"
// @Success 201 {object} response.Envelope
// @Router /rotations/{id}/instructors [post]
func (h *ScheduleHandler) Add(c *gin.Context) {
	principal, ok := middleware.Principal(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var body addInstructorBody
	if err := c.ShouldBindJSON(&body); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid payload"))
		return
	}

	rotationID := c.Param("id")
	acting, err := h.access.ValidateAndResolvePrincipal(c.Request.Context(), principal, rotationID, body.InstructorID)
	if err != nil {
		response.Error(c, err)
		return
	}

	assignments, err := h.schedule.AddInstructor(c.Request.Context(), *acting, service.AddInstructorRequest{
		InstructorID: body.InstructorID,
		RotationID:   rotationID,
		WeekIDs:      body.WeekIDs,
		IsPrimary:    body.IsPrimary,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, assignments)
}

// Remove godoc
// @Summary Remove an assignment
// @Tags Schedule
// @Produce json
// @Param id path string true "Assignment ID"
// @Success 204
// @Router /assignments/{id} [delete]
func (h *ScheduleHandler) Remove(c *gin.Context) {
	principal, ok := middleware.Principal(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	if err := h.schedule.RemoveAssignment(c.Request.Context(), principal, c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// CanRemove godoc
// @Summary Check whether an assignment can be removed
// @Tags Schedule
// @Produce json
// @Param id path string true "Assignment ID"
// @Success 200 {object} response.Envelope
// @Router /assignments/{id}/can-remove [get]
func (h *ScheduleHandler) CanRemove(c *gin.Context) {
	removable, err := h.schedule.CanRemove(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"can_remove": removable}, nil)
}

// SetPrimary godoc
// @Summary Toggle the primary evaluator flag on an assignment
// @Tags Schedule
// @Accept json
// @Produce json
// @Param id path string true "Assignment ID"
// @Param payload body setPrimaryBody true "Primary flag"
// @Success 204
// @Router /assignments/{id}/primary [patch]
func (h *ScheduleHandler) SetPrimary(c *gin.Context) {
	principal, ok := middleware.Principal(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var body setPrimaryBody
	if err := c.ShouldBindJSON(&body); err != nil || body.IsPrimary == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "is_primary is required"))
		return
	}

	if err := h.schedule.SetPrimary(c.Request.Context(), principal, c.Param("id"), *body.IsPrimary); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Promote godoc
// @Summary Promote an instructor to primary evaluator across weeks
// @Tags Schedule
// @Accept json
// @Produce json
// @Param id path string true "Rotation ID"
// @Param payload body promoteBody true "Promotion payload"
// @Success 204
// @Router /rotations/{id}/primary [post]
func (h *ScheduleHandler) Promote(c *gin.Context) {
	principal, ok := middleware.Principal(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var body promoteBody
	if err := c.ShouldBindJSON(&body); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid payload"))
		return
	}

	rotationID := c.Param("id")
	acting, err := h.access.ValidateAndResolvePrincipal(c.Request.Context(), principal, rotationID, body.InstructorID)
	if err != nil {
		response.Error(c, err)
		return
	}

	if err := h.schedule.SetPrimaryAcrossWeeks(c.Request.Context(), *acting, service.SetPrimaryAcrossWeeksRequest{
		InstructorID: body.InstructorID,
		RotationID:   rotationID,
		WeekIDs:      body.WeekIDs,
	}); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Conflicts godoc
// @Summary List an instructor's conflicting assignments for a set of weeks
// @Tags Schedule
// @Produce json
// @Param id path string true "Instructor ID"
// @Param weekIds query string true "Comma-separated week ids"
// @Param excludeRotationId query string false "Rotation to exclude"
// @Success 200 {object} response.Envelope
// @Router /instructors/{id}/conflicts [get]
func (h *ScheduleHandler) Conflicts(c *gin.Context) {
	weekIDs := splitIDs(c.Query("weekIds"))
	if len(weekIDs) == 0 {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "weekIds query parameter is required"))
		return
	}
	conflicts, err := h.schedule.FindConflicts(c.Request.Context(), c.Param("id"), weekIDs, c.Query("excludeRotationId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, conflicts, nil)
}

func splitIDs(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	ids := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			ids = append(ids, trimmed)
		}
	}
	return ids
}
