package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/clinrota/rotation-api/internal/service"
	"github.com/clinrota/rotation-api/pkg/response"
)

// AuditHandler serves the schedule audit trail.
type AuditHandler struct {
	audit *service.AuditService
}

// NewAuditHandler constructs handler.
func NewAuditHandler(audit *service.AuditService) *AuditHandler {
	return &AuditHandler{audit: audit}
}

// AssignmentHistory godoc
// @Summary Audit history for one assignment
// @Tags Audit
// @Produce json
// @Param id path string true "Assignment ID"
// @Success 200 {object} response.Envelope
// @Router /assignments/{id}/history [get]
func (h *AuditHandler) AssignmentHistory(c *gin.Context) {
	entries, err := h.audit.HistoryForAssignment(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, entries, nil)
}

// SlotHistory godoc
// @Summary Audit history for one (rotation, week) slot
// @Tags Audit
// @Produce json
// @Param id path string true "Rotation ID"
// @Param weekId path string true "Week ID"
// @Success 200 {object} response.Envelope
// @Router /rotations/{id}/weeks/{weekId}/history [get]
func (h *AuditHandler) SlotHistory(c *gin.Context) {
	entries, err := h.audit.HistoryForSlot(c.Request.Context(), c.Param("id"), c.Param("weekId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, entries, nil)
}
