package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/clinrota/rotation-api/internal/middleware"
	"github.com/clinrota/rotation-api/internal/service"
	appErrors "github.com/clinrota/rotation-api/pkg/errors"
	"github.com/clinrota/rotation-api/pkg/response"
)

// PermissionHandler exposes schedule permission lookups.
type PermissionHandler struct {
	permissions *service.PermissionService
}

// NewPermissionHandler constructs handler.
func NewPermissionHandler(permissions *service.PermissionService) *PermissionHandler {
	return &PermissionHandler{permissions: permissions}
}

// EditableServices godoc
// @Summary List services whose schedules the caller may edit
// @Tags Permissions
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /services/editable [get]
func (h *PermissionHandler) EditableServices(c *gin.Context) {
	principal, ok := middleware.Principal(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	services, err := h.permissions.EditableServices(c.Request.Context(), principal)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, services, nil)
}

// PermissionMap godoc
// @Summary Map of service id to effective schedule edit permission
// @Tags Permissions
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /services/permissions [get]
func (h *PermissionHandler) PermissionMap(c *gin.Context) {
	permMap, err := h.permissions.ServicePermissionMap(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, permMap, nil)
}

// RequiredPermission godoc
// @Summary Permission required to edit one service's schedules
// @Tags Permissions
// @Produce json
// @Param id path string true "Service ID"
// @Success 200 {object} response.Envelope
// @Router /services/{id}/required-permission [get]
func (h *PermissionHandler) RequiredPermission(c *gin.Context) {
	perm, err := h.permissions.RequiredPermissionFor(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"permission": perm.String()}, nil)
}

// CanEditRotation godoc
// @Summary Check whether the caller may edit a rotation's schedule
// @Tags Permissions
// @Produce json
// @Param id path string true "Rotation ID"
// @Success 200 {object} response.Envelope
// @Router /rotations/{id}/can-edit [get]
func (h *PermissionHandler) CanEditRotation(c *gin.Context) {
	principal, ok := middleware.Principal(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	allowed, err := h.permissions.CanEditRotation(c.Request.Context(), principal, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"can_edit": allowed}, nil)
}

// CanEditOwnSlot godoc
// @Summary Check the self-schedule exception for one assignment
// @Tags Permissions
// @Produce json
// @Param id path string true "Assignment ID"
// @Success 200 {object} response.Envelope
// @Router /assignments/{id}/can-edit-own [get]
func (h *PermissionHandler) CanEditOwnSlot(c *gin.Context) {
	principal, ok := middleware.Principal(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	allowed, err := h.permissions.CanEditOwnSlot(c.Request.Context(), principal, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"can_edit_own": allowed}, nil)
}
