package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/clinrota/rotation-api/internal/service"
	"github.com/clinrota/rotation-api/pkg/response"
)

// CatalogHandler exposes read-only reference data endpoints.
type CatalogHandler struct {
	catalog *service.CatalogService
}

// NewCatalogHandler constructs handler.
func NewCatalogHandler(catalog *service.CatalogService) *CatalogHandler {
	return &CatalogHandler{catalog: catalog}
}

// ListServices godoc
// @Summary List clinical services
// @Tags Catalog
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /services [get]
func (h *CatalogHandler) ListServices(c *gin.Context) {
	services, err := h.catalog.ListServices(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, services, nil)
}

// ListRotations godoc
// @Summary List rotations across all services
// @Tags Catalog
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /rotations [get]
func (h *CatalogHandler) ListRotations(c *gin.Context) {
	rotations, err := h.catalog.ListRotations(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, rotations, nil)
}

// ListServiceRotations godoc
// @Summary List one service's rotations
// @Tags Catalog
// @Produce json
// @Param id path string true "Service ID"
// @Success 200 {object} response.Envelope
// @Router /services/{id}/rotations [get]
func (h *CatalogHandler) ListServiceRotations(c *gin.Context) {
	rotations, err := h.catalog.ListServiceRotations(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, rotations, nil)
}

// ListInstructors godoc
// @Summary List instructors
// @Tags Catalog
// @Produce json
// @Param active query bool false "Active instructors only"
// @Success 200 {object} response.Envelope
// @Router /instructors [get]
func (h *CatalogHandler) ListInstructors(c *gin.Context) {
	activeOnly, _ := strconv.ParseBool(c.DefaultQuery("active", "false"))
	instructors, err := h.catalog.ListInstructors(c.Request.Context(), activeOnly)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, instructors, nil)
}

// GetInstructor godoc
// @Summary Get one instructor
// @Tags Catalog
// @Produce json
// @Param id path string true "Instructor ID"
// @Success 200 {object} response.Envelope
// @Router /instructors/{id} [get]
func (h *CatalogHandler) GetInstructor(c *gin.Context) {
	instructor, err := h.catalog.GetInstructor(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, instructor, nil)
}

// ListWeeks godoc
// @Summary List schedule weeks
// @Tags Catalog
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /weeks [get]
func (h *CatalogHandler) ListWeeks(c *gin.Context) {
	weeks, err := h.catalog.ListWeeks(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, weeks, nil)
}
