package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/modoudou1/vaxcare-api/internal/models"
	"github.com/modoudou1/vaxcare-api/internal/service"
	appErrors "github.com/modoudou1/vaxcare-api/pkg/errors"
	"github.com/modoudou1/vaxcare-api/pkg/response"
)

// FacilityHandler handles health facility endpoints.
type FacilityHandler struct {
	service *service.FacilityService
}

// NewFacilityHandler creates a new facility handler.
func NewFacilityHandler(svc *service.FacilityService) *FacilityHandler {
	return &FacilityHandler{service: svc}
}

// List godoc
// @Summary List health facilities
// @Description List facilities inside the caller's scope
// @Tags Facilities
// @Produce json
// @Param page query int false "Page number"
// @Param page_size query int false "Page size"
// @Param type query string false "Facility type filter"
// @Param active query bool false "Active filter"
// @Param search query string false "Search term"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /facilities [get]
func (h *FacilityHandler) List(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var filter models.FacilityFilter
	filter.Page = queryInt(c, "page", 1)
	filter.PageSize = queryInt(c, "page_size", 20)

	if facilityType := c.Query("type"); facilityType != "" {
		t := models.FacilityType(facilityType)
		filter.Type = &t
	}
	if active := c.Query("active"); active != "" {
		if val, err := strconv.ParseBool(active); err == nil {
			filter.Active = &val
		}
	}
	filter.Search = c.Query("search")
	filter.SortBy = c.Query("sort_by")
	filter.SortOrder = c.Query("sort_order")

	facilities, total, err := h.service.List(c.Request.Context(), actor, filter)
	if err != nil {
		response.Error(c, err)
		return
	}

	pagination := &models.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: total}
	response.JSON(c, http.StatusOK, facilities, pagination)
}

// Get godoc
// @Summary Get facility
// @Tags Facilities
// @Produce json
// @Param id path string true "Facility ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /facilities/{id} [get]
func (h *FacilityHandler) Get(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	facility, err := h.service.Get(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, facility, nil)
}

// Create godoc
// @Summary Create facility
// @Description Create a facility; placement is derived from the caller's position
// @Tags Facilities
// @Accept json
// @Produce json
// @Param payload body models.CreateFacilityRequest true "Create facility payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /facilities [post]
func (h *FacilityHandler) Create(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req models.CreateFacilityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}

	facility, err := h.service.Create(c.Request.Context(), actor, req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, facility)
}

// Update godoc
// @Summary Update facility
// @Tags Facilities
// @Accept json
// @Produce json
// @Param id path string true "Facility ID"
// @Param payload body models.UpdateFacilityRequest true "Update payload"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /facilities/{id} [put]
func (h *FacilityHandler) Update(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req models.UpdateFacilityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}

	facility, err := h.service.Update(c.Request.Context(), actor, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, facility, nil)
}

// Delete godoc
// @Summary Delete facility
// @Description Soft delete facility by marking inactive
// @Tags Facilities
// @Produce json
// @Param id path string true "Facility ID"
// @Success 204 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /facilities/{id} [delete]
func (h *FacilityHandler) Delete(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	if err := h.service.Delete(c.Request.Context(), actor, c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}

	response.NoContent(c)
}
