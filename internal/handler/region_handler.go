package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/modoudou1/vaxcare-api/internal/models"
	"github.com/modoudou1/vaxcare-api/internal/service"
	appErrors "github.com/modoudou1/vaxcare-api/pkg/errors"
	"github.com/modoudou1/vaxcare-api/pkg/response"
)

// RegionHandler exposes region endpoints.
type RegionHandler struct {
	service *service.RegionService
}

// NewRegionHandler constructs a region handler.
func NewRegionHandler(svc *service.RegionService) *RegionHandler {
	return &RegionHandler{service: svc}
}

// List godoc
// @Summary List regions
// @Tags Regions
// @Produce json
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /regions [get]
func (h *RegionHandler) List(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	regions, err := h.service.List(c.Request.Context(), actor)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, regions, nil)
}

// Create godoc
// @Summary Create region
// @Description Create a new administrative region; national only
// @Tags Regions
// @Accept json
// @Produce json
// @Param payload body models.CreateRegionRequest true "Create region payload"
// @Success 201 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /regions [post]
func (h *RegionHandler) Create(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req models.CreateRegionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}

	region, err := h.service.Create(c.Request.Context(), actor, req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, region)
}
