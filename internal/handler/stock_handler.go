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

// StockHandler handles vaccine stock endpoints.
type StockHandler struct {
	service *service.StockService
}

// NewStockHandler creates a new stock handler.
func NewStockHandler(svc *service.StockService) *StockHandler {
	return &StockHandler{service: svc}
}

// List godoc
// @Summary List stock levels
// @Description List vaccine stock inside the caller's scope
// @Tags Stock
// @Produce json
// @Param page query int false "Page number"
// @Param page_size query int false "Page size"
// @Param vaccine query string false "Vaccine filter"
// @Param below_threshold query bool false "Only items below their alert threshold"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /stock [get]
func (h *StockHandler) List(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var filter models.StockFilter
	filter.Page = queryInt(c, "page", 1)
	filter.PageSize = queryInt(c, "page_size", 20)
	filter.Vaccine = c.Query("vaccine")
	if below := c.Query("below_threshold"); below != "" {
		if val, err := strconv.ParseBool(below); err == nil {
			filter.BelowThreshold = val
		}
	}

	items, total, err := h.service.List(c.Request.Context(), actor, filter)
	if err != nil {
		response.Error(c, err)
		return
	}

	pagination := &models.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: total}
	response.JSON(c, http.StatusOK, items, pagination)
}

// Upsert godoc
// @Summary Record stock level
// @Description Create or overwrite the stock level of a vaccine at a facility
// @Tags Stock
// @Accept json
// @Produce json
// @Param payload body models.UpsertStockRequest true "Stock payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /stock [put]
func (h *StockHandler) Upsert(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req models.UpsertStockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}

	item, err := h.service.Upsert(c.Request.Context(), actor, req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, item, nil)
}
