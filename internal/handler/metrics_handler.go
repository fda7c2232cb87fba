package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/modoudou1/vaxcare-api/internal/models"
	"github.com/modoudou1/vaxcare-api/internal/service"
	appErrors "github.com/modoudou1/vaxcare-api/pkg/errors"
	"github.com/modoudou1/vaxcare-api/pkg/response"
)

// MetricsHandler exposes observability endpoints.
type MetricsHandler struct {
	metrics *service.MetricsService
}

// NewMetricsHandler constructs a metrics handler.
func NewMetricsHandler(metrics *service.MetricsService) *MetricsHandler {
	return &MetricsHandler{metrics: metrics}
}

// Prometheus serves the Prometheus metrics endpoint.
func (h *MetricsHandler) Prometheus(c *gin.Context) {
	if h.metrics == nil {
		c.Status(http.StatusServiceUnavailable)
		return
	}
	h.metrics.Handler().ServeHTTP(c.Writer, c.Request)
}

// Health responds with a generic OK payload for readiness/liveness usage.
func (h *MetricsHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// System godoc
// @Summary System metrics snapshot
// @Description Aggregated runtime counters; national only
// @Tags System
// @Produce json
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /system/metrics [get]
func (h *MetricsHandler) System(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	if actor.Role != models.RoleNational {
		response.Error(c, appErrors.Clone(appErrors.ErrForbidden, "insufficient permissions"))
		return
	}
	if h.metrics == nil {
		c.Status(http.StatusServiceUnavailable)
		return
	}

	snapshot := h.metrics.Snapshot()
	response.JSON(c, http.StatusOK, snapshot, nil)
}
