package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/keek-conecta/escuta-api/internal/service"
)

// TelemetryHandler exposes observability endpoints.
type TelemetryHandler struct {
	telemetry *service.TelemetryService
}

// NewTelemetryHandler constructs a telemetry handler.
func NewTelemetryHandler(telemetry *service.TelemetryService) *TelemetryHandler {
	return &TelemetryHandler{telemetry: telemetry}
}

// Prometheus serves the Prometheus metrics endpoint.
func (h *TelemetryHandler) Prometheus(c *gin.Context) {
	if h.telemetry == nil {
		c.Status(http.StatusServiceUnavailable)
		return
	}
	h.telemetry.Handler().ServeHTTP(c.Writer, c.Request)
}

// Health responds with a generic OK payload for readiness/liveness usage.
func (h *TelemetryHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Snapshot returns in-process counters for quick inspection.
func (h *TelemetryHandler) Snapshot(c *gin.Context) {
	if h.telemetry == nil {
		c.Status(http.StatusServiceUnavailable)
		return
	}
	c.JSON(http.StatusOK, h.telemetry.Snapshot())
}
