package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/keek-conecta/escuta-api/internal/service"
	appErrors "github.com/keek-conecta/escuta-api/pkg/errors"
	"github.com/keek-conecta/escuta-api/pkg/response"
)

// PowerBIHandler exposes the embedded report token endpoint.
type PowerBIHandler struct {
	service *service.PowerBIService
}

// NewPowerBIHandler constructs the handler.
func NewPowerBIHandler(svc *service.PowerBIService) *PowerBIHandler {
	return &PowerBIHandler{service: svc}
}

// EmbedToken godoc
// @Summary Issue a Power BI embed token
// @Tags PowerBI
// @Produce json
// @Success 200 {object} response.Envelope
// @Failure 502 {object} response.Envelope
// @Router /powerbi/embed-token [get]
func (h *PowerBIHandler) EmbedToken(c *gin.Context) {
	if h.service == nil || !h.service.Enabled() {
		response.Error(c, appErrors.Clone(appErrors.ErrNotFound, "embedded reports are not configured"))
		return
	}
	token, err := h.service.EmbedToken(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, token, nil)
}
