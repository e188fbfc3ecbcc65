package handler

import (
	"net/http"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/keek-conecta/escuta-api/internal/service"
	appErrors "github.com/keek-conecta/escuta-api/pkg/errors"
	"github.com/keek-conecta/escuta-api/pkg/response"
)

// ExportHandler exposes file export endpoints.
type ExportHandler struct {
	service *service.ExportService
}

// NewExportHandler constructs the handler.
func NewExportHandler(svc *service.ExportService) *ExportHandler {
	return &ExportHandler{service: svc}
}

// Responses godoc
// @Summary Export filtered responses as CSV
// @Tags Exports
// @Produce json
// @Param projetoId query int true "Project ID"
// @Success 201 {object} response.Envelope
// @Router /exports/responses [post]
func (h *ExportHandler) Responses(c *gin.Context) {
	base, err := parseBaseFilters(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	result, err := h.service.ExportResponses(c.Request.Context(), base)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, result)
}

// Report godoc
// @Summary Export the consolidated report as PDF
// @Tags Exports
// @Produce json
// @Param projetoId query int true "Project ID"
// @Success 201 {object} response.Envelope
// @Router /exports/report [post]
func (h *ExportHandler) Report(c *gin.Context) {
	base, err := parseBaseFilters(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	result, err := h.service.ExportReport(c.Request.Context(), base)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, result)
}

// Download godoc
// @Summary Download a generated export file
// @Tags Exports
// @Param filename path string true "Export filename"
// @Success 200 {file} file
// @Failure 404 {object} response.Envelope
// @Router /exports/{filename} [get]
func (h *ExportHandler) Download(c *gin.Context) {
	filename := filepath.Base(strings.TrimSpace(c.Param("filename")))
	if filename == "" || filename == "." {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "filename is required"))
		return
	}
	file, err := h.service.Open(filename)
	if err != nil {
		response.Error(c, err)
		return
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		response.Error(c, appErrors.ErrInternal)
		return
	}
	contentType := "application/octet-stream"
	switch filepath.Ext(filename) {
	case ".csv":
		contentType = "text/csv"
	case ".pdf":
		contentType = "application/pdf"
	}
	c.Header("Content-Disposition", "attachment; filename="+filename)
	c.DataFromReader(http.StatusOK, info.Size(), contentType, file, nil)
}
