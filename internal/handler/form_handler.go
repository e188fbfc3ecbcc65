package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/keek-conecta/escuta-api/internal/service"
	appErrors "github.com/keek-conecta/escuta-api/pkg/errors"
	"github.com/keek-conecta/escuta-api/pkg/response"
)

// FormHandler exposes form and version authoring endpoints.
type FormHandler struct {
	service *service.FormService
}

// NewFormHandler constructs the handler.
func NewFormHandler(svc *service.FormService) *FormHandler {
	return &FormHandler{service: svc}
}

// ListByProject godoc
// @Summary List forms of a project
// @Tags Forms
// @Produce json
// @Param projetoId query int true "Project ID"
// @Success 200 {object} response.Envelope
// @Router /forms [get]
func (h *FormHandler) ListByProject(c *gin.Context) {
	projetoID, err := queryInt64(c, "projetoId")
	if err != nil {
		response.Error(c, err)
		return
	}
	if projetoID == 0 {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "projetoId is required"))
		return
	}
	items, err := h.service.ListByProject(c.Request.Context(), projetoID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, nil)
}

// Get godoc
// @Summary Fetch one form
// @Tags Forms
// @Produce json
// @Param id path int true "Form ID"
// @Success 200 {object} response.Envelope
// @Router /forms/{id} [get]
func (h *FormHandler) Get(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}
	found, err := h.service.Get(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, found, nil)
}

// Create godoc
// @Summary Create a form
// @Tags Forms
// @Accept json
// @Produce json
// @Param payload body service.FormInput true "Form payload"
// @Success 201 {object} response.Envelope
// @Router /forms [post]
func (h *FormHandler) Create(c *gin.Context) {
	var input service.FormInput
	if err := c.ShouldBindJSON(&input); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid form payload"))
		return
	}
	created, err := h.service.Create(c.Request.Context(), input)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, created)
}

// Update godoc
// @Summary Update a form
// @Tags Forms
// @Accept json
// @Produce json
// @Param id path int true "Form ID"
// @Success 200 {object} response.Envelope
// @Router /forms/{id} [put]
func (h *FormHandler) Update(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}
	var input service.FormInput
	if err := c.ShouldBindJSON(&input); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid form payload"))
		return
	}
	updated, err := h.service.Update(c.Request.Context(), id, input)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, updated, nil)
}

// CreateVersion godoc
// @Summary Create a new form version
// @Tags Forms
// @Accept json
// @Produce json
// @Param payload body service.VersionInput true "Version payload"
// @Success 201 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /forms/versions [post]
func (h *FormHandler) CreateVersion(c *gin.Context) {
	var input service.VersionInput
	if err := c.ShouldBindJSON(&input); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid version payload"))
		return
	}
	version, fields, err := h.service.CreateVersion(c.Request.Context(), input)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, gin.H{"version": version, "fields": fields})
}

// GetVersion godoc
// @Summary Fetch one form version with its fields
// @Tags Forms
// @Produce json
// @Param id path int true "Version ID"
// @Success 200 {object} response.Envelope
// @Router /forms/versions/{id} [get]
func (h *FormHandler) GetVersion(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}
	version, fields, err := h.service.GetVersion(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"version": version, "fields": fields}, nil)
}

// ListVersions godoc
// @Summary List versions of a form
// @Tags Forms
// @Produce json
// @Param id path int true "Form ID"
// @Success 200 {object} response.Envelope
// @Router /forms/{id}/versions [get]
func (h *FormHandler) ListVersions(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}
	items, err := h.service.ListVersions(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, nil)
}

// PublishVersion godoc
// @Summary Publish a form version
// @Tags Forms
// @Param id path int true "Version ID"
// @Success 204 {object} response.Envelope
// @Router /forms/versions/{id}/publish [post]
func (h *FormHandler) PublishVersion(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}
	if err := h.service.PublishVersion(c.Request.Context(), id); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
