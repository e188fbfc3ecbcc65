package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/keek-conecta/escuta-api/internal/models"
	"github.com/keek-conecta/escuta-api/internal/service"
	appErrors "github.com/keek-conecta/escuta-api/pkg/errors"
	"github.com/keek-conecta/escuta-api/pkg/response"
)

// ProjectHandler exposes project administration endpoints.
type ProjectHandler struct {
	service *service.ProjectService
}

// NewProjectHandler constructs the handler.
func NewProjectHandler(svc *service.ProjectService) *ProjectHandler {
	return &ProjectHandler{service: svc}
}

// List godoc
// @Summary List projects
// @Tags Projects
// @Produce json
// @Param active query bool false "Only active projects"
// @Success 200 {object} response.Envelope
// @Router /projetos [get]
func (h *ProjectHandler) List(c *gin.Context) {
	onlyActive := strings.EqualFold(c.Query("active"), "true")
	page := queryIntDefault(c, "page", 1)
	pageSize := queryIntDefault(c, "pageSize", 20)

	items, pagination, err := h.service.List(c.Request.Context(), onlyActive, page, pageSize)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, pagination)
}

// Get godoc
// @Summary Fetch one project
// @Tags Projects
// @Produce json
// @Param id path int true "Project ID"
// @Success 200 {object} response.Envelope
// @Router /projetos/{id} [get]
func (h *ProjectHandler) Get(c *gin.Context) {
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
// @Summary Create a project
// @Tags Projects
// @Accept json
// @Produce json
// @Param payload body service.ProjectInput true "Project payload"
// @Success 201 {object} response.Envelope
// @Router /projetos [post]
func (h *ProjectHandler) Create(c *gin.Context) {
	var input service.ProjectInput
	if err := c.ShouldBindJSON(&input); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid project payload"))
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
// @Summary Update a project
// @Tags Projects
// @Accept json
// @Produce json
// @Param id path int true "Project ID"
// @Param payload body service.ProjectInput true "Project payload"
// @Success 200 {object} response.Envelope
// @Router /projetos/{id} [put]
func (h *ProjectHandler) Update(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}
	var input service.ProjectInput
	if err := c.ShouldBindJSON(&input); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid project payload"))
		return
	}
	updated, err := h.service.Update(c.Request.Context(), id, input)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, updated, nil)
}

// Grant godoc
// @Summary Grant project access to a user
// @Tags Projects
// @Accept json
// @Param id path int true "Project ID"
// @Success 204 {object} response.Envelope
// @Router /projetos/{id}/access [post]
func (h *ProjectHandler) Grant(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}
	var payload struct {
		UserID int64              `json:"user_id" binding:"required"`
		Level  models.AccessLevel `json:"level" binding:"required"`
	}
	if err := c.ShouldBindJSON(&payload); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid access payload"))
		return
	}
	grant := models.ProjectAccess{ProjetoID: id, UserID: payload.UserID, Level: payload.Level}
	if err := h.service.Grant(c.Request.Context(), grant); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Revoke godoc
// @Summary Revoke project access from a user
// @Tags Projects
// @Param id path int true "Project ID"
// @Param userId path int true "User ID"
// @Success 204 {object} response.Envelope
// @Router /projetos/{id}/access/{userId} [delete]
func (h *ProjectHandler) Revoke(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}
	userID, err := pathID(c, "userId")
	if err != nil {
		response.Error(c, err)
		return
	}
	if err := h.service.Revoke(c.Request.Context(), userID, id); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Search godoc
// @Summary Search projects by name
// @Tags Projects
// @Produce json
// @Param q query string true "Search term"
// @Success 200 {object} response.Envelope
// @Router /projetos/search [get]
func (h *ProjectHandler) Search(c *gin.Context) {
	term := strings.TrimSpace(c.Query("q"))
	if term == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "q is required"))
		return
	}
	limit := queryIntDefault(c, "limit", 10)
	items, err := h.service.Search(c.Request.Context(), term, limit)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, nil)
}
