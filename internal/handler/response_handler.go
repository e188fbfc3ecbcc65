package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/keek-conecta/escuta-api/internal/service"
	appErrors "github.com/keek-conecta/escuta-api/pkg/errors"
	"github.com/keek-conecta/escuta-api/pkg/response"
)

// ResponseHandler exposes the form response capture endpoints.
type ResponseHandler struct {
	service *service.FormResponseService
}

// NewResponseHandler constructs the handler.
func NewResponseHandler(svc *service.FormResponseService) *ResponseHandler {
	return &ResponseHandler{service: svc}
}

// Create godoc
// @Summary Submit a form response
// @Tags Responses
// @Accept json
// @Produce json
// @Param payload body service.ResponseInput true "Response payload"
// @Success 201 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /responses [post]
func (h *ResponseHandler) Create(c *gin.Context) {
	var input service.ResponseInput
	if err := c.ShouldBindJSON(&input); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid response payload"))
		return
	}
	ip := c.ClientIP()
	if ip != "" {
		input.IP = &ip
	}
	if ua := c.GetHeader("User-Agent"); ua != "" {
		input.UserAgent = &ua
	}

	created, err := h.service.Create(c.Request.Context(), input)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, created)
}

// Update godoc
// @Summary Update a form response
// @Tags Responses
// @Accept json
// @Produce json
// @Param id path int true "Response ID"
// @Param payload body service.ResponseInput true "Response payload"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /responses/{id} [put]
func (h *ResponseHandler) Update(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}
	var input service.ResponseInput
	if err := c.ShouldBindJSON(&input); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid response payload"))
		return
	}

	updated, err := h.service.Update(c.Request.Context(), id, input)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, updated, nil)
}

// Get godoc
// @Summary Fetch one response with its answers
// @Tags Responses
// @Produce json
// @Param id path int true "Response ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /responses/{id} [get]
func (h *ResponseHandler) Get(c *gin.Context) {
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

// List godoc
// @Summary List responses with dashboard filters
// @Tags Responses
// @Produce json
// @Param projetoId query int false "Project ID"
// @Param page query int false "Page number"
// @Param pageSize query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /responses [get]
func (h *ResponseHandler) List(c *gin.Context) {
	base, err := parseBaseFilters(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	req := service.ResponseListRequest{
		ProjetoID:     base.ProjetoID,
		FormVersionID: base.FormVersionID,
		Status:        base.Status,
		Start:         base.Start,
		End:           base.End,
		Fields:        base.Fields,
		Page:          queryIntDefault(c, "page", 1),
		PageSize:      queryIntDefault(c, "pageSize", 20),
	}

	items, pagination, err := h.service.List(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, pagination)
}

// Opinions godoc
// @Summary List one field's answers newest first
// @Tags Responses
// @Produce json
// @Param projetoId query int true "Project ID"
// @Param fieldName query string true "Field name"
// @Param start query string false "Response creation lower bound"
// @Param end query string false "Response creation upper bound"
// @Param page query int false "Page number"
// @Param pageSize query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /responses/opinions [get]
func (h *ResponseHandler) Opinions(c *gin.Context) {
	projetoID, err := queryInt64(c, "projetoId")
	if err != nil {
		response.Error(c, err)
		return
	}
	start, err := queryDate(c, "start")
	if err != nil {
		response.Error(c, err)
		return
	}
	end, err := queryDate(c, "end")
	if err != nil {
		response.Error(c, err)
		return
	}
	req := service.OpinionListRequest{
		ProjetoID: projetoID,
		FieldName: c.Query("fieldName"),
		Start:     start,
		End:       end,
		Page:      queryIntDefault(c, "page", 1),
		PageSize:  queryIntDefault(c, "pageSize", 20),
	}

	items, pagination, err := h.service.Opinions(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, pagination)
}

// FieldExists godoc
// @Summary Check whether a field already holds a value
// @Tags Responses
// @Produce json
// @Param projetoId query int true "Project ID"
// @Param formVersionId query int false "Form version ID"
// @Param fieldName query string true "Field name"
// @Param value query string true "Value to look up"
// @Success 200 {object} response.Envelope
// @Router /responses/field-exists [get]
func (h *ResponseHandler) FieldExists(c *gin.Context) {
	projetoID, err := queryInt64(c, "projetoId")
	if err != nil {
		response.Error(c, err)
		return
	}
	formVersionID, err := queryInt64(c, "formVersionId")
	if err != nil {
		response.Error(c, err)
		return
	}

	result, err := h.service.FieldExists(c.Request.Context(), service.FieldExistsRequest{
		ProjetoID:     projetoID,
		FormVersionID: formVersionID,
		FieldName:     c.Query("fieldName"),
		Value:         c.Query("value"),
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// Delete godoc
// @Summary Delete a response
// @Tags Responses
// @Param id path int true "Response ID"
// @Success 204 {object} response.Envelope
// @Router /responses/{id} [delete]
func (h *ResponseHandler) Delete(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}
	if err := h.service.Delete(c.Request.Context(), id); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
