package handler

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/keek-conecta/escuta-api/internal/models"
	appErrors "github.com/keek-conecta/escuta-api/pkg/errors"
	"github.com/keek-conecta/escuta-api/pkg/response"
)

type metricsService interface {
	TimeSeries(ctx context.Context, base models.BaseFilters, interval models.MetricsInterval, dateField models.MetricsDateField) (*models.TimeSeriesResult, error)
	Distribution(ctx context.Context, base models.BaseFilters, selector models.FieldSelector, valueType models.MetricsValueType, limit int) (*models.DistributionResult, error)
	NumberStats(ctx context.Context, base models.BaseFilters, selector models.FieldSelector) (*models.NumberStats, error)
	StatusFunnel(ctx context.Context, base models.BaseFilters) ([]models.StatusCount, error)
	Report(ctx context.Context, base models.BaseFilters, opts models.ReportOptions) (*models.ReportPayload, error)
	Summary(ctx context.Context, base models.BaseFilters, window models.SummaryWindow) (*models.SummaryPayload, error)
	FilterOptions(ctx context.Context, base models.BaseFilters) (*models.FilterOptionsPayload, error)
}

// MetricsHandler exposes the dashboard aggregation endpoints.
type MetricsHandler struct {
	service metricsService
}

// NewMetricsHandler constructs the handler.
func NewMetricsHandler(service metricsService) *MetricsHandler {
	return &MetricsHandler{service: service}
}

// TimeSeries godoc
// @Summary Response counts over time
// @Tags Metrics
// @Produce json
// @Param projetoId query int false "Project ID"
// @Param interval query string false "day, week or month (default day)"
// @Param dateField query string false "createdAt, startedAt, submittedAt or completedAt"
// @Success 200 {object} response.Envelope
// @Router /metrics/timeseries [get]
func (h *MetricsHandler) TimeSeries(c *gin.Context) {
	base, err := parseBaseFilters(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	interval := models.MetricsInterval(strings.TrimSpace(c.Query("interval")))
	dateField := models.MetricsDateField(strings.TrimSpace(c.Query("dateField")))

	result, err := h.service.TimeSeries(c.Request.Context(), base, interval, dateField)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// Distribution godoc
// @Summary Value distribution of one answer field
// @Tags Metrics
// @Produce json
// @Param projetoId query int false "Project ID"
// @Param fieldName query string false "Field name"
// @Param fieldId query int false "Field ID"
// @Param valueType query string false "string, number, boolean or date"
// @Param limit query int false "Maximum buckets"
// @Success 200 {object} response.Envelope
// @Router /metrics/distribution [get]
func (h *MetricsHandler) Distribution(c *gin.Context) {
	base, err := parseBaseFilters(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	selector, err := parseFieldSelector(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	valueType := models.MetricsValueType(strings.TrimSpace(c.Query("valueType")))
	limit := queryIntDefault(c, "limit", 0)

	result, err := h.service.Distribution(c.Request.Context(), base, selector, valueType, limit)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// NumberStats godoc
// @Summary Numeric aggregates of one answer field
// @Tags Metrics
// @Produce json
// @Param projetoId query int false "Project ID"
// @Param fieldName query string false "Field name"
// @Param fieldId query int false "Field ID"
// @Success 200 {object} response.Envelope
// @Router /metrics/numberstats [get]
func (h *MetricsHandler) NumberStats(c *gin.Context) {
	base, err := parseBaseFilters(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	selector, err := parseFieldSelector(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	result, err := h.service.NumberStats(c.Request.Context(), base, selector)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// StatusFunnel godoc
// @Summary Response counts per status
// @Tags Metrics
// @Produce json
// @Param projetoId query int false "Project ID"
// @Success 200 {object} response.Envelope
// @Router /metrics/funnel [get]
func (h *MetricsHandler) StatusFunnel(c *gin.Context) {
	base, err := parseBaseFilters(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	result, err := h.service.StatusFunnel(c.Request.Context(), base)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// Report godoc
// @Summary Consolidated dashboard report
// @Tags Metrics
// @Produce json
// @Param projetoId query int true "Project ID"
// @Param dateField query string false "createdAt, startedAt, submittedAt or completedAt"
// @Param monthStart query string false "Month series window start"
// @Param monthEnd query string false "Month series window end"
// @Param dayStart query string false "Day series window start"
// @Param dayEnd query string false "Day series window end"
// @Param limitTopThemes query int false "Top themes limit"
// @Param limitTopNeighborhoods query int false "Top neighborhoods limit"
// @Param limitDistribution query int false "Distribution limit"
// @Success 200 {object} response.Envelope
// @Router /metrics/report [get]
func (h *MetricsHandler) Report(c *gin.Context) {
	base, err := parseBaseFilters(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	opts := models.ReportOptions{
		DateField:             models.MetricsDateField(strings.TrimSpace(c.Query("dateField"))),
		TopThemesLimit:        queryIntDefault(c, "limitTopThemes", 0),
		TopNeighborhoodsLimit: queryIntDefault(c, "limitTopNeighborhoods", 0),
		DistributionLimit:     queryIntDefault(c, "limitDistribution", 0),
	}
	for _, window := range []struct {
		name string
		dest **time.Time
	}{
		{"monthStart", &opts.MonthStart},
		{"monthEnd", &opts.MonthEnd},
		{"dayStart", &opts.DayStart},
		{"dayEnd", &opts.DayEnd},
	} {
		value, err := queryDate(c, window.name)
		if err != nil {
			response.Error(c, err)
			return
		}
		*window.dest = value
	}
	result, err := h.service.Report(c.Request.Context(), base, opts)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// Summary godoc
// @Summary Landing page summary for one project
// @Tags Metrics
// @Produce json
// @Param projetoId query int true "Project ID"
// @Param day query string false "Reference day (defaults to today)"
// @Param rangeStart query string false "Rolling range start"
// @Param rangeEnd query string false "Rolling range end"
// @Success 200 {object} response.Envelope
// @Router /metrics/summary [get]
func (h *MetricsHandler) Summary(c *gin.Context) {
	base, err := parseBaseFilters(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	if base.ProjetoID == 0 {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "projetoId is required"))
		return
	}
	var window models.SummaryWindow
	for _, field := range []struct {
		name string
		dest **time.Time
	}{
		{"day", &window.Day},
		{"rangeStart", &window.RangeStart},
		{"rangeEnd", &window.RangeEnd},
	} {
		value, err := queryDate(c, field.name)
		if err != nil {
			response.Error(c, err)
			return
		}
		*field.dest = value
	}
	result, err := h.service.Summary(c.Request.Context(), base, window)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// FilterOptions godoc
// @Summary Selectable dashboard filter values
// @Tags Metrics
// @Produce json
// @Param projetoId query int true "Project ID"
// @Success 200 {object} response.Envelope
// @Router /metrics/filters [get]
func (h *MetricsHandler) FilterOptions(c *gin.Context) {
	base, err := parseBaseFilters(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	result, err := h.service.FilterOptions(c.Request.Context(), base)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}
