package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/keek-conecta/escuta-api/internal/models"
)

type fakeMetricsSrv struct {
	report     *models.ReportPayload
	reportErr  error
	lastBase   models.BaseFilters
	lastField  string
	lastLimit  int
	lastOpts   models.ReportOptions
	lastWindow models.SummaryWindow
	distResult *models.DistributionResult
}

func (f *fakeMetricsSrv) TimeSeries(_ context.Context, base models.BaseFilters, interval models.MetricsInterval, dateField models.MetricsDateField) (*models.TimeSeriesResult, error) {
	f.lastBase = base
	return &models.TimeSeriesResult{Interval: interval, DateField: dateField}, nil
}

func (f *fakeMetricsSrv) Distribution(_ context.Context, base models.BaseFilters, selector models.FieldSelector, valueType models.MetricsValueType, limit int) (*models.DistributionResult, error) {
	f.lastBase = base
	f.lastField = selector.FieldName
	f.lastLimit = limit
	return f.distResult, nil
}

func (f *fakeMetricsSrv) NumberStats(_ context.Context, base models.BaseFilters, selector models.FieldSelector) (*models.NumberStats, error) {
	f.lastBase = base
	f.lastField = selector.FieldName
	return &models.NumberStats{Count: 3}, nil
}

func (f *fakeMetricsSrv) StatusFunnel(_ context.Context, base models.BaseFilters) ([]models.StatusCount, error) {
	f.lastBase = base
	return []models.StatusCount{{Status: models.ResponseCompleted, Count: 2}}, nil
}

func (f *fakeMetricsSrv) Report(_ context.Context, base models.BaseFilters, opts models.ReportOptions) (*models.ReportPayload, error) {
	f.lastBase = base
	f.lastOpts = opts
	return f.report, f.reportErr
}

func (f *fakeMetricsSrv) Summary(_ context.Context, base models.BaseFilters, window models.SummaryWindow) (*models.SummaryPayload, error) {
	f.lastBase = base
	f.lastWindow = window
	return &models.SummaryPayload{Today: int(base.ProjetoID)}, nil
}

func (f *fakeMetricsSrv) FilterOptions(_ context.Context, base models.BaseFilters) (*models.FilterOptionsPayload, error) {
	f.lastBase = base
	return &models.FilterOptionsPayload{}, nil
}

func TestMetricsHandlerDistributionRequiresField(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewMetricsHandler(&fakeMetricsSrv{})

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/metrics/distribution?projetoId=1", nil)

	handler.Distribution(c)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestMetricsHandlerDistributionPassesScope(t *testing.T) {
	gin.SetMode(gin.TestMode)
	service := &fakeMetricsSrv{distResult: &models.DistributionResult{FieldName: "genero"}}
	handler := NewMetricsHandler(service)

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/metrics/distribution?projetoId=4&fieldName=genero&limit=7", nil)

	handler.Distribution(c)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, int64(4), service.lastBase.ProjetoID)
	assert.Equal(t, "genero", service.lastField)
	assert.Equal(t, 7, service.lastLimit)
}

func TestMetricsHandlerReportParsesAliasedFilters(t *testing.T) {
	gin.SetMode(gin.TestMode)
	service := &fakeMetricsSrv{report: &models.ReportPayload{Cards: models.ReportCards{TotalOpinions: 11}}}
	handler := NewMetricsHandler(service)

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet,
		"/metrics/report?projetoId=2&temas=Saude,Transporte&tema=Educacao&status=completed&start=2026-01-01&dayStart=2026-02-01&dayEnd=2026-02-10&limitTopThemes=3", nil)

	handler.Report(c)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"Saude", "Transporte"}, service.lastBase.Fields.Temas)
	assert.Equal(t, []string{"Educacao"}, service.lastBase.Fields.Tema)
	assert.Equal(t, models.ResponseCompleted, service.lastBase.Status)
	require.NotNil(t, service.lastBase.Start)
	assert.Equal(t, 2026, service.lastBase.Start.Year())
	require.NotNil(t, service.lastOpts.DayStart)
	require.NotNil(t, service.lastOpts.DayEnd)
	assert.Equal(t, 10, service.lastOpts.DayEnd.Day())
	assert.Equal(t, 3, service.lastOpts.TopThemesLimit)

	var envelope struct {
		Data map[string]interface{} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	cards, ok := envelope.Data["cards"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, float64(11), cards["total_opinions"])
}

func TestMetricsHandlerRejectsBadDate(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewMetricsHandler(&fakeMetricsSrv{})

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/metrics/report?start=99-99-9999", nil)

	handler.Report(c)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestMetricsHandlerSummaryRequiresProject(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewMetricsHandler(&fakeMetricsSrv{})

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/metrics/summary", nil)

	handler.Summary(c)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestMetricsHandlerSummaryParsesWindowAndFilters(t *testing.T) {
	gin.SetMode(gin.TestMode)
	service := &fakeMetricsSrv{}
	handler := NewMetricsHandler(service)

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet,
		"/metrics/summary?projetoId=5&day=2026-03-10&rangeStart=2025-01-01&bairros=Centro", nil)

	handler.Summary(c)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, int64(5), service.lastBase.ProjetoID)
	assert.Equal(t, []string{"Centro"}, service.lastBase.Fields.Bairros)
	require.NotNil(t, service.lastWindow.Day)
	assert.Equal(t, 10, service.lastWindow.Day.Day())
	require.NotNil(t, service.lastWindow.RangeStart)
	assert.Equal(t, 2025, service.lastWindow.RangeStart.Year())
	assert.Nil(t, service.lastWindow.RangeEnd)
}
