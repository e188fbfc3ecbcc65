package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/keek-conecta/escuta-api/internal/models"
	appErrors "github.com/keek-conecta/escuta-api/pkg/errors"
)

type fakeMetricsStore struct {
	series        map[models.MetricsInterval][]models.SeriesPoint
	distributions map[string][]models.ValueCount
	stats         models.NumberStats
	funnel        []models.StatusCount
	total         int
	fieldByID     *models.FormField
	err           error

	mu         sync.Mutex
	lastQuery  models.MetricsQuery
	dayQuery   *models.MetricsQuery
	countQuery *models.MetricsQuery
}

func (f *fakeMetricsStore) record(q models.MetricsQuery) {
	f.mu.Lock()
	f.lastQuery = q
	f.mu.Unlock()
}

func (f *fakeMetricsStore) TimeSeries(_ context.Context, q models.MetricsQuery, interval models.MetricsInterval, _ models.MetricsDateField) ([]models.SeriesPoint, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.record(q)
	if interval == models.IntervalDay {
		copied := q
		f.mu.Lock()
		f.dayQuery = &copied
		f.mu.Unlock()
	}
	return f.series[interval], nil
}

func (f *fakeMetricsStore) Distribution(_ context.Context, q models.MetricsQuery, fieldName string, _ models.MetricsValueType, _ int) ([]models.ValueCount, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.record(q)
	return f.distributions[fieldName], nil
}

func (f *fakeMetricsStore) NumberStats(_ context.Context, q models.MetricsQuery, _ string) (models.NumberStats, error) {
	if f.err != nil {
		return models.NumberStats{}, f.err
	}
	f.record(q)
	return f.stats, nil
}

func (f *fakeMetricsStore) StatusFunnel(_ context.Context, q models.MetricsQuery) ([]models.StatusCount, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.record(q)
	return f.funnel, nil
}

func (f *fakeMetricsStore) CountResponses(_ context.Context, q models.MetricsQuery) (int, error) {
	if f.err != nil {
		return 0, f.err
	}
	f.record(q)
	copied := q
	f.mu.Lock()
	f.countQuery = &copied
	f.mu.Unlock()
	return f.total, nil
}

func (f *fakeMetricsStore) FieldByID(_ context.Context, _ int64) (*models.FormField, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.fieldByID, nil
}

func newMetricsService(store *fakeMetricsStore, now time.Time) *ResponseMetricsService {
	return NewResponseMetricsService(ResponseMetricsServiceParams{
		Store: store,
		Now:   func() time.Time { return now },
	})
}

func TestTimeSeriesValidatesDimensions(t *testing.T) {
	svc := newMetricsService(&fakeMetricsStore{}, time.Now())

	_, err := svc.TimeSeries(context.Background(), models.BaseFilters{}, "hour", models.DateFieldCreated)
	require.Error(t, err)

	_, err = svc.TimeSeries(context.Background(), models.BaseFilters{}, models.IntervalDay, "deletedAt")
	require.Error(t, err)
}

func TestTimeSeriesAppliesFilters(t *testing.T) {
	jan := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	store := &fakeMetricsStore{series: map[models.MetricsInterval][]models.SeriesPoint{
		models.IntervalMonth: {{Bucket: jan, Count: 3}},
	}}
	svc := newMetricsService(store, time.Date(2026, 6, 15, 12, 0, 0, 0, time.UTC))

	result, err := svc.TimeSeries(context.Background(), models.BaseFilters{
		ProjetoID: 10,
		Fields:    models.FieldFilterInput{Generos: []string{"Feminino"}},
	}, models.IntervalMonth, "")
	require.NoError(t, err)
	require.Len(t, result.Points, 1)
	assert.Equal(t, "2026-01-01T00:00:00Z", result.Points[0].Bucket.Format(time.RFC3339))
	assert.Equal(t, 3, result.Points[0].Count)
	assert.Equal(t, models.DateFieldCreated, result.DateField)

	require.Len(t, store.lastQuery.Predicates, 1)
	assert.Equal(t, "genero", store.lastQuery.Predicates[0].FieldName)
}

func TestDistributionRequiresScope(t *testing.T) {
	svc := newMetricsService(&fakeMetricsStore{}, time.Now())
	_, err := svc.Distribution(context.Background(), models.BaseFilters{}, models.FieldSelector{FieldName: "bairro"}, models.ValueTypeString, 0)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrAmbiguousFilter.Code, appErrors.FromError(err).Code)
}

func TestDistributionAggregatesAcrossVersions(t *testing.T) {
	store := &fakeMetricsStore{
		distributions: map[string][]models.ValueCount{
			"bairro": {{Value: "Centro", Count: 12}},
		},
	}
	svc := newMetricsService(store, time.Now())

	result, err := svc.Distribution(context.Background(), models.BaseFilters{ProjetoID: 10}, models.FieldSelector{FieldName: "bairro"}, "", 0)
	require.NoError(t, err)
	// Project scope alone spans every form version of the project.
	assert.Equal(t, int64(0), store.lastQuery.FormVersionID)
	assert.Equal(t, int64(10), store.lastQuery.ProjetoID)
	require.Len(t, result.Items, 1)
	assert.Equal(t, "Centro", result.Items[0].Value)
}

func TestDistributionByFieldIDPinsVersion(t *testing.T) {
	store := &fakeMetricsStore{
		fieldByID: &models.FormField{ID: 31, FormVersionID: 9, Name: "bairro"},
		distributions: map[string][]models.ValueCount{
			"bairro": {{Value: "Centro", Count: 12}},
		},
	}
	svc := newMetricsService(store, time.Now())

	result, err := svc.Distribution(context.Background(), models.BaseFilters{}, models.FieldSelector{FieldID: 31}, models.ValueTypeString, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(9), store.lastQuery.FormVersionID)
	assert.Equal(t, "bairro", result.FieldName)
}

func TestNumberStatsByFieldID(t *testing.T) {
	store := &fakeMetricsStore{
		fieldByID: &models.FormField{ID: 44, FormVersionID: 9, Name: "ano_nascimento"},
		stats:     models.NumberStats{Count: 5},
	}
	svc := newMetricsService(store, time.Now())

	stats, err := svc.NumberStats(context.Background(), models.BaseFilters{}, models.FieldSelector{FieldID: 44})
	require.NoError(t, err)
	assert.Equal(t, 5, stats.Count)
	assert.Equal(t, int64(9), store.lastQuery.FormVersionID)
}

func TestReportAssemblesPayload(t *testing.T) {
	now := time.Date(2026, 6, 15, 12, 0, 0, 0, time.UTC)
	store := &fakeMetricsStore{
		funnel: []models.StatusCount{{Status: models.ResponseCompleted, Count: 40}, {Status: models.ResponseStarted, Count: 2}},
		distributions: map[string][]models.ValueCount{
			"opiniao":      {{Value: "saude", Count: 20}},
			"tipo_opiniao": {{Value: "Reclamação", Count: 25}, {Value: "Elogio", Count: 10}, {Value: "Sugestão", Count: 7}},
			"bairro":       {{Value: "Centro", Count: 15}},
			"genero":       {{Value: "Feminino", Count: 22}},
			"campanha":     {{Value: "junho", Count: 42}},
			"ano_nascimento": {
				{Value: "2000", Count: 10},
				{Value: "1990", Count: 5},
				{Value: "1800", Count: 3},
			},
		},
		series: map[models.MetricsInterval][]models.SeriesPoint{
			models.IntervalDay: {{Bucket: time.Date(2026, 6, 2, 0, 0, 0, 0, time.UTC), Count: 4}},
		},
	}
	svc := newMetricsService(store, now)

	payload, err := svc.Report(context.Background(), models.BaseFilters{ProjetoID: 10}, models.ReportOptions{})
	require.NoError(t, err)

	// The grand total is the sum of every opinion-type count.
	assert.Equal(t, 42, payload.Cards.TotalOpinions)
	assert.Equal(t, 25, payload.Cards.Reclamacoes)
	assert.Equal(t, 10, payload.Cards.Elogios)
	assert.Equal(t, 7, payload.Cards.Sugestoes)

	// Without date filters the day series covers the current month up to today.
	require.Len(t, payload.DaySeries, 15)
	assert.Equal(t, time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC), payload.DaySeries[0].Bucket)
	assert.Equal(t, 0, payload.DaySeries[0].Count)
	assert.Equal(t, 4, payload.DaySeries[1].Count)

	// 2000 -> age 26 and 1990 -> age 36; the implausible 1800 row lands in
	// the not-informed bucket instead of vanishing.
	byLabel := map[string]int{}
	for _, bucket := range payload.FaixasEtarias {
		byLabel[bucket.Label] = bucket.Count
	}
	assert.Equal(t, 10, byLabel["26-35"])
	assert.Equal(t, 5, byLabel["36-45"])
	assert.Equal(t, 0, byLabel["60+"])
	assert.Equal(t, 3, byLabel[models.UnknownLabel])

	require.Len(t, payload.StatusFunnel, 2)
	assert.Equal(t, models.ResponseCompleted, payload.StatusFunnel[0].Status)
}

func TestReportUsesEndDateAsAgeReference(t *testing.T) {
	now := time.Date(2026, 6, 15, 12, 0, 0, 0, time.UTC)
	store := &fakeMetricsStore{
		distributions: map[string][]models.ValueCount{
			"ano_nascimento": {
				{Value: "abc", Count: 3},
				{Value: "2000", Count: 4},
			},
		},
	}
	svc := newMetricsService(store, now)

	end := time.Date(2020, 12, 31, 0, 0, 0, 0, time.UTC)
	payload, err := svc.Report(context.Background(), models.BaseFilters{ProjetoID: 10, End: &end}, models.ReportOptions{})
	require.NoError(t, err)

	// Ages count against the filter end, so 2000 is 20 years old in 2020.
	byLabel := map[string]int{}
	for _, bucket := range payload.FaixasEtarias {
		byLabel[bucket.Label] = bucket.Count
	}
	assert.Equal(t, 4, byLabel["19-25"])
	assert.Equal(t, 0, byLabel["26-35"])
	assert.Equal(t, 3, byLabel[models.UnknownLabel])
}

func TestReportSkipsDayDefaultWhenFiltered(t *testing.T) {
	now := time.Date(2026, 6, 15, 12, 0, 0, 0, time.UTC)
	store := &fakeMetricsStore{
		series: map[models.MetricsInterval][]models.SeriesPoint{
			models.IntervalDay: {{Bucket: time.Date(2026, 2, 3, 0, 0, 0, 0, time.UTC), Count: 2}},
		},
	}
	svc := newMetricsService(store, now)

	start := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2026, 2, 28, 0, 0, 0, 0, time.UTC)
	payload, err := svc.Report(context.Background(), models.BaseFilters{ProjetoID: 10, Start: &start, End: &end}, models.ReportOptions{})
	require.NoError(t, err)

	// An active filter suppresses the current-month day default; the day
	// series follows the base range untouched and is not zero filled.
	require.NotNil(t, store.dayQuery)
	require.NotNil(t, store.dayQuery.Start)
	assert.Equal(t, start, *store.dayQuery.Start)
	require.Len(t, payload.DaySeries, 1)
	assert.Equal(t, 2, payload.DaySeries[0].Count)
}

func TestReportClampsDayWindowToToday(t *testing.T) {
	now := time.Date(2026, 6, 15, 12, 0, 0, 0, time.UTC)
	store := &fakeMetricsStore{}
	svc := newMetricsService(store, now)

	dayStart := time.Date(2026, 6, 10, 0, 0, 0, 0, time.UTC)
	dayEnd := time.Date(2026, 7, 20, 0, 0, 0, 0, time.UTC)
	payload, err := svc.Report(context.Background(), models.BaseFilters{ProjetoID: 10}, models.ReportOptions{
		DayStart: &dayStart,
		DayEnd:   &dayEnd,
	})
	require.NoError(t, err)

	require.NotNil(t, store.dayQuery)
	require.Len(t, payload.DaySeries, 6)
	assert.Equal(t, time.Date(2026, 6, 10, 0, 0, 0, 0, time.UTC), payload.DaySeries[0].Bucket)
	assert.Equal(t, time.Date(2026, 6, 15, 0, 0, 0, 0, time.UTC), payload.DaySeries[5].Bucket)
}

func TestReportFailsWhenAnyAggregationFails(t *testing.T) {
	store := &fakeMetricsStore{err: errors.New("boom")}
	svc := newMetricsService(store, time.Now())

	_, err := svc.Report(context.Background(), models.BaseFilters{ProjetoID: 10}, models.ReportOptions{})
	require.Error(t, err)
}

func TestSummaryCombinesTodayAndTrailingYear(t *testing.T) {
	store := &fakeMetricsStore{
		total: 9,
		distributions: map[string][]models.ValueCount{
			"opiniao": {{Value: "saude", Count: 100}},
			"bairro":  {{Value: "Centro", Count: 80}},
		},
	}
	svc := newMetricsService(store, time.Date(2026, 6, 15, 12, 0, 0, 0, time.UTC))

	payload, err := svc.Summary(context.Background(), models.BaseFilters{ProjetoID: 10}, models.SummaryWindow{})
	require.NoError(t, err)
	assert.Equal(t, 9, payload.Today)
	require.Len(t, payload.TopTemas, 1)
	require.Len(t, payload.TopBairros, 1)

	// Defaults: today's bounds plus the year ending at today's last instant.
	assert.Equal(t, time.Date(2026, 6, 15, 0, 0, 0, 0, time.UTC), payload.Day.Start)
	assert.Equal(t, 2026, payload.Day.End.Year())
	assert.Equal(t, time.June, payload.Range.End.Month())
	assert.Equal(t, 2025, payload.Range.Start.Year())
	assert.Equal(t, time.June, payload.Range.Start.Month())

	// The today counter queries the single day, not the rolling range.
	require.NotNil(t, store.countQuery)
	require.NotNil(t, store.countQuery.Start)
	assert.Equal(t, payload.Day.Start, *store.countQuery.Start)
}

func TestSummaryHonorsExplicitWindowAndFilters(t *testing.T) {
	store := &fakeMetricsStore{total: 3}
	svc := newMetricsService(store, time.Date(2026, 6, 15, 12, 0, 0, 0, time.UTC))

	day := time.Date(2026, 3, 10, 15, 0, 0, 0, time.UTC)
	rangeStart := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	rangeEnd := time.Date(2026, 3, 10, 23, 59, 59, 0, time.UTC)
	payload, err := svc.Summary(context.Background(), models.BaseFilters{
		ProjetoID: 10,
		Fields:    models.FieldFilterInput{Bairros: []string{"Centro"}},
	}, models.SummaryWindow{Day: &day, RangeStart: &rangeStart, RangeEnd: &rangeEnd})
	require.NoError(t, err)

	assert.Equal(t, time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC), payload.Day.Start)
	assert.Equal(t, rangeStart, payload.Range.Start)
	assert.Equal(t, rangeEnd, payload.Range.End)

	// Field filters ride along on the day count.
	require.NotNil(t, store.countQuery)
	require.Len(t, store.countQuery.Predicates, 1)
	assert.Equal(t, "bairro", store.countQuery.Predicates[0].FieldName)
}

func TestFilterOptionsLabelsUnknownAndBucketsAges(t *testing.T) {
	store := &fakeMetricsStore{
		distributions: map[string][]models.ValueCount{
			"genero": {{Value: "Feminino", Count: 5}, {Value: nil, Count: 2}},
			"ano_nascimento": {
				{Value: "2000", Count: 4},
				{Value: "abc", Count: 2},
			},
		},
	}
	svc := newMetricsService(store, time.Date(2026, 6, 15, 12, 0, 0, 0, time.UTC))

	payload, err := svc.FilterOptions(context.Background(), models.BaseFilters{ProjetoID: 10})
	require.NoError(t, err)

	require.Len(t, payload.Generos, 2)
	assert.Equal(t, "Feminino", payload.Generos[0].Label)
	assert.Equal(t, models.UnknownLabel, payload.Generos[1].Label)

	// Six static ranges plus a trailing not-informed entry for the bad year.
	require.Len(t, payload.FaixasEtarias, 7)
	byLabel := map[string]int{}
	for _, option := range payload.FaixasEtarias {
		assert.Equal(t, option.Label, option.Value)
		byLabel[option.Label] = option.Count
	}
	assert.Equal(t, 4, byLabel["26-35"])
	assert.Equal(t, 2, byLabel[models.UnknownLabel])
}
