package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/keek-conecta/escuta-api/internal/models"
	appErrors "github.com/keek-conecta/escuta-api/pkg/errors"
)

// MetricsStore abstracts the aggregation queries the dashboard runs.
type MetricsStore interface {
	TimeSeries(ctx context.Context, q models.MetricsQuery, interval models.MetricsInterval, dateField models.MetricsDateField) ([]models.SeriesPoint, error)
	Distribution(ctx context.Context, q models.MetricsQuery, fieldName string, valueType models.MetricsValueType, limit int) ([]models.ValueCount, error)
	NumberStats(ctx context.Context, q models.MetricsQuery, fieldName string) (models.NumberStats, error)
	StatusFunnel(ctx context.Context, q models.MetricsQuery) ([]models.StatusCount, error)
	CountResponses(ctx context.Context, q models.MetricsQuery) (int, error)
	FieldByID(ctx context.Context, id int64) (*models.FormField, error)
}

// birthYearDistributionLimit bounds the raw birth-year histogram feeding the
// age buckets. A century of plausible years fits comfortably.
const birthYearDistributionLimit = 200

// ResponseMetricsServiceConfig tunes dashboard aggregation behaviour.
type ResponseMetricsServiceConfig struct {
	CacheTTL              time.Duration
	DefaultLimit          int
	MaxLimit              int
	TopThemesLimit        int
	TopNeighborhoodsLimit int
	DistributionLimit     int
}

// ResponseMetricsService computes the dashboard aggregations: time series,
// value distributions, numeric stats, the status funnel and the consolidated
// report and summary payloads.
type ResponseMetricsService struct {
	store     MetricsStore
	cache     *CacheService
	telemetry *TelemetryService
	logger    *zap.Logger
	now       func() time.Time
	cfg       ResponseMetricsServiceConfig
}

// ResponseMetricsServiceParams groups constructor dependencies.
type ResponseMetricsServiceParams struct {
	Store     MetricsStore
	Cache     *CacheService
	Telemetry *TelemetryService
	Logger    *zap.Logger
	Now       func() time.Time
	Config    ResponseMetricsServiceConfig
}

// NewResponseMetricsService constructs a ResponseMetricsService with sane defaults.
func NewResponseMetricsService(params ResponseMetricsServiceParams) *ResponseMetricsService {
	cfg := params.Config
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 5 * time.Minute
	}
	if cfg.DefaultLimit <= 0 {
		cfg.DefaultLimit = 50
	}
	if cfg.MaxLimit <= 0 {
		cfg.MaxLimit = 200
	}
	if cfg.TopThemesLimit <= 0 {
		cfg.TopThemesLimit = 5
	}
	if cfg.TopNeighborhoodsLimit <= 0 {
		cfg.TopNeighborhoodsLimit = 5
	}
	if cfg.DistributionLimit <= 0 {
		cfg.DistributionLimit = 20
	}
	logger := params.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &ResponseMetricsService{
		store:     params.Store,
		cache:     params.Cache,
		telemetry: params.Telemetry,
		logger:    logger,
		now:       now,
		cfg:       cfg,
	}
}

// resolveQuery turns the raw base filters into a store query. The reference
// date for age expansion is the filter end when present, otherwise now.
func (s *ResponseMetricsService) resolveQuery(base models.BaseFilters) models.MetricsQuery {
	reference := s.now().UTC()
	if base.End != nil {
		reference = base.End.UTC()
	}
	return s.resolveQueryAt(base, reference)
}

// resolveQueryAt builds the store query expanding age labels against an
// explicit reference date.
func (s *ResponseMetricsService) resolveQueryAt(base models.BaseFilters, reference time.Time) models.MetricsQuery {
	filters := normalizeFieldFilters(base.Fields)
	return models.MetricsQuery{
		ProjetoID:     base.ProjetoID,
		FormVersionID: base.FormVersionID,
		Status:        base.Status,
		Start:         base.Start,
		End:           base.End,
		Predicates:    buildPredicates(filters, reference),
	}
}

// TimeSeries counts responses per bucket over the selected date dimension.
func (s *ResponseMetricsService) TimeSeries(ctx context.Context, base models.BaseFilters, interval models.MetricsInterval, dateField models.MetricsDateField) (*models.TimeSeriesResult, error) {
	if interval == "" {
		interval = models.IntervalDay
	}
	if dateField == "" {
		dateField = models.DateFieldCreated
	}
	if !interval.Valid() {
		return nil, appErrors.Validation("unsupported interval", []appErrors.FieldError{{Field: "interval", Message: "must be day, week or month"}})
	}
	if !dateField.Valid() {
		return nil, appErrors.Validation("unsupported date field", []appErrors.FieldError{{Field: "dateField", Message: "unknown date field"}})
	}

	q := s.resolveQuery(base)
	started := s.now()
	points, err := s.store.TimeSeries(ctx, q, interval, dateField)
	s.telemetry.ObserveQuery("metrics_time_series", time.Since(started))
	if err != nil {
		return nil, err
	}
	return &models.TimeSeriesResult{Interval: interval, DateField: dateField, Points: points}, nil
}

// Distribution counts responses grouped by one field's values. A field id
// pins both the name and the form version; a bare field name needs at least a
// project scope, and aggregates across that project's form versions.
func (s *ResponseMetricsService) Distribution(ctx context.Context, base models.BaseFilters, selector models.FieldSelector, valueType models.MetricsValueType, limit int) (*models.DistributionResult, error) {
	fieldName, base, err := s.resolveSelector(ctx, base, selector)
	if err != nil {
		return nil, err
	}
	if valueType == "" {
		valueType = models.ValueTypeString
	}
	if !valueType.Valid() {
		return nil, appErrors.Validation("unsupported value type", []appErrors.FieldError{{Field: "valueType", Message: "unknown value type"}})
	}
	if limit <= 0 {
		limit = s.cfg.DefaultLimit
	}
	if limit > s.cfg.MaxLimit {
		limit = s.cfg.MaxLimit
	}

	q := s.resolveQuery(base)
	started := s.now()
	items, err := s.store.Distribution(ctx, q, fieldName, valueType, limit)
	s.telemetry.ObserveQuery("metrics_distribution", time.Since(started))
	if err != nil {
		return nil, err
	}
	return &models.DistributionResult{FieldName: fieldName, ValueType: valueType, Items: items}, nil
}

// NumberStats aggregates count, min, max and avg over a numeric field.
func (s *ResponseMetricsService) NumberStats(ctx context.Context, base models.BaseFilters, selector models.FieldSelector) (*models.NumberStats, error) {
	fieldName, base, err := s.resolveSelector(ctx, base, selector)
	if err != nil {
		return nil, err
	}
	q := s.resolveQuery(base)
	started := s.now()
	stats, err := s.store.NumberStats(ctx, q, fieldName)
	s.telemetry.ObserveQuery("metrics_number_stats", time.Since(started))
	if err != nil {
		return nil, err
	}
	return &stats, nil
}

// resolveSelector turns a field selector into a concrete field name. A field
// id also pins the form version; a bare name without any tenant scope is
// rejected before querying.
func (s *ResponseMetricsService) resolveSelector(ctx context.Context, base models.BaseFilters, selector models.FieldSelector) (string, models.BaseFilters, error) {
	fieldName := selector.FieldName
	if selector.FieldID != 0 {
		field, err := s.store.FieldByID(ctx, selector.FieldID)
		if err != nil {
			return "", base, err
		}
		if field == nil {
			return "", base, appErrors.Clone(appErrors.ErrNotFound, "field not found")
		}
		fieldName = field.Name
		if base.FormVersionID == 0 {
			base.FormVersionID = field.FormVersionID
		}
	}
	if fieldName == "" {
		return "", base, appErrors.Validation("field name is required", []appErrors.FieldError{{Field: "fieldName", Message: "required"}})
	}
	if base.FormVersionID == 0 && base.ProjetoID == 0 {
		return "", base, appErrors.ErrAmbiguousFilter
	}
	return fieldName, base, nil
}

// StatusFunnel counts responses per lifecycle status.
func (s *ResponseMetricsService) StatusFunnel(ctx context.Context, base models.BaseFilters) ([]models.StatusCount, error) {
	q := s.resolveQuery(base)
	started := s.now()
	funnel, err := s.store.StatusFunnel(ctx, q)
	s.telemetry.ObserveQuery("metrics_status_funnel", time.Since(started))
	if err != nil {
		return nil, err
	}
	return funnel, nil
}

// Report assembles the consolidated dashboard payload. The aggregations run
// concurrently and fail together. The month and day series may carry their
// own windows independent of the base date range; with no filters at all the
// day series defaults to the current calendar month, clamped to today.
func (s *ResponseMetricsService) Report(ctx context.Context, base models.BaseFilters, opts models.ReportOptions) (*models.ReportPayload, error) {
	dateField := opts.DateField
	if dateField == "" {
		dateField = models.DateFieldCreated
	}
	if !dateField.Valid() {
		return nil, appErrors.Validation("unsupported date field", []appErrors.FieldError{{Field: "dateField", Message: "unknown date field"}})
	}
	topThemes := opts.TopThemesLimit
	if topThemes <= 0 {
		topThemes = s.cfg.TopThemesLimit
	}
	topNeighborhoods := opts.TopNeighborhoodsLimit
	if topNeighborhoods <= 0 {
		topNeighborhoods = s.cfg.TopNeighborhoodsLimit
	}
	distributionLimit := opts.DistributionLimit
	if distributionLimit <= 0 {
		distributionLimit = s.cfg.DistributionLimit
	}

	cacheKey := s.cacheKey("report", base.ProjetoID, base, opts)
	var cached models.ReportPayload
	if hit, _ := s.cache.Get(ctx, cacheKey, &cached); hit {
		return &cached, nil
	}

	now := s.now().UTC()
	filters := normalizeFieldFilters(base.Fields)
	hasDateFilters := base.Start != nil || base.End != nil ||
		opts.MonthStart != nil || opts.MonthEnd != nil ||
		opts.DayStart != nil || opts.DayEnd != nil
	hasAnyFilters := !filters.Empty() || hasDateFilters || base.Status != ""

	reference := now
	switch {
	case base.End != nil:
		reference = base.End.UTC()
	case opts.DayEnd != nil:
		reference = opts.DayEnd.UTC()
	case opts.MonthEnd != nil:
		reference = opts.MonthEnd.UTC()
	}

	q := models.MetricsQuery{
		ProjetoID:     base.ProjetoID,
		FormVersionID: base.FormVersionID,
		Status:        base.Status,
		Start:         base.Start,
		End:           base.End,
		Predicates:    buildPredicates(filters, reference),
	}

	monthQuery := q
	if opts.MonthStart != nil {
		monthQuery.Start = opts.MonthStart
	}
	if opts.MonthEnd != nil {
		monthQuery.End = opts.MonthEnd
	}

	// The day window is explicit, borrowed from the month window, or the
	// current calendar month when nothing filters the report.
	var dayStart, dayEnd *time.Time
	if opts.DayStart != nil {
		v := startOfDay(opts.DayStart.UTC())
		dayStart = &v
	} else if opts.MonthStart != nil {
		v := startOfDay(opts.MonthStart.UTC())
		dayStart = &v
	}
	if opts.DayEnd != nil {
		v := endOfDay(opts.DayEnd.UTC())
		dayEnd = &v
	} else if opts.MonthEnd != nil {
		v := endOfDay(opts.MonthEnd.UTC())
		dayEnd = &v
	}
	if !hasAnyFilters && (dayStart == nil || dayEnd == nil) {
		monthStart := startOfMonth(now)
		monthEnd := endOfMonth(now)
		dayStart = &monthStart
		dayEnd = &monthEnd
	}
	todayEnd := endOfDay(now)
	if dayEnd != nil && dayEnd.After(todayEnd) {
		dayEnd = &todayEnd
	}

	dayQuery := q
	if dayStart != nil {
		dayQuery.Start = dayStart
	}
	if dayEnd != nil {
		dayQuery.End = dayEnd
	}

	payload := &models.ReportPayload{GeneratedAt: now}
	var tipos, temas, bairros, generos, campanhas, birthYears []models.ValueCount
	var daySeries []models.SeriesPoint

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		payload.StatusFunnel, err = s.store.StatusFunnel(gctx, q)
		return err
	})
	g.Go(func() error {
		var err error
		temas, err = s.store.Distribution(gctx, q, fieldTheme, models.ValueTypeString, topThemes)
		return err
	})
	g.Go(func() error {
		var err error
		tipos, err = s.store.Distribution(gctx, q, fieldOpinionType, models.ValueTypeString, distributionLimit)
		return err
	})
	g.Go(func() error {
		var err error
		bairros, err = s.store.Distribution(gctx, q, fieldNeighborhood, models.ValueTypeString, topNeighborhoods)
		return err
	})
	g.Go(func() error {
		var err error
		generos, err = s.store.Distribution(gctx, q, fieldGender, models.ValueTypeString, distributionLimit)
		return err
	})
	g.Go(func() error {
		var err error
		campanhas, err = s.store.Distribution(gctx, q, fieldCampaign, models.ValueTypeString, distributionLimit)
		return err
	})
	g.Go(func() error {
		var err error
		birthYears, err = s.store.Distribution(gctx, q, fieldBirthYear, models.ValueTypeString, birthYearDistributionLimit)
		return err
	})
	g.Go(func() error {
		var err error
		payload.MonthSeries, err = s.store.TimeSeries(gctx, monthQuery, models.IntervalMonth, dateField)
		return err
	})
	g.Go(func() error {
		var err error
		daySeries, err = s.store.TimeSeries(gctx, dayQuery, models.IntervalDay, dateField)
		return err
	})

	started := s.now()
	if err := g.Wait(); err != nil {
		return nil, err
	}
	s.telemetry.ObserveQuery("metrics_report", time.Since(started))

	payload.Temas = temas
	payload.Tipos = tipos
	payload.Bairros = bairros
	payload.Generos = generos
	payload.Campanhas = campanhas
	payload.AnosNascimento = birthYears
	payload.Cards = buildCards(tipos)
	payload.FaixasEtarias = bucketBirthYears(birthYears, reference.Year())
	payload.DaySeries = daySeries
	if dayStart != nil && dayEnd != nil {
		payload.DaySeries = zeroFillDays(daySeries, *dayStart, *dayEnd)
	}

	if err := s.cache.Set(ctx, cacheKey, payload, s.cfg.CacheTTL); err != nil {
		s.logger.Warn("report cache write failed", zap.Error(err))
	}
	return payload, nil
}

// Summary returns the landing-page numbers: the selected day's responses plus
// the top themes and neighborhoods over the rolling range. The range defaults
// to one year ending at the day's end.
func (s *ResponseMetricsService) Summary(ctx context.Context, base models.BaseFilters, window models.SummaryWindow) (*models.SummaryPayload, error) {
	cacheKey := s.cacheKey("summary", base.ProjetoID, base, window)
	var cached models.SummaryPayload
	if hit, _ := s.cache.Get(ctx, cacheKey, &cached); hit {
		return &cached, nil
	}

	now := s.now().UTC()
	day := now
	if window.Day != nil {
		day = window.Day.UTC()
	}
	dayStart := startOfDay(day)
	dayEnd := endOfDay(day)

	rangeEnd := dayEnd
	if window.RangeEnd != nil {
		rangeEnd = window.RangeEnd.UTC()
	}
	rangeStart := rangeEnd.AddDate(-1, 0, 0)
	if window.RangeStart != nil {
		rangeStart = window.RangeStart.UTC()
	}

	predicates := buildPredicates(normalizeFieldFilters(base.Fields), rangeEnd)
	dayQuery := models.MetricsQuery{
		ProjetoID:     base.ProjetoID,
		FormVersionID: base.FormVersionID,
		Status:        base.Status,
		Start:         &dayStart,
		End:           &dayEnd,
		Predicates:    predicates,
	}
	rangeQuery := dayQuery
	rangeQuery.Start = &rangeStart
	rangeQuery.End = &rangeEnd

	payload := &models.SummaryPayload{
		Day:         models.DateWindow{Start: dayStart, End: dayEnd},
		Range:       models.DateWindow{Start: rangeStart, End: rangeEnd},
		GeneratedAt: now,
	}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		payload.Today, err = s.store.CountResponses(gctx, dayQuery)
		return err
	})
	g.Go(func() error {
		var err error
		payload.TopTemas, err = s.store.Distribution(gctx, rangeQuery, fieldTheme, models.ValueTypeString, s.cfg.TopThemesLimit)
		return err
	})
	g.Go(func() error {
		var err error
		payload.TopBairros, err = s.store.Distribution(gctx, rangeQuery, fieldNeighborhood, models.ValueTypeString, s.cfg.TopNeighborhoodsLimit)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if err := s.cache.Set(ctx, cacheKey, payload, s.cfg.CacheTTL); err != nil {
		s.logger.Warn("summary cache write failed", zap.Error(err))
	}
	return payload, nil
}

// FilterOptions lists the selectable values per dimension with their counts.
// Age options carry the static range labels with counts derived from the
// birth-year distribution.
func (s *ResponseMetricsService) FilterOptions(ctx context.Context, base models.BaseFilters) (*models.FilterOptionsPayload, error) {
	cacheKey := s.cacheKey("filters", base.ProjetoID, base)
	var cached models.FilterOptionsPayload
	if hit, _ := s.cache.Get(ctx, cacheKey, &cached); hit {
		return &cached, nil
	}

	reference := s.now().UTC()
	if base.End != nil {
		reference = base.End.UTC()
	}
	q := s.resolveQueryAt(base, reference)
	payload := &models.FilterOptionsPayload{GeneratedAt: s.now().UTC()}

	dimensions := []struct {
		field string
		dest  *[]models.FilterOption
	}{
		{fieldTheme, &payload.Temas},
		{fieldOpinionType, &payload.Tipos},
		{fieldGender, &payload.Generos},
		{fieldNeighborhood, &payload.Bairros},
		{fieldCampaign, &payload.Campanhas},
	}

	var birthYears []models.ValueCount
	g, gctx := errgroup.WithContext(ctx)
	for _, dim := range dimensions {
		dim := dim
		g.Go(func() error {
			items, err := s.store.Distribution(gctx, q, dim.field, models.ValueTypeString, s.cfg.MaxLimit)
			if err != nil {
				return err
			}
			*dim.dest = filterOptions(items)
			return nil
		})
	}
	g.Go(func() error {
		var err error
		birthYears, err = s.store.Distribution(gctx, q, fieldBirthYear, models.ValueTypeString, birthYearDistributionLimit)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	for _, bucket := range bucketBirthYears(birthYears, reference.Year()) {
		payload.FaixasEtarias = append(payload.FaixasEtarias, models.FilterOption{
			Label: bucket.Label,
			Value: bucket.Label,
			Count: bucket.Count,
		})
	}

	if err := s.cache.Set(ctx, cacheKey, payload, s.cfg.CacheTTL); err != nil {
		s.logger.Warn("filter options cache write failed", zap.Error(err))
	}
	return payload, nil
}

// cacheKey derives a stable key from the operation and every input shaping
// the result.
func (s *ResponseMetricsService) cacheKey(op string, projetoID int64, parts ...interface{}) string {
	raw, err := json.Marshal(parts)
	if err != nil {
		return fmt.Sprintf("metrics:projeto:%d:%s", projetoID, op)
	}
	sum := sha256.Sum256(raw)
	return fmt.Sprintf("metrics:projeto:%d:%s:%s", projetoID, op, hex.EncodeToString(sum[:8]))
}

// buildCards classifies the opinion-type distribution into the dashboard
// headline counters. The grand total is the sum of all opinion-type counts,
// including unrecognized labels.
func buildCards(tipos []models.ValueCount) models.ReportCards {
	var cards models.ReportCards
	for _, item := range tipos {
		cards.TotalOpinions += item.Count
		label, ok := item.Value.(string)
		if !ok {
			continue
		}
		switch normalizeText(label) {
		case "reclamacao":
			cards.Reclamacoes += item.Count
		case "elogio":
			cards.Elogios += item.Count
		case "sugestao":
			cards.Sugestoes += item.Count
		}
	}
	return cards
}

// bucketBirthYears folds the birth-year distribution into the static age
// ranges. Unparseable years and implausible ages accumulate into a trailing
// "not informed" bucket, appended only when non-empty.
func bucketBirthYears(years []models.ValueCount, referenceYear int) []models.AgeBucketCount {
	buckets := make([]models.AgeBucketCount, len(models.AgeBuckets))
	for i, bucket := range models.AgeBuckets {
		buckets[i] = models.AgeBucketCount{Label: bucket.Label}
	}
	unknown := 0
	for _, item := range years {
		year, ok := yearOf(item.Value)
		if !ok {
			unknown += item.Count
			continue
		}
		age := referenceYear - year
		if age < 0 || age > models.MaxPlausibleAge {
			unknown += item.Count
			continue
		}
		placed := false
		for i, bucket := range models.AgeBuckets {
			if age >= bucket.Min && age <= bucket.Max {
				buckets[i].Count += item.Count
				placed = true
				break
			}
		}
		if !placed {
			unknown += item.Count
		}
	}
	if unknown > 0 {
		buckets = append(buckets, models.AgeBucketCount{Label: models.UnknownLabel, Count: unknown})
	}
	return buckets
}

func yearOf(value interface{}) (int, bool) {
	switch v := value.(type) {
	case string:
		year, err := strconv.Atoi(v)
		if err != nil {
			return 0, false
		}
		return year, true
	case float64:
		return int(v), true
	case int64:
		return int(v), true
	}
	return 0, false
}

// filterOptions turns a distribution into picker options. A nil value becomes
// the "not informed" sentinel.
func filterOptions(items []models.ValueCount) []models.FilterOption {
	options := make([]models.FilterOption, 0, len(items))
	for _, item := range items {
		option := models.FilterOption{Value: item.Value, Count: item.Count}
		switch v := item.Value.(type) {
		case nil:
			option.Label = models.UnknownLabel
			option.Value = models.UnknownLabel
		case string:
			if v == "" {
				option.Label = models.UnknownLabel
				option.Value = models.UnknownLabel
			} else {
				option.Label = v
			}
		default:
			option.Label = fmt.Sprintf("%v", v)
		}
		options = append(options, option)
	}
	return options
}

// zeroFillDays densifies a daily series over the closed window so charts do
// not skip silent days.
func zeroFillDays(points []models.SeriesPoint, start, end time.Time) []models.SeriesPoint {
	counts := make(map[time.Time]int, len(points))
	for _, point := range points {
		counts[startOfDay(point.Bucket.UTC())] = point.Count
	}

	var filled []models.SeriesPoint
	for day := startOfDay(start); !day.After(end); day = day.AddDate(0, 0, 1) {
		filled = append(filled, models.SeriesPoint{Bucket: day, Count: counts[day]})
	}
	return filled
}

func startOfDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func endOfDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 23, 59, 59, int(time.Second-time.Nanosecond), time.UTC)
}

func startOfMonth(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}

func endOfMonth(t time.Time) time.Time {
	return endOfDay(startOfMonth(t).AddDate(0, 1, -1))
}
