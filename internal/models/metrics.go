package models

import "time"

// MetricsInterval selects the bucket width of a time series.
type MetricsInterval string

const (
	IntervalDay   MetricsInterval = "day"
	IntervalWeek  MetricsInterval = "week"
	IntervalMonth MetricsInterval = "month"
)

// Valid reports whether the interval is supported.
func (i MetricsInterval) Valid() bool {
	return i == IntervalDay || i == IntervalWeek || i == IntervalMonth
}

// MetricsDateField selects which response timestamp drives date scoping.
type MetricsDateField string

const (
	DateFieldCreated   MetricsDateField = "createdAt"
	DateFieldSubmitted MetricsDateField = "submittedAt"
	DateFieldCompleted MetricsDateField = "completedAt"
	DateFieldStarted   MetricsDateField = "startedAt"
)

// Valid reports whether the date field is supported.
func (f MetricsDateField) Valid() bool {
	switch f {
	case DateFieldCreated, DateFieldSubmitted, DateFieldCompleted, DateFieldStarted:
		return true
	}
	return false
}

// MetricsValueType selects which typed slot a distribution groups by.
type MetricsValueType string

const (
	ValueTypeString  MetricsValueType = "string"
	ValueTypeNumber  MetricsValueType = "number"
	ValueTypeBoolean MetricsValueType = "boolean"
	ValueTypeDate    MetricsValueType = "date"
)

// Valid reports whether the value type is supported.
func (t MetricsValueType) Valid() bool {
	switch t {
	case ValueTypeString, ValueTypeNumber, ValueTypeBoolean, ValueTypeDate:
		return true
	}
	return false
}

// FieldFilterInput carries the raw, possibly-aliased dimension filters as they
// arrive from the query string. Aliases are merged by the filter normalizer.
type FieldFilterInput struct {
	Temas        []string
	Tema         []string
	TipoOpiniao  []string
	Tipos        []string
	Tipo         []string
	Genero       []string
	Generos      []string
	Bairro       []string
	Bairros      []string
	FaixaEtaria  []string
	FaixasEtarias []string
	TextoOpiniao []string
	Texto        []string
	Campanhas    []string
	Campanha     []string
}

// FieldFilters holds one canonical, deduplicated filter set per dimension.
// A nil slice means the dimension was not requested.
type FieldFilters struct {
	Temas        []string
	Tipos        []string
	Generos      []string
	Bairros      []string
	FaixaEtaria  []string
	TextoOpiniao []string
	Campanhas    []string
}

// Empty reports whether no dimension carries values.
func (f FieldFilters) Empty() bool {
	return len(f.Temas) == 0 && len(f.Tipos) == 0 && len(f.Generos) == 0 &&
		len(f.Bairros) == 0 && len(f.FaixaEtaria) == 0 &&
		len(f.TextoOpiniao) == 0 && len(f.Campanhas) == 0
}

// BaseFilters is the shared scoping accepted by every aggregation.
type BaseFilters struct {
	ProjetoID     int64
	FormVersionID int64
	Status        FormResponseStatus
	Start         *time.Time
	End           *time.Time
	Fields        FieldFilterInput
}

// FieldPredicate is one resolved per-answer filter: responses must own a field
// row named FieldName whose display value matches. Known values OR-combine
// with the unknown sentinel; Substring switches to case-insensitive contains.
type FieldPredicate struct {
	FieldName      string
	Values         []string
	IncludeUnknown bool
	Substring      bool
}

// MetricsQuery is the fully resolved scoping handed to the metrics store.
type MetricsQuery struct {
	ProjetoID     int64
	FormVersionID int64
	Status        FormResponseStatus
	Start         *time.Time
	End           *time.Time
	Predicates    []FieldPredicate
}

// FieldSelector addresses the field a distribution aggregates over.
type FieldSelector struct {
	FieldID   int64
	FieldName string
}

// ReportOptions tunes the composite report: the date dimension driving both
// series, distinct month and day windows, and per-section limits. Zero values
// fall back to service defaults.
type ReportOptions struct {
	DateField             MetricsDateField
	MonthStart            *time.Time
	MonthEnd              *time.Time
	DayStart              *time.Time
	DayEnd                *time.Time
	TopThemesLimit        int
	TopNeighborhoodsLimit int
	DistributionLimit     int
}

// SummaryWindow scopes the landing-page summary: the counted day and the
// rolling range behind the top distributions. Nil fields default to today and
// the trailing year.
type SummaryWindow struct {
	Day        *time.Time
	RangeStart *time.Time
	RangeEnd   *time.Time
}

// SeriesPoint is one bucket of a time series.
type SeriesPoint struct {
	Bucket time.Time `json:"bucket"`
	Count  int       `json:"count"`
}

// ValueCount is one bucket of a value distribution. Value may be a string,
// float64, bool, time.Time or nil depending on the grouped slot.
type ValueCount struct {
	Value interface{} `json:"value"`
	Count int         `json:"count"`
}

// NumberStats summarises the numeric slot of one field.
type NumberStats struct {
	Count int      `json:"count"`
	Min   *float64 `json:"min"`
	Max   *float64 `json:"max"`
	Avg   *float64 `json:"avg"`
}

// StatusCount is one step of the status funnel.
type StatusCount struct {
	Status FormResponseStatus `json:"status"`
	Count  int                `json:"count"`
}

// AgeBucket is a named inclusive age range.
type AgeBucket struct {
	Label string
	Min   int
	Max   int
}

// AgeBuckets are the fixed dashboard age ranges, youngest first. Ages above
// MaxPlausibleAge are treated as unknown.
var AgeBuckets = []AgeBucket{
	{Label: "Ate 18", Min: 0, Max: 18},
	{Label: "19-25", Min: 19, Max: 25},
	{Label: "26-35", Min: 26, Max: 35},
	{Label: "36-45", Min: 36, Max: 45},
	{Label: "46-60", Min: 46, Max: 60},
	{Label: "60+", Min: 61, Max: MaxPlausibleAge},
}

// MaxPlausibleAge caps open-ended age ranges.
const MaxPlausibleAge = 120

// UnknownLabel is the sentinel meaning "value is null or empty" rather than a
// literal match.
const UnknownLabel = "Não informado"
