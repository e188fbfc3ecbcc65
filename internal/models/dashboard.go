package models

import "time"

// TimeSeriesResult is the payload of the time-series endpoint.
type TimeSeriesResult struct {
	Interval  MetricsInterval  `json:"interval"`
	DateField MetricsDateField `json:"date_field"`
	Points    []SeriesPoint    `json:"points"`
}

// DistributionResult is the payload of the distribution endpoint.
type DistributionResult struct {
	FieldName string           `json:"field_name"`
	ValueType MetricsValueType `json:"value_type"`
	Items     []ValueCount     `json:"items"`
}

// ReportCards are the headline counters of the consolidated report.
type ReportCards struct {
	TotalOpinions int `json:"total_opinions"`
	Reclamacoes   int `json:"reclamacoes"`
	Elogios       int `json:"elogios"`
	Sugestoes     int `json:"sugestoes"`
}

// AgeBucketCount is one dashboard age range with its response count.
type AgeBucketCount struct {
	Label string `json:"label"`
	Count int    `json:"count"`
}

// ReportPayload is the consolidated dashboard report assembled from several
// concurrent aggregations.
type ReportPayload struct {
	Cards          ReportCards      `json:"cards"`
	StatusFunnel   []StatusCount    `json:"status_funnel"`
	Temas          []ValueCount     `json:"temas"`
	Tipos          []ValueCount     `json:"tipos"`
	Generos        []ValueCount     `json:"generos"`
	Bairros        []ValueCount     `json:"bairros"`
	Campanhas      []ValueCount     `json:"campanhas"`
	AnosNascimento []ValueCount     `json:"anos_nascimento"`
	FaixasEtarias  []AgeBucketCount `json:"faixas_etarias"`
	MonthSeries    []SeriesPoint    `json:"month_series"`
	DaySeries      []SeriesPoint    `json:"day_series"`
	GeneratedAt    time.Time        `json:"generated_at"`
}

// DateWindow is a resolved closed interval echoed back so the dashboard can
// show which period the numbers cover.
type DateWindow struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// SummaryPayload is the lightweight landing-page summary.
type SummaryPayload struct {
	Day         DateWindow   `json:"day"`
	Range       DateWindow   `json:"range"`
	Today       int          `json:"today"`
	TopTemas    []ValueCount `json:"top_temas"`
	TopBairros  []ValueCount `json:"top_bairros"`
	GeneratedAt time.Time    `json:"generated_at"`
}

// FilterOption is one selectable dashboard filter value with its current
// response count.
type FilterOption struct {
	Label string      `json:"label"`
	Value interface{} `json:"value"`
	Count int         `json:"count"`
}

// FilterOptionsPayload feeds the dashboard filter pickers. Age options carry
// the static range labels with the current response count per bucket.
type FilterOptionsPayload struct {
	Temas         []FilterOption `json:"temas"`
	Tipos         []FilterOption `json:"tipos"`
	Generos       []FilterOption `json:"generos"`
	Bairros       []FilterOption `json:"bairros"`
	Campanhas     []FilterOption `json:"campanhas"`
	FaixasEtarias []FilterOption `json:"faixas_etarias"`
	GeneratedAt   time.Time      `json:"generated_at"`
}
