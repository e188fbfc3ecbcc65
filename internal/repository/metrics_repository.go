package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/keek-conecta/escuta-api/internal/models"
)

// MetricsRepository runs the raw aggregation queries behind the dashboard.
// Every query filters form_responses through the shared responseWhere clause,
// so dimension filters behave identically across series, distributions and
// the status funnel.
type MetricsRepository struct {
	db *sqlx.DB
}

// NewMetricsRepository instantiates the repository.
func NewMetricsRepository(db *sqlx.DB) *MetricsRepository {
	return &MetricsRepository{db: db}
}

// dateColumns maps the selectable date dimension to its physical column.
var dateColumns = map[models.MetricsDateField]string{
	models.DateFieldCreated:   "r.created_at",
	models.DateFieldStarted:   "r.started_at",
	models.DateFieldSubmitted: "r.submitted_at",
	models.DateFieldCompleted: "r.completed_at",
}

// valueColumns maps a declared value type to the typed slot it aggregates on.
var valueColumns = map[models.MetricsValueType]string{
	models.ValueTypeString:  "f.value",
	models.ValueTypeNumber:  "f.value_number",
	models.ValueTypeBoolean: "f.value_bool",
	models.ValueTypeDate:    "date_trunc('day', f.value_date)",
}

// appendWhere writes the shared response filter clauses. Date range bounds
// apply to dateColumn so the bucketing column and the range column always
// agree.
func appendWhere(builder *strings.Builder, args *[]interface{}, q models.MetricsQuery, dateColumn string) {
	if q.ProjetoID > 0 {
		*args = append(*args, q.ProjetoID)
		builder.WriteString(fmt.Sprintf(" AND r.projeto_id = $%d", len(*args)))
	}
	if q.FormVersionID > 0 {
		*args = append(*args, q.FormVersionID)
		builder.WriteString(fmt.Sprintf(" AND r.form_version_id = $%d", len(*args)))
	}
	if q.Status != "" {
		*args = append(*args, q.Status)
		builder.WriteString(fmt.Sprintf(" AND r.status = $%d", len(*args)))
	}
	if q.Start != nil {
		*args = append(*args, q.Start.UTC())
		builder.WriteString(fmt.Sprintf(" AND %s >= $%d", dateColumn, len(*args)))
	}
	if q.End != nil {
		*args = append(*args, q.End.UTC())
		builder.WriteString(fmt.Sprintf(" AND %s <= $%d", dateColumn, len(*args)))
	}
	for _, pred := range q.Predicates {
		appendPredicate(builder, args, pred)
	}
}

// appendPredicate writes one EXISTS subquery that constrains the response to
// carry a matching answer for the dimension. IncludeUnknown additionally
// accepts missing and empty values for the field.
func appendPredicate(builder *strings.Builder, args *[]interface{}, pred models.FieldPredicate) {
	*args = append(*args, pred.FieldName)
	fieldArg := len(*args)

	var clauses []string
	if len(pred.Values) > 0 {
		if pred.Substring {
			for _, v := range pred.Values {
				*args = append(*args, "%"+v+"%")
				clauses = append(clauses, fmt.Sprintf("ff.value ILIKE $%d", len(*args)))
			}
		} else {
			placeholders := make([]string, 0, len(pred.Values))
			for _, v := range pred.Values {
				*args = append(*args, v)
				placeholders = append(placeholders, fmt.Sprintf("$%d", len(*args)))
			}
			clauses = append(clauses, fmt.Sprintf("ff.value IN (%s)", strings.Join(placeholders, ", ")))
		}
	}
	if pred.IncludeUnknown {
		clauses = append(clauses, "ff.value IS NULL OR ff.value = ''")
	}
	if len(clauses) == 0 {
		clauses = append(clauses, "ff.value IS NOT NULL")
	}

	builder.WriteString(fmt.Sprintf(
		" AND EXISTS (SELECT 1 FROM form_response_fields ff WHERE ff.response_id = r.id AND ff.field_name = $%d AND (%s))",
		fieldArg, strings.Join(clauses, " OR ")))
}

// TimeSeries counts responses per interval bucket over the chosen date
// dimension. Buckets with no responses are absent from the result; callers
// zero-fill where a dense series is needed.
func (r *MetricsRepository) TimeSeries(ctx context.Context, q models.MetricsQuery, interval models.MetricsInterval, dateField models.MetricsDateField) ([]models.SeriesPoint, error) {
	column, ok := dateColumns[dateField]
	if !ok {
		return nil, fmt.Errorf("unknown date field %q", dateField)
	}
	if !interval.Valid() {
		return nil, fmt.Errorf("unknown interval %q", interval)
	}

	var builder strings.Builder
	var args []interface{}
	args = append(args, string(interval))
	builder.WriteString(fmt.Sprintf(
		"SELECT date_trunc($1, %s) AS bucket, COUNT(*) AS count FROM form_responses r WHERE %s IS NOT NULL",
		column, column))
	appendWhere(&builder, &args, q, column)
	builder.WriteString(" GROUP BY bucket ORDER BY bucket ASC")

	rows, err := r.db.QueryContext(ctx, builder.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("query time series: %w", err)
	}
	defer rows.Close()

	var points []models.SeriesPoint
	for rows.Next() {
		var bucket time.Time
		var count sql.NullString
		if err := rows.Scan(&bucket, &count); err != nil {
			return nil, fmt.Errorf("scan time series row: %w", err)
		}
		n, err := parseCount(count)
		if err != nil {
			return nil, err
		}
		points = append(points, models.SeriesPoint{Bucket: bucket.UTC(), Count: n})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate time series rows: %w", err)
	}
	return points, nil
}

// Distribution counts responses grouped by a field's value. The value column
// follows the declared value type so numeric and boolean fields group on
// their typed slot instead of the display string.
func (r *MetricsRepository) Distribution(ctx context.Context, q models.MetricsQuery, fieldName string, valueType models.MetricsValueType, limit int) ([]models.ValueCount, error) {
	column, ok := valueColumns[valueType]
	if !ok {
		return nil, fmt.Errorf("unknown value type %q", valueType)
	}

	var builder strings.Builder
	var args []interface{}
	args = append(args, fieldName)
	builder.WriteString(fmt.Sprintf(
		"SELECT %s AS value, COUNT(*) AS count FROM form_response_fields f JOIN form_responses r ON r.id = f.response_id WHERE f.field_name = $1 AND %s IS NOT NULL",
		column, column))
	appendWhere(&builder, &args, q, "r.created_at")
	builder.WriteString(" GROUP BY value ORDER BY count DESC, value ASC")
	if limit > 0 {
		args = append(args, limit)
		builder.WriteString(fmt.Sprintf(" LIMIT $%d", len(args)))
	}

	rows, err := r.db.QueryContext(ctx, builder.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("query distribution: %w", err)
	}
	defer rows.Close()

	var result []models.ValueCount
	for rows.Next() {
		var value interface{}
		var count sql.NullString
		if err := rows.Scan(&value, &count); err != nil {
			return nil, fmt.Errorf("scan distribution row: %w", err)
		}
		n, err := parseCount(count)
		if err != nil {
			return nil, err
		}
		result = append(result, models.ValueCount{Value: normalizeScanned(value), Count: n})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate distribution rows: %w", err)
	}
	return result, nil
}

// NumberStats aggregates count, min, max and avg over a numeric field.
// Aggregates are scanned as text because drivers may deliver NUMERIC results
// as strings.
func (r *MetricsRepository) NumberStats(ctx context.Context, q models.MetricsQuery, fieldName string) (models.NumberStats, error) {
	var builder strings.Builder
	var args []interface{}
	args = append(args, fieldName)
	builder.WriteString(
		"SELECT COUNT(f.value_number) AS count, MIN(f.value_number) AS min, MAX(f.value_number) AS max, AVG(f.value_number) AS avg FROM form_response_fields f JOIN form_responses r ON r.id = f.response_id WHERE f.field_name = $1 AND f.value_number IS NOT NULL")
	appendWhere(&builder, &args, q, "r.created_at")

	var row struct {
		Count sql.NullString `db:"count"`
		Min   sql.NullString `db:"min"`
		Max   sql.NullString `db:"max"`
		Avg   sql.NullString `db:"avg"`
	}
	if err := r.db.GetContext(ctx, &row, builder.String(), args...); err != nil {
		return models.NumberStats{}, fmt.Errorf("query number stats: %w", err)
	}

	count, err := parseCount(row.Count)
	if err != nil {
		return models.NumberStats{}, err
	}
	stats := models.NumberStats{Count: count}
	if stats.Min, err = parseNullFloat(row.Min); err != nil {
		return models.NumberStats{}, err
	}
	if stats.Max, err = parseNullFloat(row.Max); err != nil {
		return models.NumberStats{}, err
	}
	if stats.Avg, err = parseNullFloat(row.Avg); err != nil {
		return models.NumberStats{}, err
	}
	return stats, nil
}

// StatusFunnel counts responses per lifecycle status under the filters.
func (r *MetricsRepository) StatusFunnel(ctx context.Context, q models.MetricsQuery) ([]models.StatusCount, error) {
	var builder strings.Builder
	var args []interface{}
	builder.WriteString("SELECT r.status AS status, COUNT(*) AS count FROM form_responses r WHERE 1=1")
	appendWhere(&builder, &args, q, "r.created_at")
	builder.WriteString(" GROUP BY r.status ORDER BY r.status ASC")

	rows, err := r.db.QueryContext(ctx, builder.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("query status funnel: %w", err)
	}
	defer rows.Close()

	var result []models.StatusCount
	for rows.Next() {
		var status string
		var count sql.NullString
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("scan status funnel row: %w", err)
		}
		n, err := parseCount(count)
		if err != nil {
			return nil, err
		}
		result = append(result, models.StatusCount{Status: models.FormResponseStatus(status), Count: n})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate status funnel rows: %w", err)
	}
	return result, nil
}

// CountResponses counts responses matching the filters.
func (r *MetricsRepository) CountResponses(ctx context.Context, q models.MetricsQuery) (int, error) {
	var builder strings.Builder
	var args []interface{}
	builder.WriteString("SELECT COUNT(*) FROM form_responses r WHERE 1=1")
	appendWhere(&builder, &args, q, "r.created_at")

	var count sql.NullString
	if err := r.db.GetContext(ctx, &count, builder.String(), args...); err != nil {
		return 0, fmt.Errorf("query response count: %w", err)
	}
	return parseCount(count)
}

// FieldByID loads one authored field definition.
func (r *MetricsRepository) FieldByID(ctx context.Context, id int64) (*models.FormField, error) {
	const query = `SELECT id, form_version_id, name, label, type, required, min, max, regex, position
        FROM form_fields WHERE id = $1`

	var field models.FormField
	if err := r.db.GetContext(ctx, &field, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("query field by id: %w", err)
	}
	return &field, nil
}

func parseCount(raw sql.NullString) (int, error) {
	if !raw.Valid || raw.String == "" {
		return 0, nil
	}
	f, err := strconv.ParseFloat(raw.String, 64)
	if err != nil {
		return 0, fmt.Errorf("parse count %q: %w", raw.String, err)
	}
	return int(f), nil
}

func parseNullFloat(raw sql.NullString) (*float64, error) {
	if !raw.Valid || raw.String == "" {
		return nil, nil
	}
	f, err := strconv.ParseFloat(raw.String, 64)
	if err != nil {
		return nil, fmt.Errorf("parse numeric aggregate %q: %w", raw.String, err)
	}
	return &f, nil
}

// normalizeScanned maps driver scan types onto the JSON-facing value types.
func normalizeScanned(value interface{}) interface{} {
	switch v := value.(type) {
	case []byte:
		s := string(v)
		if f, err := strconv.ParseFloat(s, 64); err == nil && looksNumeric(s) {
			return f
		}
		return s
	case time.Time:
		return v.UTC()
	default:
		return v
	}
}

func looksNumeric(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if (r < '0' || r > '9') && r != '.' && r != '-' && r != '+' && r != 'e' && r != 'E' {
			return false
		}
	}
	return true
}
