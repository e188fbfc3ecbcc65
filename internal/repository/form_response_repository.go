package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/keek-conecta/escuta-api/internal/models"
)

// FormResponseRepository manages persistence for responses and their answer
// rows.
type FormResponseRepository struct {
	db *sqlx.DB
}

// NewFormResponseRepository constructs a FormResponseRepository.
func NewFormResponseRepository(db *sqlx.DB) *FormResponseRepository {
	return &FormResponseRepository{db: db}
}

const responseColumns = `id, projeto_id, form_version_id, user_id, status, started_at, completed_at, submitted_at,
    ip, user_agent, source, channel, utm_source, utm_medium, utm_campaign,
    device_type, os, browser, locale, timezone, metadata, created_at, updated_at`

const fieldColumns = `id, response_id, field_id, field_name, value, value_number, value_bool, value_date, value_json`

// Create inserts the response and its answer rows in one transaction.
func (r *FormResponseRepository) Create(ctx context.Context, response *models.FormResponse) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin create response: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	now := time.Now().UTC()
	response.CreatedAt = now
	response.UpdatedAt = now

	const insert = `INSERT INTO form_responses (
        projeto_id, form_version_id, user_id, status, started_at, completed_at, submitted_at,
        ip, user_agent, source, channel, utm_source, utm_medium, utm_campaign,
        device_type, os, browser, locale, timezone, metadata, created_at, updated_at
    ) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22)
    RETURNING id`

	err = tx.QueryRowContext(ctx, insert,
		response.ProjetoID, response.FormVersionID, response.UserID, response.Status,
		response.StartedAt, response.CompletedAt, response.SubmittedAt,
		response.IP, response.UserAgent, response.Source, response.Channel,
		response.UTMSource, response.UTMMedium, response.UTMCampaign,
		response.DeviceType, response.OS, response.Browser, response.Locale,
		response.Timezone, response.Metadata, response.CreatedAt, response.UpdatedAt,
	).Scan(&response.ID)
	if err != nil {
		return fmt.Errorf("insert response: %w", err)
	}

	if err = insertFields(ctx, tx, response.ID, response.Fields); err != nil {
		return err
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit create response: %w", err)
	}
	for i := range response.Fields {
		response.Fields[i].ResponseID = response.ID
	}
	return nil
}

// Update rewrites the response row and replaces its answer rows. Replacement
// is delete-then-insert inside one transaction so readers never observe a
// partial answer set.
func (r *FormResponseRepository) Update(ctx context.Context, response *models.FormResponse) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin update response: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	response.UpdatedAt = time.Now().UTC()

	const update = `UPDATE form_responses SET
        status = $1, started_at = $2, completed_at = $3, submitted_at = $4,
        ip = $5, user_agent = $6, source = $7, channel = $8,
        utm_source = $9, utm_medium = $10, utm_campaign = $11,
        device_type = $12, os = $13, browser = $14, locale = $15, timezone = $16,
        metadata = $17, updated_at = $18
        WHERE id = $19`

	var result sql.Result
	result, err = tx.ExecContext(ctx, update,
		response.Status, response.StartedAt, response.CompletedAt, response.SubmittedAt,
		response.IP, response.UserAgent, response.Source, response.Channel,
		response.UTMSource, response.UTMMedium, response.UTMCampaign,
		response.DeviceType, response.OS, response.Browser, response.Locale,
		response.Timezone, response.Metadata, response.UpdatedAt, response.ID,
	)
	if err != nil {
		return fmt.Errorf("update response: %w", err)
	}
	affected, _ := result.RowsAffected()
	if affected == 0 {
		err = sql.ErrNoRows
		return err
	}

	if _, err = tx.ExecContext(ctx, "DELETE FROM form_response_fields WHERE response_id = $1", response.ID); err != nil {
		return fmt.Errorf("delete response fields: %w", err)
	}
	if err = insertFields(ctx, tx, response.ID, response.Fields); err != nil {
		return err
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit update response: %w", err)
	}
	return nil
}

func insertFields(ctx context.Context, tx *sqlx.Tx, responseID int64, fields []models.FormResponseField) error {
	const insert = `INSERT INTO form_response_fields (response_id, field_id, field_name, value, value_number, value_bool, value_date, value_json)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8) RETURNING id`
	for i := range fields {
		f := &fields[i]
		if err := tx.QueryRowContext(ctx, insert,
			responseID, f.FieldID, f.FieldName,
			f.Value, f.ValueNumber, f.ValueBool, f.ValueDate, f.ValueJSON,
		).Scan(&f.ID); err != nil {
			return fmt.Errorf("insert response field %q: %w", f.FieldName, err)
		}
		f.ResponseID = responseID
	}
	return nil
}

// GetByID loads one response with its answer rows.
func (r *FormResponseRepository) GetByID(ctx context.Context, id int64) (*models.FormResponse, error) {
	var response models.FormResponse
	query := fmt.Sprintf("SELECT %s FROM form_responses WHERE id = $1", responseColumns)
	if err := r.db.GetContext(ctx, &response, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("get response: %w", err)
	}

	fields, err := r.fieldsFor(ctx, []int64{id})
	if err != nil {
		return nil, err
	}
	response.Fields = fields[id]
	return &response, nil
}

// List returns responses matching the query, newest first, with their answer
// rows attached.
func (r *FormResponseRepository) List(ctx context.Context, q models.MetricsQuery, page, pageSize int) ([]models.FormResponse, int, error) {
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 20
	}

	var builder strings.Builder
	var args []interface{}
	builder.WriteString("FROM form_responses r WHERE 1=1")
	appendWhere(&builder, &args, q, "r.created_at")
	base := builder.String()

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) "+base, args...); err != nil {
		return nil, 0, fmt.Errorf("count responses: %w", err)
	}

	// Only the leading id needs qualifying; the EXISTS subqueries alias the
	// answer table, so the remaining columns stay unambiguous.
	selectCols := "r.id," + strings.TrimPrefix(responseColumns, "id,")
	query := fmt.Sprintf("SELECT %s %s ORDER BY r.created_at DESC LIMIT %d OFFSET %d",
		selectCols, base, pageSize, (page-1)*pageSize)

	var responses []models.FormResponse
	if err := r.db.SelectContext(ctx, &responses, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list responses: %w", err)
	}
	if len(responses) == 0 {
		return responses, total, nil
	}

	ids := make([]int64, 0, len(responses))
	for _, resp := range responses {
		ids = append(ids, resp.ID)
	}
	fields, err := r.fieldsFor(ctx, ids)
	if err != nil {
		return nil, 0, err
	}
	for i := range responses {
		responses[i].Fields = fields[responses[i].ID]
	}
	return responses, total, nil
}

func (r *FormResponseRepository) fieldsFor(ctx context.Context, responseIDs []int64) (map[int64][]models.FormResponseField, error) {
	query, args, err := sqlx.In(
		fmt.Sprintf("SELECT %s FROM form_response_fields WHERE response_id IN (?) ORDER BY id ASC", fieldColumns),
		responseIDs)
	if err != nil {
		return nil, fmt.Errorf("build response fields query: %w", err)
	}
	query = r.db.Rebind(query)

	var rows []models.FormResponseField
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("list response fields: %w", err)
	}

	grouped := make(map[int64][]models.FormResponseField, len(responseIDs))
	for _, row := range rows {
		grouped[row.ResponseID] = append(grouped[row.ResponseID], row)
	}
	return grouped, nil
}

// ListOpinions pages one field's answers newest first, each joined with its
// response creation time.
func (r *FormResponseRepository) ListOpinions(ctx context.Context, q models.OpinionQuery, page, pageSize int) ([]models.OpinionRow, int, error) {
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 20
	}

	var builder strings.Builder
	var args []interface{}
	builder.WriteString(`FROM form_response_fields ff
        JOIN form_responses r ON r.id = ff.response_id
        WHERE r.projeto_id = `)
	args = append(args, q.ProjetoID)
	fmt.Fprintf(&builder, "$%d AND ff.field_name = ", len(args))
	args = append(args, q.FieldName)
	fmt.Fprintf(&builder, "$%d", len(args))
	if q.Start != nil {
		args = append(args, *q.Start)
		fmt.Fprintf(&builder, " AND r.created_at >= $%d", len(args))
	}
	if q.End != nil {
		args = append(args, *q.End)
		fmt.Fprintf(&builder, " AND r.created_at <= $%d", len(args))
	}
	base := builder.String()

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) "+base, args...); err != nil {
		return nil, 0, fmt.Errorf("count opinions: %w", err)
	}

	query := fmt.Sprintf(`SELECT ff.response_id, ff.value, ff.value_number, ff.value_bool, ff.value_date, ff.value_json, r.created_at
        %s ORDER BY r.created_at DESC, ff.response_id DESC LIMIT %d OFFSET %d`,
		base, pageSize, (page-1)*pageSize)

	var rows []models.OpinionRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list opinions: %w", err)
	}
	return rows, total, nil
}

// FindFieldValue returns the newest answer row matching the lookup, or nil
// when no stored answer carries the value in any typed slot.
func (r *FormResponseRepository) FindFieldValue(ctx context.Context, lookup models.FieldValueLookup) (*models.FieldValueMatch, error) {
	var builder strings.Builder
	var args []interface{}
	builder.WriteString(`SELECT ff.response_id, r.created_at FROM form_response_fields ff
        JOIN form_responses r ON r.id = ff.response_id
        WHERE r.projeto_id = `)
	args = append(args, lookup.ProjetoID)
	fmt.Fprintf(&builder, "$%d AND ff.field_name = ", len(args))
	args = append(args, lookup.FieldName)
	fmt.Fprintf(&builder, "$%d", len(args))
	if lookup.FormVersionID != 0 {
		args = append(args, lookup.FormVersionID)
		fmt.Fprintf(&builder, " AND r.form_version_id = $%d", len(args))
	}

	args = append(args, lookup.Value)
	fmt.Fprintf(&builder, " AND (ff.value = $%d", len(args))
	if lookup.ValueNumber != nil {
		args = append(args, *lookup.ValueNumber)
		fmt.Fprintf(&builder, " OR ff.value_number = $%d", len(args))
	}
	if lookup.ValueBool != nil {
		args = append(args, *lookup.ValueBool)
		fmt.Fprintf(&builder, " OR ff.value_bool = $%d", len(args))
	}
	if lookup.ValueDate != nil {
		args = append(args, *lookup.ValueDate)
		fmt.Fprintf(&builder, " OR ff.value_date = $%d", len(args))
	}
	builder.WriteString(") ORDER BY ff.response_id DESC LIMIT 1")

	var match models.FieldValueMatch
	if err := r.db.GetContext(ctx, &match, builder.String(), args...); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("find field value: %w", err)
	}
	return &match, nil
}

// Delete removes the response. Answer rows cascade at the database level.
func (r *FormResponseRepository) Delete(ctx context.Context, id int64) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM form_responses WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("delete response: %w", err)
	}
	affected, _ := result.RowsAffected()
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
