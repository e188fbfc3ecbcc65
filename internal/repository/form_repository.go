package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/keek-conecta/escuta-api/internal/models"
)

// FormRepository manages forms, their versions and the per-version field
// definitions.
type FormRepository struct {
	db *sqlx.DB
}

// NewFormRepository constructs a FormRepository.
func NewFormRepository(db *sqlx.DB) *FormRepository {
	return &FormRepository{db: db}
}

// ListByProject returns the project's forms, newest first.
func (r *FormRepository) ListByProject(ctx context.Context, projetoID int64) ([]models.Form, error) {
	var forms []models.Form
	err := r.db.SelectContext(ctx, &forms,
		"SELECT id, projeto_id, name, slug, active, created_at, updated_at FROM forms WHERE projeto_id = $1 ORDER BY created_at DESC",
		projetoID)
	if err != nil {
		return nil, fmt.Errorf("list forms: %w", err)
	}
	return forms, nil
}

// GetByID loads one form.
func (r *FormRepository) GetByID(ctx context.Context, id int64) (*models.Form, error) {
	var form models.Form
	err := r.db.GetContext(ctx, &form,
		"SELECT id, projeto_id, name, slug, active, created_at, updated_at FROM forms WHERE id = $1", id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("get form: %w", err)
	}
	return &form, nil
}

// Create inserts a form.
func (r *FormRepository) Create(ctx context.Context, form *models.Form) error {
	now := time.Now().UTC()
	form.CreatedAt = now
	form.UpdatedAt = now
	err := r.db.QueryRowContext(ctx,
		`INSERT INTO forms (projeto_id, name, slug, active, created_at, updated_at)
         VALUES ($1, $2, $3, $4, $5, $6) RETURNING id`,
		form.ProjetoID, form.Name, form.Slug, form.Active, form.CreatedAt, form.UpdatedAt,
	).Scan(&form.ID)
	if err != nil {
		return fmt.Errorf("insert form: %w", err)
	}
	return nil
}

// Update rewrites a form's mutable columns.
func (r *FormRepository) Update(ctx context.Context, form *models.Form) error {
	form.UpdatedAt = time.Now().UTC()
	result, err := r.db.ExecContext(ctx,
		"UPDATE forms SET name = $1, slug = $2, active = $3, updated_at = $4 WHERE id = $5",
		form.Name, form.Slug, form.Active, form.UpdatedAt, form.ID)
	if err != nil {
		return fmt.Errorf("update form: %w", err)
	}
	affected, _ := result.RowsAffected()
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// CreateVersion inserts a version together with its field definitions in one
// transaction. The version number is the next one for the form.
func (r *FormRepository) CreateVersion(ctx context.Context, version *models.FormVersion, fields []models.FormField) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin create version: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	now := time.Now().UTC()
	version.CreatedAt = now
	version.UpdatedAt = now

	err = tx.QueryRowContext(ctx,
		`INSERT INTO form_versions (form_id, version, schema, published, created_at, updated_at)
         VALUES ($1, COALESCE((SELECT MAX(version) FROM form_versions WHERE form_id = $1), 0) + 1, $2, $3, $4, $5)
         RETURNING id, version`,
		version.FormID, version.Schema, version.Published, version.CreatedAt, version.UpdatedAt,
	).Scan(&version.ID, &version.Version)
	if err != nil {
		return fmt.Errorf("insert form version: %w", err)
	}

	const insertField = `INSERT INTO form_fields (form_version_id, name, label, type, required, min, max, regex, position)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9) RETURNING id`
	for i := range fields {
		f := &fields[i]
		f.FormVersionID = version.ID
		if err = tx.QueryRowContext(ctx, insertField,
			version.ID, f.Name, f.Label, f.Type, f.Required, f.Min, f.Max, f.Regex, f.Position,
		).Scan(&f.ID); err != nil {
			return fmt.Errorf("insert form field %q: %w", f.Name, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit create version: %w", err)
	}
	return nil
}

// GetVersion loads one version.
func (r *FormRepository) GetVersion(ctx context.Context, id int64) (*models.FormVersion, error) {
	var version models.FormVersion
	err := r.db.GetContext(ctx, &version,
		"SELECT id, form_id, version, schema, published, created_at, updated_at FROM form_versions WHERE id = $1", id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("get form version: %w", err)
	}
	return &version, nil
}

// ListVersions returns a form's versions, newest first.
func (r *FormRepository) ListVersions(ctx context.Context, formID int64) ([]models.FormVersion, error) {
	var versions []models.FormVersion
	err := r.db.SelectContext(ctx, &versions,
		"SELECT id, form_id, version, schema, published, created_at, updated_at FROM form_versions WHERE form_id = $1 ORDER BY version DESC",
		formID)
	if err != nil {
		return nil, fmt.Errorf("list form versions: %w", err)
	}
	return versions, nil
}

// PublishVersion marks one version as published.
func (r *FormRepository) PublishVersion(ctx context.Context, id int64) error {
	result, err := r.db.ExecContext(ctx,
		"UPDATE form_versions SET published = TRUE, updated_at = $1 WHERE id = $2",
		time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("publish form version: %w", err)
	}
	affected, _ := result.RowsAffected()
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// ListFields returns a version's field definitions in authored order.
func (r *FormRepository) ListFields(ctx context.Context, versionID int64) ([]models.FormField, error) {
	var fields []models.FormField
	err := r.db.SelectContext(ctx, &fields,
		`SELECT id, form_version_id, name, label, type, required, min, max, regex, position
         FROM form_fields WHERE form_version_id = $1 ORDER BY position ASC, id ASC`,
		versionID)
	if err != nil {
		return nil, fmt.Errorf("list form fields: %w", err)
	}
	return fields, nil
}

// ProjectForVersion resolves the project owning a form version. Used by the
// access middleware and by scope checks on field-only metrics queries.
func (r *FormRepository) ProjectForVersion(ctx context.Context, versionID int64) (int64, error) {
	var projetoID int64
	err := r.db.GetContext(ctx, &projetoID,
		`SELECT f.projeto_id FROM form_versions fv JOIN forms f ON f.id = fv.form_id WHERE fv.id = $1`,
		versionID)
	if err != nil {
		if err == sql.ErrNoRows {
			return 0, err
		}
		return 0, fmt.Errorf("resolve version project: %w", err)
	}
	return projetoID, nil
}
