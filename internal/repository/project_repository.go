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

// ProjectRepository manages persistence for projects and project access
// grants.
type ProjectRepository struct {
	db *sqlx.DB
}

// NewProjectRepository constructs a ProjectRepository.
func NewProjectRepository(db *sqlx.DB) *ProjectRepository {
	return &ProjectRepository{db: db}
}

// List returns projects, optionally restricted to active ones.
func (r *ProjectRepository) List(ctx context.Context, onlyActive bool, page, pageSize int) ([]models.Projeto, int, error) {
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 20
	}

	base := "FROM projetos WHERE 1=1"
	var args []interface{}
	if onlyActive {
		base += " AND active = TRUE"
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) "+base, args...); err != nil {
		return nil, 0, fmt.Errorf("count projects: %w", err)
	}

	query := fmt.Sprintf("SELECT id, name, description, active, created_at, updated_at %s ORDER BY name ASC LIMIT %d OFFSET %d",
		base, pageSize, (page-1)*pageSize)
	var projects []models.Projeto
	if err := r.db.SelectContext(ctx, &projects, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list projects: %w", err)
	}
	return projects, total, nil
}

// GetByID loads one project.
func (r *ProjectRepository) GetByID(ctx context.Context, id int64) (*models.Projeto, error) {
	var project models.Projeto
	err := r.db.GetContext(ctx, &project,
		"SELECT id, name, description, active, created_at, updated_at FROM projetos WHERE id = $1", id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("get project: %w", err)
	}
	return &project, nil
}

// Create inserts a project.
func (r *ProjectRepository) Create(ctx context.Context, project *models.Projeto) error {
	now := time.Now().UTC()
	project.CreatedAt = now
	project.UpdatedAt = now
	err := r.db.QueryRowContext(ctx,
		`INSERT INTO projetos (name, description, active, created_at, updated_at)
         VALUES ($1, $2, $3, $4, $5) RETURNING id`,
		project.Name, project.Description, project.Active, project.CreatedAt, project.UpdatedAt,
	).Scan(&project.ID)
	if err != nil {
		return fmt.Errorf("insert project: %w", err)
	}
	return nil
}

// Update rewrites a project's mutable columns.
func (r *ProjectRepository) Update(ctx context.Context, project *models.Projeto) error {
	project.UpdatedAt = time.Now().UTC()
	result, err := r.db.ExecContext(ctx,
		"UPDATE projetos SET name = $1, description = $2, active = $3, updated_at = $4 WHERE id = $5",
		project.Name, project.Description, project.Active, project.UpdatedAt, project.ID)
	if err != nil {
		return fmt.Errorf("update project: %w", err)
	}
	affected, _ := result.RowsAffected()
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// AccessFor returns the user's access grants keyed by project id.
func (r *ProjectRepository) AccessFor(ctx context.Context, userID int64) (map[int64]models.AccessLevel, error) {
	var grants []models.ProjectAccess
	err := r.db.SelectContext(ctx, &grants,
		"SELECT user_id, projeto_id, level FROM project_access WHERE user_id = $1", userID)
	if err != nil {
		return nil, fmt.Errorf("list project access: %w", err)
	}
	levels := make(map[int64]models.AccessLevel, len(grants))
	for _, grant := range grants {
		levels[grant.ProjetoID] = grant.Level
	}
	return levels, nil
}

// Grant upserts one access grant.
func (r *ProjectRepository) Grant(ctx context.Context, grant models.ProjectAccess) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO project_access (user_id, projeto_id, level) VALUES ($1, $2, $3)
         ON CONFLICT (user_id, projeto_id) DO UPDATE SET level = EXCLUDED.level`,
		grant.UserID, grant.ProjetoID, grant.Level)
	if err != nil {
		return fmt.Errorf("grant project access: %w", err)
	}
	return nil
}

// Revoke removes one access grant.
func (r *ProjectRepository) Revoke(ctx context.Context, userID, projetoID int64) error {
	result, err := r.db.ExecContext(ctx,
		"DELETE FROM project_access WHERE user_id = $1 AND projeto_id = $2", userID, projetoID)
	if err != nil {
		return fmt.Errorf("revoke project access: %w", err)
	}
	affected, _ := result.RowsAffected()
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// Search finds projects by name substring. Used by the admin console.
func (r *ProjectRepository) Search(ctx context.Context, term string, limit int) ([]models.Projeto, error) {
	if limit <= 0 || limit > 50 {
		limit = 20
	}
	query := fmt.Sprintf(
		"SELECT id, name, description, active, created_at, updated_at FROM projetos WHERE LOWER(name) LIKE $1 ORDER BY name ASC LIMIT %d", limit)
	var projects []models.Projeto
	if err := r.db.SelectContext(ctx, &projects, query, "%"+strings.ToLower(term)+"%"); err != nil {
		return nil, fmt.Errorf("search projects: %w", err)
	}
	return projects, nil
}
