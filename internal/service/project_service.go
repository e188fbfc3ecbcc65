package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/keek-conecta/escuta-api/internal/models"
	appErrors "github.com/keek-conecta/escuta-api/pkg/errors"
)

type projectStore interface {
	List(ctx context.Context, onlyActive bool, page, pageSize int) ([]models.Projeto, int, error)
	GetByID(ctx context.Context, id int64) (*models.Projeto, error)
	Create(ctx context.Context, project *models.Projeto) error
	Update(ctx context.Context, project *models.Projeto) error
	Grant(ctx context.Context, grant models.ProjectAccess) error
	Revoke(ctx context.Context, userID, projetoID int64) error
	Search(ctx context.Context, term string, limit int) ([]models.Projeto, error)
}

// ProjectInput carries the editable project attributes.
type ProjectInput struct {
	Name        string  `json:"name" validate:"required"`
	Description *string `json:"description,omitempty"`
	Active      *bool   `json:"active,omitempty"`
}

// ProjectService manages tenant projects and access grants.
type ProjectService struct {
	store  projectStore
	logger *zap.Logger
}

// NewProjectService constructs a ProjectService.
func NewProjectService(store projectStore, logger *zap.Logger) *ProjectService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ProjectService{store: store, logger: logger}
}

// List returns projects with pagination metadata.
func (s *ProjectService) List(ctx context.Context, onlyActive bool, page, pageSize int) ([]models.Projeto, *models.Pagination, error) {
	projects, total, err := s.store.List(ctx, onlyActive, page, pageSize)
	if err != nil {
		return nil, nil, err
	}
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 20
	}
	return projects, &models.Pagination{Page: page, PageSize: pageSize, TotalCount: total}, nil
}

// Get loads one project.
func (s *ProjectService) Get(ctx context.Context, id int64) (*models.Projeto, error) {
	project, err := s.store.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrNotFound
		}
		return nil, err
	}
	return project, nil
}

// Create inserts a project. New projects default to active.
func (s *ProjectService) Create(ctx context.Context, input ProjectInput) (*models.Projeto, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, appErrors.Validation("name is required", []appErrors.FieldError{{Field: "name", Message: "required"}})
	}
	project := &models.Projeto{
		Name:        name,
		Description: input.Description,
		Active:      true,
	}
	if input.Active != nil {
		project.Active = *input.Active
	}
	if err := s.store.Create(ctx, project); err != nil {
		return nil, err
	}
	s.logger.Info("project created", zap.Int64("projeto_id", project.ID), zap.String("name", project.Name))
	return project, nil
}

// Update rewrites a project's editable attributes.
func (s *ProjectService) Update(ctx context.Context, id int64, input ProjectInput) (*models.Projeto, error) {
	project, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if name := strings.TrimSpace(input.Name); name != "" {
		project.Name = name
	}
	if input.Description != nil {
		project.Description = input.Description
	}
	if input.Active != nil {
		project.Active = *input.Active
	}
	if err := s.store.Update(ctx, project); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrNotFound
		}
		return nil, err
	}
	return project, nil
}

// Grant assigns a user an access level on a project.
func (s *ProjectService) Grant(ctx context.Context, grant models.ProjectAccess) error {
	switch grant.Level {
	case models.AccessViewer, models.AccessEditor, models.AccessAdmin:
	default:
		return appErrors.Validation("invalid access level", []appErrors.FieldError{{Field: "level", Message: "must be VIEWER, EDITOR or ADMIN"}})
	}
	return s.store.Grant(ctx, grant)
}

// Revoke removes a user's access to a project.
func (s *ProjectService) Revoke(ctx context.Context, userID, projetoID int64) error {
	if err := s.store.Revoke(ctx, userID, projetoID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.ErrNotFound
		}
		return err
	}
	return nil
}

// Search finds projects by name substring.
func (s *ProjectService) Search(ctx context.Context, term string, limit int) ([]models.Projeto, error) {
	return s.store.Search(ctx, strings.TrimSpace(term), limit)
}
