package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/keek-conecta/escuta-api/internal/models"
	"github.com/keek-conecta/escuta-api/internal/schema"
	appErrors "github.com/keek-conecta/escuta-api/pkg/errors"
)

type formStore interface {
	ListByProject(ctx context.Context, projetoID int64) ([]models.Form, error)
	GetByID(ctx context.Context, id int64) (*models.Form, error)
	Create(ctx context.Context, form *models.Form) error
	Update(ctx context.Context, form *models.Form) error
	CreateVersion(ctx context.Context, version *models.FormVersion, fields []models.FormField) error
	GetVersion(ctx context.Context, id int64) (*models.FormVersion, error)
	ListVersions(ctx context.Context, formID int64) ([]models.FormVersion, error)
	PublishVersion(ctx context.Context, id int64) error
	ListFields(ctx context.Context, versionID int64) ([]models.FormField, error)
}

// FormInput carries editable form attributes.
type FormInput struct {
	ProjetoID int64  `json:"projeto_id" validate:"required"`
	Name      string `json:"name" validate:"required"`
	Slug      string `json:"slug,omitempty"`
	Active    *bool  `json:"active,omitempty"`
}

// VersionInput declares a new schema version of a form.
type VersionInput struct {
	FormID  int64               `json:"form_id" validate:"required"`
	Fields  []schema.Definition `json:"fields" validate:"required,min=1"`
	Publish bool                `json:"publish,omitempty"`
}

// FormService manages forms and their versioned schemas. New versions are
// compiled before persistence so authoring mistakes fail fast.
type FormService struct {
	store  formStore
	logger *zap.Logger
}

// NewFormService constructs a FormService.
func NewFormService(store formStore, logger *zap.Logger) *FormService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FormService{store: store, logger: logger}
}

// ListByProject returns the project's forms.
func (s *FormService) ListByProject(ctx context.Context, projetoID int64) ([]models.Form, error) {
	return s.store.ListByProject(ctx, projetoID)
}

// Get loads one form.
func (s *FormService) Get(ctx context.Context, id int64) (*models.Form, error) {
	form, err := s.store.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrNotFound
		}
		return nil, err
	}
	return form, nil
}

// Create inserts a form. The slug is derived from the name when absent.
func (s *FormService) Create(ctx context.Context, input FormInput) (*models.Form, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" || input.ProjetoID == 0 {
		return nil, appErrors.Validation("form payload is incomplete", []appErrors.FieldError{
			{Field: "name", Message: "required"},
			{Field: "projeto_id", Message: "required"},
		})
	}
	form := &models.Form{
		ProjetoID: input.ProjetoID,
		Name:      name,
		Slug:      slugify(firstNonEmpty(input.Slug, name)),
		Active:    true,
	}
	if input.Active != nil {
		form.Active = *input.Active
	}
	if err := s.store.Create(ctx, form); err != nil {
		return nil, err
	}
	return form, nil
}

// Update rewrites a form's editable attributes.
func (s *FormService) Update(ctx context.Context, id int64, input FormInput) (*models.Form, error) {
	form, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if name := strings.TrimSpace(input.Name); name != "" {
		form.Name = name
	}
	if input.Slug != "" {
		form.Slug = slugify(input.Slug)
	}
	if input.Active != nil {
		form.Active = *input.Active
	}
	if err := s.store.Update(ctx, form); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrNotFound
		}
		return nil, err
	}
	return form, nil
}

// CreateVersion compiles the declared fields and persists a new version with
// the next version number.
func (s *FormService) CreateVersion(ctx context.Context, input VersionInput) (*models.FormVersion, []models.FormField, error) {
	if input.FormID == 0 || len(input.Fields) == 0 {
		return nil, nil, appErrors.Validation("version payload is incomplete", []appErrors.FieldError{
			{Field: "form_id", Message: "required"},
			{Field: "fields", Message: "at least one field is required"},
		})
	}

	seen := make(map[string]struct{}, len(input.Fields))
	for _, def := range input.Fields {
		name := strings.TrimSpace(def.Name)
		if name == "" {
			return nil, nil, appErrors.Validation("field name is required", []appErrors.FieldError{{Field: "fields", Message: "field name is required"}})
		}
		if _, dup := seen[name]; dup {
			return nil, nil, appErrors.Validation("duplicate field name", []appErrors.FieldError{{Field: name, Message: "duplicated"}})
		}
		seen[name] = struct{}{}
	}

	// Compiling catches unknown types and invalid constraints before any row
	// is written.
	if _, err := schema.NewSchema(input.Fields); err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, err.Error())
	}

	raw, err := json.Marshal(input.Fields)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to encode schema")
	}

	version := &models.FormVersion{
		FormID:    input.FormID,
		Schema:    raw,
		Published: input.Publish,
	}
	fields := make([]models.FormField, 0, len(input.Fields))
	for i, def := range input.Fields {
		fields = append(fields, models.FormField{
			Name:     strings.TrimSpace(def.Name),
			Label:    def.Label,
			Type:     def.Type,
			Required: def.Required,
			Min:      def.Min,
			Max:      def.Max,
			Regex:    def.Regex,
			Position: i + 1,
		})
	}

	if err := s.store.CreateVersion(ctx, version, fields); err != nil {
		return nil, nil, err
	}
	s.logger.Info("form version created",
		zap.Int64("form_id", version.FormID),
		zap.Int("version", version.Version),
		zap.Int("fields", len(fields)))
	return version, fields, nil
}

// GetVersion loads one version with its field definitions.
func (s *FormService) GetVersion(ctx context.Context, id int64) (*models.FormVersion, []models.FormField, error) {
	version, err := s.store.GetVersion(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, appErrors.ErrNotFound
		}
		return nil, nil, err
	}
	fields, err := s.store.ListFields(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	return version, fields, nil
}

// ListVersions returns a form's versions.
func (s *FormService) ListVersions(ctx context.Context, formID int64) ([]models.FormVersion, error) {
	return s.store.ListVersions(ctx, formID)
}

// PublishVersion marks a version as published.
func (s *FormService) PublishVersion(ctx context.Context, id int64) error {
	if err := s.store.PublishVersion(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.ErrNotFound
		}
		return err
	}
	return nil
}

var slugCleaner = regexp.MustCompile(`[^a-z0-9]+`)

func slugify(s string) string {
	slug := slugCleaner.ReplaceAllString(normalizeText(s), "-")
	return strings.Trim(slug, "-")
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
