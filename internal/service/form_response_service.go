package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/keek-conecta/escuta-api/internal/models"
	"github.com/keek-conecta/escuta-api/internal/schema"
	appErrors "github.com/keek-conecta/escuta-api/pkg/errors"
)

type responseStore interface {
	Create(ctx context.Context, response *models.FormResponse) error
	Update(ctx context.Context, response *models.FormResponse) error
	GetByID(ctx context.Context, id int64) (*models.FormResponse, error)
	List(ctx context.Context, q models.MetricsQuery, page, pageSize int) ([]models.FormResponse, int, error)
	ListOpinions(ctx context.Context, q models.OpinionQuery, page, pageSize int) ([]models.OpinionRow, int, error)
	FindFieldValue(ctx context.Context, lookup models.FieldValueLookup) (*models.FieldValueMatch, error)
	Delete(ctx context.Context, id int64) error
}

type versionFieldStore interface {
	GetVersion(ctx context.Context, id int64) (*models.FormVersion, error)
	ListFields(ctx context.Context, versionID int64) ([]models.FormField, error)
	ProjectForVersion(ctx context.Context, versionID int64) (int64, error)
}

// ResponseInput is one inbound submission or draft update.
type ResponseInput struct {
	FormVersionID int64                  `json:"form_version_id" validate:"required"`
	UserID        *int64                 `json:"user_id,omitempty"`
	Status        models.FormResponseStatus `json:"status,omitempty"`
	StartedAt     *time.Time             `json:"started_at,omitempty"`
	CompletedAt   *time.Time             `json:"completed_at,omitempty"`
	SubmittedAt   *time.Time             `json:"submitted_at,omitempty"`
	Answers       map[string]interface{} `json:"answers"`
	IP            *string                `json:"-"`
	UserAgent     *string                `json:"-"`
	Source        *string                `json:"source,omitempty"`
	Channel       *string                `json:"channel,omitempty"`
	UTMSource     *string                `json:"utm_source,omitempty"`
	UTMMedium     *string                `json:"utm_medium,omitempty"`
	UTMCampaign   *string                `json:"utm_campaign,omitempty"`
	DeviceType    *string                `json:"device_type,omitempty"`
	OS            *string                `json:"os,omitempty"`
	Browser       *string                `json:"browser,omitempty"`
	Locale        *string                `json:"locale,omitempty"`
	Timezone      *string                `json:"timezone,omitempty"`
	Metadata      json.RawMessage        `json:"metadata,omitempty"`
}

// ResponseListRequest scopes a response listing.
type ResponseListRequest struct {
	ProjetoID     int64
	FormVersionID int64
	Status        models.FormResponseStatus
	Start         *time.Time
	End           *time.Time
	Fields        models.FieldFilterInput
	Page          int
	PageSize      int
}

// FormResponseService validates inbound submissions against the form version
// schema and persists them as typed answer rows.
type FormResponseService struct {
	responses responseStore
	versions  versionFieldStore
	cache     *CacheService
	logger    *zap.Logger
	now       func() time.Time
}

// FormResponseServiceParams groups constructor dependencies.
type FormResponseServiceParams struct {
	Responses responseStore
	Versions  versionFieldStore
	Cache     *CacheService
	Logger    *zap.Logger
	Now       func() time.Time
}

// NewFormResponseService constructs a FormResponseService.
func NewFormResponseService(params FormResponseServiceParams) *FormResponseService {
	logger := params.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &FormResponseService{
		responses: params.Responses,
		versions:  params.Versions,
		cache:     params.Cache,
		logger:    logger,
		now:       now,
	}
}

// Create validates and stores a new submission. Drafts skip required checks;
// completed submissions get their completion timestamps filled when absent.
func (s *FormResponseService) Create(ctx context.Context, input ResponseInput) (*models.FormResponse, error) {
	projetoID, fields, err := s.loadVersion(ctx, input.FormVersionID)
	if err != nil {
		return nil, err
	}

	status := inferStatus(input)
	rows, err := s.buildRows(fields, input.Answers, status)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	response := &models.FormResponse{
		ProjetoID:     projetoID,
		FormVersionID: input.FormVersionID,
		UserID:        input.UserID,
		Status:        status,
		StartedAt:     input.StartedAt,
		CompletedAt:   input.CompletedAt,
		SubmittedAt:   input.SubmittedAt,
		IP:            input.IP,
		UserAgent:     input.UserAgent,
		Source:        input.Source,
		Channel:       input.Channel,
		UTMSource:     input.UTMSource,
		UTMMedium:     input.UTMMedium,
		UTMCampaign:   input.UTMCampaign,
		DeviceType:    input.DeviceType,
		OS:            input.OS,
		Browser:       input.Browser,
		Locale:        input.Locale,
		Timezone:      input.Timezone,
		Metadata:      input.Metadata,
		Fields:        rows,
	}
	if response.StartedAt == nil {
		response.StartedAt = &now
	}
	if status == models.ResponseCompleted {
		if response.CompletedAt == nil {
			response.CompletedAt = &now
		}
		if response.SubmittedAt == nil {
			response.SubmittedAt = response.CompletedAt
		}
	}

	if err := s.responses.Create(ctx, response); err != nil {
		return nil, fmt.Errorf("create response: %w", err)
	}
	s.invalidateMetrics(ctx, projetoID)
	return response, nil
}

// Update revalidates and replaces an existing response's answers. Required
// checks stay relaxed while the response remains a draft.
func (s *FormResponseService) Update(ctx context.Context, id int64, input ResponseInput) (*models.FormResponse, error) {
	existing, err := s.responses.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrNotFound
		}
		return nil, err
	}

	_, fields, err := s.loadVersion(ctx, existing.FormVersionID)
	if err != nil {
		return nil, err
	}

	status := input.Status
	if status == "" {
		status = existing.Status
	}
	if !status.Valid() {
		return nil, appErrors.Validation("invalid status", []appErrors.FieldError{{Field: "status", Message: "must be STARTED or COMPLETED"}})
	}
	// Status only moves forward.
	if existing.Status == models.ResponseCompleted && status == models.ResponseStarted {
		return nil, appErrors.Validation("invalid status transition", []appErrors.FieldError{{Field: "status", Message: "a completed response cannot revert to started"}})
	}

	rows, err := s.buildRows(fields, input.Answers, status)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	existing.Status = status
	existing.Fields = rows
	if input.StartedAt != nil {
		existing.StartedAt = input.StartedAt
	}
	if input.CompletedAt != nil {
		existing.CompletedAt = input.CompletedAt
	}
	if input.SubmittedAt != nil {
		existing.SubmittedAt = input.SubmittedAt
	}
	if status == models.ResponseCompleted {
		if existing.CompletedAt == nil {
			existing.CompletedAt = &now
		}
		if existing.SubmittedAt == nil {
			existing.SubmittedAt = existing.CompletedAt
		}
	}

	if err := s.responses.Update(ctx, existing); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrNotFound
		}
		return nil, fmt.Errorf("update response: %w", err)
	}
	s.invalidateMetrics(ctx, existing.ProjetoID)
	return existing, nil
}

// Get loads one response.
func (s *FormResponseService) Get(ctx context.Context, id int64) (*models.FormResponse, error) {
	response, err := s.responses.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrNotFound
		}
		return nil, err
	}
	return response, nil
}

// List returns responses under the same filter semantics the dashboard uses.
func (s *FormResponseService) List(ctx context.Context, req ResponseListRequest) ([]models.FormResponse, *models.Pagination, error) {
	reference := s.now().UTC()
	if req.End != nil {
		reference = req.End.UTC()
	}
	q := models.MetricsQuery{
		ProjetoID:     req.ProjetoID,
		FormVersionID: req.FormVersionID,
		Status:        req.Status,
		Start:         req.Start,
		End:           req.End,
		Predicates:    buildPredicates(normalizeFieldFilters(req.Fields), reference),
	}
	responses, total, err := s.responses.List(ctx, q, req.Page, req.PageSize)
	if err != nil {
		return nil, nil, err
	}
	page := req.Page
	if page < 1 {
		page = 1
	}
	size := req.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	return responses, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// OpinionListRequest scopes the per-field opinions listing.
type OpinionListRequest struct {
	ProjetoID int64
	FieldName string
	Start     *time.Time
	End       *time.Time
	Page      int
	PageSize  int
}

// Opinions lists one field's answers newest first, each carrying its response
// creation time.
func (s *FormResponseService) Opinions(ctx context.Context, req OpinionListRequest) ([]models.OpinionItem, *models.Pagination, error) {
	if req.ProjetoID == 0 {
		return nil, nil, appErrors.Validation("project is required", []appErrors.FieldError{{Field: "projetoId", Message: "required"}})
	}
	if strings.TrimSpace(req.FieldName) == "" {
		return nil, nil, appErrors.Validation("field name is required", []appErrors.FieldError{{Field: "fieldName", Message: "required"}})
	}

	rows, total, err := s.responses.ListOpinions(ctx, models.OpinionQuery{
		ProjetoID: req.ProjetoID,
		FieldName: strings.TrimSpace(req.FieldName),
		Start:     req.Start,
		End:       req.End,
	}, req.Page, req.PageSize)
	if err != nil {
		return nil, nil, err
	}

	items := make([]models.OpinionItem, 0, len(rows))
	for _, row := range rows {
		items = append(items, models.OpinionItem{
			ResponseID: row.ResponseID,
			Value:      opinionValue(row),
			CreatedAt:  row.CreatedAt,
		})
	}
	page := req.Page
	if page < 1 {
		page = 1
	}
	size := req.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	return items, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// opinionValue collapses an answer row to its populated slot, display value
// first.
func opinionValue(row models.OpinionRow) interface{} {
	switch {
	case row.Value != nil:
		return *row.Value
	case len(row.ValueJSON) > 0:
		return row.ValueJSON
	case row.ValueNumber != nil:
		return *row.ValueNumber
	case row.ValueBool != nil:
		return *row.ValueBool
	case row.ValueDate != nil:
		return row.ValueDate.UTC().Format(time.RFC3339)
	}
	return nil
}

// FieldExistsRequest asks whether any stored answer to the field carries the
// given value in any typed slot.
type FieldExistsRequest struct {
	ProjetoID     int64
	FormVersionID int64
	FieldName     string
	Value         string
}

// FieldExists checks the value against every typed slot the raw text coerces
// into and reports the newest matching response.
func (s *FormResponseService) FieldExists(ctx context.Context, req FieldExistsRequest) (*models.FieldExistsResult, error) {
	if req.ProjetoID == 0 {
		return nil, appErrors.Validation("project is required", []appErrors.FieldError{{Field: "projetoId", Message: "required"}})
	}
	fieldName := strings.TrimSpace(req.FieldName)
	if fieldName == "" {
		return nil, appErrors.Validation("field name is required", []appErrors.FieldError{{Field: "fieldName", Message: "required"}})
	}
	trimmed := strings.TrimSpace(req.Value)
	if trimmed == "" {
		return nil, appErrors.Validation("value is required", []appErrors.FieldError{{Field: "value", Message: "required"}})
	}

	lookup := models.FieldValueLookup{
		ProjetoID:     req.ProjetoID,
		FormVersionID: req.FormVersionID,
		FieldName:     fieldName,
		Value:         trimmed,
	}
	if number, err := strconv.ParseFloat(trimmed, 64); err == nil {
		lookup.ValueNumber = &number
	}
	switch normalizeText(trimmed) {
	case "true":
		v := true
		lookup.ValueBool = &v
	case "false":
		v := false
		lookup.ValueBool = &v
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if date, err := time.Parse(layout, trimmed); err == nil {
			utc := date.UTC()
			lookup.ValueDate = &utc
			break
		}
	}

	match, err := s.responses.FindFieldValue(ctx, lookup)
	if err != nil {
		return nil, err
	}
	if match == nil {
		return &models.FieldExistsResult{}, nil
	}
	return &models.FieldExistsResult{
		Exists:     true,
		ResponseID: &match.ResponseID,
		CreatedAt:  &match.CreatedAt,
	}, nil
}

// Delete removes a response and drops cached aggregations for its project.
func (s *FormResponseService) Delete(ctx context.Context, id int64) error {
	existing, err := s.responses.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.ErrNotFound
		}
		return err
	}
	if err := s.responses.Delete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.ErrNotFound
		}
		return err
	}
	s.invalidateMetrics(ctx, existing.ProjetoID)
	return nil
}

func (s *FormResponseService) loadVersion(ctx context.Context, versionID int64) (int64, []models.FormField, error) {
	if versionID == 0 {
		return 0, nil, appErrors.Validation("form version is required", []appErrors.FieldError{{Field: "form_version_id", Message: "required"}})
	}
	projetoID, err := s.versions.ProjectForVersion(ctx, versionID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, nil, appErrors.Clone(appErrors.ErrNotFound, "form version not found")
		}
		return 0, nil, err
	}
	fields, err := s.versions.ListFields(ctx, versionID)
	if err != nil {
		return 0, nil, err
	}
	return projetoID, fields, nil
}

// buildRows validates the answers against the version schema and lays each
// one out across the typed slots.
func (s *FormResponseService) buildRows(fields []models.FormField, answers map[string]interface{}, status models.FormResponseStatus) ([]models.FormResponseField, error) {
	defs := make([]schema.Definition, 0, len(fields))
	kinds := make(map[string]schema.FieldKind, len(fields))
	ids := make(map[string]*int64, len(fields))
	for i := range fields {
		field := fields[i]
		defs = append(defs, schema.Definition{
			Name:     field.Name,
			Label:    field.Label,
			Type:     field.Type,
			Required: field.Required,
			Min:      field.Min,
			Max:      field.Max,
			Regex:    field.Regex,
		})
		if kind, ok := schema.ParseFieldKind(field.Type); ok {
			kinds[field.Name] = kind
		}
		id := fields[i].ID
		ids[field.Name] = &id
	}

	compiled, err := schema.NewSchema(defs)
	if err != nil {
		return nil, appErrors.Wrap(err, "INVALID_SCHEMA", 422, "form version schema is invalid")
	}

	clean, fieldErrs := compiled.Validate(answers, schema.Options{
		IgnoreRequired: status == models.ResponseStarted,
	})
	if len(fieldErrs) > 0 {
		details := make([]appErrors.FieldError, 0, len(fieldErrs))
		for _, fe := range fieldErrs {
			details = append(details, appErrors.FieldError{Field: fe.Field, Message: fe.Message})
		}
		return nil, appErrors.Validation("answers failed validation", details)
	}

	var rows []models.FormResponseField
	for _, def := range defs {
		value, ok := clean[def.Name]
		if !ok {
			continue
		}
		var data schema.ResponseFieldData
		if schema.IsStructured(value) {
			data, err = schema.BuildResponseFieldJSON(value)
		} else {
			data, err = schema.BuildResponseField(kinds[def.Name], value)
		}
		if err != nil {
			return nil, appErrors.Validation("answers failed normalization",
				[]appErrors.FieldError{{Field: def.Name, Message: err.Error()}})
		}
		rows = append(rows, models.FormResponseField{
			FieldID:     ids[def.Name],
			FieldName:   def.Name,
			Value:       data.Value,
			ValueNumber: data.ValueNumber,
			ValueBool:   data.ValueBool,
			ValueDate:   data.ValueDate,
			ValueJSON:   data.ValueJSON,
		})
	}
	return rows, nil
}

// inferStatus derives the lifecycle state when the client does not send one.
// Anything carrying completion evidence counts as completed.
func inferStatus(input ResponseInput) models.FormResponseStatus {
	if input.Status.Valid() {
		return input.Status
	}
	if input.SubmittedAt != nil || input.CompletedAt != nil || len(input.Answers) > 0 {
		return models.ResponseCompleted
	}
	return models.ResponseStarted
}

func (s *FormResponseService) invalidateMetrics(ctx context.Context, projetoID int64) {
	pattern := fmt.Sprintf("metrics:projeto:%d:*", projetoID)
	if err := s.cache.Invalidate(ctx, pattern); err != nil {
		s.logger.Warn("metrics cache invalidation failed", zap.Int64("projeto_id", projetoID), zap.Error(err))
	}
}
