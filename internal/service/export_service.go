package service

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/keek-conecta/escuta-api/internal/models"
	"github.com/keek-conecta/escuta-api/pkg/export"
	appErrors "github.com/keek-conecta/escuta-api/pkg/errors"
)

type fileStorage interface {
	Save(filename string, data []byte) (string, error)
	Open(filename string) (*os.File, error)
	Delete(filename string) error
	CleanupOlderThan(ttl time.Duration) ([]string, error)
}

type csvRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

type pdfRenderer interface {
	Render(data export.Dataset, title string) ([]byte, error)
}

type reportProvider interface {
	Report(ctx context.Context, base models.BaseFilters, opts models.ReportOptions) (*models.ReportPayload, error)
}

// ExportFormat selects the rendered file type.
type ExportFormat string

const (
	FormatCSV ExportFormat = "csv"
	FormatPDF ExportFormat = "pdf"
)

// ExportConfig tunes export behaviour.
type ExportConfig struct {
	Enabled   bool
	MaxRows   int
	ResultTTL time.Duration
}

// ExportResult captures successful generation metadata.
type ExportResult struct {
	Filename    string       `json:"filename"`
	Format      ExportFormat `json:"format"`
	Rows        int          `json:"rows"`
	GeneratedAt time.Time    `json:"generated_at"`
}

// ExportService renders raw responses and the consolidated report into
// downloadable files.
type ExportService struct {
	responses responseStore
	metrics   reportProvider
	storage   fileStorage
	csv       csvRenderer
	pdf       pdfRenderer
	logger    *zap.Logger
	now       func() time.Time
	cfg       ExportConfig
}

// ExportServiceParams groups constructor dependencies.
type ExportServiceParams struct {
	Responses responseStore
	Metrics   reportProvider
	Storage   fileStorage
	CSV       csvRenderer
	PDF       pdfRenderer
	Logger    *zap.Logger
	Now       func() time.Time
	Config    ExportConfig
}

// NewExportService constructs an ExportService.
func NewExportService(params ExportServiceParams) *ExportService {
	cfg := params.Config
	if cfg.MaxRows <= 0 {
		cfg.MaxRows = 10000
	}
	if cfg.ResultTTL <= 0 {
		cfg.ResultTTL = 24 * time.Hour
	}
	logger := params.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &ExportService{
		responses: params.Responses,
		metrics:   params.Metrics,
		storage:   params.Storage,
		csv:       params.CSV,
		pdf:       params.PDF,
		logger:    logger,
		now:       now,
		cfg:       cfg,
	}
}

// ExportResponses renders the filtered responses as CSV. Answer columns
// follow the canonical field order; uncovered fields land in no column.
func (s *ExportService) ExportResponses(ctx context.Context, base models.BaseFilters) (*ExportResult, error) {
	if !s.cfg.Enabled {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "exports are disabled")
	}

	reference := s.now().UTC()
	if base.End != nil {
		reference = base.End.UTC()
	}
	q := models.MetricsQuery{
		ProjetoID:     base.ProjetoID,
		FormVersionID: base.FormVersionID,
		Status:        base.Status,
		Start:         base.Start,
		End:           base.End,
		Predicates:    buildPredicates(normalizeFieldFilters(base.Fields), reference),
	}

	headers := []string{"id", "status", "created_at",
		fieldTheme, fieldOpinionType, fieldGender, fieldNeighborhood, fieldCampaign, fieldBirthYear, fieldOpinionText}
	dataset := export.Dataset{Headers: headers}

	page := 1
	const pageSize = 100
	for {
		responses, total, err := s.responses.List(ctx, q, page, pageSize)
		if err != nil {
			return nil, err
		}
		for _, response := range responses {
			if len(dataset.Rows) >= s.cfg.MaxRows {
				break
			}
			row := map[string]string{
				"id":         strconv.FormatInt(response.ID, 10),
				"status":     string(response.Status),
				"created_at": response.CreatedAt.UTC().Format(time.RFC3339),
			}
			for _, field := range response.Fields {
				if field.Value != nil {
					row[field.FieldName] = *field.Value
				}
			}
			dataset.Rows = append(dataset.Rows, row)
		}
		if len(dataset.Rows) >= s.cfg.MaxRows || page*pageSize >= total || len(responses) == 0 {
			break
		}
		page++
	}

	payload, err := s.csv.Render(dataset)
	if err != nil {
		return nil, fmt.Errorf("render responses csv: %w", err)
	}

	filename := fmt.Sprintf("responses-%d-%s.csv", base.ProjetoID, s.now().UTC().Format("20060102-150405"))
	if _, err := s.storage.Save(filename, payload); err != nil {
		return nil, err
	}
	s.logger.Info("responses exported", zap.String("file", filename), zap.Int("rows", len(dataset.Rows)))
	return &ExportResult{Filename: filename, Format: FormatCSV, Rows: len(dataset.Rows), GeneratedAt: s.now().UTC()}, nil
}

// ExportReport renders the consolidated report as a PDF table per dimension.
func (s *ExportService) ExportReport(ctx context.Context, base models.BaseFilters) (*ExportResult, error) {
	if !s.cfg.Enabled {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "exports are disabled")
	}

	report, err := s.metrics.Report(ctx, base, models.ReportOptions{})
	if err != nil {
		return nil, err
	}

	dataset := export.Dataset{Headers: []string{"secao", "valor", "quantidade"}}
	appendSection := func(section string, items []models.ValueCount) {
		for _, item := range items {
			dataset.Rows = append(dataset.Rows, map[string]string{
				"secao":      section,
				"valor":      fmt.Sprintf("%v", item.Value),
				"quantidade": strconv.Itoa(item.Count),
			})
		}
	}
	dataset.Rows = append(dataset.Rows, map[string]string{
		"secao": "cards", "valor": "total", "quantidade": strconv.Itoa(report.Cards.TotalOpinions),
	})
	dataset.Rows = append(dataset.Rows, map[string]string{
		"secao": "cards", "valor": "reclamacoes", "quantidade": strconv.Itoa(report.Cards.Reclamacoes),
	})
	dataset.Rows = append(dataset.Rows, map[string]string{
		"secao": "cards", "valor": "elogios", "quantidade": strconv.Itoa(report.Cards.Elogios),
	})
	dataset.Rows = append(dataset.Rows, map[string]string{
		"secao": "cards", "valor": "sugestoes", "quantidade": strconv.Itoa(report.Cards.Sugestoes),
	})
	appendSection("temas", report.Temas)
	appendSection("tipos", report.Tipos)
	appendSection("bairros", report.Bairros)
	appendSection("generos", report.Generos)
	appendSection("campanhas", report.Campanhas)
	for _, bucket := range report.FaixasEtarias {
		dataset.Rows = append(dataset.Rows, map[string]string{
			"secao": "faixas_etarias", "valor": bucket.Label, "quantidade": strconv.Itoa(bucket.Count),
		})
	}

	payload, err := s.pdf.Render(dataset, "Relatorio de Opinioes")
	if err != nil {
		return nil, fmt.Errorf("render report pdf: %w", err)
	}

	filename := fmt.Sprintf("report-%d-%s.pdf", base.ProjetoID, s.now().UTC().Format("20060102-150405"))
	if _, err := s.storage.Save(filename, payload); err != nil {
		return nil, err
	}
	return &ExportResult{Filename: filename, Format: FormatPDF, Rows: len(dataset.Rows), GeneratedAt: s.now().UTC()}, nil
}

// Open returns a stored export file for download.
func (s *ExportService) Open(filename string) (*os.File, error) {
	file, err := s.storage.Open(filename)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "export file not found")
	}
	return file, nil
}

// Cleanup removes expired export files.
func (s *ExportService) Cleanup() {
	deleted, err := s.storage.CleanupOlderThan(s.cfg.ResultTTL)
	if err != nil {
		s.logger.Warn("export cleanup failed", zap.Error(err))
		return
	}
	if len(deleted) > 0 {
		s.logger.Info("expired exports removed", zap.Int("count", len(deleted)))
	}
}
