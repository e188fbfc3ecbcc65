package handler

import (
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/keek-conecta/escuta-api/internal/middleware"
	"github.com/keek-conecta/escuta-api/internal/models"
	appErrors "github.com/keek-conecta/escuta-api/pkg/errors"
)

func claimsFromContext(c *gin.Context) *models.JWTClaims {
	return middleware.CurrentClaims(c)
}

func pathID(c *gin.Context, name string) (int64, error) {
	raw := strings.TrimSpace(c.Param(name))
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, appErrors.Clone(appErrors.ErrValidation, "invalid "+name)
	}
	return id, nil
}

func queryInt64(c *gin.Context, name string) (int64, error) {
	raw := strings.TrimSpace(c.Query(name))
	if raw == "" {
		return 0, nil
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id < 0 {
		return 0, appErrors.Clone(appErrors.ErrValidation, "invalid "+name)
	}
	return id, nil
}

func queryIntDefault(c *gin.Context, name string, fallback int) int {
	raw := strings.TrimSpace(c.Query(name))
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value <= 0 {
		return fallback
	}
	return value
}

// queryDate accepts RFC3339 timestamps or plain YYYY-MM-DD dates, always UTC.
func queryDate(c *gin.Context, name string) (*time.Time, error) {
	raw := strings.TrimSpace(c.Query(name))
	if raw == "" {
		return nil, nil
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if parsed, err := time.Parse(layout, raw); err == nil {
			utc := parsed.UTC()
			return &utc, nil
		}
	}
	return nil, appErrors.Clone(appErrors.ErrValidation, "invalid "+name+", expected RFC3339 or YYYY-MM-DD")
}

// queryValues gathers repeated and comma-separated occurrences of a parameter.
func queryValues(c *gin.Context, name string) []string {
	var values []string
	for _, raw := range c.QueryArray(name) {
		for _, part := range strings.Split(raw, ",") {
			if trimmed := strings.TrimSpace(part); trimmed != "" {
				values = append(values, trimmed)
			}
		}
	}
	return values
}

// parseFieldSelector reads the field addressed by a distribution or stats
// query; at least one of fieldId and fieldName must be present.
func parseFieldSelector(c *gin.Context) (models.FieldSelector, error) {
	fieldID, err := queryInt64(c, "fieldId")
	if err != nil {
		return models.FieldSelector{}, err
	}
	fieldName := strings.TrimSpace(c.Query("fieldName"))
	if fieldID == 0 && fieldName == "" {
		return models.FieldSelector{}, appErrors.Clone(appErrors.ErrValidation, "fieldId or fieldName is required")
	}
	return models.FieldSelector{FieldID: fieldID, FieldName: fieldName}, nil
}

// parseBaseFilters reads the shared dashboard scoping from the query string.
// Dimension filters keep their aliased forms; the service layer merges them.
func parseBaseFilters(c *gin.Context) (models.BaseFilters, error) {
	var base models.BaseFilters

	projetoID, err := queryInt64(c, "projetoId")
	if err != nil {
		return base, err
	}
	versionID, err := queryInt64(c, "formVersionId")
	if err != nil {
		return base, err
	}
	start, err := queryDate(c, "start")
	if err != nil {
		return base, err
	}
	end, err := queryDate(c, "end")
	if err != nil {
		return base, err
	}

	status := models.FormResponseStatus(strings.ToUpper(strings.TrimSpace(c.Query("status"))))
	if status != "" && !status.Valid() {
		return base, appErrors.Clone(appErrors.ErrValidation, "invalid status")
	}

	base = models.BaseFilters{
		ProjetoID:     projetoID,
		FormVersionID: versionID,
		Status:        status,
		Start:         start,
		End:           end,
		Fields: models.FieldFilterInput{
			Temas:         queryValues(c, "temas"),
			Tema:          queryValues(c, "tema"),
			TipoOpiniao:   queryValues(c, "tipoOpiniao"),
			Tipos:         queryValues(c, "tipos"),
			Tipo:          queryValues(c, "tipo"),
			Genero:        queryValues(c, "genero"),
			Generos:       queryValues(c, "generos"),
			Bairro:        queryValues(c, "bairro"),
			Bairros:       queryValues(c, "bairros"),
			FaixaEtaria:   queryValues(c, "faixaEtaria"),
			FaixasEtarias: queryValues(c, "faixasEtarias"),
			TextoOpiniao:  queryValues(c, "textoOpiniao"),
			Texto:         queryValues(c, "texto"),
			Campanhas:     queryValues(c, "campanhas"),
			Campanha:      queryValues(c, "campanha"),
		},
	}
	return base, nil
}
