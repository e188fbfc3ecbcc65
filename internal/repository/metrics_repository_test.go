package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/keek-conecta/escuta-api/internal/models"
)

func newMetricsRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestMetricsRepositoryTimeSeries(t *testing.T) {
	db, mock, cleanup := newMetricsRepoMock(t)
	defer cleanup()
	repo := NewMetricsRepository(db)

	jan := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	feb := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows([]string{"bucket", "count"}).
		AddRow(jan, "3").
		AddRow(feb, 7)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT date_trunc($1, r.created_at) AS bucket, COUNT(*) AS count FROM form_responses r WHERE r.created_at IS NOT NULL AND r.projeto_id = $2")).
		WithArgs("month", int64(10)).
		WillReturnRows(rows)

	points, err := repo.TimeSeries(context.Background(),
		models.MetricsQuery{ProjetoID: 10}, models.IntervalMonth, models.DateFieldCreated)
	require.NoError(t, err)
	require.Len(t, points, 2)
	require.Equal(t, jan, points[0].Bucket)
	require.Equal(t, 3, points[0].Count)
	require.Equal(t, 7, points[1].Count)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMetricsRepositoryTimeSeriesRejectsBadDimensions(t *testing.T) {
	db, _, cleanup := newMetricsRepoMock(t)
	defer cleanup()
	repo := NewMetricsRepository(db)

	_, err := repo.TimeSeries(context.Background(), models.MetricsQuery{}, "hour", models.DateFieldCreated)
	require.Error(t, err)

	_, err = repo.TimeSeries(context.Background(), models.MetricsQuery{}, models.IntervalDay, "deletedAt")
	require.Error(t, err)
}

func TestMetricsRepositoryDistributionWithPredicates(t *testing.T) {
	db, mock, cleanup := newMetricsRepoMock(t)
	defer cleanup()
	repo := NewMetricsRepository(db)

	rows := sqlmock.NewRows([]string{"value", "count"}).
		AddRow([]byte("Centro"), "12").
		AddRow([]byte("Luz"), "5")

	mock.ExpectQuery(regexp.QuoteMeta("SELECT f.value AS value, COUNT(*) AS count FROM form_response_fields f JOIN form_responses r ON r.id = f.response_id WHERE f.field_name = $1 AND f.value IS NOT NULL AND r.projeto_id = $2 AND EXISTS (SELECT 1 FROM form_response_fields ff WHERE ff.response_id = r.id AND ff.field_name = $3 AND (ff.value IN ($4, $5) OR ff.value IS NULL OR ff.value = ''))")).
		WithArgs("bairro", int64(10), "genero", "Feminino", "Masculino", 20).
		WillReturnRows(rows)

	q := models.MetricsQuery{
		ProjetoID: 10,
		Predicates: []models.FieldPredicate{
			{FieldName: "genero", Values: []string{"Feminino", "Masculino"}, IncludeUnknown: true},
		},
	}
	result, err := repo.Distribution(context.Background(), q, "bairro", models.ValueTypeString, 20)
	require.NoError(t, err)
	require.Len(t, result, 2)
	require.Equal(t, "Centro", result[0].Value)
	require.Equal(t, 12, result[0].Count)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMetricsRepositoryNumberStatsCoercesStringRows(t *testing.T) {
	db, mock, cleanup := newMetricsRepoMock(t)
	defer cleanup()
	repo := NewMetricsRepository(db)

	rows := sqlmock.NewRows([]string{"count", "min", "max", "avg"}).
		AddRow("5", "1", "9", "4.2")

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(f.value_number) AS count, MIN(f.value_number) AS min, MAX(f.value_number) AS max, AVG(f.value_number) AS avg FROM form_response_fields f JOIN form_responses r ON r.id = f.response_id WHERE f.field_name = $1 AND f.value_number IS NOT NULL")).
		WithArgs("nota").
		WillReturnRows(rows)

	stats, err := repo.NumberStats(context.Background(), models.MetricsQuery{}, "nota")
	require.NoError(t, err)
	require.Equal(t, 5, stats.Count)
	require.NotNil(t, stats.Min)
	require.Equal(t, float64(1), *stats.Min)
	require.Equal(t, float64(9), *stats.Max)
	require.Equal(t, 4.2, *stats.Avg)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMetricsRepositoryNumberStatsEmpty(t *testing.T) {
	db, mock, cleanup := newMetricsRepoMock(t)
	defer cleanup()
	repo := NewMetricsRepository(db)

	rows := sqlmock.NewRows([]string{"count", "min", "max", "avg"}).
		AddRow("0", nil, nil, nil)
	mock.ExpectQuery("SELECT COUNT").WithArgs("nota").WillReturnRows(rows)

	stats, err := repo.NumberStats(context.Background(), models.MetricsQuery{}, "nota")
	require.NoError(t, err)
	require.Equal(t, 0, stats.Count)
	require.Nil(t, stats.Min)
	require.Nil(t, stats.Max)
	require.Nil(t, stats.Avg)
}

func TestMetricsRepositoryStatusFunnel(t *testing.T) {
	db, mock, cleanup := newMetricsRepoMock(t)
	defer cleanup()
	repo := NewMetricsRepository(db)

	rows := sqlmock.NewRows([]string{"status", "count"}).
		AddRow("COMPLETED", "8").
		AddRow("STARTED", "2")
	mock.ExpectQuery(regexp.QuoteMeta("SELECT r.status AS status, COUNT(*) AS count FROM form_responses r WHERE 1=1 AND r.projeto_id = $1 GROUP BY r.status ORDER BY r.status ASC")).
		WithArgs(int64(10)).
		WillReturnRows(rows)

	funnel, err := repo.StatusFunnel(context.Background(), models.MetricsQuery{ProjetoID: 10})
	require.NoError(t, err)
	require.Equal(t, []models.StatusCount{
		{Status: models.ResponseCompleted, Count: 8},
		{Status: models.ResponseStarted, Count: 2},
	}, funnel)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMetricsRepositorySubstringPredicate(t *testing.T) {
	db, mock, cleanup := newMetricsRepoMock(t)
	defer cleanup()
	repo := NewMetricsRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM form_responses r WHERE 1=1 AND EXISTS (SELECT 1 FROM form_response_fields ff WHERE ff.response_id = r.id AND ff.field_name = $1 AND (ff.value ILIKE $2))")).
		WithArgs("texto_opiniao", "%iluminacao%").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow("4"))

	count, err := repo.CountResponses(context.Background(), models.MetricsQuery{
		Predicates: []models.FieldPredicate{
			{FieldName: "texto_opiniao", Values: []string{"iluminacao"}, Substring: true},
		},
	})
	require.NoError(t, err)
	require.Equal(t, 4, count)
	require.NoError(t, mock.ExpectationsWereMet())
}
