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

func newResponseRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func strRef(s string) *string { return &s }

func TestFormResponseRepositoryCreateInsertsFieldsInTx(t *testing.T) {
	db, mock, cleanup := newResponseRepoMock(t)
	defer cleanup()
	repo := NewFormResponseRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO form_responses")).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(101)))
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO form_response_fields")).
		WithArgs(int64(101), nil, "bairro", strRef("Centro"), nil, nil, nil, nil).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(501)))
	mock.ExpectCommit()

	response := &models.FormResponse{
		ProjetoID:     10,
		FormVersionID: 2,
		Status:        models.ResponseCompleted,
		Fields: []models.FormResponseField{
			{FieldName: "bairro", Value: strRef("Centro")},
		},
	}
	require.NoError(t, repo.Create(context.Background(), response))
	require.Equal(t, int64(101), response.ID)
	require.Equal(t, int64(501), response.Fields[0].ID)
	require.Equal(t, int64(101), response.Fields[0].ResponseID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestFormResponseRepositoryUpdateReplacesFields(t *testing.T) {
	db, mock, cleanup := newResponseRepoMock(t)
	defer cleanup()
	repo := NewFormResponseRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE form_responses SET")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM form_response_fields WHERE response_id = $1")).
		WithArgs(int64(101)).
		WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO form_response_fields")).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(601)))
	mock.ExpectCommit()

	response := &models.FormResponse{
		ID:     101,
		Status: models.ResponseCompleted,
		Fields: []models.FormResponseField{
			{FieldName: "opiniao", Value: strRef("reclamacao")},
		},
	}
	require.NoError(t, repo.Update(context.Background(), response))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestFormResponseRepositoryUpdateMissingRowRollsBack(t *testing.T) {
	db, mock, cleanup := newResponseRepoMock(t)
	defer cleanup()
	repo := NewFormResponseRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE form_responses SET")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := repo.Update(context.Background(), &models.FormResponse{ID: 999})
	require.Error(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestFormResponseRepositoryListQualifiesOnlyLeadingID(t *testing.T) {
	db, mock, cleanup := newResponseRepoMock(t)
	defer cleanup()
	repo := NewFormResponseRepository(db)

	now := time.Now().UTC()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM form_responses r WHERE 1=1 AND r.projeto_id = $1")).
		WithArgs(int64(10)).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	responseRows := sqlmock.NewRows([]string{
		"id", "projeto_id", "form_version_id", "user_id", "status", "started_at", "completed_at", "submitted_at",
		"ip", "user_agent", "source", "channel", "utm_source", "utm_medium", "utm_campaign",
		"device_type", "os", "browser", "locale", "timezone", "metadata", "created_at", "updated_at",
	}).AddRow(
		int64(101), int64(10), int64(2), nil, "COMPLETED", nil, nil, nil,
		nil, nil, nil, nil, nil, nil, nil,
		nil, nil, nil, nil, nil, nil, now, now,
	)
	// projeto_id and the other *_id columns must stay unqualified in the
	// select list.
	mock.ExpectQuery(regexp.QuoteMeta("SELECT r.id, projeto_id, form_version_id, user_id, status")).
		WithArgs(int64(10)).
		WillReturnRows(responseRows)

	fieldRows := sqlmock.NewRows([]string{
		"id", "response_id", "field_id", "field_name",
		"value", "value_number", "value_bool", "value_date", "value_json",
	}).AddRow(int64(501), int64(101), nil, "bairro", "Centro", nil, nil, nil, nil)
	mock.ExpectQuery(regexp.QuoteMeta("FROM form_response_fields WHERE response_id IN")).
		WithArgs(int64(101)).
		WillReturnRows(fieldRows)

	responses, total, err := repo.List(context.Background(), models.MetricsQuery{ProjetoID: 10}, 1, 20)
	require.NoError(t, err)
	require.Equal(t, 1, total)
	require.Len(t, responses, 1)
	require.Equal(t, "bairro", responses[0].Fields[0].FieldName)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestFormResponseRepositoryListOpinionsJoinsResponses(t *testing.T) {
	db, mock, cleanup := newResponseRepoMock(t)
	defer cleanup()
	repo := NewFormResponseRepository(db)

	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM form_response_fields ff")).
		WithArgs(int64(10), "texto_opiniao", start).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))

	created := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows([]string{
		"response_id", "value", "value_number", "value_bool", "value_date", "value_json", "created_at",
	}).
		AddRow(int64(102), "buraco na rua", nil, nil, nil, nil, created).
		AddRow(int64(101), nil, 7.0, nil, nil, nil, created)
	mock.ExpectQuery(regexp.QuoteMeta("ORDER BY r.created_at DESC, ff.response_id DESC")).
		WithArgs(int64(10), "texto_opiniao", start).
		WillReturnRows(rows)

	opinions, total, err := repo.ListOpinions(context.Background(), models.OpinionQuery{
		ProjetoID: 10,
		FieldName: "texto_opiniao",
		Start:     &start,
	}, 1, 20)
	require.NoError(t, err)
	require.Equal(t, 2, total)
	require.Len(t, opinions, 2)
	require.Equal(t, "buraco na rua", *opinions[0].Value)
	require.Equal(t, 7.0, *opinions[1].ValueNumber)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestFormResponseRepositoryFindFieldValueMatchesTypedSlots(t *testing.T) {
	db, mock, cleanup := newResponseRepoMock(t)
	defer cleanup()
	repo := NewFormResponseRepository(db)

	created := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	number := 1990.0
	mock.ExpectQuery(regexp.QuoteMeta("OR ff.value_number = $4) ORDER BY ff.response_id DESC LIMIT 1")).
		WithArgs(int64(10), "ano_nascimento", "1990", 1990.0).
		WillReturnRows(sqlmock.NewRows([]string{"response_id", "created_at"}).AddRow(int64(7), created))

	match, err := repo.FindFieldValue(context.Background(), models.FieldValueLookup{
		ProjetoID:   10,
		FieldName:   "ano_nascimento",
		Value:       "1990",
		ValueNumber: &number,
	})
	require.NoError(t, err)
	require.NotNil(t, match)
	require.Equal(t, int64(7), match.ResponseID)
	require.Equal(t, created, match.CreatedAt)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestFormResponseRepositoryFindFieldValueNoRows(t *testing.T) {
	db, mock, cleanup := newResponseRepoMock(t)
	defer cleanup()
	repo := NewFormResponseRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("ORDER BY ff.response_id DESC LIMIT 1")).
		WithArgs(int64(10), "bairro", "Centro").
		WillReturnRows(sqlmock.NewRows([]string{"response_id", "created_at"}))

	match, err := repo.FindFieldValue(context.Background(), models.FieldValueLookup{
		ProjetoID: 10,
		FieldName: "bairro",
		Value:     "Centro",
	})
	require.NoError(t, err)
	require.Nil(t, match)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestFormResponseRepositoryGetByIDLoadsFields(t *testing.T) {
	db, mock, cleanup := newResponseRepoMock(t)
	defer cleanup()
	repo := NewFormResponseRepository(db)

	now := time.Now().UTC()
	responseRows := sqlmock.NewRows([]string{
		"id", "projeto_id", "form_version_id", "user_id", "status", "started_at", "completed_at", "submitted_at",
		"ip", "user_agent", "source", "channel", "utm_source", "utm_medium", "utm_campaign",
		"device_type", "os", "browser", "locale", "timezone", "metadata", "created_at", "updated_at",
	}).AddRow(
		int64(101), int64(10), int64(2), nil, "COMPLETED", nil, nil, nil,
		nil, nil, nil, nil, nil, nil, nil,
		nil, nil, nil, nil, nil, nil, now, now,
	)
	mock.ExpectQuery(regexp.QuoteMeta("FROM form_responses WHERE id = $1")).
		WithArgs(int64(101)).
		WillReturnRows(responseRows)

	fieldRows := sqlmock.NewRows([]string{
		"id", "response_id", "field_id", "field_name",
		"value", "value_number", "value_bool", "value_date", "value_json",
	}).AddRow(int64(501), int64(101), nil, "bairro", "Centro", nil, nil, nil, nil)
	mock.ExpectQuery(regexp.QuoteMeta("FROM form_response_fields WHERE response_id IN")).
		WithArgs(int64(101)).
		WillReturnRows(fieldRows)

	response, err := repo.GetByID(context.Background(), 101)
	require.NoError(t, err)
	require.Len(t, response.Fields, 1)
	require.Equal(t, "bairro", response.Fields[0].FieldName)
	require.Equal(t, "Centro", *response.Fields[0].Value)
	require.NoError(t, mock.ExpectationsWereMet())
}
