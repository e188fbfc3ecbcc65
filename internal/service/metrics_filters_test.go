package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/keek-conecta/escuta-api/internal/models"
)

func TestMergeFilterValuesDedupesKeepingFirst(t *testing.T) {
	merged := mergeFilterValues([]string{"a", "b"}, []string{"b", "c"})
	assert.Equal(t, []string{"a", "b", "c"}, merged)
}

func TestMergeFilterValuesTrimsAndDropsEmpty(t *testing.T) {
	merged := mergeFilterValues([]string{" saude ", "", "  "}, []string{"saude", "transporte"})
	assert.Equal(t, []string{"saude", "transporte"}, merged)
}

func TestMergeFilterValuesNilWhenEmpty(t *testing.T) {
	assert.Nil(t, mergeFilterValues(nil, []string{"", " "}))
}

func TestNormalizeFieldFiltersMergesAliases(t *testing.T) {
	filters := normalizeFieldFilters(models.FieldFilterInput{
		Temas:       []string{"saude"},
		Tema:        []string{"educacao", "saude"},
		TipoOpiniao: []string{"reclamacao"},
		Tipo:        []string{"elogio"},
		Bairros:     []string{"Centro"},
	})
	assert.Equal(t, []string{"saude", "educacao"}, filters.Temas)
	assert.Equal(t, []string{"reclamacao", "elogio"}, filters.Tipos)
	assert.Equal(t, []string{"Centro"}, filters.Bairros)
	assert.Nil(t, filters.Generos)
}

func TestIsUnknownLabelStripsAccents(t *testing.T) {
	assert.True(t, isUnknownLabel("Não informado"))
	assert.True(t, isUnknownLabel("nao informado"))
	assert.True(t, isUnknownLabel("  NÃO INFORMADO  "))
	assert.False(t, isUnknownLabel("informado"))
}

func TestParseAgeLabel(t *testing.T) {
	cases := []struct {
		label string
		want  ageRange
		ok    bool
	}{
		{"Ate 18", ageRange{0, 18}, true},
		{"ate 25", ageRange{0, 25}, true},
		{"Até18", ageRange{0, 18}, true},
		{"60+", ageRange{60, models.MaxPlausibleAge}, true},
		{"19-25", ageRange{19, 25}, true},
		{"25-19", ageRange{19, 25}, true},
		{"26 a 35", ageRange{26, 35}, true},
		{"abc", ageRange{}, false},
		{"", ageRange{}, false},
		{"a-b", ageRange{}, false},
	}
	for _, tc := range cases {
		got, ok := parseAgeLabel(tc.label)
		require.Equal(t, tc.ok, ok, tc.label)
		if ok {
			assert.Equal(t, tc.want, got, tc.label)
		}
	}
}

func TestBirthYearsForLabels(t *testing.T) {
	years := birthYearsForLabels([]string{"19-21"}, 2026)
	assert.Equal(t, []string{"2007", "2006", "2005"}, years)
}

func TestBirthYearsForLabelsSkipsUnparseable(t *testing.T) {
	years := birthYearsForLabels([]string{"??", "Ate 1"}, 2026)
	assert.Equal(t, []string{"2026", "2025"}, years)
}

func TestBuildPredicatesUnknownSentinel(t *testing.T) {
	reference := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	predicates := buildPredicates(models.FieldFilters{
		Generos: []string{"Feminino", "Não informado"},
	}, reference)

	require.Len(t, predicates, 1)
	assert.Equal(t, "genero", predicates[0].FieldName)
	assert.Equal(t, []string{"Feminino"}, predicates[0].Values)
	assert.True(t, predicates[0].IncludeUnknown)
}

func TestBuildPredicatesAgeExpandsToBirthYears(t *testing.T) {
	reference := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	predicates := buildPredicates(models.FieldFilters{
		FaixaEtaria: []string{"19-20"},
	}, reference)

	require.Len(t, predicates, 1)
	assert.Equal(t, "ano_nascimento", predicates[0].FieldName)
	assert.Equal(t, []string{"2007", "2006"}, predicates[0].Values)
}

func TestBuildPredicatesTextSearchIsSubstring(t *testing.T) {
	predicates := buildPredicates(models.FieldFilters{
		TextoOpiniao: []string{"iluminacao"},
	}, time.Now())

	require.Len(t, predicates, 1)
	assert.Equal(t, "texto_opiniao", predicates[0].FieldName)
	assert.True(t, predicates[0].Substring)
}

func TestBuildPredicatesTextTermsMatchAny(t *testing.T) {
	predicates := buildPredicates(models.FieldFilters{
		TextoOpiniao: []string{"asfalto", "buraco"},
	}, time.Now())

	// One predicate with both terms: a response mentioning either passes.
	require.Len(t, predicates, 1)
	assert.Equal(t, []string{"asfalto", "buraco"}, predicates[0].Values)
	assert.True(t, predicates[0].Substring)
}

func TestBuildPredicatesOrder(t *testing.T) {
	predicates := buildPredicates(models.FieldFilters{
		Temas:   []string{"saude"},
		Tipos:   []string{"elogio"},
		Bairros: []string{"Centro"},
	}, time.Now())

	require.Len(t, predicates, 3)
	assert.Equal(t, "opiniao", predicates[0].FieldName)
	assert.Equal(t, "tipo_opiniao", predicates[1].FieldName)
	assert.Equal(t, "bairro", predicates[2].FieldName)
}
