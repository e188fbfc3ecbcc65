package schema

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func boolPtr(b bool) *bool          { return &b }
func floatPtr(f float64) *float64   { return &f }
func strPtr(s string) *string       { return &s }

func TestNewSchemaRejectsUnknownType(t *testing.T) {
	_, err := NewSchema([]Definition{{Name: "campo", Type: "geo_point"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown field type")
}

func TestNewSchemaRejectsRegexOnNonString(t *testing.T) {
	_, err := NewSchema([]Definition{{Name: "idade", Type: "number", Regex: strPtr(`^\d+$`)}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "regex constraint")
}

func TestNewSchemaRejectsInvalidRegex(t *testing.T) {
	_, err := NewSchema([]Definition{{Name: "nome", Type: "text", Regex: strPtr(`([`)}})
	require.Error(t, err)
}

func TestValidateCollectsAllFieldErrors(t *testing.T) {
	s, err := NewSchema([]Definition{
		{Name: "nome", Type: "text"},
		{Name: "email", Type: "email"},
		{Name: "idade", Type: "number", Min: floatPtr(0), Max: floatPtr(120)},
	})
	require.NoError(t, err)

	_, errs := s.Validate(map[string]interface{}{
		"email": "not-an-email",
		"idade": float64(300),
	}, Options{})

	require.Len(t, errs, 3)
	fields := map[string]string{}
	for _, fe := range errs {
		fields[fe.Field] = fe.Message
	}
	assert.Equal(t, "required", fields["nome"])
	assert.Equal(t, "must be a valid email", fields["email"])
	assert.Equal(t, "must be at most 120", fields["idade"])
}

func TestValidateIgnoreRequiredStillTypeChecks(t *testing.T) {
	s, err := NewSchema([]Definition{
		{Name: "nome", Type: "text"},
		{Name: "idade", Type: "number"},
	})
	require.NoError(t, err)

	clean, errs := s.Validate(map[string]interface{}{"idade": "abc"}, Options{IgnoreRequired: true})
	require.Len(t, errs, 1)
	assert.Equal(t, "idade", errs[0].Field)
	assert.Nil(t, clean)

	clean, errs = s.Validate(map[string]interface{}{}, Options{IgnoreRequired: true})
	require.Empty(t, errs)
	assert.Empty(t, clean)
}

func TestValidateOptionalFieldMayBeAbsent(t *testing.T) {
	s, err := NewSchema([]Definition{
		{Name: "nome", Type: "text"},
		{Name: "apelido", Type: "text", Required: boolPtr(false)},
	})
	require.NoError(t, err)

	clean, errs := s.Validate(map[string]interface{}{"nome": "Ana"}, Options{})
	require.Empty(t, errs)
	assert.Equal(t, "Ana", clean["nome"])
	_, present := clean["apelido"]
	assert.False(t, present)
}

func TestValidateCoercesTypes(t *testing.T) {
	s, err := NewSchema([]Definition{
		{Name: "idade", Type: "number"},
		{Name: "aceite", Type: "boolean"},
		{Name: "quando", Type: "date"},
	})
	require.NoError(t, err)

	clean, errs := s.Validate(map[string]interface{}{
		"idade":  "42",
		"aceite": "true",
		"quando": "2026-01-15",
	}, Options{})
	require.Empty(t, errs)

	assert.Equal(t, float64(42), clean["idade"])
	assert.Equal(t, true, clean["aceite"])
	assert.Equal(t, time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC), clean["quando"])
}

func TestValidateStringLengthBounds(t *testing.T) {
	s, err := NewSchema([]Definition{
		{Name: "bairro", Type: "text", Min: floatPtr(3), Max: floatPtr(5)},
	})
	require.NoError(t, err)

	_, errs := s.Validate(map[string]interface{}{"bairro": "ab"}, Options{})
	require.Len(t, errs, 1)
	assert.Equal(t, "must have at least 3 characters", errs[0].Message)

	_, errs = s.Validate(map[string]interface{}{"bairro": "abcdef"}, Options{})
	require.Len(t, errs, 1)
	assert.Equal(t, "must have at most 5 characters", errs[0].Message)

	clean, errs := s.Validate(map[string]interface{}{"bairro": "Luz"}, Options{})
	require.Empty(t, errs)
	assert.Equal(t, "Luz", clean["bairro"])
}

func TestValidateRegex(t *testing.T) {
	s, err := NewSchema([]Definition{
		{Name: "cep", Type: "text", Regex: strPtr(`^\d{5}-\d{3}$`)},
	})
	require.NoError(t, err)

	_, errs := s.Validate(map[string]interface{}{"cep": "12345678"}, Options{})
	require.Len(t, errs, 1)
	assert.Equal(t, "invalid format", errs[0].Message)

	clean, errs := s.Validate(map[string]interface{}{"cep": "01310-100"}, Options{})
	require.Empty(t, errs)
	assert.Equal(t, "01310-100", clean["cep"])
}
