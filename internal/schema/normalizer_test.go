package schema

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildResponseFieldNilValue(t *testing.T) {
	data, err := BuildResponseField(KindText, nil)
	require.NoError(t, err)
	assert.Nil(t, data.Value)
	assert.Nil(t, data.ValueNumber)
	assert.Nil(t, data.ValueBool)
	assert.Nil(t, data.ValueDate)
	assert.Nil(t, data.ValueJSON)
}

func TestBuildResponseFieldNumber(t *testing.T) {
	data, err := BuildResponseField(KindNumber, float64(42))
	require.NoError(t, err)
	require.NotNil(t, data.Value)
	require.NotNil(t, data.ValueNumber)
	assert.Equal(t, "42", *data.Value)
	assert.Equal(t, float64(42), *data.ValueNumber)
	assert.Nil(t, data.ValueBool)
	assert.Nil(t, data.ValueDate)
}

func TestBuildResponseFieldNumberFromStringRoundTrip(t *testing.T) {
	data, err := BuildResponseField(KindNumber, "42")
	require.NoError(t, err)
	require.NotNil(t, data.Value)

	again, err := BuildResponseField(KindNumber, *data.Value)
	require.NoError(t, err)
	assert.Equal(t, *data.Value, *again.Value)
	assert.Equal(t, *data.ValueNumber, *again.ValueNumber)
}

func TestBuildResponseFieldRejectsNonFinite(t *testing.T) {
	_, err := BuildResponseField(KindNumber, "NaN")
	require.Error(t, err)
}

func TestBuildResponseFieldBoolean(t *testing.T) {
	data, err := BuildResponseField(KindBoolean, true)
	require.NoError(t, err)
	require.NotNil(t, data.Value)
	require.NotNil(t, data.ValueBool)
	assert.Equal(t, "true", *data.Value)
	assert.True(t, *data.ValueBool)

	again, err := BuildResponseField(KindBoolean, *data.Value)
	require.NoError(t, err)
	assert.True(t, *again.ValueBool)
}

func TestBuildResponseFieldDate(t *testing.T) {
	data, err := BuildResponseField(KindDate, "2026-01-15T10:30:00Z")
	require.NoError(t, err)
	require.NotNil(t, data.Value)
	require.NotNil(t, data.ValueDate)
	assert.Equal(t, "2026-01-15T10:30:00Z", *data.Value)
	assert.Equal(t, time.Date(2026, 1, 15, 10, 30, 0, 0, time.UTC), *data.ValueDate)

	again, err := BuildResponseField(KindDate, *data.Value)
	require.NoError(t, err)
	assert.Equal(t, *data.ValueDate, *again.ValueDate)
}

func TestBuildResponseFieldTypeMismatch(t *testing.T) {
	_, err := BuildResponseField(KindText, float64(1))
	require.Error(t, err)

	_, err = BuildResponseField(KindBoolean, "sim")
	require.Error(t, err)

	_, err = BuildResponseField(KindDate, "ontem")
	require.Error(t, err)
}

func TestBuildResponseFieldJSON(t *testing.T) {
	data, err := BuildResponseFieldJSON([]string{"saude", "transporte"})
	require.NoError(t, err)
	assert.JSONEq(t, `["saude","transporte"]`, string(data.ValueJSON))
	require.NotNil(t, data.Value)
	assert.Equal(t, `["saude","transporte"]`, *data.Value)
	assert.Nil(t, data.ValueNumber)
}

func TestBuildResponseFieldJSONNil(t *testing.T) {
	data, err := BuildResponseFieldJSON(nil)
	require.NoError(t, err)
	assert.Nil(t, data.Value)
	assert.Nil(t, data.ValueJSON)
}
