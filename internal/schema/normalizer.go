package schema

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"time"
)

// ResponseFieldData is one answer laid out across the typed storage slots.
// Exactly one typed slot is populated for non-nil answers, plus the plain
// Value slot carrying the display text used by string-based aggregations.
type ResponseFieldData struct {
	Value       *string
	ValueNumber *float64
	ValueBool   *bool
	ValueDate   *time.Time
	ValueJSON   json.RawMessage
}

// BuildResponseField normalizes an answer into its storage layout. Passing a
// nil answer yields all-nil slots. The function is idempotent over the Value
// slot: feeding a produced display value back in yields the same layout.
func BuildResponseField(kind FieldKind, value interface{}) (ResponseFieldData, error) {
	var data ResponseFieldData
	if value == nil {
		return data, nil
	}

	switch kind {
	case KindText, KindEmail:
		s, ok := asString(value)
		if !ok {
			return data, fmt.Errorf("expected string value, got %T", value)
		}
		data.Value = &s

	case KindNumber:
		n, ok := asNumber(value)
		if !ok {
			return data, fmt.Errorf("expected numeric value, got %T", value)
		}
		if math.IsNaN(n) || math.IsInf(n, 0) {
			return data, fmt.Errorf("numeric value is not finite")
		}
		display := strconv.FormatFloat(n, 'f', -1, 64)
		data.Value = &display
		data.ValueNumber = &n

	case KindBoolean:
		b, ok := asBool(value)
		if !ok {
			return data, fmt.Errorf("expected boolean value, got %T", value)
		}
		display := strconv.FormatBool(b)
		data.Value = &display
		data.ValueBool = &b

	case KindDate:
		t, ok := asDate(value)
		if !ok {
			return data, fmt.Errorf("expected date value, got %T", value)
		}
		t = t.UTC()
		display := t.Format(time.RFC3339)
		data.Value = &display
		data.ValueDate = &t

	default:
		return data, fmt.Errorf("unknown field type %q", kind)
	}

	return data, nil
}

// BuildResponseFieldJSON stores a structured (array or object) answer in the
// JSON slot. The display slot carries the serialized form so string-based
// filters and exports still see a value.
func BuildResponseFieldJSON(value interface{}) (ResponseFieldData, error) {
	var data ResponseFieldData
	if value == nil {
		return data, nil
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return data, fmt.Errorf("marshal structured value: %w", err)
	}
	display := string(raw)
	data.Value = &display
	data.ValueJSON = raw
	return data, nil
}
