package schema

import (
	"fmt"
	"net/mail"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// FieldKind is the closed set of field types a form schema may declare.
type FieldKind string

const (
	KindText    FieldKind = "text"
	KindEmail   FieldKind = "email"
	KindNumber  FieldKind = "number"
	KindDate    FieldKind = "date"
	KindBoolean FieldKind = "boolean"
)

// ParseFieldKind resolves a declared type string to a field kind. The set is
// closed: anything else is rejected.
func ParseFieldKind(raw string) (FieldKind, bool) {
	switch FieldKind(strings.ToLower(strings.TrimSpace(raw))) {
	case KindText:
		return KindText, true
	case KindEmail:
		return KindEmail, true
	case KindNumber:
		return KindNumber, true
	case KindDate:
		return KindDate, true
	case KindBoolean:
		return KindBoolean, true
	}
	return "", false
}

// IsString reports whether values of the kind are string-typed, i.e. whether
// a regex constraint may apply to it.
func (k FieldKind) IsString() bool {
	return k == KindText || k == KindEmail
}

// Definition is one authored field of a form version schema. Fields are
// required unless Required is explicitly false.
type Definition struct {
	Name     string   `json:"name"`
	Label    string   `json:"label,omitempty"`
	Type     string   `json:"type"`
	Required *bool    `json:"required,omitempty"`
	Min      *float64 `json:"min,omitempty"`
	Max      *float64 `json:"max,omitempty"`
	Regex    *string  `json:"regex,omitempty"`
}

func (d Definition) required() bool {
	return d.Required == nil || *d.Required
}

// FieldError reports one validation problem for one field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// FieldErrors is the full per-field error list of one validation run.
type FieldErrors []FieldError

func (e FieldErrors) Error() string {
	if len(e) == 0 {
		return "validation failed"
	}
	parts := make([]string, 0, len(e))
	for _, fe := range e {
		parts = append(parts, fmt.Sprintf("%s: %s", fe.Field, fe.Message))
	}
	return strings.Join(parts, "; ")
}

type fieldRule struct {
	def   Definition
	kind  FieldKind
	regex *regexp.Regexp
}

// Schema validates and coerces a raw answer bag against a list of field
// definitions.
type Schema struct {
	rules []fieldRule
}

// Options tune validation behaviour.
type Options struct {
	// IgnoreRequired relaxes required-ness for draft (STARTED) responses.
	// Present values are still type-checked.
	IgnoreRequired bool
}

// NewSchema compiles the definitions into a validation schema. An unknown
// field type or a regex on a non-string field is a construction error.
func NewSchema(defs []Definition) (*Schema, error) {
	rules := make([]fieldRule, 0, len(defs))
	for _, def := range defs {
		kind, ok := ParseFieldKind(def.Type)
		if !ok {
			return nil, fmt.Errorf("field %q: unknown field type %q", def.Name, def.Type)
		}
		rule := fieldRule{def: def, kind: kind}
		if def.Regex != nil {
			if !kind.IsString() {
				return nil, fmt.Errorf("field %q: regex constraint requires a string field, got %q", def.Name, def.Type)
			}
			compiled, err := regexp.Compile(*def.Regex)
			if err != nil {
				return nil, fmt.Errorf("field %q: invalid regex: %w", def.Name, err)
			}
			rule.regex = compiled
		}
		rules = append(rules, rule)
	}
	return &Schema{rules: rules}, nil
}

// Validate checks the raw answer bag. On success the returned map carries the
// same keys with values narrowed per definition (string, float64, bool or
// time.Time). On failure it returns the complete per-field error list.
func (s *Schema) Validate(raw map[string]interface{}, opts Options) (map[string]interface{}, FieldErrors) {
	clean := make(map[string]interface{}, len(raw))
	var errs FieldErrors

	for _, rule := range s.rules {
		value, present := raw[rule.def.Name]
		if !present || value == nil {
			if rule.def.required() && !opts.IgnoreRequired {
				errs = append(errs, FieldError{Field: rule.def.Name, Message: "required"})
			}
			continue
		}

		if IsStructured(value) {
			// Arrays and objects bypass scalar coercion and land in the
			// JSON slot downstream.
			clean[rule.def.Name] = value
			continue
		}

		coerced, err := coerce(rule.kind, value)
		if err != "" {
			errs = append(errs, FieldError{Field: rule.def.Name, Message: err})
			continue
		}

		if msg := rule.check(coerced); msg != "" {
			errs = append(errs, FieldError{Field: rule.def.Name, Message: msg})
			continue
		}

		clean[rule.def.Name] = coerced
	}

	if len(errs) > 0 {
		return nil, errs
	}
	return clean, nil
}

// check applies min/max/regex constraints on an already coerced value.
func (r fieldRule) check(value interface{}) string {
	switch v := value.(type) {
	case string:
		length := float64(len([]rune(v)))
		if r.def.Min != nil && length < *r.def.Min {
			return fmt.Sprintf("must have at least %s characters", trimFloat(*r.def.Min))
		}
		if r.def.Max != nil && length > *r.def.Max {
			return fmt.Sprintf("must have at most %s characters", trimFloat(*r.def.Max))
		}
		if r.regex != nil && !r.regex.MatchString(v) {
			return "invalid format"
		}
	case float64:
		if r.def.Min != nil && v < *r.def.Min {
			return fmt.Sprintf("must be at least %s", trimFloat(*r.def.Min))
		}
		if r.def.Max != nil && v > *r.def.Max {
			return fmt.Sprintf("must be at most %s", trimFloat(*r.def.Max))
		}
	}
	return ""
}

// IsStructured reports whether the value is an array or object rather than a
// scalar.
func IsStructured(value interface{}) bool {
	switch value.(type) {
	case []interface{}, map[string]interface{}, []string:
		return true
	}
	return false
}

func coerce(kind FieldKind, value interface{}) (interface{}, string) {
	switch kind {
	case KindText:
		s, ok := asString(value)
		if !ok {
			return nil, "must be a string"
		}
		return s, ""
	case KindEmail:
		s, ok := asString(value)
		if !ok {
			return nil, "must be a string"
		}
		if _, err := mail.ParseAddress(s); err != nil {
			return nil, "must be a valid email"
		}
		return s, ""
	case KindNumber:
		n, ok := asNumber(value)
		if !ok {
			return nil, "must be a number"
		}
		return n, ""
	case KindBoolean:
		b, ok := asBool(value)
		if !ok {
			return nil, "must be a boolean"
		}
		return b, ""
	case KindDate:
		t, ok := asDate(value)
		if !ok {
			return nil, "must be a valid date"
		}
		return t, ""
	}
	return nil, "unsupported field type"
}

func asString(value interface{}) (string, bool) {
	s, ok := value.(string)
	return s, ok
}

func asNumber(value interface{}) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case string:
		n, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return 0, false
		}
		return n, true
	}
	return 0, false
}

func asBool(value interface{}) (bool, bool) {
	switch v := value.(type) {
	case bool:
		return v, true
	case string:
		switch strings.TrimSpace(v) {
		case "true":
			return true, true
		case "false":
			return false, true
		}
	}
	return false, false
}

// dateLayouts are tried in order when parsing date strings.
var dateLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02",
}

func asDate(value interface{}) (time.Time, bool) {
	switch v := value.(type) {
	case time.Time:
		return v, true
	case string:
		for _, layout := range dateLayouts {
			if t, err := time.Parse(layout, strings.TrimSpace(v)); err == nil {
				return t, true
			}
		}
	}
	return time.Time{}, false
}

func trimFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
