package models

import (
	"encoding/json"
	"time"
)

// FormResponseStatus is the lifecycle state of one submission.
type FormResponseStatus string

const (
	ResponseStarted   FormResponseStatus = "STARTED"
	ResponseCompleted FormResponseStatus = "COMPLETED"
)

// Valid reports whether the status is a known lifecycle state.
func (s FormResponseStatus) Valid() bool {
	return s == ResponseStarted || s == ResponseCompleted
}

// FormResponse is one submission instance of a form version.
type FormResponse struct {
	ID            int64              `db:"id" json:"id"`
	ProjetoID     int64              `db:"projeto_id" json:"projeto_id"`
	FormVersionID int64              `db:"form_version_id" json:"form_version_id"`
	UserID        *int64             `db:"user_id" json:"user_id,omitempty"`
	Status        FormResponseStatus `db:"status" json:"status"`
	StartedAt     *time.Time         `db:"started_at" json:"started_at,omitempty"`
	CompletedAt   *time.Time         `db:"completed_at" json:"completed_at,omitempty"`
	SubmittedAt   *time.Time         `db:"submitted_at" json:"submitted_at,omitempty"`
	IP            *string            `db:"ip" json:"ip,omitempty"`
	UserAgent     *string            `db:"user_agent" json:"user_agent,omitempty"`
	Source        *string            `db:"source" json:"source,omitempty"`
	Channel       *string            `db:"channel" json:"channel,omitempty"`
	UTMSource     *string            `db:"utm_source" json:"utm_source,omitempty"`
	UTMMedium     *string            `db:"utm_medium" json:"utm_medium,omitempty"`
	UTMCampaign   *string            `db:"utm_campaign" json:"utm_campaign,omitempty"`
	DeviceType    *string            `db:"device_type" json:"device_type,omitempty"`
	OS            *string            `db:"os" json:"os,omitempty"`
	Browser       *string            `db:"browser" json:"browser,omitempty"`
	Locale        *string            `db:"locale" json:"locale,omitempty"`
	Timezone      *string            `db:"timezone" json:"timezone,omitempty"`
	Metadata      json.RawMessage    `db:"metadata" json:"metadata,omitempty"`
	CreatedAt     time.Time          `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time          `db:"updated_at" json:"updated_at"`
	Fields        []FormResponseField `db:"-" json:"fields,omitempty"`
}

// FormResponseField is one answer to one field of one response, stored as an
// entity-attribute-value row with parallel typed value slots. Exactly the slot
// matching the field's declared type (plus the display value) is populated.
type FormResponseField struct {
	ID          int64           `db:"id" json:"id"`
	ResponseID  int64           `db:"response_id" json:"response_id"`
	FieldID     *int64          `db:"field_id" json:"field_id,omitempty"`
	FieldName   string          `db:"field_name" json:"field_name"`
	Value       *string         `db:"value" json:"value,omitempty"`
	ValueNumber *float64        `db:"value_number" json:"value_number,omitempty"`
	ValueBool   *bool           `db:"value_bool" json:"value_bool,omitempty"`
	ValueDate   *time.Time      `db:"value_date" json:"value_date,omitempty"`
	ValueJSON   json.RawMessage `db:"value_json" json:"value_json,omitempty"`
}

// OpinionQuery scopes the per-field opinions listing to one project field,
// optionally bounded by response creation time.
type OpinionQuery struct {
	ProjetoID int64
	FieldName string
	Start     *time.Time
	End       *time.Time
}

// OpinionRow is one answer row joined with its response creation time.
type OpinionRow struct {
	ResponseID  int64           `db:"response_id"`
	Value       *string         `db:"value"`
	ValueNumber *float64        `db:"value_number"`
	ValueBool   *bool           `db:"value_bool"`
	ValueDate   *time.Time      `db:"value_date"`
	ValueJSON   json.RawMessage `db:"value_json"`
	CreatedAt   time.Time       `db:"created_at"`
}

// OpinionItem is one listing entry with the answer collapsed to whichever
// typed slot is populated.
type OpinionItem struct {
	ResponseID int64       `json:"response_id"`
	Value      interface{} `json:"value"`
	CreatedAt  time.Time   `json:"created_at"`
}

// FieldValueLookup describes one value-exists check: the trimmed raw value
// plus whichever typed coercions parse from it. A zero FormVersionID spans
// every version of the project.
type FieldValueLookup struct {
	ProjetoID     int64
	FormVersionID int64
	FieldName     string
	Value         string
	ValueNumber   *float64
	ValueBool     *bool
	ValueDate     *time.Time
}

// FieldValueMatch locates the newest answer row satisfying a lookup.
type FieldValueMatch struct {
	ResponseID int64     `db:"response_id" json:"response_id"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}

// FieldExistsResult reports whether any stored answer matches a lookup and,
// when one does, which response carries it.
type FieldExistsResult struct {
	Exists     bool       `json:"exists"`
	ResponseID *int64     `json:"response_id,omitempty"`
	CreatedAt  *time.Time `json:"created_at,omitempty"`
}
