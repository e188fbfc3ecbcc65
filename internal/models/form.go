package models

import (
	"encoding/json"
	"time"
)

// Form groups the versioned schemas of one survey.
type Form struct {
	ID        int64     `db:"id" json:"id"`
	ProjetoID int64     `db:"projeto_id" json:"projeto_id"`
	Name      string    `db:"name" json:"name"`
	Slug      string    `db:"slug" json:"slug"`
	Active    bool      `db:"active" json:"active"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// FormVersion snapshots a form's field schema. Responses reference exactly one
// version; the schema is immutable in practice once responses exist.
type FormVersion struct {
	ID        int64           `db:"id" json:"id"`
	FormID    int64           `db:"form_id" json:"form_id"`
	Version   int             `db:"version" json:"version"`
	Schema    json.RawMessage `db:"schema" json:"schema"`
	Published bool            `db:"published" json:"published"`
	CreatedAt time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt time.Time       `db:"updated_at" json:"updated_at"`
}

// FormField is one authored field of a form version.
type FormField struct {
	ID            int64    `db:"id" json:"id"`
	FormVersionID int64    `db:"form_version_id" json:"form_version_id"`
	Name          string   `db:"name" json:"name"`
	Label         string   `db:"label" json:"label"`
	Type          string   `db:"type" json:"type"`
	Required      *bool    `db:"required" json:"required,omitempty"`
	Min           *float64 `db:"min" json:"min,omitempty"`
	Max           *float64 `db:"max" json:"max,omitempty"`
	Regex         *string  `db:"regex" json:"regex,omitempty"`
	Position      int      `db:"position" json:"position"`
}
