package models

import "time"

// Projeto is a tenant workspace owning forms, chats and collected responses.
type Projeto struct {
	ID          int64     `db:"id" json:"id"`
	Name        string    `db:"name" json:"name"`
	Description *string   `db:"description" json:"description,omitempty"`
	Active      bool      `db:"active" json:"active"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

// AccessLevel grades what a user may do inside a project.
type AccessLevel string

const (
	AccessViewer AccessLevel = "VIEWER"
	AccessEditor AccessLevel = "EDITOR"
	AccessAdmin  AccessLevel = "ADMIN"
)

// ProjectAccess links a user to a project with an access level.
type ProjectAccess struct {
	UserID    int64       `db:"user_id" json:"user_id"`
	ProjetoID int64       `db:"projeto_id" json:"projeto_id"`
	Level     AccessLevel `db:"level" json:"level"`
}

// Allows reports whether the granted level satisfies the required one.
func (a AccessLevel) Allows(required AccessLevel) bool {
	rank := map[AccessLevel]int{AccessViewer: 1, AccessEditor: 2, AccessAdmin: 3}
	return rank[a] >= rank[required]
}
