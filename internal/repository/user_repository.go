package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/keek-conecta/escuta-api/internal/models"
)

// UserRepository manages persistence for accounts and auth tokens.
type UserRepository struct {
	db *sqlx.DB
}

// NewUserRepository constructs a UserRepository.
func NewUserRepository(db *sqlx.DB) *UserRepository {
	return &UserRepository{db: db}
}

const userColumns = "id, name, email, password_hash, role, active, last_login_at, created_at, updated_at"

// GetByEmail loads one account by email.
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	err := r.db.GetContext(ctx, &user,
		fmt.Sprintf("SELECT %s FROM users WHERE LOWER(email) = LOWER($1)", userColumns), email)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("get user by email: %w", err)
	}
	return &user, nil
}

// GetByID loads one account.
func (r *UserRepository) GetByID(ctx context.Context, id int64) (*models.User, error) {
	var user models.User
	err := r.db.GetContext(ctx, &user,
		fmt.Sprintf("SELECT %s FROM users WHERE id = $1", userColumns), id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	return &user, nil
}

// List returns accounts, newest first.
func (r *UserRepository) List(ctx context.Context, page, pageSize int) ([]models.User, int, error) {
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 20
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM users"); err != nil {
		return nil, 0, fmt.Errorf("count users: %w", err)
	}

	query := fmt.Sprintf("SELECT %s FROM users ORDER BY created_at DESC LIMIT %d OFFSET %d",
		userColumns, pageSize, (page-1)*pageSize)
	var users []models.User
	if err := r.db.SelectContext(ctx, &users, query); err != nil {
		return nil, 0, fmt.Errorf("list users: %w", err)
	}
	return users, total, nil
}

// Create inserts an account.
func (r *UserRepository) Create(ctx context.Context, user *models.User) error {
	now := time.Now().UTC()
	user.CreatedAt = now
	user.UpdatedAt = now
	err := r.db.QueryRowContext(ctx,
		`INSERT INTO users (name, email, password_hash, role, active, created_at, updated_at)
         VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING id`,
		user.Name, user.Email, user.PasswordHash, user.Role, user.Active, user.CreatedAt, user.UpdatedAt,
	).Scan(&user.ID)
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

// Update rewrites an account's mutable columns.
func (r *UserRepository) Update(ctx context.Context, user *models.User) error {
	user.UpdatedAt = time.Now().UTC()
	result, err := r.db.ExecContext(ctx,
		"UPDATE users SET name = $1, email = $2, role = $3, active = $4, updated_at = $5 WHERE id = $6",
		user.Name, user.Email, user.Role, user.Active, user.UpdatedAt, user.ID)
	if err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	affected, _ := result.RowsAffected()
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// UpdatePassword replaces the stored password hash.
func (r *UserRepository) UpdatePassword(ctx context.Context, userID int64, hash string) error {
	result, err := r.db.ExecContext(ctx,
		"UPDATE users SET password_hash = $1, updated_at = $2 WHERE id = $3",
		hash, time.Now().UTC(), userID)
	if err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	affected, _ := result.RowsAffected()
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// TouchLastLogin records a successful login.
func (r *UserRepository) TouchLastLogin(ctx context.Context, userID int64, at time.Time) error {
	_, err := r.db.ExecContext(ctx,
		"UPDATE users SET last_login_at = $1 WHERE id = $2", at.UTC(), userID)
	if err != nil {
		return fmt.Errorf("touch last login: %w", err)
	}
	return nil
}

// SaveRefreshToken persists a refresh token.
func (r *UserRepository) SaveRefreshToken(ctx context.Context, token *models.RefreshToken) error {
	token.CreatedAt = time.Now().UTC()
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO refresh_tokens (id, user_id, token, expires_at, revoked, created_at)
         VALUES ($1, $2, $3, $4, FALSE, $5)`,
		token.ID, token.UserID, token.Token, token.ExpiresAt.UTC(), token.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert refresh token: %w", err)
	}
	return nil
}

// GetRefreshToken loads a non-revoked refresh token by its opaque value.
func (r *UserRepository) GetRefreshToken(ctx context.Context, token string) (*models.RefreshToken, error) {
	var stored models.RefreshToken
	err := r.db.GetContext(ctx, &stored,
		`SELECT id, user_id, token, expires_at, revoked, revoked_at, created_at
         FROM refresh_tokens WHERE token = $1 AND revoked = FALSE`,
		token)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("get refresh token: %w", err)
	}
	return &stored, nil
}

// RevokeRefreshToken marks a refresh token as revoked.
func (r *UserRepository) RevokeRefreshToken(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx,
		"UPDATE refresh_tokens SET revoked = TRUE, revoked_at = $1 WHERE id = $2",
		time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("revoke refresh token: %w", err)
	}
	return nil
}

// SavePasswordResetToken persists a single-use reset token.
func (r *UserRepository) SavePasswordResetToken(ctx context.Context, token *models.PasswordResetToken) error {
	token.CreatedAt = time.Now().UTC()
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO password_reset_tokens (id, user_id, token, expires_at, created_at)
         VALUES ($1, $2, $3, $4, $5)`,
		token.ID, token.UserID, token.Token, token.ExpiresAt.UTC(), token.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert password reset token: %w", err)
	}
	return nil
}

// ConsumePasswordResetToken atomically marks an unused, unexpired reset token
// as used and returns it.
func (r *UserRepository) ConsumePasswordResetToken(ctx context.Context, token string, now time.Time) (*models.PasswordResetToken, error) {
	var stored models.PasswordResetToken
	err := r.db.GetContext(ctx, &stored,
		`UPDATE password_reset_tokens SET used_at = $2
         WHERE token = $1 AND used_at IS NULL AND expires_at > $2
         RETURNING id, user_id, token, expires_at, used_at, created_at`,
		token, now.UTC())
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("consume password reset token: %w", err)
	}
	return &stored, nil
}
