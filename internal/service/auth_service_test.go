package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/keek-conecta/escuta-api/internal/models"
	appErrors "github.com/keek-conecta/escuta-api/pkg/errors"
)

type fakeAuthStore struct {
	user          *models.User
	refreshTokens map[string]*models.RefreshToken
	resetTokens   map[string]*models.PasswordResetToken
	revoked       []string
	passwords     map[int64]string
}

func newFakeAuthStore(user *models.User) *fakeAuthStore {
	return &fakeAuthStore{
		user:          user,
		refreshTokens: map[string]*models.RefreshToken{},
		resetTokens:   map[string]*models.PasswordResetToken{},
		passwords:     map[int64]string{},
	}
}

func (f *fakeAuthStore) GetByEmail(_ context.Context, email string) (*models.User, error) {
	if f.user != nil && f.user.Email == email {
		return f.user, nil
	}
	return nil, sql.ErrNoRows
}

func (f *fakeAuthStore) GetByID(_ context.Context, id int64) (*models.User, error) {
	if f.user != nil && f.user.ID == id {
		return f.user, nil
	}
	return nil, sql.ErrNoRows
}

func (f *fakeAuthStore) TouchLastLogin(_ context.Context, _ int64, _ time.Time) error { return nil }

func (f *fakeAuthStore) UpdatePassword(_ context.Context, userID int64, hash string) error {
	f.passwords[userID] = hash
	return nil
}

func (f *fakeAuthStore) SaveRefreshToken(_ context.Context, token *models.RefreshToken) error {
	f.refreshTokens[token.Token] = token
	return nil
}

func (f *fakeAuthStore) GetRefreshToken(_ context.Context, token string) (*models.RefreshToken, error) {
	if stored, ok := f.refreshTokens[token]; ok {
		return stored, nil
	}
	return nil, sql.ErrNoRows
}

func (f *fakeAuthStore) RevokeRefreshToken(_ context.Context, id string) error {
	f.revoked = append(f.revoked, id)
	return nil
}

func (f *fakeAuthStore) SavePasswordResetToken(_ context.Context, token *models.PasswordResetToken) error {
	f.resetTokens[token.Token] = token
	return nil
}

func (f *fakeAuthStore) ConsumePasswordResetToken(_ context.Context, token string, now time.Time) (*models.PasswordResetToken, error) {
	stored, ok := f.resetTokens[token]
	if !ok || stored.ExpiresAt.Before(now) {
		return nil, sql.ErrNoRows
	}
	delete(f.resetTokens, token)
	return stored, nil
}

type fakeAccessStore struct {
	levels map[int64]models.AccessLevel
}

func (f *fakeAccessStore) AccessFor(_ context.Context, _ int64) (map[int64]models.AccessLevel, error) {
	return f.levels, nil
}

func testUser(t *testing.T) *models.User {
	hash, err := bcrypt.GenerateFromPassword([]byte("correct horse"), bcrypt.MinCost)
	require.NoError(t, err)
	return &models.User{
		ID:           1,
		Name:         "Ana",
		Email:        "ana@example.com",
		PasswordHash: string(hash),
		Role:         models.RoleMember,
		Active:       true,
	}
}

func newTestAuthService(store *fakeAuthStore, access *fakeAccessStore) *AuthService {
	return NewAuthService(store, access, nil, nil, AuthConfig{
		AccessTokenSecret: "test-secret",
		Issuer:            "escuta-api",
	})
}

func TestLoginIssuesTokensWithProjectLevels(t *testing.T) {
	store := newFakeAuthStore(testUser(t))
	access := &fakeAccessStore{levels: map[int64]models.AccessLevel{10: models.AccessEditor}}
	svc := newTestAuthService(store, access)

	resp, err := svc.Login(context.Background(), models.LoginRequest{Email: "ana@example.com", Password: "correct horse"})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.AccessToken)
	assert.NotEmpty(t, resp.RefreshToken)
	assert.Equal(t, int64(1), resp.User.ID)

	claims, err := svc.ValidateAccessToken(resp.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, int64(1), claims.UserID)
	assert.Equal(t, models.AccessEditor, claims.ProjectLevels[10])
}

func TestLoginRejectsBadPassword(t *testing.T) {
	svc := newTestAuthService(newFakeAuthStore(testUser(t)), &fakeAccessStore{})

	_, err := svc.Login(context.Background(), models.LoginRequest{Email: "ana@example.com", Password: "wrong"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidCredentials.Code, appErrors.FromError(err).Code)
}

func TestLoginRejectsInactiveAccount(t *testing.T) {
	user := testUser(t)
	user.Active = false
	svc := newTestAuthService(newFakeAuthStore(user), &fakeAccessStore{})

	_, err := svc.Login(context.Background(), models.LoginRequest{Email: "ana@example.com", Password: "correct horse"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInactiveAccount.Code, appErrors.FromError(err).Code)
}

func TestRefreshRotatesToken(t *testing.T) {
	store := newFakeAuthStore(testUser(t))
	svc := newTestAuthService(store, &fakeAccessStore{})

	first, err := svc.Login(context.Background(), models.LoginRequest{Email: "ana@example.com", Password: "correct horse"})
	require.NoError(t, err)

	second, err := svc.Refresh(context.Background(), models.RefreshTokenRequest{RefreshToken: first.RefreshToken})
	require.NoError(t, err)
	assert.NotEqual(t, first.RefreshToken, second.RefreshToken)
	require.Len(t, store.revoked, 1)
}

func TestRefreshRejectsExpiredToken(t *testing.T) {
	store := newFakeAuthStore(testUser(t))
	store.refreshTokens["old"] = &models.RefreshToken{
		ID:        "rt-1",
		UserID:    1,
		Token:     "old",
		ExpiresAt: time.Now().UTC().Add(-time.Hour),
	}
	svc := newTestAuthService(store, &fakeAccessStore{})

	_, err := svc.Refresh(context.Background(), models.RefreshTokenRequest{RefreshToken: "old"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrUnauthorized.Code, appErrors.FromError(err).Code)
}

func TestPasswordResetFlow(t *testing.T) {
	store := newFakeAuthStore(testUser(t))
	svc := newTestAuthService(store, &fakeAccessStore{})

	token, err := svc.RequestPasswordReset(context.Background(), "ana@example.com")
	require.NoError(t, err)
	require.NotEmpty(t, token)

	require.NoError(t, svc.ResetPassword(context.Background(), token, "new password 1"))
	require.NotEmpty(t, store.passwords[1])

	// The token is single use.
	err = svc.ResetPassword(context.Background(), token, "another password")
	require.Error(t, err)
}

func TestPasswordResetUnknownEmailIsSilent(t *testing.T) {
	svc := newTestAuthService(newFakeAuthStore(testUser(t)), &fakeAccessStore{})
	token, err := svc.RequestPasswordReset(context.Background(), "nobody@example.com")
	require.NoError(t, err)
	assert.Empty(t, token)
}

func TestValidateAccessTokenRejectsTampered(t *testing.T) {
	svc := newTestAuthService(newFakeAuthStore(testUser(t)), &fakeAccessStore{})
	_, err := svc.ValidateAccessToken("not-a-token")
	require.Error(t, err)
}
