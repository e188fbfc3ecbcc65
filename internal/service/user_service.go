package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/keek-conecta/escuta-api/internal/models"
	appErrors "github.com/keek-conecta/escuta-api/pkg/errors"
)

type userStore interface {
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	GetByID(ctx context.Context, id int64) (*models.User, error)
	List(ctx context.Context, page, pageSize int) ([]models.User, int, error)
	Create(ctx context.Context, user *models.User) error
	Update(ctx context.Context, user *models.User) error
	UpdatePassword(ctx context.Context, userID int64, hash string) error
}

// UserInput carries editable account attributes.
type UserInput struct {
	Name     string          `json:"name" validate:"required"`
	Email    string          `json:"email" validate:"required,email"`
	Password string          `json:"password,omitempty"`
	Role     models.UserRole `json:"role,omitempty"`
	Active   *bool           `json:"active,omitempty"`
}

// UserService manages platform accounts.
type UserService struct {
	store     userStore
	validator *validator.Validate
	logger    *zap.Logger
}

// NewUserService constructs a UserService.
func NewUserService(store userStore, validate *validator.Validate, logger *zap.Logger) *UserService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UserService{store: store, validator: validate, logger: logger}
}

// List returns accounts with pagination metadata.
func (s *UserService) List(ctx context.Context, page, pageSize int) ([]models.User, *models.Pagination, error) {
	users, total, err := s.store.List(ctx, page, pageSize)
	if err != nil {
		return nil, nil, err
	}
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 20
	}
	return users, &models.Pagination{Page: page, PageSize: pageSize, TotalCount: total}, nil
}

// Get loads one account.
func (s *UserService) Get(ctx context.Context, id int64) (*models.User, error) {
	user, err := s.store.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrNotFound
		}
		return nil, err
	}
	return user, nil
}

// Create registers an account. Email collisions surface as a conflict.
func (s *UserService) Create(ctx context.Context, input UserInput) (*models.User, error) {
	if err := s.validator.Struct(input); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid user payload")
	}
	if len(input.Password) < 8 {
		return nil, appErrors.Validation("password too short", []appErrors.FieldError{{Field: "password", Message: "must have at least 8 characters"}})
	}

	if _, err := s.store.GetByEmail(ctx, input.Email); err == nil {
		return nil, appErrors.Clone(appErrors.ErrConflict, "email already registered")
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to hash password")
	}

	role := input.Role
	if role == "" {
		role = models.RoleMember
	}
	user := &models.User{
		Name:         strings.TrimSpace(input.Name),
		Email:        strings.ToLower(strings.TrimSpace(input.Email)),
		PasswordHash: string(hash),
		Role:         role,
		Active:       true,
	}
	if input.Active != nil {
		user.Active = *input.Active
	}
	if err := s.store.Create(ctx, user); err != nil {
		return nil, err
	}
	s.logger.Info("user created", zap.Int64("user_id", user.ID))
	return user, nil
}

// Update rewrites an account's editable attributes.
func (s *UserService) Update(ctx context.Context, id int64, input UserInput) (*models.User, error) {
	user, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if name := strings.TrimSpace(input.Name); name != "" {
		user.Name = name
	}
	if email := strings.TrimSpace(input.Email); email != "" {
		user.Email = strings.ToLower(email)
	}
	if input.Role != "" {
		user.Role = input.Role
	}
	if input.Active != nil {
		user.Active = *input.Active
	}
	if err := s.store.Update(ctx, user); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrNotFound
		}
		return nil, err
	}
	return user, nil
}

// ChangePassword verifies the current password before replacing it.
func (s *UserService) ChangePassword(ctx context.Context, id int64, current, next string) error {
	user, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(current)); err != nil {
		return appErrors.Clone(appErrors.ErrInvalidCredentials, "current password is incorrect")
	}
	if len(next) < 8 {
		return appErrors.Validation("password too short", []appErrors.FieldError{{Field: "password", Message: "must have at least 8 characters"}})
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(next), bcrypt.DefaultCost)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to hash password")
	}
	return s.store.UpdatePassword(ctx, id, string(hash))
}
