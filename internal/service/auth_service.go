package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/install-tickets/internal/auth"
	"github.com/spec-kit/install-tickets/internal/config"
	"github.com/spec-kit/install-tickets/internal/domain"
	"github.com/spec-kit/install-tickets/internal/repository"
	apperrors "github.com/spec-kit/install-tickets/pkg/util"
)

// AuthService coordinates login and operator account management.
type AuthService struct {
	store          repository.Store
	tokenMgr       *auth.TokenManager
	bcryptCost     int
	minPasswordLen int
	logger         *zap.Logger
}

// LoginResult is returned on successful authentication.
type LoginResult struct {
	User      *domain.User
	Token     string
	ExpiresAt time.Time
}

// CreateUserInput describes a new operator account.
type CreateUserInput struct {
	Name     string
	Email    string
	Password string
	Role     string
}

// NewAuthService builds the service.
func NewAuthService(cfg config.AuthConfig, store repository.Store, tokens *auth.TokenManager, logger *zap.Logger) *AuthService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if tokens == nil {
		tokens = auth.NewTokenManager(cfg.JWTSecret, cfg.TokenTTL())
	}
	minLen := cfg.MinPasswordLength
	if minLen <= 0 {
		minLen = 6
	}
	return &AuthService{
		store:          store,
		tokenMgr:       tokens,
		bcryptCost:     cfg.BcryptCost,
		minPasswordLen: minLen,
		logger:         logger,
	}
}

// Login authenticates an operator by email and password.
func (s *AuthService) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		return nil, apperrors.NewValidationError("email and password are required", nil)
	}

	user, err := s.store.Users().GetByEmail(ctx, email)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperrors.NewUnauthorized("invalid email or password")
	}
	if err != nil {
		return nil, err
	}
	if err := auth.ComparePassword(user.PasswordHash, password); err != nil {
		return nil, apperrors.NewUnauthorized("invalid email or password")
	}

	token, exp, err := s.tokenMgr.GenerateToken(user.ID, user.Role)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	s.logger.Info("user logged in", zap.Int64("user_id", user.ID), zap.String("role", string(user.Role)))
	return &LoginResult{User: user, Token: token, ExpiresAt: exp}, nil
}

// CreateUser lets an admin register another operator.
func (s *AuthService) CreateUser(ctx context.Context, principal domain.Principal, input CreateUserInput) (*domain.User, error) {
	if err := auth.RequireRole(principal, domain.RoleAdmin); err != nil {
		return nil, apperrors.NewForbidden("only admins can create users")
	}
	return s.RegisterUser(ctx, input)
}

// RegisterUser creates an account without an authenticated caller. It backs
// CreateUser and the bootstrap command.
func (s *AuthService) RegisterUser(ctx context.Context, input CreateUserInput) (*domain.User, error) {
	name := strings.TrimSpace(input.Name)
	email := normalizeEmail(input.Email)

	var missing []string
	for _, f := range []struct{ name, value string }{
		{"name", name},
		{"email", email},
		{"password", input.Password},
		{"role", input.Role},
	} {
		if strings.TrimSpace(f.value) == "" {
			missing = append(missing, f.name)
		}
	}
	if len(missing) > 0 {
		return nil, apperrors.NewValidationError("missing required fields", map[string]any{"fields": missing})
	}
	if !strings.Contains(email, "@") {
		return nil, apperrors.NewValidationError("invalid email", map[string]any{"email": email})
	}
	role, ok := domain.ParseRole(input.Role)
	if !ok {
		return nil, apperrors.NewValidationError("role must be admin, seller or tech", map[string]any{"role": input.Role})
	}
	if err := s.checkPasswordLength(input.Password); err != nil {
		return nil, err
	}

	if _, err := s.store.Users().GetByEmail(ctx, email); err == nil {
		return nil, apperrors.NewValidationError("email already registered", map[string]any{"email": email})
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}

	hash, err := auth.HashPassword(input.Password, s.bcryptCost)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}

	user := &domain.User{
		Name:         name,
		Email:        email,
		PasswordHash: hash,
		Role:         role,
	}
	if err := s.store.Users().Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, apperrors.NewValidationError("email already registered", map[string]any{"email": email})
		}
		return nil, err
	}
	s.logger.Info("user created", zap.Int64("user_id", user.ID), zap.String("role", string(role)))
	return user, nil
}

// ChangePassword updates a password. Admins may reset anyone's password
// without the old one; everyone else must prove the current password.
func (s *AuthService) ChangePassword(ctx context.Context, principal domain.Principal, userID int64, oldPassword, newPassword string) error {
	if err := auth.RequireSelfOrAdmin(principal, userID); err != nil {
		return err
	}
	if err := s.checkPasswordLength(newPassword); err != nil {
		return err
	}

	user, err := s.store.Users().GetByID(ctx, userID)
	if err != nil {
		return mapStoreError(err, "user", map[string]any{"user_id": userID})
	}

	if !principal.Is(domain.RoleAdmin) {
		if oldPassword == "" {
			return apperrors.NewValidationError("old_password is required", map[string]any{"fields": []string{"old_password"}})
		}
		if err := auth.ComparePassword(user.PasswordHash, oldPassword); err != nil {
			return apperrors.NewUnauthorized("old password is incorrect")
		}
	}

	hash, err := auth.HashPassword(newPassword, s.bcryptCost)
	if err != nil {
		return apperrors.NewInternalError(err)
	}
	if err := s.store.Users().UpdatePassword(ctx, userID, hash); err != nil {
		return mapStoreError(err, "user", map[string]any{"user_id": userID})
	}
	s.logger.Info("password changed", zap.Int64("user_id", userID), zap.Int64("by", principal.UserID))
	return nil
}

// ListUsers returns every operator to admins.
func (s *AuthService) ListUsers(ctx context.Context, principal domain.Principal) ([]domain.User, error) {
	if err := auth.RequireRole(principal, domain.RoleAdmin); err != nil {
		return nil, err
	}
	return s.store.Users().List(ctx)
}

// ListTechnicians returns the users approvals can be assigned to.
func (s *AuthService) ListTechnicians(ctx context.Context, principal domain.Principal) ([]domain.User, error) {
	if err := auth.RequireRole(principal, domain.RoleAdmin, domain.RoleSeller); err != nil {
		return nil, err
	}
	return s.store.Users().ListByRole(ctx, domain.RoleTech)
}

// UpdatePushToken registers (or clears, when empty) the caller's device token.
func (s *AuthService) UpdatePushToken(ctx context.Context, principal domain.Principal, userID int64, token string) error {
	if err := auth.RequireSelf(principal, userID); err != nil {
		return err
	}
	var value *string
	if trimmed := strings.TrimSpace(token); trimmed != "" {
		value = &trimmed
	}
	if err := s.store.Users().UpdatePushToken(ctx, userID, value); err != nil {
		return mapStoreError(err, "user", map[string]any{"user_id": userID})
	}
	return nil
}

// TokenManager exposes the underlying token manager for middleware usage.
func (s *AuthService) TokenManager() *auth.TokenManager {
	return s.tokenMgr
}

func (s *AuthService) checkPasswordLength(password string) error {
	if len(password) < s.minPasswordLen {
		return apperrors.NewValidationError("password is too short",
			map[string]any{"min_length": s.minPasswordLen})
	}
	if len(password) > auth.MaxPasswordBytes {
		return apperrors.NewValidationError("password is too long",
			map[string]any{"max_length": auth.MaxPasswordBytes})
	}
	return nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
