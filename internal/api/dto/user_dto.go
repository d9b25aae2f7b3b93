package dto

import (
	"time"

	"github.com/spec-kit/install-tickets/internal/domain"
)

// LoginRequest payload for POST /login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginResponse is returned on successful authentication.
type LoginResponse struct {
	ID        int64       `json:"id"`
	Name      string      `json:"name"`
	Role      domain.Role `json:"role"`
	Token     string      `json:"token"`
	ExpiresAt time.Time   `json:"expires_at"`
}

// CreateUserRequest payload for POST /users.
type CreateUserRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

// ChangePasswordRequest payload for PUT /users/:id/password.
type ChangePasswordRequest struct {
	OldPassword string `json:"old_password"`
	NewPassword string `json:"new_password"`
}

// PushTokenRequest payload for PUT /users/:id/push-token.
type PushTokenRequest struct {
	PushToken string `json:"push_token"`
}

// UserResponse is the public view of an account.
type UserResponse struct {
	ID        int64       `json:"id"`
	Name      string      `json:"name"`
	Email     string      `json:"email"`
	Role      domain.Role `json:"role"`
	CreatedAt time.Time   `json:"created_at"`
}

// TechnicianResponse is the short form used for assignment pickers.
type TechnicianResponse struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// NewUserResponse maps a domain user.
func NewUserResponse(u *domain.User) UserResponse {
	return UserResponse{ID: u.ID, Name: u.Name, Email: u.Email, Role: u.Role, CreatedAt: u.CreatedAt}
}
