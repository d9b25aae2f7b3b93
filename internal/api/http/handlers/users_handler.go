package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/install-tickets/internal/api/dto"
	"github.com/spec-kit/install-tickets/internal/auth"
	"github.com/spec-kit/install-tickets/internal/service"
)

// UsersHandler exposes login and operator account endpoints.
type UsersHandler struct {
	auth *service.AuthService
}

// NewUsersHandler constructs handler.
func NewUsersHandler(authService *service.AuthService) *UsersHandler {
	return &UsersHandler{auth: authService}
}

// Login handles POST /login.
func (h *UsersHandler) Login(c *fiber.Ctx) error {
	var req dto.LoginRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	result, err := h.auth.Login(c.UserContext(), req.Email, req.Password)
	if err != nil {
		return err
	}
	return ok(c, dto.LoginResponse{
		ID:        result.User.ID,
		Name:      result.User.Name,
		Role:      result.User.Role,
		Token:     result.Token,
		ExpiresAt: result.ExpiresAt,
	})
}

// Create handles POST /users.
func (h *UsersHandler) Create(c *fiber.Ctx) error {
	principal, err := auth.MustPrincipal(c)
	if err != nil {
		return err
	}
	var req dto.CreateUserRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	user, err := h.auth.CreateUser(c.UserContext(), principal, service.CreateUserInput{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
		Role:     req.Role,
	})
	if err != nil {
		return err
	}
	return created(c, dto.NewUserResponse(user))
}

// List handles GET /users.
func (h *UsersHandler) List(c *fiber.Ctx) error {
	principal, err := auth.MustPrincipal(c)
	if err != nil {
		return err
	}
	users, err := h.auth.ListUsers(c.UserContext(), principal)
	if err != nil {
		return err
	}
	resp := make([]dto.UserResponse, 0, len(users))
	for i := range users {
		resp = append(resp, dto.NewUserResponse(&users[i]))
	}
	return ok(c, resp)
}

// Technicians handles GET /users/technicians.
func (h *UsersHandler) Technicians(c *fiber.Ctx) error {
	principal, err := auth.MustPrincipal(c)
	if err != nil {
		return err
	}
	techs, err := h.auth.ListTechnicians(c.UserContext(), principal)
	if err != nil {
		return err
	}
	resp := make([]dto.TechnicianResponse, 0, len(techs))
	for _, t := range techs {
		resp = append(resp, dto.TechnicianResponse{ID: t.ID, Name: t.Name})
	}
	return ok(c, resp)
}

// ChangePassword handles PUT /users/:id/password.
func (h *UsersHandler) ChangePassword(c *fiber.Ctx) error {
	principal, err := auth.MustPrincipal(c)
	if err != nil {
		return err
	}
	userID, err := dto.ParseID(c.Params("id"), "id")
	if err != nil {
		return err
	}
	var req dto.ChangePasswordRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	if err := h.auth.ChangePassword(c.UserContext(), principal, userID, req.OldPassword, req.NewPassword); err != nil {
		return err
	}
	return ok(c, fiber.Map{"id": userID})
}

// UpdatePushToken handles PUT /users/:id/push-token.
func (h *UsersHandler) UpdatePushToken(c *fiber.Ctx) error {
	principal, err := auth.MustPrincipal(c)
	if err != nil {
		return err
	}
	userID, err := dto.ParseID(c.Params("id"), "id")
	if err != nil {
		return err
	}
	var req dto.PushTokenRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	if err := h.auth.UpdatePushToken(c.UserContext(), principal, userID, req.PushToken); err != nil {
		return err
	}
	return ok(c, fiber.Map{"id": userID})
}
