package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/install-tickets/internal/api/dto"
	"github.com/spec-kit/install-tickets/internal/auth"
	"github.com/spec-kit/install-tickets/internal/service"
)

// ClientsHandler serves customer lookups.
type ClientsHandler struct {
	customers *service.CustomerService
}

// NewClientsHandler constructs handler.
func NewClientsHandler(customers *service.CustomerService) *ClientsHandler {
	return &ClientsHandler{customers: customers}
}

// Search handles GET /clients/search?identifier=.
func (h *ClientsHandler) Search(c *fiber.Ctx) error {
	principal, err := auth.MustPrincipal(c)
	if err != nil {
		return err
	}
	customer, err := h.customers.SearchByIdentifier(c.UserContext(), principal, c.Query("identifier"))
	if err != nil {
		return err
	}
	return ok(c, dto.NewCustomerResponse(customer))
}
