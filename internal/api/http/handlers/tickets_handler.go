package handlers

import (
	"context"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/install-tickets/internal/api/dto"
	"github.com/spec-kit/install-tickets/internal/auth"
	"github.com/spec-kit/install-tickets/internal/domain"
	"github.com/spec-kit/install-tickets/internal/service"
)

// TicketsHandler manages the ticket lifecycle endpoints.
type TicketsHandler struct {
	service *service.TicketService
}

// NewTicketsHandler constructs handler.
func NewTicketsHandler(ticketService *service.TicketService) *TicketsHandler {
	return &TicketsHandler{service: ticketService}
}

// Create handles POST /tickets.
func (h *TicketsHandler) Create(c *fiber.Ctx) error {
	principal, err := auth.MustPrincipal(c)
	if err != nil {
		return err
	}
	var req dto.CreateTicketRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	requestedBy, err := req.RequestedBy.Resolve("requestedBy")
	if err != nil {
		return err
	}
	clientID, err := req.ClientID.Resolve("clientId")
	if err != nil {
		return err
	}

	ticket, err := h.service.Create(c.UserContext(), principal, service.TicketCreateInput{
		Title:        req.Title,
		Description:  req.Description,
		Priority:     req.Priority,
		RequestedBy:  requestedBy,
		CustomerID:   clientID,
		CustomerName: req.CustomerName,
		Address:      req.Address,
		Identifier:   req.Identifier,
		PhoneNumber:  req.PhoneNumber,
	})
	if err != nil {
		return err
	}
	return created(c, dto.NewTicketResponse(ticket))
}

// ListAll handles GET /tickets.
func (h *TicketsHandler) ListAll(c *fiber.Ctx) error {
	principal, err := auth.MustPrincipal(c)
	if err != nil {
		return err
	}
	views, err := h.service.ListAll(c.UserContext(), principal)
	if err != nil {
		return err
	}
	return ok(c, dto.NewTicketList(views))
}

// ListRequested handles GET /tickets/requested/:id.
func (h *TicketsHandler) ListRequested(c *fiber.Ctx) error {
	return h.listFor(c, h.service.ListRequested)
}

// ListAssigned handles GET /tickets/assigned/:id.
func (h *TicketsHandler) ListAssigned(c *fiber.Ctx) error {
	return h.listFor(c, h.service.ListAssigned)
}

type scopedList func(ctx context.Context, principal domain.Principal, userID int64) ([]domain.TicketView, error)

func (h *TicketsHandler) listFor(c *fiber.Ctx, list scopedList) error {
	principal, err := auth.MustPrincipal(c)
	if err != nil {
		return err
	}
	userID, err := dto.ParseID(c.Params("id"), "id")
	if err != nil {
		return err
	}
	views, err := list(c.UserContext(), principal, userID)
	if err != nil {
		return err
	}
	return ok(c, dto.NewTicketList(views))
}

// Get handles GET /tickets/:id.
func (h *TicketsHandler) Get(c *fiber.Ctx) error {
	principal, ticketID, err := ticketRequest(c)
	if err != nil {
		return err
	}
	ticket, err := h.service.Get(c.UserContext(), principal, ticketID)
	if err != nil {
		return err
	}
	return ok(c, dto.NewTicketResponse(ticket))
}

// History handles GET /tickets/:id/history.
func (h *TicketsHandler) History(c *fiber.Ctx) error {
	principal, ticketID, err := ticketRequest(c)
	if err != nil {
		return err
	}
	entries, err := h.service.History(c.UserContext(), principal, ticketID)
	if err != nil {
		return err
	}
	return ok(c, dto.NewHistoryList(entries))
}

// Approve handles PUT /tickets/:id/approve.
func (h *TicketsHandler) Approve(c *fiber.Ctx) error {
	principal, ticketID, err := ticketRequest(c)
	if err != nil {
		return err
	}
	var req dto.ApproveTicketRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	assignee, err := req.AssignedTo.Resolve("assigned_to")
	if err != nil {
		return err
	}
	ticket, err := h.service.Approve(c.UserContext(), principal, ticketID, assignee)
	if err != nil {
		return err
	}
	return ok(c, dto.NewTicketResponse(ticket))
}

// Reject handles PUT /tickets/:id/reject.
func (h *TicketsHandler) Reject(c *fiber.Ctx) error {
	principal, ticketID, err := ticketRequest(c)
	if err != nil {
		return err
	}
	ticket, err := h.service.Reject(c.UserContext(), principal, ticketID)
	if err != nil {
		return err
	}
	return ok(c, dto.NewTicketResponse(ticket))
}

// SetTechStatus handles PUT /tickets/:id/tech-status.
func (h *TicketsHandler) SetTechStatus(c *fiber.Ctx) error {
	principal, ticketID, err := ticketRequest(c)
	if err != nil {
		return err
	}
	var req dto.TechStatusRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	ticket, err := h.service.SetTechStatus(c.UserContext(), principal, ticketID, req.NewStatus)
	if err != nil {
		return err
	}
	return ok(c, dto.NewTicketResponse(ticket))
}

func ticketRequest(c *fiber.Ctx) (domain.Principal, int64, error) {
	principal, err := auth.MustPrincipal(c)
	if err != nil {
		return domain.Principal{}, 0, err
	}
	ticketID, err := dto.ParseID(c.Params("id"), "ticket id")
	if err != nil {
		return domain.Principal{}, 0, err
	}
	return principal, ticketID, nil
}
