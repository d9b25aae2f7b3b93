package events

import (
	"time"

	"github.com/google/uuid"

	"github.com/spec-kit/install-tickets/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventTicketCreated           EventType = "ticket_created"
	EventTicketApproved          EventType = "ticket_approved"
	EventTicketRejected          EventType = "ticket_rejected"
	EventTicketTechStatusChanged EventType = "ticket_tech_status_changed"
)

// Actor identifies who caused an event.
type Actor struct {
	UserID int64       `json:"user_id"`
	Role   domain.Role `json:"role"`
}

// Event represents a domain event emitted by services.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	TicketID  int64       `json:"ticket_id"`
	Actor     Actor       `json:"actor"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// New stamps an event with a fresh id and the current time.
func New(eventType EventType, ticketID int64, actor domain.Principal, payload interface{}) Event {
	return Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		TicketID:  ticketID,
		Actor:     Actor{UserID: actor.UserID, Role: actor.Role},
		Timestamp: time.Now().UTC(),
		Payload:   payload,
	}
}

// TicketCreatedPayload payload.
type TicketCreatedPayload struct {
	Title       string `json:"title"`
	Priority    string `json:"priority"`
	CustomerID  int64  `json:"customer_id"`
	RequestedBy int64  `json:"requested_by"`
}

// TicketApprovedPayload payload.
type TicketApprovedPayload struct {
	AssignedTo      int64  `json:"assigned_to"`
	CustomerName    string `json:"customer_name"`
	CustomerAddress string `json:"customer_address"`
}

// TicketRejectedPayload payload.
type TicketRejectedPayload struct {
	RequestedBy int64 `json:"requested_by"`
}

// TicketTechStatusChangedPayload payload.
type TicketTechStatusChangedPayload struct {
	Title       string             `json:"title"`
	OldStatus   *domain.TechStatus `json:"old_status,omitempty"`
	NewStatus   domain.TechStatus  `json:"new_status"`
	TechName    string             `json:"tech_name"`
	RequestedBy int64              `json:"requested_by"`
	ApprovedBy  *int64             `json:"approved_by,omitempty"`
}
