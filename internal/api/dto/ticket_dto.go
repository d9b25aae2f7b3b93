package dto

import (
	"time"

	"github.com/spec-kit/install-tickets/internal/domain"
)

// CreateTicketRequest payload. ClientID selects an existing customer;
// otherwise Identifier registers a new one.
type CreateTicketRequest struct {
	Title        string     `json:"title"`
	Description  string     `json:"description"`
	Priority     string     `json:"priority"`
	RequestedBy  FlexibleID `json:"requestedBy"`
	ClientID     FlexibleID `json:"clientId"`
	CustomerName string     `json:"customerName"`
	Address      string     `json:"address"`
	Identifier   string     `json:"identifier"`
	PhoneNumber  string     `json:"phoneNumber"`
}

// ApproveTicketRequest payload.
type ApproveTicketRequest struct {
	AssignedTo FlexibleID `json:"assigned_to"`
}

// TechStatusRequest payload.
type TechStatusRequest struct {
	NewStatus string `json:"new_status"`
}

// TicketResponse is the full ticket representation.
type TicketResponse struct {
	ID              int64               `json:"id"`
	Title           string              `json:"title"`
	Description     string              `json:"description"`
	Priority        string              `json:"priority"`
	CustomerID      int64               `json:"customer_id"`
	CustomerName    string              `json:"customer_name"`
	CustomerAddress string              `json:"customer_address"`
	RequestedBy     int64               `json:"requested_by"`
	AssignedTo      *int64              `json:"assigned_to"`
	Status          domain.TicketStatus `json:"status"`
	TechStatus      *domain.TechStatus  `json:"tech_status"`
	ApprovedBy      *int64              `json:"approved_by"`
	ApprovedAt      *time.Time          `json:"approved_at"`
	StartedAt       *time.Time          `json:"started_at"`
	CompletedAt     *time.Time          `json:"completed_at"`
	LastUpdatedBy   *int64              `json:"last_updated_by"`
	CreatedAt       time.Time           `json:"created_at"`
	UpdatedAt       time.Time           `json:"updated_at"`
}

// TicketListItem adds the joined display names used by listings.
type TicketListItem struct {
	TicketResponse
	AssignedToName *string `json:"assigned_to_name,omitempty"`
	ApprovedByName *string `json:"approved_by_name,omitempty"`
}

// TicketHistoryResponse is one audit trail entry.
type TicketHistoryResponse struct {
	ID         int64                   `json:"id"`
	ChangedBy  int64                   `json:"changed_by"`
	ChangeType domain.TicketChangeType `json:"change_type"`
	OldValue   map[string]any          `json:"old_value"`
	NewValue   map[string]any          `json:"new_value"`
	CreatedAt  time.Time               `json:"created_at"`
}

// NewTicketResponse maps a domain ticket.
func NewTicketResponse(t *domain.Ticket) TicketResponse {
	return TicketResponse{
		ID:              t.ID,
		Title:           t.Title,
		Description:     t.Description,
		Priority:        t.Priority,
		CustomerID:      t.CustomerID,
		CustomerName:    t.CustomerName,
		CustomerAddress: t.CustomerAddress,
		RequestedBy:     t.RequestedBy,
		AssignedTo:      t.AssignedTo,
		Status:          t.Status,
		TechStatus:      t.TechStatus,
		ApprovedBy:      t.ApprovedBy,
		ApprovedAt:      t.ApprovedAt,
		StartedAt:       t.StartedAt,
		CompletedAt:     t.CompletedAt,
		LastUpdatedBy:   t.LastUpdatedBy,
		CreatedAt:       t.CreatedAt,
		UpdatedAt:       t.UpdatedAt,
	}
}

// NewTicketList maps listing views, never returning nil.
func NewTicketList(views []domain.TicketView) []TicketListItem {
	items := make([]TicketListItem, 0, len(views))
	for i := range views {
		items = append(items, TicketListItem{
			TicketResponse: NewTicketResponse(&views[i].Ticket),
			AssignedToName: views[i].AssignedToName,
			ApprovedByName: views[i].ApprovedByName,
		})
	}
	return items
}

// NewHistoryList maps history entries, never returning nil.
func NewHistoryList(entries []domain.TicketHistory) []TicketHistoryResponse {
	resp := make([]TicketHistoryResponse, 0, len(entries))
	for _, e := range entries {
		resp = append(resp, TicketHistoryResponse{
			ID:         e.ID,
			ChangedBy:  e.ChangedBy,
			ChangeType: e.ChangeType,
			OldValue:   e.OldValue,
			NewValue:   e.NewValue,
			CreatedAt:  e.CreatedAt,
		})
	}
	return resp
}
