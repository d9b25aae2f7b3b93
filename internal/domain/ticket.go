package domain

import (
	"strings"
	"time"
)

// TicketStatus is the admin-controlled approval state.
type TicketStatus string

const (
	TicketStatusPending  TicketStatus = "PENDING"
	TicketStatusApproved TicketStatus = "APPROVED"
	TicketStatusRejected TicketStatus = "REJECTED"
)

// TechStatus tracks the technician's field progress. A nil *TechStatus means
// no work has been reported.
type TechStatus string

const (
	TechStatusInProgress TechStatus = "IN_PROGRESS"
	TechStatusCompleted  TechStatus = "COMPLETED"
)

// ParseTechStatus accepts only the values a technician may set.
func ParseTechStatus(raw string) (TechStatus, bool) {
	switch TechStatus(strings.ToUpper(strings.TrimSpace(raw))) {
	case TechStatusInProgress:
		return TechStatusInProgress, true
	case TechStatusCompleted:
		return TechStatusCompleted, true
	default:
		return "", false
	}
}

// Ticket is the aggregate for installation/support jobs.
type Ticket struct {
	ID              int64
	Title           string
	Description     string
	Priority        string
	CustomerID      int64
	CustomerName    string
	CustomerAddress string
	RequestedBy     int64
	AssignedTo      *int64
	Status          TicketStatus
	TechStatus      *TechStatus
	ApprovedBy      *int64
	ApprovedAt      *time.Time
	StartedAt       *time.Time
	CompletedAt     *time.Time
	LastUpdatedBy   *int64
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// IsAssignedTo reports whether userID is the ticket's assignee.
func (t *Ticket) IsAssignedTo(userID int64) bool {
	return t.AssignedTo != nil && *t.AssignedTo == userID
}

// TicketView adds joined display names for listings.
type TicketView struct {
	Ticket
	AssignedToName *string
	ApprovedByName *string
}

// TechWorkContext is what a technician's status update is checked against.
type TechWorkContext struct {
	TicketID    int64
	Title       string
	RequestedBy int64
	ApprovedBy  *int64
	Status      TicketStatus
	TechStatus  *TechStatus
	TechName    string
}
