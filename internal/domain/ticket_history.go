package domain

import "time"

// TicketChangeType captures which transition a history entry records.
type TicketChangeType string

const (
	ChangeTypeCreated    TicketChangeType = "CREATED"
	ChangeTypeApproved   TicketChangeType = "APPROVED"
	ChangeTypeRejected   TicketChangeType = "REJECTED"
	ChangeTypeTechStatus TicketChangeType = "TECH_STATUS"
)

// TicketHistory is an immutable audit trail entry.
type TicketHistory struct {
	ID         int64
	TicketID   int64
	ChangedBy  int64
	ChangeType TicketChangeType
	OldValue   map[string]any
	NewValue   map[string]any
	CreatedAt  time.Time
}
