package dto

import (
	"time"

	"github.com/spec-kit/install-tickets/internal/domain"
)

// CustomerResponse is the client record returned by search.
type CustomerResponse struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Address     string    `json:"address"`
	Identifier  string    `json:"identifier"`
	PhoneNumber string    `json:"phone_number"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// NewCustomerResponse maps a domain customer.
func NewCustomerResponse(c *domain.Customer) CustomerResponse {
	return CustomerResponse{
		ID:          c.ID,
		Name:        c.Name,
		Address:     c.Address,
		Identifier:  c.Identifier,
		PhoneNumber: c.PhoneNumber,
		UpdatedAt:   c.UpdatedAt,
	}
}
