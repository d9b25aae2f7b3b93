package domain

import "time"

// Customer is the party a ticket is raised for. Identifier holds digits only.
type Customer struct {
	ID          int64
	Name        string
	Address     string
	Identifier  string
	PhoneNumber string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
