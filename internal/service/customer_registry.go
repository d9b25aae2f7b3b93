package service

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/spec-kit/install-tickets/internal/domain"
	"github.com/spec-kit/install-tickets/internal/identifier"
	"github.com/spec-kit/install-tickets/internal/repository"
	apperrors "github.com/spec-kit/install-tickets/pkg/util"
)

// CustomerInput references either an existing customer (CustomerID set) or a
// new one (Identifier set). Contact fields are applied in both cases.
type CustomerInput struct {
	CustomerID  *int64
	Identifier  string
	Name        string
	Address     string
	PhoneNumber string
}

// ResolveCustomer returns the customer a ticket should reference, creating or
// refreshing it through customers. It must run inside the caller's transaction.
func ResolveCustomer(ctx context.Context, customers repository.CustomerRepository, in CustomerInput) (*domain.Customer, error) {
	if in.CustomerID != nil {
		return refreshCustomer(ctx, customers, *in.CustomerID, in)
	}

	normalized := identifier.Normalize(in.Identifier)
	if !identifier.IsValid(normalized) {
		return nil, apperrors.NewInvalidIdentifier("identifier must have 11 or 14 digits")
	}

	existing, err := customers.GetByIdentifier(ctx, normalized)
	switch {
	case err == nil:
		return nil, apperrors.NewConflict("identifier already registered",
			map[string]any{"customer_id": existing.ID})
	case !errors.Is(err, repository.ErrNotFound):
		return nil, err
	}

	customer := &domain.Customer{
		Name:        strings.TrimSpace(in.Name),
		Address:     strings.TrimSpace(in.Address),
		Identifier:  normalized,
		PhoneNumber: strings.TrimSpace(in.PhoneNumber),
	}
	if err := customers.Create(ctx, customer); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, apperrors.NewConflict("identifier already registered", nil)
		}
		return nil, err
	}
	return customer, nil
}

func refreshCustomer(ctx context.Context, customers repository.CustomerRepository, id int64, in CustomerInput) (*domain.Customer, error) {
	customer, err := customers.GetByID(ctx, id)
	if err != nil {
		return nil, mapStoreError(err, "customer", map[string]any{"customer_id": id})
	}
	customer.Name = strings.TrimSpace(in.Name)
	customer.Address = strings.TrimSpace(in.Address)
	customer.PhoneNumber = strings.TrimSpace(in.PhoneNumber)
	if err := customers.UpdateContact(ctx, id, customer.Name, customer.Address, customer.PhoneNumber); err != nil {
		return nil, mapStoreError(err, "customer", map[string]any{"customer_id": id})
	}
	return customer, nil
}

// CustomerService serves customer lookups outside ticket creation.
type CustomerService struct {
	store  repository.Store
	logger *zap.Logger
}

// NewCustomerService constructs the service.
func NewCustomerService(store repository.Store, logger *zap.Logger) *CustomerService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CustomerService{store: store, logger: logger}
}

// SearchByIdentifier finds a customer by a raw, possibly formatted, identifier.
func (s *CustomerService) SearchByIdentifier(ctx context.Context, principal domain.Principal, raw string) (*domain.Customer, error) {
	if !principal.Is(domain.RoleAdmin) && !principal.Is(domain.RoleSeller) {
		return nil, apperrors.NewForbidden("only admins and sellers can search customers")
	}
	normalized := identifier.Normalize(raw)
	if normalized == "" {
		return nil, apperrors.NewValidationError("identifier is required", nil)
	}
	if !identifier.IsValid(normalized) {
		return nil, apperrors.NewInvalidIdentifier("identifier must have 11 or 14 digits")
	}
	customer, err := s.store.Customers().GetByIdentifier(ctx, normalized)
	if err != nil {
		return nil, mapStoreError(err, "customer", map[string]any{"identifier": normalized})
	}
	s.logger.Debug("customer lookup",
		zap.Int64("customer_id", customer.ID),
		zap.String("kind", string(identifier.KindOf(normalized))))
	return customer, nil
}
