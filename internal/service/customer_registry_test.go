package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/install-tickets/internal/domain"
	"github.com/spec-kit/install-tickets/internal/repository"
	"github.com/spec-kit/install-tickets/internal/repository/repotest"
	apperrors "github.com/spec-kit/install-tickets/pkg/util"
)

func TestResolveCustomer(t *testing.T) {
	store := repotest.New()
	ctx := context.Background()

	created, err := ResolveCustomer(ctx, store.Customers(), CustomerInput{
		Identifier:  "12.345.678/0001-95",
		Name:        " Acme ",
		Address:     "St 1",
		PhoneNumber: "111",
	})
	require.NoError(t, err)
	assert.NotZero(t, created.ID)
	assert.Equal(t, "12345678000195", created.Identifier)
	assert.Equal(t, "Acme", created.Name)

	refreshed, err := ResolveCustomer(ctx, store.Customers(), CustomerInput{
		CustomerID:  &created.ID,
		Name:        "Acme SA",
		Address:     "St 2",
		PhoneNumber: "222",
	})
	require.NoError(t, err)
	assert.Equal(t, created.ID, refreshed.ID)
	assert.Equal(t, "12345678000195", refreshed.Identifier)

	stored, err := store.Customers().GetByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "Acme SA", stored.Name)
	assert.Equal(t, "St 2", stored.Address)
	assert.Equal(t, "222", stored.PhoneNumber)
}

func TestResolveCustomerErrors(t *testing.T) {
	store := repotest.New()
	ctx := context.Background()
	_, err := ResolveCustomer(ctx, store.Customers(), CustomerInput{Identifier: "12345678901", Name: "A"})
	require.NoError(t, err)

	_, err = ResolveCustomer(ctx, store.Customers(), CustomerInput{Identifier: "123.456.789-01", Name: "B"})
	requireCode(t, err, apperrors.CodeConflict)

	_, err = ResolveCustomer(ctx, store.Customers(), CustomerInput{Identifier: "", Name: "B"})
	requireCode(t, err, apperrors.CodeInvalidIdentifier)

	_, err = ResolveCustomer(ctx, store.Customers(), CustomerInput{Identifier: "123456789012", Name: "B"})
	requireCode(t, err, apperrors.CodeInvalidIdentifier)

	_, err = ResolveCustomer(ctx, store.Customers(), CustomerInput{CustomerID: int64Ptr(404), Name: "B"})
	requireCode(t, err, apperrors.CodeNotFound)
}

// racingCustomers hides existing rows from the pre-check so the insert hits
// the unique constraint, as a concurrent transaction would.
type racingCustomers struct {
	repository.CustomerRepository
}

func (racingCustomers) GetByIdentifier(context.Context, string) (*domain.Customer, error) {
	return nil, repository.ErrNotFound
}

func TestResolveCustomerLostRaceIsConflict(t *testing.T) {
	store := repotest.New()
	ctx := context.Background()
	_, err := ResolveCustomer(ctx, store.Customers(), CustomerInput{Identifier: "12345678901", Name: "A"})
	require.NoError(t, err)

	_, err = ResolveCustomer(ctx, racingCustomers{store.Customers()}, CustomerInput{Identifier: "12345678901", Name: "B"})
	requireCode(t, err, apperrors.CodeConflict)
	assert.Len(t, store.AllCustomers(), 1)
}

func TestSearchByIdentifier(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ticket := f.createTicket(t)
	customers := NewCustomerService(f.store, nil)

	stored, _ := f.store.Customers().GetByID(ctx, ticket.CustomerID)

	found, err := customers.SearchByIdentifier(ctx, principal(f.seller), stored.Identifier[:3]+"."+stored.Identifier[3:])
	require.NoError(t, err)
	assert.Equal(t, ticket.CustomerID, found.ID)

	_, err = customers.SearchByIdentifier(ctx, principal(f.admin), "99999999999")
	requireCode(t, err, apperrors.CodeNotFound)

	_, err = customers.SearchByIdentifier(ctx, principal(f.admin), "")
	requireCode(t, err, apperrors.CodeValidation)

	_, err = customers.SearchByIdentifier(ctx, principal(f.admin), "123")
	requireCode(t, err, apperrors.CodeInvalidIdentifier)

	_, err = customers.SearchByIdentifier(ctx, principal(f.tech), stored.Identifier)
	requireCode(t, err, apperrors.CodeForbidden)
}
