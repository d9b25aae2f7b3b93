package repository

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/install-tickets/internal/domain"
)

// CustomerRepository persists customers. Identifier is unique at the table level.
type CustomerRepository interface {
	Create(ctx context.Context, customer *domain.Customer) error
	GetByID(ctx context.Context, id int64) (*domain.Customer, error)
	GetByIdentifier(ctx context.Context, identifier string) (*domain.Customer, error)
	UpdateContact(ctx context.Context, id int64, name, address, phone string) error
}

type customerRepository struct {
	db DBTX
}

// NewCustomerRepository returns a Postgres-backed implementation.
func NewCustomerRepository(db DBTX) CustomerRepository {
	return &customerRepository{db: db}
}

const customerColumns = `id, name, address, identifier, phone_number, created_at, updated_at`

func (r *customerRepository) Create(ctx context.Context, customer *domain.Customer) error {
	const query = `
        INSERT INTO customers (name, address, identifier, phone_number)
        VALUES ($1, $2, $3, $4)
        RETURNING id, created_at, updated_at`
	err := r.db.QueryRow(ctx, query,
		customer.Name,
		customer.Address,
		customer.Identifier,
		customer.PhoneNumber,
	).Scan(&customer.ID, &customer.CreatedAt, &customer.UpdatedAt)
	return translate(err)
}

func (r *customerRepository) GetByID(ctx context.Context, id int64) (*domain.Customer, error) {
	const query = `SELECT ` + customerColumns + ` FROM customers WHERE id=$1`
	return scanCustomer(r.db.QueryRow(ctx, query, id))
}

func (r *customerRepository) GetByIdentifier(ctx context.Context, identifier string) (*domain.Customer, error) {
	const query = `SELECT ` + customerColumns + ` FROM customers WHERE identifier=$1`
	return scanCustomer(r.db.QueryRow(ctx, query, identifier))
}

func (r *customerRepository) UpdateContact(ctx context.Context, id int64, name, address, phone string) error {
	const query = `
        UPDATE customers SET name=$1, address=$2, phone_number=$3, updated_at=NOW()
        WHERE id=$4`
	cmd, err := r.db.Exec(ctx, query, name, address, phone, id)
	if err != nil {
		return translate(err)
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanCustomer(row pgx.Row) (*domain.Customer, error) {
	var c domain.Customer
	if err := row.Scan(
		&c.ID,
		&c.Name,
		&c.Address,
		&c.Identifier,
		&c.PhoneNumber,
		&c.CreatedAt,
		&c.UpdatedAt,
	); err != nil {
		return nil, translate(err)
	}
	return &c, nil
}
