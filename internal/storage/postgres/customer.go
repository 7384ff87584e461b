package postgres

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/shop-core/internal/domain/customer"
)

const (
	customerColumns = `id, firstname, lastname, balance, created_at, updated_at`

	getCustomerByIDSQL = `SELECT ` + customerColumns + ` FROM customers WHERE id = $1`

	searchCustomersSQL = `SELECT ` + customerColumns + ` FROM customers
		WHERE firstname || ' ' || lastname ILIKE '%' || $1 || '%' ORDER BY lastname, firstname`
)

var _ customer.Repository = (*CustomerRepository)(nil)

// CustomerRepository implements customer.Repository backed by PostgreSQL.
type CustomerRepository struct {
	pool *pgxpool.Pool
}

// NewCustomerRepository returns a CustomerRepository that uses the given pool.
func NewCustomerRepository(pool *pgxpool.Pool) *CustomerRepository {
	return &CustomerRepository{pool: pool}
}

// GetByID returns a single customer by its identifier.
func (r *CustomerRepository) GetByID(ctx context.Context, id string) (*customer.Customer, error) {
	rows, err := r.pool.Query(ctx, getCustomerByIDSQL, id)
	if err != nil {
		return nil, errors.Wrapf(err, "get customer %q", id)
	}

	c, err := pgx.CollectExactlyOneRow(rows, scanCustomer)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, customer.ErrNotFound
		}
		return nil, errors.Wrapf(err, "get customer %q", id)
	}
	return &c, nil
}

// Search returns customers whose full name contains term.
func (r *CustomerRepository) Search(ctx context.Context, term string) ([]customer.Customer, error) {
	rows, err := r.pool.Query(ctx, searchCustomersSQL, term)
	if err != nil {
		return nil, errors.Wrap(err, "search customers")
	}
	return pgx.CollectRows(rows, scanCustomer)
}

func scanCustomer(row pgx.CollectableRow) (customer.Customer, error) {
	var c customer.Customer
	err := row.Scan(&c.ID, &c.FirstName, &c.LastName, &c.Balance, &c.CreatedAt, &c.UpdatedAt)
	return c, err
}
