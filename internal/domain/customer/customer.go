package customer

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// ErrNotFound is returned when a requested customer does not exist.
var ErrNotFound = errors.New("customer not found")

// Customer holds an account that orders are placed against. Balance is a
// signed amount: under the default policy it may go negative.
type Customer struct {
	ID        string
	FirstName string
	LastName  string
	Balance   decimal.Decimal
	CreatedAt time.Time
	UpdatedAt time.Time
}

// FullName returns the display name used in search results and order listings.
func (c Customer) FullName() string {
	return c.FirstName + " " + c.LastName
}

// Repository defines read operations for customers. Balance mutations happen
// only inside the order commit transaction, owned by the order store.
type Repository interface {
	GetByID(ctx context.Context, id string) (*Customer, error)
	Search(ctx context.Context, term string) ([]Customer, error)
}
