package product

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// ErrNotFound is returned when a requested product does not exist.
var ErrNotFound = errors.New("product not found")

// Status describes the sale state of a product.
type Status string

const (
	StatusInStock  Status = "IN-STOCK"
	StatusReserved Status = "RESERVED"
	StatusSold     Status = "SOLD"
)

// ParseStatus validates a raw status string.
func ParseStatus(s string) (Status, bool) {
	switch Status(s) {
	case StatusInStock, StatusReserved, StatusSold:
		return Status(s), true
	}
	return "", false
}

// StatusForStock derives the product status from its stock level. A product
// is SOLD exactly when its stock reaches zero. Every code path that changes
// stock must derive the new status through this function rather than setting
// it independently.
func StatusForStock(stock int) Status {
	if stock == 0 {
		return StatusSold
	}
	return StatusInStock
}

// Product is a catalog item available for purchase.
type Product struct {
	ID        string
	Name      string
	Price     decimal.Decimal
	Stock     int
	Status    Status
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Update holds a partial product update. Nil fields are left unchanged.
type Update struct {
	Name   *string
	Price  *decimal.Decimal
	Stock  *int
	Status *Status
}

// IsEmpty reports whether the update would change nothing.
func (u Update) IsEmpty() bool {
	return u.Name == nil && u.Price == nil && u.Stock == nil && u.Status == nil
}

// Repository defines persistence operations for the product catalog.
type Repository interface {
	List(ctx context.Context, page, limit int) ([]Product, int64, error)
	Search(ctx context.Context, term string) ([]Product, error)
	GetByID(ctx context.Context, id string) (*Product, error)
	GetByIDs(ctx context.Context, ids []string) ([]Product, error)
	Update(ctx context.Context, id string, upd Update) (*Product, error)
}
