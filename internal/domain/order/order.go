package order

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// Sentinel errors for order validation and persistence.
var (
	ErrEmptyItems          = errors.New("items required")
	ErrMissingCustomer     = errors.New("customerId required")
	ErrNotFound            = errors.New("order not found")
	ErrInsufficientBalance = errors.New("insufficient balance")
)

// InvalidQuantityError indicates a line item with a non-positive quantity
// or a missing product reference.
type InvalidQuantityError struct {
	ProductID string
}

func (e *InvalidQuantityError) Error() string {
	return fmt.Sprintf("quantity must be greater than 0 for product %s", e.ProductID)
}

// InsufficientStockError indicates a line item requesting more units than the
// product currently has. It is produced both by the read-phase check and by
// the conditional decrement inside the commit transaction, so concurrent
// orders racing over the same product surface the same error.
type InsufficientStockError struct {
	ProductID string
	Requested int
	Available int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("requested quantity (%d) for product %s exceeds available stock (%d)",
		e.Requested, e.ProductID, e.Available)
}

// LineItem is a (product, quantity) pair within an order. Name is the product
// name snapshotted at order creation, so later renames do not rewrite history.
type LineItem struct {
	ProductID string `json:"productId"`
	Name      string `json:"name,omitempty"`
	Quantity  int    `json:"quantity"`
}

// Order is a priced, committed purchase. FinalPrice = TotalPrice - Discount,
// floored at zero.
type Order struct {
	ID             string
	CustomerID     string
	CustomerName   string
	Items          []LineItem
	TotalPrice     decimal.Decimal
	Discount       decimal.Decimal
	FinalPrice     decimal.Decimal
	RedemptionCode string
	Status         Status
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Store defines persistence for orders. Create is the atomic unit of the
/// fulfillment workflow: the per-item stock decrements, the customer balance
// debit, and the order insert all commit together or not at all.
type Store interface {
	// Create persists o and applies its stock and balance mutations in one
	// transaction. debit is the amount charged to the customer. It returns
	// *InsufficientStockError when any conditional stock decrement fails and
	// ErrInsufficientBalance when the balance floor is enforced and breached;
	// in both cases nothing is committed.
	Create(ctx context.Context, o *Order, debit decimal.Decimal) error
	GetByID(ctx context.Context, id string) (*Order, error)
	List(ctx context.Context, page, limit int) ([]Order, int64, error)
	// UpdateStatus transitions the order conditionally: only orders currently
	// in PROCESSING move. It returns ErrNotFound for unknown ids and
	// *InvalidTransitionError when the order is already terminal.
	UpdateStatus(ctx context.Context, id string, to Status) (*Order, error)
}
