package order

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/shop-core/internal/domain/code"
	"github.com/xenking/shop-core/internal/domain/customer"
	"github.com/xenking/shop-core/internal/domain/product"
)

// DebitBasis selects which amount the customer balance is charged.
type DebitBasis string

const (
	// DebitTotal charges the pre-discount sum. This is the legacy behavior:
	// the discount reduces the displayed final price but not the debit.
	DebitTotal DebitBasis = "total"
	// DebitFinal charges the post-discount price.
	DebitFinal DebitBasis = "final"
)

// Config holds the fulfillment policy points.
type Config struct {
	DebitBasis           DebitBasis
	AllowNegativeBalance bool
}

// PlaceOrderRequest holds the input for the fulfillment workflow.
type PlaceOrderRequest struct {
	CustomerID     string
	Items          []LineItem
	RedemptionCode string
}

// Service is the order workflow engine. It prices an order from the catalog,
// validates the customer and optional redemption code without mutating
// anything, and then commits the stock decrements, balance debit, and order
// insert as one transaction through the Store.
type Service struct {
	products  product.Repository
	customers customer.Repository
	codes     code.Resolver
	orders    Store
	cfg       Config
}

// NewService creates the workflow engine with its domain dependencies.
func NewService(
	products product.Repository,
	customers customer.Repository,
	codes code.Resolver,
	orders Store,
	cfg Config,
) *Service {
	if cfg.DebitBasis == "" {
		cfg.DebitBasis = DebitTotal
	}
	return &Service{
		products:  products,
		customers: customers,
		codes:     codes,
		orders:    orders,
		cfg:       cfg,
	}
}

// PlaceOrder runs the fulfillment workflow. The read phase has no side
// effects: any validation failure leaves the system untouched. The commit
// phase is delegated to the Store as a single atomic unit, so a stock or
// balance race aborts the whole order without partial mutations.
func (s *Service) PlaceOrder(ctx context.Context, req PlaceOrderRequest) (*Order, error) {
	if req.CustomerID == "" {
		return nil, ErrMissingCustomer
	}
	if len(req.Items) == 0 {
		return nil, ErrEmptyItems
	}

	ids := make([]string, len(req.Items))
	for i, item := range req.Items {
		if item.ProductID == "" || item.Quantity <= 0 {
			return nil, &InvalidQuantityError{ProductID: item.ProductID}
		}
		ids[i] = item.ProductID
	}

	fetched, err := s.products.GetByIDs(ctx, ids)
	if err != nil {
		return nil, errors.Wrap(err, "get products")
	}
	byID := make(map[string]product.Product, len(fetched))
	for _, p := range fetched {
		byID[p.ID] = p
	}

	// Price the order and snapshot product names. The stock check here fails
	// fast; the authoritative check is the conditional decrement in the
	// commit transaction.
	items := make([]LineItem, len(req.Items))
	total := decimal.Zero
	for i, item := range req.Items {
		p, ok := byID[item.ProductID]
		if !ok {
			return nil, errors.Wrapf(product.ErrNotFound, "product %s", item.ProductID)
		}
		if item.Quantity > p.Stock {
			return nil, &InsufficientStockError{
				ProductID: p.ID,
				Requested: item.Quantity,
				Available: p.Stock,
			}
		}

		items[i] = LineItem{ProductID: p.ID, Name: p.Name, Quantity: item.Quantity}
		total = total.Add(p.Price.Mul(decimal.NewFromInt(int64(item.Quantity))))
	}

	cust, err := s.customers.GetByID(ctx, req.CustomerID)
	if err != nil {
		if errors.Is(err, customer.ErrNotFound) {
			return nil, customer.ErrNotFound
		}
		return nil, errors.Wrap(err, "get customer")
	}

	discount := decimal.Zero
	if req.RedemptionCode != "" {
		discount, err = s.codes.Resolve(ctx, req.RedemptionCode)
		if err != nil {
			return nil, errors.Wrap(err, "resolve code")
		}
	}

	final := total.Sub(discount)
	if final.IsNegative() {
		final = decimal.Zero
	}

	o := &Order{
		ID:             uuid.New().String(),
		CustomerID:     cust.ID,
		CustomerName:   cust.FullName(),
		Items:          items,
		TotalPrice:     total.Round(2),
		Discount:       discount.Round(2),
		FinalPrice:     final.Round(2),
		RedemptionCode: req.RedemptionCode,
		Status:         StatusProcessing,
	}

	debit := o.TotalPrice
	if s.cfg.DebitBasis == DebitFinal {
		debit = o.FinalPrice
	}

	if err := s.orders.Create(ctx, o, debit); err != nil {
		var stockErr *InsufficientStockError
		if errors.As(err, &stockErr) || errors.Is(err, ErrInsufficientBalance) {
			return nil, err
		}
		return nil, errors.Wrap(err, "commit order")
	}

	return o, nil
}

// GetOrder fetches one order by id.
func (s *Service) GetOrder(ctx context.Context, id string) (*Order, error) {
	return s.orders.GetByID(ctx, id)
}

// ListOrders returns one page of orders plus the total count. Line items that
// predate name snapshotting are enriched with the product's current name,
// fanned out per order.
func (s *Service) ListOrders(ctx context.Context, page, limit int) ([]Order, int64, error) {
	list, total, err := s.orders.List(ctx, page, limit)
	if err != nil {
		return nil, 0, errors.Wrap(err, "list orders")
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(8)
	for i := range list {
		g.Go(func() error {
			return s.fillItemNames(ctx, &list[i])
		})
	}
	if err := g.Wait(); err != nil {
		return nil, 0, errors.Wrap(err, "enrich orders")
	}

	return list, total, nil
}

// fillItemNames resolves display names for line items stored without a
// snapshot. Products deleted since the order keep an empty name.
func (s *Service) fillItemNames(ctx context.Context, o *Order) error {
	var missing []string
	for _, item := range o.Items {
		if item.Name == "" {
			missing = append(missing, item.ProductID)
		}
	}
	if len(missing) == 0 {
		return nil
	}

	products, err := s.products.GetByIDs(ctx, missing)
	if err != nil {
		return errors.Wrapf(err, "get products for order %s", o.ID)
	}
	names := make(map[string]string, len(products))
	for _, p := range products {
		names[p.ID] = p.Name
	}
	for i := range o.Items {
		if o.Items[i].Name == "" {
			o.Items[i].Name = names[o.Items[i].ProductID]
		}
	}
	return nil
}

// UpdateStatus transitions an order through the status state machine.
// Only PROCESSING orders move, and only to COMPLETED or FAILED.
func (s *Service) UpdateStatus(ctx context.Context, id string, to Status) (*Order, error) {
	if !CanTransition(StatusProcessing, to) {
		return nil, &InvalidTransitionError{From: StatusProcessing, To: to}
	}
	return s.orders.UpdateStatus(ctx, id, to)
}
