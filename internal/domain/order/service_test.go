package order

import (
	"context"
	"sync"
	"testing"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/shop-core/internal/domain/code"
	"github.com/xenking/shop-core/internal/domain/customer"
	"github.com/xenking/shop-core/internal/domain/product"
)

// --- Mock implementations ---

type mockProductRepo struct {
	byID   map[string]*product.Product
	getErr error
}

func (m *mockProductRepo) List(_ context.Context, _, _ int) ([]product.Product, int64, error) {
	return nil, 0, nil
}

func (m *mockProductRepo) Search(_ context.Context, _ string) ([]product.Product, error) {
	return nil, nil
}

func (m *mockProductRepo) GetByID(_ context.Context, id string) (*product.Product, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	p, ok := m.byID[id]
	if !ok {
		return nil, product.ErrNotFound
	}
	return p, nil
}

func (m *mockProductRepo) GetByIDs(_ context.Context, ids []string) ([]product.Product, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	out := make([]product.Product, 0, len(ids))
	for _, id := range ids {
		if p, ok := m.byID[id]; ok {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (m *mockProductRepo) Update(_ context.Context, _ string, _ product.Update) (*product.Product, error) {
	return nil, nil
}

type mockCustomerRepo struct {
	byID map[string]*customer.Customer
}

func (m *mockCustomerRepo) GetByID(_ context.Context, id string) (*customer.Customer, error) {
	c, ok := m.byID[id]
	if !ok {
		return nil, customer.ErrNotFound
	}
	return c, nil
}

func (m *mockCustomerRepo) Search(_ context.Context, _ string) ([]customer.Customer, error) {
	return nil, nil
}

type mockResolver struct {
	amount decimal.Decimal
	err    error
}

func (m *mockResolver) Resolve(_ context.Context, _ string) (decimal.Decimal, error) {
	return m.amount, m.err
}

type mockStore struct {
	lastOrder *Order
	lastDebit decimal.Decimal
	createErr error
}

func (m *mockStore) Create(_ context.Context, o *Order, debit decimal.Decimal) error {
	if m.createErr != nil {
		return m.createErr
	}
	m.lastOrder = o
	m.lastDebit = debit
	return nil
}

func (m *mockStore) GetByID(_ context.Context, _ string) (*Order, error) { return nil, ErrNotFound }
func (m *mockStore) List(_ context.Context, _, _ int) ([]Order, int64, error) {
	return nil, 0, nil
}
func (m *mockStore) UpdateStatus(_ context.Context, _ string, _ Status) (*Order, error) {
	return nil, ErrNotFound
}

// --- Helpers ---

func newTestProduct(id, name string, price string, stock int) *product.Product {
	return &product.Product{
		ID:     id,
		Name:   name,
		Price:  decimal.RequireFromString(price),
		Stock:  stock,
		Status: product.StatusForStock(stock),
	}
}

func newFixture(products ...*product.Product) (*mockProductRepo, *mockCustomerRepo, *mockResolver, *mockStore) {
	byID := make(map[string]*product.Product, len(products))
	for _, p := range products {
		byID[p.ID] = p
	}
	customers := &mockCustomerRepo{byID: map[string]*customer.Customer{
		"c1": {ID: "c1", FirstName: "Ada", LastName: "Lovelace", Balance: decimal.NewFromInt(100)},
	}}
	return &mockProductRepo{byID: byID}, customers, &mockResolver{}, &mockStore{}
}

func newService(products *mockProductRepo, customers *mockCustomerRepo, codes *mockResolver, store Store, cfg ...Config) *Service {
	var c Config
	if len(cfg) > 0 {
		c = cfg[0]
	}
	return NewService(products, customers, codes, store, c)
}

// --- Tests ---

func TestPlaceOrder_MissingCustomer(t *testing.T) {
	svc := newService(newFixture())

	_, err := svc.PlaceOrder(context.Background(), PlaceOrderRequest{
		Items: []LineItem{{ProductID: "p1", Quantity: 1}},
	})
	require.ErrorIs(t, err, ErrMissingCustomer)
}

func TestPlaceOrder_EmptyItems(t *testing.T) {
	svc := newService(newFixture())

	_, err := svc.PlaceOrder(context.Background(), PlaceOrderRequest{CustomerID: "c1"})
	require.ErrorIs(t, err, ErrEmptyItems)
}

func TestPlaceOrder_InvalidQuantity(t *testing.T) {
	svc := newService(newFixture(newTestProduct("p1", "Widget", "10.00", 5)))

	_, err := svc.PlaceOrder(context.Background(), PlaceOrderRequest{
		CustomerID: "c1",
		Items:      []LineItem{{ProductID: "p1", Quantity: 0}},
	})

	var iqErr *InvalidQuantityError
	require.ErrorAs(t, err, &iqErr)
	assert.Equal(t, "p1", iqErr.ProductID)
}

func TestPlaceOrder_ProductNotFound(t *testing.T) {
	svc := newService(newFixture())

	_, err := svc.PlaceOrder(context.Background(), PlaceOrderRequest{
		CustomerID: "c1",
		Items:      []LineItem{{ProductID: "missing", Quantity: 1}},
	})
	require.ErrorIs(t, err, product.ErrNotFound)
}

func TestPlaceOrder_CustomerNotFound(t *testing.T) {
	svc := newService(newFixture(newTestProduct("p1", "Widget", "10.00", 5)))

	_, err := svc.PlaceOrder(context.Background(), PlaceOrderRequest{
		CustomerID: "ghost",
		Items:      []LineItem{{ProductID: "p1", Quantity: 1}},
	})
	require.ErrorIs(t, err, customer.ErrNotFound)
}

func TestPlaceOrder_NoCode(t *testing.T) {
	products, customers, codes, store := newFixture(newTestProduct("p1", "Widget", "10.00", 5))
	svc := newService(products, customers, codes, store, Config{})

	o, err := svc.PlaceOrder(context.Background(), PlaceOrderRequest{
		CustomerID: "c1",
		Items:      []LineItem{{ProductID: "p1", Quantity: 3}},
	})

	require.NoError(t, err)
	assert.True(t, decimal.RequireFromString("30.00").Equal(o.TotalPrice))
	assert.True(t, decimal.Zero.Equal(o.Discount))
	assert.True(t, decimal.RequireFromString("30.00").Equal(o.FinalPrice))
	assert.Equal(t, StatusProcessing, o.Status)
	assert.Equal(t, "Widget", o.Items[0].Name)
	assert.NotEmpty(t, o.ID)

	// Default policy debits the pre-discount total.
	assert.True(t, o.TotalPrice.Equal(store.lastDebit))
}

func TestPlaceOrder_WithCode(t *testing.T) {
	products, customers, codes, store := newFixture(
		newTestProduct("p1", "Widget", "10.00", 5),
		newTestProduct("p2", "Gadget", "20.00", 2),
	)
	codes.amount = decimal.RequireFromString("5.00")
	svc := newService(products, customers, codes, store, Config{})

	o, err := svc.PlaceOrder(context.Background(), PlaceOrderRequest{
		CustomerID:     "c1",
		Items:          []LineItem{{ProductID: "p1", Quantity: 2}, {ProductID: "p2", Quantity: 1}},
		RedemptionCode: "SAVE5",
	})

	require.NoError(t, err)
	assert.True(t, decimal.RequireFromString("40.00").Equal(o.TotalPrice))
	assert.True(t, decimal.RequireFromString("5.00").Equal(o.Discount))
	assert.True(t, decimal.RequireFromString("35.00").Equal(o.FinalPrice))
	assert.Equal(t, "SAVE5", o.RedemptionCode)
	assert.True(t, o.TotalPrice.Equal(store.lastDebit), "debit stays pre-discount by default")
}

func TestPlaceOrder_DebitBasisFinal(t *testing.T) {
	products, customers, codes, store := newFixture(newTestProduct("p1", "Widget", "10.00", 5))
	codes.amount = decimal.RequireFromString("5.00")
	svc := newService(products, customers, codes, store, Config{DebitBasis: DebitFinal})

	o, err := svc.PlaceOrder(context.Background(), PlaceOrderRequest{
		CustomerID:     "c1",
		Items:          []LineItem{{ProductID: "p1", Quantity: 1}},
		RedemptionCode: "SAVE5",
	})

	require.NoError(t, err)
	assert.True(t, o.FinalPrice.Equal(store.lastDebit))
}

func TestPlaceOrder_InvalidCode(t *testing.T) {
	products, customers, codes, store := newFixture(newTestProduct("p1", "Widget", "10.00", 5))
	codes.err = code.ErrNotActive
	svc := newService(products, customers, codes, store, Config{})

	_, err := svc.PlaceOrder(context.Background(), PlaceOrderRequest{
		CustomerID:     "c1",
		Items:          []LineItem{{ProductID: "p1", Quantity: 1}},
		RedemptionCode: "PAUSED",
	})

	require.ErrorIs(t, err, code.ErrNotActive)
	assert.Nil(t, store.lastOrder, "rejected order must not reach the store")
}

func TestPlaceOrder_UnknownCode(t *testing.T) {
	products, customers, codes, store := newFixture(newTestProduct("p1", "Widget", "10.00", 5))
	codes.err = code.ErrInvalid
	svc := newService(products, customers, codes, store, Config{})

	_, err := svc.PlaceOrder(context.Background(), PlaceOrderRequest{
		CustomerID:     "c1",
		Items:          []LineItem{{ProductID: "p1", Quantity: 1}},
		RedemptionCode: "definitely-unknown",
	})

	// An unknown token rejects the order as bad input, not a missing resource.
	require.ErrorIs(t, err, code.ErrInvalid)
	assert.NotErrorIs(t, err, code.ErrNotFound)
	assert.Nil(t, store.lastOrder, "rejected order must not reach the store")
}

func TestPlaceOrder_InsufficientStock(t *testing.T) {
	products, customers, codes, store := newFixture(newTestProduct("p1", "Widget", "10.00", 5))
	svc := newService(products, customers, codes, store, Config{})

	_, err := svc.PlaceOrder(context.Background(), PlaceOrderRequest{
		CustomerID: "c1",
		Items:      []LineItem{{ProductID: "p1", Quantity: 6}},
	})

	var stockErr *InsufficientStockError
	require.ErrorAs(t, err, &stockErr)
	assert.Equal(t, 6, stockErr.Requested)
	assert.Equal(t, 5, stockErr.Available)
	assert.Nil(t, store.lastOrder)
}

func TestPlaceOrder_ExhaustsStock(t *testing.T) {
	products, customers, codes, store := newFixture(newTestProduct("p1", "Widget", "10.00", 5))
	svc := newService(products, customers, codes, store, Config{})

	o, err := svc.PlaceOrder(context.Background(), PlaceOrderRequest{
		CustomerID: "c1",
		Items:      []LineItem{{ProductID: "p1", Quantity: 5}},
	})

	require.NoError(t, err)
	assert.True(t, decimal.RequireFromString("50.00").Equal(o.TotalPrice))
}

func TestPlaceOrder_DiscountFlooredAtZero(t *testing.T) {
	products, customers, codes, store := newFixture(newTestProduct("p1", "Widget", "10.00", 5))
	codes.amount = decimal.RequireFromString("999.00")
	svc := newService(products, customers, codes, store, Config{})

	o, err := svc.PlaceOrder(context.Background(), PlaceOrderRequest{
		CustomerID:     "c1",
		Items:          []LineItem{{ProductID: "p1", Quantity: 1}},
		RedemptionCode: "HUGE",
	})

	require.NoError(t, err)
	assert.True(t, decimal.Zero.Equal(o.FinalPrice))
	assert.True(t, decimal.RequireFromString("999.00").Equal(o.Discount))
}

func TestPlaceOrder_StoreError(t *testing.T) {
	products, customers, codes, store := newFixture(newTestProduct("p1", "Widget", "10.00", 5))
	store.createErr = errors.New("db down")
	svc := newService(products, customers, codes, store, Config{})

	_, err := svc.PlaceOrder(context.Background(), PlaceOrderRequest{
		CustomerID: "c1",
		Items:      []LineItem{{ProductID: "p1", Quantity: 1}},
	})
	require.Error(t, err)
}

func TestUpdateStatus_RejectsProcessingTarget(t *testing.T) {
	svc := newService(newFixture())

	_, err := svc.UpdateStatus(context.Background(), "o1", StatusProcessing)

	var trErr *InvalidTransitionError
	require.ErrorAs(t, err, &trErr)
}

// memStore is an in-memory Store with the same conditional-decrement
// semantics as the Postgres implementation, used to exercise the no-oversell
// property under concurrency.
type memStore struct {
	mu      sync.Mutex
	stock   map[string]int
	balance decimal.Decimal
	orders  []*Order
}

func (m *memStore) Create(_ context.Context, o *Order, debit decimal.Decimal) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, item := range o.Items {
		if m.stock[item.ProductID] < item.Quantity {
			return &InsufficientStockError{
				ProductID: item.ProductID,
				Requested: item.Quantity,
				Available: m.stock[item.ProductID],
			}
		}
	}
	for _, item := range o.Items {
		m.stock[item.ProductID] -= item.Quantity
	}
	m.balance = m.balance.Sub(debit)
	m.orders = append(m.orders, o)
	return nil
}

func (m *memStore) GetByID(_ context.Context, _ string) (*Order, error) { return nil, ErrNotFound }
func (m *memStore) List(_ context.Context, _, _ int) ([]Order, int64, error) {
	return nil, 0, nil
}
func (m *memStore) UpdateStatus(_ context.Context, _ string, _ Status) (*Order, error) {
	return nil, ErrNotFound
}

func TestPlaceOrder_ConcurrentNoOversell(t *testing.T) {
	// 20 concurrent single-unit orders against 5 units of stock: exactly 5
	// succeed, the rest fail with InsufficientStockError, stock ends at zero.
	products, customers, codes, _ := newFixture(newTestProduct("p1", "Widget", "10.00", 5))
	store := &memStore{stock: map[string]int{"p1": 5}, balance: decimal.NewFromInt(100)}
	svc := newService(products, customers, codes, store, Config{})

	const workers = 20
	var wg sync.WaitGroup
	results := make([]error, workers)
	for i := range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, results[i] = svc.PlaceOrder(context.Background(), PlaceOrderRequest{
				CustomerID: "c1",
				Items:      []LineItem{{ProductID: "p1", Quantity: 1}},
			})
		}()
	}
	wg.Wait()

	succeeded := 0
	for _, err := range results {
		if err == nil {
			succeeded++
			continue
		}
		var stockErr *InsufficientStockError
		require.ErrorAs(t, err, &stockErr)
	}

	assert.Equal(t, 5, succeeded)
	assert.Equal(t, 0, store.stock["p1"])
	assert.Len(t, store.orders, 5)
}
