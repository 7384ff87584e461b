package postgres

import (
	"context"
	"encoding/json"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/xenking/shop-core/internal/domain/customer"
	"github.com/xenking/shop-core/internal/domain/order"
	"github.com/xenking/shop-core/internal/domain/product"
)

const (
	lockProductStockSQL = `SELECT stock FROM products WHERE id = $1 FOR UPDATE`

	decrementStockSQL = `UPDATE products SET stock = $2, status = $3, updated_at = now() WHERE id = $1`

	debitBalanceSQL = `UPDATE customers SET balance = balance - $2, updated_at = now() WHERE id = $1`

	debitBalanceCheckedSQL = `UPDATE customers SET balance = balance - $2, updated_at = now()
		WHERE id = $1 AND balance >= $2`

	customerExistsSQL = `SELECT EXISTS (SELECT 1 FROM customers WHERE id = $1)`

	insertOrderSQL = `INSERT INTO orders
			(id, customer_id, items, total_price, discount, final_price, redemption_code, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	orderColumns = `o.id, o.customer_id, c.firstname || ' ' || c.lastname, o.items,
		o.total_price, o.discount, o.final_price, o.redemption_code, o.status, o.created_at, o.updated_at`

	getOrderByIDSQL = `SELECT ` + orderColumns + `
		FROM orders o JOIN customers c ON o.customer_id = c.id WHERE o.id = $1`

	listOrdersSQL = `SELECT ` + orderColumns + `
		FROM orders o JOIN customers c ON o.customer_id = c.id
		ORDER BY o.created_at DESC LIMIT $1 OFFSET $2`

	countOrdersSQL = `SELECT COUNT(*) FROM orders`

	transitionOrderSQL = `UPDATE orders SET status = $2, updated_at = now()
		WHERE id = $1 AND status = 'PROCESSING'`

	getOrderStatusSQL = `SELECT status FROM orders WHERE id = $1`
)

var _ order.Store = (*OrderStore)(nil)

// OrderStore implements order.Store backed by PostgreSQL.
//
// Create is the atomic unit of the fulfillment workflow: it locks each
// product row, re-checks stock under the lock, applies the decrements and the
// balance debit, and inserts the order record, all inside one transaction.
// Locking closes the window between the service's read-phase stock check and
// the decrement, so concurrent orders cannot oversell.
type OrderStore struct {
	pool *pgxpool.Pool

	// allowNegativeBalance disables the balance floor; the legacy behavior.
	allowNegativeBalance bool
}

// NewOrderStore returns an OrderStore that uses the given pool.
func NewOrderStore(pool *pgxpool.Pool, allowNegativeBalance bool) *OrderStore {
	return &OrderStore{pool: pool, allowNegativeBalance: allowNegativeBalance}
}

// Create persists the order and its stock/balance mutations transactionally.
func (s *OrderStore) Create(ctx context.Context, o *order.Order, debit decimal.Decimal) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return errors.Wrap(err, "begin tx")
	}
	defer func() { _ = tx.Rollback(ctx) }()

	for _, item := range o.Items {
		if err := reserveStock(ctx, tx, item.ProductID, item.Quantity); err != nil {
			return err
		}
	}

	if err := s.debitBalance(ctx, tx, o.CustomerID, debit); err != nil {
		return err
	}

	itemsJSON, err := json.Marshal(o.Items)
	if err != nil {
		return errors.Wrap(err, "marshal order items")
	}

	var redemptionCode *string
	if o.RedemptionCode != "" {
		redemptionCode = &o.RedemptionCode
	}

	_, err = tx.Exec(ctx, insertOrderSQL,
		o.ID, o.CustomerID, itemsJSON,
		o.TotalPrice, o.Discount, o.FinalPrice,
		redemptionCode, string(o.Status),
	)
	if err != nil {
		return errors.Wrapf(err, "insert order %q", o.ID)
	}

	if err := tx.Commit(ctx); err != nil {
		return errors.Wrap(err, "commit tx")
	}
	return nil
}

// reserveStock locks the product row, verifies availability under the lock,
// and writes the decremented stock with its derived status.
func reserveStock(ctx context.Context, tx pgx.Tx, productID string, qty int) error {
	var stock int
	if err := tx.QueryRow(ctx, lockProductStockSQL, productID).Scan(&stock); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return errors.Wrapf(product.ErrNotFound, "product %s", productID)
		}
		return errors.Wrapf(err, "lock product %q", productID)
	}

	if stock < qty {
		return &order.InsufficientStockError{
			ProductID: productID,
			Requested: qty,
			Available: stock,
		}
	}

	remaining := stock - qty
	status := product.StatusForStock(remaining)
	if _, err := tx.Exec(ctx, decrementStockSQL, productID, remaining, string(status)); err != nil {
		return errors.Wrapf(err, "decrement stock for product %q", productID)
	}
	return nil
}

// debitBalance charges the customer. The unconditional debit touches zero
// rows only when the customer row is gone; the conditional one also when the
// floor was breached, with the missing-row case told apart by a follow-up
// lookup.
func (s *OrderStore) debitBalance(ctx context.Context, tx pgx.Tx, customerID string, debit decimal.Decimal) error {
	query := debitBalanceCheckedSQL
	if s.allowNegativeBalance {
		query = debitBalanceSQL
	}

	ct, err := tx.Exec(ctx, query, customerID, debit)
	if err != nil {
		return errors.Wrapf(err, "debit customer %q", customerID)
	}
	if ct.RowsAffected() == 0 {
		if s.allowNegativeBalance {
			return errors.Wrapf(customer.ErrNotFound, "customer %s", customerID)
		}
		var exists bool
		if err := tx.QueryRow(ctx, customerExistsSQL, customerID).Scan(&exists); err != nil {
			return errors.Wrapf(err, "check customer %q", customerID)
		}
		if !exists {
			return errors.Wrapf(customer.ErrNotFound, "customer %s", customerID)
		}
		return order.ErrInsufficientBalance
	}
	return nil
}

// GetByID returns a single order with its customer display name.
func (s *OrderStore) GetByID(ctx context.Context, id string) (*order.Order, error) {
	rows, err := s.pool.Query(ctx, getOrderByIDSQL, id)
	if err != nil {
		return nil, errors.Wrapf(err, "get order %q", id)
	}

	o, err := pgx.CollectExactlyOneRow(rows, scanOrder)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, order.ErrNotFound
		}
		return nil, errors.Wrapf(err, "get order %q", id)
	}
	return &o, nil
}

// List returns one page of orders, newest first, plus the total count.
func (s *OrderStore) List(ctx context.Context, page, limit int) ([]order.Order, int64, error) {
	rows, err := s.pool.Query(ctx, listOrdersSQL, limit, pageOffset(page, limit))
	if err != nil {
		return nil, 0, errors.Wrap(err, "list orders")
	}
	orders, err := pgx.CollectRows(rows, scanOrder)
	if err != nil {
		return nil, 0, errors.Wrap(err, "scan orders")
	}

	var total int64
	if err := s.pool.QueryRow(ctx, countOrdersSQL).Scan(&total); err != nil {
		return nil, 0, errors.Wrap(err, "count orders")
	}
	return orders, total, nil
}

// UpdateStatus moves the order to the target status only when it is still
// PROCESSING. The conditional update makes concurrent transitions succeed
// exactly once; the loser observes the terminal state and gets a typed
// transition error.
func (s *OrderStore) UpdateStatus(ctx context.Context, id string, to order.Status) (*order.Order, error) {
	ct, err := s.pool.Exec(ctx, transitionOrderSQL, id, string(to))
	if err != nil {
		return nil, errors.Wrapf(err, "transition order %q", id)
	}

	if ct.RowsAffected() == 0 {
		var current string
		err := s.pool.QueryRow(ctx, getOrderStatusSQL, id).Scan(&current)
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, order.ErrNotFound
		}
		if err != nil {
			return nil, errors.Wrapf(err, "get order %q status", id)
		}
		return nil, &order.InvalidTransitionError{From: order.Status(current), To: to}
	}

	return s.GetByID(ctx, id)
}

func scanOrder(row pgx.CollectableRow) (order.Order, error) {
	var (
		o              order.Order
		itemsJSON      []byte
		redemptionCode *string
		status         string
	)
	err := row.Scan(
		&o.ID, &o.CustomerID, &o.CustomerName, &itemsJSON,
		&o.TotalPrice, &o.Discount, &o.FinalPrice,
		&redemptionCode, &status, &o.CreatedAt, &o.UpdatedAt,
	)
	if err != nil {
		return o, err
	}

	if err := json.Unmarshal(itemsJSON, &o.Items); err != nil {
		return o, errors.Wrapf(err, "unmarshal items for order %q", o.ID)
	}
	if redemptionCode != nil {
		o.RedemptionCode = *redemptionCode
	}
	o.Status = order.Status(status)
	return o, nil
}
