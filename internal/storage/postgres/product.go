package postgres

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/shop-core/internal/domain/product"
)

const (
	productColumns = `id, name, price, stock, status, created_at, updated_at`

	listProductsSQL = `SELECT ` + productColumns + ` FROM products ORDER BY id LIMIT $1 OFFSET $2`

	countProductsSQL = `SELECT COUNT(*) FROM products`

	searchProductsSQL = `SELECT ` + productColumns + ` FROM products
		WHERE name ILIKE '%' || $1 || '%' AND status = 'IN-STOCK' ORDER BY name`

	getProductByIDSQL = `SELECT ` + productColumns + ` FROM products WHERE id = $1`

	getProductsByIDsSQL = `SELECT ` + productColumns + ` FROM products WHERE id = ANY($1)`

	updateProductSQL = `UPDATE products SET
			name = $2, price = $3, stock = $4, status = $5, updated_at = now()
		WHERE id = $1
		RETURNING ` + productColumns
)

var _ product.Repository = (*ProductRepository)(nil)

// ProductRepository implements product.Repository backed by PostgreSQL.
type ProductRepository struct {
	pool *pgxpool.Pool
}

// NewProductRepository returns a ProductRepository that uses the given pool.
func NewProductRepository(pool *pgxpool.Pool) *ProductRepository {
	return &ProductRepository{pool: pool}
}

// List returns one page of the catalog plus the total product count.
func (r *ProductRepository) List(ctx context.Context, page, limit int) ([]product.Product, int64, error) {
	rows, err := r.pool.Query(ctx, listProductsSQL, limit, pageOffset(page, limit))
	if err != nil {
		return nil, 0, errors.Wrap(err, "list products")
	}
	products, err := pgx.CollectRows(rows, scanProduct)
	if err != nil {
		return nil, 0, errors.Wrap(err, "scan products")
	}

	var total int64
	if err := r.pool.QueryRow(ctx, countProductsSQL).Scan(&total); err != nil {
		return nil, 0, errors.Wrap(err, "count products")
	}
	return products, total, nil
}

// Search returns IN-STOCK products whose name contains term.
func (r *ProductRepository) Search(ctx context.Context, term string) ([]product.Product, error) {
	rows, err := r.pool.Query(ctx, searchProductsSQL, term)
	if err != nil {
		return nil, errors.Wrap(err, "search products")
	}
	return pgx.CollectRows(rows, scanProduct)
}

// GetByID returns a single product by its identifier.
func (r *ProductRepository) GetByID(ctx context.Context, id string) (*product.Product, error) {
	rows, err := r.pool.Query(ctx, getProductByIDSQL, id)
	if err != nil {
		return nil, errors.Wrapf(err, "get product %q", id)
	}

	p, err := pgx.CollectExactlyOneRow(rows, scanProduct)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, product.ErrNotFound
		}
		return nil, errors.Wrapf(err, "get product %q", id)
	}
	return &p, nil
}

// GetByIDs returns products matching any of the given IDs.
func (r *ProductRepository) GetByIDs(ctx context.Context, ids []string) ([]product.Product, error) {
	rows, err := r.pool.Query(ctx, getProductsByIDsSQL, ids)
	if err != nil {
		return nil, errors.Wrap(err, "get products by ids")
	}
	return pgx.CollectRows(rows, scanProduct)
}

// Update applies a partial update and returns the updated row. When stock
// changes, the status is re-derived: stock zero forces SOLD, and a SOLD
// product with stock again becomes IN-STOCK. An explicit RESERVED status is
// kept as long as stock allows it.
func (r *ProductRepository) Update(ctx context.Context, id string, upd product.Update) (*product.Product, error) {
	cur, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	next := *cur
	if upd.Name != nil {
		next.Name = *upd.Name
	}
	if upd.Price != nil {
		next.Price = *upd.Price
	}
	if upd.Stock != nil {
		next.Stock = *upd.Stock
	}
	if upd.Status != nil {
		next.Status = *upd.Status
	}
	if derived := product.StatusForStock(next.Stock); derived == product.StatusSold || next.Status == product.StatusSold {
		next.Status = derived
	}

	rows, err := r.pool.Query(ctx, updateProductSQL, id, next.Name, next.Price, next.Stock, next.Status)
	if err != nil {
		return nil, errors.Wrapf(err, "update product %q", id)
	}

	p, err := pgx.CollectExactlyOneRow(rows, scanProduct)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, product.ErrNotFound
		}
		return nil, errors.Wrapf(err, "update product %q", id)
	}
	return &p, nil
}

func scanProduct(row pgx.CollectableRow) (product.Product, error) {
	var (
		p      product.Product
		status string
	)
	err := row.Scan(&p.ID, &p.Name, &p.Price, &p.Stock, &status, &p.CreatedAt, &p.UpdatedAt)
	p.Status = product.Status(status)
	return p, err
}
