// Command seed-db loads a catalog file with products, customers, and
// redemption codes into PostgreSQL. Existing rows are left untouched so the
// seeder is safe to re-run against a live database.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/klauspost/pgzip"
	"github.com/shopspring/decimal"

	"github.com/xenking/shop-core/internal/storage/postgres"
)

type catalog struct {
	Products  []productJSON  `json:"products"`
	Customers []customerJSON `json:"customers"`
	Codes     []codeJSON     `json:"codes"`
}

type productJSON struct {
	ID    string          `json:"id"`
	Name  string          `json:"name"`
	Price decimal.Decimal `json:"price"`
	Stock int             `json:"stock"`
}

type customerJSON struct {
	ID        string          `json:"id"`
	FirstName string          `json:"firstname"`
	LastName  string          `json:"lastname"`
	Balance   decimal.Decimal `json:"balance"`
}

type codeJSON struct {
	ID        string          `json:"id"`
	Code      string          `json:"code"`
	Discount  decimal.Decimal `json:"discount"`
	Status    string          `json:"status"`
	ExpiredAt *time.Time      `json:"expiredAt"`
}

func main() {
	var (
		databaseURL string
		catalogFile string
	)

	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&catalogFile, "catalog-file", "db/seed/catalog.json", "path to catalog JSON file (.gz supported)")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, databaseURL, catalogFile); err != nil {
		slog.Error("seed failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("seed completed successfully")
}

func run(ctx context.Context, databaseURL, catalogFile string) error {
	slog.Info("connecting to database")

	pool, err := postgres.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	slog.Info("running migrations")

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	cat, err := readCatalog(catalogFile)
	if err != nil {
		return errors.Wrap(err, "read catalog")
	}

	if err := seedProducts(ctx, pool, cat.Products); err != nil {
		return errors.Wrap(err, "seed products")
	}
	if err := seedCustomers(ctx, pool, cat.Customers); err != nil {
		return errors.Wrap(err, "seed customers")
	}
	if err := seedCodes(ctx, pool, cat.Codes); err != nil {
		return errors.Wrap(err, "seed codes")
	}

	return nil
}

// readCatalog parses the catalog file, transparently decompressing gzipped
// dumps.
func readCatalog(path string) (*catalog, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "open catalog file")
	}
	defer f.Close()

	var r io.Reader = f
	if strings.HasSuffix(path, ".gz") {
		gz, err := pgzip.NewReader(f)
		if err != nil {
			return nil, errors.Wrap(err, "open gzip reader")
		}
		defer gz.Close()
		r = gz
	}

	var cat catalog
	if err := json.NewDecoder(r).Decode(&cat); err != nil {
		return nil, errors.Wrap(err, "parse catalog JSON")
	}
	return &cat, nil
}

const insertProductSQL = `
INSERT INTO products (id, name, price, stock, status)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (id) DO NOTHING`

func seedProducts(ctx context.Context, pool *pgxpool.Pool, products []productJSON) error {
	slog.Info("seeding products", slog.Int("count", len(products)))

	for _, p := range products {
		status := "IN-STOCK"
		if p.Stock == 0 {
			status = "SOLD"
		}
		if _, err := pool.Exec(ctx, insertProductSQL, p.ID, p.Name, p.Price, p.Stock, status); err != nil {
			return errors.Wrapf(err, "insert product %s", p.ID)
		}
		slog.Info("seeded product", slog.String("id", p.ID), slog.String("name", p.Name))
	}
	return nil
}

const insertCustomerSQL = `
INSERT INTO customers (id, firstname, lastname, balance)
VALUES ($1, $2, $3, $4)
ON CONFLICT (id) DO NOTHING`

func seedCustomers(ctx context.Context, pool *pgxpool.Pool, customers []customerJSON) error {
	slog.Info("seeding customers", slog.Int("count", len(customers)))

	for _, c := range customers {
		if _, err := pool.Exec(ctx, insertCustomerSQL, c.ID, c.FirstName, c.LastName, c.Balance); err != nil {
			return errors.Wrapf(err, "insert customer %s", c.ID)
		}
		slog.Info("seeded customer", slog.String("id", c.ID))
	}
	return nil
}

const insertCodeSQL = `
INSERT INTO codes (id, code, discount, status, expired_at)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (id) DO NOTHING`

func seedCodes(ctx context.Context, pool *pgxpool.Pool, codes []codeJSON) error {
	slog.Info("seeding codes", slog.Int("count", len(codes)))

	for _, c := range codes {
		if _, err := pool.Exec(ctx, insertCodeSQL, c.ID, c.Code, c.Discount, c.Status, c.ExpiredAt); err != nil {
			return errors.Wrapf(err, "insert code %s", c.Code)
		}
		slog.Info("seeded code", slog.String("code", c.Code))
	}
	return nil
}
