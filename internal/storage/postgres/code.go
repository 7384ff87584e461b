package postgres

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/shop-core/internal/domain/code"
)

const (
	codeColumns = `id, code, discount, status, expired_at, created_at, updated_at`

	findCodeByTokenSQL = `SELECT ` + codeColumns + ` FROM codes WHERE LOWER(code) = LOWER($1)`

	getCodeByIDSQL = `SELECT ` + codeColumns + ` FROM codes WHERE id = $1`

	listCodesSQL = `SELECT ` + codeColumns + ` FROM codes ORDER BY created_at DESC LIMIT $1 OFFSET $2`

	countCodesSQL = `SELECT COUNT(*) FROM codes`

	listCodeTokensSQL = `SELECT code FROM codes`

	createCodeSQL = `INSERT INTO codes (id, code, discount, status, expired_at)
		VALUES ($1, $2, $3, $4, $5)`

	updateCodeSQL = `UPDATE codes SET
			code = COALESCE($2, code),
			discount = COALESCE($3, discount),
			status = COALESCE($4, status),
			expired_at = COALESCE($5, expired_at),
			updated_at = now()
		WHERE id = $1
		RETURNING ` + codeColumns
)

var _ code.Repository = (*CodeRepository)(nil)

// CodeRepository implements code.Repository backed by PostgreSQL.
type CodeRepository struct {
	pool *pgxpool.Pool
}

// NewCodeRepository returns a CodeRepository that uses the given pool.
func NewCodeRepository(pool *pgxpool.Pool) *CodeRepository {
	return &CodeRepository{pool: pool}
}

// FindByCode looks a code up case-insensitively by its token.
func (r *CodeRepository) FindByCode(ctx context.Context, token string) (*code.Code, error) {
	rows, err := r.pool.Query(ctx, findCodeByTokenSQL, token)
	if err != nil {
		return nil, errors.Wrapf(err, "find code %q", token)
	}

	c, err := pgx.CollectExactlyOneRow(rows, scanCode)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, code.ErrNotFound
		}
		return nil, errors.Wrapf(err, "find code %q", token)
	}
	return &c, nil
}

// GetByID returns a single code by its identifier.
func (r *CodeRepository) GetByID(ctx context.Context, id string) (*code.Code, error) {
	rows, err := r.pool.Query(ctx, getCodeByIDSQL, id)
	if err != nil {
		return nil, errors.Wrapf(err, "get code %q", id)
	}

	c, err := pgx.CollectExactlyOneRow(rows, scanCode)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, code.ErrNotFound
		}
		return nil, errors.Wrapf(err, "get code %q", id)
	}
	return &c, nil
}

// List returns one page of codes plus the total count.
func (r *CodeRepository) List(ctx context.Context, page, limit int) ([]code.Code, int64, error) {
	rows, err := r.pool.Query(ctx, listCodesSQL, limit, pageOffset(page, limit))
	if err != nil {
		return nil, 0, errors.Wrap(err, "list codes")
	}
	codes, err := pgx.CollectRows(rows, scanCode)
	if err != nil {
		return nil, 0, errors.Wrap(err, "scan codes")
	}

	var total int64
	if err := r.pool.QueryRow(ctx, countCodesSQL).Scan(&total); err != nil {
		return nil, 0, errors.Wrap(err, "count codes")
	}
	return codes, total, nil
}

// Tokens returns every stored code token.
func (r *CodeRepository) Tokens(ctx context.Context) ([]string, error) {
	rows, err := r.pool.Query(ctx, listCodeTokensSQL)
	if err != nil {
		return nil, errors.Wrap(err, "list code tokens")
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (string, error) {
		var token string
		err := row.Scan(&token)
		return token, err
	})
}

// Create inserts a new code. Returns code.ErrDuplicate when the token is
// already taken (case-insensitively).
func (r *CodeRepository) Create(ctx context.Context, c *code.Code) error {
	_, err := r.pool.Exec(ctx, createCodeSQL, c.ID, c.Code, c.Discount, string(c.Status), c.ExpiredAt)
	if err != nil {
		if isUniqueViolation(err) {
			return code.ErrDuplicate
		}
		return errors.Wrapf(err, "create code %q", c.Code)
	}
	return nil
}

// Update applies a partial update and returns the updated row.
func (r *CodeRepository) Update(ctx context.Context, id string, upd code.Update) (*code.Code, error) {
	var status *string
	if upd.Status != nil {
		s := string(*upd.Status)
		status = &s
	}

	rows, err := r.pool.Query(ctx, updateCodeSQL, id, upd.Code, upd.Discount, status, upd.ExpiredAt)
	if err != nil {
		return nil, errors.Wrapf(err, "update code %q", id)
	}

	c, err := pgx.CollectExactlyOneRow(rows, scanCode)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, code.ErrNotFound
		}
		if isUniqueViolation(err) {
			return nil, code.ErrDuplicate
		}
		return nil, errors.Wrapf(err, "update code %q", id)
	}
	return &c, nil
}

func scanCode(row pgx.CollectableRow) (code.Code, error) {
	var (
		c      code.Code
		status string
	)
	err := row.Scan(&c.ID, &c.Code, &c.Discount, &status, &c.ExpiredAt, &c.CreatedAt, &c.UpdatedAt)
	c.Status = code.Status(status)
	return c, err
}
