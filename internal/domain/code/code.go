package code

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// Status describes whether a redemption code can currently be applied.
type Status string

const (
	StatusActive   Status = "active"
	StatusInactive Status = "inactive"
	StatusExpired  Status = "expired"
)

// ParseStatus validates a raw status string.
func ParseStatus(s string) (Status, bool) {
	switch Status(s) {
	case StatusActive, StatusInactive, StatusExpired:
		return Status(s), true
	}
	return "", false
}

var (
	// ErrNotFound is returned when no code matches the given token.
	ErrNotFound = errors.New("code not found")
	// ErrInvalid is returned by Resolve when the token does not redeem: the
	// order flow treats unknown and unusable codes the same way.
	ErrInvalid = errors.New("invalid code")
	// ErrNotActive is returned when a code exists but its status is not active.
	ErrNotActive = errors.New("code is not active")
	// ErrExpired is returned when expiry enforcement is enabled and the code's
	// expiry timestamp has passed.
	ErrExpired = errors.New("code has expired")
	// ErrDuplicate is returned on creation when the code token already exists.
	ErrDuplicate = errors.New("code already exists")
)

// Code is a redemption token resolving to a flat discount amount.
// The token is unique case-insensitively.
type Code struct {
	ID        string
	Code      string
	Discount  decimal.Decimal
	Status    Status
	ExpiredAt *time.Time
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Update holds a partial code update. Nil fields are left unchanged.
type Update struct {
	Code      *string
	Discount  *decimal.Decimal
	Status    *Status
	ExpiredAt *time.Time
}

// IsEmpty reports whether the update would change nothing.
func (u Update) IsEmpty() bool {
	return u.Code == nil && u.Discount == nil && u.Status == nil && u.ExpiredAt == nil
}

// Repository defines persistence operations for redemption codes.
type Repository interface {
	// FindByCode looks a code up case-insensitively.
	FindByCode(ctx context.Context, token string) (*Code, error)
	List(ctx context.Context, page, limit int) ([]Code, int64, error)
	Create(ctx context.Context, c *Code) error
	Update(ctx context.Context, id string, upd Update) (*Code, error)
	GetByID(ctx context.Context, id string) (*Code, error)
	// Tokens returns every stored code token, used to seed the prefilter.
	Tokens(ctx context.Context) ([]string, error)
}

// Resolver resolves a redemption token to its discount amount.
// Implementations reject unknown tokens with ErrInvalid and non-active codes
// with ErrNotActive; both are caller input errors, not lookup misses.
type Resolver interface {
	Resolve(ctx context.Context, token string) (decimal.Decimal, error)
}
