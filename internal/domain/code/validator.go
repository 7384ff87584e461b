package code

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// Validator implements Resolver backed by a Repository. Only active codes
// resolve. Expiry timestamps are stored but not enforced unless
// WithExpiryEnforcement is set: the legacy behavior treated ExpiredAt as
// informational.
type Validator struct {
	repo          Repository
	filter        *Filter
	enforceExpiry bool
	now           func() time.Time
}

// ValidatorOption configures a Validator.
type ValidatorOption func(*Validator)

// WithPrefilter installs a bloom prefilter so definitely-unknown tokens are
// rejected without a database round trip.
func WithPrefilter(f *Filter) ValidatorOption {
	return func(v *Validator) { v.filter = f }
}

// WithExpiryEnforcement makes the validator reject active codes whose
// ExpiredAt timestamp has passed.
func WithExpiryEnforcement() ValidatorOption {
	return func(v *Validator) { v.enforceExpiry = true }
}

// NewValidator creates a Validator backed by the given repository.
func NewValidator(repo Repository, opts ...ValidatorOption) *Validator {
	v := &Validator{repo: repo, now: time.Now}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Resolve looks the token up case-insensitively and returns its discount
// amount. It returns ErrInvalid for unknown tokens, ErrNotActive for codes
// whose status is not active, and ErrExpired when expiry enforcement is on
// and the code has lapsed. An unknown token is a bad redemption attempt, not
// a missing resource, so it never surfaces as ErrNotFound.
func (v *Validator) Resolve(ctx context.Context, token string) (decimal.Decimal, error) {
	if v.filter != nil && !v.filter.MayContain(token) {
		return decimal.Zero, ErrInvalid
	}

	c, err := v.repo.FindByCode(ctx, token)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return decimal.Zero, ErrInvalid
		}
		return decimal.Zero, errors.Wrap(err, "lookup code")
	}

	if c.Status != StatusActive {
		return decimal.Zero, ErrNotActive
	}
	if v.enforceExpiry && c.ExpiredAt != nil && v.now().After(*c.ExpiredAt) {
		return decimal.Zero, ErrExpired
	}

	return c.Discount, nil
}
