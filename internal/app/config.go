package app

import (
	"os"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigyaml"
	"github.com/go-faster/errors"

	"github.com/xenking/shop-core/internal/domain/order"
)

// Config holds the complete application configuration, loadable from
// environment variables (SHOP_ prefix), flags, or YAML config files.
type Config struct {
	Addr        string `default:"0.0.0.0:8080" usage:"API server listen address"`
	DatabaseURL string `usage:"PostgreSQL connection URL (SHOP_DATABASE_URL or DATABASE_URL)" flag:"database-url"`
	Order       OrderConfig
	Codes       CodesConfig
	RateLimit   RateLimitConfig
	CORS        CORSConfig
	Graceful    GracefulConfig
}

// OrderConfig tunes the fulfillment workflow.
type OrderConfig struct {
	// DebitBasis selects the amount charged to the customer: "total" debits
	// the pre-discount order total, "final" debits the discounted amount.
	DebitBasis string `default:"total" usage:"Balance debit basis: total or final" flag:"debit-basis"`
	// AllowNegativeBalance lets a debit push the customer balance below
	// zero. When false, orders that would overdraw are rejected.
	AllowNegativeBalance bool `default:"true" usage:"Allow customer balances to go negative" flag:"allow-negative-balance"`
}

// CodesConfig tunes redemption code validation.
type CodesConfig struct {
	// EnforceExpiry rejects codes whose expiry timestamp has passed. Expiry
	// is always stored; by default it is advisory only.
	EnforceExpiry bool `default:"false" usage:"Reject redemption codes past their expiry" flag:"enforce-expiry"`
	// Prefilter enables the in-memory bloom filter that short-circuits
	// lookups of unknown code tokens.
	Prefilter bool `default:"true" usage:"Enable the bloom prefilter for code lookups"`
}

// RateLimitConfig controls the per-client sliding window rate limiter.
type RateLimitConfig struct {
	Max    int           `default:"100" usage:"Max requests per window"`
	Window time.Duration `default:"1m"  usage:"Rate limit window duration"`
}

// CORSConfig controls Cross-Origin Resource Sharing headers.
type CORSConfig struct {
	Origins          []string `default:"*" usage:"Allowed CORS origins"`
	AllowCredentials bool     `default:"false" usage:"Allow credentials (cookies, auth headers)" flag:"cors-credentials"`
}

// GracefulConfig controls graceful shutdown timing.
type GracefulConfig struct {
	ReadinessDelay  time.Duration `default:"3s"  usage:"Delay after readiness=false before shutdown" flag:"readiness-delay"`
	ShutdownTimeout time.Duration `default:"15s" usage:"Maximum shutdown duration" flag:"shutdown-timeout"`
}

// Basis converts the configured debit basis string into the domain type.
func (c OrderConfig) Basis() (order.DebitBasis, error) {
	switch order.DebitBasis(c.DebitBasis) {
	case order.DebitTotal, order.DebitFinal:
		return order.DebitBasis(c.DebitBasis), nil
	case "":
		return order.DebitTotal, nil
	}
	return "", errors.Errorf("invalid debit basis %q: want total or final", c.DebitBasis)
}

// LoadConfig loads configuration from environment variables, YAML config
// files, and applies platform-specific defaults.
func LoadConfig() (*Config, error) {
	var cfg Config
	loader := aconfig.LoaderFor(&cfg, aconfig.Config{
		EnvPrefix: "SHOP",
		Files:     []string{"config.yaml", "/etc/shop/config.yaml"},
		FileDecoders: map[string]aconfig.FileDecoder{
			".yaml": aconfigyaml.New(),
		},
	})
	if err := loader.Load(); err != nil {
		return nil, errors.Wrap(err, "load config")
	}
	cfg.applyPlatformDefaults()

	if cfg.DatabaseURL == "" {
		return nil, errors.New("database URL is required: set SHOP_DATABASE_URL or DATABASE_URL")
	}
	if _, err := cfg.Order.Basis(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// applyPlatformDefaults maps platform-provided environment variables (Railway,
// Render, etc.) that use standard names like DATABASE_URL and PORT to the
// application's SHOP_-prefixed configuration.
func (c *Config) applyPlatformDefaults() {
	if c.DatabaseURL == "" {
		if v := os.Getenv("DATABASE_URL"); v != "" {
			c.DatabaseURL = v
		}
	}
	if port := os.Getenv("PORT"); port != "" && c.Addr == "0.0.0.0:8080" {
		c.Addr = "0.0.0.0:" + port
	}
}
