package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/printshop-checkout/internal/common"
	"github.com/noah-isme/printshop-checkout/internal/pricing"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	AppEnv             string
	Port               string
	StripeSecretKey    string
	StripeAccountID    string
	BaseURL            string
	CORSAllowedOrigins []string
	CatalogPath        string
	RedisURL           string

	Currency        string
	Margin          decimal.Decimal
	ShippingNormal  decimal.Decimal
	ShippingExpress decimal.Decimal
	TaxRate         decimal.Decimal
	MinimumAmount   decimal.Decimal
	MaximumAmount   decimal.Decimal

	// SuccessURLSessionParam, when set, appends ?<param>={CHECKOUT_SESSION_ID}
	// to the success URL.
	SuccessURLSessionParam string

	IdempotencyTTL  time.Duration
	RateLimitMax    int
	RateLimitWindow time.Duration
	BodyLimitBytes  int64
	ProviderTimeout time.Duration
	BreakerMinCalls int
	BreakerRatio    float64
	BreakerOpenFor  time.Duration
	ShutdownTimeout time.Duration
}

// Load reads configuration from environment variables and optional .env files.
func Load() (*Config, error) {
	_ = godotenv.Load()

	k := koanf.New(".")
	if err := k.Load(env.Provider("", ".", func(s string) string { return s }), nil); err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}

	defaults := pricing.DefaultConfig()
	var errs []error
	decimalVar := func(key string, fallback decimal.Decimal) decimal.Decimal {
		d, err := parseDecimal(k.String(key), fallback)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", key, err))
		}
		return d
	}

	cfg := &Config{
		AppEnv:                 valueOrDefault(k.String("APP_ENV"), "development"),
		Port:                   valueOrDefault(k.String("PORT"), "4242"),
		StripeSecretKey:        strings.TrimSpace(k.String("STRIPE_SECRET_KEY")),
		StripeAccountID:        strings.TrimSpace(k.String("STRIPE_ACCOUNT_ID")),
		BaseURL:                strings.TrimRight(strings.TrimSpace(k.String("BASE_URL")), "/"),
		CORSAllowedOrigins:     splitAndTrim(k.String("CORS_ALLOWED_ORIGINS")),
		CatalogPath:            strings.TrimSpace(k.String("CATALOG_PATH")),
		RedisURL:               strings.TrimSpace(k.String("REDIS_URL")),
		Currency:               strings.ToLower(valueOrDefault(k.String("CURRENCY"), defaults.Currency)),
		Margin:                 decimalVar("PRICING_MARGIN", defaults.Margin),
		ShippingNormal:         decimalVar("SHIPPING_NORMAL", defaults.Shipping[pricing.ShippingNormal]),
		ShippingExpress:        decimalVar("SHIPPING_EXPRESS", defaults.Shipping[pricing.ShippingExpress]),
		TaxRate:                decimalVar("TAX_RATE", defaults.TaxRate),
		MinimumAmount:          decimalVar("MINIMUM_AMOUNT", defaults.MinimumAmount),
		MaximumAmount:          decimalVar("MAXIMUM_AMOUNT", defaults.MaximumAmount),
		SuccessURLSessionParam: strings.TrimSpace(k.String("SUCCESS_URL_SESSION_PARAM")),
		IdempotencyTTL:         parseDuration(k.String("IDEMPOTENCY_TTL"), "10m"),
		RateLimitMax:           parseInt(k.String("RATE_LIMIT_MAX"), 30),
		RateLimitWindow:        parseDuration(k.String("RATE_LIMIT_WINDOW"), "1m"),
		BodyLimitBytes:         int64(parseInt(k.String("BODY_LIMIT_BYTES"), 64<<10)),
		ProviderTimeout:        parseDuration(k.String("PROVIDER_TIMEOUT"), "10s"),
		BreakerMinCalls:        parseInt(k.String("BREAKER_MIN_REQUESTS"), 5),
		BreakerRatio:           parseFloat(k.String("BREAKER_FAILURE_RATIO"), 0.5),
		BreakerOpenFor:         parseDuration(k.String("BREAKER_OPEN_FOR"), "30s"),
		ShutdownTimeout:        parseDuration(k.String("SHUTDOWN_TIMEOUT"), "10s"),
	}

	if cfg.StripeSecretKey == "" {
		errs = append(errs, errors.New("STRIPE_SECRET_KEY is required"))
	}
	if cfg.BaseURL == "" {
		errs = append(errs, errors.New("BASE_URL is required"))
	} else if u, err := url.Parse(cfg.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, fmt.Errorf("BASE_URL must be an absolute url, got %q", cfg.BaseURL))
	}
	if len(errs) == 0 {
		if err := cfg.Pricing().Validate(); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return nil, fmt.Errorf("%w: %w", common.ErrMissingConfiguration, errors.Join(errs...))
	}
	return cfg, nil
}

// Pricing returns the pricing configuration described by c.
func (c *Config) Pricing() pricing.Config {
	return pricing.Config{
		Margin: c.Margin,
		Shipping: map[pricing.ShippingMethod]decimal.Decimal{
			pricing.ShippingNormal:  c.ShippingNormal,
			pricing.ShippingExpress: c.ShippingExpress,
		},
		TaxRate:       c.TaxRate,
		MinimumAmount: c.MinimumAmount,
		MaximumAmount: c.MaximumAmount,
		Currency:      c.Currency,
	}
}

// AllowedOrigins returns the CORS allow-list: the origin of BaseURL followed
// by any extra configured origins, without duplicates.
func (c *Config) AllowedOrigins() []string {
	seen := map[string]struct{}{}
	var out []string
	add := func(origin string) {
		origin = strings.TrimRight(strings.TrimSpace(origin), "/")
		if origin == "" {
			return
		}
		if _, ok := seen[origin]; ok {
			return
		}
		seen[origin] = struct{}{}
		out = append(out, origin)
	}
	if u, err := url.Parse(c.BaseURL); err == nil && u.Scheme != "" && u.Host != "" {
		add(u.Scheme + "://" + u.Host)
	}
	for _, origin := range c.CORSAllowedOrigins {
		add(origin)
	}
	return out
}

// HTTPAddr returns the address the HTTP server should bind to.
func (c *Config) HTTPAddr() string {
	port := strings.TrimSpace(c.Port)
	if port == "" {
		port = "4242"
	}
	if strings.HasPrefix(port, ":") {
		return port
	}
	return ":" + port
}

// IsProduction reports whether AppEnv names a production deployment.
func (c *Config) IsProduction() bool {
	switch strings.ToLower(strings.TrimSpace(c.AppEnv)) {
	case "prod", "production":
		return true
	default:
		return false
	}
}

func splitAndTrim(value string) []string {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

func valueOrDefault(value, fallback string) string {
	if strings.TrimSpace(value) != "" {
		return strings.TrimSpace(value)
	}
	return fallback
}

func parseDuration(value, fallback string) time.Duration {
	base := strings.TrimSpace(value)
	if base == "" {
		base = fallback
	}
	d, err := time.ParseDuration(base)
	if err != nil {
		d, _ = time.ParseDuration(fallback)
	}
	return d
}

func parseInt(value string, fallback int) int {
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}

func parseFloat(value string, fallback float64) float64 {
	f, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil || f <= 0 {
		return fallback
	}
	return f
}

// parseDecimal accepts "0.21" as well as "0,21"; an empty value yields fallback.
func parseDecimal(value string, fallback decimal.Decimal) (decimal.Decimal, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return fallback, nil
	}
	d, err := decimal.NewFromString(strings.Replace(trimmed, ",", ".", 1))
	if err != nil {
		return fallback, fmt.Errorf("invalid number %q", value)
	}
	return d, nil
}

// MustLoad behaves like Load but panics on error. Useful for tests and command entrypoints.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// LoadForTests allows tests to override environment variables without touching the real environment.
func LoadForTests(env map[string]string) (*Config, error) {
	original := make(map[string]string, len(env))
	for key := range env {
		original[key] = os.Getenv(key)
		if err := setEnvVar(key, env[key]); err != nil {
			return nil, err
		}
	}
	cfg, err := Load()
	restoreErr := restoreEnv(original)
	if err != nil {
		return nil, err
	}
	return cfg, restoreErr
}

func setEnvVar(key, value string) error {
	if value == "" {
		return os.Unsetenv(key)
	}
	return os.Setenv(key, value)
}

func restoreEnv(values map[string]string) error {
	var errs []string
	for key, value := range values {
		if err := setEnvVar(key, value); err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", key, err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("restore env: %s", strings.Join(errs, "; "))
	}
	return nil
}
