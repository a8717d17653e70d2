package app

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/extra/redisotel/v9"
	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/noah-isme/printshop-checkout/internal/config"
	"github.com/noah-isme/printshop-checkout/internal/payment"
	"github.com/noah-isme/printshop-checkout/internal/ratelimit"
	"github.com/noah-isme/printshop-checkout/internal/resilience"
)

// Dependencies enumerates the collaborators the router is built from. Zero
// values are filled in by New from the configuration.
type Dependencies struct {
	// Redis enables idempotency and shared rate limiting. Nil falls back to
	// REDIS_URL, and to in-process limits when that is empty too.
	Redis redis.UniversalClient
	// Provider overrides the Stripe provider; tests inject a fake.
	Provider payment.Provider

	MetricsNamespace string
	MetricsBuckets   []float64
	Registerer       prometheus.Registerer
	Gatherer         prometheus.Gatherer

	EnableTracing bool
	Tracer        trace.Tracer
}

// NewRedis parses url and returns an instrumented client.
func NewRedis(url string, logger zerolog.Logger) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := redisotel.InstrumentTracing(client); err != nil {
		logger.Error().Err(err).Msg("instrument redis tracing")
	}
	if err := redisotel.InstrumentMetrics(client); err != nil {
		logger.Error().Err(err).Msg("instrument redis metrics")
	}
	return client, nil
}

// NewProviderBreaker returns the breaker guarding Stripe calls.
func NewProviderBreaker(cfg *config.Config, logger zerolog.Logger) *resilience.Breaker {
	return resilience.NewBreaker(resilience.BreakerConfig{
		MinRequests:  cfg.BreakerMinCalls,
		FailureRatio: cfg.BreakerRatio,
		OpenFor:      cfg.BreakerOpenFor,
		Target:       "stripe",
		Logger:       &logger,
	})
}

// NewProviderHTTPClient returns the HTTP client used for Stripe: traced by
// otelhttp and guarded by breaker, with no retries.
func NewProviderHTTPClient(breaker *resilience.Breaker, timeout time.Duration) *http.Client {
	guarded := &resilience.Transport{
		Base:    http.DefaultTransport,
		Breaker: breaker,
		Timeout: timeout,
	}
	return &http.Client{
		Transport: otelhttp.NewTransport(guarded,
			otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
				return "stripe " + r.Method + " " + r.URL.Path
			}),
		),
	}
}

// NewStripe wires the Stripe provider over the guarded client.
func NewStripe(cfg *config.Config, breaker *resilience.Breaker, logger zerolog.Logger) (*payment.StripeProvider, error) {
	return payment.NewStripeProvider(payment.StripeConfig{
		APIKey:     cfg.StripeSecretKey,
		AccountID:  cfg.StripeAccountID,
		HTTPClient: NewProviderHTTPClient(breaker, cfg.ProviderTimeout),
		Logger:     logger.With().Str("component", "stripe").Logger(),
	})
}

// NewLimiters returns the limiters for the checkout and quote routes. With
// Redis, checkout uses the sliding window shared across replicas and quote
// the fixed-window Redis store; without it both are process-local.
func NewLimiters(client redis.UniversalClient) (checkout, quote ratelimit.Limiter, err error) {
	if client == nil {
		return ratelimit.NewMemoryLimiter("rl_checkout"), ratelimit.NewMemoryLimiter("rl_quote"), nil
	}
	store, err := ratelimit.NewRedisStoreLimiter(client, "rl_quote")
	if err != nil {
		return nil, nil, err
	}
	return ratelimit.RedisLimiter{Client: client, Prefix: "rl:"}, store, nil
}

// tracer returns the override when one is set.
func (d Dependencies) tracer(name string) trace.Tracer {
	if d.Tracer != nil {
		return d.Tracer
	}
	return otel.Tracer(name)
}

func (d Dependencies) namespace() string {
	if ns := strings.TrimSpace(d.MetricsNamespace); ns != "" {
		return ns
	}
	return "printshop"
}
