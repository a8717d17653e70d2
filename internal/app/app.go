package app

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/printshop-checkout/internal/catalog"
	"github.com/noah-isme/printshop-checkout/internal/checkout"
	"github.com/noah-isme/printshop-checkout/internal/common"
	"github.com/noah-isme/printshop-checkout/internal/config"
	"github.com/noah-isme/printshop-checkout/internal/health"
	"github.com/noah-isme/printshop-checkout/internal/obs"
	"github.com/noah-isme/printshop-checkout/internal/pricing"
	"github.com/noah-isme/printshop-checkout/internal/ratelimit"
	"github.com/noah-isme/printshop-checkout/internal/resilience"
	"github.com/noah-isme/printshop-checkout/internal/security"
)

// App is the assembled HTTP service.
type App struct {
	Router  http.Handler
	Service *checkout.Service
	Breaker *resilience.Breaker
	Catalog *catalog.Catalog

	redis     redis.UniversalClient
	ownsRedis bool
}

// New builds the catalog, pricing, provider and router described by cfg.
func New(cfg *config.Config, logger zerolog.Logger, deps Dependencies) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("app: %w", common.ErrMissingConfiguration)
	}
	a := &App{redis: deps.Redis}
	if a.redis == nil && cfg.RedisURL != "" {
		client, err := NewRedis(cfg.RedisURL, logger)
		if err != nil {
			return nil, err
		}
		a.redis = client
		a.ownsRedis = true
	}

	cat, err := catalog.Load(cfg.CatalogPath)
	if err != nil {
		return nil, a.fail(fmt.Errorf("load catalog: %w", err))
	}
	a.Catalog = cat

	calc, err := pricing.NewCalculator(cfg.Pricing())
	if err != nil {
		return nil, a.fail(err)
	}
	builder, err := checkout.NewBuilder(checkout.BuilderConfig{
		BaseURL:      cfg.BaseURL,
		SessionParam: cfg.SuccessURLSessionParam,
	})
	if err != nil {
		return nil, a.fail(err)
	}

	provider := deps.Provider
	if provider == nil {
		a.Breaker = NewProviderBreaker(cfg, logger)
		stripeProvider, err := NewStripe(cfg, a.Breaker, logger)
		if err != nil {
			return nil, a.fail(err)
		}
		provider = stripeProvider
	}

	reg := deps.Registerer
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := deps.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}

	svc, err := checkout.NewService(checkout.ServiceConfig{
		Catalog:    cat,
		Calculator: calc,
		Builder:    builder,
		Provider:   provider,
		Metrics:    obs.NewCheckoutMetrics(deps.namespace(), reg),
		Logger:     logger.With().Str("component", "checkout").Logger(),
		Tracer:     deps.tracer("checkout"),
	})
	if err != nil {
		return nil, a.fail(err)
	}
	a.Service = svc

	checkoutLimiter, quoteLimiter, err := NewLimiters(a.redis)
	if err != nil {
		return nil, a.fail(err)
	}

	httpMetrics := obs.NewHTTPMetrics(deps.namespace(), deps.MetricsBuckets, reg)
	a.Router = a.routes(routerConfig{
		cfg:             cfg,
		logger:          logger,
		metrics:         httpMetrics,
		gatherer:        gatherer,
		tracing:         deps.EnableTracing,
		checkoutLimiter: checkoutLimiter,
		quoteLimiter:    quoteLimiter,
		providerReady:   provider != nil,
	})
	return a, nil
}

type routerConfig struct {
	cfg             *config.Config
	logger          zerolog.Logger
	metrics         *obs.HTTPMetrics
	gatherer        prometheus.Gatherer
	tracing         bool
	checkoutLimiter ratelimit.Limiter
	quoteLimiter    ratelimit.Limiter
	providerReady   bool
}

func (a *App) routes(rc routerConfig) http.Handler {
	cfg := rc.cfg
	checkoutHandler := &checkout.Handler{Svc: a.Service}
	catalogHandler := catalog.NewHandler(catalog.HandlerConfig{Catalog: a.Catalog, Margin: cfg.Margin})
	healthHandler := health.Handler{
		Checker:         health.Dependencies{ProviderConfigured: rc.providerReady, Redis: a.redis},
		ProviderTimeout: 500 * time.Millisecond,
		RedisTimeout:    300 * time.Millisecond,
	}
	idem := common.Idem{R: a.redis, TTL: cfg.IdempotencyTTL}
	bodyLimit := security.BodyLimit{Max: cfg.BodyLimitBytes}
	onLimiterError := func(err error) {
		rc.logger.Warn().Err(err).Msg("rate limiter unavailable")
	}
	checkoutLimit := ratelimit.Handler{
		Limiter: rc.checkoutLimiter,
		Config:  ratelimit.Config{Key: ratelimit.ByClientIP("checkout"), Window: cfg.RateLimitWindow, Max: cfg.RateLimitMax},
		OnError: onLimiterError,
	}
	// quotes never reach the provider, so they get a looser budget
	quoteLimit := ratelimit.Handler{
		Limiter: rc.quoteLimiter,
		Config:  ratelimit.Config{Key: ratelimit.ByClientIP("quote"), Window: cfg.RateLimitWindow, Max: cfg.RateLimitMax * 4},
		OnError: onLimiterError,
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(obs.RoutePatternMiddleware)
	if rc.tracing {
		r.Use(obs.TracingMiddleware)
	}
	r.Use(obs.HTTPObs{Metrics: rc.metrics}.Middleware)
	r.Use(obs.RequestLogger{Logger: rc.logger}.Middleware)
	r.Use(security.Headers{Enable: true, EnableHSTS: cfg.IsProduction()}.Middleware)
	r.Use(security.CORS(cfg.AllowedOrigins()))

	r.Get("/", healthHandler.Live)
	r.Get("/health", healthHandler.Live)
	r.Get("/health/live", healthHandler.Live)
	r.Get("/health/ready", healthHandler.Ready)
	r.Handle("/metrics", promhttp.HandlerFor(rc.gatherer, promhttp.HandlerOpts{}))

	r.Get("/products", catalogHandler.Products)
	r.Get("/products/{id}", catalogHandler.ProductDetail)

	r.With(quoteLimit.Middleware, bodyLimit.Middleware).Post("/quote", checkoutHandler.Quote)
	r.With(checkoutLimit.Middleware, idem.Middleware, bodyLimit.Middleware).
		Post("/create-checkout-session", checkoutHandler.CreateCheckoutSession)

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		common.JSONError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "method not allowed")
	})
	return r
}

// Close releases the Redis client when New created it.
func (a *App) Close() error {
	if a == nil || !a.ownsRedis || a.redis == nil {
		return nil
	}
	return a.redis.Close()
}

func (a *App) fail(err error) error {
	if closeErr := a.Close(); closeErr != nil {
		return errors.Join(err, closeErr)
	}
	return err
}
