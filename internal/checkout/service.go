package checkout

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/noah-isme/printshop-checkout/internal/catalog"
	"github.com/noah-isme/printshop-checkout/internal/common"
	"github.com/noah-isme/printshop-checkout/internal/payment"
	"github.com/noah-isme/printshop-checkout/internal/pricing"
)

// Recorder receives checkout outcomes; obs.CheckoutMetrics implements it.
type Recorder interface {
	ObserveSession(product, result string, amountMinor int64)
	ObserveQuote(product, result string)
}

type nopRecorder struct{}

func (nopRecorder) ObserveSession(string, string, int64) {}
func (nopRecorder) ObserveQuote(string, string)          {}

// Quote is a priced order that has not been sent to the provider.
type Quote struct {
	Product   catalog.Product
	Tier      catalog.PriceTier
	Breakdown pricing.Breakdown
	Extras    []pricing.Extra
}

// Result describes a created checkout session.
type Result struct {
	URL       string
	SessionID string
	OrderRef  string
	Breakdown pricing.Breakdown
}

// ServiceConfig wires a Service.
type ServiceConfig struct {
	Catalog    *catalog.Catalog
	Calculator *pricing.Calculator
	Builder    *Builder
	Provider   payment.Provider
	Metrics    Recorder
	Logger     zerolog.Logger
	Tracer     trace.Tracer
}

// Service prices orders and opens provider checkout sessions.
type Service struct {
	catalog  *catalog.Catalog
	calc     *pricing.Calculator
	builder  *Builder
	provider payment.Provider
	metrics  Recorder
	logger   zerolog.Logger
	tracer   trace.Tracer
}

// NewService returns a Service. A nil Provider is allowed; Create then
// reports missing configuration while Quote keeps working.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Catalog == nil {
		return nil, fmt.Errorf("checkout: catalog is required: %w", common.ErrMissingConfiguration)
	}
	if cfg.Calculator == nil {
		return nil, fmt.Errorf("checkout: calculator is required: %w", common.ErrMissingConfiguration)
	}
	metrics := cfg.Metrics
	if metrics == nil {
		metrics = nopRecorder{}
	}
	tracer := cfg.Tracer
	if tracer == nil {
		tracer = otel.Tracer("checkout")
	}
	return &Service{
		catalog:  cfg.Catalog,
		calc:     cfg.Calculator,
		builder:  cfg.Builder,
		provider: cfg.Provider,
		metrics:  metrics,
		logger:   cfg.Logger,
		tracer:   tracer,
	}, nil
}

// Quote resolves the tier for order and prices it.
func (s *Service) Quote(ctx context.Context, order OrderRequest) (Quote, error) {
	_, span := s.tracer.Start(ctx, "CheckoutService.Quote")
	defer span.End()

	q, err := s.price(order)
	if err != nil {
		s.metrics.ObserveQuote(order.Product, resultLabel(err))
		recordSpanError(span, err)
		return Quote{}, err
	}
	s.metrics.ObserveQuote(order.Product, "success")
	span.SetAttributes(attribute.Int64("checkout.total_minor_units", q.Breakdown.TotalMinorUnits))
	return q, nil
}

// Create validates and prices order, then opens a hosted checkout session.
// Nothing reaches the provider unless pricing succeeds.
func (s *Service) Create(ctx context.Context, order OrderRequest) (Result, error) {
	ctx, span := s.tracer.Start(ctx, "CheckoutService.Create")
	defer span.End()
	span.SetAttributes(
		attribute.String("checkout.product", order.Product),
		attribute.Int("checkout.quantity", order.Quantity),
		attribute.String("checkout.shipping", string(order.Shipping)),
	)

	res, err := s.create(ctx, order)
	if err != nil {
		result := resultLabel(err)
		s.metrics.ObserveSession(order.Product, result, 0)
		recordSpanError(span, err)
		evt := s.logger.Warn()
		if result != "validation_error" {
			evt = s.logger.Error()
		}
		evt.Err(err).
			Str("product", order.Product).
			Int("cantidad", order.Quantity).
			Str("result", result).
			Msg("checkout_session_failed")
		return Result{}, err
	}

	s.metrics.ObserveSession(order.Product, "success", res.Breakdown.TotalMinorUnits)
	span.SetAttributes(
		attribute.String("checkout.order_ref", res.OrderRef),
		attribute.String("checkout.session_id", res.SessionID),
		attribute.Int64("checkout.total_minor_units", res.Breakdown.TotalMinorUnits),
	)
	s.logger.Info().
		Str("product", order.Product).
		Int("cantidad", order.Quantity).
		Str("envio", string(res.Breakdown.ShippingMethod)).
		Int64("total_minor_units", res.Breakdown.TotalMinorUnits).
		Str("session_id", res.SessionID).
		Str("order_ref", res.OrderRef).
		Msg("checkout_session_created")
	return res, nil
}

func (s *Service) create(ctx context.Context, order OrderRequest) (Result, error) {
	q, err := s.price(order)
	if err != nil {
		return Result{}, err
	}
	if s.provider == nil {
		return Result{}, fmt.Errorf("checkout: payment provider not configured: %w", common.ErrMissingConfiguration)
	}
	req, err := s.builder.Build(q.Product, order, q.Breakdown)
	if err != nil {
		return Result{}, err
	}
	sess, err := s.provider.CreateCheckoutSession(ctx, req)
	if err != nil {
		if !errors.Is(err, common.ErrUpstreamFailure) && !errors.Is(err, common.ErrUpstreamUnavailable) && !errors.Is(err, common.ErrMissingConfiguration) {
			err = fmt.Errorf("checkout: %w: %w", common.ErrUpstreamFailure, err)
		}
		return Result{}, err
	}
	return Result{
		URL:       sess.RedirectURL,
		SessionID: sess.ID,
		OrderRef:  req.IdempotencyKey,
		Breakdown: q.Breakdown,
	}, nil
}

func (s *Service) price(order OrderRequest) (Quote, error) {
	if err := order.Validate(); err != nil {
		return Quote{}, err
	}
	product, err := s.catalog.Product(order.Product)
	if err != nil {
		return Quote{}, err
	}
	tier, err := s.catalog.ResolveTier(order.Product, order.Quantity)
	if err != nil {
		return Quote{}, err
	}
	breakdown, err := s.calc.Compute(tier, order.Quantity, order.ExtrasTotal(), order.Shipping)
	if err != nil {
		return Quote{}, err
	}
	return Quote{Product: product, Tier: tier, Breakdown: breakdown, Extras: order.Extras()}, nil
}

func resultLabel(err error) string {
	switch {
	case errors.Is(err, common.ErrUnknownProduct),
		errors.Is(err, common.ErrUnsupportedQuantity),
		errors.Is(err, common.ErrInvalidExtras),
		errors.Is(err, common.ErrAmountTooLow),
		errors.Is(err, common.ErrAmountTooHigh),
		errors.Is(err, common.ErrInvalidRequestPayload):
		return "validation_error"
	case errors.Is(err, common.ErrMissingConfiguration):
		return "config_error"
	case errors.Is(err, common.ErrUpstreamUnavailable):
		return "provider_unavailable"
	default:
		return "provider_error"
	}
}

func recordSpanError(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
