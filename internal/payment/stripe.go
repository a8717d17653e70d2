package payment

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/stripe/stripe-go/v78"
	"github.com/stripe/stripe-go/v78/client"

	"github.com/noah-isme/printshop-checkout/internal/common"
	"github.com/noah-isme/printshop-checkout/internal/resilience"
)

type stripeSessionAPI interface {
	New(params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error)
}

// StripeConfig configures the StripeProvider.
type StripeConfig struct {
	APIKey     string
	AccountID  string
	HTTPClient *http.Client
	// APIURL overrides the Stripe API base URL; tests point it at httptest.
	APIURL   string
	Logger   zerolog.Logger
	Clock    func() time.Time
	sessions stripeSessionAPI
}

// StripeProvider creates Stripe Checkout sessions.
type StripeProvider struct {
	sessions stripeSessionAPI
	account  string
	clock    func() time.Time
	logger   zerolog.Logger
}

// NewStripeProvider constructs a Stripe Provider. Network retries inside the
// Stripe client are disabled; a failed session creation is reported to the
// caller instead of being replayed.
func NewStripeProvider(cfg StripeConfig) (*StripeProvider, error) {
	apiKey := strings.TrimSpace(cfg.APIKey)
	sessions := cfg.sessions
	if sessions == nil {
		if apiKey == "" {
			return nil, fmt.Errorf("stripe: api key is required: %w", common.ErrMissingConfiguration)
		}
		backendCfg := &stripe.BackendConfig{
			HTTPClient:        cfg.HTTPClient,
			MaxNetworkRetries: stripe.Int64(0),
			LeveledLogger:     stripeLogger{logger: cfg.Logger},
			EnableTelemetry:   stripe.Bool(false),
		}
		if u := strings.TrimRight(strings.TrimSpace(cfg.APIURL), "/"); u != "" {
			backendCfg.URL = stripe.String(u)
		}
		backends := &stripe.Backends{
			API:     stripe.GetBackendWithConfig(stripe.APIBackend, backendCfg),
			Connect: stripe.GetBackendWithConfig(stripe.ConnectBackend, backendCfg),
			Uploads: stripe.GetBackendWithConfig(stripe.UploadsBackend, backendCfg),
		}
		sessions = client.New(apiKey, backends).CheckoutSessions
	}

	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	return &StripeProvider{
		sessions: sessions,
		account:  strings.TrimSpace(cfg.AccountID),
		clock:    func() time.Time { return clock().UTC() },
		logger:   cfg.Logger,
	}, nil
}

// CreateCheckoutSession creates a Stripe Checkout session in payment mode.
func (p *StripeProvider) CreateCheckoutSession(ctx context.Context, req CheckoutRequest) (Session, error) {
	if p == nil || p.sessions == nil {
		return Session{}, fmt.Errorf("stripe: provider not configured: %w", common.ErrMissingConfiguration)
	}
	if len(req.Items) == 0 {
		return Session{}, errors.New("stripe: at least one line item is required")
	}

	params := &stripe.CheckoutSessionParams{
		Mode:       stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL: stripe.String(req.SuccessURL),
		CancelURL:  stripe.String(req.CancelURL),
		AutomaticTax: &stripe.CheckoutSessionAutomaticTaxParams{
			Enabled: stripe.Bool(false),
		},
	}
	params.Context = ctx
	if key := strings.TrimSpace(req.IdempotencyKey); key != "" {
		params.SetIdempotencyKey(key)
	}
	if p.account != "" {
		params.SetStripeAccount(p.account)
	}
	if len(req.Metadata) > 0 {
		params.Metadata = copyMetadata(req.Metadata)
		params.PaymentIntentData = &stripe.CheckoutSessionPaymentIntentDataParams{
			Metadata: copyMetadata(req.Metadata),
		}
	}

	currency := strings.ToLower(strings.TrimSpace(req.Currency))
	lineItems := make([]*stripe.CheckoutSessionLineItemParams, 0, len(req.Items))
	for _, item := range req.Items {
		qty := item.Quantity
		if qty < 1 {
			qty = 1
		}
		line := &stripe.CheckoutSessionLineItemParams{
			Quantity: stripe.Int64(qty),
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency:   stripe.String(currency),
				UnitAmount: stripe.Int64(item.Amount),
				ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
					Name: stripe.String(item.Name),
				},
			},
		}
		if item.Description != "" {
			line.PriceData.ProductData.Description = stripe.String(item.Description)
		}
		lineItems = append(lineItems, line)
	}
	params.LineItems = lineItems

	session, err := p.sessions.New(params)
	if err != nil {
		return Session{}, classifyStripeError(err)
	}

	p.logger.Info().
		Str("session_id", session.ID).
		Int64("amount_total", session.AmountTotal).
		Str("currency", string(session.Currency)).
		Msg("stripe_session_created")

	expiresAt := p.clock().Add(24 * time.Hour)
	if session.ExpiresAt != 0 {
		expiresAt = time.Unix(session.ExpiresAt, 0).UTC()
	}
	if strings.TrimSpace(session.URL) == "" {
		return Session{}, fmt.Errorf("stripe: session %s has no redirect url: %w", session.ID, common.ErrUpstreamFailure)
	}
	return Session{
		ID:          session.ID,
		Provider:    "stripe",
		RedirectURL: session.URL,
		ExpiresAt:   expiresAt,
	}, nil
}

func classifyStripeError(err error) error {
	if errors.Is(err, resilience.ErrOpenCircuit) {
		return fmt.Errorf("stripe: %w: %w", common.ErrUpstreamUnavailable, err)
	}
	var stripeErr *stripe.Error
	if errors.As(err, &stripeErr) && strings.TrimSpace(stripeErr.Msg) != "" {
		return fmt.Errorf("stripe: %s: %w", stripeErr.Msg, common.ErrUpstreamFailure)
	}
	return fmt.Errorf("stripe: create checkout session: %w: %w", common.ErrUpstreamFailure, err)
}

func copyMetadata(in map[string]string) map[string]string {
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

// stripeLogger adapts zerolog to the Stripe client's leveled logger.
type stripeLogger struct {
	logger zerolog.Logger
}

func (l stripeLogger) Debugf(format string, v ...interface{}) {
	l.logger.Debug().Str("component", "stripe").Msgf(format, v...)
}

func (l stripeLogger) Infof(format string, v ...interface{}) {
	l.logger.Debug().Str("component", "stripe").Msgf(format, v...)
}

func (l stripeLogger) Warnf(format string, v ...interface{}) {
	l.logger.Warn().Str("component", "stripe").Msgf(format, v...)
}

func (l stripeLogger) Errorf(format string, v ...interface{}) {
	l.logger.Error().Str("component", "stripe").Msgf(format, v...)
}
