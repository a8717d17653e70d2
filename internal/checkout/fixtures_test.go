package checkout

import (
	"context"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/printshop-checkout/internal/catalog"
	"github.com/noah-isme/printshop-checkout/internal/payment"
	"github.com/noah-isme/printshop-checkout/internal/pricing"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

type fakeProvider struct {
	mu       sync.Mutex
	requests []payment.CheckoutRequest
	session  payment.Session
	err      error
}

func (f *fakeProvider) CreateCheckoutSession(_ context.Context, req payment.CheckoutRequest) (payment.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	if f.err != nil {
		return payment.Session{}, f.err
	}
	return f.session, nil
}

func (f *fakeProvider) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests)
}

func (f *fakeProvider) last() payment.CheckoutRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.requests[len(f.requests)-1]
}

type recordedOutcome struct {
	product, result string
	amount          int64
}

type fakeRecorder struct {
	mu       sync.Mutex
	sessions []recordedOutcome
	quotes   []recordedOutcome
}

func (r *fakeRecorder) ObserveSession(product, result string, amount int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions = append(r.sessions, recordedOutcome{product: product, result: result, amount: amount})
}

func (r *fakeRecorder) ObserveQuote(product, result string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.quotes = append(r.quotes, recordedOutcome{product: product, result: result})
}

func testCatalog(t *testing.T) *catalog.Catalog {
	t.Helper()
	c, err := catalog.New([]catalog.Product{
		{
			ID:   "flyers",
			Name: "Flyers",
			Tiers: []catalog.PriceTier{
				{Quantity: 100, UnitPrice: dec("0.12")},
				{Quantity: 500, UnitPrice: dec("0.02")},
				{Quantity: 1000, UnitPrice: dec("0.01")},
			},
		},
		{
			ID:          "mini",
			Name:        "Mini",
			SuccessPath: "/ok",
			CancelPath:  "/ko",
			Tiers:       []catalog.PriceTier{{Quantity: 1, UnitPrice: dec("0.25")}},
		},
		{ID: "empty", Name: "Empty"},
	})
	require.NoError(t, err)
	return c
}

type serviceOpts struct {
	provider     payment.Provider
	noProvider   bool
	pricing      func(*pricing.Config)
	sessionParam string
}

func newTestService(t *testing.T, opts serviceOpts) (*Service, *fakeProvider, *fakeRecorder) {
	t.Helper()
	cfg := pricing.DefaultConfig()
	if opts.pricing != nil {
		opts.pricing(&cfg)
	}
	calc, err := pricing.NewCalculator(cfg)
	require.NoError(t, err)

	builder, err := NewBuilder(BuilderConfig{
		BaseURL:      "https://shop.example/",
		SessionParam: opts.sessionParam,
		NewRef:       func() string { return "ref-123" },
	})
	require.NoError(t, err)

	fake := &fakeProvider{session: payment.Session{ID: "cs_test_1", Provider: "fake", RedirectURL: "https://checkout.example/cs_test_1"}}
	var provider payment.Provider = fake
	if opts.provider != nil {
		provider = opts.provider
	}
	if opts.noProvider {
		provider = nil
	}
	rec := &fakeRecorder{}
	svc, err := NewService(ServiceConfig{
		Catalog:    testCatalog(t),
		Calculator: calc,
		Builder:    builder,
		Provider:   provider,
		Metrics:    rec,
		Logger:     zerolog.Nop(),
	})
	require.NoError(t, err)
	return svc, fake, rec
}
