package payment

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v78"

	"github.com/noah-isme/printshop-checkout/internal/common"
	"github.com/noah-isme/printshop-checkout/internal/resilience"
)

type fakeSessions struct {
	params  *stripe.CheckoutSessionParams
	session *stripe.CheckoutSession
	err     error
}

func (f *fakeSessions) New(params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error) {
	f.params = params
	if f.err != nil {
		return nil, f.err
	}
	return f.session, nil
}

func sampleRequest() CheckoutRequest {
	return CheckoutRequest{
		Currency: "EUR",
		Items: []LineItem{{
			Name:        "Flyers",
			Description: "1000 uds · envío normal",
			Amount:      1899,
			Quantity:    1,
		}},
		Metadata:       map[string]string{"product": "flyers", "cantidad": "1000"},
		SuccessURL:     "https://shop.example/gracias",
		CancelURL:      "https://shop.example/cancelado",
		IdempotencyKey: "order-ref-1",
	}
}

func TestStripeProviderBuildsSingleLineItem(t *testing.T) {
	fake := &fakeSessions{session: &stripe.CheckoutSession{ID: "cs_1", URL: "https://checkout.stripe.com/c/pay/cs_1", ExpiresAt: 1700000000}}
	p, err := NewStripeProvider(StripeConfig{AccountID: "acct_1", sessions: fake, Logger: zerolog.Nop()})
	require.NoError(t, err)

	sess, err := p.CreateCheckoutSession(context.Background(), sampleRequest())
	require.NoError(t, err)
	require.Equal(t, "cs_1", sess.ID)
	require.Equal(t, "stripe", sess.Provider)
	require.Equal(t, "https://checkout.stripe.com/c/pay/cs_1", sess.RedirectURL)
	require.Equal(t, time.Unix(1700000000, 0).UTC(), sess.ExpiresAt)

	params := fake.params
	require.NotNil(t, params)
	require.Equal(t, "payment", *params.Mode)
	require.False(t, *params.AutomaticTax.Enabled)
	require.Len(t, params.LineItems, 1)
	line := params.LineItems[0]
	require.Equal(t, int64(1), *line.Quantity)
	require.Equal(t, int64(1899), *line.PriceData.UnitAmount)
	require.Equal(t, "eur", *line.PriceData.Currency)
	require.Equal(t, "Flyers", *line.PriceData.ProductData.Name)
	require.Equal(t, "flyers", params.Metadata["product"])
	require.Equal(t, "1000", params.PaymentIntentData.Metadata["cantidad"])
	require.Equal(t, "order-ref-1", *params.IdempotencyKey)
	require.Equal(t, "acct_1", *params.StripeAccount)
}

func TestStripeProviderErrors(t *testing.T) {
	_, err := NewStripeProvider(StripeConfig{APIKey: " "})
	require.ErrorIs(t, err, common.ErrMissingConfiguration)

	fake := &fakeSessions{err: &stripe.Error{Msg: "Invalid API Key provided"}}
	p, err := NewStripeProvider(StripeConfig{sessions: fake})
	require.NoError(t, err)
	_, err = p.CreateCheckoutSession(context.Background(), sampleRequest())
	require.ErrorIs(t, err, common.ErrUpstreamFailure)
	require.Contains(t, err.Error(), "Invalid API Key provided")

	fake.err = &url.Error{Op: "Post", URL: "https://api.stripe.com", Err: resilience.ErrOpenCircuit}
	_, err = p.CreateCheckoutSession(context.Background(), sampleRequest())
	require.ErrorIs(t, err, common.ErrUpstreamUnavailable)

	fake.err = nil
	fake.session = &stripe.CheckoutSession{ID: "cs_2"}
	_, err = p.CreateCheckoutSession(context.Background(), sampleRequest())
	require.ErrorIs(t, err, common.ErrUpstreamFailure)

	_, err = p.CreateCheckoutSession(context.Background(), CheckoutRequest{})
	require.Error(t, err)

	var nilProvider *StripeProvider
	_, err = nilProvider.CreateCheckoutSession(context.Background(), sampleRequest())
	require.True(t, errors.Is(err, common.ErrMissingConfiguration))
}

func TestStripeProviderOverHTTP(t *testing.T) {
	var form url.Values
	var header http.Header
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/checkout/sessions", r.URL.Path)
		body, _ := io.ReadAll(r.Body)
		form, _ = url.ParseQuery(string(body))
		header = r.Header.Clone()
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"id":"cs_test_http","object":"checkout.session","url":"https://checkout.stripe.com/c/pay/cs_test_http","amount_total":1899,"currency":"eur"}`)
	}))
	defer srv.Close()

	p, err := NewStripeProvider(StripeConfig{
		APIKey:     "sk_test_123",
		APIURL:     srv.URL,
		HTTPClient: srv.Client(),
		Clock:      func() time.Time { return time.Unix(1000, 0) },
	})
	require.NoError(t, err)

	sess, err := p.CreateCheckoutSession(context.Background(), sampleRequest())
	require.NoError(t, err)
	require.Equal(t, "cs_test_http", sess.ID)
	require.Equal(t, time.Unix(1000, 0).UTC().Add(24*time.Hour), sess.ExpiresAt)

	require.Equal(t, "1899", form.Get("line_items[0][price_data][unit_amount]"))
	require.Equal(t, "1", form.Get("line_items[0][quantity]"))
	require.Equal(t, "payment", form.Get("mode"))
	require.Equal(t, "flyers", form.Get("metadata[product]"))
	require.Empty(t, form.Get("line_items[1][quantity]"))
	require.Equal(t, "order-ref-1", header.Get("Idempotency-Key"))
}

func TestStripeProviderUpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = io.WriteString(w, `{"error":{"type":"invalid_request_error","message":"Amount must be at least 0.50 eur"}}`)
	}))
	defer srv.Close()

	p, err := NewStripeProvider(StripeConfig{APIKey: "sk_test_123", APIURL: srv.URL, HTTPClient: srv.Client()})
	require.NoError(t, err)
	_, err = p.CreateCheckoutSession(context.Background(), sampleRequest())
	require.ErrorIs(t, err, common.ErrUpstreamFailure)
	require.Contains(t, err.Error(), "Amount must be at least 0.50 eur")

	appErr := common.AsAppError(err)
	require.Equal(t, http.StatusInternalServerError, appErr.HTTPStatus)
}

func TestCheckoutRequestTotal(t *testing.T) {
	req := CheckoutRequest{Items: []LineItem{{Amount: 1000, Quantity: 2}, {Amount: 99}}}
	require.Equal(t, int64(2099), req.Total())
}
