package payment

import (
	"context"
	"time"
)

// LineItem is one charge shown on the hosted checkout page. Amount is the
// unit amount in minor currency units.
type LineItem struct {
	Name        string
	Description string
	Amount      int64
	Quantity    int64
}

// CheckoutRequest is the provider-agnostic description of a hosted checkout
// session.
type CheckoutRequest struct {
	Currency       string
	Items          []LineItem
	Metadata       map[string]string
	SuccessURL     string
	CancelURL      string
	IdempotencyKey string
}

// Total returns the sum of all line items in minor units.
func (r CheckoutRequest) Total() int64 {
	var total int64
	for _, it := range r.Items {
		qty := it.Quantity
		if qty <= 0 {
			qty = 1
		}
		total += it.Amount * qty
	}
	return total
}

// Session is the provider's answer to a checkout request.
type Session struct {
	ID          string
	Provider    string
	RedirectURL string
	ExpiresAt   time.Time
}

// Provider abstracts the hosted checkout API of an upstream payment provider.
type Provider interface {
	CreateCheckoutSession(ctx context.Context, req CheckoutRequest) (Session, error)
}
