package checkout

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/noah-isme/printshop-checkout/internal/catalog"
	"github.com/noah-isme/printshop-checkout/internal/common"
	"github.com/noah-isme/printshop-checkout/internal/payment"
	"github.com/noah-isme/printshop-checkout/internal/pricing"
)

const (
	maxDescriptionRunes = 500
	// Stripe metadata values are capped at 500 characters.
	maxMetadataValue    = 500
	sessionPlaceholder  = "{CHECKOUT_SESSION_ID}"
)

// BuilderConfig configures a Builder.
type BuilderConfig struct {
	BaseURL string
	// SessionParam, when set, adds <param>={CHECKOUT_SESSION_ID} to the
	// success URL so the thank-you page can look the session up.
	SessionParam string
	NewRef       func() string
}

// Builder turns a priced order into a provider checkout request. It has no
// side effects beyond generating an order reference.
type Builder struct {
	baseURL      string
	sessionParam string
	newRef       func() string
}

// NewBuilder validates cfg and returns a Builder.
func NewBuilder(cfg BuilderConfig) (*Builder, error) {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		return nil, fmt.Errorf("checkout builder: base url is required: %w", common.ErrMissingConfiguration)
	}
	if u, err := url.Parse(base); err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("checkout builder: base url %q is not absolute: %w", base, common.ErrMissingConfiguration)
	}
	newRef := cfg.NewRef
	if newRef == nil {
		newRef = uuid.NewString
	}
	return &Builder{
		baseURL:      base,
		sessionParam: strings.TrimSpace(cfg.SessionParam),
		newRef:       newRef,
	}, nil
}

// Build assembles the single consolidated line item, the metadata and the
// return URLs for order priced as breakdown.
func (b *Builder) Build(product catalog.Product, order OrderRequest, breakdown pricing.Breakdown) (payment.CheckoutRequest, error) {
	if b == nil {
		return payment.CheckoutRequest{}, fmt.Errorf("checkout builder: %w", common.ErrMissingConfiguration)
	}
	if breakdown.TotalMinorUnits < 1 {
		return payment.CheckoutRequest{}, fmt.Errorf("checkout builder: amount %d: %w", breakdown.TotalMinorUnits, common.ErrAmountTooLow)
	}
	ref := b.newRef()

	name := strings.TrimSpace(product.Name)
	if name == "" {
		name = product.ID
	}

	metadata := map[string]string{
		"product":                product.ID,
		"cantidad":               strconv.Itoa(order.Quantity),
		"envio":                  string(breakdown.ShippingMethod),
		"opciones":               order.OptionsLabel,
		"unit_price":             breakdown.UnitPrice.String(),
		"unit_price_with_margin": breakdown.UnitPriceWithMargin.String(),
		"extras_total":           breakdown.ExtrasTotal.StringFixed(2),
		"shipping_cost":          breakdown.ShippingCost.StringFixed(2),
		"subtotal":               breakdown.Subtotal.StringFixed(2),
		"tax_rate":               breakdown.TaxRate.String(),
		"tax_amount":             breakdown.TaxAmount.StringFixed(2),
		"total":                  breakdown.Total.StringFixed(2),
		"total_minor_units":      strconv.FormatInt(breakdown.TotalMinorUnits, 10),
		"order_ref":              ref,
	}
	for _, extra := range order.Extras() {
		metadata["extra_"+extra.Key] = extra.Amount.String()
	}
	for k, v := range metadata {
		metadata[k] = truncateRunes(v, maxMetadataValue)
	}

	return payment.CheckoutRequest{
		Currency: breakdown.Currency,
		Items: []payment.LineItem{{
			Name:        name,
			Description: truncateRunes(order.OptionsLabel, maxDescriptionRunes),
			Amount:      breakdown.TotalMinorUnits,
			Quantity:    1,
		}},
		Metadata:       metadata,
		SuccessURL:     b.successURL(product),
		CancelURL:      b.baseURL + pathOrDefault(product.CancelPath, "/cancelado"),
		IdempotencyKey: ref,
	}, nil
}

func (b *Builder) successURL(product catalog.Product) string {
	u := b.baseURL + pathOrDefault(product.SuccessPath, "/gracias")
	if b.sessionParam == "" {
		return u
	}
	sep := "?"
	if strings.Contains(u, "?") {
		sep = "&"
	}
	// the placeholder must reach the provider unescaped
	return u + sep + url.QueryEscape(b.sessionParam) + "=" + sessionPlaceholder
}

func pathOrDefault(path, fallback string) string {
	path = strings.TrimSpace(path)
	if path == "" {
		path = fallback
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return path
}

// truncateRunes cuts s to at most n runes without splitting a character.
func truncateRunes(s string, n int) string {
	if len(s) <= n {
		return s
	}
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}
