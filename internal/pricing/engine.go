package pricing

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/noah-isme/printshop-checkout/internal/catalog"
	"github.com/noah-isme/printshop-checkout/internal/common"
)

// ShippingMethod identifies a delivery option.
type ShippingMethod string

const (
	// ShippingNormal is the standard delivery option and the fallback for unknown methods.
	ShippingNormal ShippingMethod = "normal"
	// ShippingExpress is the priority delivery option.
	ShippingExpress ShippingMethod = "express"
)

var hundred = decimal.NewFromInt(100)

// NormalizeShipping maps a wire value onto a known method. "expres" is the
// storefront spelling; anything unrecognised is normal delivery.
func NormalizeShipping(value string) ShippingMethod {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "express", "expres", "exprés", "urgente":
		return ShippingExpress
	default:
		return ShippingNormal
	}
}

// Config holds the process-wide pricing constants.
type Config struct {
	Margin        decimal.Decimal
	Shipping      map[ShippingMethod]decimal.Decimal
	TaxRate       decimal.Decimal
	MinimumAmount decimal.Decimal
	// MaximumAmount caps a single charge; zero means DefaultMaximumAmount.
	MaximumAmount decimal.Decimal
	Currency      string
}

// DefaultMaximumAmount is the largest amount Stripe accepts for one charge.
var DefaultMaximumAmount = decimal.RequireFromString("999999.99")

// DefaultConfig returns the shop's standard pricing: 20% margin, EUR, 6.99
// normal and 15.60 express shipping, no tax, 0.50 minimum charge.
func DefaultConfig() Config {
	return Config{
		Margin: decimal.RequireFromString("1.20"),
		Shipping: map[ShippingMethod]decimal.Decimal{
			ShippingNormal:  decimal.RequireFromString("6.99"),
			ShippingExpress: decimal.RequireFromString("15.60"),
		},
		TaxRate:       decimal.Zero,
		MinimumAmount: decimal.RequireFromString("0.50"),
		MaximumAmount: DefaultMaximumAmount,
		Currency:      "eur",
	}
}

// Validate reports configuration that would produce nonsensical prices.
func (c Config) Validate() error {
	var errs []error
	if !c.Margin.GreaterThan(decimal.NewFromInt(1)) {
		errs = append(errs, fmt.Errorf("margin %s must be greater than 1", c.Margin))
	}
	if _, ok := c.Shipping[ShippingNormal]; !ok {
		errs = append(errs, errors.New("normal shipping cost is required"))
	}
	for method, cost := range c.Shipping {
		if cost.IsNegative() {
			errs = append(errs, fmt.Errorf("shipping %s cost %s is negative", method, cost))
		}
	}
	if c.TaxRate.IsNegative() {
		errs = append(errs, fmt.Errorf("tax rate %s is negative", c.TaxRate))
	}
	if !c.MinimumAmount.IsPositive() {
		errs = append(errs, fmt.Errorf("minimum amount %s must be positive", c.MinimumAmount))
	}
	if !c.MaximumAmount.IsZero() && !c.MaximumAmount.GreaterThan(c.MinimumAmount) {
		errs = append(errs, fmt.Errorf("maximum amount %s must exceed minimum %s", c.MaximumAmount, c.MinimumAmount))
	}
	if strings.TrimSpace(c.Currency) == "" {
		errs = append(errs, errors.New("currency is required"))
	}
	if len(errs) > 0 {
		return fmt.Errorf("pricing config: %w: %w", common.ErrMissingConfiguration, errors.Join(errs...))
	}
	return nil
}

// Breakdown is the derived price of one order.
type Breakdown struct {
	UnitPrice           decimal.Decimal `json:"unit_price"`
	UnitPriceWithMargin decimal.Decimal `json:"unit_price_with_margin"`
	Quantity            int             `json:"quantity"`
	ItemsTotal          decimal.Decimal `json:"items_total"`
	ExtrasTotal         decimal.Decimal `json:"extras_total"`
	ShippingMethod      ShippingMethod  `json:"shipping_method"`
	ShippingCost        decimal.Decimal `json:"shipping_cost"`
	Subtotal            decimal.Decimal `json:"subtotal"`
	TaxRate             decimal.Decimal `json:"tax_rate"`
	TaxAmount           decimal.Decimal `json:"tax_amount"`
	Total               decimal.Decimal `json:"total"`
	TotalMinorUnits     int64           `json:"total_minor_units"`
	Currency            string          `json:"currency"`
}

// TaxEnabled reports whether tax was applied.
func (b Breakdown) TaxEnabled() bool { return b.TaxRate.IsPositive() }

// Calculator prices orders against an immutable Config.
type Calculator struct {
	cfg Config
}

// NewCalculator validates cfg and returns a Calculator holding its own copy.
func NewCalculator(cfg Config) (*Calculator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	shipping := make(map[ShippingMethod]decimal.Decimal, len(cfg.Shipping))
	for k, v := range cfg.Shipping {
		shipping[k] = v
	}
	cfg.Shipping = shipping
	if cfg.MaximumAmount.IsZero() {
		cfg.MaximumAmount = DefaultMaximumAmount
	}
	cfg.Currency = strings.ToLower(strings.TrimSpace(cfg.Currency))
	return &Calculator{cfg: cfg}, nil
}

// Margin returns the configured margin multiplier.
func (c *Calculator) Margin() decimal.Decimal { return c.cfg.Margin }

// Currency returns the settlement currency code.
func (c *Calculator) Currency() string { return c.cfg.Currency }

// ShippingCost returns the cost of method, falling back to normal delivery.
func (c *Calculator) ShippingCost(method ShippingMethod) (ShippingMethod, decimal.Decimal) {
	if cost, ok := c.cfg.Shipping[method]; ok {
		return method, cost
	}
	return ShippingNormal, c.cfg.Shipping[ShippingNormal]
}

// Compute prices quantity units at tier, adds extras and shipping, applies
// tax when enabled and converts to minor units.
func (c *Calculator) Compute(tier catalog.PriceTier, quantity int, extrasTotal decimal.Decimal, method ShippingMethod) (Breakdown, error) {
	if c == nil {
		return Breakdown{}, fmt.Errorf("pricing calculator: %w", common.ErrMissingConfiguration)
	}
	if quantity <= 0 {
		return Breakdown{}, fmt.Errorf("quantity %d: %w", quantity, common.ErrUnsupportedQuantity)
	}
	if extrasTotal.IsNegative() {
		extrasTotal = decimal.Zero
	}

	unitWithMargin := tier.UnitPrice.Mul(c.cfg.Margin)
	itemsTotal := unitWithMargin.Mul(decimal.NewFromInt(int64(quantity)))
	method, shipping := c.ShippingCost(method)
	subtotal := itemsTotal.Add(extrasTotal).Add(shipping)

	total := subtotal
	taxAmount := decimal.Zero
	if c.cfg.TaxRate.IsPositive() {
		total = subtotal.Mul(decimal.NewFromInt(1).Add(c.cfg.TaxRate))
		taxAmount = total.Sub(subtotal)
	}

	if total.LessThan(c.cfg.MinimumAmount) {
		return Breakdown{}, fmt.Errorf("total %s %s is below %s: %w",
			total.StringFixed(2), strings.ToUpper(c.cfg.Currency), c.cfg.MinimumAmount.StringFixed(2), common.ErrAmountTooLow)
	}
	if total.GreaterThan(c.cfg.MaximumAmount) {
		return Breakdown{}, fmt.Errorf("total %s %s exceeds %s: %w",
			total.StringFixed(2), strings.ToUpper(c.cfg.Currency), c.cfg.MaximumAmount.StringFixed(2), common.ErrAmountTooHigh)
	}
	minor, err := ToMinorUnits(total)
	if err != nil {
		return Breakdown{}, err
	}

	return Breakdown{
		UnitPrice:           tier.UnitPrice,
		UnitPriceWithMargin: unitWithMargin,
		Quantity:            quantity,
		ItemsTotal:          itemsTotal,
		ExtrasTotal:         extrasTotal,
		ShippingMethod:      method,
		ShippingCost:        shipping,
		Subtotal:            subtotal,
		TaxRate:             c.cfg.TaxRate,
		TaxAmount:           taxAmount,
		Total:               total,
		TotalMinorUnits:     minor,
		Currency:            c.cfg.Currency,
	}, nil
}

// ToMinorUnits converts amount to cents, rounding half away from zero. The
// result is never below 1 so a charge is always strictly positive; amounts
// whose cents do not fit in int64 are ErrAmountTooHigh.
func ToMinorUnits(amount decimal.Decimal) (int64, error) {
	cents := amount.Mul(hundred).Round(0)
	if !cents.BigInt().IsInt64() {
		return 0, fmt.Errorf("amount %s: %w", amount.String(), common.ErrAmountTooHigh)
	}
	if n := cents.IntPart(); n >= 1 {
		return n, nil
	}
	return 1, nil
}
