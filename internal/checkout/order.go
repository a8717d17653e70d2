package checkout

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"reflect"
	"strconv"
	"strings"

	validator "github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/printshop-checkout/internal/common"
	"github.com/noah-isme/printshop-checkout/internal/pricing"
)

// DefaultProduct is used when the payload names no product.
const DefaultProduct = "flyers"

// OrderRequest is a decoded and normalised checkout payload.
type OrderRequest struct {
	Product      string                 `json:"product" validate:"required"`
	Quantity     int                    `json:"cantidad" validate:"gt=0"`
	Shipping     pricing.ShippingMethod `json:"envio" validate:"oneof=normal express"`
	OptionsLabel string                 `json:"opciones_label"`
	// Options holds every other field of the payload; priced extras are
	// picked from it by key.
	Options map[string]any `json:"-"`
}

// Extras returns the per-option contributions that were priced. It is empty
// when a pre-summed extras total replaced the per-option sum.
func (o OrderRequest) Extras() []pricing.Extra {
	if _, aggregated := pricing.Aggregate(o.Options); aggregated {
		return nil
	}
	return pricing.ExtrasDetail(o.Options)
}

// ExtrasTotal returns the priced extras of the order.
func (o OrderRequest) ExtrasTotal() decimal.Decimal {
	return pricing.SumExtras(o.Options)
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

var reservedFields = map[string]struct{}{
	"product":        {},
	"cantidad":       {},
	"envio":          {},
	"opciones_label": {},
	"extras":         {},
}

// DecodeOrder reads a JSON checkout payload. Extras may be sent as top-level
// fields or inside an "extras" object; when both carry a key the nested value
// wins.
func DecodeOrder(r io.Reader) (OrderRequest, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return OrderRequest{}, fmt.Errorf("%w: %v", common.ErrInvalidRequestPayload, err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		data = []byte("{}")
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var raw map[string]any
	if err := dec.Decode(&raw); err != nil {
		return OrderRequest{}, fmt.Errorf("%w: %v", common.ErrInvalidRequestPayload, err)
	}
	return ParseOrder(raw)
}

// ParseOrder normalises an already decoded payload and validates it.
func ParseOrder(raw map[string]any) (OrderRequest, error) {
	order := OrderRequest{
		Product:  DefaultProduct,
		Shipping: pricing.ShippingNormal,
		Options:  map[string]any{},
	}

	if v, ok := raw["product"]; ok && v != nil {
		s, isString := v.(string)
		if !isString {
			return OrderRequest{}, fmt.Errorf("%w: product must be a string", common.ErrInvalidRequestPayload)
		}
		if s = strings.TrimSpace(s); s != "" {
			order.Product = s
		}
	}

	qty, err := parseQuantity(raw["cantidad"])
	if err != nil {
		return OrderRequest{}, err
	}
	order.Quantity = qty

	if v, ok := raw["envio"].(string); ok {
		order.Shipping = pricing.NormalizeShipping(v)
	}

	switch v := raw["opciones_label"].(type) {
	case nil:
	case string:
		order.OptionsLabel = strings.TrimSpace(v)
	default:
		return OrderRequest{}, fmt.Errorf("%w: opciones_label must be a string", common.ErrInvalidRequestPayload)
	}

	for key, value := range raw {
		if _, reserved := reservedFields[key]; reserved {
			continue
		}
		order.Options[key] = value
	}
	if nested, present := raw["extras"]; present && nested != nil {
		fields, ok := nested.(map[string]any)
		if !ok {
			return OrderRequest{}, fmt.Errorf("extras must be an object: %w", common.ErrInvalidExtras)
		}
		for key, value := range fields {
			order.Options[key] = value
		}
	}

	if err := order.Validate(); err != nil {
		return OrderRequest{}, err
	}
	return order, nil
}

// Validate checks the structural rules of the order and maps violations onto
// the checkout error taxonomy.
func (o OrderRequest) Validate() error {
	err := validate.Struct(o)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return fmt.Errorf("%w: %v", common.ErrInvalidRequestPayload, err)
	}
	fe := fieldErrs[0]
	switch fe.Field() {
	case "product":
		return fmt.Errorf("product is required: %w", common.ErrUnknownProduct)
	case "cantidad":
		return fmt.Errorf("cantidad must be positive, got %v: %w", fe.Value(), common.ErrUnsupportedQuantity)
	default:
		return fmt.Errorf("%w: %s failed %s", common.ErrInvalidRequestPayload, fe.Field(), fe.Tag())
	}
}

// parseQuantity accepts an integral JSON number or numeric string. Anything
// else is an unsupported quantity.
func parseQuantity(raw any) (int, error) {
	var text string
	switch v := raw.(type) {
	case nil:
		return 0, fmt.Errorf("cantidad is required: %w", common.ErrUnsupportedQuantity)
	case json.Number:
		text = v.String()
	case string:
		text = strings.TrimSpace(v)
	case float64:
		text = strconv.FormatFloat(v, 'f', -1, 64)
	case int:
		return v, nil
	default:
		return 0, fmt.Errorf("cantidad %v: %w", raw, common.ErrUnsupportedQuantity)
	}
	if n, err := strconv.Atoi(text); err == nil {
		return n, nil
	}
	f, err := strconv.ParseFloat(strings.Replace(text, ",", ".", 1), 64)
	if err != nil || f != float64(int(f)) {
		return 0, fmt.Errorf("cantidad %q: %w", text, common.ErrUnsupportedQuantity)
	}
	return int(f), nil
}
