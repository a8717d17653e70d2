package pricing

import (
	"encoding/json"
	"math"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
)

// ExtraKeys lists the option fields whose numeric value is added to the
// order. Each entry maps an accepted field name to its canonical key.
var ExtraKeys = map[string]string{
	"material":    "material",
	"gramaje":     "gramaje",
	"weight":      "gramaje",
	"impresion":   "impresion",
	"print":       "impresion",
	"forma":       "forma",
	"shape":       "forma",
	"laminado":    "laminado",
	"lamination":  "laminado",
	"tamano":      "tamano",
	"size":        "tamano",
	"esquinas":    "esquinas",
	"corners":     "esquinas",
	"orientacion": "orientacion",
	"orientation": "orientacion",
	"acabado":     "acabado",
	"finish":      "acabado",
}

// aggregateKeys carry a pre-summed extras amount that overrides the per-key sum.
var aggregateKeys = []string{"extraTotal", "extra_total", "extrasTotal"}

// Extra is one priced option.
type Extra struct {
	Key    string
	Amount decimal.Decimal
}

// SumExtras adds the known option fields in fields. Missing, non-numeric and
// negative values contribute zero. A numeric aggregate field wins over the
// per-key sum.
func SumExtras(fields map[string]any) decimal.Decimal {
	if total, ok := Aggregate(fields); ok {
		return total
	}
	sum := decimal.Zero
	for _, e := range ExtrasDetail(fields) {
		sum = sum.Add(e.Amount)
	}
	return sum
}

// Aggregate returns the pre-summed extras total when the payload carries one.
func Aggregate(fields map[string]any) (decimal.Decimal, bool) {
	for _, key := range aggregateKeys {
		raw, present := fields[key]
		if !present {
			continue
		}
		if v, ok := ParseAmount(raw); ok {
			return clamp(v), true
		}
	}
	return decimal.Zero, false
}

// ExtrasDetail returns the positive contribution of each known option, sorted
// by canonical key. Aliases of the same option are added together.
func ExtrasDetail(fields map[string]any) []Extra {
	byKey := map[string]decimal.Decimal{}
	for name, raw := range fields {
		key, known := ExtraKeys[name]
		if !known {
			continue
		}
		v, ok := ParseAmount(raw)
		if !ok {
			continue
		}
		v = clamp(v)
		if v.IsZero() {
			continue
		}
		byKey[key] = byKey[key].Add(v)
	}
	out := make([]Extra, 0, len(byKey))
	for k, v := range byKey {
		out = append(out, Extra{Key: k, Amount: v})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

// Amounts outside these bounds are treated as unparseable. Scientific notation
// with a large exponent would otherwise expand to an enormous integer the first
// time the value is rounded or formatted. Amounts that parse but exceed the
// chargeable maximum are rejected later by Compute.
const (
	minAmountExponent = -12
	maxAmountExponent = 12
)

var maxAmountMagnitude = decimal.New(1, 30)

// ParseAmount coerces a decoded JSON value into a decimal.
func ParseAmount(raw any) (decimal.Decimal, bool) {
	d, ok := parseAmount(raw)
	if !ok {
		return decimal.Zero, false
	}
	if exp := d.Exponent(); exp < minAmountExponent || exp > maxAmountExponent {
		return decimal.Zero, false
	}
	if d.Abs().GreaterThan(maxAmountMagnitude) {
		return decimal.Zero, false
	}
	return d, true
}

func parseAmount(raw any) (decimal.Decimal, bool) {
	switch v := raw.(type) {
	case nil:
		return decimal.Zero, false
	case decimal.Decimal:
		return v, true
	case json.Number:
		d, err := decimal.NewFromString(v.String())
		return d, err == nil
	case string:
		trimmed := strings.TrimSpace(strings.Replace(v, ",", ".", 1))
		if trimmed == "" {
			return decimal.Zero, false
		}
		d, err := decimal.NewFromString(trimmed)
		return d, err == nil
	case float64:
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return decimal.Zero, false
		}
		return decimal.NewFromFloat(v), true
	case float32:
		return parseAmount(float64(v))
	case int:
		return decimal.NewFromInt(int64(v)), true
	case int64:
		return decimal.NewFromInt(v), true
	case int32:
		return decimal.NewFromInt(int64(v)), true
	default:
		return decimal.Zero, false
	}
}

func clamp(v decimal.Decimal) decimal.Decimal {
	if v.IsNegative() {
		return decimal.Zero
	}
	return v
}
