package catalog

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/noah-isme/printshop-checkout/internal/common"
)

const (
	defaultSuccessPath = "/gracias"
	defaultCancelPath  = "/cancelado"
)

// PriceTier is one volume-pricing bracket: the base unit price charged when
// ordering Quantity units.
type PriceTier struct {
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

// Product is a sellable item with its tier table. Tiers are sorted by
// ascending quantity.
type Product struct {
	ID          string      `json:"id"`
	Name        string      `json:"name"`
	SuccessPath string      `json:"-"`
	CancelPath  string      `json:"-"`
	Tiers       []PriceTier `json:"tiers"`
}

// Catalog is an immutable product lookup built once at start-up. It is safe
// for concurrent readers.
type Catalog struct {
	products map[string]Product
	order    []string
}

// New validates products and builds a Catalog. Tier slices are copied and
// sorted so later mutation of the input has no effect.
func New(products []Product) (*Catalog, error) {
	c := &Catalog{products: make(map[string]Product, len(products))}
	for _, p := range products {
		id := strings.TrimSpace(p.ID)
		if id == "" {
			return nil, errors.New("catalog: product id is required")
		}
		if _, dup := c.products[id]; dup {
			return nil, fmt.Errorf("catalog: duplicate product %q", id)
		}
		tiers := make([]PriceTier, len(p.Tiers))
		copy(tiers, p.Tiers)
		sort.SliceStable(tiers, func(i, j int) bool { return tiers[i].Quantity < tiers[j].Quantity })
		for i, t := range tiers {
			if t.Quantity <= 0 {
				return nil, fmt.Errorf("catalog: product %q has tier with quantity %d", id, t.Quantity)
			}
			if t.UnitPrice.IsNegative() {
				return nil, fmt.Errorf("catalog: product %q tier %d has negative unit price", id, t.Quantity)
			}
			if i > 0 && tiers[i-1].Quantity == t.Quantity {
				return nil, fmt.Errorf("catalog: product %q has duplicate tier %d", id, t.Quantity)
			}
		}
		p.ID = id
		p.Tiers = tiers
		if strings.TrimSpace(p.Name) == "" {
			p.Name = id
		}
		if p.SuccessPath == "" {
			p.SuccessPath = defaultSuccessPath
		}
		if p.CancelPath == "" {
			p.CancelPath = defaultCancelPath
		}
		c.products[id] = p
		c.order = append(c.order, id)
	}
	sort.Strings(c.order)
	return c, nil
}

// Product returns the product registered under id.
func (c *Catalog) Product(id string) (Product, error) {
	if c == nil {
		return Product{}, fmt.Errorf("catalog not configured: %w", common.ErrMissingConfiguration)
	}
	p, ok := c.products[id]
	if !ok {
		return Product{}, fmt.Errorf("product %q: %w", id, common.ErrUnknownProduct)
	}
	return p, nil
}

// Products lists every product ordered by id.
func (c *Catalog) Products() []Product {
	if c == nil {
		return nil
	}
	out := make([]Product, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.products[id])
	}
	return out
}

// ResolveTier picks the tier used to price quantity units of product. An
// exact quantity match wins; otherwise the tier closest by absolute
// difference is used, ties going to the smaller quantity.
func (c *Catalog) ResolveTier(product string, quantity int) (PriceTier, error) {
	p, err := c.Product(product)
	if err != nil {
		return PriceTier{}, err
	}
	if quantity <= 0 {
		return PriceTier{}, fmt.Errorf("quantity %d: %w", quantity, common.ErrUnsupportedQuantity)
	}
	if len(p.Tiers) == 0 {
		return PriceTier{}, fmt.Errorf("product %q has no price tiers: %w", product, common.ErrUnsupportedQuantity)
	}
	return nearestTier(p.Tiers, quantity), nil
}

// nearestTier expects tiers sorted ascending by quantity.
func nearestTier(tiers []PriceTier, quantity int) PriceTier {
	idx := sort.Search(len(tiers), func(i int) bool { return tiers[i].Quantity >= quantity })
	if idx < len(tiers) && tiers[idx].Quantity == quantity {
		return tiers[idx]
	}
	if idx == 0 {
		return tiers[0]
	}
	if idx == len(tiers) {
		return tiers[len(tiers)-1]
	}
	below, above := tiers[idx-1], tiers[idx]
	if above.Quantity-quantity < quantity-below.Quantity {
		return above
	}
	return below
}
