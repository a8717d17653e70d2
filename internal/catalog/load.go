package catalog

import (
	_ "embed"
	"fmt"
	"os"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

//go:embed default_catalog.yaml
var defaultCatalogYAML []byte

type fileTier struct {
	Quantity  int    `yaml:"quantity"`
	UnitPrice string `yaml:"unit_price"`
}

type fileProduct struct {
	Name        string     `yaml:"name"`
	SuccessPath string     `yaml:"success_path"`
	CancelPath  string     `yaml:"cancel_path"`
	Tiers       []fileTier `yaml:"tiers"`
}

type fileCatalog struct {
	Products map[string]fileProduct `yaml:"products"`
}

// Default returns the catalog shipped with the binary.
func Default() (*Catalog, error) {
	return Parse(defaultCatalogYAML)
}

// Load reads a YAML catalog from path. An empty path yields the default catalog.
func Load(path string) (*Catalog, error) {
	if path == "" {
		return Default()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("catalog: read %s: %w", path, err)
	}
	return Parse(data)
}

// Parse decodes a YAML catalog document.
func Parse(data []byte) (*Catalog, error) {
	var doc fileCatalog
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("catalog: decode yaml: %w", err)
	}
	if len(doc.Products) == 0 {
		return nil, fmt.Errorf("catalog: no products defined")
	}
	products := make([]Product, 0, len(doc.Products))
	for id, fp := range doc.Products {
		tiers := make([]PriceTier, 0, len(fp.Tiers))
		for _, ft := range fp.Tiers {
			unit, err := decimal.NewFromString(ft.UnitPrice)
			if err != nil {
				return nil, fmt.Errorf("catalog: product %q tier %d: unit price %q: %w", id, ft.Quantity, ft.UnitPrice, err)
			}
			tiers = append(tiers, PriceTier{Quantity: ft.Quantity, UnitPrice: unit})
		}
		products = append(products, Product{
			ID:          id,
			Name:        fp.Name,
			SuccessPath: fp.SuccessPath,
			CancelPath:  fp.CancelPath,
			Tiers:       tiers,
		})
	}
	return New(products)
}
