package catalog

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/printshop-checkout/internal/common"
)

// Handler exposes the public price tables so storefronts render the same
// numbers the checkout charges.
type Handler struct {
	catalog *Catalog
	margin  decimal.Decimal
}

// HandlerConfig configures the Handler dependencies.
type HandlerConfig struct {
	Catalog *Catalog
	Margin  decimal.Decimal
}

// NewHandler constructs a Handler.
func NewHandler(cfg HandlerConfig) *Handler {
	margin := cfg.Margin
	if margin.IsZero() {
		margin = decimal.NewFromInt(1)
	}
	return &Handler{catalog: cfg.Catalog, margin: margin}
}

// TierView is a tier as shown to customers.
type TierView struct {
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	PackPrice decimal.Decimal `json:"pack_price"`
}

// ProductView is a product as shown to customers.
type ProductView struct {
	ID    string     `json:"id"`
	Name  string     `json:"name"`
	Tiers []TierView `json:"tiers"`
}

// Products handles GET /products.
func (h *Handler) Products(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.catalog == nil {
		common.JSONError(w, http.StatusInternalServerError, "MISSING_CONFIGURATION", "catalog not configured")
		return
	}
	products := h.catalog.Products()
	out := make([]ProductView, 0, len(products))
	for _, p := range products {
		out = append(out, h.view(p))
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": out})
}

// ProductDetail handles GET /products/{id}.
func (h *Handler) ProductDetail(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.catalog == nil {
		common.JSONError(w, http.StatusInternalServerError, "MISSING_CONFIGURATION", "catalog not configured")
		return
	}
	p, err := h.catalog.Product(chi.URLParam(r, "id"))
	if err != nil {
		appErr := common.AsAppError(err)
		status := appErr.HTTPStatus
		if status == http.StatusBadRequest {
			status = http.StatusNotFound
		}
		common.JSONError(w, status, appErr.Code, appErr.Message)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": h.view(p)})
}

func (h *Handler) view(p Product) ProductView {
	tiers := make([]TierView, 0, len(p.Tiers))
	for _, t := range p.Tiers {
		unit := t.UnitPrice.Mul(h.margin)
		tiers = append(tiers, TierView{
			Quantity:       t.Quantity,
			UnitPrice:      unit,
			PackPrice: unit.Mul(decimal.NewFromInt(int64(t.Quantity))).Round(2),
		})
	}
	return ProductView{ID: p.ID, Name: p.Name, Tiers: tiers}
}
