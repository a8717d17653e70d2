package checkout

import (
	"net/http"

	"github.com/noah-isme/printshop-checkout/internal/common"
	"github.com/noah-isme/printshop-checkout/internal/pricing"
)

// Handler exposes the checkout endpoints.
type Handler struct {
	Svc *Service
}

type sessionResponse struct {
	URL string `json:"url"`
}

type quoteResponse struct {
	Product   string            `json:"product"`
	Name      string            `json:"name"`
	TierQty   int               `json:"tier_quantity"`
	Extras    map[string]string `json:"extras,omitempty"`
	Breakdown pricing.Breakdown `json:"breakdown"`
}

// CreateCheckoutSession handles POST /create-checkout-session.
func (h *Handler) CreateCheckoutSession(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "MISSING_CONFIGURATION", "checkout service not configured")
		return
	}
	order, err := DecodeOrder(r.Body)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	res, err := h.Svc.Create(r.Context(), order)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, sessionResponse{URL: res.URL})
}

// Quote handles POST /quote. It prices the order exactly like checkout but
// never contacts the provider.
func (h *Handler) Quote(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "MISSING_CONFIGURATION", "checkout service not configured")
		return
	}
	order, err := DecodeOrder(r.Body)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	q, err := h.Svc.Quote(r.Context(), order)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, newQuoteResponse(q))
}

func newQuoteResponse(q Quote) quoteResponse {
	resp := quoteResponse{
		Product:   q.Product.ID,
		Name:      q.Product.Name,
		TierQty:   q.Tier.Quantity,
		Breakdown: q.Breakdown,
	}
	if len(q.Extras) > 0 {
		resp.Extras = make(map[string]string, len(q.Extras))
		for _, e := range q.Extras {
			resp.Extras[e.Key] = e.Amount.StringFixed(2)
		}
	}
	return resp
}

