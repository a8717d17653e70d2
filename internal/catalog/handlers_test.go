package catalog_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/printshop-checkout/internal/catalog"
)

type productsResponse struct {
	Data []catalog.ProductView `json:"data"`
}

type productDetailResponse struct {
	Data catalog.ProductView `json:"data"`
}

func TestCatalogHandlers(t *testing.T) {
	handler := catalog.NewHandler(catalog.HandlerConfig{
		Catalog: fixture(t),
		Margin:  decimal.RequireFromString("1.20"),
	})
	r := chi.NewRouter()
	r.Get("/products", handler.Products)
	r.Get("/products/{id}", handler.ProductDetail)

	t.Run("list", func(t *testing.T) {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/products", nil))
		require.Equal(t, http.StatusOK, rec.Code)
		var body productsResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		require.Len(t, body.Data, 2)
		require.Equal(t, "empty", body.Data[0].ID)
		require.Equal(t, "flyers", body.Data[1].ID)
	})

	t.Run("detail applies margin", func(t *testing.T) {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/products/flyers", nil))
		require.Equal(t, http.StatusOK, rec.Code)
		var body productDetailResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		require.Len(t, body.Data.Tiers, 4)
		last := body.Data.Tiers[3]
		require.Equal(t, 1000, last.Quantity)
		require.True(t, last.UnitPrice.Equal(decimal.RequireFromString("0.012")), last.UnitPrice.String())
		require.True(t, last.PackPrice.Equal(decimal.RequireFromString("12")), last.PackPrice.String())
	})

	t.Run("unknown product", func(t *testing.T) {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/products/banners", nil))
		require.Equal(t, http.StatusNotFound, rec.Code)
	})
}
