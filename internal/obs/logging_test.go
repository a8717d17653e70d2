package obs

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestRequestLoggerWritesStructuredLine(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(&buf, "json", "info")

	var ctxLogger *zerolog.Logger
	handler := middleware.RequestID(RequestLogger{Logger: logger}.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctxLogger = zerolog.Ctx(r.Context())
		w.WriteHeader(http.StatusCreated)
	})))

	req := httptest.NewRequest(http.MethodPost, "/quote", nil)
	req.Header.Set("Origin", "https://shop.example")
	handler.ServeHTTP(httptest.NewRecorder(), req)

	require.NotNil(t, ctxLogger)
	var line map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &line))
	require.Equal(t, "http_request", line["message"])
	require.Equal(t, "/quote", line["route"])
	require.Equal(t, float64(http.StatusCreated), line["status"])
	require.Equal(t, "https://shop.example", line["origin"])
	require.NotEmpty(t, line["request_id"])
}
