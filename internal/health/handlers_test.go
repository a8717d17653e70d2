package health_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/printshop-checkout/internal/health"
)

type stubChecker struct {
	providerErr error
	redisErr    error
}

func (s stubChecker) PingProvider(_ context.Context, _ time.Duration) error {
	return s.providerErr
}

func (s stubChecker) PingRedis(_ context.Context, _ time.Duration) error {
	return s.redisErr
}

func TestLive(t *testing.T) {
	handler := health.Handler{}
	for _, path := range []string{"/", "/health"} {
		rr := httptest.NewRecorder()
		handler.Live(rr, httptest.NewRequest(http.MethodGet, path, nil))
		require.Equal(t, http.StatusOK, rr.Code)
		require.JSONEq(t, `{"ok":true}`, rr.Body.String())
	}
}

func TestReadySuccess(t *testing.T) {
	handler := health.Handler{Checker: stubChecker{}, ProviderTimeout: 50 * time.Millisecond, RedisTimeout: 50 * time.Millisecond}
	rr := httptest.NewRecorder()
	handler.Ready(rr, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	require.Equal(t, http.StatusOK, rr.Code)

	var status map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &status))
	require.Equal(t, true, status["ok"])
	require.Equal(t, "ok", status["provider"])
	require.Equal(t, "ok", status["redis"])
}

func TestReadyFailure(t *testing.T) {
	handler := health.Handler{Checker: stubChecker{redisErr: errors.New("redis down")}}
	rr := httptest.NewRecorder()
	handler.Ready(rr, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	require.Equal(t, http.StatusServiceUnavailable, rr.Code)
	require.Contains(t, rr.Body.String(), "redis down")

	rr = httptest.NewRecorder()
	health.Handler{}.Ready(rr, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	require.Equal(t, http.StatusServiceUnavailable, rr.Code)
}

func TestDependencies(t *testing.T) {
	ctx := context.Background()
	require.Error(t, health.Dependencies{}.PingProvider(ctx, time.Second))
	require.NoError(t, health.Dependencies{ProviderConfigured: true}.PingProvider(ctx, time.Second))
	require.NoError(t, health.Dependencies{}.PingRedis(ctx, time.Second))

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()
	deps := health.Dependencies{ProviderConfigured: true, Redis: client}
	require.NoError(t, deps.PingRedis(ctx, time.Second))

	mr.Close()
	require.Error(t, deps.PingRedis(ctx, 100*time.Millisecond))
}
