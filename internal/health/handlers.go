package health

import (
	"context"
	"errors"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/noah-isme/printshop-checkout/internal/common"
)

// Checker represents dependencies that can be probed for readiness.
type Checker interface {
	PingProvider(ctx context.Context, timeout time.Duration) error
	PingRedis(ctx context.Context, timeout time.Duration) error
}

var shuttingDown atomic.Bool

// SetReady toggles readiness. The server flips it off when shutdown starts so
// load balancers drain traffic before the listener closes.
func SetReady(ready bool) {
	shuttingDown.Store(!ready)
}

// IsReady reports the readiness flag set by SetReady.
func IsReady() bool {
	return !shuttingDown.Load()
}

// Handler exposes HTTP handlers for health endpoints.
type Handler struct {
	Checker         Checker
	ProviderTimeout time.Duration
	RedisTimeout    time.Duration
}

// Live reports liveness status. It never touches dependencies.
func (h Handler) Live(w http.ResponseWriter, _ *http.Request) {
	common.JSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// Ready reports readiness based on dependency probes.
func (h Handler) Ready(w http.ResponseWriter, r *http.Request) {
	if !IsReady() {
		common.JSON(w, http.StatusServiceUnavailable, map[string]any{"ok": false, "status": "shutting_down"})
		return
	}
	if h.Checker == nil {
		common.JSON(w, http.StatusServiceUnavailable, map[string]any{"ok": false, "status": "dependencies unavailable"})
		return
	}
	ctx := r.Context()
	providerStatus := "ok"
	if err := h.Checker.PingProvider(ctx, h.providerTimeout()); err != nil {
		providerStatus = err.Error()
	}
	redisStatus := "ok"
	if err := h.Checker.PingRedis(ctx, h.redisTimeout()); err != nil {
		redisStatus = err.Error()
	}
	ok := providerStatus == "ok" && redisStatus == "ok"
	status := http.StatusOK
	if !ok {
		status = http.StatusServiceUnavailable
	}
	common.JSON(w, status, map[string]any{
		"ok":       ok,
		"provider": providerStatus,
		"redis":    redisStatus,
	})
}

func (h Handler) providerTimeout() time.Duration {
	if h.ProviderTimeout <= 0 {
		return 500 * time.Millisecond
	}
	return h.ProviderTimeout
}

func (h Handler) redisTimeout() time.Duration {
	if h.RedisTimeout <= 0 {
		return 300 * time.Millisecond
	}
	return h.RedisTimeout
}

// Dependencies is the production Checker. The provider is probed only for
// presence; a nil Redis client is treated as not configured and healthy.
type Dependencies struct {
	ProviderConfigured bool
	Redis              redis.UniversalClient
}

// PingProvider reports whether a payment provider is wired.
func (d Dependencies) PingProvider(_ context.Context, _ time.Duration) error {
	if !d.ProviderConfigured {
		return errors.New("payment provider not configured")
	}
	return nil
}

// PingRedis pings Redis when configured.
func (d Dependencies) PingRedis(ctx context.Context, timeout time.Duration) error {
	if d.Redis == nil {
		return nil
	}
	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return d.Redis.Ping(pingCtx).Err()
}
