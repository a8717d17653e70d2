package resilience

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Transport is an http.RoundTripper guarded by a Breaker. Each request gets
// at most one attempt; network errors and 5xx responses count as failures.
type Transport struct {
	Base    http.RoundTripper
	Breaker *Breaker
	// Timeout bounds a single round trip including reading the body.
	Timeout time.Duration
}

// RoundTrip implements http.RoundTripper.
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	base := t.Base
	if base == nil {
		base = http.DefaultTransport
	}
	ctx := req.Context()
	target := "default"
	if t.Breaker != nil {
		target = t.Breaker.targetLabel()
		if !t.Breaker.Allow(ctx) {
			ProviderCallsTotal.WithLabelValues(target, "rejected").Inc()
			if req.Body != nil {
				_ = req.Body.Close()
			}
			return nil, fmt.Errorf("%s %s: %w", req.Method, req.URL.Host, ErrOpenCircuit)
		}
	}

	cancel := context.CancelFunc(func() {})
	if t.Timeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, t.Timeout)
		req = req.WithContext(ctx)
	}

	resp, err := base.RoundTrip(req)
	if err != nil {
		cancel()
		t.report(ctx, target, false)
		return nil, err
	}
	t.report(ctx, target, resp.StatusCode < http.StatusInternalServerError)
	resp.Body = &cancelOnClose{ReadCloser: resp.Body, cancel: cancel}
	return resp, nil
}

func (t *Transport) report(ctx context.Context, target string, success bool) {
	outcome := "ok"
	if !success {
		outcome = "error"
	}
	ProviderCallsTotal.WithLabelValues(target, outcome).Inc()
	if t.Breaker != nil {
		t.Breaker.Report(ctx, success)
	}
}

type cancelOnClose struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (c *cancelOnClose) Close() error {
	err := c.ReadCloser.Close()
	c.cancel()
	return err
}
