package obs

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// CheckoutMetrics groups the collectors describing checkout outcomes.
type CheckoutMetrics struct {
	// SessionTotal counts checkout attempts by product and result.
	SessionTotal *prometheus.CounterVec
	// AmountMinorUnits records the charged amount of created sessions.
	AmountMinorUnits *prometheus.HistogramVec
	// QuoteTotal counts price quotes served without contacting the provider.
	QuoteTotal *prometheus.CounterVec
}

// NewCheckoutMetrics builds and registers checkout collectors. Collectors
// already present on reg are reused.
func NewCheckoutMetrics(namespace string, reg prometheus.Registerer) *CheckoutMetrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &CheckoutMetrics{
		SessionTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "checkout_session_total",
			Help:      "Count of checkout session attempts by outcome.",
		}, []string{"product", "result"}),
		AmountMinorUnits: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "checkout_amount_minor_units",
			Help:      "Charged amount of created checkout sessions in minor currency units.",
			Buckets:   []float64{500, 1000, 2500, 5000, 10000, 25000, 50000, 100000},
		}, []string{"product"}),
		QuoteTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "checkout_quote_total",
			Help:      "Count of price quotes by outcome.",
		}, []string{"product", "result"}),
	}
	mustRegisterCollector(reg, m.SessionTotal, func(existing prometheus.Collector) {
		if v, ok := existing.(*prometheus.CounterVec); ok {
			m.SessionTotal = v
		}
	})
	mustRegisterCollector(reg, m.AmountMinorUnits, func(existing prometheus.Collector) {
		if v, ok := existing.(*prometheus.HistogramVec); ok {
			m.AmountMinorUnits = v
		}
	})
	mustRegisterCollector(reg, m.QuoteTotal, func(existing prometheus.Collector) {
		if v, ok := existing.(*prometheus.CounterVec); ok {
			m.QuoteTotal = v
		}
	})
	return m
}

// ObserveSession records one checkout attempt. amountMinor is only observed
// for successful sessions.
func (m *CheckoutMetrics) ObserveSession(product, result string, amountMinor int64) {
	if m == nil {
		return
	}
	m.SessionTotal.WithLabelValues(product, result).Inc()
	if result == "success" && amountMinor > 0 {
		m.AmountMinorUnits.WithLabelValues(product).Observe(float64(amountMinor))
	}
}

// ObserveQuote records one quote request.
func (m *CheckoutMetrics) ObserveQuote(product, result string) {
	if m == nil {
		return
	}
	m.QuoteTotal.WithLabelValues(product, result).Inc()
}

func mustRegisterCollector(reg prometheus.Registerer, collector prometheus.Collector, reuse func(prometheus.Collector)) {
	if err := reg.Register(collector); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if reuse != nil {
				reuse(are.ExistingCollector)
			}
			return
		}
		panic(fmt.Errorf("register domain metric: %w", err))
	}
}
