package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Gate outcomes.
const (
	GatePass            = "pass"
	GateRedirectLogin   = "redirect_login"
	GateRedirectDefault = "redirect_default"
)

// Metrics wraps Prometheus collectors for the gateway.
type Metrics struct {
	registry *prometheus.Registry

	gateDecisions   *prometheus.CounterVec
	guardDecisions  *prometheus.CounterVec
	checkoutSteps   *prometheus.CounterVec
	ordersSubmitted *prometheus.CounterVec
	activeCheckouts prometheus.Gauge
	backendLatency  *prometheus.HistogramVec
	rateRefreshes   *prometheus.CounterVec
}

// NewMetrics creates a registry and registers the gateway collectors.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	registry.MustRegister(
		prometheus.NewGoCollector(),
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
	)

	gateDecisions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "storefront_route_gate_decisions_total",
		Help: "Route Gate outcomes for admin navigations.",
	}, []string{"outcome"})

	guardDecisions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "storefront_guard_decisions_total",
		Help: "Advisory client guard evaluations.",
	}, []string{"allowed"})

	checkoutSteps := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "storefront_checkout_step_transitions_total",
		Help: "Checkout step transitions by step and result.",
	}, []string{"step", "result"})

	ordersSubmitted := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "storefront_orders_submitted_total",
		Help: "Order submissions by payment method and result.",
	}, []string{"payment_method", "result"})

	activeCheckouts := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "storefront_active_checkouts",
		Help: "Checkout sessions currently held in memory.",
	})

	backendLatency := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "storefront_backend_request_seconds",
		Help:    "Latency of store backend calls in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation", "status"})

	rateRefreshes := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "storefront_exchange_rate_refreshes_total",
		Help: "Exchange-rate lookups that reached the backend or the shared store, by result.",
	}, []string{"result"})

	registry.MustRegister(gateDecisions, guardDecisions, checkoutSteps, ordersSubmitted,
		activeCheckouts, backendLatency, rateRefreshes)

	return &Metrics{
		registry:        registry,
		gateDecisions:   gateDecisions,
		guardDecisions:  guardDecisions,
		checkoutSteps:   checkoutSteps,
		ordersSubmitted: ordersSubmitted,
		activeCheckouts: activeCheckouts,
		backendLatency:  backendLatency,
		rateRefreshes:   rateRefreshes,
	}
}

// Handler exposes the metrics registry via HTTP.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// IncGateDecision counts a Route Gate outcome.
func (m *Metrics) IncGateDecision(outcome string) {
	if m == nil {
		return
	}
	m.gateDecisions.WithLabelValues(outcome).Inc()
}

// IncGuardDecision counts an advisory guard evaluation.
func (m *Metrics) IncGuardDecision(allowed bool) {
	if m == nil {
		return
	}
	label := "false"
	if allowed {
		label = "true"
	}
	m.guardDecisions.WithLabelValues(label).Inc()
}

// IncCheckoutStep counts a wizard transition attempt.
func (m *Metrics) IncCheckoutStep(step, result string) {
	if m == nil {
		return
	}
	m.checkoutSteps.WithLabelValues(step, result).Inc()
}

// IncOrderSubmitted counts an order submission.
func (m *Metrics) IncOrderSubmitted(paymentMethod, result string) {
	if m == nil {
		return
	}
	m.ordersSubmitted.WithLabelValues(paymentMethod, result).Inc()
}

// SetActiveCheckouts sets the in-memory checkout session gauge.
func (m *Metrics) SetActiveCheckouts(count int) {
	if m == nil {
		return
	}
	m.activeCheckouts.Set(float64(count))
}

// ObserveBackendCall records the latency of a store backend call.
func (m *Metrics) ObserveBackendCall(operation, status string, d time.Duration) {
	if m == nil {
		return
	}
	m.backendLatency.WithLabelValues(operation, status).Observe(d.Seconds())
}

// IncRateRefresh counts an exchange-rate refresh attempt.
func (m *Metrics) IncRateRefresh(result string) {
	if m == nil {
		return
	}
	m.rateRefreshes.WithLabelValues(result).Inc()
}
