package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Cache label values for RequestTotal.
const (
	CacheHit    = "hit"
	CacheMiss   = "miss"
	CacheBypass = "bypass"
)

// Metrics holds all Prometheus metrics for the gateway.
type Metrics struct {
	RequestTotal      *prometheus.CounterVec
	RequestDurationMs *prometheus.HistogramVec
	AttemptDurationMs *prometheus.HistogramVec
	BreakerState      *prometheus.GaugeVec
	RateLimitDenials  *prometheus.CounterVec
	AnalyticsDropped  prometheus.Counter
}

// NewMetrics creates and registers all gateway metrics.
func NewMetrics() *Metrics {
	return &Metrics{
		RequestTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "gateway_request_total",
			Help: "Total requests by capability, terminal outcome, and cache disposition.",
		}, []string{"capability", "outcome", "cache"}),

		RequestDurationMs: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "gateway_request_duration_ms",
			Help:    "End-to-end request duration in milliseconds, across all fallback attempts.",
			Buckets: []float64{10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000, 30000},
		}, []string{"capability"}),

		AttemptDurationMs: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "gateway_provider_attempt_duration_ms",
			Help:    "Single provider attempt duration in milliseconds.",
			Buckets: []float64{10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000, 30000},
		}, []string{"provider", "outcome"}),

		BreakerState: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Name: "gateway_breaker_state",
			Help: "Circuit breaker state per provider: 0 closed, 1 open, 2 half-open.",
		}, []string{"provider"}),

		RateLimitDenials: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "gateway_ratelimit_denials_total",
			Help: "Requests denied by the token-bucket limiter.",
		}, []string{"capability"}),

		AnalyticsDropped: promauto.NewCounter(prometheus.CounterOpts{
			Name: "gateway_analytics_dropped_total",
			Help: "Analytics events dropped because the sink buffer was full.",
		}),
	}
}

// RecordRequest records one terminal gateway outcome.
func (m *Metrics) RecordRequest(capability, outcome, cache string, durationMs float64) {
	m.RequestTotal.WithLabelValues(capability, outcome, cache).Inc()
	m.RequestDurationMs.WithLabelValues(capability).Observe(durationMs)
}

// RecordAttempt records one provider attempt.
func (m *Metrics) RecordAttempt(provider string, success bool, durationMs float64) {
	outcome := "failure"
	if success {
		outcome = "success"
	}
	m.AttemptDurationMs.WithLabelValues(provider, outcome).Observe(durationMs)
}

// SetBreakerState publishes a provider's breaker state.
func (m *Metrics) SetBreakerState(provider string, state float64) {
	m.BreakerState.WithLabelValues(provider).Set(state)
}

// RecordRateLimitDenial counts a limiter rejection.
func (m *Metrics) RecordRateLimitDenial(capability string) {
	m.RateLimitDenials.WithLabelValues(capability).Inc()
}

// RecordAnalyticsDrop counts an analytics event lost to backpressure.
func (m *Metrics) RecordAnalyticsDrop() {
	m.AnalyticsDropped.Inc()
}
