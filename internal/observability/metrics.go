package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Router metrics
var (
	// AttemptsTotal counts cascade attempts by outcome (success, skipped, struck, failed)
	AttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "llm",
			Subsystem: "router",
			Name:      "attempts_total",
			Help:      "Total provider attempts made by the cascade",
		},
		[]string{"provider", "status"},
	)

	StrikesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "llm",
			Subsystem: "router",
			Name:      "strikes_total",
			Help:      "Total strikes issued against providers",
		},
		[]string{"provider"},
	)

	CallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "llm",
			Subsystem: "router",
			Name:      "calls_total",
			Help:      "Total routed calls by profile and outcome",
		},
		[]string{"profile", "outcome"},
	)

	ProviderDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "llm",
			Subsystem: "router",
			Name:      "provider_duration_seconds",
			Help:      "Provider invocation duration in seconds",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60},
		},
		[]string{"provider"},
	)

	// HTTP surface
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "llm",
			Subsystem: "router",
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "llm",
			Subsystem: "router",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 30, 60},
		},
		[]string{"method", "route"},
	)
)

// RecordAttempt increments the attempt counter
func RecordAttempt(provider, status string) {
	AttemptsTotal.WithLabelValues(provider, status).Inc()
}

// RecordStrike increments the strike counter
func RecordStrike(provider string) {
	StrikesTotal.WithLabelValues(provider).Inc()
}

// RecordCall increments the call counter for a profile
func RecordCall(profile, outcome string) {
	CallsTotal.WithLabelValues(profile, outcome).Inc()
}

// ObserveProviderDuration records how long a provider invocation took
func ObserveProviderDuration(provider string, d time.Duration) {
	ProviderDuration.WithLabelValues(provider).Observe(d.Seconds())
}
