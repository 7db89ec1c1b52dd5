// Package metrics counts proxy request outcomes.
package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Outcome labels recorded per route.
const (
	OutcomeSuccess          = "success"
	OutcomeBadRequest       = "bad_request"
	OutcomeUnauthenticated  = "unauthenticated"
	OutcomeInvalidToken     = "invalid_token"
	OutcomeTokenUnavailable = "token_unavailable"
	OutcomeNotFound         = "not_found"
	OutcomeUpstreamError    = "upstream_error"
	OutcomeInternalError    = "internal_error"
)

// Recorder increments counters for proxy events.
type Recorder interface {
	Increment(route string, outcome string)
}

// PrometheusRecorder implements Recorder on a Prometheus counter vector.
type PrometheusRecorder struct {
	registry *prometheus.Registry
	requests *prometheus.CounterVec
}

// NewPrometheusRecorder constructs a recorder backed by its own registry.
func NewPrometheusRecorder() *PrometheusRecorder {
	registry := prometheus.NewRegistry()
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "skyline",
		Subsystem: "proxy",
		Name:      "requests_total",
		Help:      "Proxy requests by route and outcome.",
	}, []string{"route", "outcome"})
	registry.MustRegister(requests)
	return &PrometheusRecorder{registry: registry, requests: requests}
}

// Increment increases the counter for the given route and outcome.
func (recorder *PrometheusRecorder) Increment(route string, outcome string) {
	recorder.requests.WithLabelValues(route, outcome).Inc()
}

// Handler exposes the registry for Prometheus scraping.
func (recorder *PrometheusRecorder) Handler() http.Handler {
	return promhttp.HandlerFor(recorder.registry, promhttp.HandlerOpts{})
}

// CounterRecorder implements Recorder with in-memory counts. Used in tests.
type CounterRecorder struct {
	mutex  sync.Mutex
	counts map[string]int64
}

// NewCounterRecorder constructs an in-memory recorder.
func NewCounterRecorder() *CounterRecorder {
	return &CounterRecorder{counts: make(map[string]int64)}
}

// Increment increases the counter for the given route and outcome.
func (recorder *CounterRecorder) Increment(route string, outcome string) {
	recorder.mutex.Lock()
	defer recorder.mutex.Unlock()
	recorder.counts[route+"/"+outcome]++
}

// Count returns the current value for the given route and outcome.
func (recorder *CounterRecorder) Count(route string, outcome string) int64 {
	recorder.mutex.Lock()
	defer recorder.mutex.Unlock()
	return recorder.counts[route+"/"+outcome]
}

// Snapshot returns a copy of all recorded counters.
func (recorder *CounterRecorder) Snapshot() map[string]int64 {
	recorder.mutex.Lock()
	defer recorder.mutex.Unlock()
	clone := make(map[string]int64, len(recorder.counts))
	for key, value := range recorder.counts {
		clone[key] = value
	}
	return clone
}
