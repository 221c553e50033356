// Package metrics holds the Prometheus collectors of the extraction pipeline.
//
// Collectors are registered on an injected prometheus.Registerer so tests
// can use a fresh registry. A nil *Metrics is valid and records nothing.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics is the set of pipeline collectors.
type Metrics struct {
	Extractions     *prometheus.CounterVec
	BackendCalls    *prometheus.CounterVec
	BackendDuration *prometheus.HistogramVec
	ModelLoads      *prometheus.CounterVec
	Fallbacks       prometheus.Counter
	HTTPRequests    *prometheus.CounterVec
	HTTPDuration    *prometheus.HistogramVec
}

// New creates the collectors and registers them on reg.
func New(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		Extractions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "image_text_extractions_total",
				Help: "Total number of extraction requests by policy and outcome",
			},
			[]string{"policy", "outcome"},
		),
		BackendCalls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "image_text_backend_calls_total",
				Help: "Total number of backend recognitions by backend and status",
			},
			[]string{"backend", "status"},
		),
		BackendDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "image_text_backend_duration_seconds",
				Help:    "Duration of backend recognitions",
				Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
			},
			[]string{"backend"},
		),
		ModelLoads: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "image_text_model_loads_total",
				Help: "Total number of OCR model set loads by status",
			},
			[]string{"status"},
		),
		Fallbacks: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "image_text_fallbacks_total",
				Help: "Total number of fallbacks from the remote to the local backend",
			},
		),
		HTTPRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "image_text_http_requests_total",
				Help: "Total number of HTTP API requests",
			},
			[]string{"method", "endpoint", "status"},
		),
		HTTPDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name: "image_text_http_request_duration_seconds",
				Help: "Duration of HTTP API requests",
			},
			[]string{"method", "endpoint"},
		),
	}

	for _, c := range []prometheus.Collector{
		m.Extractions, m.BackendCalls, m.BackendDuration, m.ModelLoads,
		m.Fallbacks, m.HTTPRequests, m.HTTPDuration,
	} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// ObserveExtraction counts one finished extraction.
func (m *Metrics) ObserveExtraction(policy, outcome string) {
	if m == nil {
		return
	}
	m.Extractions.WithLabelValues(policy, outcome).Inc()
}

// ObserveBackend counts one backend recognition and records its duration.
func (m *Metrics) ObserveBackend(backend string, success bool, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.BackendCalls.WithLabelValues(backend, status(success)).Inc()
	m.BackendDuration.WithLabelValues(backend).Observe(elapsed.Seconds())
}

// ObserveModelLoad counts one model-set load attempt. Its signature matches
// ocr.LoadObserver.
func (m *Metrics) ObserveModelLoad(key string, err error) {
	if m == nil {
		return
	}
	m.ModelLoads.WithLabelValues(status(err == nil)).Inc()
}

// ObserveFallback counts a switch from the remote to the local backend.
func (m *Metrics) ObserveFallback() {
	if m == nil {
		return
	}
	m.Fallbacks.Inc()
}

// ObserveHTTP counts one HTTP request.
func (m *Metrics) ObserveHTTP(method, endpoint string, code int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequests.WithLabelValues(method, endpoint, httpStatus(code)).Inc()
	m.HTTPDuration.WithLabelValues(method, endpoint).Observe(elapsed.Seconds())
}

func status(ok bool) string {
	if ok {
		return "success"
	}
	return "error"
}

func httpStatus(code int) string {
	switch {
	case code >= 500:
		return "5xx"
	case code >= 400:
		return "4xx"
	case code >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}
