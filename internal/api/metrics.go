package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/FocuswithJustin/termdoc/core/cache"
	"github.com/FocuswithJustin/termdoc/internal/logging"
)

// Metrics holds the server's Prometheus collectors. Each Server owns its
// own registry so tests can run servers side by side.
type Metrics struct {
	registry *prometheus.Registry
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
	commands *prometheus.CounterVec
	sessions prometheus.Gauge
}

// NewMetrics creates and registers the collectors. When parses is non-nil
// its statistics are exported too.
func NewMetrics(parses *cache.ParseCache) *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "termdoc",
			Name:      "http_requests_total",
			Help:      "HTTP requests by route, method and status.",
		}, []string{"route", "method", "status"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "termdoc",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),
		commands: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "termdoc",
			Name:      "session_commands_total",
			Help:      "Live session commands by op and outcome.",
		}, []string{"op", "outcome"}),
		sessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "termdoc",
			Name:      "sessions_active",
			Help:      "Open live editing sessions.",
		}),
	}
	m.registry.MustRegister(m.requests, m.duration, m.commands, m.sessions)
	if parses != nil {
		m.registry.MustRegister(
			prometheus.NewCounterFunc(prometheus.CounterOpts{
				Namespace: "termdoc",
				Name:      "parse_cache_hits_total",
				Help:      "Markup parses served from the cache.",
			}, func() float64 { return float64(parses.Stats().Hits) }),
			prometheus.NewCounterFunc(prometheus.CounterOpts{
				Namespace: "termdoc",
				Name:      "parse_cache_misses_total",
				Help:      "Markup parses that ran the parser.",
			}, func() float64 { return float64(parses.Stats().Misses) }),
			prometheus.NewGaugeFunc(prometheus.GaugeOpts{
				Namespace: "termdoc",
				Name:      "parse_cache_bytes",
				Help:      "Estimated size of cached parse results.",
			}, func() float64 { return float64(parses.Stats().Bytes) }),
		)
	}
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Middleware records request counts and latency. It must wrap the mux
// directly so the matched route pattern is visible after the call.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := logging.NewResponseWriter(w)
		next.ServeHTTP(rw, r)

		route := r.Pattern
		if route == "" {
			route = "unmatched"
		}
		m.requests.WithLabelValues(route, r.Method, strconv.Itoa(rw.StatusCode)).Inc()
		m.duration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	})
}

// Command counts one session command.
func (m *Metrics) Command(op, outcome string) {
	m.commands.WithLabelValues(op, outcome).Inc()
}
