// Package metrics provides Prometheus instrumentation for the turn engine.
package metrics

import (
	"bufio"
	"errors"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// TurnsTotal counts turn runs by final status (finalized, failed, conflict).
	TurnsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "insurance_turns_total",
		Help: "Total number of turn runs",
	}, []string{"status"})

	// TurnDuration is the wall-clock time of a turn, commit included.
	TurnDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "insurance_turn_duration_seconds",
		Help:    "Turn resolution latency in seconds",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 300, 900},
	})

	// LastTurn tracks the last finalized turn number.
	LastTurn = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "insurance_last_turn",
		Help: "Last finalized turn",
	})

	// CompanyOutcomes counts per-company results (ok, defaulted, failed, bankrupt).
	CompanyOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "insurance_company_outcomes_total",
		Help: "Per-company turn outcomes",
	}, []string{"outcome"})

	// Events counts emitted turn events by type.
	Events = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "insurance_events_total",
		Help: "Turn events emitted",
	}, []string{"type"})

	// Liquidations counts forced sales by trigger and resolution.
	Liquidations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "insurance_liquidations_total",
		Help: "Forced portfolio liquidations",
	}, []string{"trigger", "resolution"})

	// LiquidationCostRatio is realised cost over optimal cost per liquidation.
	LiquidationCostRatio = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "insurance_liquidation_cost_ratio",
		Help:    "Realised liquidation cost divided by the optimal cost",
		Buckets: []float64{1, 1.1, 1.25, 1.5, 2, 3, 5, 10},
	})

	// Audits counts regulator visits by outcome.
	Audits = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "insurance_audits_total",
		Help: "Regulatory audits by outcome",
	}, []string{"outcome"})

	// DecisionsSubmitted counts decision submissions accepted by the API.
	DecisionsSubmitted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "insurance_decisions_submitted_total",
		Help: "Decision submissions accepted",
	})

	// WebSocketClients tracks connected WebSocket clients.
	WebSocketClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "insurance_websocket_clients",
		Help: "Number of connected WebSocket clients",
	})

	// HTTPRequestsTotal counts HTTP requests by method, path, and status.
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "insurance_http_requests_total",
		Help: "Total HTTP requests",
	}, []string{"method", "path", "status"})

	// HTTPRequestDuration tracks request duration by method and path.
	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "insurance_http_request_duration_seconds",
		Help:    "HTTP request duration in seconds",
		Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
	}, []string{"method", "path"})
)

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Middleware returns an HTTP middleware that records request metrics.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &statusWriter{ResponseWriter: w, status: 200}
		next.ServeHTTP(wrapped, r)
		duration := time.Since(start).Seconds()

		// Use the route pattern for path label to avoid high cardinality.
		path := r.URL.Path
		if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
			path = rc.RoutePattern()
		}
		HTTPRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(wrapped.status)).Inc()
		HTTPRequestDuration.WithLabelValues(r.Method, path).Observe(duration)
	})
}

// statusWriter wraps http.ResponseWriter to capture the status code.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

// Hijack lets WebSocket upgrades pass through the middleware.
func (w *statusWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("metrics: response writer does not support hijacking")
	}
	return h.Hijack()
}
