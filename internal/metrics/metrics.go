// Package metrics provides Prometheus instrumentation for the trading engine.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// OrdersAdmitted counts orders accepted onto a book, by side.
	OrdersAdmitted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "veribank_orders_admitted_total",
		Help: "Orders admitted to an order book",
	}, []string{"side"})

	// OrdersRejected counts orders refused at admission, by reason.
	OrdersRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "veribank_orders_rejected_total",
		Help: "Orders rejected at admission",
	}, []string{"reason"})

	// OrdersCancelled counts successful cancellations.
	OrdersCancelled = promauto.NewCounter(prometheus.CounterOpts{
		Name: "veribank_orders_cancelled_total",
		Help: "Orders cancelled by their owners",
	})

	// AllocationsSettled counts settled allocations per instrument.
	AllocationsSettled = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "veribank_allocations_settled_total",
		Help: "Settlement allocations executed",
	}, []string{"instrument"})

	// AllocationsSkipped counts allocations abandoned for underfunded buyers.
	AllocationsSkipped = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "veribank_allocations_skipped_total",
		Help: "Settlement allocations skipped (buyer underfunded)",
	}, []string{"instrument"})

	// MatchingRunLatency tracks the duration of a full matching run.
	MatchingRunLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "veribank_matching_run_seconds",
		Help:    "Matching run latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"instrument"})

	// RestingOrders tracks orders currently resting, per instrument and side.
	RestingOrders = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "veribank_resting_orders",
		Help: "Orders currently resting on the book",
	}, []string{"instrument", "side"})

	// HaltedInstruments tracks instruments halted after an invariant violation.
	HaltedInstruments = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "veribank_halted_instruments",
		Help: "Instruments halted pending operator investigation",
	})

	// HTTPRequestsTotal counts HTTP requests by method, path, and status.
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "veribank_http_requests_total",
		Help: "Total HTTP requests",
	}, []string{"method", "path", "status"})

	// HTTPRequestDuration tracks request duration by method and path.
	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "veribank_http_request_duration_seconds",
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

		// Use the raw path for the label; routes here are low-cardinality.
		path := r.URL.Path
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
