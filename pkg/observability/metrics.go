package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RequestsTotal tracks total number of HTTP requests
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "audit_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"route", "method", "code"},
	)

	// RequestDuration tracks request duration
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "audit_http_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route"},
	)

	// ActiveRequests tracks currently active requests
	ActiveRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "audit_http_active_requests",
			Help: "Number of active HTTP requests",
		},
	)

	// RowsIngested counts normalized line items by outcome
	RowsIngested = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "audit_rows_ingested_total",
			Help: "Total number of ingested invoice rows by outcome",
		},
		[]string{"result"},
	)

	// ClassifyPasses counts completed batch classification passes
	ClassifyPasses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "audit_classify_passes_total",
			Help: "Total number of completed classification passes",
		},
	)
)

// MetricsMiddleware collects Prometheus metrics for every request.
func MetricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}

		ActiveRequests.Inc()
		defer ActiveRequests.Dec()

		start := time.Now()
		next.ServeHTTP(sw, r)

		// The matched pattern is only known after routing, so labels are
		// resolved once the handler returns.
		route := routeLabel(r)
		RequestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
		RequestsTotal.WithLabelValues(route, r.Method, strconv.Itoa(sw.status)).Inc()
	})
}

// routeLabel prefers the matched ServeMux pattern to keep label cardinality
// bounded; unmatched requests fall back to the raw path.
func routeLabel(r *http.Request) string {
	if p := r.Pattern; p != "" {
		return p
	}
	return r.URL.Path
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}
