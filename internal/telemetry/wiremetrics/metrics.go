// Package wiremetrics instruments the protocol engine with Prometheus
// counters, gauges and histograms, recorded from stream-lifecycle events
// instead of an HTTP middleware chain (§6 ambient observability stack,
// adapted from pkg/celeris's former Prometheus middleware).
package wiremetrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder holds one engine process's metric families. Construct a single
// Recorder per process (per *prometheus.Registry) and share it across every
// Server/Client connection; registering the same metric names twice panics.
type Recorder struct {
	requestsTotal    *prometheus.CounterVec
	requestDuration  *prometheus.HistogramVec
	requestsInFlight prometheus.Gauge
	responseSize     *prometheus.HistogramVec
	streamsActive    prometheus.Gauge
	goAwaySent       prometheus.Counter
}

// New registers the engine's metric families and returns a Recorder.
func New() *Recorder {
	return &Recorder{
		requestsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "h2engine_requests_total",
			Help: "Total requests handled, labeled by method/path/status.",
		}, []string{"method", "path", "status"}),
		requestDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "h2engine_request_duration_seconds",
			Help:    "Request handling duration in seconds.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path", "status"}),
		requestsInFlight: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "h2engine_requests_in_flight",
			Help: "Requests currently being handled.",
		}),
		responseSize: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "h2engine_response_size_bytes",
			Help:    "Response body size in bytes.",
			Buckets: []float64{100, 1000, 10000, 100000, 1000000},
		}, []string{"method", "path", "status"}),
		streamsActive: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "h2engine_streams_active",
			Help: "HTTP/2 streams currently open (OPEN or HALF_CLOSED).",
		}),
		goAwaySent: promauto.NewCounter(prometheus.CounterOpts{
			Name: "h2engine_goaway_sent_total",
			Help: "GOAWAY frames sent by this endpoint.",
		}),
	}
}

// StreamOpened records a new request/response exchange starting.
func (r *Recorder) StreamOpened() {
	r.streamsActive.Inc()
	r.requestsInFlight.Inc()
}

// StreamClosed records a request/response exchange ending.
func (r *Recorder) StreamClosed() {
	r.streamsActive.Dec()
	r.requestsInFlight.Dec()
}

// GoAwaySent records an outbound GOAWAY.
func (r *Recorder) GoAwaySent() { r.goAwaySent.Inc() }

// RequestCompleted records the terminal metrics for one request/response
// exchange: total count, duration and response size, each labeled by
// method/path/status (mirrors the teacher's celeris_http_* series).
func (r *Recorder) RequestCompleted(method, path string, status int, duration time.Duration, responseSize int) {
	s := strconv.Itoa(status)
	r.requestsTotal.WithLabelValues(method, path, s).Inc()
	r.requestDuration.WithLabelValues(method, path, s).Observe(duration.Seconds())
	r.responseSize.WithLabelValues(method, path, s).Observe(float64(responseSize))
}
