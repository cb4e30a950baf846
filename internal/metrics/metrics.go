// Package metrics exposes Prometheus metrics for decoding and HTTP traffic.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/JonMunkholm/flatfile/internal/flatfile"
)

const (
	outcomeRecord       = "record"
	outcomeUnresolvable = "unresolvable"
	outcomeSkipped      = "skipped"

	statusSuccess = "success"
	statusError   = "error"
)

// Metrics holds all Prometheus metrics for the service.
type Metrics struct {
	reg *prometheus.Registry

	linesTotal     *prometheus.CounterVec
	rowsTotal      *prometheus.CounterVec
	bytesTotal     *prometheus.CounterVec
	decodesTotal   *prometheus.CounterVec
	decodeDuration *prometheus.HistogramVec
	decodesActive  prometheus.Gauge

	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
}

// New creates the metrics on a fresh registry, which also carries the Go
// runtime and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		prometheus.NewGoCollector(),
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
	)
	return NewWithRegistry(reg)
}

// NewWithRegistry creates and registers all metrics on reg.
func NewWithRegistry(reg *prometheus.Registry) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		reg: reg,

		linesTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "flatfile_lines_total",
				Help: "Total number of input lines read",
			},
			[]string{"format"},
		),

		rowsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "flatfile_rows_total",
				Help: "Total number of rows by outcome",
			},
			[]string{"format", "outcome"},
		),

		bytesTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "flatfile_bytes_total",
				Help: "Total number of raw bytes read from sources",
			},
			[]string{"format"},
		),

		decodesTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "flatfile_decodes_total",
				Help: "Total number of decodes by status",
			},
			[]string{"format", "status"},
		),

		decodeDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "flatfile_decode_duration_seconds",
				Help:    "Decode duration in seconds",
				Buckets: prometheus.ExponentialBuckets(0.005, 4, 9),
			},
			[]string{"format"},
		),

		decodesActive: f.NewGauge(
			prometheus.GaugeOpts{
				Name: "flatfile_decodes_active",
				Help: "Number of decodes currently running",
			},
		),

		httpRequestsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "flatfile_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "route", "status_code"},
		),

		httpRequestDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "flatfile_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
	}
}

// Observe records the outcome of one decode.
func (m *Metrics) Observe(format string, st flatfile.Stats, err error) {
	m.linesTotal.WithLabelValues(format).Add(float64(st.Lines))
	m.rowsTotal.WithLabelValues(format, outcomeRecord).Add(float64(st.Records))
	m.rowsTotal.WithLabelValues(format, outcomeUnresolvable).Add(float64(st.Unresolvable))
	m.rowsTotal.WithLabelValues(format, outcomeSkipped).Add(float64(st.Skipped))
	m.bytesTotal.WithLabelValues(format).Add(float64(st.Bytes))
	m.decodeDuration.WithLabelValues(format).Observe(st.Duration.Seconds())

	status := statusSuccess
	if err != nil {
		status = statusError
	}
	m.decodesTotal.WithLabelValues(format, status).Inc()
}

// Track marks a decode as running until the returned func is called.
func (m *Metrics) Track() func() {
	m.decodesActive.Inc()
	return m.decodesActive.Dec
}

// RecordHTTPRequest records an HTTP request.
func (m *Metrics) RecordHTTPRequest(method, route string, statusCode int, duration time.Duration) {
	m.httpRequestsTotal.WithLabelValues(method, route, strconv.Itoa(statusCode)).Inc()
	m.httpRequestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{})
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry { return m.reg }
