package metrics

import (
	"bufio"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type HTTPServerMetrics struct {
	registry *prometheus.Registry

	requestTotal    *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	requestInFlight prometheus.Gauge

	uploadsTotal     *prometheus.CounterVec
	uploadBytes      prometheus.Histogram
	searchResults    prometheus.Histogram
	searchDuration   prometheus.Histogram
	rejectedRequests *prometheus.CounterVec
}

func NewHTTPServerMetrics(service string) *HTTPServerMetrics {
	registry := prometheus.NewRegistry()
	serviceLabel := prometheus.Labels{"service": service}

	requestTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   "docintel",
			Subsystem:   "http",
			Name:        "requests_total",
			Help:        "Total HTTP requests processed.",
			ConstLabels: serviceLabel,
		},
		[]string{"method", "path", "status"},
	)
	requestDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace:   "docintel",
			Subsystem:   "http",
			Name:        "request_duration_seconds",
			Help:        "HTTP request duration in seconds.",
			Buckets:     prometheus.DefBuckets,
			ConstLabels: serviceLabel,
		},
		[]string{"method", "path"},
	)
	requestInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace:   "docintel",
			Subsystem:   "http",
			Name:        "in_flight_requests",
			Help:        "Number of in-flight HTTP requests.",
			ConstLabels: serviceLabel,
		},
	)
	uploadsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   "docintel",
			Subsystem:   "ingest",
			Name:        "uploads_total",
			Help:        "Accepted uploads by media type.",
			ConstLabels: serviceLabel,
		},
		[]string{"media_type"},
	)
	uploadBytes := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace:   "docintel",
			Subsystem:   "ingest",
			Name:        "upload_bytes",
			Help:        "Size of accepted uploads in bytes.",
			Buckets:     prometheus.ExponentialBuckets(1024, 4, 9),
			ConstLabels: serviceLabel,
		},
	)
	searchResults := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace:   "docintel",
			Subsystem:   "search",
			Name:        "results",
			Help:        "Number of results returned per search.",
			Buckets:     []float64{0, 1, 2, 3, 5, 10, 20, 50},
			ConstLabels: serviceLabel,
		},
	)
	searchDuration := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace:   "docintel",
			Subsystem:   "search",
			Name:        "duration_seconds",
			Help:        "Search execution duration in seconds.",
			Buckets:     prometheus.DefBuckets,
			ConstLabels: serviceLabel,
		},
	)
	rejectedRequests := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   "docintel",
			Subsystem:   "http",
			Name:        "rejected_requests_total",
			Help:        "Requests rejected before reaching a handler.",
			ConstLabels: serviceLabel,
		},
		[]string{"reason"},
	)

	registry.MustRegister(
		requestTotal,
		requestDuration,
		requestInFlight,
		uploadsTotal,
		uploadBytes,
		searchResults,
		searchDuration,
		rejectedRequests,
	)

	return &HTTPServerMetrics{
		registry:         registry,
		requestTotal:     requestTotal,
		requestDuration:  requestDuration,
		requestInFlight:  requestInFlight,
		uploadsTotal:     uploadsTotal,
		uploadBytes:      uploadBytes,
		searchResults:    searchResults,
		searchDuration:   searchDuration,
		rejectedRequests: rejectedRequests,
	}
}

func (m *HTTPServerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *HTTPServerMetrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		path := normalizePath(r.URL.Path)
		recorder := &statusRecorder{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
		}

		m.requestInFlight.Inc()
		defer m.requestInFlight.Dec()

		next.ServeHTTP(recorder, r)

		m.requestTotal.WithLabelValues(r.Method, path, strconv.Itoa(recorder.statusCode)).Inc()
		m.requestDuration.WithLabelValues(r.Method, path).Observe(time.Since(start).Seconds())
	})
}

func normalizePath(path string) string {
	switch {
	case strings.HasPrefix(path, "/v1/documents/") && strings.HasSuffix(path, "/reprocess"):
		return "/v1/documents/{id}/reprocess"
	case strings.HasPrefix(path, "/v1/documents/"):
		return "/v1/documents/{id}"
	default:
		return path
	}
}

func (m *HTTPServerMetrics) RecordUpload(mediaType string, sizeBytes int64) {
	if mediaType == "" {
		mediaType = "unknown"
	}
	m.uploadsTotal.WithLabelValues(mediaType).Inc()
	m.uploadBytes.Observe(float64(sizeBytes))
}

func (m *HTTPServerMetrics) RecordSearch(resultCount int, duration time.Duration) {
	m.searchResults.Observe(float64(resultCount))
	m.searchDuration.Observe(duration.Seconds())
}

func (m *HTTPServerMetrics) RecordRejected(reason string) {
	m.rejectedRequests.WithLabelValues(reason).Inc()
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (w *statusRecorder) WriteHeader(statusCode int) {
	w.statusCode = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}

func (w *statusRecorder) Flush() {
	flusher, ok := w.ResponseWriter.(http.Flusher)
	if ok {
		flusher.Flush()
	}
}

func (w *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hijacker, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer does not implement http.Hijacker")
	}
	return hijacker.Hijack()
}
