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

	chatStreamsTotal   *prometheus.CounterVec
	retrievedPassages  *prometheus.HistogramVec
	retrievalDuration  *prometheus.HistogramVec
	expandedQueries    *prometheus.HistogramVec
	expansionErrors    *prometheus.CounterVec
	groundingInjected  *prometheus.CounterVec
	groundingMissTotal *prometheus.CounterVec
}

func NewHTTPServerMetrics(service string) *HTTPServerMetrics {
	registry := prometheus.NewRegistry()

	requestTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "siterag",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests processed.",
		},
		[]string{"service", "method", "path", "status"},
	)
	requestDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "siterag",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "method", "path"},
	)
	requestInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "siterag",
			Subsystem: "http",
			Name:      "in_flight_requests",
			Help:      "Number of in-flight HTTP requests.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	chatStreamsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "siterag",
			Subsystem: "chat",
			Name:      "streams_total",
			Help:      "Total chat streams by retrieval mode and outcome.",
		},
		[]string{"service", "mode", "status"},
	)
	retrievedPassages := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "siterag",
			Subsystem: "retrieval",
			Name:      "passages",
			Help:      "Distribution of deduplicated passages per chat turn.",
			Buckets:   []float64{0, 1, 2, 5, 10, 20, 40, 70, 100},
		},
		[]string{"service"},
	)
	retrievalDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "siterag",
			Subsystem: "retrieval",
			Name:      "duration_seconds",
			Help:      "Passage retrieval duration in seconds, expansion included.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "mode"},
	)
	expandedQueries := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "siterag",
			Subsystem: "retrieval",
			Name:      "expanded_queries",
			Help:      "Distribution of generated search queries per multi-query turn.",
			Buckets:   []float64{0, 1, 2, 3, 4, 5},
		},
		[]string{"service"},
	)
	expansionErrors := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "siterag",
			Subsystem: "retrieval",
			Name:      "expansion_errors_total",
			Help:      "Total failed query expansion calls.",
		},
		[]string{"service"},
	)
	groundingInjected := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "siterag",
			Subsystem: "grounding",
			Name:      "injected_total",
			Help:      "Total prior-turn grounding records injected into prompts.",
		},
		[]string{"service"},
	)
	groundingMissTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "siterag",
			Subsystem: "grounding",
			Name:      "miss_total",
			Help:      "Total turns whose grounding record was absent at injection time.",
		},
		[]string{"service"},
	)

	registry.MustRegister(
		requestTotal,
		requestDuration,
		requestInFlight,
		chatStreamsTotal,
		retrievedPassages,
		retrievalDuration,
		expandedQueries,
		expansionErrors,
		groundingInjected,
		groundingMissTotal,
	)

	return &HTTPServerMetrics{
		registry:           registry,
		requestTotal:       requestTotal,
		requestDuration:    requestDuration,
		requestInFlight:    requestInFlight,
		chatStreamsTotal:   chatStreamsTotal,
		retrievedPassages:  retrievedPassages,
		retrievalDuration:  retrievalDuration,
		expandedQueries:    expandedQueries,
		expansionErrors:    expansionErrors,
		groundingInjected:  groundingInjected,
		groundingMissTotal: groundingMissTotal,
	}
}

func (m *HTTPServerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *HTTPServerMetrics) Middleware(service string, next http.Handler) http.Handler {
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

		m.requestTotal.WithLabelValues(
			service,
			r.Method,
			path,
			strconv.Itoa(recorder.statusCode),
		).Inc()
		m.requestDuration.WithLabelValues(service, r.Method, path).Observe(time.Since(start).Seconds())
	})
}

func normalizePath(path string) string {
	switch {
	case strings.HasPrefix(path, "/v1/captures/"):
		return "/v1/captures/{capture_id}"
	default:
		return path
	}
}

func (m *HTTPServerMetrics) RecordChatStream(service, mode, status string) {
	if mode == "" {
		mode = "unknown"
	}
	if status == "" {
		status = "unknown"
	}
	m.chatStreamsTotal.WithLabelValues(service, mode, status).Inc()
}

// PipelineObserver binds the retrieval/grounding collectors to one service
// label so the answer pipeline can record without knowing prometheus.
type PipelineObserver struct {
	metrics *HTTPServerMetrics
	service string
}

func (m *HTTPServerMetrics) PipelineObserver(service string) *PipelineObserver {
	return &PipelineObserver{metrics: m, service: service}
}

func (o *PipelineObserver) ObserveRetrieval(mode string, passageCount int, duration time.Duration) {
	o.metrics.RecordRetrieval(o.service, mode, passageCount, duration)
}

func (o *PipelineObserver) ObserveExpansion(queryCount int, err error) {
	o.metrics.RecordExpansion(o.service, queryCount, err)
}

func (o *PipelineObserver) ObserveGroundingInjection(injected, missed int) {
	o.metrics.RecordGroundingInjection(o.service, injected, missed)
}

func (m *HTTPServerMetrics) RecordRetrieval(service, mode string, passageCount int, duration time.Duration) {
	m.retrievedPassages.WithLabelValues(service).Observe(float64(passageCount))
	m.retrievalDuration.WithLabelValues(service, mode).Observe(duration.Seconds())
}

func (m *HTTPServerMetrics) RecordExpansion(service string, queryCount int, err error) {
	if err != nil {
		m.expansionErrors.WithLabelValues(service).Inc()
		return
	}
	m.expandedQueries.WithLabelValues(service).Observe(float64(queryCount))
}

func (m *HTTPServerMetrics) RecordGroundingInjection(service string, injected, missed int) {
	if injected > 0 {
		m.groundingInjected.WithLabelValues(service).Add(float64(injected))
	}
	if missed > 0 {
		m.groundingMissTotal.WithLabelValues(service).Add(float64(missed))
	}
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

func (w *statusRecorder) Push(target string, opts *http.PushOptions) error {
	pusher, ok := w.ResponseWriter.(http.Pusher)
	if !ok {
		return http.ErrNotSupported
	}
	return pusher.Push(target, opts)
}
