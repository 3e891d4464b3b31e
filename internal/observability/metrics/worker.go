package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type WorkerMetrics struct {
	registry *prometheus.Registry

	captureTotal    *prometheus.CounterVec
	captureDuration *prometheus.HistogramVec
	captureInFlight prometheus.Gauge
	pagesIndexed    *prometheus.HistogramVec
	queueLag        *prometheus.HistogramVec
}

func NewWorkerMetrics(service string) *WorkerMetrics {
	registry := prometheus.NewRegistry()

	captureTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "siterag",
			Subsystem: "worker",
			Name:      "capture_process_total",
			Help:      "Total processed capture jobs by status.",
		},
		[]string{"service", "status"},
	)
	captureDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "siterag",
			Subsystem: "worker",
			Name:      "capture_process_duration_seconds",
			Help:      "Capture job processing duration in seconds by status.",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 30, 60, 120, 300},
		},
		[]string{"service", "status"},
	)
	captureInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "siterag",
			Subsystem: "worker",
			Name:      "capture_process_in_flight",
			Help:      "Number of in-flight capture jobs.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	pagesIndexed := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "siterag",
			Subsystem: "worker",
			Name:      "pages_indexed",
			Help:      "Distribution of pages indexed per capture job.",
			Buckets:   []float64{1, 2, 5, 10, 25, 50},
		},
		[]string{"service"},
	)
	queueLag := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "siterag",
			Subsystem: "worker",
			Name:      "queue_lag_seconds",
			Help:      "Delay between capture request and processing start.",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120, 300, 600},
		},
		[]string{"service"},
	)

	registry.MustRegister(captureTotal, captureDuration, captureInFlight, pagesIndexed, queueLag)

	return &WorkerMetrics{
		registry:        registry,
		captureTotal:    captureTotal,
		captureDuration: captureDuration,
		captureInFlight: captureInFlight,
		pagesIndexed:    pagesIndexed,
		queueLag:        queueLag,
	}
}

func (m *WorkerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *WorkerMetrics) StartCapture() {
	m.captureInFlight.Inc()
}

func (m *WorkerMetrics) FinishCapture(service string, duration time.Duration, pages int, err error) {
	m.captureInFlight.Dec()

	status := "success"
	if err != nil {
		status = "error"
	}

	m.captureTotal.WithLabelValues(service, status).Inc()
	m.captureDuration.WithLabelValues(service, status).Observe(duration.Seconds())
	if err == nil {
		m.pagesIndexed.WithLabelValues(service).Observe(float64(pages))
	}
}

func (m *WorkerMetrics) ObserveQueueLag(service string, lag time.Duration) {
	if lag < 0 {
		return
	}
	m.queueLag.WithLabelValues(service).Observe(lag.Seconds())
}
