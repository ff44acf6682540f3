package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type WorkerMetrics struct {
	registry *prometheus.Registry

	reportTotal    *prometheus.CounterVec
	reportDuration *prometheus.HistogramVec
	reportInFlight prometheus.Gauge
}

func NewWorkerMetrics(service string) *WorkerMetrics {
	registry := prometheus.NewRegistry()

	reportTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "coach",
			Subsystem: "worker",
			Name:      "report_process_total",
			Help:      "Total processed report jobs by status.",
		},
		[]string{"service", "status"},
	)
	reportDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "coach",
			Subsystem: "worker",
			Name:      "report_process_duration_seconds",
			Help:      "Report job processing duration in seconds by status.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "status"},
	)
	reportInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "coach",
			Subsystem: "worker",
			Name:      "report_process_in_flight",
			Help:      "Number of in-flight report jobs.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	registry.MustRegister(reportTotal, reportDuration, reportInFlight)

	return &WorkerMetrics{
		registry:       registry,
		reportTotal:    reportTotal,
		reportDuration: reportDuration,
		reportInFlight: reportInFlight,
	}
}

func (m *WorkerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *WorkerMetrics) StartReport() {
	m.reportInFlight.Inc()
}

func (m *WorkerMetrics) FinishReport(service string, duration time.Duration, err error) {
	m.reportInFlight.Dec()

	status := "success"
	if err != nil {
		status = "error"
	}

	m.reportTotal.WithLabelValues(service, status).Inc()
	m.reportDuration.WithLabelValues(service, status).Observe(duration.Seconds())
}
