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

	documentParseTotal    *prometheus.CounterVec
	lessonGenerationTotal *prometheus.CounterVec
	lessonDuration        *prometheus.HistogramVec
	chatRequestsTotal     *prometheus.CounterVec
	llmTokensTotal        *prometheus.CounterVec
}

func NewHTTPServerMetrics(service string) *HTTPServerMetrics {
	registry := prometheus.NewRegistry()

	requestTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "coach",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests processed.",
		},
		[]string{"service", "method", "path", "status"},
	)
	requestDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "coach",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "method", "path"},
	)
	requestInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "coach",
			Subsystem: "http",
			Name:      "in_flight_requests",
			Help:      "Number of in-flight HTTP requests.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	documentParseTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "coach",
			Subsystem: "ingest",
			Name:      "document_parse_total",
			Help:      "Total parsed uploads by format and status.",
		},
		[]string{"service", "format", "status"},
	)
	lessonGenerationTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "coach",
			Subsystem: "lesson",
			Name:      "generations_total",
			Help:      "Total lesson generations and refinements by provider and status.",
		},
		[]string{"service", "operation", "provider", "status"},
	)
	lessonDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "coach",
			Subsystem: "lesson",
			Name:      "generation_duration_seconds",
			Help:      "Lesson generation duration in seconds.",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 20, 30, 60, 120},
		},
		[]string{"service", "operation"},
	)
	chatRequestsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "coach",
			Subsystem: "chat",
			Name:      "requests_total",
			Help:      "Total coaching chat turns by provider and status.",
		},
		[]string{"service", "provider", "status"},
	)
	llmTokensTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "coach",
			Subsystem: "llm",
			Name:      "tokens_total",
			Help:      "Reported token usage per endpoint and provider.",
		},
		[]string{"service", "endpoint", "provider"},
	)

	registry.MustRegister(
		requestTotal,
		requestDuration,
		requestInFlight,
		documentParseTotal,
		lessonGenerationTotal,
		lessonDuration,
		chatRequestsTotal,
		llmTokensTotal,
	)

	return &HTTPServerMetrics{
		registry:              registry,
		requestTotal:          requestTotal,
		requestDuration:       requestDuration,
		requestInFlight:       requestInFlight,
		documentParseTotal:    documentParseTotal,
		lessonGenerationTotal: lessonGenerationTotal,
		lessonDuration:        lessonDuration,
		chatRequestsTotal:     chatRequestsTotal,
		llmTokensTotal:        llmTokensTotal,
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

// normalizePath collapses id-carrying routes so metric cardinality stays
// bounded.
func normalizePath(path string) string {
	switch {
	case strings.HasPrefix(path, "/v1/lessons/"):
		if strings.HasSuffix(path, "/refine") {
			return "/v1/lessons/{lesson_id}/refine"
		}
		if strings.HasSuffix(path, "/complete") {
			return "/v1/lessons/{lesson_id}/complete"
		}
		return "/v1/lessons/{lesson_id}"
	case strings.HasPrefix(path, "/v1/reports/"):
		return "/v1/reports/{report_id}"
	default:
		return path
	}
}

func (m *HTTPServerMetrics) RecordDocumentParse(service, format string, err error) {
	if format == "" {
		format = "unknown"
	}
	m.documentParseTotal.WithLabelValues(service, format, statusLabel(err)).Inc()
}

func (m *HTTPServerMetrics) RecordLessonGeneration(service, operation, provider string, duration time.Duration, err error) {
	if provider == "" {
		provider = "unknown"
	}
	m.lessonGenerationTotal.WithLabelValues(service, operation, provider, statusLabel(err)).Inc()
	m.lessonDuration.WithLabelValues(service, operation).Observe(duration.Seconds())
}

func (m *HTTPServerMetrics) RecordChatRequest(service, provider string, err error) {
	if provider == "" {
		provider = "unknown"
	}
	m.chatRequestsTotal.WithLabelValues(service, provider, statusLabel(err)).Inc()
}

func (m *HTTPServerMetrics) RecordTokenUsage(service, endpoint, provider string, tokens int) {
	if tokens <= 0 {
		return
	}
	if provider == "" {
		provider = "unknown"
	}
	m.llmTokensTotal.WithLabelValues(service, endpoint, provider).Add(float64(tokens))
}

func statusLabel(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
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
