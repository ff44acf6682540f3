package httpadapter

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/avolkov/coaching-backend/internal/core/domain"
	"github.com/avolkov/coaching-backend/internal/core/ports"
	"github.com/avolkov/coaching-backend/internal/infrastructure/resilience"
	"github.com/avolkov/coaching-backend/internal/observability/metrics"
)

// Deps carries everything the HTTP surface needs. Executor and Classifier
// wrap the provider-bound use case calls with retry and circuit breaking;
// the use cases themselves never retry.
type Deps struct {
	Ingestor    ports.DocumentParser
	Lessons     ports.LessonGenerator
	Chat        ports.CoachingChat
	LessonStore ports.LessonStore
	ReportStore ports.ReportStore
	Queue       ports.ReportQueue
	Activity    ports.ActivityLog

	Executor   *resilience.Executor
	Classifier resilience.ErrorClassifier
	Metrics    *metrics.HTTPServerMetrics

	Service         string
	DefaultProvider domain.Provider
	MaxUploadBytes  int64
	MaxUploadFiles  int
}

type Router struct {
	deps Deps
}

func NewRouter(deps Deps) *Router {
	if deps.Service == "" {
		deps.Service = "api"
	}
	if deps.DefaultProvider == "" {
		deps.DefaultProvider = domain.ProviderOpenAI
	}
	if deps.MaxUploadBytes <= 0 {
		deps.MaxUploadBytes = 32 << 20
	}
	if deps.MaxUploadFiles <= 0 {
		deps.MaxUploadFiles = 10
	}
	return &Router{deps: deps}
}

func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", rt.healthz)
	mux.HandleFunc("/v1/documents/formats", rt.supportedFormats)
	mux.HandleFunc("/v1/lessons/generate", rt.generateLesson)
	mux.HandleFunc("/v1/lessons/", rt.lessonByID)
	mux.HandleFunc("/v1/chat", rt.coachingChat)
	mux.HandleFunc("/v1/reports", rt.createReport)
	mux.HandleFunc("/v1/reports/", rt.getReportByID)
	if rt.deps.Metrics != nil {
		mux.Handle("/metrics", rt.deps.Metrics.Handler())
	}

	var handler http.Handler = mux
	if rt.deps.Metrics != nil {
		handler = rt.deps.Metrics.Middleware(rt.deps.Service, handler)
	}
	return requestIDMiddleware(accessLogMiddleware(handler))
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (rt *Router) supportedFormats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"supported_formats": rt.deps.Ingestor.SupportedFormats(),
	})
}

// resolveProvider validates an explicit provider name or falls back to the
// configured default. There is never a fallback between providers on error.
func (rt *Router) resolveProvider(name string) (domain.Provider, bool) {
	if name == "" {
		return rt.deps.DefaultProvider, true
	}
	provider := domain.Provider(name)
	return provider, provider.Valid()
}

// execute routes a provider-bound call through the resilience executor when
// one is configured.
func (rt *Router) execute(ctx context.Context, operation string, fn func(context.Context) error) error {
	if rt.deps.Executor == nil {
		return fn(ctx)
	}
	return rt.deps.Executor.Execute(ctx, operation, fn, rt.deps.Classifier)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, mapErrorToHTTPStatus(err), map[string]string{"error": err.Error()})
}
