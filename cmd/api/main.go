package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	httpadapter "github.com/avolkov/coaching-backend/internal/adapters/http"
	"github.com/avolkov/coaching-backend/internal/bootstrap"
	"github.com/avolkov/coaching-backend/internal/config"
	"github.com/avolkov/coaching-backend/internal/core/domain"
	"github.com/avolkov/coaching-backend/internal/observability/logging"
	"github.com/avolkov/coaching-backend/internal/observability/metrics"
)

func main() {
	cfg := config.Load()
	slog.SetDefault(logging.NewJSONLogger("api", cfg.LogLevel))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg)
	if err != nil {
		log.Fatalf("bootstrap error: %v", err)
	}
	defer app.Close()

	router := httpadapter.NewRouter(httpadapter.Deps{
		Ingestor:    app.Ingestor,
		Lessons:     app.LessonUC,
		Chat:        app.ChatUC,
		LessonStore: app.LessonStore,
		ReportStore: app.ReportStore,
		Queue:       app.Queue,
		Activity:    app.Activity,

		Executor:   app.Executor,
		Classifier: app.Classifier,
		Metrics:    metrics.NewHTTPServerMetrics("api"),

		Service:         "api",
		DefaultProvider: domain.Provider(cfg.DefaultProvider),
		MaxUploadBytes:  cfg.MaxUploadBytes,
		MaxUploadFiles:  cfg.MaxUploadFiles,
	})

	server := &http.Server{
		Addr:         ":" + cfg.APIPort,
		Handler:      router.Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("api_listening", "port", cfg.APIPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("api server error: %v", err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("api_shutdown_error", "error", err)
	}
}
