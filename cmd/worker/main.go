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

	"github.com/avolkov/coaching-backend/internal/bootstrap"
	"github.com/avolkov/coaching-backend/internal/config"
	"github.com/avolkov/coaching-backend/internal/core/domain"
	"github.com/avolkov/coaching-backend/internal/observability/logging"
	"github.com/avolkov/coaching-backend/internal/observability/metrics"
)

func main() {
	cfg := config.Load()
	slog.SetDefault(logging.NewJSONLogger("worker", cfg.LogLevel))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg)
	if err != nil {
		log.Fatalf("bootstrap error: %v", err)
	}
	defer app.Close()

	workerMetrics := metrics.NewWorkerMetrics("worker")
	metricsServer := &http.Server{
		Addr:    ":" + cfg.WorkerMetricsPort,
		Handler: workerMetrics.Handler(),
	}
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("worker_metrics_server_error", "error", err)
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metricsServer.Shutdown(shutdownCtx)
	}()

	slog.Info("worker_subscribed", "subject", cfg.NATSSubject)
	err = app.Queue.SubscribeReportRequested(ctx, func(handlerCtx context.Context, job domain.ReportJob) error {
		reportCtx, cancel := context.WithTimeout(handlerCtx, 5*time.Minute)
		defer cancel()

		workerMetrics.StartReport()
		start := time.Now()
		_, genErr := app.ProgressUC.GenerateReportWithID(reportCtx, job.ReportID, job.UserID, job.Days)
		workerMetrics.FinishReport("worker", time.Since(start), genErr)
		return genErr
	})
	if err != nil {
		log.Fatalf("worker subscribe error: %v", err)
	}
}
