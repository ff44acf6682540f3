package bootstrap

import (
	"context"
	"fmt"
	"time"

	"github.com/avolkov/coaching-backend/internal/config"
	"github.com/avolkov/coaching-backend/internal/core/domain"
	"github.com/avolkov/coaching-backend/internal/core/ports"
	"github.com/avolkov/coaching-backend/internal/core/usecase"
	"github.com/avolkov/coaching-backend/internal/infrastructure/extractor"
	"github.com/avolkov/coaching-backend/internal/infrastructure/llm"
	"github.com/avolkov/coaching-backend/internal/infrastructure/queue/nats"
	"github.com/avolkov/coaching-backend/internal/infrastructure/repository/postgres"
	"github.com/avolkov/coaching-backend/internal/infrastructure/resilience"
	"github.com/avolkov/coaching-backend/internal/infrastructure/vector/qdrant"
)

type App struct {
	Config config.Config

	Ingestor    ports.DocumentParser
	Queue       ports.ReportQueue
	LessonStore ports.LessonStore
	ReportStore ports.ReportStore
	Activity    ports.ActivityLog

	LessonUC   ports.LessonGenerator
	ChatUC     ports.CoachingChat
	ProgressUC *usecase.ProgressUseCase

	Executor   *resilience.Executor
	Classifier resilience.ErrorClassifier

	closeFn func()
}

func New(ctx context.Context, cfg config.Config) (*App, error) {
	db, err := postgres.OpenDB(cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}

	lessonStore := postgres.NewLessonRepository(db)
	reportStore := postgres.NewReportRepository(db)
	usageStore := postgres.NewUsageStatsRepository(db)
	for name, ensure := range map[string]func(context.Context) error{
		"lessons": lessonStore.EnsureSchema,
		"reports": reportStore.EnsureSchema,
		"usage":   usageStore.EnsureSchema,
	} {
		if err := ensure(ctx); err != nil {
			return nil, fmt.Errorf("ensure %s schema: %w", name, err)
		}
	}

	executor := resilience.NewExecutor(resilience.DefaultConfig())

	queue, err := nats.NewWithOptions(cfg.NATSURL, cfg.NATSSubject, nats.Options{
		ResilienceExecutor: executor,
	})
	if err != nil {
		return nil, fmt.Errorf("init report queue: %w", err)
	}

	gateway := llm.NewGateway(llm.Config{
		OpenAIKey:        cfg.OpenAIAPIKey,
		OpenAIModel:      cfg.OpenAIModel,
		OpenAIEmbedModel: cfg.OpenAIEmbedModel,
		OpenAIBaseURL:    cfg.OpenAIBaseURL,

		AnthropicKey:     cfg.AnthropicAPIKey,
		AnthropicModel:   cfg.AnthropicModel,
		AnthropicBaseURL: cfg.AnthropicBaseURL,

		DeepSeekKey:     cfg.DeepSeekAPIKey,
		DeepSeekModel:   cfg.DeepSeekModel,
		DeepSeekBaseURL: cfg.DeepSeekBaseURL,

		Timeout:           time.Duration(cfg.ProviderTimeoutSeconds) * time.Second,
		RequestsPerMinute: cfg.ProviderRequestsPerMinute,
	})

	vectorDB := qdrant.New(cfg.QdrantURL, gateway)

	lessonUC := usecase.NewLessonUseCase(gateway)
	chatUC := usecase.NewChatUseCase(gateway, vectorDB, usageStore)
	progressUC := usecase.NewProgressUseCase(
		usageStore,
		vectorDB,
		gateway,
		reportStore,
		domain.Provider(cfg.AnalysisProvider),
	)

	return &App{
		Config: cfg,

		Ingestor:    extractor.NewIngestor(),
		Queue:       queue,
		LessonStore: lessonStore,
		ReportStore: reportStore,
		Activity:    usageStore,

		LessonUC:   lessonUC,
		ChatUC:     chatUC,
		ProgressUC: progressUC,

		Executor:   executor,
		Classifier: llm.ClassifyError,

		closeFn: func() {
			queue.Close()
			_ = db.Close()
		},
	}, nil
}

func (a *App) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}
