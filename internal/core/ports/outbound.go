package ports

import (
	"context"
	"time"

	"github.com/avolkov/coaching-backend/internal/core/domain"
)

// DocumentParser converts raw bytes plus a filename into a normalized
// plain-text record.
type DocumentParser interface {
	Parse(data []byte, filename string) (*domain.ParsedDocument, error)
	IsSupported(filename string) bool
	SupportedFormats() []string
}

// TextGenerator is the uniform gateway over all configured AI providers.
type TextGenerator interface {
	Generate(ctx context.Context, req domain.ChatRequest) (*domain.Completion, error)
}

// Embedder builds vectors for stored texts and query text.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// VectorSearch is the consumed contract of the vector-search collaborator.
// Internals (similarity math, index layout) are opaque to the core.
type VectorSearch interface {
	Store(ctx context.Context, namespace, text string, metadata map[string]any) (string, error)
	Query(ctx context.Context, namespace, queryText string, k int, filter map[string]any) ([]domain.SearchHit, error)
	DeleteWhere(ctx context.Context, namespace string, filter map[string]any) (int, error)
}

// PatternAnalyzer derives an aggregate conversational signal from stored
// user messages.
type PatternAnalyzer interface {
	AnalyzePatterns(ctx context.Context, userID string) (domain.PatternSummary, error)
}

// LessonStore persists finished lesson drafts. Durability is entirely the
// store's concern; the core hands over fully validated drafts.
type LessonStore interface {
	Save(ctx context.Context, draft *domain.LessonDraft) error
	GetByID(ctx context.Context, id string) (*domain.LessonDraft, error)
}

// ReportStore persists finished progress reports.
type ReportStore interface {
	Save(ctx context.Context, report *domain.ProgressReport) error
	GetByID(ctx context.Context, id string) (*domain.ProgressReport, error)
}

// ActivityLog records the usage events the reporting counters are built
// from. Recording is best effort from the caller's point of view.
type ActivityLog interface {
	RecordMessage(ctx context.Context, userID, sessionID string, role domain.Role, content string) error
	RecordLessonCompleted(ctx context.Context, userID, lessonID string) error
}

// UsageStatsSource aggregates usage counters for a reporting period.
type UsageStatsSource interface {
	UsageWindow(ctx context.Context, userID string, from, to time.Time) (domain.UsageWindow, error)
	RecentUserMessages(ctx context.Context, userID string, from, to time.Time, limit int) ([]string, error)
}

// ReportQueue publishes and consumes report-generation jobs.
type ReportQueue interface {
	PublishReportRequested(ctx context.Context, job domain.ReportJob) error
	SubscribeReportRequested(ctx context.Context, handler func(context.Context, domain.ReportJob) error) error
}
