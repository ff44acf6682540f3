package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/avolkov/coaching-backend/internal/core/domain"
	"github.com/avolkov/coaching-backend/internal/core/ports"
	"github.com/avolkov/coaching-backend/internal/core/structured"
)

const (
	defaultAnalysisDays = 7
	analysisTemperature = 0.3
	analysisMaxTokens   = 1500
	recentMessagesLimit = 20
	insightListLength   = 3
)

var insightRequiredFields = []string{"summary", "strengths", "areas_for_improvement", "recommendations"}

// scoring weights and caps, evaluated in fixed order; the total never
// exceeds 100.
const (
	sessionWeight = 5
	sessionCap    = 40
	lessonWeight  = 10
	lessonCap     = 30
	messageWeight = 2
	messageCap    = 20
)

// EngagementScore is the deterministic weighted sum of usage counters and
// the message-quality signal, clamped to [0,100]. It is monotonic
// non-decreasing in every counter.
func EngagementScore(win domain.UsageWindow, pat domain.PatternSummary) float64 {
	score := 0.0

	score += minF(float64(win.TotalSessions*sessionWeight), sessionCap)
	score += minF(float64(win.LessonsCompleted*lessonWeight), lessonCap)
	score += minF(float64(win.TotalMessages*messageWeight), messageCap)

	switch {
	case pat.AvgMessageLength > 50:
		score += 10
	case pat.AvgMessageLength > 20:
		score += 5
	}

	return minF(score, 100)
}

func minF(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

type insights struct {
	Summary             string
	Strengths           []string
	AreasForImprovement []string
	Recommendations     []string
	DetailedAnalysis    map[string]any
}

// ProgressUseCase aggregates usage counters and conversational pattern
// signals into one progress report. AI insight generation degrades to a
// deterministic generator, so report creation is never blocked by model
// unavailability.
type ProgressUseCase struct {
	stats    ports.UsageStatsSource
	patterns ports.PatternAnalyzer
	gateway  ports.TextGenerator
	reports  ports.ReportStore
	provider domain.Provider
}

func NewProgressUseCase(
	stats ports.UsageStatsSource,
	patterns ports.PatternAnalyzer,
	gateway ports.TextGenerator,
	reports ports.ReportStore,
	provider domain.Provider,
) *ProgressUseCase {
	if provider == "" {
		provider = domain.ProviderAnthropic
	}
	return &ProgressUseCase{
		stats:    stats,
		patterns: patterns,
		gateway:  gateway,
		reports:  reports,
		provider: provider,
	}
}

func (uc *ProgressUseCase) GenerateReport(ctx context.Context, userID string, days int) (*domain.ProgressReport, error) {
	return uc.GenerateReportWithID(ctx, uuid.NewString(), userID, days)
}

// GenerateReportWithID runs one analytics pass under a caller-chosen report
// id, so a queued job and the stored report share the same identifier.
func (uc *ProgressUseCase) GenerateReportWithID(ctx context.Context, reportID, userID string, days int) (*domain.ProgressReport, error) {
	if reportID == "" {
		reportID = uuid.NewString()
	}
	if userID == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "generate report", fmt.Errorf("empty user id"))
	}
	if days <= 0 {
		days = defaultAnalysisDays
	}

	periodEnd := time.Now().UTC()
	periodStart := periodEnd.AddDate(0, 0, -days)

	win, err := uc.stats.UsageWindow(ctx, userID, periodStart, periodEnd)
	if err != nil {
		return nil, fmt.Errorf("aggregate usage window: %w", err)
	}

	pat, err := uc.patterns.AnalyzePatterns(ctx, userID)
	if err != nil {
		// Pattern analysis is a soft signal; a missing collaborator
		// degrades scoring inputs to zero instead of blocking the report.
		slog.Warn("pattern_analysis_failed", "user_id", userID, "error", err)
		pat = domain.PatternSummary{}
	}

	recent, err := uc.stats.RecentUserMessages(ctx, userID, periodStart, periodEnd, recentMessagesLimit)
	if err != nil {
		return nil, fmt.Errorf("load recent messages: %w", err)
	}

	result := uc.generateInsights(ctx, win, pat, recent)

	report := &domain.ProgressReport{
		ID:                  reportID,
		UserID:              userID,
		PeriodStart:         periodStart,
		PeriodEnd:           periodEnd,
		Summary:             result.Summary,
		Strengths:           result.Strengths,
		AreasForImprovement: result.AreasForImprovement,
		Recommendations:     result.Recommendations,
		EngagementScore:     EngagementScore(win, pat),
		DetailedAnalysis:    result.DetailedAnalysis,
		TotalSessions:       win.TotalSessions,
		LessonsCompleted:    win.LessonsCompleted,
		TotalMessages:       win.TotalMessages,
		CreatedAt:           time.Now().UTC(),
	}

	if err := uc.reports.Save(ctx, report); err != nil {
		return nil, fmt.Errorf("persist progress report: %w", err)
	}
	return report, nil
}

// generateInsights asks the configured provider for JSON insights and falls
// back to the deterministic generator on any provider or validation failure.
func (uc *ProgressUseCase) generateInsights(ctx context.Context, win domain.UsageWindow, pat domain.PatternSummary, recent []string) insights {
	completion, err := uc.gateway.Generate(ctx, domain.ChatRequest{
		Messages: []domain.ConversationTurn{
			{Role: domain.RoleUser, Text: buildAnalysisPrompt(win, pat, recent)},
		},
		SystemPrompt: analysisSystemPrompt,
		Temperature:  analysisTemperature,
		MaxTokens:    analysisMaxTokens,
		Provider:     uc.provider,
	})
	if err != nil {
		slog.Warn("insight_generation_failed", "provider", uc.provider, "error", err)
		return fallbackInsights(win)
	}

	fields, err := structured.Parse(completion.Content, insightRequiredFields, map[string]any{
		"detailed_analysis": map[string]any{},
	})
	if err != nil {
		var schemaErr *domain.SchemaValidationError
		if errors.As(err, &schemaErr) {
			slog.Warn("insight_output_invalid", "missing_field", schemaErr.Field)
		}
		return fallbackInsights(win)
	}

	parsed := insights{
		Summary:             structured.StringOr(fields["summary"], ""),
		Strengths:           structured.StringList(fields["strengths"]),
		AreasForImprovement: structured.StringList(fields["areas_for_improvement"]),
		Recommendations:     structured.StringList(fields["recommendations"]),
		DetailedAnalysis:    structured.ObjectOr(fields["detailed_analysis"], map[string]any{}),
	}

	// The report shape promises exactly three items per list. Longer model
	// output is truncated; shorter output is treated as a validation
	// failure rather than padded with invented items.
	if parsed.Summary == "" ||
		len(parsed.Strengths) < insightListLength ||
		len(parsed.AreasForImprovement) < insightListLength ||
		len(parsed.Recommendations) < insightListLength {
		slog.Warn("insight_output_incomplete", "provider", uc.provider)
		return fallbackInsights(win)
	}
	parsed.Strengths = parsed.Strengths[:insightListLength]
	parsed.AreasForImprovement = parsed.AreasForImprovement[:insightListLength]
	parsed.Recommendations = parsed.Recommendations[:insightListLength]

	return parsed
}

// fallbackInsights derives a structurally valid report body from the raw
// counters alone. It never fails.
func fallbackInsights(win domain.UsageWindow) insights {
	return insights{
		Summary: fmt.Sprintf(
			"User completed %d lessons across %d sessions with %d total interactions.",
			win.LessonsCompleted, win.TotalSessions, win.TotalMessages,
		),
		Strengths: []string{
			"Consistent engagement with the platform",
			"Active participation in coaching sessions",
			"Willingness to learn and develop",
		},
		AreasForImprovement: []string{
			"Increase session frequency for better retention",
			"Complete more structured lessons",
			"Engage with more diverse topics",
		},
		Recommendations: []string{
			"Set aside regular time for coaching sessions",
			"Focus on completing lesson objectives",
			"Explore new coaching areas to broaden skills",
		},
		DetailedAnalysis: map[string]any{
			"engagement_level": "moderate",
			"learning_pace":    "steady",
			"focus_areas":      []any{"general development"},
		},
	}
}
