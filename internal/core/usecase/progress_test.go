package usecase

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/avolkov/coaching-backend/internal/core/domain"
)

type fakeStats struct {
	win    domain.UsageWindow
	recent []string
	err    error
}

func (f *fakeStats) UsageWindow(_ context.Context, _ string, _, _ time.Time) (domain.UsageWindow, error) {
	return f.win, f.err
}

func (f *fakeStats) RecentUserMessages(_ context.Context, _ string, _, _ time.Time, _ int) ([]string, error) {
	return f.recent, nil
}

type fakePatterns struct {
	summary domain.PatternSummary
	err     error
}

func (f *fakePatterns) AnalyzePatterns(_ context.Context, _ string) (domain.PatternSummary, error) {
	return f.summary, f.err
}

type fakeReportStore struct {
	saved *domain.ProgressReport
	err   error
}

func (f *fakeReportStore) Save(_ context.Context, report *domain.ProgressReport) error {
	f.saved = report
	return f.err
}

func (f *fakeReportStore) GetByID(_ context.Context, _ string) (*domain.ProgressReport, error) {
	return f.saved, nil
}

func TestEngagementScoreWeights(t *testing.T) {
	cases := []struct {
		name string
		win  domain.UsageWindow
		pat  domain.PatternSummary
		want float64
	}{
		{
			name: "zero activity",
			want: 0,
		},
		{
			name: "single light session",
			win:  domain.UsageWindow{TotalSessions: 1, TotalMessages: 2},
			pat:  domain.PatternSummary{AvgMessageLength: 10},
			want: 9,
		},
		{
			name: "mid range with quality bonus",
			win:  domain.UsageWindow{TotalSessions: 4, LessonsCompleted: 2, TotalMessages: 6},
			pat:  domain.PatternSummary{AvgMessageLength: 35},
			want: 20 + 20 + 12 + 5,
		},
		{
			name: "all caps reached",
			win:  domain.UsageWindow{TotalSessions: 8, LessonsCompleted: 3, TotalMessages: 10},
			pat:  domain.PatternSummary{AvgMessageLength: 60},
			want: 100,
		},
		{
			name: "counters past the caps stay clamped",
			win:  domain.UsageWindow{TotalSessions: 100, LessonsCompleted: 100, TotalMessages: 100},
			pat:  domain.PatternSummary{AvgMessageLength: 500},
			want: 100,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := EngagementScore(tc.win, tc.pat)
			if got != tc.want {
				t.Fatalf("EngagementScore = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestEngagementScoreMonotonic(t *testing.T) {
	base := domain.UsageWindow{TotalSessions: 2, LessonsCompleted: 1, TotalMessages: 3}
	pat := domain.PatternSummary{AvgMessageLength: 30}
	ref := EngagementScore(base, pat)

	more := base
	more.TotalSessions++
	if EngagementScore(more, pat) < ref {
		t.Fatal("score decreased when sessions increased")
	}
	more = base
	more.LessonsCompleted++
	if EngagementScore(more, pat) < ref {
		t.Fatal("score decreased when lessons increased")
	}
	more = base
	more.TotalMessages++
	if EngagementScore(more, pat) < ref {
		t.Fatal("score decreased when messages increased")
	}
}

func TestFallbackInsightsShape(t *testing.T) {
	got := fallbackInsights(domain.UsageWindow{TotalSessions: 4, LessonsCompleted: 2, TotalMessages: 17})

	if got.Summary != "User completed 2 lessons across 4 sessions with 17 total interactions." {
		t.Fatalf("Summary = %q", got.Summary)
	}
	for name, list := range map[string][]string{
		"strengths":             got.Strengths,
		"areas_for_improvement": got.AreasForImprovement,
		"recommendations":       got.Recommendations,
	} {
		if len(list) != insightListLength {
			t.Fatalf("%s has %d items, want %d", name, len(list), insightListLength)
		}
	}
	if got.DetailedAnalysis["engagement_level"] != "moderate" {
		t.Fatalf("DetailedAnalysis = %#v", got.DetailedAnalysis)
	}

	// Zero counters still produce a complete body.
	empty := fallbackInsights(domain.UsageWindow{})
	if empty.Summary == "" || len(empty.Recommendations) != insightListLength {
		t.Fatalf("zero-activity fallback incomplete: %+v", empty)
	}
}

const validInsightJSON = `{
  "summary": "Strong week of focused coaching.",
  "strengths": ["Asks precise questions", "Applies feedback quickly", "Keeps sessions on topic", "Extra strength"],
  "areas_for_improvement": ["More role play", "Longer reflections", "Broader topics"],
  "recommendations": ["Schedule two sessions weekly", "Review lesson notes", "Practice objection handling"],
  "detailed_analysis": {"engagement_level": "high"}
}`

func TestGenerateReportUsesProviderInsights(t *testing.T) {
	gw := &fakeGateway{completion: &domain.Completion{Content: validInsightJSON}}
	store := &fakeReportStore{}
	uc := NewProgressUseCase(
		&fakeStats{
			win:    domain.UsageWindow{TotalSessions: 3, LessonsCompleted: 1, TotalMessages: 8},
			recent: []string{"how do I close a stalled deal"},
		},
		&fakePatterns{summary: domain.PatternSummary{MessageCount: 8, AvgMessageLength: 42, BusinessFocusRatio: 0.5}},
		gw,
		store,
		"",
	)

	report, err := uc.GenerateReport(context.Background(), "user-7", 7)
	if err != nil {
		t.Fatalf("GenerateReport: %v", err)
	}

	if report.Summary != "Strong week of focused coaching." {
		t.Fatalf("Summary = %q", report.Summary)
	}
	if len(report.Strengths) != insightListLength {
		t.Fatalf("strengths not truncated to %d: %v", insightListLength, report.Strengths)
	}
	if report.EngagementScore != 15+10+16+5 {
		t.Fatalf("EngagementScore = %v", report.EngagementScore)
	}
	if report.TotalSessions != 3 || report.LessonsCompleted != 1 || report.TotalMessages != 8 {
		t.Fatalf("counters not carried: %+v", report)
	}
	if store.saved == nil || store.saved.ID != report.ID {
		t.Fatal("report not persisted")
	}
	if gw.lastReq.Provider != domain.ProviderAnthropic {
		t.Fatalf("default analysis provider = %q, want anthropic", gw.lastReq.Provider)
	}
	if gw.lastReq.MaxTokens != analysisMaxTokens {
		t.Fatalf("MaxTokens = %d, want %d", gw.lastReq.MaxTokens, analysisMaxTokens)
	}
}

func TestGenerateReportFallsBackOnProviderFailure(t *testing.T) {
	gw := &fakeGateway{err: &domain.ProviderError{Provider: domain.ProviderAnthropic, Cause: errors.New("unreachable")}}
	store := &fakeReportStore{}
	uc := NewProgressUseCase(
		&fakeStats{win: domain.UsageWindow{TotalSessions: 2, LessonsCompleted: 1, TotalMessages: 4}},
		&fakePatterns{},
		gw,
		store,
		domain.ProviderAnthropic,
	)

	report, err := uc.GenerateReport(context.Background(), "user-7", 0)
	if err != nil {
		t.Fatalf("provider failure must not fail the report: %v", err)
	}
	if report.Summary != "User completed 1 lessons across 2 sessions with 4 total interactions." {
		t.Fatalf("fallback summary = %q", report.Summary)
	}
	if len(report.Strengths) != insightListLength || len(report.Recommendations) != insightListLength {
		t.Fatalf("fallback lists wrong length: %+v", report)
	}
}

func TestGenerateReportFallsBackOnShortLists(t *testing.T) {
	short := `{"summary": "ok", "strengths": ["one"], "areas_for_improvement": ["one", "two", "three"], "recommendations": ["one", "two", "three"]}`
	gw := &fakeGateway{completion: &domain.Completion{Content: short}}
	uc := NewProgressUseCase(
		&fakeStats{win: domain.UsageWindow{TotalSessions: 1}},
		&fakePatterns{},
		gw,
		&fakeReportStore{},
		domain.ProviderAnthropic,
	)

	report, err := uc.GenerateReport(context.Background(), "user-7", 7)
	if err != nil {
		t.Fatalf("GenerateReport: %v", err)
	}
	if report.Strengths[0] != "Consistent engagement with the platform" {
		t.Fatalf("expected fallback strengths, got %v", report.Strengths)
	}
}

func TestGenerateReportToleratesPatternFailure(t *testing.T) {
	gw := &fakeGateway{completion: &domain.Completion{Content: validInsightJSON}}
	uc := NewProgressUseCase(
		&fakeStats{win: domain.UsageWindow{TotalSessions: 2}},
		&fakePatterns{err: errors.New("qdrant down")},
		gw,
		&fakeReportStore{},
		domain.ProviderAnthropic,
	)

	report, err := uc.GenerateReport(context.Background(), "user-7", 7)
	if err != nil {
		t.Fatalf("pattern failure must degrade, not fail: %v", err)
	}
	// No quality bonus when patterns are unavailable.
	if report.EngagementScore != 10 {
		t.Fatalf("EngagementScore = %v, want 10", report.EngagementScore)
	}
}

func TestBuildAnalysisPromptTruncatesByRunes(t *testing.T) {
	short := strings.Repeat("客", 40)  // 40 characters, 120 bytes
	long := strings.Repeat("户", 140) // over the 100-character sample cap

	prompt := buildAnalysisPrompt(domain.UsageWindow{}, domain.PatternSummary{}, []string{short, long})

	if !utf8.ValidString(prompt) {
		t.Fatal("prompt contains invalid UTF-8")
	}
	if !strings.Contains(prompt, "- "+short+"\n") {
		t.Fatalf("40-character message must be sampled whole:\n%s", prompt)
	}
	wantLong := "- " + strings.Repeat("户", maxSampledMessageLen) + "..."
	if !strings.Contains(prompt, wantLong) {
		t.Fatalf("long message must be cut at %d characters:\n%s", maxSampledMessageLen, prompt)
	}
}

func TestGenerateReportRejectsEmptyUser(t *testing.T) {
	uc := NewProgressUseCase(&fakeStats{}, &fakePatterns{}, &fakeGateway{}, &fakeReportStore{}, domain.ProviderAnthropic)
	if _, err := uc.GenerateReport(context.Background(), "", 7); !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
}
