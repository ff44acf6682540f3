package usecase

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/avolkov/coaching-backend/internal/core/domain"
)

type fakeGateway struct {
	completion *domain.Completion
	err        error

	calls    int
	lastReq  domain.ChatRequest
	requests []domain.ChatRequest
}

func (f *fakeGateway) Generate(_ context.Context, req domain.ChatRequest) (*domain.Completion, error) {
	f.calls++
	f.lastReq = req
	f.requests = append(f.requests, req)
	if f.err != nil {
		return nil, f.err
	}
	return f.completion, nil
}

const validLessonJSON = `{
  "title": "Discovery Calls",
  "description": "Running a structured discovery call",
  "scenario": "You are meeting a prospect for the first time",
  "objectives": ["Ask open questions", "Qualify budget"],
  "content": {"introduction": "Welcome", "sections": []},
  "difficulty_level": 3,
  "estimated_duration": 45,
  "tags": ["sales", "discovery"]
}`

func sampleDocs() []domain.ParsedDocument {
	return []domain.ParsedDocument{
		{Filename: "playbook.txt", Format: domain.FormatText, Text: "call structure notes"},
	}
}

func TestGenerateFromDocumentsRequiresInput(t *testing.T) {
	uc := NewLessonUseCase(&fakeGateway{})

	if _, err := uc.GenerateFromDocuments(context.Background(), domain.GenerationRequest{Prompt: "teach discovery"}); !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input for missing documents, got %v", err)
	}
	if _, err := uc.GenerateFromDocuments(context.Background(), domain.GenerationRequest{Documents: sampleDocs()}); !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input for empty prompt, got %v", err)
	}
}

func TestGenerateFromDocumentsBuildsDraft(t *testing.T) {
	gw := &fakeGateway{completion: &domain.Completion{Content: validLessonJSON, TokensUsed: 321}}
	uc := NewLessonUseCase(gw)

	draft, err := uc.GenerateFromDocuments(context.Background(), domain.GenerationRequest{
		Prompt:    "teach discovery calls",
		Category:  domain.CategorySales,
		Provider:  domain.ProviderOpenAI,
		Documents: sampleDocs(),
	})
	if err != nil {
		t.Fatalf("GenerateFromDocuments: %v", err)
	}

	if gw.calls != 1 {
		t.Fatalf("expected exactly one provider call, got %d", gw.calls)
	}
	if draft.ID == "" {
		t.Fatal("expected generated draft id")
	}
	if draft.Title != "Discovery Calls" || draft.DifficultyLevel != 3 || draft.EstimatedDuration != 45 {
		t.Fatalf("unexpected draft fields: %+v", draft)
	}
	if draft.Category != domain.CategorySales || draft.Provider != domain.ProviderOpenAI {
		t.Fatalf("category/provider not carried: %+v", draft)
	}
	if draft.TokensUsed != 321 {
		t.Fatalf("TokensUsed = %d, want 321", draft.TokensUsed)
	}
	if !strings.Contains(gw.lastReq.Messages[0].Text, "playbook.txt") {
		t.Fatal("document context missing from generation message")
	}
	if gw.lastReq.MaxTokens != lessonMaxTokens {
		t.Fatalf("MaxTokens = %d, want %d", gw.lastReq.MaxTokens, lessonMaxTokens)
	}
}

func TestGenerateFromDocumentsStripsFences(t *testing.T) {
	fenced := "```json\n" + validLessonJSON + "\n```"
	gw := &fakeGateway{completion: &domain.Completion{Content: fenced}}
	uc := NewLessonUseCase(gw)

	draft, err := uc.GenerateFromDocuments(context.Background(), domain.GenerationRequest{
		Prompt:    "teach discovery calls",
		Documents: sampleDocs(),
	})
	if err != nil {
		t.Fatalf("fenced output should parse: %v", err)
	}
	if draft.Title != "Discovery Calls" {
		t.Fatalf("Title = %q", draft.Title)
	}
	if draft.Category != domain.CategoryGeneral {
		t.Fatalf("empty category should default to general, got %q", draft.Category)
	}
}

func TestGenerateFromDocumentsClampsDifficulty(t *testing.T) {
	out := strings.Replace(validLessonJSON, `"difficulty_level": 3`, `"difficulty_level": 9`, 1)
	gw := &fakeGateway{completion: &domain.Completion{Content: out}}
	uc := NewLessonUseCase(gw)

	draft, err := uc.GenerateFromDocuments(context.Background(), domain.GenerationRequest{
		Prompt:    "teach discovery calls",
		Documents: sampleDocs(),
	})
	if err != nil {
		t.Fatalf("GenerateFromDocuments: %v", err)
	}
	if draft.DifficultyLevel != 5 {
		t.Fatalf("DifficultyLevel = %d, want clamped 5", draft.DifficultyLevel)
	}
}

func TestGenerateFromDocumentsRejectsEmptyObjectives(t *testing.T) {
	out := strings.Replace(validLessonJSON, `["Ask open questions", "Qualify budget"]`, `[]`, 1)
	gw := &fakeGateway{completion: &domain.Completion{Content: out}}
	uc := NewLessonUseCase(gw)

	_, err := uc.GenerateFromDocuments(context.Background(), domain.GenerationRequest{
		Prompt:    "teach discovery calls",
		Documents: sampleDocs(),
	})
	var schemaErr *domain.SchemaValidationError
	if !errors.As(err, &schemaErr) {
		t.Fatalf("expected schema validation error, got %v", err)
	}
	if schemaErr.Field != "objectives" {
		t.Fatalf("Field = %q, want objectives", schemaErr.Field)
	}
}

func TestRefineReplacesDraftAtomically(t *testing.T) {
	refined := strings.Replace(validLessonJSON, "Discovery Calls", "Advanced Discovery Calls", 1)
	gw := &fakeGateway{completion: &domain.Completion{Content: refined, TokensUsed: 88}}
	uc := NewLessonUseCase(gw)

	original := &domain.LessonDraft{
		ID:         "lesson-1",
		Title:      "Discovery Calls",
		Objectives: []string{"Ask open questions"},
		Content:    map[string]any{"introduction": "Welcome"},
		Category:   domain.CategorySales,
		Provider:   domain.ProviderOpenAI,
	}

	next, err := uc.Refine(context.Background(), original, "make it harder", domain.ProviderAnthropic)
	if err != nil {
		t.Fatalf("Refine: %v", err)
	}
	if next.ID != "lesson-1" || next.Category != domain.CategorySales {
		t.Fatalf("identity fields not preserved: %+v", next)
	}
	if next.Title != "Advanced Discovery Calls" {
		t.Fatalf("Title = %q", next.Title)
	}
	if next.Provider != domain.ProviderAnthropic || next.TokensUsed != 88 {
		t.Fatalf("refinement attribution wrong: %+v", next)
	}
	if !strings.Contains(gw.lastReq.Messages[0].Text, "make it harder") {
		t.Fatal("instructions missing from refinement message")
	}
	if !strings.Contains(gw.lastReq.Messages[0].Text, "Discovery Calls") {
		t.Fatal("current draft missing from refinement message")
	}
}

func TestRefineMissingRequiredFieldFails(t *testing.T) {
	out := strings.Replace(validLessonJSON, `"scenario": "You are meeting a prospect for the first time",`, "", 1)
	gw := &fakeGateway{completion: &domain.Completion{Content: out}}
	uc := NewLessonUseCase(gw)

	draft := &domain.LessonDraft{ID: "lesson-1", Content: map[string]any{}}
	_, err := uc.Refine(context.Background(), draft, "tighten it", domain.ProviderOpenAI)

	var schemaErr *domain.SchemaValidationError
	if !errors.As(err, &schemaErr) {
		t.Fatalf("expected schema validation error, got %v", err)
	}
	if schemaErr.Field != "scenario" {
		t.Fatalf("Field = %q, want scenario", schemaErr.Field)
	}
}

func TestRefineFillsOptionalDefaults(t *testing.T) {
	out := strings.Replace(validLessonJSON, `"tags": ["sales", "discovery"]`, `"tags": []`, 1)
	out = strings.Replace(out, `  "difficulty_level": 3,`+"\n", "", 1)
	out = strings.Replace(out, `  "estimated_duration": 45,`+"\n", "", 1)
	gw := &fakeGateway{completion: &domain.Completion{Content: out}}
	uc := NewLessonUseCase(gw)

	draft := &domain.LessonDraft{ID: "lesson-1", Content: map[string]any{}}
	next, err := uc.Refine(context.Background(), draft, "simplify", domain.ProviderOpenAI)
	if err != nil {
		t.Fatalf("Refine: %v", err)
	}
	if next.DifficultyLevel != defaultDifficulty {
		t.Fatalf("DifficultyLevel = %d, want default %d", next.DifficultyLevel, defaultDifficulty)
	}
	if next.EstimatedDuration != defaultDurationMin {
		t.Fatalf("EstimatedDuration = %d, want default %d", next.EstimatedDuration, defaultDurationMin)
	}
	if next.Tags == nil || len(next.Tags) != 0 {
		t.Fatalf("Tags = %#v, want empty non-nil slice", next.Tags)
	}
}

func TestGenerateFromDocumentsProviderError(t *testing.T) {
	gw := &fakeGateway{err: &domain.ProviderError{Provider: domain.ProviderOpenAI, Cause: errors.New("boom")}}
	uc := NewLessonUseCase(gw)

	_, err := uc.GenerateFromDocuments(context.Background(), domain.GenerationRequest{
		Prompt:    "teach discovery calls",
		Documents: sampleDocs(),
	})
	var provErr *domain.ProviderError
	if !errors.As(err, &provErr) {
		t.Fatalf("expected provider error to surface, got %v", err)
	}
	if gw.calls != 1 {
		t.Fatalf("use case must not retry internally, calls = %d", gw.calls)
	}
}
