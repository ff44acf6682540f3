package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/avolkov/coaching-backend/internal/core/domain"
	"github.com/avolkov/coaching-backend/internal/core/ports"
	"github.com/avolkov/coaching-backend/internal/core/structured"
)

const (
	lessonMaxTokens    = 4000
	lessonTemperature  = 0.7
	refineTemperature  = 0.6
	defaultDifficulty  = 2
	defaultDurationMin = 30
)

var lessonRequiredFields = []string{"title", "description", "scenario", "objectives", "content"}

func lessonDefaults() map[string]any {
	return map[string]any{
		"difficulty_level":   defaultDifficulty,
		"estimated_duration": defaultDurationMin,
		"tags":               []any{},
	}
}

// LessonUseCase turns free text plus parsed documents into a validated
// lesson draft, and refines existing drafts through the same contract.
type LessonUseCase struct {
	gateway ports.TextGenerator
}

func NewLessonUseCase(gateway ports.TextGenerator) *LessonUseCase {
	return &LessonUseCase{gateway: gateway}
}

func (uc *LessonUseCase) GenerateFromDocuments(ctx context.Context, req domain.GenerationRequest) (*domain.LessonDraft, error) {
	if len(req.Documents) == 0 {
		return nil, domain.WrapError(domain.ErrInvalidInput, "generate lesson", fmt.Errorf("at least one source document is required"))
	}
	if req.Prompt == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "generate lesson", fmt.Errorf("empty prompt"))
	}
	category := req.Category
	if category == "" {
		category = domain.CategoryGeneral
	}

	userMessage := buildLessonUserMessage(req.Prompt, buildDocumentContext(req.Documents), req.AdditionalContext)

	completion, err := uc.gateway.Generate(ctx, domain.ChatRequest{
		Messages:     []domain.ConversationTurn{{Role: domain.RoleUser, Text: userMessage}},
		SystemPrompt: buildLessonSystemPrompt(category),
		Temperature:  lessonTemperature,
		MaxTokens:    lessonMaxTokens,
		Provider:     req.Provider,
	})
	if err != nil {
		return nil, fmt.Errorf("generate lesson: %w", err)
	}

	fields, err := structured.Parse(completion.Content, lessonRequiredFields, lessonDefaults())
	if err != nil {
		return nil, fmt.Errorf("validate lesson output: %w", err)
	}

	now := time.Now().UTC()
	draft, err := draftFromFields(fields, completion.Content)
	if err != nil {
		return nil, err
	}
	draft.ID = uuid.NewString()
	draft.Category = category
	draft.Provider = req.Provider
	draft.TokensUsed = completion.TokensUsed
	draft.CreatedAt = now
	draft.UpdatedAt = now

	return draft, nil
}

// Refine re-generates the whole draft from its serialized form plus the
// refinement instructions. The draft is replaced atomically: a required
// field missing from the refined output is a hard failure, an absent
// optional field takes its default.
func (uc *LessonUseCase) Refine(ctx context.Context, draft *domain.LessonDraft, instructions string, provider domain.Provider) (*domain.LessonDraft, error) {
	if draft == nil {
		return nil, domain.WrapError(domain.ErrInvalidInput, "refine lesson", fmt.Errorf("nil draft"))
	}
	if instructions == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "refine lesson", fmt.Errorf("empty refinement instructions"))
	}

	current, err := json.MarshalIndent(draftSchemaMap(draft), "", "  ")
	if err != nil {
		return nil, fmt.Errorf("serialize current draft: %w", err)
	}

	completion, err := uc.gateway.Generate(ctx, domain.ChatRequest{
		Messages:     []domain.ConversationTurn{{Role: domain.RoleUser, Text: buildRefineUserMessage(string(current), instructions)}},
		SystemPrompt: refineSystemPrompt,
		Temperature:  refineTemperature,
		MaxTokens:    lessonMaxTokens,
		Provider:     provider,
	})
	if err != nil {
		return nil, fmt.Errorf("refine lesson: %w", err)
	}

	fields, err := structured.Parse(completion.Content, lessonRequiredFields, lessonDefaults())
	if err != nil {
		return nil, fmt.Errorf("validate refined output: %w", err)
	}

	refined, err := draftFromFields(fields, completion.Content)
	if err != nil {
		return nil, err
	}
	refined.ID = draft.ID
	refined.Category = draft.Category
	refined.Provider = provider
	refined.TokensUsed = completion.TokensUsed
	refined.CreatedAt = draft.CreatedAt
	refined.UpdatedAt = time.Now().UTC()

	return refined, nil
}

// draftSchemaMap renders a draft back into the wire schema the prompts
// declare, so refinement sees exactly what generation produced.
func draftSchemaMap(draft *domain.LessonDraft) map[string]any {
	return map[string]any{
		"title":              draft.Title,
		"description":        draft.Description,
		"scenario":           draft.Scenario,
		"objectives":         draft.Objectives,
		"content":            draft.Content,
		"difficulty_level":   draft.DifficultyLevel,
		"estimated_duration": draft.EstimatedDuration,
		"tags":               draft.Tags,
	}
}

func draftFromFields(fields map[string]any, raw string) (*domain.LessonDraft, error) {
	objectives := structured.StringList(fields["objectives"])
	if len(objectives) == 0 {
		return nil, &domain.SchemaValidationError{Field: "objectives", Raw: raw}
	}

	content := structured.ObjectOr(fields["content"], nil)
	if content == nil {
		return nil, &domain.SchemaValidationError{Field: "content", Raw: raw}
	}

	difficulty := clamp(structured.IntOr(fields["difficulty_level"], defaultDifficulty), 1, 5)
	duration := structured.IntOr(fields["estimated_duration"], defaultDurationMin)
	if duration <= 0 {
		duration = defaultDurationMin
	}

	tags := structured.StringList(fields["tags"])
	if tags == nil {
		tags = []string{}
	}

	return &domain.LessonDraft{
		Title:             structured.StringOr(fields["title"], ""),
		Description:       structured.StringOr(fields["description"], ""),
		Scenario:          structured.StringOr(fields["scenario"], ""),
		Objectives:        objectives,
		Content:           content,
		DifficultyLevel:   difficulty,
		EstimatedDuration: duration,
		Tags:              tags,
	}, nil
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
