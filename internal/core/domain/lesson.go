package domain

import "time"

// LessonCategory mirrors the categories the prompt templates know about.
type LessonCategory string

const (
	CategorySales       LessonCategory = "sales"
	CategoryLeadership  LessonCategory = "leadership"
	CategoryNegotiation LessonCategory = "negotiation"
	CategoryManagement  LessonCategory = "management"
	CategoryGeneral     LessonCategory = "general"
)

// GenerationRequest describes one lesson-generation invocation. It is
// request-scoped and consumed read-only by the pipeline.
type GenerationRequest struct {
	Prompt            string
	Category          LessonCategory
	Provider          Provider
	AdditionalContext string
	Documents         []ParsedDocument
}

// LessonDraft is validated structured coaching content produced by the
// generation pipeline. Refinement replaces the whole draft atomically;
// there are no partial field patches.
type LessonDraft struct {
	ID                string         `json:"id"`
	Title             string         `json:"title"`
	Description       string         `json:"description"`
	Scenario          string         `json:"scenario"`
	Objectives        []string       `json:"objectives"`
	Content           map[string]any `json:"content"`
	DifficultyLevel   int            `json:"difficulty_level"`
	EstimatedDuration int            `json:"estimated_duration"`
	Tags              []string       `json:"tags"`
	Category          LessonCategory `json:"category"`
	Provider          Provider       `json:"ai_provider"`
	TokensUsed        int            `json:"tokens_used"`
	CreatedAt         time.Time      `json:"created_at"`
	UpdatedAt         time.Time      `json:"updated_at"`
}
