package ports

import (
	"context"

	"github.com/avolkov/coaching-backend/internal/core/domain"
)

// LessonGenerator is the inbound contract for lesson generation and
// refinement.
type LessonGenerator interface {
	GenerateFromDocuments(ctx context.Context, req domain.GenerationRequest) (*domain.LessonDraft, error)
	Refine(ctx context.Context, draft *domain.LessonDraft, instructions string, provider domain.Provider) (*domain.LessonDraft, error)
}

// CoachingChat is the inbound contract for one coaching conversation turn.
type CoachingChat interface {
	Respond(ctx context.Context, req domain.CoachingRequest) (*domain.Completion, error)
}

// ProgressReporter is the inbound contract for one analytics run.
type ProgressReporter interface {
	GenerateReport(ctx context.Context, userID string, days int) (*domain.ProgressReport, error)
}
