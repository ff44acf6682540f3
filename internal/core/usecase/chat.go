package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/avolkov/coaching-backend/internal/core/domain"
	"github.com/avolkov/coaching-backend/internal/core/ports"
)

const (
	chatTemperature = 0.7
	chatMaxTokens   = 2000
)

// ChatUseCase produces one coaching reply per call and archives both sides
// of the exchange in the caller's session namespace for later pattern
// analysis. Archival is best effort; a storage failure never loses the
// reply that was already generated.
type ChatUseCase struct {
	gateway  ports.TextGenerator
	vectors  ports.VectorSearch
	activity ports.ActivityLog
}

func NewChatUseCase(gateway ports.TextGenerator, vectors ports.VectorSearch, activity ports.ActivityLog) *ChatUseCase {
	return &ChatUseCase{gateway: gateway, vectors: vectors, activity: activity}
}

func (uc *ChatUseCase) Respond(ctx context.Context, req domain.CoachingRequest) (*domain.Completion, error) {
	if req.UserID == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "coaching chat", fmt.Errorf("empty user id"))
	}
	if req.Message == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "coaching chat", fmt.Errorf("empty message"))
	}

	messages := make([]domain.ConversationTurn, 0, len(req.History)+1)
	messages = append(messages, req.History...)
	messages = append(messages, domain.ConversationTurn{Role: domain.RoleUser, Text: req.Message})

	completion, err := uc.gateway.Generate(ctx, domain.ChatRequest{
		Messages:     messages,
		SystemPrompt: buildCoachingPrompt(req.LessonContext),
		Temperature:  chatTemperature,
		MaxTokens:    chatMaxTokens,
		Provider:     req.Provider,
	})
	if err != nil {
		return nil, err
	}

	uc.archiveTurns(ctx, req, completion.Content)
	return completion, nil
}

func (uc *ChatUseCase) archiveTurns(ctx context.Context, req domain.CoachingRequest, reply string) {
	namespace := sessionNamespace(req.UserID)
	now := time.Now().UTC().Format(time.RFC3339)

	turns := []struct {
		role domain.Role
		text string
	}{
		{role: domain.RoleUser, text: req.Message},
		{role: domain.RoleAssistant, text: reply},
	}
	for _, turn := range turns {
		if uc.activity != nil {
			if err := uc.activity.RecordMessage(ctx, req.UserID, req.SessionID, turn.role, turn.text); err != nil {
				slog.Warn("activity_record_failed",
					"user_id", req.UserID,
					"session_id", req.SessionID,
					"role", turn.role,
					"error", err,
				)
			}
		}
		if uc.vectors == nil {
			continue
		}
		_, err := uc.vectors.Store(ctx, namespace, turn.text, map[string]any{
			"role":       string(turn.role),
			"session_id": req.SessionID,
			"user_id":    req.UserID,
			"timestamp":  now,
		})
		if err != nil {
			slog.Warn("conversation_archive_failed",
				"user_id", req.UserID,
				"session_id", req.SessionID,
				"role", turn.role,
				"error", err,
			)
		}
	}
}

// sessionNamespace names the per-user collection that holds archived
// conversation turns.
func sessionNamespace(userID string) string {
	return fmt.Sprintf("user_%s_sessions", userID)
}
