package httpadapter

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/avolkov/coaching-backend/internal/core/domain"
)

func (rt *Router) coachingChat(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	var req struct {
		UserID    string                    `json:"user_id"`
		SessionID string                    `json:"session_id"`
		Message   string                    `json:"message"`
		History   []domain.ConversationTurn `json:"history"`
		LessonID  string                    `json:"lesson_id"`
		Provider  string                    `json:"provider"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	if req.UserID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "user_id is required"})
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "message is required"})
		return
	}

	provider, ok := rt.resolveProvider(req.Provider)
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": fmt.Sprintf("unknown provider %q", req.Provider)})
		return
	}
	if req.SessionID == "" {
		req.SessionID = uuid.NewString()
	}

	var lessonContext *domain.LessonDraft
	if req.LessonID != "" {
		draft, err := rt.deps.LessonStore.GetByID(r.Context(), req.LessonID)
		if err != nil {
			writeError(w, err)
			return
		}
		lessonContext = draft
	}

	chatReq := domain.CoachingRequest{
		UserID:        req.UserID,
		SessionID:     req.SessionID,
		Message:       req.Message,
		History:       req.History,
		LessonContext: lessonContext,
		Provider:      provider,
	}

	var reply *domain.Completion
	err := rt.execute(r.Context(), "chat.respond", func(ctx context.Context) error {
		completion, chatErr := rt.deps.Chat.Respond(ctx, chatReq)
		if chatErr != nil {
			return chatErr
		}
		reply = completion
		return nil
	})
	if rt.deps.Metrics != nil {
		rt.deps.Metrics.RecordChatRequest(rt.deps.Service, string(provider), err)
	}
	if err != nil {
		writeError(w, err)
		return
	}
	if rt.deps.Metrics != nil {
		rt.deps.Metrics.RecordTokenUsage(rt.deps.Service, "chat.respond", string(provider), reply.TokensUsed)
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"session_id":  req.SessionID,
		"reply":       reply.Content,
		"tokens_used": reply.TokensUsed,
	})
}
