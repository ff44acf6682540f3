package llm

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/avolkov/coaching-backend/internal/core/domain"
)

const (
	defaultDeepSeekURL   = "https://api.deepseek.com"
	defaultDeepSeekModel = "deepseek-chat"
	deepSeekChatRoute    = "/v1/chat/completions"
)

// deepSeekAdapter speaks the OpenAI-compatible chat-completions dialect.
// Like OpenAI, the system prompt travels as the leading message.
type deepSeekAdapter struct {
	apiKey     string
	model      string
	baseURL    string
	httpClient *http.Client
}

func newDeepSeekAdapter(apiKey, model, baseURL string, timeout time.Duration) *deepSeekAdapter {
	if model == "" {
		model = defaultDeepSeekModel
	}
	if baseURL == "" {
		baseURL = defaultDeepSeekURL
	}
	return &deepSeekAdapter{
		apiKey:     apiKey,
		model:      model,
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

type chatCompletionMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatCompletionRequest struct {
	Model       string                  `json:"model"`
	Messages    []chatCompletionMessage `json:"messages"`
	Temperature float32                 `json:"temperature"`
	MaxTokens   int                     `json:"max_tokens"`
}

type chatCompletionResponse struct {
	Choices []struct {
		Message chatCompletionMessage `json:"message"`
	} `json:"choices"`
	Usage struct {
		TotalTokens int `json:"total_tokens"`
	} `json:"usage"`
}

func (a *deepSeekAdapter) generate(ctx context.Context, req domain.ChatRequest) (*domain.Completion, error) {
	messages := make([]chatCompletionMessage, 0, len(req.Messages)+1)
	if req.SystemPrompt != "" {
		messages = append(messages, chatCompletionMessage{Role: string(domain.RoleSystem), Content: req.SystemPrompt})
	}
	for _, turn := range req.Messages {
		messages = append(messages, chatCompletionMessage{Role: string(turn.Role), Content: turn.Text})
	}

	payload := chatCompletionRequest{
		Model:       a.model,
		Messages:    messages,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	}

	headers := map[string]string{"Authorization": "Bearer " + a.apiKey}

	var resp chatCompletionResponse
	err := postJSON(ctx, a.httpClient, a.baseURL+deepSeekChatRoute, headers, payload, &resp, "deepseek chat")
	if err != nil {
		return nil, &domain.ProviderError{Provider: domain.ProviderDeepSeek, Cause: err}
	}
	if len(resp.Choices) == 0 {
		return nil, &domain.ProviderError{
			Provider: domain.ProviderDeepSeek,
			Cause:    fmt.Errorf("response has no choices"),
		}
	}

	return &domain.Completion{
		Content:    resp.Choices[0].Message.Content,
		TokensUsed: resp.Usage.TotalTokens,
	}, nil
}
