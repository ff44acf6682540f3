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
	anthropicAPIVersion    = "2023-06-01"
	defaultAnthropicURL    = "https://api.anthropic.com"
	defaultAnthropicModel  = "claude-3-5-sonnet-20241022"
	anthropicMessagesRoute = "/v1/messages"
)

// anthropicAdapter speaks the messages API directly. Anthropic takes the
// system prompt as a top-level field, not as a message, and reports input
// and output tokens separately.
type anthropicAdapter struct {
	apiKey     string
	model      string
	baseURL    string
	httpClient *http.Client
}

func newAnthropicAdapter(apiKey, model, baseURL string, timeout time.Duration) *anthropicAdapter {
	if model == "" {
		model = defaultAnthropicModel
	}
	if baseURL == "" {
		baseURL = defaultAnthropicURL
	}
	return &anthropicAdapter{
		apiKey:     apiKey,
		model:      model,
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicRequest struct {
	Model       string             `json:"model"`
	MaxTokens   int                `json:"max_tokens"`
	Temperature float32            `json:"temperature"`
	System      string             `json:"system,omitempty"`
	Messages    []anthropicMessage `json:"messages"`
}

type anthropicResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	Usage struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

func (a *anthropicAdapter) generate(ctx context.Context, req domain.ChatRequest) (*domain.Completion, error) {
	messages := make([]anthropicMessage, 0, len(req.Messages))
	for _, turn := range req.Messages {
		messages = append(messages, anthropicMessage{Role: string(turn.Role), Content: turn.Text})
	}

	payload := anthropicRequest{
		Model:       a.model,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
		System:      req.SystemPrompt,
		Messages:    messages,
	}

	headers := map[string]string{
		"x-api-key":         a.apiKey,
		"anthropic-version": anthropicAPIVersion,
	}

	var resp anthropicResponse
	err := postJSON(ctx, a.httpClient, a.baseURL+anthropicMessagesRoute, headers, payload, &resp, "anthropic messages")
	if err != nil {
		return nil, &domain.ProviderError{Provider: domain.ProviderAnthropic, Cause: err}
	}
	if len(resp.Content) == 0 {
		return nil, &domain.ProviderError{
			Provider: domain.ProviderAnthropic,
			Cause:    fmt.Errorf("response has no content blocks"),
		}
	}

	var text strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}

	return &domain.Completion{
		Content:    text.String(),
		TokensUsed: resp.Usage.InputTokens + resp.Usage.OutputTokens,
	}, nil
}
