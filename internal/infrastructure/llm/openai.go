package llm

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/avolkov/coaching-backend/internal/core/domain"
)

const (
	defaultOpenAIModel      = "gpt-4-turbo-preview"
	defaultOpenAIEmbedModel = "text-embedding-3-small"
)

// openAIAdapter speaks the chat-completions and embeddings APIs through the
// official-compatible SDK. OpenAI has no dedicated system channel in the
// request struct beyond the message list, so the system prompt is prepended
// as the leading message.
type openAIAdapter struct {
	client     *openai.Client
	model      string
	embedModel string
}

func newOpenAIAdapter(apiKey, model, embedModel, baseURL string, timeout time.Duration) *openAIAdapter {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = strings.TrimRight(baseURL, "/")
	}
	cfg.HTTPClient = &http.Client{Timeout: timeout}

	if model == "" {
		model = defaultOpenAIModel
	}
	if embedModel == "" {
		embedModel = defaultOpenAIEmbedModel
	}

	return &openAIAdapter{
		client:     openai.NewClientWithConfig(cfg),
		model:      model,
		embedModel: embedModel,
	}
}

func (a *openAIAdapter) generate(ctx context.Context, req domain.ChatRequest) (*domain.Completion, error) {
	messages := make([]openai.ChatCompletionMessage, 0, len(req.Messages)+1)
	if req.SystemPrompt != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: req.SystemPrompt,
		})
	}
	for _, turn := range req.Messages {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    string(turn.Role),
			Content: turn.Text,
		})
	}

	resp, err := a.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       a.model,
		Messages:    messages,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	})
	if err != nil {
		return nil, &domain.ProviderError{Provider: domain.ProviderOpenAI, Cause: err}
	}
	if len(resp.Choices) == 0 {
		return nil, &domain.ProviderError{
			Provider: domain.ProviderOpenAI,
			Cause:    fmt.Errorf("response has no choices"),
		}
	}

	return &domain.Completion{
		Content:    resp.Choices[0].Message.Content,
		TokensUsed: resp.Usage.TotalTokens,
	}, nil
}

func (a *openAIAdapter) embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	resp, err := a.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: texts,
		Model: openai.EmbeddingModel(a.embedModel),
	})
	if err != nil {
		return nil, &domain.ProviderError{Provider: domain.ProviderOpenAI, Cause: err}
	}

	vectors := make([][]float32, len(resp.Data))
	for i, item := range resp.Data {
		vectors[i] = item.Embedding
	}
	return vectors, nil
}
