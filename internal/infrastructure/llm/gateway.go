// Package llm is the uniform gateway over the configured AI providers. Each
// provider sits behind one adapter; selection is explicit per request and a
// failure never falls back to a different provider. Retry policy lives above
// this layer because retrying with a different token budget can change the
// output structure.
package llm

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/time/rate"

	"github.com/avolkov/coaching-backend/internal/core/domain"
)

const defaultTimeout = 60 * time.Second

type generator interface {
	generate(ctx context.Context, req domain.ChatRequest) (*domain.Completion, error)
}

type Config struct {
	OpenAIKey        string
	OpenAIModel      string
	OpenAIEmbedModel string
	OpenAIBaseURL    string

	AnthropicKey     string
	AnthropicModel   string
	AnthropicBaseURL string

	DeepSeekKey     string
	DeepSeekModel   string
	DeepSeekBaseURL string

	// Timeout bounds every network call to a provider. Zero means 60s.
	Timeout time.Duration

	// RequestsPerMinute caps calls per provider. Zero disables the cap.
	RequestsPerMinute int
}

type Gateway struct {
	generators map[domain.Provider]generator
	limiters   map[domain.Provider]*rate.Limiter
	openAI     *openAIAdapter
}

// NewGateway registers one adapter per provider that has a credential.
// Requesting any other provider fails with ErrConfiguration before any
// network call.
func NewGateway(cfg Config) *Gateway {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	g := &Gateway{
		generators: make(map[domain.Provider]generator),
		limiters:   make(map[domain.Provider]*rate.Limiter),
	}

	if cfg.OpenAIKey != "" {
		g.openAI = newOpenAIAdapter(cfg.OpenAIKey, cfg.OpenAIModel, cfg.OpenAIEmbedModel, cfg.OpenAIBaseURL, timeout)
		g.generators[domain.ProviderOpenAI] = g.openAI
	}
	if cfg.AnthropicKey != "" {
		g.generators[domain.ProviderAnthropic] = newAnthropicAdapter(cfg.AnthropicKey, cfg.AnthropicModel, cfg.AnthropicBaseURL, timeout)
	}
	if cfg.DeepSeekKey != "" {
		g.generators[domain.ProviderDeepSeek] = newDeepSeekAdapter(cfg.DeepSeekKey, cfg.DeepSeekModel, cfg.DeepSeekBaseURL, timeout)
	}

	for provider := range g.generators {
		g.limiters[provider] = newLimiter(cfg.RequestsPerMinute)
	}

	return g
}

func newLimiter(requestsPerMinute int) *rate.Limiter {
	if requestsPerMinute <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Limit(float64(requestsPerMinute)/60.0), requestsPerMinute)
}

func (g *Gateway) Generate(ctx context.Context, req domain.ChatRequest) (*domain.Completion, error) {
	if len(req.Messages) == 0 {
		return nil, domain.WrapError(domain.ErrInvalidInput, "generate", fmt.Errorf("empty message history"))
	}

	gen, ok := g.generators[req.Provider]
	if !ok {
		return nil, domain.WrapError(
			domain.ErrConfiguration,
			"generate",
			fmt.Errorf("no credential configured for provider %q", req.Provider),
		)
	}

	if err := g.limiters[req.Provider].Wait(ctx); err != nil {
		return nil, &domain.ProviderError{Provider: req.Provider, Cause: err}
	}

	return gen.generate(ctx, req)
}

// Embed delegates to the OpenAI embeddings API, the only configured
// embedding source.
func (g *Gateway) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if g.openAI == nil {
		return nil, domain.WrapError(domain.ErrConfiguration, "embed", fmt.Errorf("no embedding provider configured"))
	}
	return g.openAI.embed(ctx, texts)
}

func (g *Gateway) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vectors, err := g.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vectors) == 0 {
		return nil, &domain.ProviderError{Provider: domain.ProviderOpenAI, Cause: fmt.Errorf("empty embedding result")}
	}
	return vectors[0], nil
}
