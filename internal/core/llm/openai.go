package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"github.com/sashabaranov/go-openai"
	"golang.org/x/time/rate"

	apperrors "github.com/claimlens/claimlens/internal/core/errors"
)

const (
	openaiRateLimiterRPS   = 1
	openaiRateLimiterBurst = 5
)

// OpenAIProvider calls any OpenAI-compatible chat completion API. Pointing
// BaseURL at OpenRouter gives access to hosted DeepSeek-class models with
// the same client.
type OpenAIProvider struct {
	client  *openai.Client
	model   string
	limiter *rate.Limiter
	breaker *breaker
	apiKey  string
	logger  *zerolog.Logger
}

// OpenAIConfig holds configuration for the hosted adjudicator backend.
type OpenAIConfig struct {
	APIKey  string
	Model   string
	BaseURL string
}

// NewOpenAIProvider creates the hosted chat-completion provider.
func NewOpenAIProvider(cfg OpenAIConfig, logger *zerolog.Logger) *OpenAIProvider {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = strings.TrimSuffix(cfg.BaseURL, "/")
	}

	return &OpenAIProvider{
		client:  openai.NewClientWithConfig(clientCfg),
		model:   cfg.Model,
		limiter: rate.NewLimiter(rate.Limit(openaiRateLimiterRPS), openaiRateLimiterBurst),
		breaker: newBreaker(ProviderOpenAI, logger),
		apiKey:  cfg.APIKey,
		logger:  logger,
	}
}

// Name returns the provider identifier.
func (p *OpenAIProvider) Name() ProviderName {
	return ProviderOpenAI
}

// IsAvailable returns true if an API key is configured.
func (p *OpenAIProvider) IsAvailable() bool {
	return p.apiKey != ""
}

// Priority returns the provider priority.
func (p *OpenAIProvider) Priority() int {
	return PriorityPrimary
}

// Generate runs a chat completion for the request.
func (p *OpenAIProvider) Generate(ctx context.Context, req GenerateRequest) (string, error) {
	if err := p.breaker.checkCircuit(); err != nil {
		return "", err
	}

	if err := p.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("rate limiter: %w", err)
	}

	req = req.withDefaults()

	messages := make([]openai.ChatCompletionMessage, 0, 2)
	if req.System != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: req.System,
		})
	}

	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: req.Prompt,
	})

	resp, err := p.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       p.model,
		Messages:    messages,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
	})
	if err != nil {
		p.breaker.recordFailure()

		return "", fmt.Errorf("chat completion: %w", err)
	}

	if len(resp.Choices) == 0 {
		p.breaker.recordFailure()

		return "", apperrors.ErrEmptyResponse
	}

	p.breaker.recordSuccess()

	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}
