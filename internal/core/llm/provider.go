// Package llm adjudicates claims against evidence using chat-completion
// backends with fallback: a hosted OpenAI-compatible API first, a local
// Ollama server next, and a rule-based responder when nothing else is up.
package llm

import "context"

// ProviderName identifies an adjudicator backend.
type ProviderName string

// Provider name constants.
const (
	ProviderOpenAI   ProviderName = "openai"
	ProviderOllama   ProviderName = "ollama"
	ProviderFallback ProviderName = "fallback"
	ProviderMock     ProviderName = "mock"
)

// Priority constants for provider ordering.
const (
	PriorityPrimary  = 100 // Hosted API
	PriorityLocal    = 50  // Local Ollama server
	PriorityFallback = 1   // Rule-based, always available
	PriorityMock     = 0
)

// Generation defaults shared across backends.
const (
	DefaultMaxTokens   = 512
	DefaultTemperature = 0.3

	// Verdict generation needs room for the structured reply blocks.
	VerdictMaxTokens = 2000
)

// GenerateRequest is one text generation call.
type GenerateRequest struct {
	Prompt      string
	System      string
	MaxTokens   int
	Temperature float32
}

func (r GenerateRequest) withDefaults() GenerateRequest {
	if r.MaxTokens <= 0 {
		r.MaxTokens = DefaultMaxTokens
	}

	if r.Temperature <= 0 {
		r.Temperature = DefaultTemperature
	}

	return r
}

// Provider defines the interface for adjudicator backends.
type Provider interface {
	// Name returns the provider identifier.
	Name() ProviderName

	// IsAvailable returns true if the provider is configured and reachable.
	IsAvailable() bool

	// Priority returns the provider priority (higher = preferred).
	Priority() int

	// Generate produces a completion for the request.
	Generate(ctx context.Context, req GenerateRequest) (string, error)
}
