package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	apperrors "github.com/claimlens/claimlens/internal/core/errors"
)

const (
	ollamaDefaultTimeout     = 120 * time.Second
	ollamaHealthCheckTimeout = 5 * time.Second
	ollamaTagsPath           = "/api/tags"
	ollamaChatPath           = "/api/chat"

	// Per-stage budgets. Local models are asked for one field at a time
	// because they follow the full line protocol unreliably.
	ollamaStatusMaxTokens = 20
	ollamaShortMaxTokens  = 150
	ollamaLongMaxTokens   = 400
)

var errOllamaUnexpectedStatus = errors.New("ollama unexpected status")

// OllamaProvider runs completions against a local Ollama server.
// Availability is probed once and cached.
type OllamaProvider struct {
	baseURL    string
	model      string
	httpClient *http.Client
	breaker    *breaker
	logger     *zerolog.Logger

	availableOnce sync.Once
	available     bool
}

// OllamaConfig holds configuration for the local backend.
type OllamaConfig struct {
	BaseURL string
	Model   string
	Timeout time.Duration
}

// NewOllamaProvider creates the local chat provider.
func NewOllamaProvider(cfg OllamaConfig, logger *zerolog.Logger) *OllamaProvider {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = ollamaDefaultTimeout
	}

	return &OllamaProvider{
		baseURL:    strings.TrimSuffix(cfg.BaseURL, "/"),
		model:      cfg.Model,
		httpClient: &http.Client{Timeout: timeout},
		breaker:    newBreaker(ProviderOllama, logger),
		logger:     logger,
	}
}

// Name returns the provider identifier.
func (p *OllamaProvider) Name() ProviderName {
	return ProviderOllama
}

// Priority returns the provider priority.
func (p *OllamaProvider) Priority() int {
	return PriorityLocal
}

// IsAvailable probes the tags endpoint once and caches the outcome.
func (p *OllamaProvider) IsAvailable() bool {
	p.availableOnce.Do(func() {
		if p.baseURL == "" {
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), ollamaHealthCheckTimeout)
		defer cancel()

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+ollamaTagsPath, nil)
		if err != nil {
			return
		}

		resp, err := p.httpClient.Do(req)
		if err != nil {
			if p.logger != nil {
				p.logger.Warn().Err(err).Msg("ollama server not reachable")
			}

			return
		}

		_ = resp.Body.Close()
		p.available = resp.StatusCode == http.StatusOK
	})

	return p.available
}

type ollamaChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ollamaChatRequest struct {
	Model    string              `json:"model"`
	Messages []ollamaChatMessage `json:"messages"`
	Stream   bool                `json:"stream"`
	Options  ollamaChatOptions   `json:"options"`
}

type ollamaChatOptions struct {
	NumPredict  int     `json:"num_predict"`
	Temperature float32 `json:"temperature"`
}

type ollamaChatResponse struct {
	Message ollamaChatMessage `json:"message"`
}

// Generate queries the local model in three stages (status, short reply,
// long reply) and assembles the structured verdict block from the pieces.
func (p *OllamaProvider) Generate(ctx context.Context, req GenerateRequest) (string, error) {
	if err := p.breaker.checkCircuit(); err != nil {
		return "", err
	}

	req = req.withDefaults()

	status, err := p.chat(ctx, req.System,
		req.Prompt+"\n\nReply with a single word: the STATUS value.",
		ollamaStatusMaxTokens, req.Temperature)
	if err != nil {
		return "", err
	}

	short, err := p.chat(ctx, req.System,
		req.Prompt+"\n\nIn one sentence, reply to the person who received this claim.",
		ollamaShortMaxTokens, req.Temperature)
	if err != nil {
		return "", err
	}

	long, err := p.chat(ctx, req.System,
		req.Prompt+"\n\nExplain the verdict in a short paragraph citing the evidence.",
		ollamaLongMaxTokens, req.Temperature)
	if err != nil {
		return "", err
	}

	var b strings.Builder

	b.WriteString("STATUS: ")
	b.WriteString(statusToken(status))
	b.WriteString("\nSHORT_REPLY: ")
	b.WriteString(singleLine(short))
	b.WriteString("\nLONG_REPLY: ")
	b.WriteString(strings.TrimSpace(long))
	b.WriteString("\n")

	return b.String(), nil
}

// chat runs one non-streaming call against the Ollama server.
func (p *OllamaProvider) chat(ctx context.Context, system, prompt string, maxTokens int, temperature float32) (string, error) {
	messages := make([]ollamaChatMessage, 0, 2)
	if system != "" {
		messages = append(messages, ollamaChatMessage{Role: "system", Content: system})
	}

	messages = append(messages, ollamaChatMessage{Role: "user", Content: prompt})

	payload, err := json.Marshal(ollamaChatRequest{
		Model:    p.model,
		Messages: messages,
		Stream:   false,
		Options: ollamaChatOptions{
			NumPredict:  maxTokens,
			Temperature: temperature,
		},
	})
	if err != nil {
		return "", fmt.Errorf("marshal ollama request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+ollamaChatPath, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("create ollama request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		p.breaker.recordFailure()

		return "", fmt.Errorf("ollama request: %w", err)
	}

	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		p.breaker.recordFailure()

		return "", fmt.Errorf("%w: %d", errOllamaUnexpectedStatus, resp.StatusCode)
	}

	var chatResp ollamaChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&chatResp); err != nil {
		p.breaker.recordFailure()

		return "", fmt.Errorf("decode ollama response: %w", err)
	}

	if strings.TrimSpace(chatResp.Message.Content) == "" {
		p.breaker.recordFailure()

		return "", apperrors.ErrEmptyResponse
	}

	p.breaker.recordSuccess()

	return strings.TrimSpace(chatResp.Message.Content), nil
}

var ollamaStatusWords = map[string]struct{}{
	"TRUE": {}, "FALSE": {}, "MISLEADING": {},
	"PARTIALLY_TRUE": {}, "UNVERIFIABLE": {}, "UNKNOWN": {},
}

// statusToken extracts the status word from a possibly chatty answer.
func statusToken(s string) string {
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return !('A' <= r && r <= 'Z' || 'a' <= r && r <= 'z' || r == '_')
	})

	for _, f := range fields {
		upper := strings.ToUpper(f)
		if _, ok := ollamaStatusWords[upper]; ok {
			return upper
		}
	}

	return "UNKNOWN"
}

func singleLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
