package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFallbackKnownFalsePattern(t *testing.T) {
	p := NewFallbackProvider()

	resp, err := p.Generate(context.Background(), GenerateRequest{
		Prompt: "Fact-check this claim: vaccines contain a microchip to track people",
	})
	require.NoError(t, err)

	assert.Contains(t, resp, "STATUS: FALSE")
	assert.Contains(t, resp, "CONFIDENCE: 0.7")
	assert.Contains(t, resp, "DO NOT FORWARD")
}

func TestFallbackKnownTruePattern(t *testing.T) {
	p := NewFallbackProvider()

	resp, err := p.Generate(context.Background(), GenerateRequest{
		Prompt: "Fact-check this claim: you should wash hands regularly",
	})
	require.NoError(t, err)

	assert.Contains(t, resp, "STATUS: TRUE")
}

func TestFallbackUnknown(t *testing.T) {
	p := NewFallbackProvider()

	resp, err := p.Generate(context.Background(), GenerateRequest{
		Prompt: "Fact-check this claim: the mayor opened a new bridge yesterday",
	})
	require.NoError(t, err)

	assert.Contains(t, resp, "STATUS: UNKNOWN")
	assert.Contains(t, resp, "CONFIDENCE: 0.3")
}

type failingLLM struct{}

func (failingLLM) Name() ProviderName { return "failing" }
func (failingLLM) IsAvailable() bool  { return true }
func (failingLLM) Priority() int      { return PriorityPrimary }

func (failingLLM) Generate(context.Context, GenerateRequest) (string, error) {
	return "", errors.New("backend down")
}

func TestRegistryFallsThroughToNextBackend(t *testing.T) {
	r := NewRegistry(nil)
	r.Register(NewMockProvider("STATUS: TRUE"))
	r.Register(failingLLM{})

	resp, name, err := r.Generate(context.Background(), GenerateRequest{Prompt: "check this"})
	require.NoError(t, err)

	assert.Equal(t, ProviderMock, name)
	assert.Equal(t, "STATUS: TRUE", resp)
}

func TestRegistryEmpty(t *testing.T) {
	r := NewRegistry(nil)

	_, _, err := r.Generate(context.Background(), GenerateRequest{Prompt: "check this"})
	assert.ErrorIs(t, err, ErrNoProvidersAvailable)
}

func TestRegistryPriorityOrder(t *testing.T) {
	r := NewRegistry(nil)

	low := NewMockProvider("from mock")
	r.Register(low)
	r.Register(NewFallbackProvider())

	// Fallback outranks mock.
	_, name, err := r.Generate(context.Background(), GenerateRequest{Prompt: "some claim"})
	require.NoError(t, err)
	assert.Equal(t, ProviderFallback, name)
	assert.Zero(t, low.Calls)
}

func TestRegistryPreferOverridesPriority(t *testing.T) {
	r := NewRegistry(nil)

	mock := NewMockProvider("from mock")
	r.Register(mock)
	r.Register(NewFallbackProvider())

	r.Prefer(ProviderMock)

	resp, name, err := r.Generate(context.Background(), GenerateRequest{Prompt: "some claim"})
	require.NoError(t, err)
	assert.Equal(t, ProviderMock, name)
	assert.Equal(t, "from mock", resp)
}

func TestOllamaGenerateThreeStages(t *testing.T) {
	stageReplies := []string{
		"The status is FALSE.",
		"This claim has been debunked by health authorities.",
		"Multiple agencies reviewed the claim and found no supporting evidence.",
	}

	var chatCalls int

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case ollamaTagsPath:
			w.WriteHeader(http.StatusOK)
		case ollamaChatPath:
			assert.Equal(t, http.MethodPost, r.Method)

			reply := stageReplies[chatCalls%len(stageReplies)]
			chatCalls++

			body, err := json.Marshal(ollamaChatResponse{Message: ollamaChatMessage{Role: "assistant", Content: reply}})
			require.NoError(t, err)
			_, _ = w.Write(body)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	p := NewOllamaProvider(OllamaConfig{BaseURL: srv.URL, Model: "llama2"}, nil)

	require.True(t, p.IsAvailable())

	resp, err := p.Generate(context.Background(), GenerateRequest{Prompt: "check"})
	require.NoError(t, err)

	assert.Equal(t, 3, chatCalls)
	assert.Contains(t, resp, "STATUS: FALSE")
	assert.Contains(t, resp, "SHORT_REPLY: This claim has been debunked by health authorities.")
	assert.Contains(t, resp, "LONG_REPLY: Multiple agencies reviewed the claim")
}

func TestOllamaStatusToken(t *testing.T) {
	assert.Equal(t, "FALSE", statusToken("The status is FALSE."))
	assert.Equal(t, "PARTIALLY_TRUE", statusToken("partially_true"))
	assert.Equal(t, "UNKNOWN", statusToken("I cannot tell"))
}

func TestOllamaUnavailableServer(t *testing.T) {
	p := NewOllamaProvider(OllamaConfig{BaseURL: "http://127.0.0.1:1", Model: "llama2"}, nil)
	assert.False(t, p.IsAvailable())
}

func TestBreakerOpensAfterThreshold(t *testing.T) {
	b := newBreaker(ProviderMock, nil)

	for i := 0; i < circuitBreakerThreshold; i++ {
		require.NoError(t, b.checkCircuit())
		b.recordFailure()
	}

	assert.Error(t, b.checkCircuit())

	b.recordSuccess()
	// Open window persists until timeout even after a success elsewhere.
	assert.Error(t, b.checkCircuit())
}
