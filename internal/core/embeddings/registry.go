package embeddings

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/claimlens/claimlens/internal/platform/observability"
)

// Registry errors.
var (
	ErrNoProvidersAvailable = errors.New("no embedding providers available")
	ErrAllProvidersFailed   = errors.New("all embedding providers failed")
)

const logKeyProvider = "provider"

// Registry manages embedding providers with fallback support.
// The vector returned by GetEmbedding is always unit-norm.
type Registry struct {
	mu              sync.RWMutex
	providers       map[ProviderName]Provider
	order           []ProviderName // Priority order (highest first)
	circuitBreakers map[ProviderName]*CircuitBreaker
	logger          *zerolog.Logger
}

// NewRegistry creates a new provider registry.
func NewRegistry(logger *zerolog.Logger) *Registry {
	return &Registry{
		providers:       make(map[ProviderName]Provider),
		order:           make([]ProviderName, 0),
		circuitBreakers: make(map[ProviderName]*CircuitBreaker),
		logger:          logger,
	}
}

// Register adds a provider to the registry.
func (r *Registry) Register(p Provider, cfg CircuitBreakerConfig) {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := p.Name()
	r.providers[name] = p
	r.order = append(r.order, name)
	r.circuitBreakers[name] = NewCircuitBreaker(cfg, r.logger)

	sort.SliceStable(r.order, func(i, j int) bool {
		return r.providers[r.order[i]].Priority() > r.providers[r.order[j]].Priority()
	})

	r.logger.Info().
		Str(logKeyProvider, string(name)).
		Int("priority", p.Priority()).
		Int("dimensions", p.Dimensions()).
		Msg("registered embedding provider")
}

// GetEmbedding produces a unit-norm embedding, falling back across providers.
func (r *Registry) GetEmbedding(ctx context.Context, text string) ([]float32, error) {
	providers := r.activeProviders()
	if len(providers) == 0 {
		return nil, ErrNoProvidersAvailable
	}

	var lastErr error

	for _, p := range providers {
		cb := r.getCircuitBreaker(p.Name())
		if !cb.CanAttempt() {
			continue
		}

		start := time.Now()
		result, err := p.GetEmbedding(ctx, text)

		observability.EmbeddingLatency.Observe(time.Since(start).Seconds())

		if err != nil {
			cb.RecordFailure(p.Name())
			observability.EmbeddingRequests.WithLabelValues(string(p.Name()), "error").Inc()

			lastErr = err

			r.logger.Warn().
				Err(err).
				Str(logKeyProvider, string(p.Name())).
				Msg("embedding provider failed, trying fallback")

			continue
		}

		cb.RecordSuccess()
		observability.EmbeddingRequests.WithLabelValues(string(p.Name()), "ok").Inc()

		return result.Vector, nil
	}

	if lastErr != nil {
		return nil, errors.Join(ErrAllProvidersFailed, lastErr)
	}

	return nil, ErrNoProvidersAvailable
}

// GetEmbeddings produces unit-norm embeddings for a batch of texts.
func (r *Registry) GetEmbeddings(ctx context.Context, texts []string) ([][]float32, error) {
	providers := r.activeProviders()
	if len(providers) == 0 {
		return nil, ErrNoProvidersAvailable
	}

	var lastErr error

	for _, p := range providers {
		cb := r.getCircuitBreaker(p.Name())
		if !cb.CanAttempt() {
			continue
		}

		results, err := p.GetEmbeddings(ctx, texts)
		if err != nil {
			cb.RecordFailure(p.Name())

			lastErr = err

			continue
		}

		cb.RecordSuccess()

		vectors := make([][]float32, len(results))
		for i, res := range results {
			vectors[i] = res.Vector
		}

		return vectors, nil
	}

	if lastErr != nil {
		return nil, errors.Join(ErrAllProvidersFailed, lastErr)
	}

	return nil, ErrNoProvidersAvailable
}

// Dimensions returns the dimensionality of the highest priority provider.
func (r *Registry) Dimensions() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if len(r.order) == 0 {
		return DefaultDimensions
	}

	return r.providers[r.order[0]].Dimensions()
}

func (r *Registry) activeProviders() []Provider {
	r.mu.RLock()
	defer r.mu.RUnlock()

	active := make([]Provider, 0, len(r.providers))

	for _, name := range r.order {
		p := r.providers[name]
		if p.IsAvailable() {
			active = append(active, p)
		}
	}

	return active
}

func (r *Registry) getCircuitBreaker(name ProviderName) *CircuitBreaker {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.circuitBreakers[name]
}
