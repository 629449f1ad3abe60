package llm

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
	ErrNoProvidersAvailable = errors.New("no adjudicator providers available")
	ErrAllProvidersFailed   = errors.New("all adjudicator providers failed")
)

// Registry holds adjudicator backends in priority order and falls through
// on failure. With the rule-based responder registered, Generate only
// errors when every backend including the fallback misbehaves.
type Registry struct {
	mu        sync.RWMutex
	providers []Provider
	logger    *zerolog.Logger
}

// NewRegistry creates an empty adjudicator registry.
func NewRegistry(logger *zerolog.Logger) *Registry {
	return &Registry{logger: logger}
}

// Register adds a provider, keeping the list sorted by priority descending.
func (r *Registry) Register(p Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.providers = append(r.providers, p)
	sort.SliceStable(r.providers, func(i, j int) bool {
		return r.providers[i].Priority() > r.providers[j].Priority()
	})

	if r.logger != nil {
		r.logger.Info().
			Str("backend", string(p.Name())).
			Int("priority", p.Priority()).
			Msg("registered adjudicator backend")
	}
}

// Prefer moves the named backend ahead of the rest, overriding priority
// order. Unknown names leave the order unchanged.
func (r *Registry) Prefer(name ProviderName) {
	r.mu.Lock()
	defer r.mu.Unlock()

	sort.SliceStable(r.providers, func(i, j int) bool {
		return r.providers[i].Name() == name && r.providers[j].Name() != name
	})
}

// Generate runs the request against the highest-priority available backend,
// falling through on error.
func (r *Registry) Generate(ctx context.Context, req GenerateRequest) (string, ProviderName, error) {
	providers := r.snapshot()
	if len(providers) == 0 {
		return "", "", ErrNoProvidersAvailable
	}

	var (
		lastErr  error
		lastName ProviderName
	)

	for _, p := range providers {
		if !p.IsAvailable() {
			continue
		}

		start := time.Now()
		response, err := p.Generate(ctx, req)

		observability.AdjudicatorLatency.WithLabelValues(string(p.Name())).Observe(time.Since(start).Seconds())

		if err != nil {
			observability.AdjudicatorRequests.WithLabelValues(string(p.Name()), "error").Inc()

			if lastName != "" {
				observability.AdjudicatorFallbacks.WithLabelValues(string(lastName), string(p.Name())).Inc()
			}

			lastErr = err
			lastName = p.Name()

			if r.logger != nil {
				r.logger.Warn().
					Err(err).
					Str("backend", string(p.Name())).
					Msg("adjudicator backend failed, trying fallback")
			}

			continue
		}

		observability.AdjudicatorRequests.WithLabelValues(string(p.Name()), "ok").Inc()

		if lastName != "" {
			observability.AdjudicatorFallbacks.WithLabelValues(string(lastName), string(p.Name())).Inc()
		}

		return response, p.Name(), nil
	}

	if lastErr != nil {
		return "", "", errors.Join(ErrAllProvidersFailed, lastErr)
	}

	return "", "", ErrNoProvidersAvailable
}

func (r *Registry) snapshot() []Provider {
	r.mu.RLock()
	defer r.mu.RUnlock()

	providers := make([]Provider, len(r.providers))
	copy(providers, r.providers)

	return providers
}
