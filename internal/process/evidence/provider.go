// Package evidence gathers supporting material for claims from web search
// providers and scores it by source authority.
package evidence

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	apperrors "github.com/claimlens/claimlens/internal/core/errors"
	"github.com/claimlens/claimlens/internal/platform/observability"
)

// ProviderName identifies a search provider.
type ProviderName string

// ProviderDuckDuckGo is the default web search provider.
const ProviderDuckDuckGo ProviderName = "duckduckgo"

var errProviderNotFound = errors.New("search provider not found")

// SearchResult is one raw result from a search provider.
type SearchResult struct {
	URL         string
	Title       string
	Snippet     string
	Domain      string
	PublishedAt time.Time
}

// Provider is a web search backend.
type Provider interface {
	Name() ProviderName
	Search(ctx context.Context, query string, maxResults int) ([]SearchResult, error)
	IsAvailable() bool
}

// ProviderRegistry tries providers in registration order, skipping ones
// whose circuit breaker is open.
type ProviderRegistry struct {
	mu        sync.RWMutex
	providers map[ProviderName]Provider
	order     []ProviderName

	circuitBreakers map[ProviderName]*circuitBreaker
}

// NewProviderRegistry creates an empty search provider registry.
func NewProviderRegistry() *ProviderRegistry {
	return &ProviderRegistry{
		providers:       make(map[ProviderName]Provider),
		order:           []ProviderName{},
		circuitBreakers: make(map[ProviderName]*circuitBreaker),
	}
}

// Register adds a provider at the end of the fallback order.
func (r *ProviderRegistry) Register(p Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := p.Name()
	r.providers[name] = p
	r.order = append(r.order, name)
	r.circuitBreakers[name] = newCircuitBreaker()
}

// Get returns a registered provider by name.
func (r *ProviderRegistry) Get(name ProviderName) (Provider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.providers[name]
	if !ok {
		return nil, errProviderNotFound
	}

	return p, nil
}

// SearchWithFallback runs the query against the first healthy provider.
func (r *ProviderRegistry) SearchWithFallback(ctx context.Context, query string, maxResults int) ([]SearchResult, ProviderName, error) {
	r.mu.RLock()
	providers := make([]ProviderName, len(r.order))
	copy(providers, r.order)
	r.mu.RUnlock()

	for _, name := range providers {
		provider, err := r.Get(name)
		if err != nil {
			continue
		}

		if !provider.IsAvailable() {
			continue
		}

		cb := r.getCircuitBreaker(name)
		if !cb.canAttempt() {
			continue
		}

		results, err := provider.Search(ctx, query, maxResults)
		if err != nil {
			cb.recordFailure()
			observability.SearchRequests.WithLabelValues(string(name), "error").Inc()

			continue
		}

		cb.recordSuccess()
		observability.SearchRequests.WithLabelValues(string(name), "ok").Inc()
		observability.SearchResults.WithLabelValues(string(name)).Observe(float64(len(results)))

		return results, name, nil
	}

	return nil, "", fmt.Errorf("%w: no healthy search providers", apperrors.ErrProviderUnavailable)
}

func (r *ProviderRegistry) getCircuitBreaker(name ProviderName) *circuitBreaker {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.circuitBreakers[name]
}

const (
	circuitBreakerThreshold  = 3
	circuitBreakerResetAfter = 5 * time.Minute
	halfOpenSuccessesToClose = 2
)

type circuitState int

const (
	circuitClosed circuitState = iota
	circuitOpen
	circuitHalfOpen
)

type circuitBreaker struct {
	mu           sync.Mutex
	failures     int
	lastFailure  time.Time
	state        circuitState
	successCount int
}

func newCircuitBreaker() *circuitBreaker {
	return &circuitBreaker{state: circuitClosed}
}

func (cb *circuitBreaker) canAttempt() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case circuitClosed:
		return true
	case circuitOpen:
		if time.Since(cb.lastFailure) > circuitBreakerResetAfter {
			cb.state = circuitHalfOpen
			cb.successCount = 0

			return true
		}

		return false
	case circuitHalfOpen:
		return true
	default:
		return false
	}
}

func (cb *circuitBreaker) recordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.failures = 0

	if cb.state == circuitHalfOpen {
		cb.successCount++
		if cb.successCount >= halfOpenSuccessesToClose {
			cb.state = circuitClosed
		}
	}
}

func (cb *circuitBreaker) recordFailure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.failures++
	cb.lastFailure = time.Now()

	if cb.failures >= circuitBreakerThreshold {
		cb.state = circuitOpen
	}
}
