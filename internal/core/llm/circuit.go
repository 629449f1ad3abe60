package llm

import (
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	apperrors "github.com/claimlens/claimlens/internal/core/errors"
	"github.com/claimlens/claimlens/internal/platform/observability"
)

const (
	circuitBreakerThreshold = 5
	circuitBreakerTimeout   = 1 * time.Minute
)

// breaker is the per-provider circuit breaker shared by remote backends.
type breaker struct {
	mu                  sync.Mutex
	name                ProviderName
	consecutiveFailures int
	circuitOpenUntil    time.Time
	logger              *zerolog.Logger
}

func newBreaker(name ProviderName, logger *zerolog.Logger) *breaker {
	return &breaker{name: name, logger: logger}
}

func (b *breaker) checkCircuit() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if time.Now().Before(b.circuitOpenUntil) {
		return fmt.Errorf("%w until %v", apperrors.ErrCircuitBreakerOpen, b.circuitOpenUntil)
	}

	return nil
}

func (b *breaker) recordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.consecutiveFailures = 0
	observability.AdjudicatorCircuitState.WithLabelValues(string(b.name)).Set(0)
}

func (b *breaker) recordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.consecutiveFailures++
	if b.consecutiveFailures >= circuitBreakerThreshold {
		b.circuitOpenUntil = time.Now().Add(circuitBreakerTimeout)
		observability.AdjudicatorCircuitState.WithLabelValues(string(b.name)).Set(1)

		if b.logger != nil {
			b.logger.Warn().
				Str("backend", string(b.name)).
				Int("consecutive_failures", b.consecutiveFailures).
				Time("open_until", b.circuitOpenUntil).
				Msg("adjudicator circuit breaker opened")
		}
	}
}
