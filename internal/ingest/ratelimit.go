package ingest

import (
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/claimlens/claimlens/internal/core/domain"
)

// SourceLimiter rate limits ingestion per source/chat key. Each key gets
// its own token bucket refilling once per configured interval, so one busy
// chat cannot starve the rest of its source.
type SourceLimiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	interval time.Duration
	burst    int
}

// NewSourceLimiter creates a limiter allowing one message per interval per
// key, with a small burst.
func NewSourceLimiter(interval time.Duration, burst int) *SourceLimiter {
	if burst <= 0 {
		burst = 1
	}

	return &SourceLimiter{
		limiters: make(map[string]*rate.Limiter),
		interval: interval,
		burst:    burst,
	}
}

// Allow reports whether a message under the given key may proceed right
// now. A zero interval disables limiting.
func (l *SourceLimiter) Allow(key string) bool {
	if l.interval <= 0 {
		return true
	}

	return l.limiterFor(key).Allow()
}

func (l *SourceLimiter) limiterFor(key string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	limiter, ok := l.limiters[key]
	if !ok {
		limiter = rate.NewLimiter(rate.Every(l.interval), l.burst)
		l.limiters[key] = limiter
	}

	return limiter
}

// limiterKey scopes rate limiting to the chat when one is known; messages
// without chat metadata share the source bucket.
func limiterKey(source domain.MessageSource, chatID string) string {
	if chatID == "" {
		return string(source)
	}

	return string(source) + ":" + chatID
}
