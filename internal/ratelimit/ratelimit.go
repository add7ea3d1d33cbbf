// Package ratelimit provides a keyed token-bucket rate limiter.
// The AI layer uses one limiter per credential so rotating between
// Gemini API keys does not share a single budget.
package ratelimit

import (
	"context"
	"sync"

	"golang.org/x/time/rate"
)

// KeyedLimiter manages independent rate limiters per key.
type KeyedLimiter struct {
	mu       sync.RWMutex
	limiters map[string]*rate.Limiter
	limit    rate.Limit
	burst    int
}

// New creates a keyed limiter. rps is the sustained rate per key,
// burst the number of tokens available immediately.
func New(rps float64, burst int) *KeyedLimiter {
	return &KeyedLimiter{
		limiters: make(map[string]*rate.Limiter),
		limit:    rate.Limit(rps),
		burst:    burst,
	}
}

// Allow reports whether a request for key may proceed right now.
func (kl *KeyedLimiter) Allow(key string) bool {
	return kl.getLimiter(key).Allow()
}

// Wait blocks until a request for key is allowed or ctx is canceled.
// Outbound AI and TTS calls use this to pace themselves.
func (kl *KeyedLimiter) Wait(ctx context.Context, key string) error {
	return kl.getLimiter(key).Wait(ctx)
}

func (kl *KeyedLimiter) getLimiter(key string) *rate.Limiter {
	kl.mu.RLock()
	limiter, exists := kl.limiters[key]
	kl.mu.RUnlock()
	if exists {
		return limiter
	}

	kl.mu.Lock()
	defer kl.mu.Unlock()
	if limiter, exists = kl.limiters[key]; exists {
		return limiter
	}
	limiter = rate.NewLimiter(kl.limit, kl.burst)
	kl.limiters[key] = limiter
	return limiter
}
