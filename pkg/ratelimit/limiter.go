package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Limiter defines the interface for rate limiting
type Limiter interface {
	// Allow checks if a request is allowed under the current rate limit
	Allow() bool
	// Wait blocks until the rate limit allows another request or ctx is done
	Wait(ctx context.Context) error
	// Reset restores the full burst
	Reset()
}

// TokenBucket is a Limiter backed by golang.org/x/time/rate
type TokenBucket struct {
	mu      sync.Mutex
	limiter *rate.Limiter
	limit   rate.Limit
	burst   int
}

// NewTokenBucket creates a limiter refilling at r tokens per second with the given burst
func NewTokenBucket(r rate.Limit, burst int) *TokenBucket {
	return &TokenBucket{
		limiter: rate.NewLimiter(r, burst),
		limit:   r,
		burst:   burst,
	}
}

// PerMinute creates a limiter allowing n requests per minute, bursting up to burst
func PerMinute(n, burst int) *TokenBucket {
	if burst <= 0 {
		burst = 1
	}
	return NewTokenBucket(rate.Every(time.Minute/time.Duration(n)), burst)
}

// Unlimited creates a limiter that never blocks
func Unlimited() *TokenBucket {
	return NewTokenBucket(rate.Inf, 0)
}

func (tb *TokenBucket) current() *rate.Limiter {
	tb.mu.Lock()
	defer tb.mu.Unlock()
	return tb.limiter
}

func (tb *TokenBucket) Allow() bool {
	return tb.current().Allow()
}

func (tb *TokenBucket) Wait(ctx context.Context) error {
	return tb.current().Wait(ctx)
}

// Reserve reports how long the caller would have to wait for a token
// without consuming one
func (tb *TokenBucket) Reserve() time.Duration {
	r := tb.current().Reserve()
	defer r.Cancel()
	return r.Delay()
}

func (tb *TokenBucket) Reset() {
	tb.mu.Lock()
	defer tb.mu.Unlock()
	tb.limiter = rate.NewLimiter(tb.limit, tb.burst)
}

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// KeyedLimiter keeps one token bucket per key, e.g. per client IP.
// Idle keys are dropped by Cleanup.
type KeyedLimiter struct {
	mu       sync.Mutex
	visitors map[string]*visitor
	limit    rate.Limit
	burst    int
	now      func() time.Time
}

// NewKeyedLimiter creates a per-key limiter allowing r events per second
func NewKeyedLimiter(r rate.Limit, burst int) *KeyedLimiter {
	return &KeyedLimiter{
		visitors: make(map[string]*visitor),
		limit:    r,
		burst:    burst,
		now:      time.Now,
	}
}

func (kl *KeyedLimiter) get(key string) *rate.Limiter {
	kl.mu.Lock()
	defer kl.mu.Unlock()

	v, ok := kl.visitors[key]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(kl.limit, kl.burst)}
		kl.visitors[key] = v
	}
	v.lastSeen = kl.now()
	return v.limiter
}

// Allow consumes a token for key
func (kl *KeyedLimiter) Allow(key string) bool {
	return kl.get(key).Allow()
}

// Cleanup removes keys not seen within idle and returns how many were removed
func (kl *KeyedLimiter) Cleanup(idle time.Duration) int {
	kl.mu.Lock()
	defer kl.mu.Unlock()

	cutoff := kl.now().Add(-idle)
	removed := 0
	for key, v := range kl.visitors {
		if v.lastSeen.Before(cutoff) {
			delete(kl.visitors, key)
			removed++
		}
	}
	return removed
}

// Len returns the number of tracked keys
func (kl *KeyedLimiter) Len() int {
	kl.mu.Lock()
	defer kl.mu.Unlock()
	return len(kl.visitors)
}

// RunCleanup drops idle keys every interval until ctx is done
func (kl *KeyedLimiter) RunCleanup(ctx context.Context, interval, idle time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			kl.Cleanup(idle)
		}
	}
}
