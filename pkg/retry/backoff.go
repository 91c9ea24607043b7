package retry

import (
	"context"
	"math"
	"math/rand"
	"time"

	errs "igfeed/pkg/errors"
)

// BackoffStrategy defines the interface for different backoff strategies
type BackoffStrategy interface {
	// NextDelay returns the delay before the attempt following attempt
	NextDelay(attempt int) time.Duration
}

// ErrorAwareBackoff picks a delay based on the failure that triggered the retry
type ErrorAwareBackoff interface {
	BackoffStrategy
	DelayFor(attempt int, err error) time.Duration
}

// ExponentialBackoff implements exponential backoff with jitter
type ExponentialBackoff struct {
	BaseDelay  time.Duration
	MaxDelay   time.Duration
	Multiplier float64
	// JitterFactor adds randomness to avoid thundering herd (0.0 to 1.0)
	JitterFactor float64
}

// DefaultExponentialBackoff returns a backoff with sensible defaults
func DefaultExponentialBackoff() *ExponentialBackoff {
	return &ExponentialBackoff{
		BaseDelay:    1 * time.Second,
		MaxDelay:     30 * time.Second,
		Multiplier:   2.0,
		JitterFactor: 0.1,
	}
}

// NextDelay calculates the next delay with exponential backoff and jitter
func (eb *ExponentialBackoff) NextDelay(attempt int) time.Duration {
	if attempt <= 0 {
		return 0
	}

	delay := float64(eb.BaseDelay) * math.Pow(eb.Multiplier, float64(attempt-1))
	if delay > float64(eb.MaxDelay) {
		delay = float64(eb.MaxDelay)
	}

	if eb.JitterFactor > 0 {
		jitter := delay * eb.JitterFactor
		delay += (rand.Float64() * 2 * jitter) - jitter
	}
	if delay < 0 {
		delay = 0
	}

	return time.Duration(delay)
}

// ConstantBackoff implements constant delay backoff
type ConstantBackoff struct {
	Delay time.Duration
}

// NextDelay returns a constant delay
func (cb *ConstantBackoff) NextDelay(attempt int) time.Duration {
	if attempt <= 0 {
		return 0
	}
	return cb.Delay
}

// KindBackoff keeps one strategy per retryable error kind.
// Rate limits back off far longer than transient network failures.
type KindBackoff struct {
	Network     BackoffStrategy
	RateLimit   BackoffStrategy
	ServerError BackoffStrategy
	Default     BackoffStrategy
}

// NewKindBackoff creates a kind-aware backoff with upstream-friendly delays
func NewKindBackoff() *KindBackoff {
	return NewKindBackoffFrom(time.Second)
}

// NewKindBackoffFrom scales every strategy from a single base delay
func NewKindBackoffFrom(base time.Duration) *KindBackoff {
	return &KindBackoff{
		Network: &ExponentialBackoff{
			BaseDelay:    base,
			MaxDelay:     30 * base,
			Multiplier:   2.0,
			JitterFactor: 0.2,
		},
		RateLimit: &ExponentialBackoff{
			BaseDelay:    30 * base,
			MaxDelay:     300 * base,
			Multiplier:   1.5,
			JitterFactor: 0.3,
		},
		ServerError: &ExponentialBackoff{
			BaseDelay:    5 * base,
			MaxDelay:     60 * base,
			Multiplier:   2.0,
			JitterFactor: 0.1,
		},
		Default: &ExponentialBackoff{
			BaseDelay:    base,
			MaxDelay:     30 * base,
			Multiplier:   2.0,
			JitterFactor: 0.1,
		},
	}
}

// NextDelay uses the default strategy
func (kb *KindBackoff) NextDelay(attempt int) time.Duration {
	return kb.Default.NextDelay(attempt)
}

// DelayFor selects the strategy matching the error kind
func (kb *KindBackoff) DelayFor(attempt int, err error) time.Duration {
	return kb.ForKind(errs.KindOf(err)).NextDelay(attempt)
}

// ForKind returns the strategy used for kind
func (kb *KindBackoff) ForKind(kind errs.Kind) BackoffStrategy {
	switch kind {
	case errs.KindNetwork:
		return kb.Network
	case errs.KindRateLimit:
		return kb.RateLimit
	case errs.KindServerError:
		return kb.ServerError
	default:
		return kb.Default
	}
}

// Wait waits for the specified duration or until context is cancelled
func Wait(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
