package backend

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"golang.org/x/time/rate"

	"github.com/Epistemic-Technology/invoice-audit/internal/logger"
)

// Limits configures request pacing and retries against the service.
type Limits struct {
	// RequestsPerSecond is the sustained request rate; zero disables pacing.
	RequestsPerSecond float64
	// Burst allows short bursts above the sustained rate
	Burst int

	MaxRetries     int
	BaseRetryDelay time.Duration
	MaxRetryDelay  time.Duration
}

// DefaultLimits is tuned for a single interactive user: selections come in
// one at a time, so pacing only matters for scripted clients.
func DefaultLimits() Limits {
	return Limits{
		RequestsPerSecond: 5,
		Burst:             10,
		MaxRetries:        3,
		BaseRetryDelay:    500 * time.Millisecond,
		MaxRetryDelay:     8 * time.Second,
	}
}

// Limiter paces calls and retries the ones the service throttles.
type Limiter struct {
	limiter *rate.Limiter
	limits  Limits
}

// NewLimiter creates a limiter from limits.
func NewLimiter(limits Limits) *Limiter {
	lim := rate.NewLimiter(rate.Inf, 0)
	if limits.RequestsPerSecond > 0 {
		burst := limits.Burst
		if burst < 1 {
			burst = 1
		}
		lim = rate.NewLimiter(rate.Limit(limits.RequestsPerSecond), burst)
	}
	return &Limiter{limiter: lim, limits: limits}
}

// Call runs fn under the limiter. A *ServiceError that is Retryable is
// retried with exponential backoff; every other error is returned as is.
func Call[T any](ctx context.Context, l *Limiter, log logger.Logger, fn func(context.Context) (T, error)) (T, error) {
	var zero T

	var lastErr error
	for attempt := 0; attempt <= l.limits.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := l.backoff(attempt)
			log.Info("Retry attempt %d/%d after %v delay", attempt, l.limits.MaxRetries, delay)

			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return zero, ctx.Err()
			}
		}

		if err := l.limiter.Wait(ctx); err != nil {
			return zero, fmt.Errorf("rate limiter wait failed: %w", err)
		}

		result, err := fn(ctx)
		if err == nil {
			if attempt > 0 {
				log.Info("Retry succeeded on attempt %d", attempt)
			}
			return result, nil
		}

		lastErr = err
		if !isRetryable(err) {
			return zero, err
		}
		log.Warn("Service throttled on attempt %d/%d: %v", attempt+1, l.limits.MaxRetries+1, err)
	}

	return zero, fmt.Errorf("max retries (%d) exceeded, last error: %w", l.limits.MaxRetries, lastErr)
}

func (l *Limiter) backoff(attempt int) time.Duration {
	delay := time.Duration(float64(l.limits.BaseRetryDelay) * math.Pow(2, float64(attempt-1)))
	if l.limits.MaxRetryDelay > 0 && delay > l.limits.MaxRetryDelay {
		delay = l.limits.MaxRetryDelay
	}
	return delay
}

func isRetryable(err error) bool {
	var se *ServiceError
	if errors.As(err, &se) {
		return se.Retryable()
	}
	return false
}
