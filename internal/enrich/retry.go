package enrich

import (
	"context"
	"math"
	"math/rand/v2"
	"time"

	"go.uber.org/zap"
)

// retryPolicy controls retries of one enrichment call with exponential backoff and jitter.
type retryPolicy struct {
	// MaxAttempts is the total number of attempts including the first.
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	// ShouldRetry decides whether err is worth another attempt.
	ShouldRetry func(err error) bool
}

func (p retryPolicy) backoff(attempt int) time.Duration {
	delay := float64(p.InitialBackoff) * math.Pow(2, float64(attempt))
	if delay > float64(p.MaxBackoff) {
		delay = float64(p.MaxBackoff)
	}
	// ±25% jitter
	delay += (rand.Float64()*2 - 1) * delay * 0.25
	return time.Duration(max(delay, 0))
}

// retry runs fn until it succeeds, returns a non-retryable error, the attempts
// are exhausted, or ctx is done.
func retry[T any](ctx context.Context, p retryPolicy, op string, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	attempts := max(p.MaxAttempts, 1)

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		v, err := fn(ctx)
		if err == nil {
			return v, nil
		}
		lastErr = err

		if ctx.Err() != nil || p.ShouldRetry == nil || !p.ShouldRetry(err) {
			return zero, err
		}
		if attempt == attempts-1 {
			break
		}

		zap.L().Warn("enrich: retrying",
			zap.String("operation", op),
			zap.String("correlation_id", CorrelationID(ctx)),
			zap.Int("attempt", attempt+1),
			zap.Error(err),
		)

		timer := time.NewTimer(p.backoff(attempt))
		select {
		case <-ctx.Done():
			timer.Stop()
			return zero, lastErr
		case <-timer.C:
		}
	}
	return zero, lastErr
}
