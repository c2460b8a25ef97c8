// Package embedding provides the retry layer around the embedding provider.
package embedding

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/lexvault/lexvault/internal/gemini"
	"github.com/lexvault/lexvault/internal/observability"
)

// Embedder produces a fixed-length vector for a text span
type Embedder interface {
	EmbedText(ctx context.Context, text string) ([]float32, error)
}

// RetryPolicy controls retries of transient provider failures. The delay
// doubles after each attempt: with the defaults the schedule is 1s, 2s.
type RetryPolicy struct {
	MaxAttempts  int
	InitialDelay time.Duration
	Multiplier   float64
}

// DefaultRetryPolicy returns the standard policy: 3 attempts total, 1s
// initial delay, doubling.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:  3,
		InitialDelay: time.Second,
		Multiplier:   2.0,
	}
}

// RetryingEmbedder wraps an Embedder with the retry policy. Terminal provider
// errors and context cancellation are surfaced immediately; only transient
// failures are retried.
type RetryingEmbedder struct {
	inner  Embedder
	policy RetryPolicy
	logger observability.Logger
}

// NewRetryingEmbedder creates the retry wrapper. Zero-value policy fields
// fall back to the defaults.
func NewRetryingEmbedder(inner Embedder, policy RetryPolicy, logger observability.Logger) *RetryingEmbedder {
	def := DefaultRetryPolicy()
	if policy.MaxAttempts <= 0 {
		policy.MaxAttempts = def.MaxAttempts
	}
	if policy.InitialDelay <= 0 {
		policy.InitialDelay = def.InitialDelay
	}
	if policy.Multiplier <= 1 {
		policy.Multiplier = def.Multiplier
	}
	return &RetryingEmbedder{
		inner:  inner,
		policy: policy,
		logger: logger.WithPrefix("embedding"),
	}
}

// EmbedText embeds text, retrying transient failures per the policy
func (r *RetryingEmbedder) EmbedText(ctx context.Context, text string) ([]float32, error) {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = r.policy.InitialDelay
	bo.Multiplier = r.policy.Multiplier
	bo.RandomizationFactor = 0 // keep the doubling schedule exact
	bo.MaxInterval = time.Minute
	bo.MaxElapsedTime = 0

	attempts := 0
	var vector []float32

	operation := func() error {
		attempts++
		v, err := r.inner.EmbedText(ctx, text)
		if err != nil {
			if !gemini.IsTransient(err) {
				return backoff.Permanent(err)
			}
			r.logger.Warn("Transient embedding failure", map[string]interface{}{
				"attempt": attempts,
				"error":   err.Error(),
			})
			return err
		}
		vector = v
		return nil
	}

	wrapped := backoff.WithContext(backoff.WithMaxRetries(bo, uint64(r.policy.MaxAttempts-1)), ctx)
	if err := backoff.Retry(operation, wrapped); err != nil {
		return nil, err
	}
	return vector, nil
}
