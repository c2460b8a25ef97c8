package embedding

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lexvault/lexvault/internal/gemini"
	"github.com/lexvault/lexvault/internal/observability"
)

type fakeEmbedder struct {
	calls   int
	results []error
	vector  []float32
}

func (f *fakeEmbedder) EmbedText(ctx context.Context, text string) ([]float32, error) {
	err := f.results[f.calls]
	f.calls++
	if err != nil {
		return nil, err
	}
	return f.vector, nil
}

func transientErr() error {
	return &gemini.ProviderError{StatusCode: http.StatusTooManyRequests, Message: "rate limited", Transient: true}
}

func terminalErr() error {
	return &gemini.ProviderError{StatusCode: http.StatusBadRequest, Message: "bad request", Transient: false}
}

func fastPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 3, InitialDelay: time.Millisecond, Multiplier: 2.0}
}

func TestEmbedTextSucceedsFirstTry(t *testing.T) {
	inner := &fakeEmbedder{results: []error{nil}, vector: []float32{0.1, 0.2}}
	r := NewRetryingEmbedder(inner, fastPolicy(), observability.NewNoopLogger())

	v, err := r.EmbedText(context.Background(), "text")
	require.NoError(t, err)
	assert.Equal(t, []float32{0.1, 0.2}, v)
	assert.Equal(t, 1, inner.calls)
}

func TestEmbedTextRetriesTransientFailures(t *testing.T) {
	inner := &fakeEmbedder{
		results: []error{transientErr(), transientErr(), nil},
		vector:  []float32{0.5},
	}
	r := NewRetryingEmbedder(inner, fastPolicy(), observability.NewNoopLogger())

	v, err := r.EmbedText(context.Background(), "text")
	require.NoError(t, err)
	assert.Equal(t, []float32{0.5}, v)
	assert.Equal(t, 3, inner.calls)
}

func TestEmbedTextExhaustsAttempts(t *testing.T) {
	inner := &fakeEmbedder{
		results: []error{transientErr(), transientErr(), transientErr()},
	}
	r := NewRetryingEmbedder(inner, fastPolicy(), observability.NewNoopLogger())

	_, err := r.EmbedText(context.Background(), "text")
	require.Error(t, err)
	assert.Equal(t, 3, inner.calls)

	var provErr *gemini.ProviderError
	assert.True(t, errors.As(err, &provErr))
}

func TestEmbedTextDoesNotRetryTerminalErrors(t *testing.T) {
	inner := &fakeEmbedder{results: []error{terminalErr()}}
	r := NewRetryingEmbedder(inner, fastPolicy(), observability.NewNoopLogger())

	_, err := r.EmbedText(context.Background(), "text")
	require.Error(t, err)
	assert.Equal(t, 1, inner.calls)
}

func TestEmbedTextStopsOnCancelledContext(t *testing.T) {
	inner := &fakeEmbedder{
		results: []error{transientErr(), transientErr(), transientErr()},
	}
	r := NewRetryingEmbedder(inner, RetryPolicy{
		MaxAttempts:  3,
		InitialDelay: 5 * time.Second,
		Multiplier:   2.0,
	}, observability.NewNoopLogger())

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := r.EmbedText(ctx, "text")
	require.Error(t, err)
	assert.Less(t, time.Since(start), time.Second)
	assert.Equal(t, 1, inner.calls)
}

func TestNewRetryingEmbedderDefaults(t *testing.T) {
	r := NewRetryingEmbedder(&fakeEmbedder{}, RetryPolicy{}, observability.NewNoopLogger())

	assert.Equal(t, 3, r.policy.MaxAttempts)
	assert.Equal(t, time.Second, r.policy.InitialDelay)
	assert.Equal(t, 2.0, r.policy.Multiplier)
}
