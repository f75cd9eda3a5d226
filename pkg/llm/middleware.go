package llm

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/time/rate"

	"github.com/locallore/lore/internal/types"
)

// RetryConfig controls the retry decorators. Delay grows exponentially per
// attempt.
type RetryConfig struct {
	MaxRetries int
	BaseDelay  time.Duration
}

func (c *RetryConfig) applyDefaults() {
	if c.MaxRetries <= 0 {
		c.MaxRetries = 3
	}
	if c.BaseDelay <= 0 {
		c.BaseDelay = 500 * time.Millisecond
	}
}

func retryDelay(base time.Duration, attempt int) time.Duration {
	return base * time.Duration(1<<attempt)
}

func withRetries(ctx context.Context, config RetryConfig, fn func() error) error {
	var err error
	for attempt := 0; attempt <= config.MaxRetries; attempt++ {
		if err = fn(); err == nil {
			return nil
		}
		if attempt == config.MaxRetries {
			break
		}
		select {
		case <-time.After(retryDelay(config.BaseDelay, attempt)):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return fmt.Errorf("giving up after %d retries: %w", config.MaxRetries, err)
}

type retryEmbedder struct {
	inner  types.Embedder
	config RetryConfig
}

// NewRetryEmbedder wraps an embedder with exponential-backoff retries.
// Retry policy is a cross-cutting concern and lives here, outside the
// retriever.
func NewRetryEmbedder(inner types.Embedder, config RetryConfig) types.Embedder {
	config.applyDefaults()
	return &retryEmbedder{inner: inner, config: config}
}

func (r *retryEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	var vec []float32
	err := withRetries(ctx, r.config, func() error {
		var err error
		vec, err = r.inner.Embed(ctx, text)
		return err
	})
	return vec, err
}

func (r *retryEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	var vecs [][]float32
	err := withRetries(ctx, r.config, func() error {
		var err error
		vecs, err = r.inner.EmbedBatch(ctx, texts)
		return err
	})
	return vecs, err
}

type retryCompleter struct {
	inner  types.Completer
	config RetryConfig
}

// NewRetryCompleter wraps a completion provider with exponential-backoff
// retries.
func NewRetryCompleter(inner types.Completer, config RetryConfig) types.Completer {
	config.applyDefaults()
	return &retryCompleter{inner: inner, config: config}
}

func (r *retryCompleter) Answer(ctx context.Context, query, docContext string) (string, error) {
	var answer string
	err := withRetries(ctx, r.config, func() error {
		var err error
		answer, err = r.inner.Answer(ctx, query, docContext)
		return err
	})
	return answer, err
}

type rateLimitedEmbedder struct {
	inner   types.Embedder
	limiter *rate.Limiter
}

// NewRateLimitedEmbedder wraps an embedder so provider calls never exceed
// rps requests per second.
func NewRateLimitedEmbedder(inner types.Embedder, rps float64) types.Embedder {
	if rps <= 0 {
		rps = 2
	}
	return &rateLimitedEmbedder{
		inner:   inner,
		limiter: rate.NewLimiter(rate.Limit(rps), 1),
	}
}

func (r *rateLimitedEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	return r.inner.Embed(ctx, text)
}

func (r *rateLimitedEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	return r.inner.EmbedBatch(ctx, texts)
}
