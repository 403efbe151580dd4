// Package retrying decorates an embedding service with bounded retries
// and proactive rate limiting. Embedding backends are the only remote
// dependency in the indexing path, so transient failures are absorbed
// here instead of in every caller.
package retrying

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"golang.org/x/time/rate"

	"github.com/parchment-labs/recall/internal/core/domain"
	"github.com/parchment-labs/recall/internal/core/ports/driven"
	"github.com/parchment-labs/recall/internal/logger"
)

// Ensure EmbeddingService implements the interface.
var _ driven.EmbeddingService = (*EmbeddingService)(nil)

// Default configuration values.
const (
	DefaultMaxAttempts    = 3
	DefaultInitialBackoff = 500 * time.Millisecond
	DefaultMaxBackoff     = 8 * time.Second

	// DefaultRequestsPerSecond throttles outbound embedding calls to
	// stay friendly with local inference servers.
	DefaultRequestsPerSecond = 10
)

// Config holds configuration for the retrying decorator.
type Config struct {
	// MaxAttempts is the total number of attempts per call (default: 3).
	MaxAttempts int

	// InitialBackoff is the delay before the first retry (default: 500ms).
	// Each subsequent retry doubles it, up to MaxBackoff.
	InitialBackoff time.Duration

	// MaxBackoff caps the delay between retries (default: 8s).
	MaxBackoff time.Duration

	// RequestsPerSecond is the proactive throttle rate (default: 10).
	// Zero or negative disables throttling.
	RequestsPerSecond float64
}

// EmbeddingService wraps another embedding service with retries and
// a token-bucket throttle.
type EmbeddingService struct {
	inner          driven.EmbeddingService
	bucket         *rate.Limiter
	maxAttempts    int
	initialBackoff time.Duration
	maxBackoff     time.Duration
}

// Wrap decorates inner with the retry and throttling policy in cfg.
func Wrap(inner driven.EmbeddingService, cfg Config) *EmbeddingService {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultMaxAttempts
	}
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = DefaultInitialBackoff
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = DefaultMaxBackoff
	}

	var bucket *rate.Limiter
	if cfg.RequestsPerSecond > 0 {
		bucket = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1)
	}

	return &EmbeddingService{
		inner:          inner,
		bucket:         bucket,
		maxAttempts:    cfg.MaxAttempts,
		initialBackoff: cfg.InitialBackoff,
		maxBackoff:     cfg.MaxBackoff,
	}
}

// Embed generates an embedding, retrying transient failures.
func (s *EmbeddingService) Embed(ctx context.Context, text string) ([]float32, error) {
	var result []float32
	err := s.do(ctx, func() error {
		var err error
		result, err = s.inner.Embed(ctx, text)
		return err
	})
	return result, err
}

// EmbedBatch generates embeddings for multiple texts, retrying the
// whole batch on transient failures.
func (s *EmbeddingService) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	var result [][]float32
	err := s.do(ctx, func() error {
		var err error
		result, err = s.inner.EmbedBatch(ctx, texts)
		return err
	})
	return result, err
}

// do runs fn with throttling, exponential backoff and jitter. When every
// attempt fails, the last error is wrapped in ErrEmbeddingUnavailable so
// callers can degrade gracefully.
func (s *EmbeddingService) do(ctx context.Context, fn func() error) error {
	backoff := s.initialBackoff

	var lastErr error
	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		if s.bucket != nil {
			if err := s.bucket.Wait(ctx); err != nil {
				return err
			}
		}

		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if attempt == s.maxAttempts {
			break
		}

		// Jitter spreads concurrent retries apart.
		delay := backoff + time.Duration(rand.Int63n(int64(backoff)/2+1))
		logger.Debug("embedding attempt %d/%d failed, retrying in %s: %v",
			attempt, s.maxAttempts, delay, lastErr)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}

		backoff *= 2
		if backoff > s.maxBackoff {
			backoff = s.maxBackoff
		}
	}

	return fmt.Errorf("%w: after %d attempts: %v",
		domain.ErrEmbeddingUnavailable, s.maxAttempts, lastErr)
}

// Dimensions returns the embedding vector size of the wrapped service.
func (s *EmbeddingService) Dimensions() int {
	return s.inner.Dimensions()
}

// ModelName returns the name of the wrapped model.
func (s *EmbeddingService) ModelName() string {
	return s.inner.ModelName()
}

// Ping checks the wrapped service without retries; health checks
// should report the current state, not a smoothed one.
func (s *EmbeddingService) Ping(ctx context.Context) error {
	return s.inner.Ping(ctx)
}

// Close closes the wrapped service.
func (s *EmbeddingService) Close() error {
	return s.inner.Close()
}
