package embeddings

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/sethvargo/go-retry"
	"golang.org/x/time/rate"
)

type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

type Options struct {
	// RateLimit caps requests per second; zero or less disables the limiter.
	RateLimit  float64
	MaxRetries int
	BaseDelay  time.Duration
	// Dimension, when positive, is the vector length every reply must have.
	Dimension int
	Logger    *slog.Logger
}

// Resilient wraps an Embedder with rate limiting, retries with exponential
// backoff and a dimension check. Only transport failures and 429/5xx replies
// are retried.
type Resilient struct {
	next       Embedder
	limiter    *rate.Limiter
	maxRetries uint64
	baseDelay  time.Duration
	dimension  int
	logger     *slog.Logger
}

func NewResilient(next Embedder, opts Options) *Resilient {
	r := &Resilient{
		next:      next,
		baseDelay: opts.BaseDelay,
		dimension: opts.Dimension,
		logger:    opts.Logger,
	}
	if opts.MaxRetries > 0 {
		r.maxRetries = uint64(opts.MaxRetries)
	}
	if r.baseDelay <= 0 {
		r.baseDelay = 500 * time.Millisecond
	}
	if opts.RateLimit > 0 {
		r.limiter = rate.NewLimiter(rate.Limit(opts.RateLimit), 1)
	}
	if r.logger == nil {
		r.logger = slog.Default()
	}
	return r
}

func (r *Resilient) Embed(ctx context.Context, text string) ([]float32, error) {
	var vec []float32
	attempt := 0

	backoff := retry.WithMaxRetries(r.maxRetries, retry.NewExponential(r.baseDelay))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		if r.limiter != nil {
			if err := r.limiter.Wait(ctx); err != nil {
				return err
			}
		}

		v, err := r.next.Embed(ctx, text)
		if err != nil {
			if ctx.Err() == nil && temporary(err) {
				r.logger.Warn("embed attempt failed", "attempt", attempt, "max_retries", r.maxRetries, "err", err)
				return retry.RetryableError(err)
			}
			return err
		}
		vec = v
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: after %d attempt(s): %w", ErrEmbedding, attempt, err)
	}

	if len(vec) == 0 {
		return nil, fmt.Errorf("%w: empty vector", ErrEmbedding)
	}
	if r.dimension > 0 && len(vec) != r.dimension {
		return nil, fmt.Errorf("%w: got %d dimensions, want %d", ErrEmbedding, len(vec), r.dimension)
	}
	return vec, nil
}

func temporary(err error) bool {
	var se *StatusError
	if errors.As(err, &se) {
		return se.Temporary()
	}
	var ue *url.Error
	return errors.As(err, &ue)
}
