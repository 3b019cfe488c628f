// Package embeddings turns chunk text into vectors through a remote model
// server. Callers depend on Embedder; the concrete clients do one HTTP call
// per Embed and leave retries and rate limiting to Resilient.
package embeddings

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/SzymonLeja/pgdocs-ingest/internal/config"
)

// ErrEmbedding marks every failure surfaced by the gateway once retries are
// exhausted or the response is unusable.
var ErrEmbedding = errors.New("embedding service error")

// StatusError is a non-200 reply from the model server.
type StatusError struct {
	Provider string
	Code     int
	Body     string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s: status %d", e.Provider, e.Code)
	}
	return fmt.Sprintf("%s: status %d: %s", e.Provider, e.Code, e.Body)
}

// Temporary reports whether the same request may succeed later.
func (e *StatusError) Temporary() bool {
	return e.Code == 429 || e.Code >= 500
}

// FromConfig builds the configured client wrapped in Resilient.
func FromConfig(cfg *config.Config, logger *slog.Logger) (*Resilient, error) {
	var base Embedder
	switch cfg.EmbeddingProvider {
	case config.ProviderOllama:
		base = NewOllamaClient(cfg.OllamaURL, cfg.EmbeddingModel)
	case config.ProviderOpenAI:
		c, err := NewOpenAIClient(OpenAIConfig{
			APIKey:     cfg.OpenAIAPIKey,
			BaseURL:    cfg.OpenAIBaseURL,
			Model:      cfg.EmbeddingModel,
			Dimensions: cfg.EmbeddingDim,
		})
		if err != nil {
			return nil, err
		}
		base = c
	default:
		return nil, fmt.Errorf("embeddings: unknown provider %q", cfg.EmbeddingProvider)
	}

	return NewResilient(base, Options{
		RateLimit:  cfg.EmbedRateLimit,
		MaxRetries: cfg.EmbedMaxRetries,
		BaseDelay:  500 * time.Millisecond,
		Dimension:  cfg.EmbeddingDim,
		Logger:     logger,
	}), nil
}
