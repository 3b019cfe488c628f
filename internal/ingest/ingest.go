// Package ingest rebuilds one version of the documentation corpus: it reads
// the markdown pages, cuts them into heading- and token-bounded chunks,
// embeds every chunk and publishes the version through a shadow-table swap.
package ingest

import (
	"context"
	"log/slog"
	"time"

	"github.com/SzymonLeja/pgdocs-ingest/internal/config"
	"github.com/SzymonLeja/pgdocs-ingest/internal/corpus"
	"github.com/SzymonLeja/pgdocs-ingest/internal/tokenizer"
)

type Corpus interface {
	Stage(ctx context.Context, version int) (*corpus.Plan, error)
	WritePage(ctx context.Context, page *corpus.Page, chunks []corpus.Chunk) error
	Swap(ctx context.Context, plan *corpus.Plan) error
}

// Locker serialises ingestion runs across processes.
type Locker interface {
	Acquire(ctx context.Context) (release func(context.Context) error, err error)
}

type RunRecorder interface {
	Create(ctx context.Context, version int) (string, error)
	Finish(ctx context.Context, id string, pages, chunks int) error
	Fail(ctx context.Context, id string, cause error) error
}

type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

type Service struct {
	cfg       *config.Config
	corpus    Corpus
	locker    Locker
	runs      RunRecorder
	embedder  Embedder
	assembler *Assembler
	logger    *slog.Logger

	debounce time.Duration
}

func NewService(
	cfg *config.Config,
	corpus Corpus,
	locker Locker,
	runs RunRecorder,
	embedder Embedder,
	tok tokenizer.Tokenizer,
	logger *slog.Logger,
) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		cfg:       cfg,
		corpus:    corpus,
		locker:    locker,
		runs:      runs,
		embedder:  embedder,
		assembler: NewAssembler(tok, cfg.MinChunkTokens, cfg.MaxChunkTokens, logger),
		logger:    logger,
		debounce:  500 * time.Millisecond,
	}
}
