package ingest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/SzymonLeja/pgdocs-ingest/internal/corpus"
)

// ErrNoDocuments stops a run that would publish an empty version.
var ErrNoDocuments = errors.New("no documents to ingest")

type RunResult struct {
	RunID    string        `json:"run_id"`
	Version  int           `json:"version"`
	Pages    int           `json:"pages"`
	Chunks   int           `json:"chunks"`
	Skipped  int           `json:"skipped"`
	Split    int           `json:"split"`
	Duration time.Duration `json:"duration"`
}

// Run rebuilds version from the documents in DocsDir and swaps it live.
// Rows of other versions are carried over unchanged. Until the swap commits,
// a failure leaves the live corpus as it was.
func (s *Service) Run(ctx context.Context, version int) (_ *RunResult, err error) {
	if version <= 0 {
		return nil, fmt.Errorf("invalid version %d", version)
	}
	start := time.Now()

	release, err := s.locker.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer func() {
		if rerr := release(context.WithoutCancel(ctx)); rerr != nil {
			s.logger.Warn("release ingestion lock", "err", rerr)
		}
	}()

	runID, err := s.runs.Create(ctx, version)
	if err != nil {
		return nil, fmt.Errorf("create run: %w", err)
	}
	result := &RunResult{RunID: runID, Version: version}
	logger := s.logger.With("run_id", runID, "version", version)

	defer func() {
		result.Duration = time.Since(start)
		bg := context.WithoutCancel(ctx)
		if err != nil {
			if ferr := s.runs.Fail(bg, runID, err); ferr != nil {
				logger.Warn("record run failure", "err", ferr)
			}
			return
		}
		if ferr := s.runs.Finish(bg, runID, result.Pages, result.Chunks); ferr != nil {
			logger.Warn("record run result", "err", ferr)
		}
	}()

	names, err := ListDocuments(s.cfg.DocsDir)
	if err != nil {
		return nil, err
	}
	if len(names) == 0 {
		return nil, fmt.Errorf("%w in %s", ErrNoDocuments, s.cfg.DocsDir)
	}
	logger.Info("ingestion started", "documents", len(names))

	plan, err := s.corpus.Stage(ctx, version)
	if err != nil {
		return nil, err
	}

	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("stopped before %s: %w", name, err)
		}
		if err := s.ingestDocument(ctx, version, name, result); err != nil {
			return nil, err
		}
	}

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("stopped before swap: %w", err)
	}
	if err := s.corpus.Swap(ctx, plan); err != nil {
		return nil, err
	}

	logger.Info("ingestion finished",
		"pages", result.Pages,
		"chunks", result.Chunks,
		"skipped", result.Skipped,
		"split", result.Split,
		"took", time.Since(start).Round(time.Millisecond),
	)
	return result, nil
}

func (s *Service) ingestDocument(ctx context.Context, version int, name string, result *RunResult) error {
	doc, err := ReadDocument(s.cfg.DocsDir, name)
	if err != nil {
		return err
	}

	page := &corpus.Page{
		Version:  version,
		URL:      PageURL(s.cfg.BaseURL, version, doc.Slug),
		Domain:   s.cfg.Domain,
		Filename: doc.Filename,
	}

	chunks, stats, err := s.assembler.AssembleAll(NewParser(doc.Body, doc.IsReferenceEntry), page.URL)
	if err != nil {
		return fmt.Errorf("parse %s: %w", name, err)
	}

	if err := s.embedAll(ctx, chunks); err != nil {
		return fmt.Errorf("embed %s: %w", name, err)
	}

	if err := s.corpus.WritePage(ctx, page, chunks); err != nil {
		return err
	}

	result.Pages++
	result.Chunks += len(chunks)
	result.Skipped += stats.Discarded
	result.Split += stats.Split
	s.logger.Info("page ingested", "file", doc.Filename, "chunks", len(chunks), "content_length", page.ContentLength)
	return nil
}

// embedAll fills every chunk's embedding with at most EmbedConcurrency
// requests in flight. Order is carried by the chunk indexes, so completion
// order does not matter.
func (s *Service) embedAll(ctx context.Context, chunks []corpus.Chunk) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(s.cfg.EmbedConcurrency, 1))

	for i := range chunks {
		c := &chunks[i]
		g.Go(func() error {
			vec, err := s.embedder.Embed(gctx, c.Content)
			if err != nil {
				return fmt.Errorf("chunk %d.%d: %w", c.ChunkIndex, c.SubChunkIndex, err)
			}
			c.Embedding = vec
			return nil
		})
	}
	return g.Wait()
}
