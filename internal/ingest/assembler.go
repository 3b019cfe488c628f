package ingest

import (
	"errors"
	"io"
	"log/slog"
	"regexp"
	"strings"

	"github.com/SzymonLeja/pgdocs-ingest/internal/corpus"
	"github.com/SzymonLeja/pgdocs-ingest/internal/tokenizer"
)

var anchorPattern = regexp.MustCompile(`\((#\S+)\)`)

// AssembleStats counts what happened to a page's proto-chunks.
type AssembleStats struct {
	Discarded int
	Split     int
}

// Assembler turns proto-chunks into the chunks that get embedded and stored.
type Assembler struct {
	tok      tokenizer.Tokenizer
	splitter *Splitter
	floor    int
	ceiling  int
	logger   *slog.Logger
}

func NewAssembler(tok tokenizer.Tokenizer, minTokens, maxTokens int, logger *slog.Logger) *Assembler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Assembler{
		tok:      tok,
		splitter: NewSplitter(tok, maxTokens, minTokens),
		floor:    minTokens,
		ceiling:  maxTokens,
		logger:   logger,
	}
}

// Assemble drops empty and sub-floor proto-chunks, splits those over the
// ceiling, and attaches metadata.
func (a *Assembler) Assemble(p ProtoChunk, pageURL string) []corpus.Chunk {
	out, _ := a.assemble(p, pageURL)
	return out
}

func (a *Assembler) assemble(p ProtoChunk, pageURL string) ([]corpus.Chunk, bool) {
	if p.Content == "" {
		return nil, false
	}
	count := tokenizer.Count(a.tok, p.Content)
	if count < a.floor {
		return nil, false
	}

	url := SourceURL(pageURL, p.HeaderPath)
	chunk := func(sub int, content string, tokens int) corpus.Chunk {
		return corpus.Chunk{
			ChunkIndex:    p.Index,
			SubChunkIndex: sub,
			Content:       content,
			Metadata: corpus.Metadata{
				Header:     p.Header,
				HeaderPath: p.HeaderPath,
				SourceURL:  url,
				TokenCount: tokens,
			},
		}
	}

	if count <= a.ceiling {
		return []corpus.Chunk{chunk(0, p.Content, count)}, false
	}

	a.logger.Info("chunk too large, splitting", "header", p.Header, "tokens", count, "ceiling", a.ceiling)
	pieces := a.splitter.Split(p.Content, count)
	out := make([]corpus.Chunk, 0, len(pieces))
	for _, piece := range pieces {
		out = append(out, chunk(piece.SubIndex, piece.Content, piece.TokenCount))
	}
	return out, true
}

// AssembleAll drains parser and returns the page's chunks in reading order.
func (a *Assembler) AssembleAll(parser *Parser, pageURL string) ([]corpus.Chunk, AssembleStats, error) {
	var (
		chunks []corpus.Chunk
		stats  AssembleStats
	)
	for {
		p, err := parser.Next()
		if errors.Is(err, io.EOF) {
			return chunks, stats, nil
		}
		if err != nil {
			return nil, stats, err
		}

		out, split := a.assemble(p, pageURL)
		switch {
		case len(out) == 0:
			stats.Discarded++
		case split:
			stats.Split++
		}
		chunks = append(chunks, out...)
	}
}

// SourceURL links below-top-level headings carrying a "(#fragment)" anchor
// to that fragment of the page.
func SourceURL(pageURL string, headerPath []string) string {
	if len(headerPath) <= 1 {
		return pageURL
	}
	m := anchorPattern.FindStringSubmatch(headerPath[len(headerPath)-1])
	if m == nil {
		return pageURL
	}
	return pageURL + strings.ToLower(m[1])
}
