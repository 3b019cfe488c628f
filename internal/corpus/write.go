package corpus

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/pgvector/pgvector-go"
)

// WritePage inserts one page and its chunks into the shadow tables and
// refreshes the page's aggregate columns, all in one transaction. page.ID
// and the aggregates are filled in on success.
func (s *Store) WritePage(ctx context.Context, page *Page, chunks []Chunk) (err error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return storeErr("write page", fmt.Errorf("begin: %w", err))
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	pages, chunkTable := s.tables.stagingPages(), s.tables.stagingChunks()

	err = tx.QueryRow(ctx,
		`INSERT INTO `+pages+` (version, url, domain, filename, content_length, chunks_count)
		 VALUES ($1, $2, $3, $4, 0, 0) RETURNING id`,
		page.Version, page.URL, page.Domain, page.Filename,
	).Scan(&page.ID)
	if err != nil {
		return storeErr("write page", fmt.Errorf("insert page %s: %w", page.Filename, err))
	}

	for _, c := range chunks {
		meta, err := json.Marshal(c.Metadata)
		if err != nil {
			return storeErr("write page", fmt.Errorf("marshal metadata: %w", err))
		}
		_, err = tx.Exec(ctx,
			`INSERT INTO `+chunkTable+` (page_id, chunk_index, sub_chunk_index, content, metadata, embedding)
			 VALUES ($1, $2, $3, $4, $5, $6)`,
			page.ID, c.ChunkIndex, c.SubChunkIndex, c.Content, string(meta), pgvector.NewVector(c.Embedding),
		)
		if err != nil {
			return storeErr("write page", fmt.Errorf("insert chunk %d.%d: %w", c.ChunkIndex, c.SubChunkIndex, err))
		}
	}

	err = tx.QueryRow(ctx,
		`UPDATE `+pages+` p
		 SET content_length = s.total_length, chunks_count = s.chunks_count
		 FROM (
			SELECT COALESCE(SUM(char_length(content)), 0) AS total_length, COUNT(*) AS chunks_count
			FROM `+chunkTable+`
			WHERE page_id = $1
		 ) s
		 WHERE p.id = $1
		 RETURNING p.content_length, p.chunks_count`,
		page.ID,
	).Scan(&page.ContentLength, &page.ChunkCount)
	if err != nil {
		return storeErr("write page", fmt.Errorf("update stats for page %d: %w", page.ID, err))
	}

	if err := tx.Commit(ctx); err != nil {
		return storeErr("write page", fmt.Errorf("commit: %w", err))
	}
	return nil
}
