package corpus

import (
	"strings"

	"github.com/jackc/pgx/v5"
)

// StagingMarker is appended to live table names to form the shadow tables.
// Postgres derives index, constraint and sequence names from the table name,
// so every object created against a shadow table carries "<marker>_".
const StagingMarker = "_staging"

type Tables struct {
	Schema string
	Pages  string
	Chunks string
}

var DefaultTables = Tables{Schema: "docs", Pages: "pages", Chunks: "chunks"}

func (t Tables) ident(name string) string {
	return pgx.Identifier{t.Schema, name}.Sanitize()
}

func (t Tables) livePages() string     { return t.ident(t.Pages) }
func (t Tables) liveChunks() string    { return t.ident(t.Chunks) }
func (t Tables) stagingPages() string  { return t.ident(t.Pages + StagingMarker) }
func (t Tables) stagingChunks() string { return t.ident(t.Chunks + StagingMarker) }

// unstaged maps a generated object name such as chunks_staging_page_id_fkey
// to the name Postgres would have generated for the live table.
func unstaged(name string) string {
	return strings.ReplaceAll(name, StagingMarker+"_", "_")
}

func quote(name string) string {
	return pgx.Identifier{name}.Sanitize()
}
