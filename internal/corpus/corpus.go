// Package corpus persists versioned documentation pages and their embedded
// chunks in Postgres. A version is rebuilt in shadow tables (Stage,
// WritePage) and promoted to the live tables in one transaction (Swap).
package corpus

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

type Page struct {
	ID            int64
	Version       int
	URL           string
	Domain        string
	Filename      string
	ContentLength int
	ChunkCount    int
}

// Metadata is stored as the chunk's JSONB metadata column.
type Metadata struct {
	Header     string   `json:"header"`
	HeaderPath []string `json:"header_path"`
	SourceURL  string   `json:"source_url"`
	TokenCount int      `json:"token_count"`
}

type Chunk struct {
	PageID        int64
	ChunkIndex    int
	SubChunkIndex int
	Content       string
	Metadata      Metadata
	Embedding     []float32
}

func (m Metadata) MarshalJSON() ([]byte, error) {
	type alias Metadata
	if m.HeaderPath == nil {
		m.HeaderPath = []string{}
	}
	return json.Marshal(alias(m))
}

// IndexDef is a secondary index captured from the live chunk table.
type IndexDef struct {
	Name       string
	Definition string
}

// Plan carries what Stage captured for the later Swap.
type Plan struct {
	Version   int
	IndexDefs []IndexDef
}

// DB is the subset of pgxpool.Pool the store needs.
type DB interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type Store struct {
	db     DB
	tables Tables
	logger *slog.Logger
}

func NewStore(db DB, tables Tables, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{db: db, tables: tables, logger: logger}
}

// StoreError reports which store operation failed.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string { return "corpus " + e.Op + ": " + e.Err.Error() }

func (e *StoreError) Unwrap() error { return e.Err }

func storeErr(op string, err error) error {
	return &StoreError{Op: op, Err: err}
}
