// Package jobs records one row per ingestion run so operators can follow a
// rebuild from another process.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

const (
	StatusRunning = "running"
	StatusDone    = "done"
	StatusError   = "error"
)

var ErrNotFound = errors.New("run not found")

type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type Service struct {
	db DB
}

func NewService(db DB) *Service {
	return &Service{db: db}
}

type Run struct {
	ID        string    `json:"id"`
	Version   int       `json:"version"`
	Status    string    `json:"status"`
	Pages     int       `json:"pages"`
	Chunks    int       `json:"chunks"`
	Error     *string   `json:"error,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (s *Service) Create(ctx context.Context, version int) (string, error) {
	id := uuid.New().String()
	_, err := s.db.Exec(ctx,
		`INSERT INTO docs.ingest_runs (id, version, status) VALUES ($1, $2, $3)`,
		id, version, StatusRunning,
	)
	if err != nil {
		return "", fmt.Errorf("create run: %w", err)
	}
	return id, nil
}

func (s *Service) Finish(ctx context.Context, id string, pages, chunks int) error {
	return s.update(ctx,
		`UPDATE docs.ingest_runs SET status = $1, pages = $2, chunks = $3, updated_at = NOW() WHERE id = $4`,
		StatusDone, pages, chunks, id,
	)
}

func (s *Service) Fail(ctx context.Context, id string, cause error) error {
	return s.update(ctx,
		`UPDATE docs.ingest_runs SET status = $1, error = $2, updated_at = NOW() WHERE id = $3`,
		StatusError, cause.Error(), id,
	)
}

func (s *Service) update(ctx context.Context, sql string, args ...any) error {
	tag, err := s.db.Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("update run: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Service) GetByID(ctx context.Context, id string) (*Run, error) {
	var r Run
	err := s.db.QueryRow(ctx,
		`SELECT id::text, version, status, pages, chunks, error, created_at, updated_at
		 FROM docs.ingest_runs WHERE id = $1`, id,
	).Scan(&r.ID, &r.Version, &r.Status, &r.Pages, &r.Chunks, &r.Error, &r.CreatedAt, &r.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get run %s: %w", id, err)
	}
	return &r, nil
}
