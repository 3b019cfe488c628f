package db

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/lib/pq"
	"github.com/pressly/goose/v3"
	"github.com/sethvargo/go-retry"
)

const (
	timeout    = 3 * time.Second
	maxRetries = 3
)

//go:embed migrations/*.sql
var migrations embed.FS

func Connect(ctx context.Context, dsn string, logger *slog.Logger) (*pgxpool.Pool, error) {
	if logger == nil {
		logger = slog.Default()
	}

	var pool *pgxpool.Pool
	attempt := 0
	backoff := retry.WithMaxRetries(maxRetries-1, retry.NewConstant(timeout))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		p, err := pgxpool.New(ctx, dsn)
		if err != nil {
			// pgxpool.New only fails on a malformed DSN; no point retrying.
			return fmt.Errorf("open pool: %w", err)
		}
		if err := p.Ping(ctx); err != nil {
			p.Close()
			logger.Warn("db ping failed", "attempt", attempt, "err", err)
			return retry.RetryableError(err)
		}
		pool = p
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect after %d attempts: %w", attempt, err)
	}

	logger.Info("db connected", "attempts", attempt)
	return pool, nil
}

// Migrate applies the embedded schema migrations. goose drives database/sql,
// so it opens a short-lived lib/pq handle on the pool's connection string.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	dsn := pool.Config().ConnString()

	sqlDB, err := sql.Open("postgres", dsn)
	if err != nil {
		return fmt.Errorf("migrate: open sql.DB: %w", err)
	}
	defer sqlDB.Close()

	goose.SetBaseFS(migrations)
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("migrate: set dialect: %w", err)
	}
	if err := goose.UpContext(ctx, sqlDB, "migrations"); err != nil {
		return fmt.Errorf("migrate: up: %w", err)
	}

	return nil
}
