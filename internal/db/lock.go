package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrRunInProgress is returned when another process holds the ingestion lock.
var ErrRunInProgress = errors.New("another ingestion run is in progress")

// lockConn is the session an advisory lock lives on. Session locks belong to
// one backend connection, so the lock keeps the connection out of the pool
// until it is released.
type lockConn interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Release()
}

type AdvisoryLock struct {
	key     int64
	acquire func(ctx context.Context) (lockConn, error)
}

func NewAdvisoryLock(pool *pgxpool.Pool, key int64) *AdvisoryLock {
	return &AdvisoryLock{
		key: key,
		acquire: func(ctx context.Context) (lockConn, error) {
			conn, err := pool.Acquire(ctx)
			if err != nil {
				return nil, err
			}
			return conn, nil
		},
	}
}

// Acquire takes the lock without waiting. The returned release func unlocks
// and hands the connection back to the pool.
func (l *AdvisoryLock) Acquire(ctx context.Context) (func(context.Context) error, error) {
	conn, err := l.acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("lock: acquire conn: %w", err)
	}

	var locked bool
	if err := conn.QueryRow(ctx, `SELECT pg_try_advisory_lock($1)`, l.key).Scan(&locked); err != nil {
		conn.Release()
		return nil, fmt.Errorf("lock: %w", err)
	}
	if !locked {
		conn.Release()
		return nil, ErrRunInProgress
	}

	release := func(ctx context.Context) error {
		defer conn.Release()
		if _, err := conn.Exec(ctx, `SELECT pg_advisory_unlock($1)`, l.key); err != nil {
			return fmt.Errorf("unlock: %w", err)
		}
		return nil
	}
	return release, nil
}
