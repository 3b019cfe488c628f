package db

import (
	"context"
	"errors"
	"testing"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockLockConn struct {
	pgxmock.PgxConnIface
	released int
}

func (c *mockLockConn) Release() { c.released++ }

func newTestLock(t *testing.T, key int64) (*AdvisoryLock, *mockLockConn) {
	t.Helper()
	mock, err := pgxmock.NewConn()
	require.NoError(t, err)
	t.Cleanup(func() { _ = mock.Close(context.Background()) })

	conn := &mockLockConn{PgxConnIface: mock}
	lock := &AdvisoryLock{
		key:     key,
		acquire: func(context.Context) (lockConn, error) { return conn, nil },
	}
	return lock, conn
}

func TestAdvisoryLock_AcquireAndRelease(t *testing.T) {
	lock, conn := newTestLock(t, 42)

	conn.ExpectQuery(`pg_try_advisory_lock`).
		WithArgs(int64(42)).
		WillReturnRows(pgxmock.NewRows([]string{"pg_try_advisory_lock"}).AddRow(true))
	conn.ExpectExec(`pg_advisory_unlock`).
		WithArgs(int64(42)).
		WillReturnResult(pgxmock.NewResult("SELECT", 1))

	release, err := lock.Acquire(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, conn.released, "connection must stay checked out while locked")

	require.NoError(t, release(context.Background()))
	assert.Equal(t, 1, conn.released)
	assert.NoError(t, conn.ExpectationsWereMet())
}

func TestAdvisoryLock_Busy(t *testing.T) {
	lock, conn := newTestLock(t, 42)

	conn.ExpectQuery(`pg_try_advisory_lock`).
		WithArgs(int64(42)).
		WillReturnRows(pgxmock.NewRows([]string{"pg_try_advisory_lock"}).AddRow(false))

	release, err := lock.Acquire(context.Background())
	assert.ErrorIs(t, err, ErrRunInProgress)
	assert.Nil(t, release)
	assert.Equal(t, 1, conn.released)
	assert.NoError(t, conn.ExpectationsWereMet())
}

func TestAdvisoryLock_AcquireConnFails(t *testing.T) {
	lock := &AdvisoryLock{
		key:     1,
		acquire: func(context.Context) (lockConn, error) { return nil, errors.New("pool closed") },
	}

	_, err := lock.Acquire(context.Background())
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrRunInProgress)
	assert.Contains(t, err.Error(), "pool closed")
}
