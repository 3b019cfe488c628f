package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockService(t *testing.T) (*Service, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return NewService(mock), mock
}

func TestService_Create(t *testing.T) {
	svc, mock := newMockService(t)
	mock.ExpectExec(`INSERT INTO docs.ingest_runs`).
		WithArgs(pgxmock.AnyArg(), 17, StatusRunning).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	id, err := svc.Create(context.Background(), 17)
	require.NoError(t, err)
	_, err = uuid.Parse(id)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestService_FinishAndFail(t *testing.T) {
	svc, mock := newMockService(t)
	mock.ExpectExec(`UPDATE docs.ingest_runs SET status`).
		WithArgs(StatusDone, 1200, 15000, "run-a").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec(`UPDATE docs.ingest_runs SET status`).
		WithArgs(StatusError, "embed ddl.md: boom", "run-b").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec(`UPDATE docs.ingest_runs SET status`).
		WithArgs(StatusDone, 0, 0, "missing").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	require.NoError(t, svc.Finish(context.Background(), "run-a", 1200, 15000))
	require.NoError(t, svc.Fail(context.Background(), "run-b", errors.New("embed ddl.md: boom")))
	assert.ErrorIs(t, svc.Finish(context.Background(), "missing", 0, 0), ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func runRows(id string, at time.Time) *pgxmock.Rows {
	msg := "stopped before swap: context canceled"
	return pgxmock.NewRows([]string{"id", "version", "status", "pages", "chunks", "error", "created_at", "updated_at"}).
		AddRow(id, 16, StatusError, 10, 120, &msg, at, at)
}

func TestService_GetByID(t *testing.T) {
	svc, mock := newMockService(t)
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	mock.ExpectQuery(`FROM docs.ingest_runs WHERE id`).
		WithArgs("r1").
		WillReturnRows(runRows("r1", at))

	run, err := svc.GetByID(context.Background(), "r1")
	require.NoError(t, err)
	assert.Equal(t, 16, run.Version)
	assert.Equal(t, StatusError, run.Status)
	require.NotNil(t, run.Error)
	assert.Equal(t, "stopped before swap: context canceled", *run.Error)
	assert.Equal(t, at, run.CreatedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestService_GetByIDNotFound(t *testing.T) {
	svc, mock := newMockService(t)
	mock.ExpectQuery(`FROM docs.ingest_runs WHERE id`).
		WithArgs("nope").
		WillReturnError(pgx.ErrNoRows)

	_, err := svc.GetByID(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func serve(svc *Service, path string) *httptest.ResponseRecorder {
	r := chi.NewRouter()
	r.Get("/runs/{run_id}", svc.GetHandler)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestGetHandler(t *testing.T) {
	svc, mock := newMockService(t)
	id := uuid.NewString()
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	mock.ExpectQuery(`FROM docs.ingest_runs WHERE id`).WithArgs(id).WillReturnRows(runRows(id, at))

	rec := serve(svc, "/runs/"+id)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	var got Run
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, id, got.ID)
	assert.Equal(t, 120, got.Chunks)
}

func TestGetHandler_Errors(t *testing.T) {
	svc, mock := newMockService(t)
	missing := uuid.NewString()
	mock.ExpectQuery(`FROM docs.ingest_runs WHERE id`).WithArgs(missing).WillReturnError(pgx.ErrNoRows)

	assert.Equal(t, http.StatusBadRequest, serve(svc, "/runs/not-a-uuid").Code)
	assert.Equal(t, http.StatusNotFound, serve(svc, "/runs/"+missing).Code)
}
