package cli

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SzymonLeja/pgdocs-ingest/internal/config"
)

func TestParseVersion(t *testing.T) {
	v, err := parseVersion("17")
	require.NoError(t, err)
	assert.Equal(t, 17, v)

	for _, bad := range []string{"", "seventeen", "0", "-3", "17.1"} {
		_, err := parseVersion(bad)
		assert.Error(t, err, bad)
	}
}

func TestCommands_Registered(t *testing.T) {
	names := map[string]bool{}
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"ingest", "watch", "serve", "migrate"} {
		assert.True(t, names[want], want)
	}
}

func TestIngestCmd_RequiresOneArg(t *testing.T) {
	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs([]string{"ingest"})
	defer rootCmd.SetArgs(nil)

	err := rootCmd.Execute()
	assert.Error(t, err)
}

func TestIngestCmd_RejectsNonIntegerVersion(t *testing.T) {
	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs([]string{"ingest", "latest"})
	defer rootCmd.SetArgs(nil)

	err := rootCmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "positive integer")
}

func TestNewLogger_Level(t *testing.T) {
	buf := new(bytes.Buffer)
	logger := newLogger(buf, slog.LevelWarn)

	logger.Info("hidden")
	logger.Warn("shown", "file", "ddl.md")

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "file=ddl.md")
}

func TestRouter(t *testing.T) {
	cfg := &config.Config{ApiKey: "secret", AllowedOrigins: []string{"http://localhost"}}
	runs := func(w http.ResponseWriter, r *http.Request) { w.Write([]byte("run")) }
	versions := func(w http.ResponseWriter, r *http.Request) { w.Write([]byte("versions")) }
	h := newRouter(cfg, runs, versions)

	do := func(path, key string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		if key != "" {
			req.Header.Set("X-API-Key", key)
		}
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec
	}

	health := do("/health", "")
	assert.Equal(t, http.StatusOK, health.Code)
	assert.JSONEq(t, `{"status":"ok"}`, health.Body.String())

	assert.Equal(t, http.StatusUnauthorized, do("/versions", "").Code)

	rec := do("/versions", "secret")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "versions", rec.Body.String())

	rec = do("/runs/8f14e45f-ceea-467f-a0e6-7d3f4a1b2c3d", "secret")
	assert.Equal(t, "run", rec.Body.String())

	assert.Equal(t, http.StatusNotFound, do("/query", "secret").Code)
}
