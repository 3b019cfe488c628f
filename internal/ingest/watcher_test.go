package ingest

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func waitSwap(t *testing.T, f *fakeCorpus) {
	t.Helper()
	select {
	case <-f.swapped:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for rebuild")
	}
}

func TestService_WatchRebuildsOnChange(t *testing.T) {
	h := newHarness(t)
	h.svc.debounce = 20 * time.Millisecond
	writeFile(t, h.dir, "ddl.md", page("ddl.html", false, ddlBody))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- h.svc.Watch(ctx, 17) }()

	waitSwap(t, h.corpus)

	writeFile(t, h.dir, "tutorial.md", page("tutorial.html", false, "# Tutorial\nWelcome to the tutorial chapter.\n"))
	waitSwap(t, h.corpus)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("watch did not stop")
	}

	assert.Contains(t, h.corpus.Calls(), "write tutorial.md")
	h.runs.mu.Lock()
	defer h.runs.mu.Unlock()
	assert.GreaterOrEqual(t, len(h.runs.created), 2)
}

func TestService_WatchMissingDir(t *testing.T) {
	h := newHarness(t)
	h.svc.cfg.DocsDir = h.dir + "/absent"

	err := h.svc.Watch(context.Background(), 17)
	assert.Error(t, err)
}
