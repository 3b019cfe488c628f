package ingest

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/SzymonLeja/pgdocs-ingest/internal/db"
)

// Watch rebuilds version once at start and again whenever a markdown file
// under DocsDir changes. Bursts of events collapse into one rebuild, and
// rebuilds never overlap. Watch returns when ctx is cancelled.
func (s *Service) Watch(ctx context.Context, version int) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	if err := watchRecursive(watcher, s.cfg.DocsDir); err != nil {
		return fmt.Errorf("watch %s: %w", s.cfg.DocsDir, err)
	}
	s.logger.Info("watcher started", "dir", s.cfg.DocsDir, "version", version)

	trigger := make(chan struct{}, 1)
	request := func() {
		select {
		case trigger <- struct{}{}:
		default:
		}
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-ctx.Done():
				return
			case <-trigger:
				s.rebuild(ctx, version)
			}
		}
	}()

	request()

	var timer *time.Timer
	defer func() {
		if timer != nil {
			timer.Stop()
		}
		wg.Wait()
	}()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("watcher stopped")
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Has(fsnotify.Create) {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					_ = watchRecursive(watcher, event.Name)
					continue
				}
			}
			if !relevant(event) {
				continue
			}

			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(s.debounce, request)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			s.logger.Warn("watcher error", "err", err)
		}
	}
}

func (s *Service) rebuild(ctx context.Context, version int) {
	res, err := s.Run(ctx, version)
	switch {
	case err == nil:
		s.logger.Info("watcher rebuilt version", "version", version, "pages", res.Pages, "chunks", res.Chunks)
	case errors.Is(err, db.ErrRunInProgress):
		s.logger.Warn("watcher skipped rebuild, another run holds the lock", "version", version)
	case ctx.Err() != nil:
	default:
		s.logger.Error("watcher rebuild failed", "version", version, "err", err)
	}
}

func relevant(event fsnotify.Event) bool {
	if event.Op == fsnotify.Chmod {
		return false
	}
	if !strings.HasSuffix(strings.ToLower(event.Name), ".md") {
		return false
	}
	return !strings.Contains(event.Name, string(filepath.Separator)+".")
}

func watchRecursive(watcher *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != root && strings.HasPrefix(filepath.Base(path), ".") {
				return filepath.SkipDir
			}
			return watcher.Add(path)
		}
		return nil
	})
}
