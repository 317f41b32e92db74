package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/mozadev/docubot/internal/document"
)

// defaultDebounce coalesces the event bursts editors produce on save.
const defaultDebounce = 500 * time.Millisecond

// Watcher auto-ingests supported files as they appear or change under a
// directory tree.
type Watcher struct {
	ingestor *Ingestor
	logger   *slog.Logger
	debounce time.Duration

	mu     sync.Mutex
	timers map[string]*time.Timer
}

// NewWatcher creates a Watcher. debounce <= 0 selects the default.
func NewWatcher(ingestor *Ingestor, logger *slog.Logger, debounce time.Duration) *Watcher {
	if logger == nil {
		logger = slog.Default()
	}
	if debounce <= 0 {
		debounce = defaultDebounce
	}
	return &Watcher{
		ingestor: ingestor,
		logger:   logger,
		debounce: debounce,
		timers:   make(map[string]*time.Timer),
	}
}

// Watch blocks watching dir (recursively) until ctx is canceled.
// Created and modified supported files are re-ingested after a debounce
// window; removed files have their chunks deleted from the store.
func (w *Watcher) Watch(ctx context.Context, dir string) error {
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return fmt.Errorf("resolving directory: %w", err)
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	defer fw.Close()

	// fsnotify does not recurse, so every subdirectory gets its own watch.
	err = filepath.Walk(absDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return fw.Add(path)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("watching %s: %w", absDir, err)
	}

	w.logger.Info("watching for document changes", "dir", absDir)
	defer w.stopTimers()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-fw.Events:
			if !ok {
				return nil
			}
			w.handleEvent(ctx, fw, event)

		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watch error", "error", err)
		}
	}
}

func (w *Watcher) handleEvent(ctx context.Context, fw *fsnotify.Watcher, event fsnotify.Event) {
	path := event.Name

	switch {
	case event.Op.Has(fsnotify.Create):
		if info, err := os.Stat(path); err == nil && info.IsDir() {
			if err := fw.Add(path); err != nil {
				w.logger.Warn("watching new directory", "path", path, "error", err)
			}
			return
		}
		w.scheduleIngest(ctx, path)

	case event.Op.Has(fsnotify.Write):
		w.scheduleIngest(ctx, path)

	case event.Op.Has(fsnotify.Remove), event.Op.Has(fsnotify.Rename):
		if !document.Supported(path) {
			return
		}
		if _, err := w.ingestor.store.DeleteBySource(ctx, path); err != nil {
			w.logger.Warn("removing chunks of deleted file", "path", path, "error", err)
		} else {
			w.logger.Info("removed chunks of deleted file", "path", path)
		}
	}
}

// scheduleIngest (re)arms the per-path debounce timer.
func (w *Watcher) scheduleIngest(ctx context.Context, path string) {
	if !document.Supported(path) {
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if timer, ok := w.timers[path]; ok {
		timer.Stop()
	}
	w.timers[path] = time.AfterFunc(w.debounce, func() {
		w.mu.Lock()
		delete(w.timers, path)
		w.mu.Unlock()

		if ctx.Err() != nil {
			return
		}
		if _, err := w.ingestor.IngestFile(ctx, path); err != nil {
			w.logger.Warn("auto-ingesting file", "path", path, "error", err)
		}
	})
}

func (w *Watcher) stopTimers() {
	w.mu.Lock()
	defer w.mu.Unlock()
	for path, timer := range w.timers {
		timer.Stop()
		delete(w.timers, path)
	}
}
