// Package watcher re-imports the sources file when it changes on disk.
package watcher

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/custodia-labs/lexindex/internal/core/domain"
	"github.com/custodia-labs/lexindex/internal/logger"
)

// DefaultDebounce coalesces the burst of events an editor save produces.
const DefaultDebounce = 500 * time.Millisecond

// Importer loads sources from a YAML file.
type Importer interface {
	Import(ctx context.Context, path string) ([]domain.Source, error)
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithDebounce sets the quiet period before a reload.
func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) {
		if d > 0 {
			w.debounce = d
		}
	}
}

// WithOnReload registers a callback run after every reload attempt.
func WithOnReload(fn func([]domain.Source, error)) Option {
	return func(w *Watcher) { w.onReload = fn }
}

// Watcher watches one sources file. The parent directory is watched so
// that editors replacing the file by rename are still seen.
type Watcher struct {
	path     string
	importer Importer
	debounce time.Duration
	onReload func([]domain.Source, error)

	mu      sync.Mutex
	watcher *fsnotify.Watcher
}

// New creates a watcher for path.
func New(path string, importer Importer, opts ...Option) (*Watcher, error) {
	if importer == nil {
		return nil, errors.New("watcher: importer is required")
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("watcher: resolve %s: %w", path, err)
	}
	w := &Watcher{path: abs, importer: importer, debounce: DefaultDebounce}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// Path returns the watched file.
func (w *Watcher) Path() string { return w.path }

// Run imports the file once, then re-imports it after each change until
// ctx is cancelled. Import errors are logged and do not stop the watch.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("watcher: %w", err)
	}
	if err := fw.Add(filepath.Dir(w.path)); err != nil {
		fw.Close()
		return fmt.Errorf("watcher: watch %s: %w", filepath.Dir(w.path), err)
	}
	w.mu.Lock()
	w.watcher = fw
	w.mu.Unlock()
	defer w.Close()

	w.reload(ctx)

	var timer *time.Timer
	var fire <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return nil
		case event, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if !w.handleEvent(event) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				timer.Reset(w.debounce)
			}
			fire = timer.C
		case <-fire:
			fire = nil
			w.reload(ctx)
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			logger.Warn("watcher: %v", err)
		}
	}
}

// handleEvent reports whether an event should trigger a reload.
// Removal is ignored: sources are never deleted by a missing file.
func (w *Watcher) handleEvent(event fsnotify.Event) bool {
	if filepath.Clean(event.Name) != w.path {
		return false
	}
	return event.Op.Has(fsnotify.Create) || event.Op.Has(fsnotify.Write)
}

func (w *Watcher) reload(ctx context.Context) {
	sources, err := w.importer.Import(ctx, w.path)
	if err != nil {
		logger.Warn("watcher: import %s: %v", w.path, err)
	} else {
		logger.Info("Imported %d sources from %s", len(sources), w.path)
	}
	if w.onReload != nil {
		w.onReload(sources, err)
	}
}

// Close stops the underlying file watcher.
func (w *Watcher) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.watcher == nil {
		return nil
	}
	err := w.watcher.Close()
	w.watcher = nil
	return err
}
