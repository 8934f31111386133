package watcher

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/lexindex/internal/core/domain"
)

type countingImporter struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (c *countingImporter) Import(context.Context, string) ([]domain.Source, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	if c.err != nil {
		return nil, c.err
	}
	return []domain.Source{{ID: "juris-drive"}}, nil
}

func (c *countingImporter) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

func TestNew_RequiresImporter(t *testing.T) {
	_, err := New("sources.yaml", nil)
	assert.Error(t, err)
}

func TestHandleEvent(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sources.yaml")
	w, err := New(path, &countingImporter{})
	require.NoError(t, err)

	tests := []struct {
		name   string
		file   string
		op     fsnotify.Op
		reload bool
	}{
		{name: "write to sources file", file: path, op: fsnotify.Write, reload: true},
		{name: "create sources file", file: path, op: fsnotify.Create, reload: true},
		{name: "write with chmod", file: path, op: fsnotify.Write | fsnotify.Chmod, reload: true},
		{name: "chmod only", file: path, op: fsnotify.Chmod},
		{name: "remove sources file", file: path, op: fsnotify.Remove},
		{name: "rename sources file", file: path, op: fsnotify.Rename},
		{name: "other file in directory", file: filepath.Join(dir, "notes.txt"), op: fsnotify.Write},
		{name: "editor swap file", file: filepath.Join(dir, ".sources.yaml.swp"), op: fsnotify.Create},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.reload, w.handleEvent(fsnotify.Event{Name: tt.file, Op: tt.op}))
		})
	}
}

func TestRun_ImportsOnStartAndOnChange(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sources.yaml")
	require.NoError(t, os.WriteFile(path, []byte("sources: []\n"), 0o644))

	importer := &countingImporter{}
	reloads := make(chan error, 8)
	w, err := New(path, importer,
		WithDebounce(20*time.Millisecond),
		WithOnReload(func(_ []domain.Source, err error) { reloads <- err }))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	select {
	case err := <-reloads:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for initial import")
	}

	require.NoError(t, os.WriteFile(path, []byte("sources:\n  - id: juris-drive\n"), 0o644))

	select {
	case <-reloads:
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for reload after write")
	}
	assert.GreaterOrEqual(t, importer.count(), 2)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("watcher did not stop")
	}
}

func TestRun_ImportErrorsDoNotStopWatch(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sources.yaml")

	importer := &countingImporter{err: errors.New("malformed yaml")}
	reloads := make(chan error, 8)
	w, err := New(path, importer,
		WithDebounce(20*time.Millisecond),
		WithOnReload(func(_ []domain.Source, err error) { reloads <- err }))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = w.Run(ctx) }()

	select {
	case err := <-reloads:
		assert.Error(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for initial import")
	}

	require.NoError(t, os.WriteFile(path, []byte("sources: ["), 0o644))
	select {
	case err := <-reloads:
		assert.Error(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for reload after create")
	}
}

func TestRun_MissingDirectory(t *testing.T) {
	w, err := New(filepath.Join(t.TempDir(), "missing", "sources.yaml"), &countingImporter{})
	require.NoError(t, err)
	assert.Error(t, w.Run(context.Background()))
}
