package watch

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestRelevant(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "symbols.yaml")
	w := New(target, 0, nil)

	tests := []struct {
		name     string
		file     string
		op       fsnotify.Op
		expected bool
	}{
		{"write", target, fsnotify.Write, true},
		{"create", target, fsnotify.Create, true},
		{"rename over", target, fsnotify.Rename, true},
		{"chmod only", target, fsnotify.Chmod, false},
		{"remove", target, fsnotify.Remove, false},
		{"other file", filepath.Join(dir, "other.yaml"), fsnotify.Write, false},
		{"editor swap file", filepath.Join(dir, ".symbols.yaml.swp"), fsnotify.Write, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			event := fsnotify.Event{Name: tt.file, Op: tt.op}
			assert.Equal(t, tt.expected, w.relevant(event))
		})
	}
}

func TestNew_DefaultDebounce(t *testing.T) {
	w := New("symbols.yaml", 0, nil)
	assert.Equal(t, DefaultDebounce, w.debounce)
}

// runWatcher starts w and returns a stop function that waits for Run to return
func runWatcher(t *testing.T, w *Watcher) func() {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	return func() {
		cancel()
		select {
		case err := <-done:
			assert.NoError(t, err)
		case <-time.After(5 * time.Second):
			t.Fatal("watcher did not stop")
		}
	}
}

func TestWatcher_DebouncesWrites(t *testing.T) {
	defer goleak.VerifyNone(t)

	dir := t.TempDir()
	target := filepath.Join(dir, "symbols.yaml")
	require.NoError(t, os.WriteFile(target, []byte("symbols: []\n"), 0644))

	var rebuilds atomic.Int32
	rebuilt := make(chan error, 10)
	w := New(target, 100*time.Millisecond, func(ctx context.Context) error {
		rebuilds.Add(1)
		return nil
	})
	w.OnRebuild = func(err error) { rebuilt <- err }

	stop := runWatcher(t, w)
	defer stop()

	// Give the watcher time to register the directory
	time.Sleep(100 * time.Millisecond)

	for i := 0; i < 5; i++ {
		require.NoError(t, os.WriteFile(target, []byte("symbols: []\n# edit\n"), 0644))
		time.Sleep(10 * time.Millisecond)
	}

	select {
	case err := <-rebuilt:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("no rebuild after writes")
	}

	// No further rebuilds for the same burst
	time.Sleep(300 * time.Millisecond)
	assert.Equal(t, int32(1), rebuilds.Load())
}

func TestWatcher_IgnoresOtherFiles(t *testing.T) {
	defer goleak.VerifyNone(t)

	dir := t.TempDir()
	target := filepath.Join(dir, "symbols.yaml")
	require.NoError(t, os.WriteFile(target, []byte("symbols: []\n"), 0644))

	var rebuilds atomic.Int32
	w := New(target, 50*time.Millisecond, func(ctx context.Context) error {
		rebuilds.Add(1)
		return nil
	})

	stop := runWatcher(t, w)
	time.Sleep(100 * time.Millisecond)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0644))
	time.Sleep(300 * time.Millisecond)
	stop()

	assert.Zero(t, rebuilds.Load())
}

func TestWatcher_RebuildErrorKeepsWatching(t *testing.T) {
	defer goleak.VerifyNone(t)

	dir := t.TempDir()
	target := filepath.Join(dir, "symbols.yaml")
	require.NoError(t, os.WriteFile(target, []byte("symbols: []\n"), 0644))

	buildErr := errors.New("bad manifest")
	var calls atomic.Int32
	rebuilt := make(chan error, 10)
	w := New(target, 50*time.Millisecond, func(ctx context.Context) error {
		if calls.Add(1) == 1 {
			return buildErr
		}
		return nil
	})
	w.OnRebuild = func(err error) { rebuilt <- err }

	stop := runWatcher(t, w)
	defer stop()
	time.Sleep(100 * time.Millisecond)

	waitRebuild := func() error {
		select {
		case err := <-rebuilt:
			return err
		case <-time.After(5 * time.Second):
			t.Fatal("no rebuild")
			return nil
		}
	}

	require.NoError(t, os.WriteFile(target, []byte("broken"), 0644))
	assert.ErrorIs(t, waitRebuild(), buildErr)

	require.NoError(t, os.WriteFile(target, []byte("symbols: []\n"), 0644))
	assert.NoError(t, waitRebuild())
}

func TestWatcher_MissingDirectory(t *testing.T) {
	w := New(filepath.Join(t.TempDir(), "missing", "symbols.yaml"), 0, nil)
	err := w.Run(context.Background())
	assert.Error(t, err)
}
