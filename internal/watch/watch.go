package watch

import (
	"context"
	"fmt"
	"log"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce collapses the burst of events a single editor save produces
const DefaultDebounce = 300 * time.Millisecond

// RebuildFunc regenerates derived data after the watched file changed
type RebuildFunc func(ctx context.Context) error

// Watcher reruns a rebuild whenever one file changes.
// The parent directory is watched rather than the file, so editors that save
// by renaming a temp file over the original keep triggering rebuilds.
type Watcher struct {
	path     string
	debounce time.Duration
	rebuild  RebuildFunc

	// OnRebuild, if set, is called after every rebuild attempt
	OnRebuild func(err error)
}

// New creates a watcher for path; debounce <= 0 uses DefaultDebounce
func New(path string, debounce time.Duration, rebuild RebuildFunc) *Watcher {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	return &Watcher{
		path:     filepath.Clean(path),
		debounce: debounce,
		rebuild:  rebuild,
	}
}

// Run blocks until ctx is cancelled. Rebuild errors are logged and do not stop the watcher.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer fw.Close()

	dir := filepath.Dir(w.path)
	if err := fw.Add(dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", dir, err)
	}
	log.Printf("✓ Watching %s for changes", w.path)

	var (
		timer *time.Timer
		fire  <-chan time.Time
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if !w.relevant(event) {
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
			startTime := time.Now()
			err := w.rebuild(ctx)
			if err != nil {
				log.Printf("Warning: Rebuild after change to %s failed: %v", w.path, err)
			} else {
				log.Printf("✓ Rebuilt after change to %s in %v", w.path, time.Since(startTime).Round(time.Millisecond))
			}
			if w.OnRebuild != nil {
				w.OnRebuild(err)
			}

		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			log.Printf("Warning: Watcher error: %v", err)
		}
	}
}

// relevant reports whether event may have changed the contents of the watched file
func (w *Watcher) relevant(event fsnotify.Event) bool {
	if filepath.Clean(event.Name) != w.path {
		return false
	}
	return event.Has(fsnotify.Create) || event.Has(fsnotify.Write) || event.Has(fsnotify.Rename)
}
