package catalog

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

const (
	defaultLockTimeout   = 5 * time.Second // Max time to wait for lock
	defaultLockRetryWait = 500 * time.Millisecond
)

// ErrLocked is returned when another live process holds the lock past the timeout
var ErrLocked = errors.New("search data locked by another process")

// Lock is a PID file guarding a search directory while it is rebuilt.
// A lock whose owning process is gone is treated as stale and removed.
type Lock struct {
	path      string
	timeout   time.Duration
	retryWait time.Duration
}

// NewLock returns a lock stored at path
func NewLock(path string) *Lock {
	return &Lock{path: path, timeout: defaultLockTimeout, retryWait: defaultLockRetryWait}
}

// WithTimeout sets how long Acquire waits for a held lock
func (l *Lock) WithTimeout(timeout, retryWait time.Duration) *Lock {
	l.timeout = timeout
	l.retryWait = retryWait
	return l
}

// Path returns the lock file location
func (l *Lock) Path() string {
	return l.path
}

// isProcessRunning is implemented in platform-specific files:
// - lock_unix.go for Unix/Linux/macOS
// - lock_windows.go for Windows

// cleanStale removes the lock file if the owning process is dead
func (l *Lock) cleanStale() error {
	data, err := os.ReadFile(l.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil // No lock file, nothing to clean
		}
		return fmt.Errorf("failed to read lock file: %w", err)
	}

	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		log.Printf("Warning: Corrupted lock file (invalid PID), removing...")
		return os.Remove(l.path)
	}

	if isProcessRunning(pid) {
		return fmt.Errorf("%w: held by running process %d", ErrLocked, pid)
	}

	log.Printf("Stale lock detected (PID %d not running), cleaning...", pid)
	return os.Remove(l.path)
}

// Acquire takes the lock, waiting up to the timeout while another holder keeps it.
// The lock is not reentrant: a second Acquire from this process waits like any other.
func (l *Lock) Acquire(ctx context.Context) error {
	ourPID := os.Getpid()

	if err := os.MkdirAll(filepath.Dir(l.path), 0755); err != nil {
		return fmt.Errorf("failed to create lock directory: %w", err)
	}

	startTime := time.Now()
	for {
		err := l.create(ourPID)
		if err == nil {
			log.Printf("✓ Lock acquired (PID %d)", ourPID)
			return nil
		}
		if !os.IsExist(err) {
			return fmt.Errorf("failed to create lock file: %w", err)
		}

		err = l.cleanStale()
		if err == nil {
			continue
		}
		if !errors.Is(err, ErrLocked) {
			return err
		}

		elapsed := time.Since(startTime)
		if elapsed >= l.timeout {
			return fmt.Errorf("timeout waiting for lock after %v: %w", elapsed.Round(time.Millisecond), err)
		}

		log.Printf("Search data locked, waiting... (%v elapsed)", elapsed.Round(100*time.Millisecond))
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(l.retryWait):
		}
	}
}

// create publishes a lock file holding pid.
// The PID is written to a private file first and hard-linked into place, so the
// lock never exists without its owner; the link fails if the lock is taken.
func (l *Lock) create(pid int) error {
	tmp, err := os.CreateTemp(filepath.Dir(l.path), filepath.Base(l.path)+".*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.WriteString(strconv.Itoa(pid)); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Link(tmp.Name(), l.path)
}

// Release removes the lock file if this process owns it
func (l *Lock) Release() error {
	data, err := os.ReadFile(l.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil // Lock already removed
		}
		return fmt.Errorf("failed to read lock file: %w", err)
	}

	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err == nil && pid != os.Getpid() {
		log.Printf("Warning: Lock file contains different PID (%d vs %d), not removing", pid, os.Getpid())
		return nil
	}

	if err := os.Remove(l.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove lock file: %w", err)
	}

	log.Printf("✓ Lock released")
	return nil
}
