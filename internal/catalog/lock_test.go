package catalog

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestLockMechanism(t *testing.T) {
	lockPath := filepath.Join(t.TempDir(), "search", "out.lock")

	t.Run("acquire and release lock", func(t *testing.T) {
		os.Remove(lockPath)
		lock := NewLock(lockPath)

		if err := lock.Acquire(context.Background()); err != nil {
			t.Fatalf("Failed to acquire lock: %v", err)
		}

		data, err := os.ReadFile(lockPath)
		if err != nil {
			t.Fatalf("Lock file not found: %v", err)
		}
		pid, err := strconv.Atoi(string(data))
		if err != nil {
			t.Fatalf("Invalid PID in lock file: %v", err)
		}
		if pid != os.Getpid() {
			t.Errorf("Lock has wrong PID: got %d, want %d", pid, os.Getpid())
		}

		if err := lock.Release(); err != nil {
			t.Fatalf("Failed to release lock: %v", err)
		}
		if _, err := os.Stat(lockPath); !os.IsNotExist(err) {
			t.Error("Lock file should be removed after release")
		}
	})

	t.Run("detect stale lock", func(t *testing.T) {
		os.Remove(lockPath)

		// PID that is not running
		stalePID := 99999
		if err := os.WriteFile(lockPath, []byte(strconv.Itoa(stalePID)), 0644); err != nil {
			t.Fatalf("Failed to create stale lock: %v", err)
		}

		lock := NewLock(lockPath)
		if err := lock.Acquire(context.Background()); err != nil {
			t.Fatalf("Failed to acquire lock after stale lock: %v", err)
		}

		data, _ := os.ReadFile(lockPath)
		pid, _ := strconv.Atoi(string(data))
		if pid != os.Getpid() {
			t.Errorf("Expected our PID after cleaning stale lock, got %d", pid)
		}
		lock.Release()
	})

	t.Run("corrupted lock file", func(t *testing.T) {
		if err := os.WriteFile(lockPath, []byte("not-a-pid"), 0644); err != nil {
			t.Fatalf("Failed to create lock: %v", err)
		}

		lock := NewLock(lockPath)
		if err := lock.Acquire(context.Background()); err != nil {
			t.Fatalf("Failed to acquire lock over corrupted file: %v", err)
		}
		lock.Release()
	})

	t.Run("not reentrant", func(t *testing.T) {
		os.Remove(lockPath)
		lock := NewLock(lockPath)

		if err := lock.Acquire(context.Background()); err != nil {
			t.Fatalf("Failed to acquire lock: %v", err)
		}
		defer lock.Release()

		// Our own PID is running, so a second holder waits and times out
		err := NewLock(lockPath).WithTimeout(100*time.Millisecond, 20*time.Millisecond).Acquire(context.Background())
		if !errors.Is(err, ErrLocked) {
			t.Fatalf("second Acquire() error = %v, want ErrLocked", err)
		}
	})

	t.Run("concurrent acquire has one winner at a time", func(t *testing.T) {
		os.Remove(lockPath)

		const workers = 8
		var holders, maxHolders atomic.Int32
		var wg sync.WaitGroup
		for i := 0; i < workers; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				lock := NewLock(lockPath).WithTimeout(10*time.Second, 5*time.Millisecond)
				if err := lock.Acquire(context.Background()); err != nil {
					t.Errorf("Acquire() error = %v", err)
					return
				}
				n := holders.Add(1)
				for {
					m := maxHolders.Load()
					if n <= m || maxHolders.CompareAndSwap(m, n) {
						break
					}
				}
				time.Sleep(5 * time.Millisecond)
				holders.Add(-1)
				lock.Release()
			}()
		}
		wg.Wait()

		if got := maxHolders.Load(); got != 1 {
			t.Errorf("lock held by %d goroutines at once, want 1", got)
		}
	})

	t.Run("release leaves foreign lock", func(t *testing.T) {
		if err := os.WriteFile(lockPath, []byte("1"), 0644); err != nil {
			t.Fatalf("Failed to create lock: %v", err)
		}
		defer os.Remove(lockPath)

		if err := NewLock(lockPath).Release(); err != nil {
			t.Fatalf("Release() error = %v", err)
		}
		if _, err := os.Stat(lockPath); err != nil {
			t.Error("Lock owned by another PID should not be removed")
		}
	})

	t.Run("timeout on held lock", func(t *testing.T) {
		// PID 1 always exists on Unix
		if err := os.WriteFile(lockPath, []byte("1"), 0644); err != nil {
			t.Fatalf("Failed to create lock: %v", err)
		}
		defer os.Remove(lockPath)
		if !isProcessRunning(1) {
			t.Skip("PID 1 not visible on this platform")
		}

		lock := NewLock(lockPath).WithTimeout(150*time.Millisecond, 50*time.Millisecond)
		start := time.Now()
		err := lock.Acquire(context.Background())
		elapsed := time.Since(start)

		if !errors.Is(err, ErrLocked) {
			t.Fatalf("Acquire() error = %v, want ErrLocked", err)
		}
		if elapsed < 150*time.Millisecond || elapsed > 2*time.Second {
			t.Errorf("Expected timeout of ~150ms, got %v", elapsed)
		}
	})

	t.Run("context cancelled while waiting", func(t *testing.T) {
		if err := os.WriteFile(lockPath, []byte("1"), 0644); err != nil {
			t.Fatalf("Failed to create lock: %v", err)
		}
		defer os.Remove(lockPath)
		if !isProcessRunning(1) {
			t.Skip("PID 1 not visible on this platform")
		}

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		err := NewLock(lockPath).WithTimeout(time.Minute, 10*time.Millisecond).Acquire(ctx)
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Acquire() error = %v, want context.Canceled", err)
		}
	})

	t.Run("is process running", func(t *testing.T) {
		if !isProcessRunning(os.Getpid()) {
			t.Error("Our own process should be detected as running")
		}
		if isProcessRunning(99999) {
			t.Error("Non-existent process should not be detected as running")
		}
	})
}
