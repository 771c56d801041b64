package catalog

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// unlockLock is a test helper that unlocks and logs any error
func unlockLock(t *testing.T, lock *FileLock) {
	t.Helper()
	if err := lock.Unlock(); err != nil {
		t.Logf("Warning: Unlock failed: %v", err)
	}
}

func TestFileLock_TryLock_Success(t *testing.T) {
	lock := NewFileLock(filepath.Join(t.TempDir(), "test.lock"))
	defer unlockLock(t, lock)

	acquired, err := lock.TryLock()
	require.NoError(t, err)
	assert.True(t, acquired)
	assert.True(t, lock.Held())
}

func TestFileLock_TryLock_AlreadyHeld(t *testing.T) {
	lockPath := filepath.Join(t.TempDir(), "test.lock")

	lock1 := NewFileLock(lockPath)
	acquired, err := lock1.TryLock()
	require.NoError(t, err)
	require.True(t, acquired)
	defer unlockLock(t, lock1)

	lock2 := NewFileLock(lockPath)
	acquired, err = lock2.TryLock()
	require.NoError(t, err)
	if !assert.False(t, acquired, "second acquisition should fail") {
		unlockLock(t, lock2)
	}
	assert.False(t, lock2.Held())
}

func TestFileLock_Wait_Free(t *testing.T) {
	lock := NewFileLock(filepath.Join(t.TempDir(), "test.lock"))
	defer unlockLock(t, lock)

	require.NoError(t, lock.Wait(context.Background(), time.Second))
	assert.True(t, lock.Held())
}

func TestFileLock_Wait_Timeout(t *testing.T) {
	lockPath := filepath.Join(t.TempDir(), "test.lock")

	holder := NewFileLock(lockPath)
	_, err := holder.TryLock()
	require.NoError(t, err)
	defer unlockLock(t, holder)

	waiter := NewFileLock(lockPath)
	start := time.Now()
	err = waiter.Wait(context.Background(), 100*time.Millisecond)
	require.ErrorIs(t, err, ErrLockTimeout)
	assert.GreaterOrEqual(t, time.Since(start), 100*time.Millisecond, "returned too early")
	assert.False(t, waiter.Held())
}

func TestFileLock_Wait_AcquiresAfterRelease(t *testing.T) {
	lockPath := filepath.Join(t.TempDir(), "test.lock")

	holder := NewFileLock(lockPath)
	_, err := holder.TryLock()
	require.NoError(t, err)

	go func() {
		time.Sleep(50 * time.Millisecond)
		_ = holder.Unlock()
	}()

	waiter := NewFileLock(lockPath)
	defer unlockLock(t, waiter)
	require.NoError(t, waiter.Wait(context.Background(), 5*time.Second))
}

func TestFileLock_Wait_Cancellation(t *testing.T) {
	lockPath := filepath.Join(t.TempDir(), "test.lock")

	holder := NewFileLock(lockPath)
	_, err := holder.TryLock()
	require.NoError(t, err)
	defer unlockLock(t, holder)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	waiter := NewFileLock(lockPath)
	require.ErrorIs(t, waiter.Wait(ctx, 10*time.Second), context.Canceled)
	assert.False(t, waiter.Held())
}

func TestFileLock_Unlock_NoOp(t *testing.T) {
	lock := NewFileLock(filepath.Join(t.TempDir(), "test.lock"))
	assert.NoError(t, lock.Unlock(), "unlock of an unlocked lock is a no-op")

	_, err := lock.TryLock()
	require.NoError(t, err)
	for range 2 {
		assert.NoError(t, lock.Unlock())
	}
}

func TestFileLock_CreatesDirectories(t *testing.T) {
	lockPath := filepath.Join(t.TempDir(), "nested", "dir", "test.lock")
	lock := NewFileLock(lockPath)
	defer unlockLock(t, lock)

	acquired, err := lock.TryLock()
	require.NoError(t, err)
	require.True(t, acquired)
	assert.Equal(t, lockPath, lock.Path())
}

func TestFileLock_ConcurrentGoroutines(t *testing.T) {
	lockPath := filepath.Join(t.TempDir(), "test.lock")

	var (
		mu      sync.Mutex
		holders int
		maxSeen int
		wg      sync.WaitGroup
	)
	for range 5 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			lock := NewFileLock(lockPath)
			if !assert.NoError(t, lock.Wait(context.Background(), 10*time.Second)) {
				return
			}
			mu.Lock()
			holders++
			maxSeen = max(maxSeen, holders)
			mu.Unlock()

			time.Sleep(10 * time.Millisecond)

			mu.Lock()
			holders--
			mu.Unlock()
			_ = lock.Unlock()
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, maxSeen, "at most one holder at a time")
}
