package catalog

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"syscall"
	"time"
)

// ErrLockTimeout is returned by Wait when the load lock is not released in time.
var ErrLockTimeout = errors.New("timed out waiting for the load lock")

const (
	minLockPoll = 10 * time.Millisecond
	maxLockPoll = 500 * time.Millisecond
)

// FileLock is an exclusive flock(2) lock electing the single process that
// loads a data source into a shared store. The kernel drops the lock when
// the holding process exits.
type FileLock struct {
	path string
	file *os.File
}

// NewFileLock creates a lock on path. Nothing is touched until the lock is taken.
func NewFileLock(path string) *FileLock {
	return &FileLock{path: path}
}

// TryLock takes the lock if it is free. It reports false, without an error,
// when another process holds it.
func (l *FileLock) TryLock() (bool, error) {
	if err := l.open(); err != nil {
		return false, err
	}

	held, err := l.flock()
	if err != nil || !held {
		l.release()
	}
	return held, err
}

// Wait blocks until the lock is taken, the timeout expires or ctx is done.
// The poll interval doubles between attempts up to half a second.
func (l *FileLock) Wait(ctx context.Context, timeout time.Duration) error {
	if err := l.open(); err != nil {
		return err
	}

	deadline := time.NewTimer(timeout)
	defer deadline.Stop()

	poll := minLockPoll
	for {
		held, err := l.flock()
		if err != nil {
			l.release()
			return err
		}
		if held {
			return nil
		}

		select {
		case <-ctx.Done():
			l.release()
			return ctx.Err()
		case <-deadline.C:
			l.release()
			return ErrLockTimeout
		case <-time.After(poll):
			poll = min(poll*2, maxLockPoll)
		}
	}
}

// Unlock releases the lock. Unlocking a lock that is not held is a no-op.
func (l *FileLock) Unlock() error {
	if l.file == nil {
		return nil
	}

	err := syscall.Flock(int(l.file.Fd()), syscall.LOCK_UN)
	closeErr := l.file.Close()
	l.file = nil

	if err != nil {
		return fmt.Errorf("failed to release load lock: %w", err)
	}
	if closeErr != nil {
		return fmt.Errorf("failed to close load lock: %w", closeErr)
	}
	return nil
}

// Held reports whether this instance holds the lock.
func (l *FileLock) Held() bool {
	return l.file != nil
}

// Path returns the lock file path.
func (l *FileLock) Path() string {
	return l.path
}

// flock makes one non-blocking attempt on the open lock file.
func (l *FileLock) flock() (bool, error) {
	err := syscall.Flock(int(l.file.Fd()), syscall.LOCK_EX|syscall.LOCK_NB)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, syscall.EWOULDBLOCK):
		return false, nil
	default:
		return false, fmt.Errorf("flock failed: %w", err)
	}
}

func (l *FileLock) open() error {
	if l.file != nil {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(l.path), 0755); err != nil {
		return fmt.Errorf("failed to create lock directory: %w", err)
	}
	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return fmt.Errorf("failed to open lock file: %w", err)
	}
	l.file = f
	return nil
}

// release closes the lock file without unlocking, for attempts that never took the lock.
func (l *FileLock) release() {
	if l.file != nil {
		_ = l.file.Close()
		l.file = nil
	}
}
