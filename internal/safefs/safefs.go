// Package safefs wraps filesystem calls that can block forever on a dead
// mount (stale NFS, hung USB bridge) so callers stop waiting after a timeout.
package safefs

import (
	"context"
	"errors"
	"fmt"
	"os"
	"syscall"
	"time"
)

var (
	osReadFile    = os.ReadFile
	osReadDir     = os.ReadDir
	syscallStatfs = syscall.Statfs
)

// ErrTimeout classifies operations that did not complete in time.
var ErrTimeout = errors.New("filesystem operation timed out")

// TimeoutError is returned when an operation exceeds its allowed duration.
// The underlying kernel call is not cancelled; only the wait stops.
type TimeoutError struct {
	Op      string
	Path    string
	Timeout time.Duration
}

func (e *TimeoutError) Error() string {
	if e == nil {
		return ErrTimeout.Error()
	}
	if e.Timeout > 0 {
		return fmt.Sprintf("%s %s: timeout after %s", e.Op, e.Path, e.Timeout)
	}
	return fmt.Sprintf("%s %s: timeout", e.Op, e.Path)
}

func (e *TimeoutError) Unwrap() error { return ErrTimeout }

// Usage is the capacity of a mounted filesystem in bytes. Avail is what an
// unprivileged user can still write, Used excludes reserved blocks.
type Usage struct {
	Total uint64
	Used  uint64
	Avail uint64
}

// Percent returns the df-style used percentage, rounded up:
// used / (used + avail).
func (u Usage) Percent() int {
	denom := u.Used + u.Avail
	if denom == 0 {
		return 0
	}
	return int((u.Used*100 + denom - 1) / denom)
}

func effectiveTimeout(ctx context.Context, timeout time.Duration) time.Duration {
	if timeout <= 0 {
		return 0
	}
	if deadline, ok := ctx.Deadline(); ok {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return 0
		}
		if remaining < timeout {
			return remaining
		}
	}
	return timeout
}

func run[T any](ctx context.Context, op, path string, timeout time.Duration, fn func() (T, error)) (T, error) {
	var zero T
	if err := ctx.Err(); err != nil {
		return zero, err
	}
	timeout = effectiveTimeout(ctx, timeout)
	if timeout <= 0 {
		return fn()
	}

	type result struct {
		val T
		err error
	}
	ch := make(chan result, 1)
	go func() {
		val, err := fn()
		ch <- result{val: val, err: err}
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case r := <-ch:
		return r.val, r.err
	case <-ctx.Done():
		return zero, ctx.Err()
	case <-timer.C:
		return zero, &TimeoutError{Op: op, Path: path, Timeout: timeout}
	}
}

// ReadFile reads a whole file, giving up after timeout.
func ReadFile(ctx context.Context, path string, timeout time.Duration) ([]byte, error) {
	return run(ctx, "read", path, timeout, func() ([]byte, error) {
		return osReadFile(path)
	})
}

// ReadDir lists a directory, giving up after timeout.
func ReadDir(ctx context.Context, path string, timeout time.Duration) ([]os.DirEntry, error) {
	return run(ctx, "readdir", path, timeout, func() ([]os.DirEntry, error) {
		return osReadDir(path)
	})
}

// Statfs returns the capacity of the filesystem mounted at path.
func Statfs(ctx context.Context, path string, timeout time.Duration) (Usage, error) {
	return run(ctx, "statfs", path, timeout, func() (Usage, error) {
		var st syscall.Statfs_t
		if err := syscallStatfs(path, &st); err != nil {
			return Usage{}, err
		}
		bsize := uint64(st.Bsize)
		total := st.Blocks * bsize
		free := st.Bfree * bsize
		return Usage{
			Total: total,
			Used:  total - free,
			Avail: st.Bavail * bsize,
		}, nil
	})
}
