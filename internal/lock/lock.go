// Package lock keeps two radio clients from driving the same profile at once.
package lock

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// FileName is the lock file created inside a profile directory.
const FileName = "LOCK"

// LockHeldError is returned when another process holds the profile lock.
type LockHeldError struct {
	PID  int
	User string
	Path string
}

func (e *LockHeldError) Error() string {
	if e.User != "" {
		return fmt.Sprintf("profile %q is in use by PID %d (%s)", e.User, e.PID, e.Path)
	}
	return fmt.Sprintf("profile lock held by PID %d (%s)", e.PID, e.Path)
}

// Lock represents an acquired profile lock file.
type Lock struct {
	file *os.File
	path string
}

// Acquire takes an exclusive, non-blocking lock on dir/LOCK and records the
// owner's PID and username in it.
func Acquire(dir, username string) (*Lock, error) {
	lockPath := filepath.Join(dir, FileName)

	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("create profile dir: %w", err)
	}

	f, err := os.OpenFile(lockPath, os.O_CREATE|os.O_RDWR, 0600)
	if err != nil {
		return nil, fmt.Errorf("open lock file: %w", err)
	}

	if err := tryLock(f); err != nil {
		data, _ := os.ReadFile(lockPath)
		owner := parseOwner(string(data))
		_ = f.Close()
		return nil, &LockHeldError{PID: owner.pid, User: owner.user, Path: lockPath}
	}

	if err := f.Truncate(0); err != nil {
		_ = f.Close()
		return nil, err
	}
	if _, err := f.Seek(0, 0); err != nil {
		_ = f.Close()
		return nil, err
	}
	content := fmt.Sprintf("pid=%d\nuser=%s\ntime=%s\n", os.Getpid(), username, time.Now().UTC().Format(time.RFC3339))
	if _, err := f.WriteString(content); err != nil {
		_ = f.Close()
		return nil, err
	}

	return &Lock{file: f, path: lockPath}, nil
}

// Release releases the lock. Safe to call on nil receiver and more than once.
func (l *Lock) Release() error {
	if l == nil || l.file == nil {
		return nil
	}
	// Windows refuses to remove a file that is still open.
	removed := os.Remove(l.path) == nil
	err := l.file.Close()
	l.file = nil
	if !removed {
		_ = os.Remove(l.path)
	}
	return err
}

type owner struct {
	pid  int
	user string
}

func parseOwner(content string) owner {
	var o owner
	for _, line := range strings.Split(content, "\n") {
		if after, ok := strings.CutPrefix(line, "pid="); ok {
			o.pid, _ = strconv.Atoi(after)
		}
		if after, ok := strings.CutPrefix(line, "user="); ok {
			o.user = after
		}
	}
	return o
}
