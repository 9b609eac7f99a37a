//go:build windows

package lock

import (
	"os"

	"golang.org/x/sys/windows"
)

// lockOffset places the locked byte past the owner text so a second
// process can still read who holds the profile.
const lockOffset = 1 << 30

func tryLock(f *os.File) error {
	ol := &windows.Overlapped{Offset: lockOffset}
	return windows.LockFileEx(
		windows.Handle(f.Fd()),
		windows.LOCKFILE_EXCLUSIVE_LOCK|windows.LOCKFILE_FAIL_IMMEDIATELY,
		0, 1, 0, ol,
	)
}
