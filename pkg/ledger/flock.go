package ledger

import (
	"fmt"
	"os"
	"syscall"
)

// acquireLock takes an exclusive advisory lock on the ledger's lock
// file, blocking until it is available. The lock file is a sibling of
// active.json rather than active.json itself, so the atomic rename that
// replaces the active set never swaps the locked inode out from under a
// waiter.
func acquireLock(path string) (*os.File, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0600) // #nosec G304 -- path is inside the configured ledger dir
	if err != nil {
		return nil, fmt.Errorf("failed to open lock file %s: %w", path, err)
	}

	if err := syscall.Flock(int(f.Fd()), syscall.LOCK_EX); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("failed to acquire lock %s: %w", path, err)
	}

	return f, nil
}

// releaseLock drops the advisory lock and closes the file. Nil-safe.
func releaseLock(f *os.File) {
	if f == nil {
		return
	}
	_ = syscall.Flock(int(f.Fd()), syscall.LOCK_UN)
	_ = f.Close()
}
