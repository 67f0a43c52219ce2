package rpc

import (
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
)

// daemonLockName is the file a running daemon holds an exclusive flock on
// for the lifetime of the process; its presence (lock held) vs. absence
// distinguishes "daemon running" from "stale socket left by a crash" without
// needing to dial the socket first.
const daemonLockName = "daemon.lock"

// TryDaemonLock reports whether a daemon is currently holding the lock file
// under dir. It never blocks: a failed non-blocking TryLock means someone
// else (the daemon) already holds it, which is the "running" case.
func TryDaemonLock(dir string) (running bool, err error) {
	return tryDaemonLock(dir)
}

func tryDaemonLock(dir string) (running bool, err error) {
	lockPath := filepath.Join(dir, daemonLockName)
	if _, statErr := os.Stat(lockPath); statErr != nil {
		return false, nil
	}

	lock := flock.New(lockPath)
	locked, err := lock.TryLock()
	if err != nil {
		return false, err
	}
	if locked {
		_ = lock.Unlock()
		return false, nil
	}
	return true, nil
}

// AcquireDaemonLock is called by the daemon itself on startup; the returned
// *flock.Flock must be held (and Close()'d on shutdown) for the process
// lifetime so TryDaemonLock can observe it.
func AcquireDaemonLock(dir string) (*flock.Flock, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, err
	}
	lockPath := filepath.Join(dir, daemonLockName)
	lock := flock.New(lockPath)
	locked, err := lock.TryLock()
	if err != nil {
		return nil, err
	}
	if !locked {
		return nil, os.ErrExist
	}
	return lock, nil
}
