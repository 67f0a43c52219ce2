package daemon

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gofrs/flock"
)

// RegistryEntry records one running daemon, so tooling can enumerate daemons
// across workspaces without filesystem scanning. Server.Serve does not
// register itself; entries exist only where a caller invokes Register.
type RegistryEntry struct {
	WorktreePath string    `json:"worktree_path"`
	SocketPath   string    `json:"socket_path"`
	DatabasePath string    `json:"database_path"`
	PID          int       `json:"pid"`
	Version      string    `json:"version"`
	StartedAt    time.Time `json:"started_at"`
}

// Registry is the shared ~/.coordctl/registry.json file, guarded by an
// exclusive flock for cross-process read-modify-write safety.
type Registry struct {
	path     string
	lockPath string
}

// NewRegistry opens the registry rooted at ~/.coordctl/registry.json,
// creating the parent directory if needed.
func NewRegistry() (*Registry, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("daemon: resolve home directory: %w", err)
	}
	dir := filepath.Join(home, ".coordctl")
	if err := os.MkdirAll(dir, 0750); err != nil {
		return nil, fmt.Errorf("daemon: create %s: %w", dir, err)
	}
	return &Registry{
		path:     filepath.Join(dir, "registry.json"),
		lockPath: filepath.Join(dir, "registry.lock"),
	}, nil
}

func (r *Registry) withLock(fn func() error) error {
	lock := flock.New(r.lockPath)
	if err := lock.Lock(); err != nil {
		return fmt.Errorf("daemon: lock registry: %w", err)
	}
	defer func() { _ = lock.Unlock() }()
	return fn()
}

func (r *Registry) readLocked() ([]RegistryEntry, error) {
	data, err := os.ReadFile(r.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var entries []RegistryEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		// A corrupted registry just means daemons need rediscovering, not a
		// hard failure.
		return nil, nil
	}
	return entries, nil
}

func (r *Registry) writeLocked(entries []RegistryEntry) error {
	if entries == nil {
		entries = []RegistryEntry{}
	}
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return err
	}

	dir := filepath.Dir(r.path)
	tmp, err := os.CreateTemp(dir, "registry-*.json.tmp")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return err
	}
	return os.Rename(tmpPath, r.path)
}

// Register adds or replaces this workspace/PID's entry.
func (r *Registry) Register(entry RegistryEntry) error {
	return r.withLock(func() error {
		entries, err := r.readLocked()
		if err != nil {
			return err
		}
		filtered := entries[:0]
		for _, e := range entries {
			if e.WorktreePath != entry.WorktreePath && e.PID != entry.PID {
				filtered = append(filtered, e)
			}
		}
		filtered = append(filtered, entry)
		return r.writeLocked(filtered)
	})
}

// Unregister removes the entry for worktreePath/pid.
func (r *Registry) Unregister(worktreePath string, pid int) error {
	return r.withLock(func() error {
		entries, err := r.readLocked()
		if err != nil {
			return err
		}
		filtered := entries[:0]
		for _, e := range entries {
			if e.WorktreePath != worktreePath && e.PID != pid {
				filtered = append(filtered, e)
			}
		}
		return r.writeLocked(filtered)
	})
}

// List returns all registry entries whose process is still alive, pruning
// dead ones from the file as a side effect.
func (r *Registry) List() ([]RegistryEntry, error) {
	var alive []RegistryEntry
	err := r.withLock(func() error {
		entries, err := r.readLocked()
		if err != nil {
			return err
		}
		for _, e := range entries {
			if processAlive(e.PID) {
				alive = append(alive, e)
			}
		}
		if len(alive) != len(entries) {
			return r.writeLocked(alive)
		}
		return nil
	})
	return alive, err
}

func processAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	process, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	// On Unix, FindProcess always succeeds; signal 0 checks liveness without
	// affecting the process.
	return process.Signal(syscall.Signal(0)) == nil
}
