package engine

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
)

// ErrLocked means another process holds the run. The lock is advisory:
// it guards against concurrent runs of this tool, not against hostile
// writers.
var ErrLocked = errors.New("engine: run is locked")

// lockFile is the advisory lock file name inside a run directory.
const lockFile = "lock"

// Lock is a held run lock. Release it when the run's work is done.
type Lock struct {
	path string
}

// AcquireLock takes the advisory lock for a run. Creation with O_EXCL
// makes acquisition atomic; the file records the holder's pid. A lock
// whose recorded pid no longer names a live process is stale (the
// holder crashed without releasing) and is reclaimed.
func AcquireLock(dataDir, runID string) (*Lock, error) {
	dir := RunDir(dataDir, runID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("engine: create run dir: %w", err)
	}
	path := filepath.Join(dir, lockFile)

	for attempt := 0; attempt < 2; attempt++ {
		f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if err == nil {
			_, werr := f.WriteString(strconv.Itoa(os.Getpid()) + "\n")
			cerr := f.Close()
			if werr != nil || cerr != nil {
				_ = os.Remove(path)
				return nil, fmt.Errorf("engine: write lock: %w", errors.Join(werr, cerr))
			}
			return &Lock{path: path}, nil
		}
		if !os.IsExist(err) {
			return nil, fmt.Errorf("engine: acquire lock: %w", err)
		}

		pid, ok := lockHolder(path)
		if ok && !processAlive(pid) {
			if rmErr := os.Remove(path); rmErr != nil && !os.IsNotExist(rmErr) {
				return nil, fmt.Errorf("engine: remove stale lock: %w", rmErr)
			}
			continue
		}
		holder := "unknown holder"
		if ok {
			holder = fmt.Sprintf("pid %d", pid)
		}
		return nil, fmt.Errorf("%w: run %s held by %s; remove %s if that process is gone", ErrLocked, runID, holder, path)
	}
	return nil, fmt.Errorf("%w: run %s", ErrLocked, runID)
}

// lockHolder reads the pid recorded in a lock file. A lock whose
// content does not parse is treated as held: never reclaim what we
// cannot identify.
func lockHolder(path string) (int, bool) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, false
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil || pid <= 0 {
		return 0, false
	}
	return pid, true
}

// processAlive reports whether pid names a live process. Signal 0
// probes without delivering; EPERM still means the process exists.
func processAlive(pid int) bool {
	p, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	err = p.Signal(syscall.Signal(0))
	return err == nil || errors.Is(err, syscall.EPERM)
}

// Release removes the lock file. Releasing twice is harmless.
func (l *Lock) Release() error {
	if l == nil || l.path == "" {
		return nil
	}
	err := os.Remove(l.path)
	l.path = ""
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("engine: release lock: %w", err)
	}
	return nil
}
