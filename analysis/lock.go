package analysis

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// datasetLock is the exclusive dataset-level lock serializing concurrent
// analyses of the same (dataset, column) (spec §4.4). Because Stage 1
// and Stage 2 run in separate OS processes rather than goroutines, an
// in-process mutex cannot serve as this lock; a flock(2)-based file
// lock is used instead, the same mechanism embedded single-file stores
// such as modernc.org/kv's lldb backing and the pack's LSM-tree engines
// (darshanime-pebble, AKJUS-bsc-erigon manifests) use for
// process-exclusive ownership of a data directory.
type datasetLock struct {
	f *os.File
}

// lockDataset takes an exclusive, non-blocking lock on path, typically
// a fixed file (datasetLockName) in the parent of the per-run job
// directories, so every run on the same dataset and column contends for
// it. It fails with
// ErrAnalysisInProgress if another process already holds the lock.
func lockDataset(path string) (*datasetLock, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, fmt.Errorf("analysis: open lock file: %w", err)
	}
	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		f.Close()
		if err == unix.EWOULDBLOCK {
			return nil, ErrAnalysisInProgress
		}
		return nil, fmt.Errorf("analysis: flock: %w", err)
	}
	return &datasetLock{f: f}, nil
}

// Unlock releases the lock and closes the underlying file.
func (l *datasetLock) Unlock() error {
	if err := unix.Flock(int(l.f.Fd()), unix.LOCK_UN); err != nil {
		l.f.Close()
		return fmt.Errorf("analysis: unlock: %w", err)
	}
	return l.f.Close()
}

// DatasetLock is the exported handle returned by LockDataset.
type DatasetLock struct {
	*datasetLock
}

// LockDataset takes an exclusive, non-blocking lock on path. It is
// exported for host binaries (cmd/kmersigd) that run Stage 1 over real
// OS worker processes and so build their own job directory outside of
// Coordinator.Run, but still need the same exclusion guarantee Run
// gives every other caller.
func LockDataset(path string) (*DatasetLock, error) {
	l, err := lockDataset(path)
	if err != nil {
		return nil, err
	}
	return &DatasetLock{l}, nil
}

// DatasetLockName returns the lock file name Coordinator.Run uses for
// (dataset, column), so that a host binary's own process-based Stage 1
// contends for the exact same lock a goroutine-based Run would.
func DatasetLockName(dataset, column string) string {
	return datasetLockName(dataset, column)
}
