package analysis

import (
	"fmt"
	"os"
	"sync/atomic"
	"unsafe"

	"github.com/edsrzf/mmap-go"
)

// BlockCursor hands out the next global block number to claim, per
// spec §4.4 Stage 1: "A shared atomic cursor (next_block) is
// maintained; each worker repeatedly claims the next block via
// fetch-add."
type BlockCursor interface {
	// Next claims and returns the next block number, or ok=false once
	// every block in [0,numBlocks) has been claimed.
	Next() (block int, ok bool)
}

// localCursor is an in-process atomic cursor, sufficient for goroutine
// workers sharing one address space (GoroutineLauncher).
type localCursor struct {
	next      int64
	numBlocks int64
}

func newLocalCursor(numBlocks int) *localCursor {
	return &localCursor{numBlocks: int64(numBlocks)}
}

func (c *localCursor) Next() (int, bool) {
	n := atomic.AddInt64(&c.next, 1) - 1
	if n >= c.numBlocks {
		return 0, false
	}
	return int(n), true
}

// sharedCursor backs the cursor with a memory-mapped file so that real
// forked worker processes, each with its own address space, fetch-add
// the same counter (spec §5: "the block cursor: a single atomic
// u32/u64"). It uses the same github.com/edsrzf/mmap-go dependency the
// shared cache (cache/shared) uses for its segment: a named temp file
// mapped MAP_SHARED substitutes for the anonymous shared memory Go has
// no first-class primitive for.
type sharedCursor struct {
	f         *os.File
	m         mmap.MMap
	numBlocks int64
}

// newSharedCursor creates path as an 8-byte mmap'd counter file, for
// the coordinator process to create before forking workers.
func newSharedCursor(path string, numBlocks int) (*sharedCursor, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, fmt.Errorf("analysis: create block cursor file: %w", err)
	}
	if err := f.Truncate(8); err != nil {
		f.Close()
		return nil, fmt.Errorf("analysis: size block cursor file: %w", err)
	}
	return mapSharedCursor(f, numBlocks)
}

// openSharedCursor attaches to an existing cursor file created by
// newSharedCursor, for a worker process that inherited its path.
func openSharedCursor(path string, numBlocks int) (*sharedCursor, error) {
	f, err := os.OpenFile(path, os.O_RDWR, 0o644)
	if err != nil {
		return nil, fmt.Errorf("analysis: open block cursor file: %w", err)
	}
	return mapSharedCursor(f, numBlocks)
}

func mapSharedCursor(f *os.File, numBlocks int) (*sharedCursor, error) {
	m, err := mmap.Map(f, mmap.RDWR, 0)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("analysis: mmap block cursor: %w", err)
	}
	return &sharedCursor{f: f, m: m, numBlocks: int64(numBlocks)}, nil
}

func (c *sharedCursor) ptr() *int64 {
	return (*int64)(unsafe.Pointer(&c.m[0]))
}

func (c *sharedCursor) Next() (int, bool) {
	n := atomic.AddInt64(c.ptr(), 1) - 1
	if n >= c.numBlocks {
		return 0, false
	}
	return int(n), true
}

// Close unmaps the segment and closes the backing file. The creator
// should additionally remove the file once every worker has detached.
func (c *sharedCursor) Close() error {
	if err := c.m.Unmap(); err != nil {
		c.f.Close()
		return fmt.Errorf("analysis: unmap block cursor: %w", err)
	}
	return c.f.Close()
}

// SharedCursor is an exported handle onto a cross-process block cursor,
// for a host binary (cmd/kmersigd) that launches real OS worker
// processes directly with workerproc rather than through a Launcher:
// a re-exec'd child cannot reach the unexported sharedCursor type
// through a closure the way GoroutineLauncher's workers do, so it needs
// a path-addressable constructor of its own.
type SharedCursor struct {
	*sharedCursor
}

// NewSharedCursor creates the cursor file at path, for the coordinating
// process to call before forking workers.
func NewSharedCursor(path string, numBlocks int) (*SharedCursor, error) {
	c, err := newSharedCursor(path, numBlocks)
	if err != nil {
		return nil, err
	}
	return &SharedCursor{c}, nil
}

// OpenSharedCursor attaches to a cursor file created by NewSharedCursor,
// for a worker process that inherited its path.
func OpenSharedCursor(path string, numBlocks int) (*SharedCursor, error) {
	c, err := openSharedCursor(path, numBlocks)
	if err != nil {
		return nil, err
	}
	return &SharedCursor{c}, nil
}
