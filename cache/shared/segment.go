// Package shared implements the cross-process shared-memory cache of
// C6: a minimal perfect hash built once over the immutable
// high-frequency k-mer set (github.com/opencoff/go-bbhash), laid over a
// named temp-file segment mapped MAP_SHARED by every attaching process
// (github.com/edsrzf/mmap-go) — Go has no first-class anonymous shared
// memory primitive, so a named file mmap'd by multiple processes is the
// substitute, following the same pattern the pack's go-bbhash itself
// uses for its own offset table ("This is mmap'd into the process").
package shared

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/edsrzf/mmap-go"
	"github.com/opencoff/go-bbhash"

	"github.com/kortschak/kmersig/cache/cachekey"
)

// ErrCacheKeyMismatch is returned by Attach when the segment's recorded
// cache key does not match the attaching process's current
// configuration (spec §4.6 "attach verifies the tuple matches the
// current configuration and refuses mismatched attachment").
var ErrCacheKeyMismatch = errors.New("shared: cache key mismatch")

// DefaultGamma is the load factor passed to bbhash.New when building a
// segment; higher values build faster at the cost of a larger index.
const DefaultGamma = 2.0

var magic = [4]byte{'K', 'S', 'S', 'G'}

// headerSize is the fixed-width preamble: magic, cache-key fingerprint,
// key count, and the byte length of the marshaled hash index that
// follows it.
const headerSize = 4 + 8 + 8 + 8

// Segment is an attached view of a shared high-frequency k-mer set. The
// zero value is not usable; build one with Build or attach an existing
// one with Attach.
type Segment struct {
	f    *os.File
	m    mmap.MMap
	bb   *bbhash.BBHash
	n    uint64
	keys int // byte offset of the key-identity array within m
}

// Build constructs a new shared segment at path containing keys, a
// minimal perfect hash over them, and the cache key that governs its
// validity (spec §4.6). gamma is the bbhash load factor; DefaultGamma
// is used if gamma <= 0. The creator should Attach its own path after
// Build to obtain a usable Segment, mirroring every other attacher.
func Build(path string, key cachekey.Key, keys []uint64, gamma float64) error {
	if gamma <= 0 {
		gamma = DefaultGamma
	}
	bb, err := bbhash.New(gamma, keys)
	if err != nil {
		return fmt.Errorf("shared: build minimal perfect hash: %w", err)
	}

	var index bytes.Buffer
	if err := bb.MarshalBinary(&index); err != nil {
		return fmt.Errorf("shared: marshal minimal perfect hash: %w", err)
	}

	// Identity is verified at lookup time because an MPH returns a
	// valid-looking index for non-member keys too; storing the original
	// key at its MPH slot lets Lookup confirm membership rather than
	// trusting a false positive (spec §4.6: "identity hashing... raw
	// k-mer integer keys with no additional hashing step beyond what
	// bbhash itself performs").
	ordered := make([]byte, len(keys)*8)
	for _, k := range keys {
		i := bb.Find(k)
		binary.BigEndian.PutUint64(ordered[i*8:i*8+8], k)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("shared: create segment: %w", err)
	}
	defer f.Close()

	var hdr [headerSize]byte
	copy(hdr[0:4], magic[:])
	binary.BigEndian.PutUint64(hdr[4:12], key.Hash())
	binary.BigEndian.PutUint64(hdr[12:20], uint64(len(keys)))
	binary.BigEndian.PutUint64(hdr[20:28], uint64(index.Len()))

	for _, chunk := range [][]byte{hdr[:], index.Bytes(), ordered} {
		if _, err := f.Write(chunk); err != nil {
			return fmt.Errorf("shared: write segment: %w", err)
		}
	}
	return nil
}

// Attach maps the segment at path and verifies it was built for key,
// registering a process-wide exit callback that detaches every attached
// segment on SIGINT/SIGTERM (spec §4.6: "An exit callback is registered
// once per process to ensure detach is always invoked even on abnormal
// termination").
func Attach(path string, key cachekey.Key) (*Segment, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("shared: open segment: %w", err)
	}
	m, err := mmap.Map(f, mmap.RDONLY, 0)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("shared: map segment: %w", err)
	}
	if len(m) < headerSize || !bytes.Equal(m[0:4], magic[:]) {
		m.Unmap()
		f.Close()
		return nil, fmt.Errorf("shared: %s is not a kmersig shared segment", path)
	}
	gotHash := binary.BigEndian.Uint64(m[4:12])
	if wantHash := key.Hash(); gotHash != wantHash {
		m.Unmap()
		f.Close()
		return nil, fmt.Errorf("%w: fingerprint %d, want %d", ErrCacheKeyMismatch, gotHash, wantHash)
	}
	n := binary.BigEndian.Uint64(m[12:20])
	indexLen := binary.BigEndian.Uint64(m[20:28])

	bb, err := bbhash.Read(bytes.NewReader(m[headerSize : headerSize+int(indexLen)]))
	if err != nil {
		m.Unmap()
		f.Close()
		return nil, fmt.Errorf("shared: read minimal perfect hash: %w", err)
	}

	seg := &Segment{f: f, m: m, bb: bb, n: n, keys: headerSize + int(indexLen)}
	registerForExitDetach(seg)
	return seg, nil
}

// Lookup reports whether kmer is a member of the attached segment's
// high-frequency set. It is safe for concurrent use by multiple
// goroutines; readers never block (spec §5: "readers take shared
// locks, builders take exclusive", satisfied trivially here since the
// segment is immutable once built, so a read needs no lock at all).
func (s *Segment) Lookup(kmer uint64) bool {
	i := s.bb.Find(kmer)
	if i >= s.n {
		return false
	}
	off := s.keys + int(i)*8
	return binary.BigEndian.Uint64(s.m[off:off+8]) == kmer
}

// Len returns the number of k-mers in the attached segment.
func (s *Segment) Len() int { return int(s.n) }

// Detach unpins this process's mapping of the segment (spec §4.6's
// "Detach protocol"). It does not remove the underlying file; call
// Destroy for that, and only from the segment's creator.
func (s *Segment) Detach() error {
	unregisterExitDetach(s)
	if err := s.m.Unmap(); err != nil {
		s.f.Close()
		return fmt.Errorf("shared: unmap segment: %w", err)
	}
	return s.f.Close()
}

// Destroy detaches and unlinks the segment file. Only the process that
// called Build for this path should call Destroy; every other attacher
// should call Detach (spec §4.6: "only the creator destroys the hash
// table and unpins the segment").
func (s *Segment) Destroy(path string) error {
	if err := s.Detach(); err != nil {
		return err
	}
	return os.Remove(path)
}

var (
	exitOnce     sync.Once
	exitMu       sync.Mutex
	exitAttached = make(map[*Segment]struct{})
)

// registerForExitDetach adds seg to the set of segments detached by the
// process-wide signal handler, installing that handler on first use.
func registerForExitDetach(seg *Segment) {
	exitOnce.Do(installExitHandler)
	exitMu.Lock()
	exitAttached[seg] = struct{}{}
	exitMu.Unlock()
}

func unregisterExitDetach(seg *Segment) {
	exitMu.Lock()
	delete(exitAttached, seg)
	exitMu.Unlock()
}

// installExitHandler catches SIGINT/SIGTERM, detaches every segment
// this process has attached, then re-raises the default disposition so
// the process still terminates the way it would have without this
// package involved.
func installExitHandler() {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-ch
		exitMu.Lock()
		for seg := range exitAttached {
			seg.m.Unmap()
			seg.f.Close()
		}
		exitAttached = make(map[*Segment]struct{})
		exitMu.Unlock()

		signal.Stop(ch)
		if p, err := os.FindProcess(os.Getpid()); err == nil {
			p.Signal(sig)
		}
	}()
}
