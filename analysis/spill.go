package analysis

import (
	"fmt"
	"os"
	"path/filepath"

	"modernc.org/kv"

	"github.com/kortschak/kmersig/internal/store"
)

// Spill is a worker-local on-disk spill store accumulating {k-mer ->
// nrow} during Stage 1 (spec §4.4), adapted from the teacher's
// forward.db/regions.db use of modernc.org/kv in cmd/ins/blast.go and
// cmd/ins/fragment.go: kv.Create/kv.Open with a kv.Options.Compare
// function, and batched BeginTransaction/Commit.
type Spill struct {
	db      *kv.DB
	path    string
	batch   int
	inTx    bool
	pending int
}

// CreateSpill creates a new spill store named name inside dir, flushing
// every batch UPSERTs.
func CreateSpill(dir, name string, batch int) (*Spill, error) {
	path := filepath.Join(dir, name)
	opts := &kv.Options{Compare: store.CompareKmerKeys}
	db, err := kv.Create(path, opts)
	if err != nil {
		return nil, fmt.Errorf("analysis: create spill %s: %w", path, err)
	}
	return &Spill{db: db, path: path, batch: batch}, nil
}

// OpenSpill opens an existing spill store, for Stage 2 merge workers
// that take a previously closed store as their target.
func OpenSpill(path string, batch int) (*Spill, error) {
	opts := &kv.Options{Compare: store.CompareKmerKeys}
	db, err := kv.Open(path, opts)
	if err != nil {
		return nil, fmt.Errorf("analysis: open spill %s: %w", path, err)
	}
	return &Spill{db: db, path: path, batch: batch}, nil
}

// Path returns the spill store's file path.
func (s *Spill) Path() string { return s.path }

// DB exposes the underlying store for merge and threshold-filter
// streaming.
func (s *Spill) DB() *kv.DB { return s.db }

// Add UPSERTs delta into the stored nrow for kmer: read the existing
// count, add delta, write it back, inside a batched transaction (spec
// §4.4: "flushed to the worker's spill store via an UPSERT that adds
// the batch's row-counts to the existing row-counts").
func (s *Spill) Add(kmer uint64, delta int64) error {
	if !s.inTx {
		if err := s.db.BeginTransaction(); err != nil {
			return fmt.Errorf("analysis: begin spill tx: %w", err)
		}
		s.inTx = true
	}
	key := store.MarshalKmerKey(kmer)
	cur, err := s.db.Get(nil, key)
	if err != nil {
		return fmt.Errorf("analysis: read spill: %w", err)
	}
	var nrow int64
	if cur != nil {
		nrow = store.UnmarshalNrow(cur)
	}
	nrow += delta
	if err := s.db.Set(key, store.MarshalNrow(nrow)); err != nil {
		return fmt.Errorf("analysis: write spill: %w", err)
	}
	s.pending++
	if s.pending >= s.batch {
		return s.Flush()
	}
	return nil
}

// AddBatch flushes a worker's in-memory per-block batch (spec §4.4:
// "in-memory batch hash table keyed by k-mer") into the spill store,
// one UPSERT per distinct k-mer, then commits.
func (s *Spill) AddBatch(counts map[uint64]int64) error {
	for kmerValue, n := range counts {
		if err := s.Add(kmerValue, n); err != nil {
			return err
		}
	}
	return s.Flush()
}

// Flush commits any open transaction. It is a no-op if nothing is
// pending.
func (s *Spill) Flush() error {
	if !s.inTx {
		return nil
	}
	if err := s.db.Commit(); err != nil {
		return fmt.Errorf("analysis: commit spill: %w", err)
	}
	s.inTx = false
	s.pending = 0
	return nil
}

// Close flushes any pending transaction and closes the store.
func (s *Spill) Close() error {
	if s.inTx {
		if err := s.Flush(); err != nil {
			s.db.Close()
			return err
		}
	}
	return s.db.Close()
}

// removeSpillFile unlinks a spill store's backing file after it has
// been merged away (spec §4.4: "the source file is unlinked").
func removeSpillFile(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("analysis: remove spill %s: %w", path, err)
	}
	return nil
}
