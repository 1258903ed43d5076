package analysis

import (
	"fmt"
	"io"

	"modernc.org/kv"

	"golang.org/x/sync/errgroup"

	"github.com/kortschak/kmersig/internal/store"
)

// mergeInto streams every {k-mer, nrow} record from source into target
// via UPSERT-sum, adapted from the teacher's cmd/ins/fragment.go merge
// function: SeekFirst/Enumerator.Next streaming of a kv.DB. Unlike the
// teacher's proximity-grouping merge, which carries a "last" region
// across records, every record here is independent: each UPSERT is
// self-contained, which is what makes Stage 2 commutative regardless of
// merge order (spec §8 "Hierarchical merge commutativity").
func mergeInto(target *Spill, source *kv.DB) error {
	it, err := source.SeekFirst()
	if err != nil {
		if err == io.EOF {
			return nil
		}
		return fmt.Errorf("analysis: seek merge source: %w", err)
	}
	for {
		k, v, err := it.Next()
		if err != nil {
			if err == io.EOF {
				break
			}
			return fmt.Errorf("analysis: read merge record: %w", err)
		}
		kmerValue := store.UnmarshalKmerKey(k)
		nrow := store.UnmarshalNrow(v)
		if err := target.Add(kmerValue, nrow); err != nil {
			return fmt.Errorf("analysis: merge record: %w", err)
		}
	}
	return target.Flush()
}

// mergeWave runs one hierarchical-merge wave (spec §4.4 Stage 2): pairs
// spills[2i] with spills[2i+1], merges the second into the first, and
// unlinks the second. An odd leftover spill carries over untouched.
// Pairs run concurrently, coordinated with errgroup, matching "workers
// are relaunched in waves of ⌊N/2⌋ parallelism".
func mergeWave(spills []*Spill) ([]*Spill, error) {
	pairs := len(spills) / 2
	merged := make([]*Spill, pairs)

	g := new(errgroup.Group)
	for i := 0; i < pairs; i++ {
		i := i
		g.Go(func() error {
			target := spills[2*i]
			source := spills[2*i+1]
			if err := mergeInto(target, source.DB()); err != nil {
				return err
			}
			path := source.Path()
			if err := source.Close(); err != nil {
				return fmt.Errorf("analysis: close merged spill: %w", err)
			}
			if err := removeSpillFile(path); err != nil {
				return err
			}
			merged[i] = target
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrWorkerFailed, err)
	}

	if len(spills)%2 == 1 {
		merged = append(merged, spills[len(spills)-1])
	}
	return merged, nil
}

// MergeSpills repeatedly merges spills, in waves, until one survives
// (spec §4.4 Stage 2). It is exported for host binaries (cmd/kmersigd)
// that fan Stage 1 out to real OS worker processes and so cannot go
// through Coordinator.Run's Launcher-based Stage 1; such callers build
// their own []*Spill (one per worker process, via OpenSpill) and merge
// them with this function before calling Coordinator.Persist.
func MergeSpills(spills []*Spill) (*Spill, error) { return mergeAll(spills) }

// mergeAll repeatedly runs mergeWave until a single spill store
// survives, per spec §4.4: "After one wave, N halves (odd leftover is
// carried). Repeat until N=1."
func mergeAll(spills []*Spill) (*Spill, error) {
	for len(spills) > 1 {
		var err error
		spills, err = mergeWave(spills)
		if err != nil {
			return nil, err
		}
	}
	if len(spills) == 0 {
		return nil, ErrEmptyDataset
	}
	return spills[0], nil
}
