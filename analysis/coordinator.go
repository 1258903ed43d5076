package analysis

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"modernc.org/kv"

	"github.com/kortschak/kmersig/internal/store"
)

// Result summarizes a completed analysis run.
type Result struct {
	// Threshold is the qualifying row count computed from Params and
	// the dataset's total row count (spec §4.4).
	Threshold int64
	// Persisted is the number of k-mers written to EntriesStore.
	Persisted int64
}

// Coordinator orchestrates one complete analysis run: Stage 1 parallel
// block scan, Stage 2 hierarchical merge, Stage 3 threshold filter and
// persist (spec §4.4).
type Coordinator struct {
	Params Params
	Source RowSource

	// Launcher fans out Stage 1 workers; nil defaults to
	// GoroutineLauncher{}.
	Launcher Launcher

	// TempDir is the parent of the job's temporary namespace; ""
	// defaults to os.TempDir(). The job directory itself is named
	// kmersig_<pid>_<timestamp>, per spec §6 (renamed from the
	// original's pg_kmersearch_<pid>_<timestamp>).
	TempDir string

	// Progress, if non-nil, is called at least once per batch commit
	// across the worker fleet (spec §4.4 "Progress contract").
	Progress func(Progress)

	// MetadataStore and EntriesStore are the persisted state stores
	// (spec §6); they are opened by the caller with
	// internal/store.CompareMetadataKeys and
	// internal/store.CompareKmerKeys respectively, since they outlive
	// any single analysis run and are shared with cache/local's lazy
	// loader.
	MetadataStore *kv.DB
	EntriesStore  *kv.DB
}

// Run executes the full three-stage analysis. On any error, no partial
// high-frequency set is ever persisted, and the job's temporary
// directory is removed before Run returns (spec §4.4 "Failure
// semantics"). Concurrent analyses of the same (dataset, column) are
// serialized by an exclusive dataset-level lock; a second concurrent
// call returns ErrAnalysisInProgress rather than blocking.
func (c *Coordinator) Run(ctx context.Context) (Result, error) {
	if err := c.Params.Validate(); err != nil {
		return Result{}, err
	}
	totalRows := c.Source.TotalRows()
	if totalRows == 0 {
		return Result{}, ErrEmptyDataset
	}

	base := c.TempDir
	if base == "" {
		base = os.TempDir()
	}

	lock, err := lockDataset(filepath.Join(base, datasetLockName(c.Params.Dataset, c.Params.Column)))
	if err != nil {
		return Result{}, err
	}
	defer lock.Unlock()

	jobDir := filepath.Join(base, fmt.Sprintf("kmersig_%d_%d", os.Getpid(), time.Now().UnixNano()))
	if err := os.MkdirAll(jobDir, 0o755); err != nil {
		return Result{}, fmt.Errorf("analysis: create job dir: %w", err)
	}
	defer func() {
		if err := os.RemoveAll(jobDir); err != nil {
			log.Printf("analysis: cleanup job dir %s: %v", jobDir, err)
		}
	}()

	launcher := c.Launcher
	if launcher == nil {
		launcher = GoroutineLauncher{}
	}
	numBlocks := c.Source.NumBlocks()
	workers := c.Params.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if workers > numBlocks {
		workers = numBlocks
	}
	if workers < 1 {
		workers = 1
	}
	batchSize := c.Params.batchSize()

	cursor := newLocalCursor(numBlocks)
	spills := make([]*Spill, workers)
	err = launcher.Launch(ctx, workers, func(ctx context.Context, i int) error {
		spill, err := CreateSpill(jobDir, fmt.Sprintf("spill-%d.db", i), batchSize)
		if err != nil {
			return err
		}
		spills[i] = spill
		return WorkerLoop(c.Source, c.Params.K, batchSize, cursor, spill, c.Progress)
	})
	if err != nil {
		for _, s := range spills {
			if s != nil {
				s.Close()
			}
		}
		return Result{}, fmt.Errorf("%w: %v", ErrWorkerFailed, err)
	}

	merged, err := mergeAll(spills)
	if err != nil {
		return Result{}, err
	}
	defer merged.Close()

	threshold := c.Params.Threshold(totalRows)
	persisted, err := c.Persist(merged, threshold)
	if err != nil {
		return Result{}, err
	}

	return Result{Threshold: threshold, Persisted: persisted}, nil
}

// Persist streams merged's {k-mer, nrow} records, writes every k-mer
// with nrow > threshold to EntriesStore in a single transaction that is
// rolled back on error, and then writes the run's metadata row to
// MetadataStore (spec §4.4 Stage 3, §6 persisted state layout).
// It is exported alongside MergeSpills for host binaries that run
// Stage 1 over real OS worker processes outside of Run.
func (c *Coordinator) Persist(merged *Spill, threshold int64) (int64, error) {
	it, err := merged.DB().SeekFirst()
	empty := err == io.EOF
	if err != nil && !empty {
		return 0, fmt.Errorf("analysis: seek merged store: %w", err)
	}

	var n int64
	if !empty {
		if err := c.EntriesStore.BeginTransaction(); err != nil {
			return 0, fmt.Errorf("analysis: begin entries tx: %w", err)
		}
		for {
			k, v, err := it.Next()
			if err != nil {
				if err == io.EOF {
					break
				}
				c.EntriesStore.Rollback()
				return 0, fmt.Errorf("analysis: read merged record: %w", err)
			}
			nrow := store.UnmarshalNrow(v)
			if nrow > threshold {
				if err := c.EntriesStore.Set(k, []byte("frequency_threshold")); err != nil {
					c.EntriesStore.Rollback()
					return 0, fmt.Errorf("analysis: write entry: %w", err)
				}
				n++
			}
		}
		if err := c.EntriesStore.Commit(); err != nil {
			return 0, fmt.Errorf("analysis: commit entries: %w", err)
		}
	}

	metaKey := store.MarshalMetadataKey(store.MetadataKey{
		Dataset: c.Params.Dataset,
		Column:  c.Params.Column,
		K:       c.Params.K,
	})
	metaVal := store.MarshalMetadataValue(store.MetadataValue{
		OccurrenceBits: c.Params.OccurrenceBits,
		MaxRate:        c.Params.MaxRate,
		MaxNrow:        c.Params.MaxNrow,
		Timestamp:      time.Now().Unix(),
	})
	if err := c.MetadataStore.BeginTransaction(); err != nil {
		return 0, fmt.Errorf("analysis: begin metadata tx: %w", err)
	}
	if err := c.MetadataStore.Set(metaKey, metaVal); err != nil {
		c.MetadataStore.Rollback()
		return 0, fmt.Errorf("analysis: write metadata: %w", err)
	}
	if err := c.MetadataStore.Commit(); err != nil {
		return 0, fmt.Errorf("analysis: commit metadata: %w", err)
	}

	return n, nil
}

func datasetLockName(dataset, column string) string {
	return fmt.Sprintf("kmersig_%s_%s.lock", dataset, column)
}
