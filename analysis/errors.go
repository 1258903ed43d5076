package analysis

import "errors"

// ErrEmptyDataset is returned when a RowSource reports zero rows; an
// analysis over an empty dataset has no meaningful threshold (spec §6,
// §7).
var ErrEmptyDataset = errors.New("analysis: empty dataset")

// ErrWorkerFailed is returned when any Stage 1 or Stage 2 worker
// reports an error; the coordinator surfaces the first such error and
// aborts the whole analysis (spec §4.4 "Failure semantics"). No partial
// results are ever persisted.
var ErrWorkerFailed = errors.New("analysis: worker failed")

// ErrAnalysisInProgress is returned when a second analysis is attempted
// against a (dataset, column) pair that already holds the exclusive
// dataset-level lock (spec §4.4: "Concurrent analyses of the same
// (dataset, column) are serialized by taking an exclusive dataset-level
// lock").
var ErrAnalysisInProgress = errors.New("analysis: dataset already locked by another analysis")
