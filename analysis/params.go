// Package analysis implements the parallel high-frequency k-mer
// analyzer (C4, spec §4.4): a block-parallel scan of a dataset into
// worker-local spill stores, a hierarchical pairwise merge of those
// stores, and a threshold filter that produces the persisted
// high-frequency k-mer set.
package analysis

import (
	"fmt"
	"math"

	"github.com/kortschak/kmersig/kmer"
	"github.com/kortschak/kmersig/ngram"
)

// DefaultBatchSize is the default Stage 1 flush cadence, in rows (spec
// §6: "batch_size (default ~100k rows)").
const DefaultBatchSize = 100_000

// DefaultOccurrenceBits mirrors ngram.DefaultOccurrenceBits; analysis
// does not itself use occurrence bits (it counts distinct k-mers, not
// ngram keys) but carries the setting so a built cache key (§4.5) can be
// constructed directly from Params.
const DefaultOccurrenceBits = ngram.DefaultOccurrenceBits

// Params configures one analysis run: the dataset/column/k identifying
// what is being analyzed (spec §6's metadata primary key) plus the
// threshold and flush-cadence knobs of §4.4.
type Params struct {
	Dataset string
	Column  string
	K       int

	// OccurrenceBits is carried through to the persisted metadata row
	// and the cache key (§4.5/§4.6); it plays no part in the frequency
	// count itself.
	OccurrenceBits int

	// MaxRate and MaxNrow define the threshold, per spec §4.4.
	MaxRate float64
	MaxNrow int64

	// BatchSize is the Stage 1 flush cadence in rows; zero means
	// DefaultBatchSize.
	BatchSize int

	// Workers is the number of worker processes to fan out in Stage 1
	// and the merge waves; zero means runtime.NumCPU().
	Workers int
}

// Validate checks k, occurrence bits and max_rate against spec §6's
// bounds.
func (p Params) Validate() error {
	if err := kmer.CheckK(p.K); err != nil {
		return err
	}
	if err := ngram.CheckOccurrenceBits(p.OccurrenceBits); err != nil {
		return err
	}
	if p.MaxRate <= 0 || p.MaxRate > 1 {
		return fmt.Errorf("analysis: max_rate %g not in (0,1]", p.MaxRate)
	}
	if p.MaxNrow < 0 {
		return fmt.Errorf("analysis: max_nrow %d negative", p.MaxNrow)
	}
	return nil
}

func (p Params) batchSize() int {
	if p.BatchSize > 0 {
		return p.BatchSize
	}
	return DefaultBatchSize
}

// Threshold computes the qualifying row count for totalRows rows in the
// dataset (spec §4.4): min(ceil(max_rate*total_rows), max_nrow) when
// max_nrow>0, else ceil(max_rate*total_rows). A k-mer qualifies when its
// nrow is strictly greater than this value (spec §8 Scenario A).
func (p Params) Threshold(totalRows int64) int64 {
	t := int64(math.Ceil(p.MaxRate * float64(totalRows)))
	if p.MaxNrow > 0 && p.MaxNrow < t {
		return p.MaxNrow
	}
	return t
}
