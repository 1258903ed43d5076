package analysis

import (
	"fmt"

	"github.com/kortschak/kmersig/codec"
	"github.com/kortschak/kmersig/kmer"
)

// scanRow extracts k's k-mers from row, deduplicates within the row
// (spec §4.4 "Dedup strategy within a row": "without it the nrow count
// would become occurrences, not distinct rows"), and adds one to
// counts for every distinct k-mer seen. seen is reused across calls by
// the caller and is left empty on return.
func scanRow(row codec.Sequence, k int, seen map[uint64]struct{}, counts map[uint64]int64) error {
	var ext kmer.Extractor
	var err error
	switch row.Alphabet {
	case codec.Alphabet2:
		ext, err = kmer.NewExtractor(row, k)
	case codec.Alphabet4:
		ext, err = kmer.NewDegenerateExtractor(row, k)
	default:
		return fmt.Errorf("analysis: unsupported alphabet %v", row.Alphabet)
	}
	if err != nil {
		return fmt.Errorf("analysis: build extractor: %w", err)
	}
	for ext.Next() {
		seen[ext.Kmer()] = struct{}{}
	}
	for kmerValue := range seen {
		counts[kmerValue]++
		delete(seen, kmerValue)
	}
	return nil
}

// WorkerLoop runs Stage 1 of one worker (spec §4.4): repeatedly claim a
// block from cursor, scan every row in it into a batch, and flush the
// batch to spill once the row count reaches batchSize. It returns once
// cursor is exhausted, after a final flush of any partial batch.
func WorkerLoop(source RowSource, k, batchSize int, cursor BlockCursor, spill *Spill, progress func(Progress)) error {
	counts := make(map[uint64]int64)
	seen := make(map[uint64]struct{})
	rowsInBatch := 0
	var totalRows, batchesCommitted int64

	flush := func() error {
		if rowsInBatch == 0 {
			return nil
		}
		if err := spill.AddBatch(counts); err != nil {
			return err
		}
		for k := range counts {
			delete(counts, k)
		}
		rowsInBatch = 0
		batchesCommitted++
		if progress != nil {
			progress(Progress{TotalRowsProcessed: totalRows, BatchesCommitted: batchesCommitted})
		}
		return nil
	}

	for {
		block, ok := cursor.Next()
		if !ok {
			break
		}
		rows, err := source.Block(block)
		if err != nil {
			return fmt.Errorf("analysis: read block %d: %w", block, err)
		}
		for _, row := range rows {
			if err := scanRow(row, k, seen, counts); err != nil {
				return err
			}
			rowsInBatch++
			totalRows++
			if rowsInBatch >= batchSize {
				if err := flush(); err != nil {
					return err
				}
			}
		}
	}
	return flush()
}
